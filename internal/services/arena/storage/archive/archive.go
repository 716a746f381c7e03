// Package archive exports match journals as zstd-compressed JSON lines and
// reads them back for offline verification.
package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/louisbranch/proving.grounds/internal/services/arena/journal"
)

const maxLine = 16 << 20

// Export writes records to w, one JSON object per line.
func Export(w io.Writer, records []journal.Record) error {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	bw := bufio.NewWriterSize(zw, 64*1024)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			_ = zw.Close()
			return fmt.Errorf("encode record seq=%d: %w", r.Seq, err)
		}
	}
	if err := bw.Flush(); err != nil {
		_ = zw.Close()
		return fmt.Errorf("flush archive: %w", err)
	}
	return zw.Close()
}

// Import reads every record written by Export.
func Import(r io.Reader) ([]journal.Record, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer zr.Close()

	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	var out []journal.Record
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec journal.Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("decode archive line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("archive line %d exceeds %d bytes", line+1, maxLine)
		}
		return nil, fmt.Errorf("read archive: %w", err)
	}
	return out, nil
}

// Source serves archived records as a read-only journal.
type Source struct {
	records []journal.Record
}

// NewSource wraps imported records.
func NewSource(records []journal.Record) *Source {
	return &Source{records: records}
}

// Append always fails; archives are immutable.
func (s *Source) Append(_ context.Context, _ journal.Record) (journal.Record, error) {
	return journal.Record{}, errReadOnly
}

// List returns up to limit records of matchID after afterSeq.
func (s *Source) List(ctx context.Context, matchID string, afterSeq uint64, limit int) ([]journal.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []journal.Record
	for _, r := range s.records {
		if r.MatchID != matchID || r.Seq <= afterSeq {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, r)
	}
	return out, nil
}

// MatchIDs lists the matches present in the archive in first-seen order.
func (s *Source) MatchIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, r := range s.records {
		if !seen[r.MatchID] {
			seen[r.MatchID] = true
			ids = append(ids, r.MatchID)
		}
	}
	return ids
}

var errReadOnly = errors.New("archive is read-only")
