package journal

import (
	"context"
	"strings"
	"sync"

	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
	"github.com/louisbranch/proving.grounds/internal/services/arena/storage/integrity"
)

// Memory is an in-process Journal.
type Memory struct {
	mu      sync.Mutex
	keyring *integrity.Keyring
	records map[string][]Record
}

// NewMemory creates an empty in-memory journal sealing with keyring.
func NewMemory(keyring *integrity.Keyring) *Memory {
	return &Memory{keyring: keyring, records: make(map[string][]Record)}
}

// Append seals r as the next record of its match.
func (m *Memory) Append(ctx context.Context, r Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.records[r.MatchID]
	prevChain := ""
	if n := len(existing); n > 0 {
		prevChain = existing[n-1].ChainHash
	}
	sealed, err := Seal(m.keyring, r, uint64(len(existing))+1, prevChain)
	if err != nil {
		return Record{}, err
	}
	m.records[r.MatchID] = append(existing, sealed)
	return sealed, nil
}

// List returns up to limit records after afterSeq.
func (m *Memory) List(ctx context.Context, matchID string, afterSeq uint64, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "match id is required")
	}
	if limit <= 0 {
		limit = pageSize
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.records[matchID]
	if afterSeq >= uint64(len(all)) {
		return nil, nil
	}
	page := all[afterSeq:]
	if len(page) > limit {
		page = page[:limit]
	}
	out := make([]Record, len(page))
	copy(out, page)
	return out, nil
}
