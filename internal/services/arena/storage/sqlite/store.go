package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/louisbranch/proving.grounds/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/proving.grounds/internal/services/arena/journal"
	"github.com/louisbranch/proving.grounds/internal/services/arena/storage/integrity"
	"github.com/louisbranch/proving.grounds/internal/services/arena/storage/sqlite/migrations"
)

const dsnOptions = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate"

// Store is a SQLite-backed journal.
type Store struct {
	sqlDB   *sql.DB
	keyring *integrity.Keyring
}

var _ journal.Journal = (*Store)(nil)

// Open opens (creating if needed) the journal database at path and applies
// migrations.
func Open(ctx context.Context, path string, keyring *integrity.Keyring) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if keyring == nil {
		return nil, fmt.Errorf("journal integrity keyring is required")
	}
	sqlDB, err := sql.Open("sqlite", filepath.Clean(path)+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.JournalFS, "journal"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, keyring: keyring}, nil
}

// Close closes the database. It is nil-safe.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Append seals r as the next record of its match inside one transaction.
func (s *Store) Append(ctx context.Context, r journal.Record) (journal.Record, error) {
	if err := ctx.Err(); err != nil {
		return journal.Record{}, err
	}
	if s == nil || s.sqlDB == nil {
		return journal.Record{}, fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return journal.Record{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var lastSeq uint64
	prevChain := ""
	err = tx.QueryRowContext(ctx,
		"SELECT seq, chain_hash FROM records WHERE match_id = ? ORDER BY seq DESC LIMIT 1",
		r.MatchID,
	).Scan(&lastSeq, &prevChain)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return journal.Record{}, fmt.Errorf("load previous record: %w", err)
	}

	sealed, err := journal.Seal(s.keyring, r, lastSeq+1, prevChain)
	if err != nil {
		return journal.Record{}, err
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO records (
    match_id, seq, record_type, timestamp, payload_json,
    record_hash, prev_chain_hash, chain_hash, signature_key_id, record_signature
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sealed.MatchID, int64(sealed.Seq), string(sealed.Type), toMillis(sealed.Timestamp), []byte(sealed.Payload),
		sealed.Hash, sealed.PrevHash, sealed.ChainHash, sealed.SignatureKeyID, sealed.Signature,
	); err != nil {
		return journal.Record{}, fmt.Errorf("append record: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO matches (match_id, created_at, last_seq) VALUES (?, ?, ?)
ON CONFLICT (match_id) DO UPDATE SET last_seq = excluded.last_seq`,
		sealed.MatchID, toMillis(sealed.Timestamp), int64(sealed.Seq),
	); err != nil {
		return journal.Record{}, fmt.Errorf("update match: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return journal.Record{}, fmt.Errorf("commit: %w", err)
	}
	return sealed, nil
}

// List returns up to limit records of a match after afterSeq.
func (s *Store) List(ctx context.Context, matchID string, afterSeq uint64, limit int) ([]journal.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return nil, fmt.Errorf("match id is required")
	}
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT match_id, seq, record_type, timestamp, payload_json,
       record_hash, prev_chain_hash, chain_hash, signature_key_id, record_signature
FROM records
WHERE match_id = ? AND seq > ?
ORDER BY seq
LIMIT ?`, matchID, int64(afterSeq), limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []journal.Record
	for rows.Next() {
		var (
			r       journal.Record
			seq     int64
			typ     string
			millis  int64
			payload []byte
		)
		if err := rows.Scan(&r.MatchID, &seq, &typ, &millis, &payload,
			&r.Hash, &r.PrevHash, &r.ChainHash, &r.SignatureKeyID, &r.Signature); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Seq = uint64(seq)
		r.Type = journal.Type(typ)
		r.Timestamp = fromMillis(millis)
		r.Payload = payload
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// Match summarizes a journaled match.
type Match struct {
	ID        string
	CreatedAt time.Time
	LastSeq   uint64
}

// ListMatches lists every journaled match, oldest first.
func (s *Store) ListMatches(ctx context.Context) ([]Match, error) {
	rows, err := s.sqlDB.QueryContext(ctx, "SELECT match_id, created_at, last_seq FROM matches ORDER BY created_at, match_id")
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var (
			m       Match
			created int64
			lastSeq int64
		)
		if err := rows.Scan(&m.ID, &created, &lastSeq); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.CreatedAt = fromMillis(created)
		m.LastSeq = uint64(lastSeq)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return out, nil
}

// VerifyChain checks the hash chain and signatures of one match.
func (s *Store) VerifyChain(ctx context.Context, matchID string) error {
	records, err := journal.ListAll(ctx, s, matchID)
	if err != nil {
		return err
	}
	return journal.VerifyChain(s.keyring, records)
}

// VerifyAll checks every match in the database.
func (s *Store) VerifyAll(ctx context.Context) error {
	matches, err := s.ListMatches(ctx)
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := s.VerifyChain(ctx, m.ID); err != nil {
			return err
		}
	}
	return nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
