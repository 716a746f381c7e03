package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
	"github.com/louisbranch/proving.grounds/internal/services/arena/storage/integrity"
)

// Type names a record kind.
type Type string

const (
	TypeMatchCreated Type = "match.created"
	TypeMove         Type = "phase.move"
	TypeRangedAttack Type = "phase.ranged_attack"
	TypeMeleeAttack  Type = "phase.melee_attack"
	TypePhaseEnded   Type = "turn.phase_ended"
	TypeTurnEnded    Type = "game.turn_ended"
)

// Valid reports whether t is a known record type.
func (t Type) Valid() bool {
	switch t {
	case TypeMatchCreated, TypeMove, TypeRangedAttack, TypeMeleeAttack, TypePhaseEnded, TypeTurnEnded:
		return true
	}
	return false
}

// ErrNotFound indicates a match has no records.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "match not found")

// Record is one journal entry.
type Record struct {
	MatchID        string          `json:"matchId"`
	Seq            uint64          `json:"seq"`
	Type           Type            `json:"type"`
	Timestamp      time.Time       `json:"timestamp"`
	Payload        json.RawMessage `json:"payload"`
	Hash           string          `json:"hash"`
	PrevHash       string          `json:"prevHash,omitempty"`
	ChainHash      string          `json:"chainHash"`
	Signature      string          `json:"signature"`
	SignatureKeyID string          `json:"signatureKeyId"`
}

// Journal stores records for matches.
type Journal interface {
	// Append assigns the next sequence number, seals and stores r.
	Append(ctx context.Context, r Record) (Record, error)
	// List returns up to limit records with seq greater than afterSeq.
	List(ctx context.Context, matchID string, afterSeq uint64, limit int) ([]Record, error)
}

const pageSize = 200

// New builds an unsealed record with payload encoded as JSON.
func New(matchID string, t Type, payload any, now time.Time) (Record, error) {
	if !t.Valid() {
		return Record{}, apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("unknown record type %q", t))
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Record{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return Record{
		MatchID:   matchID,
		Type:      t,
		Timestamp: now.UTC().Truncate(time.Millisecond),
		Payload:   data,
	}, nil
}

// Decode parses a record's payload.
func Decode[T any](r Record) (T, error) {
	var out T
	if err := json.Unmarshal(r.Payload, &out); err != nil {
		return out, apperrors.Wrap(apperrors.CodeInvalidArgument, fmt.Sprintf("decode %s seq=%d", r.Type, r.Seq), err)
	}
	return out, nil
}

// Envelope is the hashed content of r.
func (r Record) Envelope() integrity.Envelope {
	return integrity.Envelope{MatchID: r.MatchID, Type: string(r.Type), Timestamp: r.Timestamp, Payload: r.Payload}
}

// Seal numbers r as seq following the record whose chain hash is prevChain
// and fills in its hashes and signature.
func Seal(k *integrity.Keyring, r Record, seq uint64, prevChain string) (Record, error) {
	if k == nil {
		return Record{}, fmt.Errorf("journal integrity keyring is required")
	}
	if strings.TrimSpace(r.MatchID) == "" {
		return Record{}, apperrors.New(apperrors.CodeInvalidArgument, "match id is required")
	}
	if !r.Type.Valid() {
		return Record{}, apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("unknown record type %q", r.Type))
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	r.Timestamp = r.Timestamp.UTC().Truncate(time.Millisecond)
	r.Seq = seq

	hash, err := integrity.RecordHash(r.Envelope())
	if err != nil {
		return Record{}, err
	}
	chain, err := integrity.ChainHash(r.MatchID, seq, hash, prevChain)
	if err != nil {
		return Record{}, err
	}
	sig, err := k.Sign(r.MatchID, chain)
	if err != nil {
		return Record{}, fmt.Errorf("sign chain hash: %w", err)
	}
	r.Hash = hash
	r.PrevHash = prevChain
	r.ChainHash = chain
	r.Signature = sig.MAC
	r.SignatureKeyID = sig.KeyID
	return r, nil
}

// VerifyChain checks that records are one match's gap-free sequence from
// seq 1, that every hash recomputes and that every signature verifies.
func VerifyChain(k *integrity.Keyring, records []Record) error {
	if k == nil {
		return fmt.Errorf("journal integrity keyring is required")
	}
	prevChain := ""
	for i, r := range records {
		want := uint64(i + 1)
		if r.Seq != want {
			return apperrors.New(apperrors.CodeIntegrity, fmt.Sprintf("record sequence gap match_id=%s expected=%d got=%d", r.MatchID, want, r.Seq))
		}
		if i > 0 && r.MatchID != records[0].MatchID {
			return apperrors.New(apperrors.CodeIntegrity, fmt.Sprintf("record seq=%d belongs to match %s", r.Seq, r.MatchID))
		}
		if r.PrevHash != prevChain {
			return apperrors.New(apperrors.CodeIntegrity, fmt.Sprintf("prev hash mismatch match_id=%s seq=%d", r.MatchID, r.Seq))
		}
		hash, err := integrity.RecordHash(r.Envelope())
		if err != nil {
			return apperrors.Wrap(apperrors.CodeIntegrity, fmt.Sprintf("record hash match_id=%s seq=%d", r.MatchID, r.Seq), err)
		}
		if hash != r.Hash {
			return apperrors.New(apperrors.CodeIntegrity, fmt.Sprintf("record hash mismatch match_id=%s seq=%d", r.MatchID, r.Seq))
		}
		chain, err := integrity.ChainHash(r.MatchID, r.Seq, hash, prevChain)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeIntegrity, fmt.Sprintf("chain hash match_id=%s seq=%d", r.MatchID, r.Seq), err)
		}
		if chain != r.ChainHash {
			return apperrors.New(apperrors.CodeIntegrity, fmt.Sprintf("chain hash mismatch match_id=%s seq=%d", r.MatchID, r.Seq))
		}
		if err := k.Verify(r.MatchID, r.ChainHash, integrity.Signature{KeyID: r.SignatureKeyID, MAC: r.Signature}); err != nil {
			return fmt.Errorf("record signature match_id=%s seq=%d: %w", r.MatchID, r.Seq, err)
		}
		prevChain = r.ChainHash
	}
	return nil
}

// ListAll pages through every record of a match.
func ListAll(ctx context.Context, j Journal, matchID string) ([]Record, error) {
	var out []Record
	var after uint64
	for {
		page, err := j.List(ctx, matchID, after, pageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < pageSize {
			break
		}
		after = page[len(page)-1].Seq
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}
