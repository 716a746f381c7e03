package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/encoding"
)

// Envelope is the hashed content of a journal record.
type Envelope struct {
	MatchID   string
	Type      string
	Timestamp time.Time
	Payload   []byte
}

// RecordHash is the content hash of one record. The payload is
// canonicalized so that key order does not matter.
func RecordHash(e Envelope) (string, error) {
	payload := json.RawMessage("null")
	if len(e.Payload) > 0 {
		payload = json.RawMessage(e.Payload)
	}
	hash, err := encoding.ContentHash(map[string]any{
		"match_id":  e.MatchID,
		"type":      e.Type,
		"timestamp": e.Timestamp.UTC().Format(time.RFC3339Nano),
		"payload":   payload,
	})
	if err != nil {
		return "", fmt.Errorf("record hash: %w", err)
	}
	return hash, nil
}

// ChainHash links a record hash to its position and its predecessor.
func ChainHash(matchID string, seq uint64, recordHash, prevHash string) (string, error) {
	canonical, err := encoding.CanonicalJSON(map[string]string{
		"match_id":    matchID,
		"seq":         strconv.FormatUint(seq, 10),
		"record_hash": recordHash,
		"prev_hash":   prevHash,
	})
	if err != nil {
		return "", fmt.Errorf("chain hash: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
