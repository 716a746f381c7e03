package integrity

import (
	"crypto/hkdf"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strings"

	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
)

// Signature is an HMAC over a chain hash and the id of the key that made it.
type Signature struct {
	KeyID string
	MAC   string
}

// Keyring holds journal root keys by id. New records are signed with the
// active key; records signed with any configured key still verify, so keys
// rotate by adding an id and switching the active one. A Keyring is
// immutable.
type Keyring struct {
	roots  map[string][]byte
	active string
}

// NewKeyring copies roots and selects active as the signing key.
func NewKeyring(roots map[string][]byte, active string) (*Keyring, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("hmac keys are required")
	}
	active = strings.TrimSpace(active)
	if active == "" {
		return nil, fmt.Errorf("active hmac key id is required")
	}
	if _, ok := roots[active]; !ok {
		return nil, fmt.Errorf("active hmac key id %q is not configured", active)
	}
	return &Keyring{roots: maps.Clone(roots), active: active}, nil
}

// Rotate returns a keyring that also holds root under id and signs with it.
func (k *Keyring) Rotate(id string, root []byte) (*Keyring, error) {
	if k == nil {
		return NewKeyring(map[string][]byte{id: root}, id)
	}
	id = strings.TrimSpace(id)
	if _, ok := k.roots[id]; ok {
		return nil, fmt.Errorf("hmac key id %q is already configured", id)
	}
	roots := maps.Clone(k.roots)
	roots[id] = root
	return NewKeyring(roots, id)
}

// ActiveKeyID is the id new signatures are made with.
func (k *Keyring) ActiveKeyID() string {
	if k == nil {
		return ""
	}
	return k.active
}

// KeyIDs lists the configured ids in order.
func (k *Keyring) KeyIDs() []string {
	if k == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(k.roots))
}

// Sign MACs chainHash under the active key for matchID.
func (k *Keyring) Sign(matchID, chainHash string) (Signature, error) {
	if k == nil {
		return Signature{}, fmt.Errorf("hmac keyring is not configured")
	}
	mac, err := macHex(k.roots[k.active], matchID, chainHash)
	if err != nil {
		return Signature{}, err
	}
	return Signature{KeyID: k.active, MAC: mac}, nil
}

// Verify checks sig over chainHash for matchID. Unknown key ids and
// mismatches are integrity violations.
func (k *Keyring) Verify(matchID, chainHash string, sig Signature) error {
	if k == nil {
		return fmt.Errorf("hmac keyring is not configured")
	}
	id := strings.TrimSpace(sig.KeyID)
	if id == "" {
		return apperrors.New(apperrors.CodeIntegrity, "signature key id is required")
	}
	root, ok := k.roots[id]
	if !ok {
		return apperrors.New(apperrors.CodeIntegrity, fmt.Sprintf("signature key id %q is unknown", id)).With("key_id", id)
	}
	want, err := macHex(root, matchID, chainHash)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(want), []byte(sig.MAC)) {
		return apperrors.New(apperrors.CodeIntegrity, "signature mismatch").With("key_id", id)
	}
	return nil
}

// macHex keys the MAC per match through HKDF so a signature cannot be moved
// into another match's journal.
func macHex(root []byte, matchID, value string) (string, error) {
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return "", fmt.Errorf("match id is required")
	}
	key, err := hkdf.Key(sha256.New, root, nil, "arena-journal:"+matchID, sha256.Size)
	if err != nil {
		return "", fmt.Errorf("derive match key: %w", err)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil)), nil
}
