package attack

import (
	"fmt"
	"sort"
	"strings"

	"github.com/louisbranch/proving.grounds/internal/platform/config"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/keys"
)

const defaultOracleKeyID = "v1"

// OracleKeyring is the set of oracle public keys trusted to attest dice
// rolls. Rotation adds a new key id and later drops the retired one; rolls
// name the key id that signed them.
type OracleKeyring struct {
	keys        map[string]keys.PublicKey
	activeKeyID string
}

// NewOracleKeyring builds a keyring. The active key is the one new rolls are
// expected to use; every listed key is accepted for verification.
func NewOracleKeyring(trusted map[string]keys.PublicKey, activeKeyID string) (*OracleKeyring, error) {
	if len(trusted) == 0 {
		return nil, fmt.Errorf("oracle keys are required")
	}
	copied := make(map[string]keys.PublicKey, len(trusted))
	for id, k := range trusted {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("oracle key id is required")
		}
		if _, dup := copied[id]; dup {
			return nil, fmt.Errorf("oracle key id %q is listed twice", id)
		}
		copied[id] = k
	}
	activeKeyID = strings.TrimSpace(activeKeyID)
	if activeKeyID == "" {
		return nil, fmt.Errorf("active oracle key id is required")
	}
	if _, ok := copied[activeKeyID]; !ok {
		return nil, fmt.Errorf("active oracle key id %q is not configured", activeKeyID)
	}
	return &OracleKeyring{keys: copied, activeKeyID: activeKeyID}, nil
}

// ActiveKeyID returns the id of the key new rolls should carry.
func (k *OracleKeyring) ActiveKeyID() string {
	if k == nil {
		return ""
	}
	return k.activeKeyID
}

// Key returns the trusted key with id.
func (k *OracleKeyring) Key(id string) (keys.PublicKey, bool) {
	if k == nil {
		return keys.PublicKey{}, false
	}
	pub, ok := k.keys[id]
	return pub, ok
}

// KeyIDs returns the trusted key ids in sorted order.
func (k *OracleKeyring) KeyIDs() []string {
	if k == nil {
		return nil
	}
	ids := make([]string, 0, len(k.keys))
	for id := range k.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// OracleKeyringFromEnv loads trusted oracle keys. ARENA_ORACLE_KEYS holds
// "id=base58,id=base58"; ARENA_ORACLE_KEY holds a single key stored under
// ARENA_ORACLE_KEY_ID (default v1).
func OracleKeyringFromEnv() (*OracleKeyring, error) {
	set, err := config.LoadKeySet("ARENA_ORACLE_", defaultOracleKeyID)
	if err != nil {
		return nil, err
	}

	trusted := make(map[string]keys.PublicKey, len(set.Values))
	for id, encoded := range set.Values {
		pub, err := keys.ParsePublicKey(encoded)
		if err != nil {
			return nil, fmt.Errorf("oracle key %q: %w", id, err)
		}
		trusted[id] = pub
	}
	return NewOracleKeyring(trusted, set.ActiveID)
}
