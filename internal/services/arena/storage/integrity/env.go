package integrity

import (
	"github.com/louisbranch/proving.grounds/internal/platform/config"
)

const defaultKeyID = "v1"

// KeyringFromEnv loads the journal keyring. ARENA_HMAC_KEYS holds
// "id=secret,id=secret"; otherwise ARENA_HMAC_KEY is stored under
// ARENA_HMAC_KEY_ID (default v1).
func KeyringFromEnv() (*Keyring, error) {
	set, err := config.LoadKeySet("ARENA_HMAC_", defaultKeyID)
	if err != nil {
		return nil, err
	}
	keys := make(map[string][]byte, len(set.Values))
	for id, secret := range set.Values {
		keys[id] = []byte(secret)
	}
	return NewKeyring(keys, set.ActiveID)
}
