package config

import (
	"fmt"
	"strings"
)

// keySetEnv is the env shape shared by rotatable keyrings. Under a prefix
// such as ARENA_HMAC_, KEYS holds "id=value,id=value" and KEY holds a single
// value stored under KEY_ID.
type keySetEnv struct {
	Keys  map[string]string `env:"KEYS" envKeyValSeparator:"="`
	Key   string            `env:"KEY"`
	KeyID string            `env:"KEY_ID"`
}

// KeySet is a keyring read from the environment, values still encoded.
type KeySet struct {
	Values   map[string]string
	ActiveID string
}

// LoadKeySet reads the keyring under prefix. The active id defaults to
// defaultID; every id and value is trimmed and must be non-empty.
func LoadKeySet(prefix, defaultID string) (KeySet, error) {
	var raw keySetEnv
	if err := ParseEnvWithPrefix(&raw, prefix); err != nil {
		return KeySet{}, err
	}
	active := strings.TrimSpace(raw.KeyID)
	if active == "" {
		active = defaultID
	}
	if len(raw.Keys) == 0 {
		single := strings.TrimSpace(raw.Key)
		if single == "" {
			return KeySet{}, fmt.Errorf("%sKEY or %sKEYS is required", prefix, prefix)
		}
		return KeySet{Values: map[string]string{active: single}, ActiveID: active}, nil
	}
	values := make(map[string]string, len(raw.Keys))
	for id, value := range raw.Keys {
		id, value = strings.TrimSpace(id), strings.TrimSpace(value)
		if id == "" || value == "" {
			return KeySet{}, fmt.Errorf("invalid %sKEYS entry", prefix)
		}
		values[id] = value
	}
	return KeySet{Values: values, ActiveID: active}, nil
}
