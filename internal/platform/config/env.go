package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv fills target from its env struct tags.
func ParseEnv(target any) error {
	return parse(target, env.Options{})
}

// ParseEnvWithPrefix is ParseEnv for tags written without prefix, e.g. a
// shared keyring struct read as ARENA_HMAC_* in one place and ARENA_ATTEST_*
// in another.
func ParseEnvWithPrefix(target any, prefix string) error {
	return parse(target, env.Options{Prefix: prefix})
}

func parse(target any, opts env.Options) error {
	if target == nil {
		return fmt.Errorf("parse env: target is required")
	}
	if err := env.ParseWithOptions(target, opts); err != nil {
		if opts.Prefix != "" {
			return fmt.Errorf("parse env %s*: %w", opts.Prefix, err)
		}
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
