// Package oraclekey generates EdDSA keypairs for dice oracles, match
// authorities and players.
package oraclekey

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	entrypoint "github.com/louisbranch/proving.grounds/internal/platform/cmd"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/keys"
)

// Config holds configuration for key generation.
type Config struct {
	// Role selects the env names printed: oracle, server or player.
	Role  string `env:"ARENA_KEYGEN_ROLE" envDefault:"oracle"`
	KeyID string `env:"ARENA_KEYGEN_KEY_ID" envDefault:"v1"`
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	return entrypoint.Load(fs, args, func(fs *flag.FlagSet, cfg *Config) {
		fs.StringVar(&cfg.Role, "role", cfg.Role, "oracle, server or player")
		fs.StringVar(&cfg.KeyID, "key-id", cfg.KeyID, "oracle key id")
	})
}

// Run generates a keypair and writes env exports to out.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	k, err := keys.GenerateKey(reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	var lines []string
	switch strings.ToLower(strings.TrimSpace(cfg.Role)) {
	case "oracle":
		id := strings.TrimSpace(cfg.KeyID)
		if id == "" {
			return errors.New("key id is required")
		}
		lines = []string{
			"export ARENA_ORACLE_SECRET_KEY=" + k.String(),
			"export ARENA_ORACLE_KEY_ID=" + id,
			fmt.Sprintf("export ARENA_ORACLE_KEYS=%s=%s", id, k.Public()),
		}
	case "server":
		lines = []string{"export ARENA_SERVER_KEY=" + k.String()}
	case "player":
		lines = []string{
			"export ARENA_PLAYER_SECRET_KEY=" + k.String(),
			"export ARENA_PLAYER_PUBLIC_KEY=" + k.Public().String(),
		}
	default:
		return fmt.Errorf("unknown role %q", cfg.Role)
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}
