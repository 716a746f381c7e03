// Package hmackey generates random secrets for the journal HMAC keyring and
// the certificate attestor.
package hmackey

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	entrypoint "github.com/louisbranch/proving.grounds/internal/platform/cmd"
)

// Config holds configuration for key generation.
type Config struct {
	Bytes int `env:"ARENA_KEYGEN_BYTES" envDefault:"32"`
	// Target is journal (hex ARENA_HMAC_KEY) or attestation (base64
	// ARENA_ATTESTATION_KEY).
	Target string `env:"ARENA_KEYGEN_TARGET" envDefault:"journal"`
	KeyID  string `env:"ARENA_KEYGEN_KEY_ID"`
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	return entrypoint.Load(fs, args, func(fs *flag.FlagSet, cfg *Config) {
		fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes")
		fs.StringVar(&cfg.Target, "target", cfg.Target, "journal or attestation")
		fs.StringVar(&cfg.KeyID, "key-id", cfg.KeyID, "also print the key id variable")
	})
}

// Run generates the key and writes it to out.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if cfg.Bytes <= 0 {
		return errors.New("bytes must be greater than zero")
	}
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}

	var name, idName string
	var encode func([]byte) string
	switch strings.ToLower(strings.TrimSpace(cfg.Target)) {
	case "", "journal":
		name, idName, encode = "ARENA_HMAC_KEY", "ARENA_HMAC_KEY_ID", hex.EncodeToString
	case "attestation":
		if cfg.Bytes < 32 {
			return errors.New("attestation keys need at least 32 bytes")
		}
		name, idName, encode = "ARENA_ATTESTATION_KEY", "ARENA_ATTESTATION_KEY_ID", base64.RawStdEncoding.EncodeToString
	default:
		return fmt.Errorf("unknown target %q", cfg.Target)
	}

	buf := make([]byte, cfg.Bytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	if _, err := fmt.Fprintf(out, "%s=%s\n", name, encode(buf)); err != nil {
		return err
	}
	if id := strings.TrimSpace(cfg.KeyID); id != "" {
		_, err := fmt.Fprintf(out, "%s=%s\n", idName, id)
		return err
	}
	return nil
}
