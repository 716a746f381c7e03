package engine

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/attack"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/keys"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/proofchain"
	"github.com/louisbranch/proving.grounds/internal/services/arena/journal"
	"github.com/louisbranch/proving.grounds/internal/services/arena/rules"
)

const tracerName = "github.com/louisbranch/proving.grounds/internal/services/arena/engine"

// Roller produces oracle-attested dice encrypted to recipient.
type Roller interface {
	Roll(recipient keys.PublicKey) (attack.EncryptedRoll, error)
}

var _ Roller = (*attack.Oracle)(nil)

// Config wires a match.
type Config struct {
	// MatchID is generated when empty.
	MatchID string
	Rules   rules.Rules
	Player1 keys.PublicKey
	Player2 keys.PublicKey
	// ServerKey is the authority's secret. Rolls are encrypted to its public
	// half and only the engine and replay ever decrypt them.
	ServerKey keys.PrivateKey
	Oracles   *attack.OracleKeyring
	Roller    Roller
	Journal   journal.Journal
	// Backend certifies genesis and every ended turn when set.
	Backend proofchain.Backend
	Now     func() time.Time
	Tracer  trace.Tracer
}

func (c Config) validate() error {
	if err := c.Rules.Validate(); err != nil {
		return err
	}
	if c.Player1.IsZero() || c.Player2.IsZero() {
		return fmt.Errorf("both player keys are required")
	}
	if c.ServerKey.Public().IsZero() {
		return fmt.Errorf("server key is required")
	}
	if c.Oracles == nil {
		return fmt.Errorf("oracle keyring is required")
	}
	if c.Roller == nil {
		return fmt.Errorf("roller is required")
	}
	if c.Journal == nil {
		return fmt.Errorf("journal is required")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Tracer == nil {
		c.Tracer = otel.Tracer(tracerName)
	}
	return c
}
