package proofchain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/game"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/phase"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/turn"
)

// Layer names.
const (
	LayerPhase = "phase"
	LayerTurn  = "turn"
	LayerGame  = "game"
)

// Hashable is any state with a canonical commitment.
type Hashable interface {
	Hash() field.Element
}

// Certificate attests that State is the Step-th state of a layer's fold.
type Certificate struct {
	Layer string
	Step  uint64
	State field.Element
	// Prev is the digest of the certificate this one extends; empty for Init.
	Prev  string
	Token string
}

// Digest identifies the certificate for chaining.
func (c Certificate) Digest() string {
	sum := sha256.Sum256([]byte(c.Token))
	return hex.EncodeToString(sum[:])
}

// Verifier checks a certificate produced by a Backend.
type Verifier interface {
	Verify(cert Certificate) error
}

// Backend issues and verifies certificates.
type Backend interface {
	Verifier
	Issue(layer string, step uint64, state field.Element, prev string) (Certificate, error)
}

// Layer is the init/step contract a certificate chain exposes.
type Layer[S Hashable, In any] interface {
	Init(claimed S) (Certificate, error)
	Step(prev Certificate, prevState, claimed S, in In) (Certificate, error)
}

// Chain certifies one layer's fold.
type Chain[S Hashable, In any] struct {
	name       string
	genesis    S
	transition func(S, In) (S, error)
	backend    Backend
}

var (
	_ Layer[phase.State, Step]       = (*Chain[phase.State, Step])(nil)
	_ Layer[turn.State, phase.State] = (*Chain[turn.State, phase.State])(nil)
	_ Layer[game.State, turn.State]  = (*Chain[game.State, turn.State])(nil)
)

// NewChain builds a chain for a layer named name.
func NewChain[S Hashable, In any](name string, genesis S, transition func(S, In) (S, error), backend Backend) *Chain[S, In] {
	return &Chain[S, In]{name: name, genesis: genesis, transition: transition, backend: backend}
}

// NewPhaseChain certifies a phase's actions.
func NewPhaseChain(genesis phase.State, r phase.Rules, backend Backend) *Chain[phase.State, Step] {
	return NewChain(LayerPhase, genesis, PhaseTransition(r), backend)
}

// NewTurnChain certifies a turn's phases.
func NewTurnChain(genesis turn.State, backend Backend) *Chain[turn.State, phase.State] {
	return NewChain(LayerTurn, genesis, turn.State.ApplyPhase, backend)
}

// NewGameChain certifies a game's turns.
func NewGameChain(genesis game.State, backend Backend) *Chain[game.State, turn.State] {
	return NewChain(LayerGame, genesis, game.State.ApplyTurn, backend)
}

// Init certifies the declared genesis and nothing else.
func (c *Chain[S, In]) Init(claimed S) (Certificate, error) {
	if !field.Equal(claimed.Hash(), c.genesis.Hash()) {
		return Certificate{}, apperrors.New(apperrors.CodeConsistencyFailure,
			fmt.Sprintf("%s: claimed state is not the declared genesis", c.name))
	}
	return c.backend.Issue(c.name, 0, claimed.Hash(), "")
}

// Step certifies claimed as the successor of prevState under in.
func (c *Chain[S, In]) Step(prev Certificate, prevState, claimed S, in In) (Certificate, error) {
	if err := c.backend.Verify(prev); err != nil {
		return Certificate{}, err
	}
	if prev.Layer != c.name {
		return Certificate{}, apperrors.New(apperrors.CodeIntegrity,
			fmt.Sprintf("%s: prior certificate belongs to layer %q", c.name, prev.Layer))
	}
	if !field.Equal(prevState.Hash(), prev.State) {
		return Certificate{}, apperrors.New(apperrors.CodeConsistencyFailure,
			fmt.Sprintf("%s: prior state does not match its certificate", c.name))
	}
	next, err := c.transition(prevState, in)
	if err != nil {
		return Certificate{}, err
	}
	if !field.Equal(next.Hash(), claimed.Hash()) {
		return Certificate{}, apperrors.New(apperrors.CodeConsistencyFailure,
			fmt.Sprintf("%s: claimed state is not the transition result", c.name))
	}
	return c.backend.Issue(c.name, prev.Step+1, claimed.Hash(), prev.Digest())
}

// VerifyChain checks every certificate and that each one extends the one
// before it, starting from an Init certificate.
func VerifyChain(v Verifier, certs []Certificate) error {
	for i, cert := range certs {
		if err := v.Verify(cert); err != nil {
			return fmt.Errorf("certificate %d: %w", i, err)
		}
		if i == 0 {
			if cert.Step != 0 || cert.Prev != "" {
				return apperrors.New(apperrors.CodeIntegrity, "chain does not start at genesis")
			}
			continue
		}
		prev := certs[i-1]
		if cert.Layer != prev.Layer || cert.Step != prev.Step+1 || cert.Prev != prev.Digest() {
			return apperrors.New(apperrors.CodeIntegrity, fmt.Sprintf("certificate %d does not extend certificate %d", i, i-1))
		}
	}
	return nil
}
