package proofchain

import (
	"fmt"

	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/game"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/phase"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/turn"
)

// Fold threads genesis through transition over inputs in order and stops at
// the first rejected input.
func Fold[S, In any](genesis S, transition func(S, In) (S, error), inputs []In) (S, error) {
	state := genesis
	for i, in := range inputs {
		next, err := transition(state, in)
		if err != nil {
			var zero S
			return zero, fmt.Errorf("step %d: %w", i+1, err)
		}
		state = next
	}
	return state, nil
}

// Step is one phase input. Exactly one field is set.
type Step struct {
	Move   *phase.Move
	Ranged *phase.Attack
	Melee  *phase.Attack
}

// PhaseTransition returns the phase transition under rules as a plain
// function of state and step.
func PhaseTransition(r phase.Rules) func(phase.State, Step) (phase.State, error) {
	return func(s phase.State, step Step) (phase.State, error) {
		switch {
		case step.Move != nil && step.Ranged == nil && step.Melee == nil:
			return s.ApplyMove(r, *step.Move)
		case step.Ranged != nil && step.Move == nil && step.Melee == nil:
			next, _, err := s.ApplyRangedAttack(r, *step.Ranged)
			return next, err
		case step.Melee != nil && step.Move == nil && step.Ranged == nil:
			next, _, err := s.ApplyMeleeAttack(r, *step.Melee)
			return next, err
		default:
			return phase.State{}, apperrors.New(apperrors.CodeInvalidArgument, "step must carry exactly one action")
		}
	}
}

// FoldPhase applies steps to a phase.
func FoldPhase(genesis phase.State, r phase.Rules, steps []Step) (phase.State, error) {
	return Fold(genesis, PhaseTransition(r), steps)
}

// FoldTurn folds completed phases into a turn.
func FoldTurn(genesis turn.State, phases []phase.State) (turn.State, error) {
	return Fold(genesis, turn.State.ApplyPhase, phases)
}

// FoldGame folds completed turns into a game.
func FoldGame(genesis game.State, turns []turn.State) (game.State, error) {
	return Fold(genesis, game.State.ApplyTurn, turns)
}
