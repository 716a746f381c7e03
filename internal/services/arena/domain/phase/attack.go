package phase

import (
	"fmt"

	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/action"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/attack"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/board"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/keys"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/merkle"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/piece"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/position"
)

// Attack is everything needed to verify one ranged or melee attack.
type Attack struct {
	Action          action.Signed        `json:"action"`
	Attacker        piece.Piece          `json:"attacker"`
	Target          piece.Piece          `json:"target"`
	AttackerWitness merkle.Witness       `json:"attackerWitness"`
	TargetWitness   merkle.Witness       `json:"targetWitness"`
	Distance        uint32               `json:"distance"`
	Roll            attack.EncryptedRoll `json:"roll"`
	// Recipient decrypts Roll. It belongs to the authority, never a player,
	// and is never serialized.
	Recipient keys.PrivateKey `json:"-"`
}

// AttackReport describes an accepted attack.
type AttackReport struct {
	Dice    attack.Dice    `json:"dice"`
	Outcome attack.Outcome `json:"outcome"`
	// Target is the target piece after damage.
	Target piece.Piece `json:"target"`
}

// ApplyRangedAttack verifies a ranged attack and applies its damage.
func (s State) ApplyRangedAttack(r Rules, a Attack) (State, AttackReport, error) {
	return s.applyAttack(r, a, action.RangedAttack, a.Attacker.Condition.RangedAttackRange, attack.RangedProfile(a.Attacker.Condition))
}

// ApplyMeleeAttack verifies a melee attack and applies its damage.
func (s State) ApplyMeleeAttack(r Rules, a Attack) (State, AttackReport, error) {
	return s.applyAttack(r, a, action.MeleeAttack, r.MeleeRange, attack.MeleeProfile(a.Attacker.Condition))
}

func (s State) applyAttack(r Rules, a Attack, kind action.Type, maxRange uint32, profile attack.Profile) (State, AttackReport, error) {
	attacker, target := a.Attacker, a.Target
	if attacker.ID == target.ID {
		return State{}, AttackReport{}, apperrors.New(apperrors.CodeConsistencyFailure, "attacker and target are the same piece")
	}
	// Both witnesses must resolve to one root and that root must be current.
	if err := checkWitness(a.AttackerWitness, board.PiecesTreeHeight, attacker.Hash(), s.CurrentPieces, attacker.ID, "attacker"); err != nil {
		return State{}, AttackReport{}, err
	}
	if err := checkWitness(a.TargetWitness, board.PiecesTreeHeight, target.Hash(), s.CurrentPieces, target.ID, "target"); err != nil {
		return State{}, AttackReport{}, err
	}

	if !attacker.Owner.Equal(s.Player) {
		return State{}, AttackReport{}, apperrors.New(apperrors.CodeAuthenticationFailure,
			fmt.Sprintf("piece %d is not owned by the acting player", attacker.ID))
	}

	ok, err := position.VerifyDistance(attacker.Position, target.Position, a.Distance)
	if err != nil {
		return State{}, AttackReport{}, err
	}
	if !ok {
		return State{}, AttackReport{}, apperrors.New(apperrors.CodeRangeViolation,
			fmt.Sprintf("distance %d is not the distance from %s to %s", a.Distance, attacker.Position, target.Position))
	}
	if a.Distance > maxRange {
		return State{}, AttackReport{}, apperrors.New(apperrors.CodeRangeViolation,
			fmt.Sprintf("%s distance %d exceeds range %d", kind, a.Distance, maxRange))
	}

	if err := action.Authenticate(a.Action, s.Player, s.ActionsNonce, kind); err != nil {
		return State{}, AttackReport{}, err
	}
	if err := checkSubject(a.Action.Action, attacker.ID, action.TargetParams(target.ID)); err != nil {
		return State{}, AttackReport{}, err
	}

	dice, err := attack.Decrypt(a.Roll, r.Oracles, a.Recipient)
	if err != nil {
		return State{}, AttackReport{}, err
	}
	outcome := attack.Resolve(dice, profile, target.Condition.SaveRoll)
	wounded := target.WithCondition(target.Condition.WithHealth(attack.ApplyDamage(target.Condition.Health, outcome.Damage)))

	next := s
	next.CurrentPieces = a.TargetWitness.RootIfLeafWere(wounded.Hash())
	next.ActionsNonce = a.Action.Action.Nonce
	return next, AttackReport{Dice: dice, Outcome: outcome, Target: wounded}, nil
}
