// Package action defines signed player actions and the rules for accepting
// them: a valid signature from the acting player, a strictly increasing nonce
// and the action type expected by the entry point.
package action

import (
	"fmt"

	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/keys"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/position"
)

// Type identifies what an action does.
type Type uint8

const (
	Move         Type = 0
	RangedAttack Type = 1
	MeleeAttack  Type = 2
)

// String returns the action type name.
func (t Type) String() string {
	switch t {
	case Move:
		return "move"
	case RangedAttack:
		return "ranged_attack"
	case MeleeAttack:
		return "melee_attack"
	default:
		return fmt.Sprintf("action_type(%d)", uint8(t))
	}
}

// Valid reports whether t is a known action type.
func (t Type) Valid() bool {
	return t <= MeleeAttack
}

// Action is one player intent. Params commits to the action's argument: the
// destination hash for moves and the target piece id for attacks.
type Action struct {
	Nonce  uint64
	Type   Type
	Params field.Element
	Piece  uint64
}

// Signed pairs an action with its player signature.
type Signed struct {
	Action    Action
	Signature keys.Signature
}

// MoveParams is the params value of a move to dest.
func MoveParams(dest position.Position) field.Element {
	return dest.Hash()
}

// TargetParams is the params value of an attack on the piece with targetID.
func TargetParams(targetID uint64) field.Element {
	return field.FromUint64(targetID)
}

// NewMove builds a move action for pieceID.
func NewMove(nonce, pieceID uint64, dest position.Position) Action {
	return Action{Nonce: nonce, Type: Move, Params: MoveParams(dest), Piece: pieceID}
}

// NewAttack builds a ranged or melee attack action.
func NewAttack(nonce uint64, t Type, attackerID, targetID uint64) Action {
	return Action{Nonce: nonce, Type: t, Params: TargetParams(targetID), Piece: attackerID}
}

// SignaturePayload lists every field in the fixed signing order.
func (a Action) SignaturePayload() []field.Element {
	return []field.Element{
		field.FromUint64(a.Nonce),
		field.FromUint64(uint64(a.Type)),
		a.Params,
		field.FromUint64(a.Piece),
	}
}

// Hash commits to the action.
func (a Action) Hash() field.Element {
	return field.Hash(a.SignaturePayload()...)
}

// Sign signs the action with the acting player's key.
func (a Action) Sign(k keys.PrivateKey) (Signed, error) {
	sig, err := k.Sign(a.SignaturePayload())
	if err != nil {
		return Signed{}, err
	}
	return Signed{Action: a, Signature: sig}, nil
}

// Verify reports whether sig signs a under signer.
func Verify(a Action, sig keys.Signature, signer keys.PublicKey) bool {
	return signer.Verify(sig, a.SignaturePayload())
}

// Authenticate accepts s only when it is signed by signer, its nonce is
// greater than lastNonce and its type is want.
func Authenticate(s Signed, signer keys.PublicKey, lastNonce uint64, want Type) error {
	if !Verify(s.Action, s.Signature, signer) {
		return apperrors.New(apperrors.CodeAuthenticationFailure, "action signature does not verify for the acting player")
	}
	if s.Action.Nonce <= lastNonce {
		return apperrors.WithMetadata(apperrors.CodeOrderingViolation,
			fmt.Sprintf("action nonce %d is not greater than %d", s.Action.Nonce, lastNonce),
			map[string]string{"nonce": fmt.Sprint(s.Action.Nonce), "last_nonce": fmt.Sprint(lastNonce)},
		)
	}
	if s.Action.Type != want {
		return apperrors.New(apperrors.CodeAuthenticationFailure,
			fmt.Sprintf("action type %s used for %s", s.Action.Type, want))
	}
	return nil
}
