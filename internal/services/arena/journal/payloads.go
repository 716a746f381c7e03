package journal

import (
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/game"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/keys"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/phase"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/piece"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/turn"
)

// MatchCreated opens a match.
type MatchCreated struct {
	Game       game.State     `json:"game"`
	Pieces     []piece.Piece  `json:"pieces"`
	MeleeRange uint32         `json:"meleeRange"`
	Authority  keys.PublicKey `json:"authorityPublicKey"`
	// Certificate attests the genesis state when the match is certified.
	Certificate string `json:"certificate,omitempty"`
}

// MoveAccepted records an accepted move and the phase it produced.
type MoveAccepted struct {
	Move  phase.Move  `json:"move"`
	Phase phase.State `json:"phase"`
}

// AttackAccepted records an accepted ranged or melee attack.
type AttackAccepted struct {
	Attack phase.Attack       `json:"attack"`
	Report phase.AttackReport `json:"report"`
	Phase  phase.State        `json:"phase"`
}

// PhaseEnded records a phase folded into its turn.
type PhaseEnded struct {
	Phase phase.State `json:"phase"`
	Turn  turn.State  `json:"turn"`
}

// TurnEnded records a turn folded into the game.
type TurnEnded struct {
	Turn        turn.State `json:"turn"`
	Game        game.State `json:"game"`
	Certificate string     `json:"certificate,omitempty"`
}
