// Package piece models the pieces on the board. Every type here is a plain
// value: assigning a Piece copies its position, unit and condition, so a
// modified copy never aliases the original.
package piece

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/keys"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/position"
)

// Piece is a unit placed on the board and owned by a player.
type Piece struct {
	ID        uint64
	Owner     keys.PublicKey
	Position  position.Position
	BaseUnit  Unit
	Condition Condition
}

// New places a fresh unit whose condition equals its base stats.
func New(id uint64, owner keys.PublicKey, pos position.Position, unit Unit) Piece {
	return Piece{
		ID:        id,
		Owner:     owner,
		Position:  pos,
		BaseUnit:  unit,
		Condition: Condition(unit.Stats),
	}
}

// Hash is the leaf value of the piece in the pieces tree.
func (p Piece) Hash() field.Element {
	return field.Hash(
		field.FromUint64(p.ID),
		p.Owner.Commitment(),
		p.Position.Hash(),
		p.BaseUnit.Hash(),
		p.Condition.Hash(),
	)
}

// WithPosition returns a copy of p standing on pos.
func (p Piece) WithPosition(pos position.Position) Piece {
	p.Position = pos
	return p
}

// WithCondition returns a copy of p in condition c.
func (p Piece) WithCondition(c Condition) Piece {
	p.Condition = c
	return p
}

// Alive reports whether the piece has health left.
func (p Piece) Alive() bool {
	return p.Condition.Health > 0
}

type wirePiece struct {
	ID        string            `json:"id"`
	Owner     keys.PublicKey    `json:"playerPublicKey"`
	Position  position.Position `json:"position"`
	BaseUnit  Unit              `json:"baseUnit"`
	Condition Stats             `json:"condition"`
}

// MarshalJSON encodes the piece with its id as a decimal string and the owner
// as base58.
func (p Piece) MarshalJSON() ([]byte, error) {
	return json.Marshal(wirePiece{
		ID:        strconv.FormatUint(p.ID, 10),
		Owner:     p.Owner,
		Position:  p.Position,
		BaseUnit:  p.BaseUnit,
		Condition: Stats(p.Condition),
	})
}

// UnmarshalJSON decodes a piece encoded by MarshalJSON.
func (p *Piece) UnmarshalJSON(data []byte) error {
	var w wirePiece
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	id, err := strconv.ParseUint(w.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("piece id: %w", err)
	}
	*p = Piece{
		ID:        id,
		Owner:     w.Owner,
		Position:  w.Position,
		BaseUnit:  w.BaseUnit,
		Condition: Condition(w.Condition),
	}
	return nil
}
