package phase

import (
	"fmt"

	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/action"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/board"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/merkle"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/piece"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/position"
)

// Move is everything needed to verify one move.
type Move struct {
	Action        action.Signed     `json:"action"`
	Piece         piece.Piece       `json:"piece"`
	PieceWitness  merkle.Witness    `json:"pieceWitness"`
	OriginWitness merkle.Witness    `json:"originWitness"`
	DestWitness   merkle.Witness    `json:"destinationWitness"`
	Destination   position.Position `json:"destination"`
	Distance      uint32            `json:"distance"`
}

// ApplyMove verifies a move and returns the phase with the piece relocated.
// The origin witness proves the piece's cell is occupied; the destination
// witness proves the target cell is vacant in the same tree, which holds
// because both witnesses agree on the root once their own leaves are zero.
func (s State) ApplyMove(r Rules, m Move) (State, error) {
	p := m.Piece
	if !p.Owner.Equal(s.Player) {
		return State{}, apperrors.New(apperrors.CodeAuthenticationFailure,
			fmt.Sprintf("piece %d is not owned by the acting player", p.ID))
	}
	if !m.Destination.InBounds(r.ArenaWidth, r.ArenaHeight) {
		return State{}, apperrors.New(apperrors.CodeRangeViolation,
			fmt.Sprintf("destination %s outside %dx%d arena", m.Destination, r.ArenaWidth, r.ArenaHeight))
	}
	ok, err := position.VerifyDistance(p.Position, m.Destination, m.Distance)
	if err != nil {
		return State{}, err
	}
	if !ok {
		return State{}, apperrors.New(apperrors.CodeRangeViolation,
			fmt.Sprintf("distance %d is not the distance from %s to %s", m.Distance, p.Position, m.Destination))
	}
	if m.Distance > p.Condition.Movement {
		return State{}, apperrors.New(apperrors.CodeRangeViolation,
			fmt.Sprintf("distance %d exceeds movement %d", m.Distance, p.Condition.Movement))
	}

	if err := action.Authenticate(m.Action, s.Player, s.ActionsNonce, action.Move); err != nil {
		return State{}, err
	}
	if err := checkSubject(m.Action.Action, p.ID, action.MoveParams(m.Destination)); err != nil {
		return State{}, err
	}

	if err := checkWitness(m.PieceWitness, board.PiecesTreeHeight, p.Hash(), s.CurrentPieces, p.ID, "piece"); err != nil {
		return State{}, err
	}
	arenaHeight := board.ArenaTreeHeight(r.ArenaWidth, r.ArenaHeight)
	originKey := p.Position.MerkleKey(r.ArenaWidth)
	if err := checkWitness(m.OriginWitness, arenaHeight, field.One(), s.CurrentArena, originKey, "origin cell"); err != nil {
		return State{}, err
	}
	destKey := m.Destination.MerkleKey(r.ArenaWidth)
	if destKey == originKey {
		return State{}, apperrors.New(apperrors.CodeConsistencyFailure, "destination is the occupied origin cell")
	}
	vacated := m.OriginWitness.RootIfLeafWere(field.Zero())
	if err := checkWitness(m.DestWitness, arenaHeight, field.Zero(), vacated, destKey, "destination cell"); err != nil {
		return State{}, err
	}

	moved := p.WithPosition(m.Destination)
	next := s
	next.CurrentArena = m.DestWitness.RootIfLeafWere(field.One())
	next.CurrentPieces = m.PieceWitness.RootIfLeafWere(moved.Hash())
	next.ActionsNonce = m.Action.Action.Nonce
	return next, nil
}

// checkSubject binds the signed action to the piece acting and its argument.
func checkSubject(a action.Action, pieceID uint64, params field.Element) error {
	if a.Piece != pieceID {
		return apperrors.New(apperrors.CodeAuthenticationFailure,
			fmt.Sprintf("action signed for piece %d applied to piece %d", a.Piece, pieceID))
	}
	if !field.Equal(a.Params, params) {
		return apperrors.New(apperrors.CodeAuthenticationFailure, "action params do not match the requested target")
	}
	return nil
}

// checkWitness requires w to be a path of a tree of the given height that
// resolves leaf to root at key.
func checkWitness(w merkle.Witness, height int, leaf, root field.Element, key uint64, what string) error {
	if !w.Valid(height) {
		return apperrors.New(apperrors.CodeConsistencyFailure,
			fmt.Sprintf("%s witness has %d siblings and %d directions, want %d", what, len(w.Path), len(w.IsLeft), height-1))
	}
	got, index := w.RootAndIndex(leaf)
	if index != key {
		return apperrors.New(apperrors.CodeConsistencyFailure,
			fmt.Sprintf("%s witness is for key %d, want %d", what, index, key))
	}
	if !field.Equal(got, root) {
		return apperrors.New(apperrors.CodeConsistencyFailure,
			fmt.Sprintf("%s witness does not resolve to the expected root", what))
	}
	return nil
}
