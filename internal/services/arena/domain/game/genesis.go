package game

import (
	"fmt"

	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/board"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/keys"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/piece"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/position"
)

// Board is the authority's copy of the trees behind a game's roots.
type Board struct {
	Pieces *board.PieceStore
	Arena  *board.ArenaStore
}

// Clone deep-copies both stores.
func (b Board) Clone() Board {
	return Board{Pieces: b.Pieces.Clone(), Arena: b.Arena.Clone()}
}

// Genesis places the starting pieces and returns the game committed to them
// together with the stores that back it.
func Genesis(player1, player2 keys.PublicKey, width, length uint32, placements []piece.Piece) (State, Board, error) {
	if player1.Equal(player2) {
		return State{}, Board{}, apperrors.New(apperrors.CodeInvalidArgument, "players must have distinct keys")
	}
	pieces := board.NewPieceStore()
	arena, err := board.NewArenaStore(width, length)
	if err != nil {
		return State{}, Board{}, err
	}
	seen := make(map[uint64]bool, len(placements))
	for _, p := range placements {
		if seen[p.ID] {
			return State{}, Board{}, apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("duplicate piece id %d", p.ID))
		}
		seen[p.ID] = true
		if !p.Owner.Equal(player1) && !p.Owner.Equal(player2) {
			return State{}, Board{}, apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("piece %d is owned by neither player", p.ID))
		}
		if arena.Occupied(p.Position) {
			return State{}, Board{}, apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("piece %d placed on occupied cell %s", p.ID, p.Position))
		}
		if err := arena.SetOccupied(p.Position, true); err != nil {
			return State{}, Board{}, err
		}
		if err := pieces.Put(p); err != nil {
			return State{}, Board{}, err
		}
	}
	return New(pieces.Root(), arena.Root(), player1, player2, width, length), Board{Pieces: pieces, Arena: arena}, nil
}

// StandardPlacements is the four-corner opening: two pieces per player on
// the corners of a 16x16 square at the origin.
func StandardPlacements(player1, player2 keys.PublicKey, unit piece.Unit) []piece.Piece {
	return []piece.Piece{
		piece.New(1, player1, position.New(0, 0), unit),
		piece.New(2, player1, position.New(0, 15), unit),
		piece.New(3, player2, position.New(15, 0), unit),
		piece.New(4, player2, position.New(15, 15), unit),
	}
}
