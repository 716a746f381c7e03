// Package board holds the authoritative trees of a match: the pieces tree
// keyed by piece id and the arena occupancy tree keyed by grid cell. Only the
// authority running a match owns them; state machines see their roots.
package board

import (
	"fmt"

	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/merkle"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/piece"
)

// PiecesTreeHeight sizes the pieces tree for 16 pieces.
const PiecesTreeHeight = 5

// PieceStore is the pieces tree plus the pieces it commits to.
type PieceStore struct {
	tree   *merkle.Tree
	pieces map[uint64]piece.Piece
}

// NewPieceStore returns an empty pieces tree.
func NewPieceStore() *PieceStore {
	tree, err := merkle.New(PiecesTreeHeight)
	if err != nil {
		panic(err) // constant height
	}
	return &PieceStore{tree: tree, pieces: map[uint64]piece.Piece{}}
}

// Capacity is the number of piece ids the store can hold.
func (s *PieceStore) Capacity() uint64 {
	return s.tree.LeafCount()
}

// Set writes a raw leaf value for id.
func (s *PieceStore) Set(id uint64, leaf field.Element) error {
	if err := s.tree.Set(id, leaf); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "set piece leaf", err)
	}
	return nil
}

// Put stores p and writes its hash as the leaf for p.ID.
func (s *PieceStore) Put(p piece.Piece) error {
	if err := s.Set(p.ID, p.Hash()); err != nil {
		return err
	}
	s.pieces[p.ID] = p
	return nil
}

// Piece returns the stored piece with id.
func (s *PieceStore) Piece(id uint64) (piece.Piece, error) {
	p, ok := s.pieces[id]
	if !ok {
		return piece.Piece{}, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("piece %d not found", id))
	}
	return p, nil
}

// Pieces returns the stored pieces ordered by id.
func (s *PieceStore) Pieces() []piece.Piece {
	out := make([]piece.Piece, 0, len(s.pieces))
	for id := uint64(0); id < s.Capacity(); id++ {
		if p, ok := s.pieces[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Root returns the pieces root.
func (s *PieceStore) Root() field.Element {
	return s.tree.Root()
}

// Witness returns the authentication path for id.
func (s *PieceStore) Witness(id uint64) (merkle.Witness, error) {
	w, err := s.tree.Witness(id)
	if err != nil {
		return merkle.Witness{}, apperrors.Wrap(apperrors.CodeInvalidArgument, "piece witness", err)
	}
	return w, nil
}

// ComputeRoot returns the root the tree would have if id held leaf.
func (s *PieceStore) ComputeRoot(id uint64, leaf field.Element) (field.Element, error) {
	w, err := s.Witness(id)
	if err != nil {
		return field.Element{}, err
	}
	return w.RootIfLeafWere(leaf), nil
}

// Clone deep-copies the store.
func (s *PieceStore) Clone() *PieceStore {
	pieces := make(map[uint64]piece.Piece, len(s.pieces))
	for id, p := range s.pieces {
		pieces[id] = p
	}
	return &PieceStore{tree: s.tree.Clone(), pieces: pieces}
}
