package board

import (
	"fmt"
	"math/bits"

	"github.com/bits-and-blooms/bitset"

	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/merkle"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/position"
)

// ArenaStore is the occupancy tree of a width×height grid. Leaves are 1 for
// occupied cells and 0 otherwise; a bitset mirrors the leaves for counting
// and lookups without walking the tree.
type ArenaStore struct {
	width    uint32
	height   uint32
	tree     *merkle.Tree
	occupied *bitset.BitSet
}

// ArenaTreeHeight returns the smallest tree height whose leaves cover
// width×height cells. An 800×800 arena needs height 21.
func ArenaTreeHeight(width, height uint32) int {
	cells := uint64(width) * uint64(height)
	if cells <= 1 {
		return 2
	}
	return bits.Len64(cells-1) + 1
}

// NewArenaStore returns an empty arena.
func NewArenaStore(width, height uint32) (*ArenaStore, error) {
	if width == 0 || height == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "arena dimensions must be positive")
	}
	tree, err := merkle.New(ArenaTreeHeight(width, height))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, "arena tree", err)
	}
	return &ArenaStore{
		width:    width,
		height:   height,
		tree:     tree,
		occupied: bitset.New(uint(uint64(width) * uint64(height))),
	}, nil
}

// Width returns the arena width.
func (s *ArenaStore) Width() uint32 { return s.width }

// Height returns the arena height.
func (s *ArenaStore) Height() uint32 { return s.height }

// SetOccupied marks pos as occupied or vacant.
func (s *ArenaStore) SetOccupied(pos position.Position, occupied bool) error {
	key, err := s.key(pos)
	if err != nil {
		return err
	}
	if err := s.tree.Set(key, field.FromBool(occupied)); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "set arena leaf", err)
	}
	s.occupied.SetTo(uint(key), occupied)
	return nil
}

// Occupied reports whether pos is occupied. Out-of-bounds cells are vacant.
func (s *ArenaStore) Occupied(pos position.Position) bool {
	if !pos.InBounds(s.width, s.height) {
		return false
	}
	return s.occupied.Test(uint(pos.MerkleKey(s.width)))
}

// OccupiedCount returns the number of occupied cells.
func (s *ArenaStore) OccupiedCount() uint {
	return s.occupied.Count()
}

// Root returns the arena root.
func (s *ArenaStore) Root() field.Element {
	return s.tree.Root()
}

// Witness returns the authentication path of pos.
func (s *ArenaStore) Witness(pos position.Position) (merkle.Witness, error) {
	key, err := s.key(pos)
	if err != nil {
		return merkle.Witness{}, err
	}
	w, err := s.tree.Witness(key)
	if err != nil {
		return merkle.Witness{}, apperrors.Wrap(apperrors.CodeInvalidArgument, "arena witness", err)
	}
	return w, nil
}

// ComputeRoot returns the root the arena would have if pos held leaf.
func (s *ArenaStore) ComputeRoot(pos position.Position, leaf field.Element) (field.Element, error) {
	w, err := s.Witness(pos)
	if err != nil {
		return field.Element{}, err
	}
	return w.RootIfLeafWere(leaf), nil
}

// Clone deep-copies the store.
func (s *ArenaStore) Clone() *ArenaStore {
	return &ArenaStore{
		width:    s.width,
		height:   s.height,
		tree:     s.tree.Clone(),
		occupied: s.occupied.Clone(),
	}
}

func (s *ArenaStore) key(pos position.Position) (uint64, error) {
	if !pos.InBounds(s.width, s.height) {
		return 0, apperrors.New(apperrors.CodeRangeViolation,
			fmt.Sprintf("position %s outside %dx%d arena", pos, s.width, s.height))
	}
	return pos.MerkleKey(s.width), nil
}
