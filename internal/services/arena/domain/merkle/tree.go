// Package merkle implements a fixed-height sparse Merkle tree whose witnesses
// can recompute the root for any hypothetical value of their leaf.
package merkle

import (
	"fmt"

	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
)

// MaxHeight bounds tree height so leaf indexes fit in a uint64.
const MaxHeight = 64

// Tree is a sparse Merkle tree of a fixed height. A tree of height h has
// 2^(h-1) leaves; absent leaves hold zero.
type Tree struct {
	height int
	// nodes[0] are the leaves, nodes[height-1] holds the root. Only nodes that
	// differ from the empty subtree of their level are stored.
	nodes []map[uint64]field.Element
	empty []field.Element
}

// New returns an empty tree of the given height.
func New(height int) (*Tree, error) {
	if height < 2 || height > MaxHeight {
		return nil, fmt.Errorf("merkle tree height must be within [2, %d], got %d", MaxHeight, height)
	}
	t := &Tree{
		height: height,
		nodes:  make([]map[uint64]field.Element, height),
		empty:  emptyHashes(height),
	}
	for i := range t.nodes {
		t.nodes[i] = map[uint64]field.Element{}
	}
	return t, nil
}

func emptyHashes(height int) []field.Element {
	empty := make([]field.Element, height)
	for i := 1; i < height; i++ {
		empty[i] = field.Hash(empty[i-1], empty[i-1])
	}
	return empty
}

// Height returns the number of levels, leaves included.
func (t *Tree) Height() int {
	return t.height
}

// LeafCount returns the number of addressable leaves.
func (t *Tree) LeafCount() uint64 {
	return uint64(1) << (t.height - 1)
}

// Root returns the current root.
func (t *Tree) Root() field.Element {
	return t.node(t.height-1, 0)
}

// Get returns the leaf at index, zero when unset.
func (t *Tree) Get(index uint64) (field.Element, error) {
	if err := t.checkIndex(index); err != nil {
		return field.Element{}, err
	}
	return t.node(0, index), nil
}

// Set writes a leaf and rehashes its path to the root.
func (t *Tree) Set(index uint64, value field.Element) error {
	if err := t.checkIndex(index); err != nil {
		return err
	}
	t.put(0, index, value)
	for level := 1; level < t.height; level++ {
		index >>= 1
		left := t.node(level-1, index*2)
		right := t.node(level-1, index*2+1)
		t.put(level, index, field.Hash(left, right))
	}
	return nil
}

// Witness returns the authentication path of the leaf at index.
func (t *Tree) Witness(index uint64) (Witness, error) {
	if err := t.checkIndex(index); err != nil {
		return Witness{}, err
	}
	w := Witness{
		Path:   make([]field.Element, t.height-1),
		IsLeft: make([]bool, t.height-1),
	}
	for level := 0; level < t.height-1; level++ {
		isLeft := index%2 == 0
		w.IsLeft[level] = isLeft
		if isLeft {
			w.Path[level] = t.node(level, index+1)
		} else {
			w.Path[level] = t.node(level, index-1)
		}
		index >>= 1
	}
	return w, nil
}

// Clone returns an independent deep copy.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		height: t.height,
		nodes:  make([]map[uint64]field.Element, t.height),
		empty:  t.empty,
	}
	for i, level := range t.nodes {
		copied := make(map[uint64]field.Element, len(level))
		for k, v := range level {
			copied[k] = v
		}
		c.nodes[i] = copied
	}
	return c
}

func (t *Tree) checkIndex(index uint64) error {
	if index >= t.LeafCount() {
		return fmt.Errorf("merkle index %d out of range for %d leaves", index, t.LeafCount())
	}
	return nil
}

func (t *Tree) node(level int, index uint64) field.Element {
	if v, ok := t.nodes[level][index]; ok {
		return v
	}
	return t.empty[level]
}

func (t *Tree) put(level int, index uint64, value field.Element) {
	if field.Equal(value, t.empty[level]) {
		delete(t.nodes[level], index)
		return
	}
	t.nodes[level][index] = value
}
