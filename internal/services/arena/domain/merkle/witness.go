package merkle

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
)

// Witness is an authentication path from one leaf to the root. It does not
// carry the leaf value: callers ask for the root a given value would produce.
type Witness struct {
	// Path holds the sibling at each level, leaves first.
	Path []field.Element
	// IsLeft records whether the path node at each level is a left child.
	IsLeft []bool
}

// RootIfLeafWere returns the root the tree would have if the witnessed leaf
// held value and every other leaf were unchanged. Levels missing a direction
// are treated as right children; callers check Valid first.
func (w Witness) RootIfLeafWere(value field.Element) field.Element {
	cur := value
	for i, sibling := range w.Path {
		if i < len(w.IsLeft) && w.IsLeft[i] {
			cur = field.Hash(cur, sibling)
		} else {
			cur = field.Hash(sibling, cur)
		}
	}
	return cur
}

// Index returns the leaf index the path leads to. Directions beyond the
// path or beyond 64 levels are ignored.
func (w Witness) Index() uint64 {
	var index uint64
	for i, isLeft := range w.IsLeft {
		if i >= len(w.Path) || i >= 64 {
			break
		}
		if !isLeft {
			index |= uint64(1) << i
		}
	}
	return index
}

// RootAndIndex returns RootIfLeafWere(value) and Index together.
func (w Witness) RootAndIndex(value field.Element) (field.Element, uint64) {
	return w.RootIfLeafWere(value), w.Index()
}

// Height returns the height of the tree the witness was taken from.
func (w Witness) Height() int {
	return len(w.Path) + 1
}

// Valid reports whether the witness is well formed for a tree of height h.
func (w Witness) Valid(height int) bool {
	return len(w.Path) == height-1 && len(w.IsLeft) == len(w.Path)
}

type wireWitness struct {
	Path   []string `json:"path"`
	IsLeft []bool   `json:"isLeft"`
}

// MarshalJSON encodes siblings as decimal strings.
func (w Witness) MarshalJSON() ([]byte, error) {
	out := wireWitness{Path: make([]string, len(w.Path)), IsLeft: w.IsLeft}
	if out.IsLeft == nil {
		out.IsLeft = []bool{}
	}
	for i, e := range w.Path {
		out.Path[i] = field.Decimal(e)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a witness encoded by MarshalJSON.
func (w *Witness) UnmarshalJSON(data []byte) error {
	var in wireWitness
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if len(in.Path) != len(in.IsLeft) {
		return fmt.Errorf("witness path has %d siblings but %d directions", len(in.Path), len(in.IsLeft))
	}
	path := make([]field.Element, len(in.Path))
	for i, s := range in.Path {
		e, err := field.ParseDecimal(s)
		if err != nil {
			return fmt.Errorf("witness path[%d]: %w", i, err)
		}
		path[i] = e
	}
	*w = Witness{Path: path, IsLeft: in.IsLeft}
	return nil
}
