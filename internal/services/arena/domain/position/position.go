// Package position encodes grid coordinates: their commitment, their Merkle
// key in the arena tree and integer distance checks.
package position

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
)

// maxSquaredAxis is the largest axis delta whose square fits in a uint32.
const maxSquaredAxis = 0xFFFF

// Position is a cell on the arena grid.
type Position struct {
	X uint32
	Y uint32
}

// New returns the position at (x, y).
func New(x, y uint32) Position {
	return Position{X: x, Y: y}
}

// Hash commits to (x, y).
func (p Position) Hash() field.Element {
	return field.Hash(field.FromUint64(uint64(p.X)), field.FromUint64(uint64(p.Y)))
}

// MerkleKey is the row-major index y*width + x.
func (p Position) MerkleKey(width uint32) uint64 {
	return uint64(p.Y)*uint64(width) + uint64(p.X)
}

// InBounds reports whether p lies inside a width×height arena.
func (p Position) InBounds(width, height uint32) bool {
	return p.X < width && p.Y < height
}

// String renders p as "(x,y)".
func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// VerifyDistance reports whether asserted is the floor of the Euclidean
// distance between a and b: asserted² ≤ dx²+dy² < (asserted+1)². It returns an
// OVERFLOW error when dx²+dy² does not fit in a uint32.
func VerifyDistance(a, b Position, asserted uint32) (bool, error) {
	dx := absDiff(a.X, b.X)
	dy := absDiff(a.Y, b.Y)
	if dx > maxSquaredAxis || dy > maxSquaredAxis {
		return false, overflow(a, b)
	}
	sq := uint64(dx)*uint64(dx) + uint64(dy)*uint64(dy)
	if sq > math.MaxUint32 {
		return false, overflow(a, b)
	}
	// sq < 2^32, so any asserted ≥ 2^16 overshoots.
	if asserted > maxSquaredAxis {
		return false, nil
	}
	d := uint64(asserted)
	return d*d <= sq && sq < (d+1)*(d+1), nil
}

// absDiff computes |a-b| by choosing the subtraction order rather than
// going through signed arithmetic.
func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}

func overflow(a, b Position) error {
	return apperrors.WithMetadata(apperrors.CodeOverflow,
		fmt.Sprintf("squared distance between %s and %s exceeds uint32", a, b),
		map[string]string{"from": a.String(), "to": b.String()},
	)
}

type wirePosition struct {
	X string `json:"x"`
	Y string `json:"y"`
}

// MarshalJSON encodes coordinates as decimal strings.
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal(wirePosition{
		X: strconv.FormatUint(uint64(p.X), 10),
		Y: strconv.FormatUint(uint64(p.Y), 10),
	})
}

// UnmarshalJSON decodes coordinates from decimal strings.
func (p *Position) UnmarshalJSON(data []byte) error {
	var w wirePosition
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	x, err := strconv.ParseUint(w.X, 10, 32)
	if err != nil {
		return fmt.Errorf("position x: %w", err)
	}
	y, err := strconv.ParseUint(w.Y, 10, 32)
	if err != nil {
		return fmt.Errorf("position y: %w", err)
	}
	*p = Position{X: uint32(x), Y: uint32(y)}
	return nil
}
