// Package field wraps the bn254 scalar field used for every commitment in the
// arena: positions, pieces, actions, Merkle nodes and layer states all reduce
// to field elements hashed with MiMC.
package field

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// Element is a bn254 scalar field element.
type Element = fr.Element

// Zero returns the additive identity.
func Zero() Element {
	return Element{}
}

// One returns the multiplicative identity.
func One() Element {
	var e Element
	e.SetOne()
	return e
}

// FromUint64 lifts v into the field.
func FromUint64(v uint64) Element {
	var e Element
	e.SetUint64(v)
	return e
}

// FromBool lifts b into {0, 1}.
func FromBool(b bool) Element {
	if b {
		return One()
	}
	return Zero()
}

// ToUint64 returns the element as a uint64 when it fits.
func ToUint64(e Element) (uint64, bool) {
	if !e.IsUint64() {
		return 0, false
	}
	return e.Uint64(), true
}

// Hash commits to an ordered list of elements.
func Hash(elems ...Element) Element {
	h := mimc.NewMiMC()
	for i := range elems {
		b := elems[i].Bytes()
		// Bytes are canonical and reduced, the only input Write rejects.
		_, _ = h.Write(b[:])
	}
	var out Element
	out.SetBytes(h.Sum(nil))
	return out
}

// Decimal renders e as its canonical non-negative decimal string.
func Decimal(e Element) string {
	var b big.Int
	return e.BigInt(&b).String()
}

// ParseDecimal parses a canonical decimal string. Values must be within
// [0, modulus) and carry no sign or whitespace.
func ParseDecimal(s string) (Element, error) {
	var e Element
	if s == "" {
		return e, fmt.Errorf("field element: empty string")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return e, fmt.Errorf("field element %q: not a decimal integer", s)
		}
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return e, fmt.Errorf("field element %q: not a decimal integer", s)
	}
	if v.Cmp(fr.Modulus()) >= 0 {
		return e, fmt.Errorf("field element %q: not below modulus", s)
	}
	e.SetBigInt(v)
	return e, nil
}

// Equal reports whether a and b are the same element.
func Equal(a, b Element) bool {
	return a.Equal(&b)
}
