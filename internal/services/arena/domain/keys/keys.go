// Package keys provides player and oracle keys: EdDSA over the bn254 twisted
// Edwards curve with MiMC as the challenge hash, so every signed message is an
// ordered list of field elements.
package keys

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"github.com/mr-tron/base58"

	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
)

const (
	publicKeySize  = 32
	privateKeySize = 96
	signatureSize  = 64
)

// ErrInvalidKey reports a key that does not decode to a curve point.
var ErrInvalidKey = errors.New("invalid key")

// PublicKey identifies a player or an oracle.
type PublicKey struct {
	key eddsa.PublicKey
}

// PrivateKey signs actions and decrypts attack rolls.
type PrivateKey struct {
	key eddsa.PrivateKey
}

// Signature is a 64-byte EdDSA signature (compressed R || S).
type Signature [signatureSize]byte

// GenerateKey creates a key pair from r, or crypto/rand when r is nil.
func GenerateKey(r io.Reader) (PrivateKey, error) {
	if r == nil {
		r = rand.Reader
	}
	k, err := eddsa.GenerateKey(r)
	if err != nil {
		return PrivateKey{}, fmt.Errorf("generate key: %w", err)
	}
	return PrivateKey{key: *k}, nil
}

// Public returns the public half of k.
func (k PrivateKey) Public() PublicKey {
	return PublicKey{key: k.key.PublicKey}
}

// Scalar returns the secret scalar, used as the ElGamal decryption key.
func (k PrivateKey) Scalar() *big.Int {
	b := k.key.Bytes()
	return new(big.Int).SetBytes(b[publicKeySize : 2*publicKeySize])
}

// String renders the private key as base58. Never log it.
func (k PrivateKey) String() string {
	return base58.Encode(k.key.Bytes())
}

// ParsePrivateKey decodes a base58 private key.
func ParsePrivateKey(s string) (PrivateKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return PrivateKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != privateKeySize {
		return PrivateKey{}, fmt.Errorf("%w: private key must be %d bytes, got %d", ErrInvalidKey, privateKeySize, len(raw))
	}
	var k PrivateKey
	if _, err := k.key.SetBytes(raw); err != nil {
		return PrivateKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return k, nil
}

// Sign signs the ordered field elements.
func (k PrivateKey) Sign(msg []field.Element) (Signature, error) {
	raw, err := k.key.Sign(encode(msg), mimc.NewMiMC())
	if err != nil {
		return Signature{}, fmt.Errorf("sign: %w", err)
	}
	var sig Signature
	copy(sig[:], raw)
	return sig, nil
}

// Point returns the curve point of the key.
func (p PublicKey) Point() twistededwards.PointAffine {
	return p.key.A
}

// PublicKeyFromPoint wraps a curve point.
func PublicKeyFromPoint(pt twistededwards.PointAffine) (PublicKey, error) {
	if !pt.IsOnCurve() {
		return PublicKey{}, fmt.Errorf("%w: point not on curve", ErrInvalidKey)
	}
	return PublicKey{key: eddsa.PublicKey{A: pt}}, nil
}

// Verify reports whether sig signs msg under p. Malformed signatures and keys
// verify as false.
func (p PublicKey) Verify(sig Signature, msg []field.Element) bool {
	ok, err := p.key.Verify(sig[:], encode(msg), mimc.NewMiMC())
	return err == nil && ok
}

// Commitment is the field-element digest of the key used inside hashes.
func (p PublicKey) Commitment() field.Element {
	return field.Hash(p.key.A.X, p.key.A.Y)
}

// Equal reports whether p and q are the same key.
func (p PublicKey) Equal(q PublicKey) bool {
	return p.key.A.Equal(&q.key.A)
}

// IsZero reports whether p is the zero value.
func (p PublicKey) IsZero() bool {
	return p.key.A.X.IsZero() && p.key.A.Y.IsZero()
}

// String renders the compressed key as base58.
func (p PublicKey) String() string {
	return base58.Encode(p.key.Bytes())
}

// ParsePublicKey decodes a base58 public key.
func ParsePublicKey(s string) (PublicKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != publicKeySize {
		return PublicKey{}, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidKey, publicKeySize, len(raw))
	}
	var p PublicKey
	if _, err := p.key.SetBytes(raw); err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if !p.key.A.IsOnCurve() {
		return PublicKey{}, fmt.Errorf("%w: point not on curve", ErrInvalidKey)
	}
	return p, nil
}

// MarshalText implements encoding.TextMarshaler.
func (p PublicKey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// String renders the signature as base58.
func (s Signature) String() string {
	return base58.Encode(s[:])
}

// ParseSignature decodes a base58 signature.
func ParseSignature(str string) (Signature, error) {
	raw, err := base58.Decode(str)
	if err != nil {
		return Signature{}, fmt.Errorf("decode signature: %w", err)
	}
	if len(raw) != signatureSize {
		return Signature{}, fmt.Errorf("signature must be %d bytes, got %d", signatureSize, len(raw))
	}
	var sig Signature
	copy(sig[:], raw)
	return sig, nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Signature) UnmarshalText(text []byte) error {
	parsed, err := ParseSignature(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func encode(msg []field.Element) []byte {
	out := make([]byte, 0, len(msg)*32)
	for i := range msg {
		b := msg[i].Bytes()
		out = append(out, b[:]...)
	}
	return out
}
