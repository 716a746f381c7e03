package attack

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"

	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/keys"
)

const (
	// DiceCount and DiceFaces are the fixed roll parameters every oracle
	// signature covers.
	DiceCount = 3
	DiceFaces = 6
)

// Dice is a decrypted attack roll.
type Dice struct {
	Hit   uint32 `json:"hit"`
	Wound uint32 `json:"wound"`
	Save  uint32 `json:"save"`
}

// EncryptedRoll is a 3d6 roll encrypted to the authority's key and signed by
// a trusted oracle.
type EncryptedRoll struct {
	OracleKeyID string
	Ephemeral   keys.PublicKey
	Ciphertext  [DiceCount]field.Element
	Signature   keys.Signature
}

type wireRoll struct {
	OracleKeyID string         `json:"oracleKeyId"`
	Ephemeral   keys.PublicKey `json:"publicKey"`
	Ciphertext  []string       `json:"ciphertext"`
	Signature   keys.Signature `json:"signature"`
}

// MarshalJSON encodes the ciphertext as decimal strings.
func (r EncryptedRoll) MarshalJSON() ([]byte, error) {
	w := wireRoll{
		OracleKeyID: r.OracleKeyID,
		Ephemeral:   r.Ephemeral,
		Ciphertext:  make([]string, DiceCount),
		Signature:   r.Signature,
	}
	for i, c := range r.Ciphertext {
		w.Ciphertext[i] = field.Decimal(c)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a roll encoded by MarshalJSON.
func (r *EncryptedRoll) UnmarshalJSON(data []byte) error {
	var w wireRoll
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if len(w.Ciphertext) != DiceCount {
		return fmt.Errorf("attack roll ciphertext must hold %d elements, got %d", DiceCount, len(w.Ciphertext))
	}
	out := EncryptedRoll{OracleKeyID: w.OracleKeyID, Ephemeral: w.Ephemeral, Signature: w.Signature}
	for i, s := range w.Ciphertext {
		c, err := field.ParseDecimal(s)
		if err != nil {
			return fmt.Errorf("attack roll ciphertext[%d]: %w", i, err)
		}
		out.Ciphertext[i] = c
	}
	*r = out
	return nil
}

// SignaturePayload is (DiceCount, DiceFaces, c0, c1, c2).
func (r EncryptedRoll) SignaturePayload() []field.Element {
	out := make([]field.Element, 0, 2+DiceCount)
	out = append(out, field.FromUint64(DiceCount), field.FromUint64(DiceFaces))
	return append(out, r.Ciphertext[:]...)
}

// Open checks that the roll was signed by a key in ring over its current
// ciphertext.
func Open(r EncryptedRoll, ring *OracleKeyring) error {
	oracle, ok := ring.Key(r.OracleKeyID)
	if !ok {
		return apperrors.New(apperrors.CodeReplayOrSpoofing,
			fmt.Sprintf("attack roll signed by untrusted oracle key %q", r.OracleKeyID))
	}
	pt := r.Ephemeral.Point()
	if !pt.IsOnCurve() {
		return apperrors.New(apperrors.CodeReplayOrSpoofing, "attack roll ephemeral key is not on the curve")
	}
	if !oracle.Verify(r.Signature, r.SignaturePayload()) {
		return apperrors.New(apperrors.CodeReplayOrSpoofing, "oracle signature does not match attack roll ciphertext")
	}
	return nil
}

// Decrypt re-verifies the oracle signature and decrypts the roll with the
// recipient's secret key. Every die must land in 1..DiceFaces.
func Decrypt(r EncryptedRoll, ring *OracleKeyring, recipient keys.PrivateKey) (Dice, error) {
	if err := Open(r, ring); err != nil {
		return Dice{}, err
	}
	ephemeral := r.Ephemeral.Point()
	var shared twistededwards.PointAffine
	shared.ScalarMultiplication(&ephemeral, recipient.Scalar())

	var values [DiceCount]uint32
	for i := range r.Ciphertext {
		pad := keystream(shared, i)
		var m field.Element
		m.Sub(&r.Ciphertext[i], &pad)
		v, ok := field.ToUint64(m)
		if !ok || v < 1 || v > DiceFaces {
			return Dice{}, apperrors.New(apperrors.CodeReplayOrSpoofing,
				fmt.Sprintf("attack roll die %d does not decrypt to a %d-sided value", i, DiceFaces))
		}
		values[i] = uint32(v)
	}
	return Dice{Hit: values[0], Wound: values[1], Save: values[2]}, nil
}

// seal encrypts d to recipient: ElGamal over the twisted Edwards curve with a
// MiMC keystream derived from the shared point.
func seal(d Dice, recipient keys.PublicKey, rnd io.Reader) (keys.PublicKey, [DiceCount]field.Element, error) {
	var ciphertext [DiceCount]field.Element
	if rnd == nil {
		rnd = rand.Reader
	}
	curve := twistededwards.GetEdwardsCurve()
	bound := new(big.Int).Sub(&curve.Order, big.NewInt(1))
	r, err := rand.Int(rnd, bound)
	if err != nil {
		return keys.PublicKey{}, ciphertext, fmt.Errorf("ephemeral scalar: %w", err)
	}
	r.Add(r, big.NewInt(1))

	var ephemeral, shared twistededwards.PointAffine
	ephemeral.ScalarMultiplication(&curve.Base, r)
	target := recipient.Point()
	if !target.IsOnCurve() {
		return keys.PublicKey{}, ciphertext, fmt.Errorf("recipient key is not on the curve")
	}
	shared.ScalarMultiplication(&target, r)

	for i, v := range []uint32{d.Hit, d.Wound, d.Save} {
		m := field.FromUint64(uint64(v))
		pad := keystream(shared, i)
		ciphertext[i].Add(&m, &pad)
	}
	pub, err := keys.PublicKeyFromPoint(ephemeral)
	if err != nil {
		return keys.PublicKey{}, ciphertext, err
	}
	return pub, ciphertext, nil
}

func keystream(shared twistededwards.PointAffine, i int) field.Element {
	return field.Hash(shared.X, shared.Y, field.FromUint64(uint64(i)))
}
