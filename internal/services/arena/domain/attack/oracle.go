package attack

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/keys"
)

// Oracle rolls dice, encrypts them to the authority and attests the
// ciphertext with its signing key.
type Oracle struct {
	keyID string
	key   keys.PrivateKey
	rand  io.Reader
}

// NewOracle returns an oracle signing under keyID. A nil rnd uses crypto/rand.
func NewOracle(keyID string, key keys.PrivateKey, rnd io.Reader) *Oracle {
	if rnd == nil {
		rnd = rand.Reader
	}
	return &Oracle{keyID: keyID, key: key, rand: rnd}
}

// KeyID returns the id the oracle signs under.
func (o *Oracle) KeyID() string {
	return o.keyID
}

// PublicKey returns the oracle's verification key.
func (o *Oracle) PublicKey() keys.PublicKey {
	return o.key.Public()
}

// Roll rolls 3d6 and seals the result for recipient.
func (o *Oracle) Roll(recipient keys.PublicKey) (EncryptedRoll, error) {
	var values [DiceCount]uint32
	faces := big.NewInt(DiceFaces)
	for i := range values {
		n, err := rand.Int(o.rand, faces)
		if err != nil {
			return EncryptedRoll{}, fmt.Errorf("roll die: %w", err)
		}
		values[i] = uint32(n.Int64()) + 1
	}
	return o.Seal(Dice{Hit: values[0], Wound: values[1], Save: values[2]}, recipient)
}

// Seal encrypts a known roll for recipient and signs it.
func (o *Oracle) Seal(d Dice, recipient keys.PublicKey) (EncryptedRoll, error) {
	ephemeral, ciphertext, err := seal(d, recipient, o.rand)
	if err != nil {
		return EncryptedRoll{}, err
	}
	roll := EncryptedRoll{
		OracleKeyID: o.keyID,
		Ephemeral:   ephemeral,
		Ciphertext:  ciphertext,
	}
	sig, err := o.key.Sign(roll.SignaturePayload())
	if err != nil {
		return EncryptedRoll{}, err
	}
	roll.Signature = sig
	return roll, nil
}
