package attack

import (
	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
)

// Digest identifies a roll by the ciphertext the oracle signed. Two rolls
// with the same ciphertext are the same roll whatever ephemeral key they
// carry.
func (r EncryptedRoll) Digest() string {
	return field.Decimal(field.Hash(r.SignaturePayload()...))
}

// SpentRolls is the set of rolls a match has consumed. A roll is good for
// one attack.
type SpentRolls map[string]struct{}

// Check rejects a roll that was already spent.
func (s SpentRolls) Check(r EncryptedRoll) error {
	d := r.Digest()
	if _, ok := s[d]; ok {
		return apperrors.New(apperrors.CodeReplayOrSpoofing, "attack roll was already used").With("roll", d)
	}
	return nil
}

// Spend marks r as used.
func (s SpentRolls) Spend(r EncryptedRoll) {
	s[r.Digest()] = struct{}{}
}
