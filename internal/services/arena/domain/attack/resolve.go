// Package attack resolves combat: oracle-attested encrypted dice, their
// decryption by the authority, and the hit, wound and save arithmetic.
package attack

import (
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/piece"
)

// Profile is the attacker's thresholds and damage for one kind of attack.
type Profile struct {
	HitRoll   uint32
	WoundRoll uint32
	Damage    uint32
}

// RangedProfile reads the ranged attack stats of c.
func RangedProfile(c piece.Condition) Profile {
	return Profile{HitRoll: c.RangedHitRoll, WoundRoll: c.RangedWoundRoll, Damage: c.RangedDamage}
}

// MeleeProfile reads the melee attack stats of c.
func MeleeProfile(c piece.Condition) Profile {
	return Profile{HitRoll: c.MeleeHitRoll, WoundRoll: c.MeleeWoundRoll, Damage: c.MeleeDamage}
}

// Outcome explains a resolved attack.
type Outcome struct {
	Hit    bool   `json:"hit"`
	Wound  bool   `json:"wound"`
	Saved  bool   `json:"saved"`
	Damage uint32 `json:"damage"`
}

// Resolve applies a roll. A die meeting its threshold succeeds for hit and
// wound; the defender saves when the save die meets its save roll. Damage is
// dealt only on hit, wound and a failed save.
func Resolve(d Dice, attacker Profile, defenderSave uint32) Outcome {
	o := Outcome{
		Hit:   d.Hit >= attacker.HitRoll,
		Wound: d.Wound >= attacker.WoundRoll,
		Saved: d.Save >= defenderSave,
	}
	if o.Hit && o.Wound && !o.Saved {
		o.Damage = attacker.Damage
	}
	return o
}

// ApplyDamage subtracts damage from health, clamping at zero.
func ApplyDamage(health, damage uint32) uint32 {
	if damage >= health {
		return 0
	}
	return health - damage
}
