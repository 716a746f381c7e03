package piece

import (
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
)

// Stats are the attributes of a unit type. The same attributes describe a
// piece's mutable Condition during a match.
type Stats struct {
	Health            uint32 `json:"health" yaml:"health"`
	Movement          uint32 `json:"movement" yaml:"movement"`
	RangedAttackRange uint32 `json:"rangedAttackRange" yaml:"rangedAttackRange"`
	RangedHitRoll     uint32 `json:"rangedHitRoll" yaml:"rangedHitRoll"`
	RangedWoundRoll   uint32 `json:"rangedWoundRoll" yaml:"rangedWoundRoll"`
	RangedDamage      uint32 `json:"rangedDamage" yaml:"rangedDamage"`
	MeleeHitRoll      uint32 `json:"meleeHitRoll" yaml:"meleeHitRoll"`
	MeleeWoundRoll    uint32 `json:"meleeWoundRoll" yaml:"meleeWoundRoll"`
	MeleeDamage       uint32 `json:"meleeDamage" yaml:"meleeDamage"`
	SaveRoll          uint32 `json:"saveRoll" yaml:"saveRoll"`
}

// Fields lists the stats in hashing order.
func (s Stats) Fields() []field.Element {
	return []field.Element{
		field.FromUint64(uint64(s.Health)),
		field.FromUint64(uint64(s.Movement)),
		field.FromUint64(uint64(s.RangedAttackRange)),
		field.FromUint64(uint64(s.RangedHitRoll)),
		field.FromUint64(uint64(s.RangedWoundRoll)),
		field.FromUint64(uint64(s.RangedDamage)),
		field.FromUint64(uint64(s.MeleeHitRoll)),
		field.FromUint64(uint64(s.MeleeWoundRoll)),
		field.FromUint64(uint64(s.MeleeDamage)),
		field.FromUint64(uint64(s.SaveRoll)),
	}
}

// Hash commits to every stat.
func (s Stats) Hash() field.Element {
	return field.Hash(s.Fields()...)
}

// Condition is a piece's current state. It starts as a copy of its unit's
// stats and diverges as the piece takes damage.
type Condition Stats

// Hash commits to every attribute of the condition.
func (c Condition) Hash() field.Element {
	return Stats(c).Hash()
}

// WithHealth returns a copy of c with health replaced.
func (c Condition) WithHealth(health uint32) Condition {
	c.Health = health
	return c
}

// Unit is a unit type. Today it is only its stats.
type Unit struct {
	Name  string `json:"name" yaml:"name"`
	Stats Stats  `json:"stats" yaml:"stats"`
}

// Hash commits to the unit stats. The name is presentation only.
func (u Unit) Hash() field.Element {
	return field.Hash(u.Stats.Hash())
}
