// Package rules holds the match constants and unit catalog. Stat tables are
// data; the engine reads them from a YAML file and falls back to built-ins.
package rules

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/attack"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/board"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/keys"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/phase"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/piece"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/position"
)

// DefaultUnit names the unit used when a placement does not name one.
const DefaultUnit = "default"

const maxArenaSide = 1 << 16

// Rules are the per-match constants.
type Rules struct {
	ArenaWidth  uint32                 `yaml:"arenaWidth"`
	ArenaHeight uint32                 `yaml:"arenaHeight"`
	MeleeRange  uint32                 `yaml:"meleeRange"`
	Units       map[string]piece.Stats `yaml:"units"`
	Placements  []Placement            `yaml:"placements"`
}

// Placement puts one piece on the board at genesis.
type Placement struct {
	ID     uint64 `yaml:"id"`
	Player int    `yaml:"player"`
	X      uint32 `yaml:"x"`
	Y      uint32 `yaml:"y"`
	Unit   string `yaml:"unit"`
}

// Default returns the standard 800x800 rules with the four-corner opening.
func Default() Rules {
	return Rules{
		ArenaWidth:  800,
		ArenaHeight: 800,
		MeleeRange:  24,
		Units: map[string]piece.Stats{
			DefaultUnit: {
				Health:            3,
				Movement:          50,
				RangedAttackRange: 50,
				RangedHitRoll:     2,
				RangedWoundRoll:   2,
				RangedDamage:      2,
				MeleeHitRoll:      2,
				MeleeWoundRoll:    2,
				MeleeDamage:       1,
				SaveRoll:          6,
			},
		},
		Placements: []Placement{
			{ID: 1, Player: 1, X: 0, Y: 0},
			{ID: 2, Player: 1, X: 0, Y: 15},
			{ID: 3, Player: 2, X: 15, Y: 0},
			{ID: 4, Player: 2, X: 15, Y: 15},
		},
	}
}

// Load reads rules from a YAML file. Fields the file leaves out keep their
// defaults; a missing file yields Default.
func Load(path string) (Rules, error) {
	r := Default()
	if strings.TrimSpace(path) == "" {
		return r, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return r, nil
		}
		return Rules{}, fmt.Errorf("read rules: %w", err)
	}
	return Parse(raw)
}

// Parse decodes YAML rules over the defaults and validates the result.
func Parse(raw []byte) (Rules, error) {
	r := Default()
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return Rules{}, fmt.Errorf("rules.yaml: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	return r, nil
}

// Validate checks the rules can drive a match.
func (r Rules) Validate() error {
	if r.ArenaWidth == 0 || r.ArenaHeight == 0 {
		return fmt.Errorf("arena dimensions must be positive")
	}
	if r.ArenaWidth > maxArenaSide || r.ArenaHeight > maxArenaSide {
		return fmt.Errorf("arena sides must be at most %d", maxArenaSide)
	}
	if r.MeleeRange == 0 {
		return fmt.Errorf("melee range must be positive")
	}
	if _, ok := r.Units[DefaultUnit]; !ok {
		return fmt.Errorf("unit %q is required", DefaultUnit)
	}
	for name, s := range r.Units {
		if err := validateStats(s); err != nil {
			return fmt.Errorf("unit %q: %w", name, err)
		}
	}
	capacity := uint64(1) << (board.PiecesTreeHeight - 1)
	if len(r.Placements) == 0 {
		return fmt.Errorf("at least one placement is required")
	}
	for _, p := range r.Placements {
		if p.Player != 1 && p.Player != 2 {
			return fmt.Errorf("placement %d: player must be 1 or 2", p.ID)
		}
		if p.ID >= capacity {
			return fmt.Errorf("placement %d: id must be below %d", p.ID, capacity)
		}
		if !position.New(p.X, p.Y).InBounds(r.ArenaWidth, r.ArenaHeight) {
			return fmt.Errorf("placement %d: (%d,%d) is outside the arena", p.ID, p.X, p.Y)
		}
		if _, err := r.Unit(p.Unit); err != nil {
			return fmt.Errorf("placement %d: %w", p.ID, err)
		}
	}
	return nil
}

func validateStats(s piece.Stats) error {
	if s.Health == 0 {
		return fmt.Errorf("health must be positive")
	}
	rolls := map[string]uint32{
		"rangedHitRoll":   s.RangedHitRoll,
		"rangedWoundRoll": s.RangedWoundRoll,
		"meleeHitRoll":    s.MeleeHitRoll,
		"meleeWoundRoll":  s.MeleeWoundRoll,
		"saveRoll":        s.SaveRoll,
	}
	for name, v := range rolls {
		if v < 1 || v > attack.DiceFaces+1 {
			return fmt.Errorf("%s must be between 1 and %d", name, attack.DiceFaces+1)
		}
	}
	return nil
}

// Unit returns the named unit. An empty name is the default unit.
func (r Rules) Unit(name string) (piece.Unit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultUnit
	}
	stats, ok := r.Units[name]
	if !ok {
		return piece.Unit{}, fmt.Errorf("unknown unit %q", name)
	}
	return piece.Unit{Name: name, Stats: stats}, nil
}

// UnitNames lists the catalog in sorted order.
func (r Rules) UnitNames() []string {
	names := make([]string, 0, len(r.Units))
	for name := range r.Units {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Pieces materializes the placements for two players.
func (r Rules) Pieces(player1, player2 keys.PublicKey) ([]piece.Piece, error) {
	out := make([]piece.Piece, 0, len(r.Placements))
	for _, p := range r.Placements {
		unit, err := r.Unit(p.Unit)
		if err != nil {
			return nil, err
		}
		owner := player1
		if p.Player == 2 {
			owner = player2
		}
		out = append(out, piece.New(p.ID, owner, position.New(p.X, p.Y), unit))
	}
	return out, nil
}

// Phase returns the constants the phase machine needs.
func (r Rules) Phase(oracles *attack.OracleKeyring) phase.Rules {
	return phase.Rules{
		ArenaWidth:  r.ArenaWidth,
		ArenaHeight: r.ArenaHeight,
		MeleeRange:  r.MeleeRange,
		Oracles:     oracles,
	}
}
