// Package phase is the innermost transition layer: it applies one signed
// action at a time to a pair of running roots. It never holds the trees;
// every claim about them arrives as a Merkle witness.
package phase

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/attack"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/keys"
)

// State is one player's phase: the roots it started from, the roots after
// the actions applied so far and the last accepted action nonce.
type State struct {
	Nonce          uint64
	ActionsNonce   uint64
	StartingPieces field.Element
	CurrentPieces  field.Element
	StartingArena  field.Element
	CurrentArena   field.Element
	Player         keys.PublicKey
}

// Rules are the match constants a phase transition depends on.
type Rules struct {
	ArenaWidth  uint32
	ArenaHeight uint32
	MeleeRange  uint32
	Oracles     *attack.OracleKeyring
}

// Init starts a phase whose current roots equal its starting roots.
func Init(pieces, arena field.Element, player keys.PublicKey) State {
	return State{
		StartingPieces: pieces,
		CurrentPieces:  pieces,
		StartingArena:  arena,
		CurrentArena:   arena,
		Player:         player,
	}
}

// WithNonce returns s numbered as the nonce-th phase of its turn.
func (s State) WithNonce(nonce uint64) State {
	s.Nonce = nonce
	return s
}

// Hash commits to every field of the phase.
func (s State) Hash() field.Element {
	return field.Hash(
		field.FromUint64(s.Nonce),
		field.FromUint64(s.ActionsNonce),
		s.StartingPieces,
		s.CurrentPieces,
		s.StartingArena,
		s.CurrentArena,
		s.Player.Commitment(),
	)
}

type wireState struct {
	Nonce          string         `json:"nonce"`
	ActionsNonce   string         `json:"actionsNonce"`
	StartingPieces string         `json:"startingPiecesState"`
	CurrentPieces  string         `json:"currentPiecesState"`
	StartingArena  string         `json:"startingArenaState"`
	CurrentArena   string         `json:"currentArenaState"`
	Player         keys.PublicKey `json:"playerPublicKey"`
}

// MarshalJSON encodes numbers and roots as decimal strings.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireState{
		Nonce:          strconv.FormatUint(s.Nonce, 10),
		ActionsNonce:   strconv.FormatUint(s.ActionsNonce, 10),
		StartingPieces: field.Decimal(s.StartingPieces),
		CurrentPieces:  field.Decimal(s.CurrentPieces),
		StartingArena:  field.Decimal(s.StartingArena),
		CurrentArena:   field.Decimal(s.CurrentArena),
		Player:         s.Player,
	})
}

// UnmarshalJSON decodes a phase encoded by MarshalJSON.
func (s *State) UnmarshalJSON(data []byte) error {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var out State
	var err error
	if out.Nonce, err = strconv.ParseUint(w.Nonce, 10, 64); err != nil {
		return fmt.Errorf("phase nonce: %w", err)
	}
	if out.ActionsNonce, err = strconv.ParseUint(w.ActionsNonce, 10, 64); err != nil {
		return fmt.Errorf("phase actions nonce: %w", err)
	}
	roots := []struct {
		name string
		raw  string
		dst  *field.Element
	}{
		{"startingPiecesState", w.StartingPieces, &out.StartingPieces},
		{"currentPiecesState", w.CurrentPieces, &out.CurrentPieces},
		{"startingArenaState", w.StartingArena, &out.StartingArena},
		{"currentArenaState", w.CurrentArena, &out.CurrentArena},
	}
	for _, r := range roots {
		if *r.dst, err = field.ParseDecimal(r.raw); err != nil {
			return fmt.Errorf("phase %s: %w", r.name, err)
		}
	}
	out.Player = w.Player
	*s = out
	return nil
}
