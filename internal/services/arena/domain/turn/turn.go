// Package turn folds a player's phases into one turn.
package turn

import (
	"encoding/json"
	"fmt"
	"strconv"

	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/keys"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/phase"
)

// State is one player's turn: where it started, where its phases have taken
// the board and the nonce of the last folded phase.
type State struct {
	Nonce          uint64
	PhaseNonce     uint64
	StartingPieces field.Element
	CurrentPieces  field.Element
	StartingArena  field.Element
	CurrentArena   field.Element
	Player         keys.PublicKey
}

// Init starts a turn whose current roots equal its starting roots.
func Init(pieces, arena field.Element, player keys.PublicKey) State {
	return State{
		StartingPieces: pieces,
		CurrentPieces:  pieces,
		StartingArena:  arena,
		CurrentArena:   arena,
		Player:         player,
	}
}

// WithNonce returns s numbered as the nonce-th turn of its game.
func (s State) WithNonce(nonce uint64) State {
	s.Nonce = nonce
	return s
}

// NextPhase opens a phase continuing from the turn's current roots.
func (s State) NextPhase() phase.State {
	return phase.Init(s.CurrentPieces, s.CurrentArena, s.Player).WithNonce(s.PhaseNonce + 1)
}

// ApplyPhase folds a completed phase into the turn. The phase must be newer
// than the last one, belong to the same player and start exactly where the
// turn currently stands.
func (s State) ApplyPhase(p phase.State) (State, error) {
	if p.Nonce <= s.PhaseNonce {
		return State{}, apperrors.New(apperrors.CodeOrderingViolation,
			fmt.Sprintf("phase nonce %d does not follow %d", p.Nonce, s.PhaseNonce))
	}
	if !p.Player.Equal(s.Player) {
		return State{}, apperrors.New(apperrors.CodeAuthenticationFailure, "phase belongs to another player")
	}
	if !field.Equal(p.StartingPieces, s.CurrentPieces) {
		return State{}, apperrors.New(apperrors.CodeConsistencyFailure, "phase does not start from the turn's pieces root")
	}
	if !field.Equal(p.StartingArena, s.CurrentArena) {
		return State{}, apperrors.New(apperrors.CodeConsistencyFailure, "phase does not start from the turn's arena root")
	}
	next := s
	next.CurrentPieces = p.CurrentPieces
	next.CurrentArena = p.CurrentArena
	next.PhaseNonce = p.Nonce
	return next, nil
}

// Hash commits to every field of the turn.
func (s State) Hash() field.Element {
	return field.Hash(
		field.FromUint64(s.Nonce),
		field.FromUint64(s.PhaseNonce),
		s.StartingPieces,
		s.CurrentPieces,
		s.StartingArena,
		s.CurrentArena,
		s.Player.Commitment(),
	)
}

type wireState struct {
	Nonce          string         `json:"nonce"`
	PhaseNonce     string         `json:"phaseNonce"`
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
		PhaseNonce:     strconv.FormatUint(s.PhaseNonce, 10),
		StartingPieces: field.Decimal(s.StartingPieces),
		CurrentPieces:  field.Decimal(s.CurrentPieces),
		StartingArena:  field.Decimal(s.StartingArena),
		CurrentArena:   field.Decimal(s.CurrentArena),
		Player:         s.Player,
	})
}

// UnmarshalJSON decodes a turn encoded by MarshalJSON.
func (s *State) UnmarshalJSON(data []byte) error {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var out State
	var err error
	if out.Nonce, err = strconv.ParseUint(w.Nonce, 10, 64); err != nil {
		return fmt.Errorf("turn nonce: %w", err)
	}
	if out.PhaseNonce, err = strconv.ParseUint(w.PhaseNonce, 10, 64); err != nil {
		return fmt.Errorf("turn phase nonce: %w", err)
	}
	if out.StartingPieces, err = field.ParseDecimal(w.StartingPieces); err != nil {
		return fmt.Errorf("turn startingPiecesState: %w", err)
	}
	if out.CurrentPieces, err = field.ParseDecimal(w.CurrentPieces); err != nil {
		return fmt.Errorf("turn currentPiecesState: %w", err)
	}
	if out.StartingArena, err = field.ParseDecimal(w.StartingArena); err != nil {
		return fmt.Errorf("turn startingArenaState: %w", err)
	}
	if out.CurrentArena, err = field.ParseDecimal(w.CurrentArena); err != nil {
		return fmt.Errorf("turn currentArenaState: %w", err)
	}
	out.Player = w.Player
	*s = out
	return nil
}
