// Package game is the outermost transition layer. It alternates control
// between the two players one accepted turn at a time.
package game

import (
	"encoding/json"
	"fmt"
	"strconv"

	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/keys"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/turn"
)

// State is the committed match: both roots, whose turn it is and the players.
type State struct {
	PiecesRoot  field.Element
	ArenaRoot   field.Element
	PlayerTurn  uint8
	Player1     keys.PublicKey
	Player2     keys.PublicKey
	ArenaLength uint32
	ArenaWidth  uint32
	TurnsNonce  uint64
}

// New returns a game at the given roots with player 1 to act.
func New(pieces, arena field.Element, player1, player2 keys.PublicKey, width, length uint32) State {
	return State{
		PiecesRoot:  pieces,
		ArenaRoot:   arena,
		PlayerTurn:  1,
		Player1:     player1,
		Player2:     player2,
		ArenaLength: length,
		ArenaWidth:  width,
	}
}

// ActivePlayer is the key of the player whose turn it is.
func (s State) ActivePlayer() keys.PublicKey {
	if s.PlayerTurn == 2 {
		return s.Player2
	}
	return s.Player1
}

// NextTurn opens a turn for the active player at the game's roots.
func (s State) NextTurn() turn.State {
	return turn.Init(s.PiecesRoot, s.ArenaRoot, s.ActivePlayer()).WithNonce(s.TurnsNonce + 1)
}

// ApplyTurn folds a completed turn into the game and hands control to the
// other player.
func (s State) ApplyTurn(t turn.State) (State, error) {
	if t.Nonce <= s.TurnsNonce {
		return State{}, apperrors.New(apperrors.CodeOrderingViolation,
			fmt.Sprintf("turn nonce %d does not follow %d", t.Nonce, s.TurnsNonce))
	}
	if !t.Player.Equal(s.ActivePlayer()) {
		return State{}, apperrors.New(apperrors.CodeAuthenticationFailure,
			fmt.Sprintf("turn submitted out of order: player %d is to act", s.PlayerTurn))
	}
	if !field.Equal(t.StartingPieces, s.PiecesRoot) {
		return State{}, apperrors.New(apperrors.CodeConsistencyFailure, "turn does not start from the game's pieces root")
	}
	if !field.Equal(t.StartingArena, s.ArenaRoot) {
		return State{}, apperrors.New(apperrors.CodeConsistencyFailure, "turn does not start from the game's arena root")
	}
	next := s
	next.PiecesRoot = t.CurrentPieces
	next.ArenaRoot = t.CurrentArena
	next.TurnsNonce = t.Nonce
	if s.PlayerTurn == 2 {
		next.PlayerTurn = 1
	} else {
		next.PlayerTurn = 2
	}
	return next, nil
}

// Hash commits to every field of the game.
func (s State) Hash() field.Element {
	return field.Hash(
		s.PiecesRoot,
		s.ArenaRoot,
		field.FromUint64(uint64(s.PlayerTurn)),
		s.Player1.Commitment(),
		s.Player2.Commitment(),
		field.FromUint64(uint64(s.ArenaLength)),
		field.FromUint64(uint64(s.ArenaWidth)),
		field.FromUint64(s.TurnsNonce),
	)
}

type wireState struct {
	PiecesRoot  string         `json:"piecesRoot"`
	ArenaRoot   string         `json:"arenaRoot"`
	PlayerTurn  string         `json:"playerTurn"`
	Player1     keys.PublicKey `json:"player1PublicKey"`
	Player2     keys.PublicKey `json:"player2PublicKey"`
	ArenaLength string         `json:"arenaLength"`
	ArenaWidth  string         `json:"arenaWidth"`
	TurnsNonce  string         `json:"turnsNonce"`
}

// MarshalJSON encodes numbers and roots as decimal strings.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireState{
		PiecesRoot:  field.Decimal(s.PiecesRoot),
		ArenaRoot:   field.Decimal(s.ArenaRoot),
		PlayerTurn:  strconv.FormatUint(uint64(s.PlayerTurn), 10),
		Player1:     s.Player1,
		Player2:     s.Player2,
		ArenaLength: strconv.FormatUint(uint64(s.ArenaLength), 10),
		ArenaWidth:  strconv.FormatUint(uint64(s.ArenaWidth), 10),
		TurnsNonce:  strconv.FormatUint(s.TurnsNonce, 10),
	})
}

// UnmarshalJSON decodes a game encoded by MarshalJSON.
func (s *State) UnmarshalJSON(data []byte) error {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var out State
	var err error
	if out.PiecesRoot, err = field.ParseDecimal(w.PiecesRoot); err != nil {
		return fmt.Errorf("game piecesRoot: %w", err)
	}
	if out.ArenaRoot, err = field.ParseDecimal(w.ArenaRoot); err != nil {
		return fmt.Errorf("game arenaRoot: %w", err)
	}
	playerTurn, err := strconv.ParseUint(w.PlayerTurn, 10, 8)
	if err != nil || (playerTurn != 1 && playerTurn != 2) {
		return fmt.Errorf("game playerTurn %q: must be 1 or 2", w.PlayerTurn)
	}
	out.PlayerTurn = uint8(playerTurn)
	length, err := strconv.ParseUint(w.ArenaLength, 10, 32)
	if err != nil {
		return fmt.Errorf("game arenaLength: %w", err)
	}
	width, err := strconv.ParseUint(w.ArenaWidth, 10, 32)
	if err != nil {
		return fmt.Errorf("game arenaWidth: %w", err)
	}
	out.ArenaLength, out.ArenaWidth = uint32(length), uint32(width)
	if out.TurnsNonce, err = strconv.ParseUint(w.TurnsNonce, 10, 64); err != nil {
		return fmt.Errorf("game turnsNonce: %w", err)
	}
	out.Player1, out.Player2 = w.Player1, w.Player2
	*s = out
	return nil
}
