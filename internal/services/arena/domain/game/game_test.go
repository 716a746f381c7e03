package game

import (
	"encoding/json"
	"testing"

	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/keys"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/piece"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/position"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/turn"
)

var unit = piece.Unit{Name: "default", Stats: piece.Stats{Health: 3, Movement: 50, SaveRoll: 6}}

func mustKey(t *testing.T) keys.PublicKey {
	t.Helper()
	k, err := keys.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return k.Public()
}

// finished returns ts as if its phases had moved the board to new roots.
func finished(ts turn.State, pieces, arena uint64) turn.State {
	ts.CurrentPieces = field.FromUint64(pieces)
	ts.CurrentArena = field.FromUint64(arena)
	ts.PhaseNonce = 1
	return ts
}

func TestGenesis(t *testing.T) {
	p1, p2 := mustKey(t), mustKey(t)
	s, b, err := Genesis(p1, p2, 800, 800, StandardPlacements(p1, p2, unit))
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if s.PlayerTurn != 1 || s.TurnsNonce != 0 {
		t.Fatalf("expected player 1 at nonce 0, got %d at %d", s.PlayerTurn, s.TurnsNonce)
	}
	if !s.ActivePlayer().Equal(p1) {
		t.Fatal("expected player 1 to act first")
	}
	if !field.Equal(s.PiecesRoot, b.Pieces.Root()) || !field.Equal(s.ArenaRoot, b.Arena.Root()) {
		t.Fatal("expected roots to match the stores")
	}
	if b.Arena.OccupiedCount() != 4 {
		t.Fatalf("expected 4 occupied cells, got %d", b.Arena.OccupiedCount())
	}
	if len(b.Pieces.Pieces()) != 4 {
		t.Fatalf("expected 4 pieces, got %d", len(b.Pieces.Pieces()))
	}
}

func TestGenesisRejects(t *testing.T) {
	p1, p2, stranger := mustKey(t), mustKey(t), mustKey(t)
	tests := []struct {
		name       string
		p2         keys.PublicKey
		placements []piece.Piece
	}{
		{"same players", p1, nil},
		{"duplicate id", p2, []piece.Piece{
			piece.New(1, p1, position.New(0, 0), unit),
			piece.New(1, p2, position.New(1, 1), unit),
		}},
		{"shared cell", p2, []piece.Piece{
			piece.New(1, p1, position.New(0, 0), unit),
			piece.New(2, p2, position.New(0, 0), unit),
		}},
		{"stranger owner", p2, []piece.Piece{piece.New(1, stranger, position.New(0, 0), unit)}},
		{"outside arena", p2, []piece.Piece{piece.New(1, p1, position.New(800, 0), unit)}},
		{"id beyond capacity", p2, []piece.Piece{piece.New(16, p1, position.New(0, 0), unit)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := Genesis(p1, tc.p2, 800, 800, tc.placements); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestApplyTurnAlternatesPlayers(t *testing.T) {
	p1, p2 := mustKey(t), mustKey(t)
	s := New(field.FromUint64(1), field.FromUint64(2), p1, p2, 800, 800)

	first := s.NextTurn()
	if !first.Player.Equal(p1) || first.Nonce != 1 {
		t.Fatal("expected player 1 to open turn 1")
	}
	s, err := s.ApplyTurn(finished(first, 3, 4))
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if s.PlayerTurn != 2 || !s.ActivePlayer().Equal(p2) {
		t.Fatalf("expected player 2 to act, got %d", s.PlayerTurn)
	}

	s, err = s.ApplyTurn(finished(s.NextTurn(), 5, 6))
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if s.PlayerTurn != 1 || s.TurnsNonce != 2 {
		t.Fatalf("expected player 1 at nonce 2, got %d at %d", s.PlayerTurn, s.TurnsNonce)
	}
	if !field.Equal(s.PiecesRoot, field.FromUint64(5)) || !field.Equal(s.ArenaRoot, field.FromUint64(6)) {
		t.Fatal("expected roots from the last turn")
	}
}

func TestApplyTurnRejections(t *testing.T) {
	p1, p2 := mustKey(t), mustKey(t)
	s := New(field.FromUint64(1), field.FromUint64(2), p1, p2, 800, 800)
	s, err := s.ApplyTurn(finished(s.NextTurn(), 3, 4))
	if err != nil {
		t.Fatalf("seed turn: %v", err)
	}

	tests := []struct {
		name string
		turn turn.State
		code apperrors.Code
	}{
		{"replayed nonce", finished(turn.Init(s.PiecesRoot, s.ArenaRoot, p2).WithNonce(1), 5, 6), apperrors.CodeOrderingViolation},
		{"wrong player", finished(turn.Init(s.PiecesRoot, s.ArenaRoot, p1).WithNonce(2), 5, 6), apperrors.CodeAuthenticationFailure},
		{"stale pieces", finished(turn.Init(field.FromUint64(1), s.ArenaRoot, p2).WithNonce(2), 5, 6), apperrors.CodeConsistencyFailure},
		{"stale arena", finished(turn.Init(s.PiecesRoot, field.FromUint64(2), p2).WithNonce(2), 5, 6), apperrors.CodeConsistencyFailure},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := s.ApplyTurn(tc.turn)
			if !apperrors.HasCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
			if next != (State{}) {
				t.Fatal("expected zero state on rejection")
			}
		})
	}
}

func TestStateJSONFieldNames(t *testing.T) {
	p1, p2 := mustKey(t), mustKey(t)
	s := New(field.FromUint64(11), field.FromUint64(12), p1, p2, 800, 600)
	s.TurnsNonce = 9
	s.PlayerTurn = 2

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	for _, name := range []string{"piecesRoot", "arenaRoot", "playerTurn", "player1PublicKey", "player2PublicKey", "arenaLength", "arenaWidth", "turnsNonce"} {
		if _, ok := raw[name]; !ok {
			t.Fatalf("expected field %q in %s", name, data)
		}
	}
	if raw["arenaLength"] != "600" || raw["turnsNonce"] != "9" {
		t.Fatalf("unexpected encoding %s", data)
	}

	var got State
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !field.Equal(got.Hash(), s.Hash()) {
		t.Fatal("expected round trip to preserve hash")
	}
}

func TestUnmarshalRejectsInvalidPlayerTurn(t *testing.T) {
	p1, p2 := mustKey(t), mustKey(t)
	data, err := json.Marshal(New(field.Zero(), field.Zero(), p1, p2, 8, 8))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	raw["playerTurn"] = "3"
	data, err = json.Marshal(raw)
	if err != nil {
		t.Fatalf("marshal raw: %v", err)
	}
	var got State
	if err := json.Unmarshal(data, &got); err == nil {
		t.Fatal("expected error")
	}
}
