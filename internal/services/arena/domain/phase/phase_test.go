package phase

import (
	"encoding/json"
	"testing"

	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/action"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/attack"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/board"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/keys"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/piece"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/position"
)

const (
	arenaSize  = 800
	meleeRange = 24
)

var defaultUnit = piece.Unit{
	Name: "default",
	Stats: piece.Stats{
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
}

type fixture struct {
	player   keys.PrivateKey
	opponent keys.PrivateKey
	server   keys.PrivateKey
	oracle   *attack.Oracle
	rules    Rules
	pieces   *board.PieceStore
	arena    *board.ArenaStore
}

func mustKey(t *testing.T) keys.PrivateKey {
	t.Helper()
	k, err := keys.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return k
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	oracleKey := mustKey(t)
	ring, err := attack.NewOracleKeyring(map[string]keys.PublicKey{"v1": oracleKey.Public()}, "v1")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}
	arena, err := board.NewArenaStore(arenaSize, arenaSize)
	if err != nil {
		t.Fatalf("new arena: %v", err)
	}
	return &fixture{
		player:   mustKey(t),
		opponent: mustKey(t),
		server:   mustKey(t),
		oracle:   attack.NewOracle("v1", oracleKey, nil),
		rules: Rules{
			ArenaWidth:  arenaSize,
			ArenaHeight: arenaSize,
			MeleeRange:  meleeRange,
			Oracles:     ring,
		},
		pieces: board.NewPieceStore(),
		arena:  arena,
	}
}

func (f *fixture) place(t *testing.T, id uint64, owner keys.PrivateKey, x, y uint32) piece.Piece {
	t.Helper()
	p := piece.New(id, owner.Public(), position.New(x, y), defaultUnit)
	if err := f.pieces.Put(p); err != nil {
		t.Fatalf("put piece: %v", err)
	}
	if err := f.arena.SetOccupied(p.Position, true); err != nil {
		t.Fatalf("occupy: %v", err)
	}
	return p
}

func (f *fixture) phase() State {
	return Init(f.pieces.Root(), f.arena.Root(), f.player.Public())
}

// move builds a move from the fixture's current trees.
func (f *fixture) move(t *testing.T, nonce uint64, p piece.Piece, dest position.Position, distance uint32) Move {
	t.Helper()
	signed, err := action.NewMove(nonce, p.ID, dest).Sign(f.player)
	if err != nil {
		t.Fatalf("sign move: %v", err)
	}
	return f.moveWith(t, signed, p, dest, distance)
}

func (f *fixture) moveWith(t *testing.T, signed action.Signed, p piece.Piece, dest position.Position, distance uint32) Move {
	t.Helper()
	pw, err := f.pieces.Witness(p.ID)
	if err != nil {
		t.Fatalf("piece witness: %v", err)
	}
	ow, err := f.arena.Witness(p.Position)
	if err != nil {
		t.Fatalf("origin witness: %v", err)
	}
	dw, err := f.arena.Witness(dest)
	if err != nil {
		t.Fatalf("destination witness: %v", err)
	}
	return Move{
		Action:        signed,
		Piece:         p,
		PieceWitness:  pw,
		OriginWitness: ow,
		DestWitness:   dw,
		Destination:   dest,
		Distance:      distance,
	}
}

// commitMove mirrors an accepted move into the fixture's trees.
func (f *fixture) commitMove(t *testing.T, p piece.Piece, dest position.Position) piece.Piece {
	t.Helper()
	if err := f.arena.SetOccupied(p.Position, false); err != nil {
		t.Fatalf("vacate: %v", err)
	}
	if err := f.arena.SetOccupied(dest, true); err != nil {
		t.Fatalf("occupy: %v", err)
	}
	moved := p.WithPosition(dest)
	if err := f.pieces.Put(moved); err != nil {
		t.Fatalf("put moved: %v", err)
	}
	return moved
}

func (f *fixture) attack(t *testing.T, nonce uint64, kind action.Type, attacker, target piece.Piece, distance uint32, dice attack.Dice) Attack {
	t.Helper()
	signed, err := action.NewAttack(nonce, kind, attacker.ID, target.ID).Sign(f.player)
	if err != nil {
		t.Fatalf("sign attack: %v", err)
	}
	roll, err := f.oracle.Seal(dice, f.server.Public())
	if err != nil {
		t.Fatalf("seal roll: %v", err)
	}
	aw, err := f.pieces.Witness(attacker.ID)
	if err != nil {
		t.Fatalf("attacker witness: %v", err)
	}
	tw, err := f.pieces.Witness(target.ID)
	if err != nil {
		t.Fatalf("target witness: %v", err)
	}
	return Attack{
		Action:          signed,
		Attacker:        attacker,
		Target:          target,
		AttackerWitness: aw,
		TargetWitness:   tw,
		Distance:        distance,
		Roll:            roll,
		Recipient:       f.server,
	}
}

func TestApplyMoveAccepted(t *testing.T) {
	f := newFixture(t)
	p := f.place(t, 1, f.player, 100, 20)
	f.place(t, 2, f.opponent, 400, 400)
	s := f.phase()

	dest := position.New(100, 65)
	next, err := s.ApplyMove(f.rules, f.move(t, 1, p, dest, 45))
	if err != nil {
		t.Fatalf("apply move: %v", err)
	}
	f.commitMove(t, p, dest)

	if !field.Equal(next.CurrentArena, f.arena.Root()) {
		t.Fatal("expected arena root to match relocated occupancy")
	}
	if !field.Equal(next.CurrentPieces, f.pieces.Root()) {
		t.Fatal("expected pieces root to match relocated piece")
	}
	if !field.Equal(next.StartingArena, s.StartingArena) || !field.Equal(next.StartingPieces, s.StartingPieces) {
		t.Fatal("expected starting roots to be unchanged")
	}
	if next.ActionsNonce != 1 {
		t.Fatalf("expected actions nonce 1, got %d", next.ActionsNonce)
	}
	if f.arena.OccupiedCount() != 2 {
		t.Fatalf("expected occupancy to be conserved, got %d", f.arena.OccupiedCount())
	}
}

func TestApplyMoveRejections(t *testing.T) {
	f := newFixture(t)
	p := f.place(t, 1, f.player, 100, 20)
	other := f.place(t, 2, f.opponent, 100, 60)
	s := f.phase()

	wrongDest, err := action.NewMove(1, p.ID, position.New(120, 20)).Sign(f.player)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	wrongPiece, err := action.NewMove(1, other.ID, position.New(100, 65)).Sign(f.player)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	forged, err := action.NewMove(1, p.ID, position.New(100, 65)).Sign(f.opponent)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	shortDirections := f.move(t, 1, p, position.New(100, 65), 45)
	shortDirections.PieceWitness.IsLeft = shortDirections.PieceWitness.IsLeft[:1]
	shortOrigin := f.move(t, 1, p, position.New(100, 65), 45)
	shortOrigin.OriginWitness.Path = shortOrigin.OriginWitness.Path[:3]
	shortOrigin.OriginWitness.IsLeft = shortOrigin.OriginWitness.IsLeft[:3]
	extraDest := f.move(t, 1, p, position.New(100, 65), 45)
	extraDest.DestWitness.Path = append(extraDest.DestWitness.Path, field.Zero())

	tests := []struct {
		name string
		move Move
		code apperrors.Code
	}{
		{"wrong distance", f.move(t, 1, p, position.New(100, 65), 65), apperrors.CodeRangeViolation},
		{"true distance 65 beyond movement 50", f.move(t, 1, p, position.New(100, 85), 65), apperrors.CodeRangeViolation},
		{"beyond movement", f.move(t, 1, p, position.New(100, 80), 60), apperrors.CodeRangeViolation},
		{"destination is origin", f.move(t, 1, p, position.New(100, 20), 0), apperrors.CodeConsistencyFailure},
		{"occupied destination", f.move(t, 1, p, position.New(100, 60), 40), apperrors.CodeConsistencyFailure},
		{"opponent piece", f.move(t, 1, other, position.New(100, 90), 30), apperrors.CodeAuthenticationFailure},
		{"signed by opponent", f.moveWith(t, forged, p, position.New(100, 65), 45), apperrors.CodeAuthenticationFailure},
		{"params for another destination", f.moveWith(t, wrongDest, p, position.New(100, 65), 45), apperrors.CodeAuthenticationFailure},
		{"signed for another piece", f.moveWith(t, wrongPiece, p, position.New(100, 65), 45), apperrors.CodeAuthenticationFailure},
		{"nonce zero", f.move(t, 0, p, position.New(100, 65), 45), apperrors.CodeOrderingViolation},
		{"piece witness missing directions", shortDirections, apperrors.CodeConsistencyFailure},
		{"origin witness from a smaller tree", shortOrigin, apperrors.CodeConsistencyFailure},
		{"destination witness from a taller tree", extraDest, apperrors.CodeConsistencyFailure},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.ApplyMove(f.rules, tc.move)
			if !apperrors.HasCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestApplyMoveOutsideArena(t *testing.T) {
	f := newFixture(t)
	p := f.place(t, 1, f.player, 790, 20)
	s := f.phase()

	m := f.move(t, 1, p, position.New(799, 20), 9)
	m.Destination = position.New(800, 20)
	if _, err := s.ApplyMove(f.rules, m); !apperrors.HasCode(err, apperrors.CodeRangeViolation) {
		t.Fatalf("expected range violation, got %v", err)
	}
}

func TestApplyMoveRejectsStaleWitness(t *testing.T) {
	f := newFixture(t)
	p := f.place(t, 1, f.player, 100, 20)
	stale := f.move(t, 1, p, position.New(100, 65), 45)

	// Another piece lands after the witnesses were taken.
	f.place(t, 3, f.player, 300, 300)
	s := f.phase()

	if _, err := s.ApplyMove(f.rules, stale); !apperrors.HasCode(err, apperrors.CodeConsistencyFailure) {
		t.Fatalf("expected consistency failure, got %v", err)
	}
}

func TestApplyMoveNonceOrdering(t *testing.T) {
	f := newFixture(t)
	first := f.place(t, 1, f.player, 100, 20)
	second := f.place(t, 3, f.player, 150, 15)
	s := f.phase()
	start := s

	s, err := s.ApplyMove(f.rules, f.move(t, 1, first, position.New(100, 65), 45))
	if err != nil {
		t.Fatalf("first move: %v", err)
	}
	f.commitMove(t, first, position.New(100, 65))

	replayed := f.move(t, 1, second, position.New(140, 50), 36)
	if _, err := s.ApplyMove(f.rules, replayed); !apperrors.HasCode(err, apperrors.CodeOrderingViolation) {
		t.Fatalf("expected ordering violation, got %v", err)
	}

	s, err = s.ApplyMove(f.rules, f.move(t, 2, second, position.New(140, 50), 36))
	if err != nil {
		t.Fatalf("second move: %v", err)
	}
	f.commitMove(t, second, position.New(140, 50))
	if s.ActionsNonce != 2 {
		t.Fatalf("expected actions nonce 2, got %d", s.ActionsNonce)
	}
	if !field.Equal(s.CurrentArena, f.arena.Root()) || !field.Equal(s.CurrentPieces, f.pieces.Root()) {
		t.Fatal("expected roots to track both moves")
	}
	if !field.Equal(s.StartingArena, start.CurrentArena) || !field.Equal(s.StartingPieces, start.CurrentPieces) {
		t.Fatal("expected starting roots to stay at the state before the first move")
	}
}

func TestApplyRangedAttack(t *testing.T) {
	f := newFixture(t)
	attacker := f.place(t, 1, f.player, 100, 20)
	target := f.place(t, 2, f.opponent, 130, 60)
	s := f.phase()

	next, report, err := s.ApplyRangedAttack(f.rules, f.attack(t, 1, action.RangedAttack, attacker, target, 50, attack.Dice{Hit: 6, Wound: 6, Save: 1}))
	if err != nil {
		t.Fatalf("ranged attack: %v", err)
	}
	if report.Target.Condition.Health != 1 {
		t.Fatalf("expected target health 1, got %d", report.Target.Condition.Health)
	}
	if err := f.pieces.Put(report.Target); err != nil {
		t.Fatalf("put target: %v", err)
	}
	if !field.Equal(next.CurrentPieces, f.pieces.Root()) {
		t.Fatal("expected pieces root to reflect damage")
	}
	if !field.Equal(next.CurrentArena, s.CurrentArena) {
		t.Fatal("expected attack to leave the arena untouched")
	}
}

func TestApplyRangedAttackSavedDealsNoDamage(t *testing.T) {
	f := newFixture(t)
	attacker := f.place(t, 1, f.player, 100, 20)
	target := f.place(t, 2, f.opponent, 130, 60)
	s := f.phase()

	next, report, err := s.ApplyRangedAttack(f.rules, f.attack(t, 1, action.RangedAttack, attacker, target, 50, attack.Dice{Hit: 6, Wound: 6, Save: 6}))
	if err != nil {
		t.Fatalf("ranged attack: %v", err)
	}
	if report.Target.Condition.Health != 3 || !report.Outcome.Saved {
		t.Fatalf("expected saved attack, got %+v", report)
	}
	if !field.Equal(next.CurrentPieces, s.CurrentPieces) {
		t.Fatal("expected unchanged pieces root")
	}
	if next.ActionsNonce != 1 {
		t.Fatalf("expected actions nonce 1, got %d", next.ActionsNonce)
	}
}

func TestApplyMeleeAttack(t *testing.T) {
	f := newFixture(t)
	attacker := f.place(t, 1, f.player, 100, 20)
	near := f.place(t, 2, f.opponent, 112, 36)
	far := f.place(t, 4, f.opponent, 100, 50)
	s := f.phase()

	_, report, err := s.ApplyMeleeAttack(f.rules, f.attack(t, 1, action.MeleeAttack, attacker, near, 20, attack.Dice{Hit: 6, Wound: 6, Save: 1}))
	if err != nil {
		t.Fatalf("melee attack: %v", err)
	}
	if report.Target.Condition.Health != 2 {
		t.Fatalf("expected target health 2, got %d", report.Target.Condition.Health)
	}

	_, _, err = s.ApplyMeleeAttack(f.rules, f.attack(t, 1, action.MeleeAttack, attacker, far, 30, attack.Dice{Hit: 6, Wound: 6, Save: 1}))
	if !apperrors.HasCode(err, apperrors.CodeRangeViolation) {
		t.Fatalf("expected range violation beyond melee range, got %v", err)
	}
}

func TestApplyAttackRejections(t *testing.T) {
	f := newFixture(t)
	attacker := f.place(t, 1, f.player, 100, 20)
	target := f.place(t, 2, f.opponent, 130, 60)
	distant := f.place(t, 4, f.opponent, 100, 90)
	s := f.phase()
	hit := attack.Dice{Hit: 6, Wound: 6, Save: 1}

	wrongKind := f.attack(t, 1, action.MeleeAttack, attacker, target, 50, hit)

	wrongTarget := f.attack(t, 1, action.RangedAttack, attacker, target, 50, hit)
	retargeted, err := action.NewAttack(1, action.RangedAttack, attacker.ID, distant.ID).Sign(f.player)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	wrongTarget.Action = retargeted

	rogueOracle := attack.NewOracle("v1", f.player, nil)
	spoofed := f.attack(t, 1, action.RangedAttack, attacker, target, 50, hit)
	spoofed.Roll, err = rogueOracle.Seal(hit, f.server.Public())
	if err != nil {
		t.Fatalf("seal spoofed: %v", err)
	}

	byOpponent := f.attack(t, 1, action.RangedAttack, target, attacker, 50, hit)

	tampered := f.attack(t, 1, action.RangedAttack, attacker, target, 50, hit)
	tampered.Target = target.WithCondition(target.Condition.WithHealth(1))

	self := f.attack(t, 1, action.RangedAttack, attacker, attacker, 0, hit)

	truncated := f.attack(t, 1, action.RangedAttack, attacker, target, 50, hit)
	truncated.TargetWitness.IsLeft = truncated.TargetWitness.IsLeft[:1]
	noAttackerPath := f.attack(t, 1, action.RangedAttack, attacker, target, 50, hit)
	noAttackerPath.AttackerWitness.Path = nil

	tests := []struct {
		name         string
		attack       Attack
		actionsNonce uint64
		code         apperrors.Code
	}{
		{name: "out of range", attack: f.attack(t, 1, action.RangedAttack, attacker, distant, 70, hit), code: apperrors.CodeRangeViolation},
		{name: "wrong distance", attack: f.attack(t, 1, action.RangedAttack, attacker, target, 49, hit), code: apperrors.CodeRangeViolation},
		{name: "melee action as ranged", attack: wrongKind, code: apperrors.CodeAuthenticationFailure},
		{name: "signed for another target", attack: wrongTarget, code: apperrors.CodeAuthenticationFailure},
		{name: "spoofed roll", attack: spoofed, code: apperrors.CodeReplayOrSpoofing},
		{name: "opponent attacker", attack: byOpponent, code: apperrors.CodeAuthenticationFailure},
		{name: "tampered target", attack: tampered, code: apperrors.CodeConsistencyFailure},
		{name: "self target", attack: self, code: apperrors.CodeConsistencyFailure},
		{name: "nonce not above actions nonce", attack: f.attack(t, 2, action.RangedAttack, attacker, target, 50, hit), actionsNonce: 3, code: apperrors.CodeOrderingViolation},
		{name: "nonce equal to actions nonce", attack: f.attack(t, 3, action.RangedAttack, attacker, target, 50, hit), actionsNonce: 3, code: apperrors.CodeOrderingViolation},
		{name: "target witness missing directions", attack: truncated, code: apperrors.CodeConsistencyFailure},
		{name: "attacker witness without path", attack: noAttackerPath, code: apperrors.CodeConsistencyFailure},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := s
			st.ActionsNonce = tc.actionsNonce
			_, _, err := st.ApplyRangedAttack(f.rules, tc.attack)
			if !apperrors.HasCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestStateJSONRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.place(t, 1, f.player, 100, 20)
	s := f.phase().WithNonce(3)
	s.ActionsNonce = 7

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got State
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !field.Equal(got.Hash(), s.Hash()) {
		t.Fatal("expected round trip to preserve hash")
	}
	if got.Nonce != 3 || got.ActionsNonce != 7 {
		t.Fatalf("expected nonces 3/7, got %d/%d", got.Nonce, got.ActionsNonce)
	}
}
