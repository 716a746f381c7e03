package engine

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel/attribute"

	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/action"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/game"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/phase"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/position"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/turn"
	"github.com/louisbranch/proving.grounds/internal/services/arena/journal"
)

// MoveRequest is a player's signed move. The action commits to Destination;
// Distance is the player's asserted Euclidean distance.
type MoveRequest struct {
	Action      action.Signed
	Destination position.Position
	Distance    uint32
}

// AttackRequest is a player's signed attack on Target.
type AttackRequest struct {
	Action   action.Signed
	Target   uint64
	Distance uint32
}

// Move relocates a piece of the active player.
func (m *Match) Move(ctx context.Context, req MoveRequest) (phase.State, error) {
	ctx, span := m.start(ctx, "arena.move",
		attribute.Int64("arena.nonce", int64(req.Action.Action.Nonce)),
		attribute.Int64("arena.piece", int64(req.Action.Action.Piece)))
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	t, p := m.open()
	mv, err := m.buildMove(req)
	if err != nil {
		return phase.State{}, m.reject(span, "move", err)
	}
	next, err := p.ApplyMove(m.rules, mv)
	if err != nil {
		return phase.State{}, m.reject(span, "move", err)
	}

	board := m.board.Clone()
	if err := board.Arena.SetOccupied(mv.Piece.Position, false); err != nil {
		return phase.State{}, m.reject(span, "move", err)
	}
	if err := board.Arena.SetOccupied(mv.Destination, true); err != nil {
		return phase.State{}, m.reject(span, "move", err)
	}
	if err := board.Pieces.Put(mv.Piece.WithPosition(mv.Destination)); err != nil {
		return phase.State{}, m.reject(span, "move", err)
	}
	if err := checkRoots(board, next.CurrentPieces, next.CurrentArena); err != nil {
		return phase.State{}, m.reject(span, "move", err)
	}
	if err := m.record(ctx, journal.TypeMove, journal.MoveAccepted{Move: mv, Phase: next}); err != nil {
		return phase.State{}, fail(span, err)
	}

	m.board = board
	m.turn = &t
	m.phase = &next
	log.Printf("match %s move piece=%d to=%s nonce=%d", m.id, mv.Piece.ID, mv.Destination, next.ActionsNonce)
	return next, nil
}

func (m *Match) buildMove(req MoveRequest) (phase.Move, error) {
	p, err := m.board.Pieces.Piece(req.Action.Action.Piece)
	if err != nil {
		return phase.Move{}, err
	}
	pw, err := m.board.Pieces.Witness(p.ID)
	if err != nil {
		return phase.Move{}, err
	}
	ow, err := m.board.Arena.Witness(p.Position)
	if err != nil {
		return phase.Move{}, err
	}
	mv := phase.Move{
		Action:        req.Action,
		Piece:         p,
		PieceWitness:  pw,
		OriginWitness: ow,
		Destination:   req.Destination,
		Distance:      req.Distance,
	}
	// Off-arena destinations have no witness; the phase machine rejects them.
	if req.Destination.InBounds(m.rules.ArenaWidth, m.rules.ArenaHeight) {
		if mv.DestWitness, err = m.board.Arena.Witness(req.Destination); err != nil {
			return phase.Move{}, err
		}
	}
	return mv, nil
}

// RangedAttack resolves a ranged attack with a fresh oracle roll.
func (m *Match) RangedAttack(ctx context.Context, req AttackRequest) (phase.AttackReport, error) {
	return m.attack(ctx, "arena.ranged_attack", journal.TypeRangedAttack, req, phase.State.ApplyRangedAttack)
}

// MeleeAttack resolves a melee attack with a fresh oracle roll.
func (m *Match) MeleeAttack(ctx context.Context, req AttackRequest) (phase.AttackReport, error) {
	return m.attack(ctx, "arena.melee_attack", journal.TypeMeleeAttack, req, phase.State.ApplyMeleeAttack)
}

type attackFunc func(phase.State, phase.Rules, phase.Attack) (phase.State, phase.AttackReport, error)

func (m *Match) attack(ctx context.Context, op string, t journal.Type, req AttackRequest, apply attackFunc) (phase.AttackReport, error) {
	ctx, span := m.start(ctx, op,
		attribute.Int64("arena.nonce", int64(req.Action.Action.Nonce)),
		attribute.Int64("arena.piece", int64(req.Action.Action.Piece)),
		attribute.Int64("arena.target", int64(req.Target)))
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	tn, p := m.open()
	a, err := m.buildAttack(req)
	if err != nil {
		return phase.AttackReport{}, m.reject(span, op, err)
	}
	if err := m.rolls.Check(a.Roll); err != nil {
		return phase.AttackReport{}, m.reject(span, op, err)
	}
	next, report, err := apply(p, m.rules, a)
	if err != nil {
		return phase.AttackReport{}, m.reject(span, op, err)
	}

	board := m.board.Clone()
	if err := board.Pieces.Put(report.Target); err != nil {
		return phase.AttackReport{}, m.reject(span, op, err)
	}
	if err := checkRoots(board, next.CurrentPieces, next.CurrentArena); err != nil {
		return phase.AttackReport{}, m.reject(span, op, err)
	}
	if err := m.record(ctx, t, journal.AttackAccepted{Attack: a, Report: report, Phase: next}); err != nil {
		return phase.AttackReport{}, fail(span, err)
	}

	m.rolls.Spend(a.Roll)
	m.board = board
	m.turn = &tn
	m.phase = &next
	span.SetAttributes(attribute.Int64("arena.damage", int64(report.Outcome.Damage)))
	log.Printf("match %s %s attacker=%d target=%d damage=%d health=%d",
		m.id, op, a.Attacker.ID, a.Target.ID, report.Outcome.Damage, report.Target.Condition.Health)
	return report, nil
}

func (m *Match) buildAttack(req AttackRequest) (phase.Attack, error) {
	attacker, err := m.board.Pieces.Piece(req.Action.Action.Piece)
	if err != nil {
		return phase.Attack{}, err
	}
	target, err := m.board.Pieces.Piece(req.Target)
	if err != nil {
		return phase.Attack{}, err
	}
	aw, err := m.board.Pieces.Witness(attacker.ID)
	if err != nil {
		return phase.Attack{}, err
	}
	tw, err := m.board.Pieces.Witness(target.ID)
	if err != nil {
		return phase.Attack{}, err
	}
	roll, err := m.cfg.Roller.Roll(m.cfg.ServerKey.Public())
	if err != nil {
		return phase.Attack{}, fmt.Errorf("roll dice: %w", err)
	}
	return phase.Attack{
		Action:          req.Action,
		Attacker:        attacker,
		Target:          target,
		AttackerWitness: aw,
		TargetWitness:   tw,
		Distance:        req.Distance,
		Roll:            roll,
		Recipient:       m.cfg.ServerKey,
	}, nil
}

// EndPhase folds the open phase into its turn. A phase with no actions may
// be ended.
func (m *Match) EndPhase(ctx context.Context) (turn.State, error) {
	ctx, span := m.start(ctx, "arena.end_phase")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := m.endPhase(ctx)
	if err != nil {
		return turn.State{}, m.reject(span, "end phase", err)
	}
	span.SetAttributes(attribute.Int64("arena.nonce", int64(next.PhaseNonce)))
	return next, nil
}

func (m *Match) endPhase(ctx context.Context) (turn.State, error) {
	t, p := m.open()
	next, err := t.ApplyPhase(p)
	if err != nil {
		return turn.State{}, err
	}
	if err := m.record(ctx, journal.TypePhaseEnded, journal.PhaseEnded{Phase: p, Turn: next}); err != nil {
		return turn.State{}, err
	}
	m.turn = &next
	m.phase = nil
	log.Printf("match %s phase %d ended in turn %d", m.id, p.Nonce, next.Nonce)
	return next, nil
}

// EndTurn folds any open phase, then the turn into the game, handing play
// to the other player.
func (m *Match) EndTurn(ctx context.Context) (game.State, error) {
	ctx, span := m.start(ctx, "arena.end_turn")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != nil {
		if _, err := m.endPhase(ctx); err != nil {
			return game.State{}, m.reject(span, "end turn", err)
		}
	}
	t, _ := m.open()
	next, err := m.game.ApplyTurn(t)
	if err != nil {
		return game.State{}, m.reject(span, "end turn", err)
	}
	payload := journal.TurnEnded{Turn: t, Game: next}
	cert := m.cert
	if m.chain != nil {
		cert, err = m.chain.Step(m.cert, m.game, next, t)
		if err != nil {
			return game.State{}, m.reject(span, "end turn", fmt.Errorf("certify turn %d: %w", t.Nonce, err))
		}
		payload.Certificate = cert.Token
	}
	if err := m.record(ctx, journal.TypeTurnEnded, payload); err != nil {
		return game.State{}, fail(span, err)
	}

	m.game = next
	m.cert = cert
	m.turn = nil
	m.phase = nil
	span.SetAttributes(attribute.Int64("arena.nonce", int64(next.TurnsNonce)))
	log.Printf("match %s turn %d ended, player %d to act", m.id, next.TurnsNonce, next.PlayerTurn)
	return next, nil
}
