package engine

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/attack"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/game"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/phase"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/piece"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/proofchain"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/turn"
	"github.com/louisbranch/proving.grounds/internal/services/arena/journal"
)

// Match is one running game under the engine's authority. It is safe for
// concurrent use; transitions are serialized.
type Match struct {
	mu    sync.Mutex
	id    string
	cfg   Config
	rules phase.Rules

	board game.Board
	game  game.State
	// turn and phase are nil until the first transition that needs them.
	turn  *turn.State
	phase *phase.State

	chain *proofchain.Chain[game.State, turn.State]
	cert  proofchain.Certificate

	rolls attack.SpentRolls
}

// NewMatch places the starting pieces, certifies genesis when a backend is
// configured and journals the match creation.
func NewMatch(ctx context.Context, cfg Config) (*Match, error) {
	if err := cfg.validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid match config", err)
	}
	cfg = cfg.withDefaults()
	id := cfg.MatchID
	if id == "" {
		id = uuid.NewString()
	}

	ctx, span := cfg.Tracer.Start(ctx, "arena.new_match", trace.WithAttributes(attribute.String("arena.match_id", id)))
	defer span.End()

	placements, err := cfg.Rules.Pieces(cfg.Player1, cfg.Player2)
	if err != nil {
		return nil, fail(span, err)
	}
	genesis, board, err := game.Genesis(cfg.Player1, cfg.Player2, cfg.Rules.ArenaWidth, cfg.Rules.ArenaHeight, placements)
	if err != nil {
		return nil, fail(span, err)
	}

	m := &Match{
		id:    id,
		cfg:   cfg,
		rules: cfg.Rules.Phase(cfg.Oracles),
		board: board,
		game:  genesis,
		rolls: attack.SpentRolls{},
	}
	payload := journal.MatchCreated{
		Game:       genesis,
		Pieces:     board.Pieces.Pieces(),
		MeleeRange: cfg.Rules.MeleeRange,
		Authority:  cfg.ServerKey.Public(),
	}
	if cfg.Backend != nil {
		m.chain = proofchain.NewGameChain(genesis, cfg.Backend)
		cert, err := m.chain.Init(genesis)
		if err != nil {
			return nil, fail(span, fmt.Errorf("certify genesis: %w", err))
		}
		m.cert = cert
		payload.Certificate = cert.Token
	}
	if err := m.record(ctx, journal.TypeMatchCreated, payload); err != nil {
		return nil, fail(span, err)
	}
	log.Printf("match %s created pieces=%d", id, len(payload.Pieces))
	return m, nil
}

// ID returns the match id.
func (m *Match) ID() string {
	return m.id
}

// Game returns the committed game state.
func (m *Match) Game() game.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.game
}

// Turn returns the open turn, if any.
func (m *Match) Turn() (turn.State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.turn == nil {
		return turn.State{}, false
	}
	return *m.turn, true
}

// Phase returns the open phase, if any.
func (m *Match) Phase() (phase.State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == nil {
		return phase.State{}, false
	}
	return *m.phase, true
}

// Pieces returns every piece as the authority currently sees it.
func (m *Match) Pieces() []piece.Piece {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.board.Pieces.Pieces()
}

// Certificate returns the latest game certificate. ok is false when the
// match is not certified.
func (m *Match) Certificate() (proofchain.Certificate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cert, m.chain != nil
}

// open returns the turn and phase the next action runs in, opening them
// when needed. Nothing is stored until the action is accepted.
func (m *Match) open() (turn.State, phase.State) {
	t := m.game.NextTurn()
	if m.turn != nil {
		t = *m.turn
	}
	p := t.NextPhase()
	if m.phase != nil {
		p = *m.phase
	}
	return t, p
}

// checkRoots guards the swap: the stores must back the state the machine
// accepted.
func checkRoots(b game.Board, pieces, arena field.Element) error {
	if !field.Equal(b.Pieces.Root(), pieces) || !field.Equal(b.Arena.Root(), arena) {
		return apperrors.New(apperrors.CodeConsistencyFailure, "authority trees diverged from the accepted state")
	}
	return nil
}

func (m *Match) record(ctx context.Context, t journal.Type, payload any) error {
	r, err := journal.New(m.id, t, payload, m.cfg.Now())
	if err != nil {
		return err
	}
	if _, err := m.cfg.Journal.Append(ctx, r); err != nil {
		return fmt.Errorf("journal %s: %w", t, err)
	}
	return nil
}

func (m *Match) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("arena.match_id", m.id))
	return m.cfg.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// reject logs and traces a refused transition.
func (m *Match) reject(span trace.Span, op string, err error) error {
	log.Printf("match %s %s rejected code=%s: %v", m.id, op, apperrors.CodeOf(err), err)
	return fail(span, err)
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
	return err
}
