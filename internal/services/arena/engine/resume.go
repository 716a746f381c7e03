package engine

import (
	"context"
	"fmt"
	"log"

	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/game"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/phase"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/proofchain"
	"github.com/louisbranch/proving.grounds/internal/services/arena/replay"
)

// Resume rebuilds a journaled match so play can continue. The journal is
// replayed in full; the players, arena and melee range come from it and the
// Rules, Player1, Player2 and MatchID fields of cfg are ignored.
func Resume(ctx context.Context, cfg Config, matchID string) (*Match, error) {
	if cfg.Journal == nil || cfg.Oracles == nil || cfg.Roller == nil || cfg.ServerKey.Public().IsZero() {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "resume needs a journal, oracle keyring, roller and server key")
	}
	cfg = cfg.withDefaults()
	ctx, span := cfg.Tracer.Start(ctx, "arena.resume")
	defer span.End()

	opts := replay.Options{Oracles: cfg.Oracles, ServerKey: &cfg.ServerKey}
	if cfg.Backend != nil {
		opts.Verifier = cfg.Backend
	}
	res, err := replay.Run(ctx, cfg.Journal, matchID, opts)
	if err != nil {
		return nil, fail(span, err)
	}
	certified := len(res.Certificates) > 0
	if certified && cfg.Backend == nil {
		return nil, fail(span, apperrors.New(apperrors.CodeInvalidArgument, "certified match needs an attestation backend"))
	}

	g := res.Game
	_, board, err := game.Genesis(g.Player1, g.Player2, g.ArenaWidth, g.ArenaLength, res.Pieces)
	if err != nil {
		return nil, fail(span, fmt.Errorf("rebuild board: %w", err))
	}
	pieces, arena := g.PiecesRoot, g.ArenaRoot
	switch {
	case res.Phase != nil:
		pieces, arena = res.Phase.CurrentPieces, res.Phase.CurrentArena
	case res.Turn != nil:
		pieces, arena = res.Turn.CurrentPieces, res.Turn.CurrentArena
	}
	if err := checkRoots(board, pieces, arena); err != nil {
		return nil, fail(span, err)
	}

	cfg.MatchID = res.MatchID
	cfg.Player1, cfg.Player2 = g.Player1, g.Player2
	m := &Match{
		id:  res.MatchID,
		cfg: cfg,
		rules: phase.Rules{
			ArenaWidth:  g.ArenaWidth,
			ArenaHeight: g.ArenaLength,
			MeleeRange:  res.MeleeRange,
			Oracles:     cfg.Oracles,
		},
		board: board,
		game:  g,
		turn:  res.Turn,
		phase: res.Phase,
		rolls: res.Rolls,
	}
	if certified {
		m.chain = proofchain.NewGameChain(g, cfg.Backend)
		m.cert = res.Certificates[len(res.Certificates)-1]
	}
	log.Printf("match %s resumed at record %d", m.id, res.Records)
	return m, nil
}
