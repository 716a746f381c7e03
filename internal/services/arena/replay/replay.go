// Package replay re-derives a match from its journal. Every recorded
// transition is run again through the pure state machines and the result
// must equal the state the authority recorded.
package replay

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"

	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/action"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/attack"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/game"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/keys"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/phase"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/piece"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/proofchain"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/turn"
	"github.com/louisbranch/proving.grounds/internal/services/arena/journal"
)

// Options configures a replay.
type Options struct {
	Oracles *attack.OracleKeyring
	// ServerKey decrypts attack rolls. Journals with attacks cannot be
	// replayed without it.
	ServerKey *keys.PrivateKey
	// Verifier checks game certificates when set. A certified match replayed
	// without a verifier still has its certificates collected.
	Verifier proofchain.Verifier
}

// Result is the state a journal folds to.
type Result struct {
	MatchID    string
	Records    int
	MeleeRange uint32
	Authority  keys.PublicKey
	Game       game.State
	Turn       *turn.State
	Phase      *phase.State
	// Pieces is every piece as of the last record, ordered by id.
	Pieces       []piece.Piece
	Certificates []proofchain.Certificate
	// Rolls holds every attack roll the journal consumed.
	Rolls attack.SpentRolls
}

// Run loads every record of matchID and replays them.
func Run(ctx context.Context, j journal.Journal, matchID string, opts Options) (Result, error) {
	records, err := journal.ListAll(ctx, j, matchID)
	if err != nil {
		return Result{}, err
	}
	return Records(records, opts)
}

type replayer struct {
	opts   Options
	res    Result
	rules  phase.Rules
	pieces map[uint64]piece.Piece
}

// Records replays an already-loaded journal.
func Records(records []journal.Record, opts Options) (Result, error) {
	if len(records) == 0 {
		return Result{}, journal.ErrNotFound
	}
	if records[0].Type != journal.TypeMatchCreated {
		return Result{}, apperrors.New(apperrors.CodeConsistencyFailure,
			fmt.Sprintf("journal starts with %s, want %s", records[0].Type, journal.TypeMatchCreated))
	}
	r := &replayer{opts: opts, pieces: make(map[uint64]piece.Piece)}
	r.res.Rolls = attack.SpentRolls{}
	for i, rec := range records {
		if rec.Seq != uint64(i+1) {
			return Result{}, apperrors.New(apperrors.CodeIntegrity,
				fmt.Sprintf("record sequence gap expected=%d got=%d", i+1, rec.Seq))
		}
		if err := r.apply(rec); err != nil {
			return Result{}, fmt.Errorf("replay seq=%d %s: %w", rec.Seq, rec.Type, err)
		}
	}
	r.res.Records = len(records)
	r.res.Pieces = make([]piece.Piece, 0, len(r.pieces))
	for _, p := range r.pieces {
		r.res.Pieces = append(r.res.Pieces, p)
	}
	slices.SortFunc(r.res.Pieces, func(a, b piece.Piece) int { return cmp.Compare(a.ID, b.ID) })
	return r.res, nil
}

func (r *replayer) apply(rec journal.Record) error {
	if rec.Type != journal.TypeMatchCreated && rec.Seq == 1 {
		return apperrors.New(apperrors.CodeConsistencyFailure, "match was not created")
	}
	switch rec.Type {
	case journal.TypeMatchCreated:
		if rec.Seq != 1 {
			return apperrors.New(apperrors.CodeConsistencyFailure, "match created twice")
		}
		return r.created(rec)
	case journal.TypeMove:
		return r.move(rec)
	case journal.TypeRangedAttack:
		return r.attack(rec, phase.State.ApplyRangedAttack)
	case journal.TypeMeleeAttack:
		return r.attack(rec, phase.State.ApplyMeleeAttack)
	case journal.TypePhaseEnded:
		return r.phaseEnded(rec)
	case journal.TypeTurnEnded:
		return r.turnEnded(rec)
	default:
		return apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("unknown record type %q", rec.Type))
	}
}

func (r *replayer) created(rec journal.Record) error {
	p, err := journal.Decode[journal.MatchCreated](rec)
	if err != nil {
		return err
	}
	g := p.Game
	genesis, _, err := game.Genesis(g.Player1, g.Player2, g.ArenaWidth, g.ArenaLength, p.Pieces)
	if err != nil {
		return err
	}
	if err := sameState("genesis", genesis, g); err != nil {
		return err
	}
	if r.opts.ServerKey != nil && !r.opts.ServerKey.Public().Equal(p.Authority) {
		return apperrors.New(apperrors.CodeAuthenticationFailure, "server key is not the match authority")
	}
	r.res.MatchID = rec.MatchID
	r.res.Game = genesis
	r.res.MeleeRange = p.MeleeRange
	r.res.Authority = p.Authority
	r.rules = phase.Rules{
		ArenaWidth:  g.ArenaWidth,
		ArenaHeight: g.ArenaLength,
		MeleeRange:  p.MeleeRange,
		Oracles:     r.opts.Oracles,
	}
	for _, pc := range p.Pieces {
		r.pieces[pc.ID] = pc
	}
	if p.Certificate != "" {
		return r.certify(proofchain.Certificate{Layer: proofchain.LayerGame, State: genesis.Hash(), Token: p.Certificate})
	}
	return nil
}

// open mirrors the engine: turns and phases start on first use.
func (r *replayer) open() (turn.State, phase.State) {
	t := r.res.Game.NextTurn()
	if r.res.Turn != nil {
		t = *r.res.Turn
	}
	p := t.NextPhase()
	if r.res.Phase != nil {
		p = *r.res.Phase
	}
	return t, p
}

func (r *replayer) move(rec journal.Record) error {
	signed, err := recordedAction(rec, "move")
	if err != nil {
		return err
	}
	payload, err := journal.Decode[journal.MoveAccepted](rec)
	if err != nil {
		return err
	}
	payload.Move.Action = signed
	t, p := r.open()
	next, err := p.ApplyMove(r.rules, payload.Move)
	if err != nil {
		return err
	}
	if err := sameState("phase", next, payload.Phase); err != nil {
		return err
	}
	r.pieces[payload.Move.Piece.ID] = payload.Move.Piece.WithPosition(payload.Move.Destination)
	r.res.Turn, r.res.Phase = &t, &next
	return nil
}

// recordedAction pulls the signed player action out of a move or attack
// payload and runs it through the wire schema, as the authority did when
// the player submitted it.
func recordedAction(rec journal.Record, key string) (action.Signed, error) {
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(rec.Payload, &outer); err != nil {
		return action.Signed{}, apperrors.Wrap(apperrors.CodeInvalidArgument, fmt.Sprintf("decode %s seq=%d", rec.Type, rec.Seq), err)
	}
	var inner struct {
		Action json.RawMessage `json:"action"`
	}
	if err := json.Unmarshal(outer[key], &inner); err != nil || len(inner.Action) == 0 {
		return action.Signed{}, apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("%s seq=%d has no %s action", rec.Type, rec.Seq, key))
	}
	return action.DecodeSigned(inner.Action)
}

type attackFunc func(phase.State, phase.Rules, phase.Attack) (phase.State, phase.AttackReport, error)

func (r *replayer) attack(rec journal.Record, apply attackFunc) error {
	if r.opts.ServerKey == nil {
		return apperrors.New(apperrors.CodeInvalidArgument, "server key is required to replay attacks")
	}
	signed, err := recordedAction(rec, "attack")
	if err != nil {
		return err
	}
	payload, err := journal.Decode[journal.AttackAccepted](rec)
	if err != nil {
		return err
	}
	t, p := r.open()
	a := payload.Attack
	a.Action = signed
	a.Recipient = *r.opts.ServerKey
	if err := r.res.Rolls.Check(a.Roll); err != nil {
		return err
	}
	next, report, err := apply(p, r.rules, a)
	if err != nil {
		return err
	}
	if err := sameState("phase", next, payload.Phase); err != nil {
		return err
	}
	if report.Dice != payload.Report.Dice || report.Outcome != payload.Report.Outcome {
		return apperrors.New(apperrors.CodeConsistencyFailure, "recorded attack report does not match the decrypted roll")
	}
	r.res.Rolls.Spend(a.Roll)
	r.pieces[report.Target.ID] = report.Target
	r.res.Turn, r.res.Phase = &t, &next
	return nil
}

func (r *replayer) phaseEnded(rec journal.Record) error {
	payload, err := journal.Decode[journal.PhaseEnded](rec)
	if err != nil {
		return err
	}
	t, p := r.open()
	if err := sameState("ended phase", p, payload.Phase); err != nil {
		return err
	}
	next, err := t.ApplyPhase(p)
	if err != nil {
		return err
	}
	if err := sameState("turn", next, payload.Turn); err != nil {
		return err
	}
	r.res.Turn, r.res.Phase = &next, nil
	return nil
}

func (r *replayer) turnEnded(rec journal.Record) error {
	payload, err := journal.Decode[journal.TurnEnded](rec)
	if err != nil {
		return err
	}
	if r.res.Phase != nil {
		return apperrors.New(apperrors.CodeConsistencyFailure, "turn ended with a phase still open")
	}
	t, _ := r.open()
	if err := sameState("ended turn", t, payload.Turn); err != nil {
		return err
	}
	next, err := r.res.Game.ApplyTurn(t)
	if err != nil {
		return err
	}
	if err := sameState("game", next, payload.Game); err != nil {
		return err
	}
	r.res.Game, r.res.Turn = next, nil

	certified := len(r.res.Certificates) > 0
	switch {
	case certified && payload.Certificate == "":
		return apperrors.New(apperrors.CodeIntegrity, "certified match has an uncertified turn")
	case !certified && payload.Certificate != "":
		return apperrors.New(apperrors.CodeIntegrity, "turn certificate without a genesis certificate")
	case !certified:
		return nil
	}
	prev := r.res.Certificates[len(r.res.Certificates)-1]
	return r.certify(proofchain.Certificate{
		Layer: proofchain.LayerGame,
		Step:  prev.Step + 1,
		State: next.Hash(),
		Prev:  prev.Digest(),
		Token: payload.Certificate,
	})
}

func (r *replayer) certify(cert proofchain.Certificate) error {
	if r.opts.Verifier != nil {
		if err := r.opts.Verifier.Verify(cert); err != nil {
			return err
		}
	}
	r.res.Certificates = append(r.res.Certificates, cert)
	return nil
}

func sameState(what string, got, recorded proofchain.Hashable) error {
	if !field.Equal(got.Hash(), recorded.Hash()) {
		return apperrors.New(apperrors.CodeConsistencyFailure, fmt.Sprintf("replayed %s differs from the recorded one", what))
	}
	return nil
}
