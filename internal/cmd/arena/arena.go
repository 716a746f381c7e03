// Package arena parses arena command flags and runs journal verification or
// a scripted demo match.
package arena

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strings"

	"google.golang.org/grpc/status"

	entrypoint "github.com/louisbranch/proving.grounds/internal/platform/cmd"
	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/action"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/attack"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/game"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/keys"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/phase"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/piece"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/position"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/proofchain"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/turn"
	"github.com/louisbranch/proving.grounds/internal/services/arena/engine"
	"github.com/louisbranch/proving.grounds/internal/services/arena/journal"
	"github.com/louisbranch/proving.grounds/internal/services/arena/replay"
	"github.com/louisbranch/proving.grounds/internal/services/arena/rules"
	"github.com/louisbranch/proving.grounds/internal/services/arena/storage/archive"
	"github.com/louisbranch/proving.grounds/internal/services/arena/storage/integrity"
	"github.com/louisbranch/proving.grounds/internal/services/arena/storage/sqlite"
)

const (
	ModeVerify = "verify"
	ModeDemo   = "demo"
)

// Config holds arena command configuration.
type Config struct {
	Mode         string `env:"ARENA_MODE" envDefault:"verify"`
	JournalPath  string `env:"ARENA_JOURNAL_PATH" envDefault:"data/arena.db"`
	RulesPath    string `env:"ARENA_RULES_PATH"`
	MatchID      string `env:"ARENA_MATCH_ID"`
	ArchivePath  string `env:"ARENA_ARCHIVE_PATH"`
	ExportPath   string `env:"ARENA_EXPORT_PATH"`
	ServerKey    string `env:"ARENA_SERVER_KEY"`
	OracleSecret string `env:"ARENA_ORACLE_SECRET_KEY"`
	OracleKeyID  string `env:"ARENA_ORACLE_KEY_ID" envDefault:"v1"`
	Certify      bool   `env:"ARENA_CERTIFY"`
	Rounds       int    `env:"ARENA_DEMO_ROUNDS" envDefault:"1"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg, err := entrypoint.Load(fs, args, bindFlags)
	if err != nil {
		return Config{}, err
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	return cfg, nil
}

func bindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "verify or demo")
	fs.StringVar(&cfg.JournalPath, "journal", cfg.JournalPath, "SQLite journal path")
	fs.StringVar(&cfg.RulesPath, "rules", cfg.RulesPath, "YAML rules file (demo)")
	fs.StringVar(&cfg.MatchID, "match", cfg.MatchID, "match id (default: every match)")
	fs.StringVar(&cfg.ArchivePath, "archive", cfg.ArchivePath, "read records from a zstd archive instead of the journal")
	fs.StringVar(&cfg.ExportPath, "export", cfg.ExportPath, "write verified records to a zstd archive")
	fs.BoolVar(&cfg.Certify, "certify", cfg.Certify, "issue (demo) or verify game certificates")
	fs.IntVar(&cfg.Rounds, "rounds", cfg.Rounds, "demo rounds, one turn per player each")
}

// Run executes the configured mode, writing results to out.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		return fmt.Errorf("output is required")
	}
	switch cfg.Mode {
	case ModeVerify, "":
		return verify(ctx, cfg, out)
	case ModeDemo:
		return demo(ctx, cfg, out)
	default:
		return fmt.Errorf("unknown mode %q", cfg.Mode)
	}
}

// Summary is the verified state of one match.
type Summary struct {
	MatchID      string        `json:"matchId"`
	Records      int           `json:"records"`
	Game         game.State    `json:"game"`
	Turn         *turn.State   `json:"turn,omitempty"`
	Phase        *phase.State  `json:"phase,omitempty"`
	Pieces       []piece.Piece `json:"pieces"`
	Certificates int           `json:"certificates"`
}

func verify(ctx context.Context, cfg Config, out io.Writer) error {
	keyring, err := integrity.KeyringFromEnv()
	if err != nil {
		return fmt.Errorf("journal keyring: %w", err)
	}
	opts, err := replayOptions(cfg)
	if err != nil {
		return err
	}

	var (
		src      journal.Journal
		matchIDs []string
	)
	if cfg.ArchivePath != "" {
		records, err := readArchive(cfg.ArchivePath)
		if err != nil {
			return err
		}
		a := archive.NewSource(records)
		src, matchIDs = a, a.MatchIDs()
	} else {
		store, err := sqlite.Open(ctx, cfg.JournalPath, keyring)
		if err != nil {
			return err
		}
		defer store.Close()
		matches, err := store.ListMatches(ctx)
		if err != nil {
			return err
		}
		for _, m := range matches {
			matchIDs = append(matchIDs, m.ID)
		}
		src = store
	}
	if cfg.MatchID != "" {
		matchIDs = []string{cfg.MatchID}
	}
	if len(matchIDs) == 0 {
		return fmt.Errorf("no matches to verify")
	}

	var verified []journal.Record
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	for _, id := range matchIDs {
		summary, records, err := verifyMatch(ctx, src, keyring, opts, cfg.Certify, id)
		if err != nil {
			if encErr := enc.Encode(Rejected{MatchID: id, Failure: failureOf(err)}); encErr != nil {
				return encErr
			}
			return fmt.Errorf("match %s: %w", id, err)
		}
		log.Printf("match %s verified records=%d turns=%d", id, summary.Records, summary.Game.TurnsNonce)
		if err := enc.Encode(summary); err != nil {
			return err
		}
		verified = append(verified, records...)
	}
	if cfg.ExportPath != "" {
		return writeArchive(cfg.ExportPath, verified)
	}
	return nil
}

func verifyMatch(ctx context.Context, src journal.Journal, keyring *integrity.Keyring, opts replay.Options, certify bool, id string) (Summary, []journal.Record, error) {
	records, err := journal.ListAll(ctx, src, id)
	if err != nil {
		return Summary{}, nil, err
	}
	if err := journal.VerifyChain(keyring, records); err != nil {
		return Summary{}, nil, err
	}
	res, err := replay.Records(records, opts)
	if err != nil {
		return Summary{}, nil, err
	}
	if certify {
		if err := proofchain.VerifyChain(opts.Verifier, res.Certificates); err != nil {
			return Summary{}, nil, err
		}
	}
	return Summary{
		MatchID:      res.MatchID,
		Records:      res.Records,
		Game:         res.Game,
		Turn:         res.Turn,
		Phase:        res.Phase,
		Pieces:       res.Pieces,
		Certificates: len(res.Certificates),
	}, records, nil
}

// Failure is a rejection as a gRPC client of the authority would receive it:
// the status code plus the ErrorInfo reason and metadata.
type Failure struct {
	Status   string            `json:"status"`
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Rejected is printed in place of a Summary for a match that fails.
type Rejected struct {
	MatchID string  `json:"matchId"`
	Failure Failure `json:"failure"`
}

func failureOf(err error) Failure {
	st := status.Convert(apperrors.Coded(err).ToGRPCStatus())
	decoded := apperrors.FromGRPCStatus(st.Err())
	return Failure{
		Status:   st.Code().String(),
		Code:     string(decoded.Code),
		Message:  decoded.Message,
		Metadata: decoded.Metadata,
	}
}

func replayOptions(cfg Config) (replay.Options, error) {
	oracles, err := attack.OracleKeyringFromEnv()
	if err != nil {
		return replay.Options{}, fmt.Errorf("oracle keyring: %w", err)
	}
	opts := replay.Options{Oracles: oracles}
	if strings.TrimSpace(cfg.ServerKey) != "" {
		k, err := keys.ParsePrivateKey(strings.TrimSpace(cfg.ServerKey))
		if err != nil {
			return replay.Options{}, fmt.Errorf("server key: %w", err)
		}
		opts.ServerKey = &k
	}
	if cfg.Certify {
		attestor, err := proofchain.AttestorFromEnv()
		if err != nil {
			return replay.Options{}, fmt.Errorf("attestor: %w", err)
		}
		opts.Verifier = attestor
	}
	return opts, nil
}

func readArchive(path string) ([]journal.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()
	return archive.Import(f)
}

func writeArchive(path string, records []journal.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	if err := archive.Export(f, records); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// demo plays a scripted match: on each turn the active player's pieces shoot
// the nearest enemy in range, otherwise step toward it.
func demo(ctx context.Context, cfg Config, out io.Writer) error {
	r, err := rules.Load(cfg.RulesPath)
	if err != nil {
		return err
	}
	keyring, err := integrity.KeyringFromEnv()
	if err != nil {
		return fmt.Errorf("journal keyring: %w", err)
	}
	server, err := loadOrGenerate(cfg.ServerKey)
	if err != nil {
		return fmt.Errorf("server key: %w", err)
	}
	oracleKey, err := loadOrGenerate(cfg.OracleSecret)
	if err != nil {
		return fmt.Errorf("oracle key: %w", err)
	}
	keyID := strings.TrimSpace(cfg.OracleKeyID)
	if keyID == "" {
		keyID = "v1"
	}
	oracles, err := attack.NewOracleKeyring(map[string]keys.PublicKey{keyID: oracleKey.Public()}, keyID)
	if err != nil {
		return err
	}
	p1, err := keys.GenerateKey(nil)
	if err != nil {
		return err
	}
	p2, err := keys.GenerateKey(nil)
	if err != nil {
		return err
	}

	store, err := sqlite.Open(ctx, cfg.JournalPath, keyring)
	if err != nil {
		return err
	}
	defer store.Close()

	ecfg := engine.Config{
		MatchID:   cfg.MatchID,
		Rules:     r,
		Player1:   p1.Public(),
		Player2:   p2.Public(),
		ServerKey: server,
		Oracles:   oracles,
		Roller:    attack.NewOracle(keyID, oracleKey, nil),
		Journal:   store,
	}
	if cfg.Certify {
		if ecfg.Backend, err = proofchain.AttestorFromEnv(); err != nil {
			return fmt.Errorf("attestor: %w", err)
		}
	}
	m, err := engine.NewMatch(ctx, ecfg)
	if err != nil {
		return err
	}

	players := map[uint8]keys.PrivateKey{1: p1, 2: p2}
	for turnIndex := 0; turnIndex < 2*max(cfg.Rounds, 1); turnIndex++ {
		active := m.Game().PlayerTurn
		if err := playTurn(ctx, m, r, players[active]); err != nil {
			return err
		}
		if _, err := m.EndTurn(ctx); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "ARENA_MATCH_ID=%s\n", m.ID())
	if strings.TrimSpace(cfg.ServerKey) == "" {
		fmt.Fprintf(out, "ARENA_SERVER_KEY=%s\n", server)
	}
	if strings.TrimSpace(cfg.OracleSecret) == "" {
		fmt.Fprintf(out, "ARENA_ORACLE_KEYS=%s=%s\n", keyID, oracleKey.Public())
	}
	return nil
}

func loadOrGenerate(encoded string) (keys.PrivateKey, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return keys.GenerateKey(nil)
	}
	return keys.ParsePrivateKey(encoded)
}

func playTurn(ctx context.Context, m *engine.Match, r rules.Rules, player keys.PrivateKey) error {
	var nonce uint64
	for _, p := range m.Pieces() {
		if !p.Owner.Equal(player.Public()) || !p.Alive() {
			continue
		}
		target, distance, ok := nearestEnemy(m.Pieces(), p)
		if !ok {
			return nil
		}
		nonce++
		if distance <= p.Condition.RangedAttackRange {
			signed, err := action.NewAttack(nonce, action.RangedAttack, p.ID, target.ID).Sign(player)
			if err != nil {
				return err
			}
			if _, err := m.RangedAttack(ctx, engine.AttackRequest{Action: signed, Target: target.ID, Distance: distance}); err != nil {
				return err
			}
			continue
		}
		dest, step := stepToward(p.Position, target.Position, p.Condition.Movement, r)
		if step == 0 {
			continue
		}
		signed, err := action.NewMove(nonce, p.ID, dest).Sign(player)
		if err != nil {
			return err
		}
		if _, err := m.Move(ctx, engine.MoveRequest{Action: signed, Destination: dest, Distance: step}); err != nil {
			// A blocked cell costs the piece its move, nothing more.
			log.Printf("demo move of piece %d skipped: %v", p.ID, err)
		}
	}
	return nil
}

func nearestEnemy(pieces []piece.Piece, from piece.Piece) (piece.Piece, uint32, bool) {
	var (
		best     piece.Piece
		bestDist uint32 = math.MaxUint32
		found    bool
	)
	for _, p := range pieces {
		if p.Owner.Equal(from.Owner) || !p.Alive() {
			continue
		}
		if d := floorDistance(from.Position, p.Position); d < bestDist {
			best, bestDist, found = p, d, true
		}
	}
	return best, bestDist, found
}

// stepToward moves at most movement cells along the straight line to target
// and returns the destination with its floored distance from origin.
func stepToward(from, to position.Position, movement uint32, r rules.Rules) (position.Position, uint32) {
	total := floorDistance(from, to)
	if total == 0 {
		return from, 0
	}
	frac := math.Min(1, float64(movement)/float64(total))
	dx := float64(int64(to.X)-int64(from.X)) * frac
	dy := float64(int64(to.Y)-int64(from.Y)) * frac
	x := clamp(int64(from.X)+int64(dx), r.ArenaWidth)
	y := clamp(int64(from.Y)+int64(dy), r.ArenaHeight)
	dest := position.New(x, y)
	d := floorDistance(from, dest)
	for d > movement && dest != from {
		// Rounding can overshoot by one.
		dest = position.New(towards(dest.X, from.X), towards(dest.Y, from.Y))
		d = floorDistance(from, dest)
	}
	return dest, d
}

func towards(v, target uint32) uint32 {
	switch {
	case v > target:
		return v - 1
	case v < target:
		return v + 1
	}
	return v
}

func clamp(v int64, side uint32) uint32 {
	if v < 0 {
		return 0
	}
	if v >= int64(side) {
		return side - 1
	}
	return uint32(v)
}

func floorDistance(a, b position.Position) uint32 {
	dx := float64(int64(a.X) - int64(b.X))
	dy := float64(int64(a.Y) - int64(b.Y))
	d := uint32(math.Sqrt(dx*dx + dy*dy))
	for d > 0 {
		if ok, _ := position.VerifyDistance(a, b, d); ok {
			return d
		}
		if ok, _ := position.VerifyDistance(a, b, d+1); ok {
			return d + 1
		}
		d--
	}
	return d
}
