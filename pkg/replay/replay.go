// Package replay backtests the value strategy over historical matches:
// fit the model on everything before a start date, then walk the test
// window match by match, betting as the scanner would have and settling
// each bet against the known result.
package replay

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mathshard/oddsengine/pkg/engine"
	"github.com/mathshard/oddsengine/pkg/football"
	"github.com/mathshard/oddsengine/pkg/ledger"
	"github.com/mathshard/oddsengine/pkg/policy"
	"github.com/mathshard/oddsengine/pkg/scan"
	"github.com/mathshard/oddsengine/pkg/value"
)

// Config holds a replay run configuration.
type Config struct {
	Start time.Time
	End   time.Time

	Leagues []football.LeagueID
	Markets []football.Market

	InitialBankroll decimal.Decimal
	Value           value.Config
	Limits          *policy.Limits

	// RebuildEvery refits the model after this many test matches, so
	// later predictions see earlier test results. Zero means never.
	RebuildEvery int

	Log *logrus.Logger
}

// DefaultConfig returns a replay over the default strategy settings.
func DefaultConfig() *Config {
	return &Config{
		InitialBankroll: decimal.NewFromInt(1000),
		Value:           value.DefaultConfig(),
		RebuildEvery:    50,
	}
}

// Result holds replay results.
type Result struct {
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Fixtures int           `json:"fixtures"`
	Skipped  int           `json:"skipped"`
	Rebuilds int           `json:"rebuilds"`
	Duration time.Duration `json:"duration"`

	InitialBankroll decimal.Decimal `json:"initial_bankroll"`
	FinalBankroll   decimal.Decimal `json:"final_bankroll"`
	TotalReturn     decimal.Decimal `json:"total_return"` // Percentage
	MaxDrawdown     decimal.Decimal `json:"max_drawdown"` // Fraction of peak

	Performance *ledger.PerformanceStats `json:"performance"`
	Accuracy    engine.AccuracySummary   `json:"accuracy"`
	EquityCurve []ledger.EquityPoint     `json:"equity_curve,omitempty"`
}

// Runner executes replays against a match source.
type Runner struct {
	src engine.MatchSource
	cfg *Config
	log *logrus.Logger
}

// New creates a runner. A nil config uses defaults.
func New(src engine.MatchSource, cfg *Config) *Runner {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.InitialBankroll.IsZero() {
		cfg.InitialBankroll = decimal.NewFromInt(1000)
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{src: src, cfg: cfg, log: log}
}

// Run walks the test window and returns the strategy's record.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	began := time.Now()

	fixtures, err := r.loadFixtures(ctx)
	if err != nil {
		return nil, err
	}
	if len(fixtures) == 0 {
		return nil, fmt.Errorf("replay: no finished matches in [%s, %s)",
			r.cfg.Start.Format(time.DateOnly), r.cfg.End.Format(time.DateOnly))
	}

	store := ledger.NewMemoryStore()
	matches := make(replayMatches, len(fixtures))
	book := ledger.New(store, matches, r.cfg.InitialBankroll, r.log)
	analyzer := value.NewAnalyzer(&r.cfg.Value)

	// Policy is opt-in for replays: wall-clock limits like the daily
	// stake cap are meaningless against compressed historical time.
	var limits *policy.Engine
	if r.cfg.Limits != nil {
		limits = policy.NewEngine(r.cfg.Limits)
	}

	result := &Result{
		Start:           r.cfg.Start,
		End:             r.cfg.End,
		Fixtures:        len(fixtures),
		InitialBankroll: r.cfg.InitialBankroll,
	}

	var (
		snap       *engine.Snapshot
		scanner    *scan.Scanner
		evals      []engine.Evaluation
		sinceBuild int
	)

	rebuild := func(asOf time.Time) error {
		snap, err = engine.Build(ctx, r.src, engine.Options{
			AsOf:    &asOf,
			Leagues: r.cfg.Leagues,
		})
		if err != nil {
			return fmt.Errorf("replay: building snapshot as of %s: %w", asOf.Format(time.DateOnly), err)
		}
		scanner, err = scan.New(scan.Config{
			Snapshot: snap,
			Analyzer: analyzer,
			Book:     book,
			Limits:   limits,
			Log:      r.log,
			Markets:  r.cfg.Markets,
		})
		if err != nil {
			return fmt.Errorf("replay: %w", err)
		}
		result.Rebuilds++
		sinceBuild = 0
		return nil
	}

	if err := rebuild(r.cfg.Start); err != nil {
		return nil, err
	}

	for _, m := range fixtures {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if r.cfg.RebuildEvery > 0 && sinceBuild >= r.cfg.RebuildEvery {
			if err := rebuild(m.KickOff); err != nil {
				return nil, err
			}
		}
		sinceBuild++

		pred, err := snap.Predict(m)
		if err != nil {
			result.Skipped++
			continue
		}
		if ev, err := engine.Evaluate(pred, m); err == nil {
			evals = append(evals, ev)
		}

		bankroll, err := book.Bankroll(ctx)
		if err != nil {
			return nil, err
		}

		// Bet as if the match were still upcoming, then settle it.
		upcoming := m
		upcoming.Status = football.StatusScheduled
		upcoming.FullTime = nil

		opps, err := scanner.ScanFixtures(ctx, []football.Match{upcoming}, bankroll)
		if err != nil {
			return nil, err
		}
		placed, err := scanner.PlaceRecommended(ctx, opps)
		if err != nil {
			return nil, err
		}

		matches[m.ID] = m
		if _, err := book.SettlePending(ctx); err != nil {
			return nil, err
		}
		if limits != nil {
			for _, bet := range placed {
				limits.RecordSettled(m.ID, bet.Stake)
			}
		}
	}

	if err := r.finalize(ctx, book, result, evals); err != nil {
		return nil, err
	}
	result.Duration = time.Since(began)

	r.log.WithFields(logrus.Fields{
		"fixtures": result.Fixtures,
		"bets":     result.Performance.TotalBets,
		"final":    result.FinalBankroll.String(),
		"return":   result.TotalReturn.StringFixed(1) + "%",
	}).Info("replay complete")
	return result, nil
}

// --- Internal helpers ---

// replayMatches serves results only once the walk has passed them, so
// settlement can never see a future score.
type replayMatches map[football.MatchID]football.Match

func (r replayMatches) GetMatch(ctx context.Context, id football.MatchID) (football.Match, error) {
	m, ok := r[id]
	if !ok {
		return football.Match{}, ledger.ErrNotFound
	}
	return m, nil
}

func (r *Runner) loadFixtures(ctx context.Context) ([]football.Match, error) {
	all, err := r.src.ListFinishedMatches(ctx, &r.cfg.End, r.cfg.Leagues)
	if err != nil {
		return nil, fmt.Errorf("replay: loading matches: %w", err)
	}

	var fixtures []football.Match
	for _, m := range all {
		if m.KickOff.Before(r.cfg.Start) {
			continue
		}
		fixtures = append(fixtures, m)
	}
	sort.Slice(fixtures, func(i, j int) bool {
		return fixtures[i].KickOff.Before(fixtures[j].KickOff)
	})
	return fixtures, nil
}

func (r *Runner) finalize(ctx context.Context, book *ledger.Ledger, result *Result, evals []engine.Evaluation) error {
	perf, err := book.Performance(ctx)
	if err != nil {
		return err
	}
	curve, err := book.EquityCurve(ctx)
	if err != nil {
		return err
	}
	final, err := book.Bankroll(ctx)
	if err != nil {
		return err
	}

	result.Performance = perf
	result.Accuracy = engine.Summarize(evals)
	result.EquityCurve = curve
	result.FinalBankroll = final
	if result.InitialBankroll.IsPositive() {
		result.TotalReturn = final.Sub(result.InitialBankroll).
			Div(result.InitialBankroll).Mul(decimal.NewFromInt(100))
	}

	peak := result.InitialBankroll
	for _, pt := range curve {
		if pt.Bankroll.GreaterThan(peak) {
			peak = pt.Bankroll
		}
		if peak.IsPositive() {
			dd := peak.Sub(pt.Bankroll).Div(peak)
			if dd.GreaterThan(result.MaxDrawdown) {
				result.MaxDrawdown = dd
			}
		}
	}
	return nil
}
