// replay backtests the value strategy over stored match history.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mathshard/oddsengine/internal/config"
	"github.com/mathshard/oddsengine/internal/logging"
	"github.com/mathshard/oddsengine/pkg/football"
	"github.com/mathshard/oddsengine/pkg/replay"
	"github.com/mathshard/oddsengine/pkg/store"
)

var (
	// Flags
	configPath = flag.String("config", "", "Path to YAML config file")
	dbPath     = flag.String("db", "", "SQLite database path (overrides config)")
	startStr   = flag.String("start", "", "Test window start (YYYY-MM-DD, required)")
	endStr     = flag.String("end", "", "Test window end (YYYY-MM-DD, required)")
	leaguesStr = flag.String("leagues", "", "Comma-separated league IDs (default: all)")
	bankroll   = flag.Float64("bankroll", 0, "Initial bankroll (overrides config)")
	rebuild    = flag.Int("rebuild-every", 50, "Refit the model after this many matches (0 = never)")
	jsonOut    = flag.Bool("json", false, "Print the full result as JSON")
	withCurve  = flag.Bool("curve", false, "Include the equity curve in JSON output")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("config: %v", err)
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if *bankroll > 0 {
		cfg.InitialBankroll = *bankroll
	}

	start, end, err := parseWindow(*startStr, *endStr)
	if err != nil {
		fatal("%v", err)
	}
	leagues, err := parseLeagues(*leaguesStr)
	if err != nil {
		fatal("%v", err)
	}
	if len(leagues) == 0 {
		leagues = cfg.Engine.Leagues
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		fatal("logging: %v", err)
	}

	s, err := store.Open(cfg.DatabasePath)
	if err != nil {
		fatal("opening store: %v", err)
	}
	defer s.Close()

	runner := replay.New(s, &replay.Config{
		Start:           start,
		End:             end,
		Leagues:         leagues,
		InitialBankroll: decimal.NewFromFloat(cfg.InitialBankroll),
		Value:           cfg.Value,
		Limits:          cfg.Policy.Limits(),
		RebuildEvery:    *rebuild,
		Log:             log,
	})

	result, err := runner.Run(context.Background())
	if err != nil {
		fatal("replay: %v", err)
	}

	if *jsonOut {
		if !*withCurve {
			result.EquityCurve = nil
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fatal("encoding result: %v", err)
		}
		return
	}

	printSummary(result)
}

func printSummary(r *replay.Result) {
	perf := r.Performance

	fmt.Printf("Replay %s to %s\n", r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly))
	fmt.Printf("  fixtures: %d (skipped %d, model rebuilds %d)\n", r.Fixtures, r.Skipped, r.Rebuilds)
	fmt.Printf("  result accuracy: %.1f%%  exact score: %.1f%%  avg brier: %.3f\n",
		r.Accuracy.ResultAccuracy*100, r.Accuracy.ExactScoreRate*100, r.Accuracy.AvgBrier)
	fmt.Println()
	fmt.Printf("  bets: %d  wins: %d  losses: %d  win rate: %.1f%%\n",
		perf.Settled, perf.Wins, perf.Losses, perf.WinRate*100)
	fmt.Printf("  staked: %s  pnl: %s  roi: %s%%\n",
		perf.TotalStaked.StringFixed(2), perf.TotalPnL.StringFixed(2), perf.ROIPercent.StringFixed(1))
	for tier, ts := range perf.TierWinRates {
		fmt.Printf("    %-7s %3d bets, win rate %.1f%%\n", tier, ts.Settled, ts.WinRate*100)
	}
	fmt.Println()
	fmt.Printf("  bankroll: %s -> %s (%s%%)\n",
		r.InitialBankroll.StringFixed(2), r.FinalBankroll.StringFixed(2), r.TotalReturn.StringFixed(1))
	fmt.Printf("  max drawdown: %s%%\n", r.MaxDrawdown.Mul(decimal.NewFromInt(100)).StringFixed(1))
	fmt.Printf("  took %s\n", r.Duration.Round(time.Millisecond))
}

func parseWindow(start, end string) (time.Time, time.Time, error) {
	if start == "" || end == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("both -start and -end are required")
	}
	from, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing -start: %w", err)
	}
	until, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing -end: %w", err)
	}
	if !until.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("-end must be after -start")
	}
	return from, until, nil
}

func parseLeagues(s string) ([]football.LeagueID, error) {
	if s == "" {
		return nil, nil
	}
	var out []football.LeagueID
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing league id %q: %w", part, err)
		}
		out = append(out, football.LeagueID(id))
	}
	return out, nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
