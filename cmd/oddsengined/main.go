// oddsengined is the odds engine daemon. It keeps a prediction
// snapshot fresh, scans upcoming fixtures for value bets, settles the
// ledger against finished matches and serves a status API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mathshard/oddsengine/internal/config"
	"github.com/mathshard/oddsengine/internal/logging"
	"github.com/mathshard/oddsengine/pkg/engine"
	"github.com/mathshard/oddsengine/pkg/ledger"
	"github.com/mathshard/oddsengine/pkg/metrics"
	"github.com/mathshard/oddsengine/pkg/policy"
	"github.com/mathshard/oddsengine/pkg/scan"
	"github.com/mathshard/oddsengine/pkg/store"
	"github.com/mathshard/oddsengine/pkg/value"
)

var (
	// Flags
	configPath = flag.String("config", "", "Path to YAML config file")
	httpAddr   = flag.String("http", "", "HTTP listen address (overrides config)")
	dbPath     = flag.String("db", "", "SQLite database path (overrides config)")
	dryRun     = flag.Bool("dry-run", false, "Scan and report opportunities without placing bets")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *httpAddr != "" {
		cfg.ListenAddr = *httpAddr
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	log.WithFields(logrus.Fields{
		"db":   cfg.DatabasePath,
		"http": cfg.ListenAddr,
	}).Info("starting odds engine")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	d, err := newDaemon(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("initialization failed")
	}
	defer d.store.Close()

	if err := d.rebuildSnapshot(ctx); err != nil {
		log.WithError(err).Fatal("initial snapshot build failed")
	}

	go d.serveHTTP()
	go d.scanLoop(ctx)
	go d.settleLoop(ctx)

	log.Info("odds engine running")
	<-sigCh
	log.Info("shutting down")
	cancel()

	if perf, err := d.book.Performance(context.Background()); err == nil {
		log.WithFields(logrus.Fields{
			"bets":     perf.TotalBets,
			"settled":  perf.Settled,
			"win_rate": fmt.Sprintf("%.1f%%", perf.WinRate*100),
			"pnl":      perf.TotalPnL.String(),
		}).Info("final record")
	}
}

type daemon struct {
	cfg    *config.Config
	log    *logrus.Logger
	store  *store.Store
	book   *ledger.Ledger
	limits *policy.Engine
	met    *metrics.EngineMetrics

	mu      sync.RWMutex
	snap    *engine.Snapshot
	scanner *scan.Scanner
	lastRun []scan.Opportunity
}

func newDaemon(cfg *config.Config, log *logrus.Logger) (*daemon, error) {
	s, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	d := &daemon{
		cfg:   cfg,
		log:   log,
		store: s,
		book:  ledger.New(s.Bets(), s, decimal.NewFromFloat(cfg.InitialBankroll), log),
		met:   metrics.Default(),
	}
	if limits := cfg.Policy.Limits(); limits != nil {
		d.limits = policy.NewEngine(limits)
	}
	return d, nil
}

// rebuildSnapshot refits every model on the stored history and swaps
// in a new scanner. Readers keep the old snapshot until the swap.
func (d *daemon) rebuildSnapshot(ctx context.Context) error {
	snap, err := engine.Build(ctx, d.store, engine.Options{
		Leagues: d.cfg.Engine.Leagues,
	})
	if err != nil {
		return fmt.Errorf("building snapshot: %w", err)
	}

	scanner, err := scan.New(scan.Config{
		Snapshot: snap,
		Analyzer: value.NewAnalyzer(&d.cfg.Value),
		Book:     d.book,
		Limits:   d.limits,
		Metrics:  d.met,
		Log:      d.log,
	})
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.snap = snap
	d.scanner = scanner
	d.mu.Unlock()

	d.met.UpdateSnapshot(snap.MatchCount(), 0)
	d.log.WithField("matches", snap.MatchCount()).Info("snapshot rebuilt")
	return nil
}

func (d *daemon) scanLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Engine.ScanInterval.Std())
	defer ticker.Stop()

	d.runScan(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.rebuildSnapshot(ctx); err != nil {
				d.log.WithError(err).Error("snapshot rebuild failed")
				continue
			}
			d.runScan(ctx)
		}
	}
}

func (d *daemon) runScan(ctx context.Context) {
	d.mu.RLock()
	scanner := d.scanner
	snap := d.snap
	d.mu.RUnlock()

	now := time.Now()
	until := now.Add(time.Duration(d.cfg.Engine.ScanHorizonDays) * 24 * time.Hour)
	fixtures, err := d.store.ListUpcomingMatches(ctx, now, until, d.cfg.Engine.Leagues)
	if err != nil {
		d.log.WithError(err).Error("loading upcoming fixtures failed")
		return
	}
	d.met.UpdateSnapshot(snap.MatchCount(), time.Since(snap.BuiltAt()).Seconds())

	bankroll, err := d.book.Bankroll(ctx)
	if err != nil {
		d.log.WithError(err).Error("bankroll lookup failed")
		return
	}

	opps, err := scanner.ScanFixtures(ctx, fixtures, bankroll)
	if err != nil {
		d.log.WithError(err).Error("scan failed")
		return
	}

	d.mu.Lock()
	d.lastRun = opps
	d.mu.Unlock()

	if *dryRun {
		for _, opp := range opps {
			d.log.WithFields(logrus.Fields{
				"match":  opp.Match.ID,
				"market": opp.Analysis.Market,
				"stake":  opp.Stake.String(),
			}).Info(opp.Analysis.Recommendation)
		}
		return
	}

	placed, err := scanner.PlaceRecommended(ctx, opps)
	if err != nil {
		d.log.WithError(err).Error("placing bets failed")
	}
	if len(placed) > 0 {
		d.log.WithField("placed", len(placed)).Info("bets placed")
	}
	d.updateExposureGauges(ctx)
}

func (d *daemon) settleLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Engine.SettleInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary, err := d.book.SettlePending(ctx)
			if err != nil {
				d.log.WithError(err).Error("settlement pass failed")
				continue
			}
			for i := 0; i < summary.Conflicts; i++ {
				d.met.RecordSettleConflict()
			}
			if summary.Settled > 0 {
				d.log.WithFields(logrus.Fields{
					"settled": summary.Settled,
					"won":     summary.Won,
					"lost":    summary.Lost,
					"pnl":     summary.PnL.String(),
				}).Info("settlement pass")
				d.releaseSettled(ctx, summary)
			}
			d.updateExposureGauges(ctx)
		}
	}
}

// releaseSettled frees policy exposure for the bets a pass settled.
func (d *daemon) releaseSettled(ctx context.Context, summary *ledger.SettlementSummary) {
	if d.limits == nil {
		return
	}
	settled, err := d.book.RecentlySettled(ctx, summary.Settled)
	if err != nil {
		d.log.WithError(err).Warn("exposure release skipped")
		return
	}
	for _, bet := range settled {
		d.limits.RecordSettled(bet.MatchID, bet.Stake)
	}
}

func (d *daemon) updateExposureGauges(ctx context.Context) {
	bankroll, err := d.book.Bankroll(ctx)
	if err != nil {
		return
	}
	open := 0
	exposure := decimal.Zero
	if d.limits != nil {
		st := d.limits.Status()
		open = st.OpenBets
		exposure, _ = decimal.NewFromString(st.OpenExposure)
	}
	d.met.UpdateBankroll(bankroll, open, exposure)
}

func (d *daemon) serveHTTP() {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		d.mu.RLock()
		snap := d.snap
		d.mu.RUnlock()

		bankroll, _ := d.book.Bankroll(r.Context())
		status := map[string]any{
			"snapshot_built_at": snap.BuiltAt(),
			"snapshot_matches":  snap.MatchCount(),
			"bankroll":          bankroll.String(),
			"dry_run":           *dryRun,
		}
		if d.limits != nil {
			status["policy"] = d.limits.Status()
		}
		writeJSON(w, status)
	})

	mux.HandleFunc("/opportunities", func(w http.ResponseWriter, r *http.Request) {
		d.mu.RLock()
		opps := d.lastRun
		d.mu.RUnlock()
		writeJSON(w, opps)
	})

	mux.HandleFunc("/performance", func(w http.ResponseWriter, r *http.Request) {
		perf, err := d.book.Performance(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, perf)
	})

	mux.HandleFunc("/equity", func(w http.ResponseWriter, r *http.Request) {
		curve, err := d.book.EquityCurve(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, curve)
	})

	mux.Handle("/metrics", promhttp.HandlerFor(d.met.Registry(), promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         d.cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	d.log.WithField("addr", d.cfg.ListenAddr).Info("HTTP server listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		d.log.WithError(err).Error("HTTP server error")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
