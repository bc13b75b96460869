// Package scan walks upcoming fixtures, prices their markets and turns
// model edges into recorded bets, subject to bankroll policy.
package scan

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mathshard/oddsengine/pkg/engine"
	"github.com/mathshard/oddsengine/pkg/football"
	"github.com/mathshard/oddsengine/pkg/ledger"
	"github.com/mathshard/oddsengine/pkg/metrics"
	"github.com/mathshard/oddsengine/pkg/policy"
	"github.com/mathshard/oddsengine/pkg/value"
)

// PriceSource quotes a bookmaker price for a market, when one exists.
type PriceSource interface {
	Price(match football.MatchID, market football.Market) (float64, bool)
}

// DefaultMarkets is the scan set. Double chance markets are excluded:
// their estimated prices are too short for the should-bet rule to ever
// fire without a real quote.
func DefaultMarkets() []football.Market {
	return []football.Market{
		football.MarketHomeWin, football.MarketDraw, football.MarketAwayWin,
		football.MarketOver15, football.MarketOver25, football.MarketOver35,
		football.MarketBTTS,
		football.MarketHomeOver25, football.MarketAwayOver25,
		football.MarketDrawUnder25, football.MarketBTTSOver25,
	}
}

// Opportunity is one market the analyzer recommends betting.
type Opportunity struct {
	Match    football.Match  `json:"match"`
	Analysis *value.Analysis `json:"analysis"`
	Stake    decimal.Decimal `json:"stake"`
	FoundAt  time.Time       `json:"found_at"`
}

// Scanner prices fixtures against a snapshot and records value bets.
type Scanner struct {
	snap     *engine.Snapshot
	analyzer *value.Analyzer
	book     *ledger.Ledger
	limits   *policy.Engine
	met      *metrics.EngineMetrics
	log      *logrus.Logger

	prices  PriceSource // nil means estimate every price
	markets []football.Market
}

// Config wires a scanner. Book, Limits and Prices are optional: without
// a ledger the scanner only reports opportunities, and without a price
// source it analyzes estimated prices.
type Config struct {
	Snapshot *engine.Snapshot
	Analyzer *value.Analyzer
	Book     *ledger.Ledger
	Limits   *policy.Engine
	Metrics  *metrics.EngineMetrics
	Log      *logrus.Logger
	Prices   PriceSource
	Markets  []football.Market
}

// New creates a scanner over a built snapshot.
func New(cfg Config) (*Scanner, error) {
	if cfg.Snapshot == nil {
		return nil, errors.New("scan: snapshot is required")
	}
	if cfg.Analyzer == nil {
		cfg.Analyzer = value.NewAnalyzer(nil)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default()
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if len(cfg.Markets) == 0 {
		cfg.Markets = DefaultMarkets()
	}
	return &Scanner{
		snap:     cfg.Snapshot,
		analyzer: cfg.Analyzer,
		book:     cfg.Book,
		limits:   cfg.Limits,
		met:      cfg.Metrics,
		log:      cfg.Log,
		prices:   cfg.Prices,
		markets:  cfg.Markets,
	}, nil
}

// ScanFixtures prices every market of every fixture and returns the
// opportunities the analyzer recommends, stake-sized against the given
// bankroll. Fixtures the model cannot price are logged and skipped.
func (s *Scanner) ScanFixtures(ctx context.Context, fixtures []football.Match, bankroll decimal.Decimal) ([]Opportunity, error) {
	var opps []Opportunity
	for _, m := range fixtures {
		if err := ctx.Err(); err != nil {
			return opps, err
		}

		start := time.Now()
		pred, err := s.snap.Predict(m)
		if err != nil {
			s.log.WithError(err).WithField("match", m.ID).Warn("fixture not priceable, skipping")
			continue
		}
		s.met.RecordPrediction(strconv.FormatInt(int64(m.LeagueID), 10), time.Since(start).Seconds())

		for _, market := range s.markets {
			prob, ok := pred.ProbFor(market)
			if !ok {
				s.log.WithField("market", market).Warn("model does not price market, skipping")
				continue
			}
			an, err := s.analyzeMarket(m, market, prob)
			if err != nil {
				return opps, fmt.Errorf("analyzing match %d market %s: %w", m.ID, market, err)
			}
			if !an.ShouldBet {
				continue
			}

			s.met.RecordValueBet(string(an.ValueTier), string(market), an.ExpectedValue, an.KellyCapped)
			opps = append(opps, Opportunity{
				Match:    m,
				Analysis: an,
				Stake:    s.analyzer.Stake(an, bankroll),
				FoundAt:  time.Now(),
			})
		}
	}

	s.log.WithFields(logrus.Fields{
		"fixtures":      len(fixtures),
		"opportunities": len(opps),
	}).Info("scan complete")
	return opps, nil
}

// PlaceRecommended records each opportunity as a pending bet, skipping
// those the policy engine rejects. It returns the bets placed.
func (s *Scanner) PlaceRecommended(ctx context.Context, opps []Opportunity) ([]*ledger.BetRecord, error) {
	if s.book == nil {
		return nil, errors.New("scan: no ledger configured")
	}

	var placed []*ledger.BetRecord
	for _, opp := range opps {
		if s.limits != nil {
			if err := s.limits.CheckStake(opp.Match.ID, opp.Stake); err != nil {
				s.met.RecordPolicyRejection()
				s.log.WithError(err).WithFields(logrus.Fields{
					"match":  opp.Match.ID,
					"market": opp.Analysis.Market,
				}).Info("stake rejected by policy")
				continue
			}
		}

		bet, err := s.book.Place(ctx, ledger.PlaceRequest{
			MatchID:        opp.Match.ID,
			Market:         opp.Analysis.Market,
			Stake:          opp.Stake,
			Price:          decimal.NewFromFloat(opp.Analysis.Price),
			EstimatedPrice: opp.Analysis.EstimatedPrice,
			Probability:    opp.Analysis.Probability,
			KellyPercent:   opp.Analysis.KellyCapped,
			ValueTier:      opp.Analysis.ValueTier,
			RiskTier:       opp.Analysis.RiskTier,
		})
		if err != nil {
			return placed, fmt.Errorf("placing bet on match %d: %w", opp.Match.ID, err)
		}

		if s.limits != nil {
			s.limits.RecordBet(opp.Match.ID, opp.Stake)
		}
		s.met.RecordBetPlaced(string(bet.ValueTier), string(bet.Market))
		placed = append(placed, bet)
	}
	return placed, nil
}

// --- Internal helpers ---

func (s *Scanner) analyzeMarket(m football.Match, market football.Market, prob float64) (*value.Analysis, error) {
	if s.prices != nil {
		if price, ok := s.prices.Price(m.ID, market); ok {
			return s.analyzer.Analyze(market, prob, price)
		}
	}
	return s.analyzer.AnalyzeEstimated(market, prob)
}
