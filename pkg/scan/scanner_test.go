package scan

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mathshard/oddsengine/pkg/engine"
	"github.com/mathshard/oddsengine/pkg/football"
	"github.com/mathshard/oddsengine/pkg/ledger"
	"github.com/mathshard/oddsengine/pkg/metrics"
	"github.com/mathshard/oddsengine/pkg/policy"
)

type matchMap map[football.MatchID]football.Match

func (m matchMap) GetMatch(ctx context.Context, id football.MatchID) (football.Match, error) {
	match, ok := m[id]
	if !ok {
		return football.Match{}, ledger.ErrNotFound
	}
	return match, nil
}

type fixedPrices map[football.Market]float64

func (p fixedPrices) Price(match football.MatchID, market football.Market) (float64, bool) {
	price, ok := p[market]
	return price, ok
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func finished(id football.MatchID, home, away football.TeamID, kickOff time.Time, hg, ag int) football.Match {
	return football.Match{
		ID: id, LeagueID: 39, HomeTeamID: home, AwayTeamID: away,
		KickOff: kickOff, Status: football.StatusFinished,
		FullTime: &football.Score{Home: hg, Away: ag},
	}
}

func buildSnapshot(t *testing.T) *engine.Snapshot {
	t.Helper()
	base := time.Date(2025, 1, 4, 15, 0, 0, 0, time.UTC)
	history := engine.SliceSource{
		finished(1, 1, 2, base, 3, 0),
		finished(2, 2, 3, base.Add(7*24*time.Hour), 1, 1),
		finished(3, 3, 1, base.Add(14*24*time.Hour), 0, 2),
		finished(4, 1, 3, base.Add(21*24*time.Hour), 2, 1),
	}
	snap, err := engine.Build(context.Background(), history, engine.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func fixture() football.Match {
	return football.Match{
		ID: 100, LeagueID: 39, HomeTeamID: 1, AwayTeamID: 2,
		KickOff: time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC),
		Status:  football.StatusScheduled,
	}
}

func TestScanFixturesFindsEstimatedOpportunities(t *testing.T) {
	s, err := New(Config{
		Snapshot: buildSnapshot(t),
		Metrics:  metrics.NewEngineMetrics(),
		Log:      quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	opps, err := s.ScanFixtures(context.Background(), []football.Match{fixture()}, decimal.NewFromInt(1000))
	if err != nil {
		t.Fatal(err)
	}
	if len(opps) == 0 {
		t.Fatal("want at least one opportunity from estimated prices")
	}

	for _, opp := range opps {
		if !opp.Analysis.ShouldBet {
			t.Errorf("%s: opportunity without a bet recommendation", opp.Analysis.Market)
		}
		if !opp.Analysis.EstimatedPrice {
			t.Errorf("%s: price should be flagged as estimated", opp.Analysis.Market)
		}
		if !opp.Stake.IsPositive() {
			t.Errorf("%s: stake = %s, want > 0", opp.Analysis.Market, opp.Stake)
		}
	}
}

func TestScanFixturesUsesQuotedPrices(t *testing.T) {
	s, err := New(Config{
		Snapshot: buildSnapshot(t),
		Metrics:  metrics.NewEngineMetrics(),
		Log:      quietLogger(),
		Prices:   fixedPrices{football.MarketHomeWin: 2.40},
		Markets:  []football.Market{football.MarketHomeWin},
	})
	if err != nil {
		t.Fatal(err)
	}

	opps, err := s.ScanFixtures(context.Background(), []football.Match{fixture()}, decimal.NewFromInt(1000))
	if err != nil {
		t.Fatal(err)
	}
	for _, opp := range opps {
		if opp.Analysis.EstimatedPrice {
			t.Error("quoted price should not be flagged as estimated")
		}
		if opp.Analysis.Price != 2.40 {
			t.Errorf("Price = %v, want 2.40", opp.Analysis.Price)
		}
	}
}

func TestScanSkipsUnpriceableFixture(t *testing.T) {
	s, err := New(Config{
		Snapshot: buildSnapshot(t),
		Metrics:  metrics.NewEngineMetrics(),
		Log:      quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	derby := fixture()
	derby.AwayTeamID = derby.HomeTeamID
	opps, err := s.ScanFixtures(context.Background(), []football.Match{derby}, decimal.NewFromInt(1000))
	if err != nil {
		t.Fatal(err)
	}
	if len(opps) != 0 {
		t.Errorf("opportunities = %d, want 0 for an unpriceable fixture", len(opps))
	}
}

func TestScanSkipsUnpricedMarkets(t *testing.T) {
	s, err := New(Config{
		Snapshot: buildSnapshot(t),
		Metrics:  metrics.NewEngineMetrics(),
		Log:      quietLogger(),
		Markets:  []football.Market{football.MarketHomeWin, football.Market("CORNERS_OVER_9.5")},
	})
	if err != nil {
		t.Fatal(err)
	}

	opps, err := s.ScanFixtures(context.Background(), []football.Match{fixture()}, decimal.NewFromInt(1000))
	if err != nil {
		t.Fatal(err)
	}
	for _, opp := range opps {
		if opp.Analysis.Market != football.MarketHomeWin {
			t.Errorf("market %s has no model price and must be skipped", opp.Analysis.Market)
		}
	}
}

func TestPlaceRecommended(t *testing.T) {
	book := ledger.New(ledger.NewMemoryStore(), matchMap{}, decimal.NewFromInt(1000), quietLogger())

	s, err := New(Config{
		Snapshot: buildSnapshot(t),
		Metrics:  metrics.NewEngineMetrics(),
		Log:      quietLogger(),
		Book:     book,
		Limits: policy.NewEngine(&policy.Limits{
			MaxStakePerBet:   decimal.NewFromInt(500),
			MinStake:         decimal.NewFromInt(1),
			MaxMatchExposure: decimal.NewFromInt(2000),
			MaxOpenExposure:  decimal.NewFromInt(4000),
			MaxOpenBets:      50,
			MaxDailyStake:    decimal.NewFromInt(4000),
		}),
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	opps, err := s.ScanFixtures(ctx, []football.Match{fixture()}, decimal.NewFromInt(1000))
	if err != nil {
		t.Fatal(err)
	}
	if len(opps) == 0 {
		t.Fatal("want opportunities to place")
	}

	placed, err := s.PlaceRecommended(ctx, opps)
	if err != nil {
		t.Fatal(err)
	}
	if len(placed) != len(opps) {
		t.Errorf("placed %d of %d opportunities", len(placed), len(opps))
	}
	for _, bet := range placed {
		if bet.Status != ledger.StatusPending {
			t.Errorf("bet %s status = %s, want PENDING", bet.ID, bet.Status)
		}
	}
}

func TestPlaceRecommendedRespectsPolicy(t *testing.T) {
	book := ledger.New(ledger.NewMemoryStore(), matchMap{}, decimal.NewFromInt(1000), quietLogger())

	// A per-bet cap of 1 rejects every Kelly-sized stake.
	s, err := New(Config{
		Snapshot: buildSnapshot(t),
		Metrics:  metrics.NewEngineMetrics(),
		Log:      quietLogger(),
		Book:     book,
		Limits: policy.NewEngine(&policy.Limits{
			MaxStakePerBet:   decimal.NewFromInt(1),
			MinStake:         decimal.NewFromFloat(0.5),
			MaxMatchExposure: decimal.NewFromInt(1000),
			MaxOpenExposure:  decimal.NewFromInt(2000),
			MaxOpenBets:      50,
			MaxDailyStake:    decimal.NewFromInt(2000),
		}),
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	opps, err := s.ScanFixtures(ctx, []football.Match{fixture()}, decimal.NewFromInt(1000))
	if err != nil {
		t.Fatal(err)
	}
	if len(opps) == 0 {
		t.Fatal("want opportunities")
	}

	placed, err := s.PlaceRecommended(ctx, opps)
	if err != nil {
		t.Fatal(err)
	}
	if len(placed) != 0 {
		t.Errorf("placed = %d, want 0 under a 1-unit stake cap", len(placed))
	}
}

func TestPlaceRecommendedWithoutLedger(t *testing.T) {
	s, err := New(Config{
		Snapshot: buildSnapshot(t),
		Metrics:  metrics.NewEngineMetrics(),
		Log:      quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.PlaceRecommended(context.Background(), []Opportunity{{}}); err == nil {
		t.Error("want error without a configured ledger")
	}
}
