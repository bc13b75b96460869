package poisson

import (
	"math"
	"testing"
	"time"

	"github.com/mathshard/oddsengine/pkg/football"
)

func finished(id football.MatchID, home, away football.TeamID, hg, ag int) football.Match {
	return football.Match{
		ID:         id,
		HomeTeamID: home,
		AwayTeamID: away,
		KickOff:    time.Date(2025, 1, int(id), 15, 0, 0, 0, time.UTC),
		Status:     football.StatusFinished,
		FullTime:   &football.Score{Home: hg, Away: ag},
	}
}

func sampleMatches() []football.Match {
	return []football.Match{
		finished(1, 1, 2, 3, 0),
		finished(2, 2, 1, 1, 2),
		finished(3, 1, 3, 2, 1),
		finished(4, 3, 2, 1, 1),
		finished(5, 2, 3, 0, 2),
		finished(6, 3, 1, 0, 1),
	}
}

func TestComputeStrengths(t *testing.T) {
	s := ComputeStrengths(sampleMatches())

	// Six matches, 7 home goals and 7 away goals.
	if math.Abs(s.LeagueAvgHome-7.0/6) > 1e-9 {
		t.Errorf("LeagueAvgHome = %v, want %v", s.LeagueAvgHome, 7.0/6)
	}
	if math.Abs(s.LeagueAvgAway-7.0/6) > 1e-9 {
		t.Errorf("LeagueAvgAway = %v, want %v", s.LeagueAvgAway, 7.0/6)
	}

	// Team 1 scored heavily everywhere; attack must be above average.
	if s.AttackFor(1) <= 1.0 {
		t.Errorf("team 1 attack = %v, want > 1", s.AttackFor(1))
	}
	// Team 2 conceded heavily; defense multiplier must be above average
	// (higher means opponents score more).
	if s.DefenseFor(2) <= 1.0 {
		t.Errorf("team 2 defense = %v, want > 1", s.DefenseFor(2))
	}
	// Unknown teams are exactly average.
	if s.AttackFor(99) != 1.0 || s.DefenseFor(99) != 1.0 {
		t.Error("unknown team should have neutral strengths")
	}
}

func TestComputeStrengthsEmptyHistory(t *testing.T) {
	s := ComputeStrengths(nil)
	if s.LeagueAvgHome != DefaultLeagueAvgHome || s.LeagueAvgAway != DefaultLeagueAvgAway {
		t.Errorf("league averages = %v/%v, want defaults %v/%v",
			s.LeagueAvgHome, s.LeagueAvgAway, DefaultLeagueAvgHome, DefaultLeagueAvgAway)
	}
	if s.AttackFor(1) != 1.0 {
		t.Errorf("attack = %v, want neutral 1.0", s.AttackFor(1))
	}
}

func TestExpectedGoalsClamped(t *testing.T) {
	m := Build(nil, Config{})

	// Neutral strengths: home gets league average plus home advantage.
	lh, la := m.ExpectedGoals(1, 2)
	if math.Abs(lh-(DefaultLeagueAvgHome+0.25)) > 1e-9 {
		t.Errorf("home lambda = %v, want %v", lh, DefaultLeagueAvgHome+0.25)
	}
	if math.Abs(la-DefaultLeagueAvgAway) > 1e-9 {
		t.Errorf("away lambda = %v, want %v", la, DefaultLeagueAvgAway)
	}

	// Absurd strengths are clamped.
	m.str.Attack[1] = 50
	m.str.Attack[2] = 50
	m.str.Defense[1] = 50
	m.str.Defense[2] = 50
	lh, la = m.ExpectedGoals(1, 2)
	if lh != m.cfg.MaxHomeLambda {
		t.Errorf("home lambda = %v, want clamp %v", lh, m.cfg.MaxHomeLambda)
	}
	if la != m.cfg.MaxAwayLambda {
		t.Errorf("away lambda = %v, want clamp %v", la, m.cfg.MaxAwayLambda)
	}

	m.str.Attack[1] = 0.001
	m.str.Attack[2] = 0.001
	m.str.Defense[1] = 0.001
	m.str.Defense[2] = 0.001
	lh, la = m.ExpectedGoals(1, 2)
	if lh != m.cfg.MinLambda {
		t.Errorf("home lambda = %v, want floor %v", lh, m.cfg.MinLambda)
	}
	if la != m.cfg.MinLambda {
		t.Errorf("away lambda = %v, want floor %v", la, m.cfg.MinLambda)
	}
}

func TestScoreMatrixSumsToOne(t *testing.T) {
	m := Build(sampleMatches(), Config{})

	grid, err := m.ScoreMatrix(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(grid) != 9 || len(grid[0]) != 9 {
		t.Fatalf("grid is %dx%d, want 9x9", len(grid), len(grid[0]))
	}

	total := 0.0
	for i := range grid {
		for j := range grid[i] {
			if grid[i][j] < 0 {
				t.Fatalf("negative probability at %d-%d", i, j)
			}
			total += grid[i][j]
		}
	}
	if math.Abs(total-1) > 1e-9 {
		t.Errorf("matrix mass = %v, want 1", total)
	}
}

func TestDixonColesInflatesLowDraws(t *testing.T) {
	adjusted := Build(nil, Config{})
	// A vanishing rho keeps the correction factor at 1 without falling
	// back to the default.
	independent := Build(nil, Config{Rho: 1e-15})

	adj, err := adjusted.ScoreMatrix(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	ind, err := independent.ScoreMatrix(1, 2)
	if err != nil {
		t.Fatal(err)
	}

	// Negative rho makes low-scoring draws more likely than the
	// independent model claims.
	if adj[0][0] <= ind[0][0] {
		t.Errorf("P(0-0) adjusted %v <= independent %v", adj[0][0], ind[0][0])
	}
	if adj[1][1] <= ind[1][1] {
		t.Errorf("P(1-1) adjusted %v <= independent %v", adj[1][1], ind[1][1])
	}
	// Mass conservation pulls the rest of the grid down.
	if adj[2][2] >= ind[2][2] {
		t.Errorf("P(2-2) adjusted %v >= independent %v", adj[2][2], ind[2][2])
	}
}

func TestPredictMarketIdentities(t *testing.T) {
	m := Build(sampleMatches(), Config{})

	p, err := m.Predict(1, 2)
	if err != nil {
		t.Fatal(err)
	}

	if got := p.HomeWin + p.Draw + p.AwayWin; math.Abs(got-1) > 1e-9 {
		t.Errorf("1X2 sum = %v, want 1", got)
	}
	if math.Abs(p.DoubleChance1X-(p.HomeWin+p.Draw)) > 1e-12 {
		t.Error("1X must equal home + draw")
	}
	if p.Over15 < p.Over25 || p.Over25 < p.Over35 {
		t.Errorf("over ladder not monotone: %v %v %v", p.Over15, p.Over25, p.Over35)
	}

	// Combos can never exceed their components.
	if p.HomeOver25 > p.HomeWin || p.HomeOver25 > p.Over25 {
		t.Errorf("1&O2.5 = %v exceeds marginals %v/%v", p.HomeOver25, p.HomeWin, p.Over25)
	}
	if p.DrawUnder25 > p.Draw {
		t.Errorf("X&U2.5 = %v exceeds draw %v", p.DrawUnder25, p.Draw)
	}
	if p.BTTSOver25 > p.BTTS || p.BTTSOver25 > p.Over25 {
		t.Errorf("GG&O2.5 = %v exceeds marginals %v/%v", p.BTTSOver25, p.BTTS, p.Over25)
	}

	if len(p.TopScores) != 5 {
		t.Fatalf("TopScores has %d entries, want 5", len(p.TopScores))
	}
	for i := 1; i < len(p.TopScores); i++ {
		if p.TopScores[i].Probability > p.TopScores[i-1].Probability {
			t.Error("TopScores not sorted by probability")
		}
	}
}

func TestPredictProbForCoversKnownMarkets(t *testing.T) {
	m := Build(sampleMatches(), Config{})
	p, err := m.Predict(1, 2)
	if err != nil {
		t.Fatal(err)
	}

	for _, market := range football.KnownMarkets() {
		prob, ok := p.ProbFor(market)
		if !ok {
			t.Errorf("ProbFor(%s) not covered", market)
			continue
		}
		if prob < 0 || prob > 1 {
			t.Errorf("ProbFor(%s) = %v out of range", market, prob)
		}
	}
}

func TestPredictRejectsMalformedFixture(t *testing.T) {
	m := Build(sampleMatches(), Config{})

	if _, err := m.Predict(0, 2); err == nil {
		t.Error("want error for zero home team")
	}
	if _, err := m.Predict(1, 1); err == nil {
		t.Error("want error for team playing itself")
	}
}
