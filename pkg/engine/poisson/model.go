// Package poisson prices match scorelines with a correlated Poisson
// model: independent Poisson goal counts per side, scaled by team
// attack/defense strengths, with a Dixon-Coles correction on the
// low-scoring cells where independence underestimates draws.
package poisson

import (
	"fmt"
	"math"
	"sort"

	"github.com/mathshard/oddsengine/pkg/football"
)

// Config holds the scoreline model parameters.
type Config struct {
	// Rho is the Dixon-Coles low-score correlation. Negative values
	// inflate 0-0 and 1-1 relative to independent Poisson.
	Rho float64

	// HomeAdvantage is added to the home side's expected goals.
	HomeAdvantage float64

	// MaxGoals caps the scoreline grid per side.
	MaxGoals int

	// Expected-goal clamps.
	MinLambda     float64
	MaxHomeLambda float64
	MaxAwayLambda float64
}

// DefaultConfig returns the calibrated model parameters.
func DefaultConfig() Config {
	return Config{
		Rho:           -0.13,
		HomeAdvantage: 0.25,
		MaxGoals:      8,
		MinLambda:     0.3,
		MaxHomeLambda: 4.0,
		MaxAwayLambda: 3.5,
	}
}

// matrixTolerance is the allowed drift from 1.0 for the adjusted
// matrix's total mass.
const matrixTolerance = 1e-6

// ScoreProb is one scoreline with its modeled probability.
type ScoreProb struct {
	Score       football.Score `json:"score"`
	Probability float64        `json:"probability"`
}

// Prediction is the full market bundle for one fixture.
type Prediction struct {
	HomeTeamID football.TeamID `json:"home_team_id"`
	AwayTeamID football.TeamID `json:"away_team_id"`

	HomeLambda float64 `json:"home_lambda"`
	AwayLambda float64 `json:"away_lambda"`
	Rho        float64 `json:"rho"`

	HomeWin float64 `json:"home_win"`
	Draw    float64 `json:"draw"`
	AwayWin float64 `json:"away_win"`

	DoubleChance1X float64 `json:"double_chance_1x"`
	DoubleChance12 float64 `json:"double_chance_12"`
	DoubleChanceX2 float64 `json:"double_chance_x2"`

	Over15 float64 `json:"over_1_5"`
	Over25 float64 `json:"over_2_5"`
	Over35 float64 `json:"over_3_5"`
	BTTS   float64 `json:"btts"`

	HomeOver25  float64 `json:"home_over_2_5"`
	AwayOver25  float64 `json:"away_over_2_5"`
	DrawUnder25 float64 `json:"draw_under_2_5"`
	BTTSOver25  float64 `json:"btts_over_2_5"`

	TopScores []ScoreProb `json:"top_scores"`
}

// ProbFor returns the modeled probability for a market.
func (p *Prediction) ProbFor(market football.Market) (float64, bool) {
	switch market {
	case football.MarketHomeWin:
		return p.HomeWin, true
	case football.MarketDraw:
		return p.Draw, true
	case football.MarketAwayWin:
		return p.AwayWin, true
	case football.MarketDoubleChance1X:
		return p.DoubleChance1X, true
	case football.MarketDoubleChance12:
		return p.DoubleChance12, true
	case football.MarketDoubleChanceX2:
		return p.DoubleChanceX2, true
	case football.MarketOver15:
		return p.Over15, true
	case football.MarketOver25:
		return p.Over25, true
	case football.MarketOver35:
		return p.Over35, true
	case football.MarketBTTS:
		return p.BTTS, true
	case football.MarketHomeOver25:
		return p.HomeOver25, true
	case football.MarketAwayOver25:
		return p.AwayOver25, true
	case football.MarketDrawUnder25:
		return p.DrawUnder25, true
	case football.MarketBTTSOver25:
		return p.BTTSOver25, true
	}
	return 0, false
}

// Model prices fixtures using strengths derived from a match snapshot.
type Model struct {
	cfg Config
	str Strengths
}

// Build fits a model over the given finished matches. Zero-value
// config fields fall back to defaults.
func Build(matches []football.Match, cfg Config) *Model {
	defaults := DefaultConfig()
	if cfg.Rho == 0 {
		cfg.Rho = defaults.Rho
	}
	if cfg.HomeAdvantage == 0 {
		cfg.HomeAdvantage = defaults.HomeAdvantage
	}
	if cfg.MaxGoals == 0 {
		cfg.MaxGoals = defaults.MaxGoals
	}
	if cfg.MinLambda == 0 {
		cfg.MinLambda = defaults.MinLambda
	}
	if cfg.MaxHomeLambda == 0 {
		cfg.MaxHomeLambda = defaults.MaxHomeLambda
	}
	if cfg.MaxAwayLambda == 0 {
		cfg.MaxAwayLambda = defaults.MaxAwayLambda
	}

	return &Model{cfg: cfg, str: ComputeStrengths(matches)}
}

// Strengths exposes the fitted team ratings.
func (m *Model) Strengths() Strengths {
	return m.str
}

// ExpectedGoals returns the clamped expected goal counts for a fixture.
func (m *Model) ExpectedGoals(home, away football.TeamID) (float64, float64) {
	lh := m.str.AttackFor(home)*m.str.DefenseFor(away)*m.str.LeagueAvgHome + m.cfg.HomeAdvantage
	la := m.str.AttackFor(away) * m.str.DefenseFor(home) * m.str.LeagueAvgAway

	lh = clamp(lh, m.cfg.MinLambda, m.cfg.MaxHomeLambda)
	la = clamp(la, m.cfg.MinLambda, m.cfg.MaxAwayLambda)
	return lh, la
}

// ScoreMatrix returns the Dixon-Coles-adjusted joint scoreline
// distribution, rows indexed by home goals.
func (m *Model) ScoreMatrix(home, away football.TeamID) ([][]float64, error) {
	if home == 0 || away == 0 || home == away {
		return nil, fmt.Errorf("poisson: invalid fixture %d vs %d", home, away)
	}
	lh, la := m.ExpectedGoals(home, away)
	return m.matrix(lh, la)
}

// Predict prices all markets for a fixture off the adjusted matrix.
func (m *Model) Predict(home, away football.TeamID) (*Prediction, error) {
	if home == 0 || away == 0 || home == away {
		return nil, fmt.Errorf("poisson: invalid fixture %d vs %d", home, away)
	}

	lh, la := m.ExpectedGoals(home, away)
	grid, err := m.matrix(lh, la)
	if err != nil {
		return nil, err
	}

	p := &Prediction{
		HomeTeamID: home,
		AwayTeamID: away,
		HomeLambda: lh,
		AwayLambda: la,
		Rho:        m.cfg.Rho,
	}

	scores := make([]ScoreProb, 0, len(grid)*len(grid))
	for i := range grid {
		for j := range grid[i] {
			pr := grid[i][j]
			total := i + j

			switch {
			case i > j:
				p.HomeWin += pr
			case i < j:
				p.AwayWin += pr
			default:
				p.Draw += pr
			}

			if total >= 2 {
				p.Over15 += pr
			}
			if total >= 3 {
				p.Over25 += pr
			}
			if total >= 4 {
				p.Over35 += pr
			}
			if i >= 1 && j >= 1 {
				p.BTTS += pr
			}

			if i > j && total >= 3 {
				p.HomeOver25 += pr
			}
			if i < j && total >= 3 {
				p.AwayOver25 += pr
			}
			if i == j && total <= 2 {
				p.DrawUnder25 += pr
			}
			if i >= 1 && j >= 1 && total >= 3 {
				p.BTTSOver25 += pr
			}

			scores = append(scores, ScoreProb{
				Score:       football.Score{Home: i, Away: j},
				Probability: pr,
			})
		}
	}

	p.DoubleChance1X = p.HomeWin + p.Draw
	p.DoubleChance12 = p.HomeWin + p.AwayWin
	p.DoubleChanceX2 = p.Draw + p.AwayWin

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Probability > scores[j].Probability
	})
	if len(scores) > 5 {
		scores = scores[:5]
	}
	p.TopScores = scores

	return p, nil
}

// --- Internal helpers ---

func (m *Model) matrix(lh, la float64) ([][]float64, error) {
	n := m.cfg.MaxGoals + 1
	grid := make([][]float64, n)

	total := 0.0
	for i := 0; i < n; i++ {
		grid[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			p := poissonPMF(i, lh) * poissonPMF(j, la)
			if i <= 1 && j <= 1 {
				p *= 1 - lh*la*m.cfg.Rho
			}
			grid[i][j] = p
			total += p
		}
	}

	if total <= 0 {
		return nil, fmt.Errorf("poisson: degenerate matrix for lambdas %.3f/%.3f", lh, la)
	}
	for i := range grid {
		for j := range grid[i] {
			grid[i][j] /= total
		}
	}

	// Renormalization is exact up to float error; anything larger means
	// the correction produced an invalid distribution.
	check := 0.0
	for i := range grid {
		for j := range grid[i] {
			check += grid[i][j]
		}
	}
	if math.Abs(check-1) > matrixTolerance {
		return nil, fmt.Errorf("poisson: matrix mass %.9f out of tolerance", check)
	}

	return grid, nil
}

func poissonPMF(k int, lambda float64) float64 {
	logP := float64(k)*math.Log(lambda) - lambda - logFactorial(k)
	return math.Exp(logP)
}

func logFactorial(k int) float64 {
	lf, _ := math.Lgamma(float64(k) + 1)
	return lf
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
