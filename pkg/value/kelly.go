// Package value decides whether a priced market is worth betting:
// Kelly staking, expected value, value and risk tiers, and the
// should-bet rule combining them.
package value

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mathshard/oddsengine/pkg/football"
)

// Validation errors. Out-of-range inputs are rejected, never clamped.
var (
	ErrProbabilityRange = errors.New("value: probability must be in [0, 1]")
	ErrPriceRange       = errors.New("value: price must be >= 1")
)

// Tier grades how much expected value a bet carries.
type Tier string

const (
	TierHigh    Tier = "HIGH"
	TierMedium  Tier = "MEDIUM"
	TierNeutral Tier = "NEUTRAL"
)

// RiskTier grades the recommended bankroll commitment.
type RiskTier string

const (
	RiskNone   RiskTier = "NONE"
	RiskLow    RiskTier = "LOW"
	RiskMedium RiskTier = "MEDIUM"
	RiskHigh   RiskTier = "HIGH"
)

// Config holds the decision thresholds.
type Config struct {
	MaxKellyFraction float64 `yaml:"max_kelly_fraction"` // cap on the Kelly stake fraction
	MinBetFraction   float64 `yaml:"min_bet_fraction"`   // capped Kelly below this never fires a bet
	HighValueEV      float64 `yaml:"high_value_ev"`      // EV multiple for the HIGH tier
	MediumValueEV    float64 `yaml:"medium_value_ev"`    // EV multiple for the MEDIUM tier
	BookmakerMargin  float64 `yaml:"bookmaker_margin"`   // assumed margin when estimating a price
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MaxKellyFraction: 0.25,
		MinBetFraction:   0.03,
		HighValueEV:      1.15,
		MediumValueEV:    1.05,
		BookmakerMargin:  0.10,
	}
}

// Analysis is the full verdict on one market.
type Analysis struct {
	Market     football.Market `json:"market"`
	MarketName string          `json:"market_name"`

	Probability    float64 `json:"probability"`
	Price          float64 `json:"price"`
	EstimatedPrice bool    `json:"estimated_price"`

	// ExpectedValue is the expected return multiple per unit staked.
	ExpectedValue float64 `json:"expected_value"`
	// EdgePercent is the expected profit per unit staked, in percent:
	// (ExpectedValue - 1) * 100.
	EdgePercent        float64 `json:"edge_percent"`
	ImpliedProbability float64 `json:"implied_probability"`

	KellyRaw    float64 `json:"kelly_raw"`
	KellyCapped float64 `json:"kelly_capped"`

	ValueTier Tier     `json:"value_tier"`
	RiskTier  RiskTier `json:"risk_tier"`
	ShouldBet bool     `json:"should_bet"`

	Recommendation string `json:"recommendation"`
}

// Analyzer runs the decision rules.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer creates an analyzer. A nil config uses defaults;
// zero-value fields fall back individually.
func NewAnalyzer(cfg *Config) *Analyzer {
	defaults := DefaultConfig()
	if cfg == nil {
		cfg = &defaults
	}
	if cfg.MaxKellyFraction == 0 {
		cfg.MaxKellyFraction = defaults.MaxKellyFraction
	}
	if cfg.MinBetFraction == 0 {
		cfg.MinBetFraction = defaults.MinBetFraction
	}
	if cfg.HighValueEV == 0 {
		cfg.HighValueEV = defaults.HighValueEV
	}
	if cfg.MediumValueEV == 0 {
		cfg.MediumValueEV = defaults.MediumValueEV
	}
	if cfg.BookmakerMargin == 0 {
		cfg.BookmakerMargin = defaults.BookmakerMargin
	}
	return &Analyzer{cfg: *cfg}
}

// Analyze evaluates a market at a real bookmaker price.
func (a *Analyzer) Analyze(market football.Market, prob, price float64) (*Analysis, error) {
	return a.analyze(market, prob, price, false)
}

// AnalyzeEstimated evaluates a market with no quoted price, using a
// fair price degraded by the assumed bookmaker margin. The result is
// flagged so downstream consumers can tell it apart from a real quote.
func (a *Analyzer) AnalyzeEstimated(market football.Market, prob float64) (*Analysis, error) {
	price, err := a.EstimatePrice(prob)
	if err != nil {
		return nil, err
	}
	return a.analyze(market, prob, price, true)
}

// EstimatePrice returns the bookmaker price implied by the model
// probability under the configured margin.
func (a *Analyzer) EstimatePrice(prob float64) (float64, error) {
	if prob <= 0 || prob > 1 {
		return 0, fmt.Errorf("estimating price for probability %v: %w", prob, ErrProbabilityRange)
	}
	return 1 / (prob * (1 - a.cfg.BookmakerMargin)), nil
}

// Stake converts an analysis into a stake amount against a bankroll.
// Non-recommendations stake zero.
func (a *Analyzer) Stake(an *Analysis, bankroll decimal.Decimal) decimal.Decimal {
	if an == nil || !an.ShouldBet {
		return decimal.Zero
	}
	return bankroll.Mul(decimal.NewFromFloat(an.KellyCapped)).Round(2)
}

// --- Internal helpers ---

func (a *Analyzer) analyze(market football.Market, prob, price float64, estimated bool) (*Analysis, error) {
	if prob < 0 || prob > 1 {
		return nil, fmt.Errorf("analyzing %s at probability %v: %w", market, prob, ErrProbabilityRange)
	}
	if price < 1 {
		return nil, fmt.Errorf("analyzing %s at price %v: %w", market, price, ErrPriceRange)
	}

	an := &Analysis{
		Market:             market,
		MarketName:         market.Name(),
		Probability:        prob,
		Price:              price,
		EstimatedPrice:     estimated,
		ExpectedValue:      prob * price,
		ImpliedProbability: 1 / price,
	}
	an.EdgePercent = (an.ExpectedValue - 1) * 100

	// Kelly: f* = (b*p - q) / b with b the net odds. A price of
	// exactly 1 has no payout to size against, so f* is 0.
	b := price - 1
	if b > 0 {
		an.KellyRaw = (b*prob - (1 - prob)) / b
	}
	if an.KellyRaw > 0 {
		an.KellyCapped = an.KellyRaw
		if an.KellyCapped > a.cfg.MaxKellyFraction {
			an.KellyCapped = a.cfg.MaxKellyFraction
		}
	}

	switch {
	case an.ExpectedValue >= a.cfg.HighValueEV:
		an.ValueTier = TierHigh
	case an.ExpectedValue >= a.cfg.MediumValueEV:
		an.ValueTier = TierMedium
	default:
		an.ValueTier = TierNeutral
	}

	switch {
	case an.KellyCapped <= 0:
		an.RiskTier = RiskNone
	case an.KellyCapped < 0.05:
		an.RiskTier = RiskLow
	case an.KellyCapped < 0.15:
		an.RiskTier = RiskMedium
	default:
		an.RiskTier = RiskHigh
	}

	an.ShouldBet = an.KellyRaw > 0 &&
		(an.ValueTier == TierHigh || an.ValueTier == TierMedium) &&
		an.KellyCapped >= a.cfg.MinBetFraction

	an.Recommendation = a.recommendation(an)
	return an, nil
}

func (a *Analyzer) recommendation(an *Analysis) string {
	if !an.ShouldBet {
		switch {
		case an.KellyRaw <= 0:
			return "skip: no edge"
		case an.ValueTier == TierNeutral:
			return "skip: expected value below threshold"
		default:
			return "skip: stake below minimum"
		}
	}
	return fmt.Sprintf("bet %.1f%% of bankroll on %s (%s value, EV %.2f)",
		an.KellyCapped*100, an.MarketName, an.ValueTier, an.ExpectedValue)
}
