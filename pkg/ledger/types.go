// Package ledger tracks the lifecycle of placed bets: PENDING on
// placement, WON or LOST once the underlying match finishes, with
// profit, ROI and bankroll bookkeeping on settlement.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mathshard/oddsengine/pkg/football"
	"github.com/mathshard/oddsengine/pkg/value"
)

// Status is a bet's lifecycle state.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusWon     Status = "WON"
	StatusLost    Status = "LOST"
)

var (
	ErrNotFound     = errors.New("ledger: bet not found")
	ErrInvalidStake = errors.New("ledger: stake must be positive")
	ErrInvalidPrice = errors.New("ledger: price must be >= 1")
)

// BetRecord is one bet, from placement through settlement.
type BetRecord struct {
	ID      string           `json:"id"`
	MatchID football.MatchID `json:"match_id"`
	Market  football.Market  `json:"market"`

	Stake          decimal.Decimal `json:"stake"`
	Price          decimal.Decimal `json:"price"`
	EstimatedPrice bool            `json:"estimated_price"`

	Probability  float64        `json:"probability"`
	KellyPercent float64        `json:"kelly_percent"`
	ValueTier    value.Tier     `json:"value_tier"`
	RiskTier     value.RiskTier `json:"risk_tier"`

	Status   Status    `json:"status"`
	PlacedAt time.Time `json:"placed_at"`
	// BankrollAtBet is the bankroll at placement time; settlement
	// computes BankrollAfter from it, not from a running total.
	BankrollAtBet decimal.Decimal `json:"bankroll_at_bet"`

	// Settlement fields, zero until the bet settles.
	SettledAt     time.Time       `json:"settled_at,omitempty"`
	Result        football.Result `json:"result,omitempty"`
	PnL           decimal.Decimal `json:"pnl"`
	ROIPercent    decimal.Decimal `json:"roi_percent"`
	BankrollAfter decimal.Decimal `json:"bankroll_after"`
}

// Settlement carries the outcome applied to a pending bet.
type Settlement struct {
	Status        Status
	Result        football.Result
	PnL           decimal.Decimal
	ROIPercent    decimal.Decimal
	BankrollAfter decimal.Decimal
	SettledAt     time.Time
}

// Store persists bet records. Settle must be atomic with respect to
// the pending check so concurrent settlement passes cannot double-pay.
type Store interface {
	Insert(ctx context.Context, bet *BetRecord) error
	Get(ctx context.Context, id string) (*BetRecord, error)
	ListByStatus(ctx context.Context, status Status) ([]BetRecord, error)
	// ListSettled returns settled bets ordered by settlement time.
	ListSettled(ctx context.Context) ([]BetRecord, error)
	ListAll(ctx context.Context) ([]BetRecord, error)
	// Settle applies the settlement only if the bet is still pending.
	// It reports whether the transition happened.
	Settle(ctx context.Context, id string, s Settlement) (bool, error)
}

// MatchGetter resolves matches for settlement.
type MatchGetter interface {
	GetMatch(ctx context.Context, id football.MatchID) (football.Match, error)
}
