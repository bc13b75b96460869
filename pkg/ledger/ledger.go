package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mathshard/oddsengine/pkg/football"
	"github.com/mathshard/oddsengine/pkg/value"
)

var hundred = decimal.NewFromInt(100)

// PlaceRequest describes a bet to record.
type PlaceRequest struct {
	MatchID        football.MatchID
	Market         football.Market
	Stake          decimal.Decimal
	Price          decimal.Decimal
	EstimatedPrice bool
	Probability    float64
	KellyPercent   float64
	ValueTier      value.Tier
	RiskTier       value.RiskTier
}

// SettlementSummary reports one settlement pass.
type SettlementSummary struct {
	Examined   int             `json:"examined"`
	Settled    int             `json:"settled"`
	Won        int             `json:"won"`
	Lost       int             `json:"lost"`
	Unfinished int             `json:"unfinished"`
	Conflicts  int             `json:"conflicts"`
	PnL        decimal.Decimal `json:"pnl"`
}

// PerformanceStats aggregates settled betting performance.
type PerformanceStats struct {
	TotalBets int `json:"total_bets"`
	Pending   int `json:"pending"`
	Settled   int `json:"settled"`
	Wins      int `json:"wins"`
	Losses    int `json:"losses"`

	WinRate     float64         `json:"win_rate"`
	TotalStaked decimal.Decimal `json:"total_staked"`
	TotalPnL    decimal.Decimal `json:"total_pnl"`
	ROIPercent  decimal.Decimal `json:"roi_percent"`

	TierWinRates map[value.Tier]TierStats `json:"tier_win_rates"`
}

// TierStats is the settled record within one value tier.
type TierStats struct {
	Settled int     `json:"settled"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"win_rate"`
}

// EquityPoint is one step of the bankroll curve.
type EquityPoint struct {
	At       time.Time       `json:"at"`
	BetID    string          `json:"bet_id"`
	PnL      decimal.Decimal `json:"pnl"`
	Bankroll decimal.Decimal `json:"bankroll"`
}

// Ledger records bets and settles them against finished matches.
type Ledger struct {
	bets    Store
	matches MatchGetter
	initial decimal.Decimal
	log     *logrus.Logger
	now     func() time.Time
}

// New creates a ledger over the given stores. A nil logger falls back
// to the standard logrus logger.
func New(bets Store, matches MatchGetter, initialBankroll decimal.Decimal, log *logrus.Logger) *Ledger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Ledger{
		bets:    bets,
		matches: matches,
		initial: initialBankroll,
		log:     log,
		now:     time.Now,
	}
}

// Place validates and records a pending bet.
func (l *Ledger) Place(ctx context.Context, req PlaceRequest) (*BetRecord, error) {
	if req.Stake.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("placing bet on match %d: %w", req.MatchID, ErrInvalidStake)
	}
	if req.Price.LessThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("placing bet on match %d: %w", req.MatchID, ErrInvalidPrice)
	}

	bankroll, err := l.Bankroll(ctx)
	if err != nil {
		return nil, err
	}

	bet := &BetRecord{
		ID:             uuid.New().String(),
		MatchID:        req.MatchID,
		Market:         req.Market,
		Stake:          req.Stake,
		Price:          req.Price,
		EstimatedPrice: req.EstimatedPrice,
		Probability:    req.Probability,
		KellyPercent:   req.KellyPercent,
		ValueTier:      req.ValueTier,
		RiskTier:       req.RiskTier,
		Status:         StatusPending,
		PlacedAt:       l.now(),
		BankrollAtBet:  bankroll,
	}
	if err := l.bets.Insert(ctx, bet); err != nil {
		return nil, fmt.Errorf("storing bet %s: %w", bet.ID, err)
	}

	l.log.WithFields(logrus.Fields{
		"bet_id": bet.ID,
		"match":  bet.MatchID,
		"market": bet.Market,
		"stake":  bet.Stake.String(),
		"price":  bet.Price.String(),
		"tier":   bet.ValueTier,
	}).Info("bet placed")

	return bet, nil
}

// Bankroll returns the current bankroll: the initial amount plus all
// settled profit and loss.
func (l *Ledger) Bankroll(ctx context.Context) (decimal.Decimal, error) {
	settled, err := l.bets.ListSettled(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("loading settled bets: %w", err)
	}
	bankroll := l.initial
	for _, bet := range settled {
		bankroll = bankroll.Add(bet.PnL)
	}
	return bankroll, nil
}

// SettlePending settles every pending bet whose match has finished.
// The pass is idempotent: a bet already settled by a concurrent pass
// is skipped and counted as a conflict, never settled twice.
func (l *Ledger) SettlePending(ctx context.Context) (*SettlementSummary, error) {
	pending, err := l.bets.ListByStatus(ctx, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("loading pending bets: %w", err)
	}

	summary := &SettlementSummary{Examined: len(pending), PnL: decimal.Zero}
	for _, bet := range pending {
		match, err := l.matches.GetMatch(ctx, bet.MatchID)
		if err != nil {
			l.log.WithError(err).WithField("bet_id", bet.ID).Warn("match lookup failed, leaving bet pending")
			summary.Unfinished++
			continue
		}
		if !match.Finished() {
			summary.Unfinished++
			continue
		}

		st := settle(&bet, *match.FullTime)
		st.BankrollAfter = bet.BankrollAtBet.Add(st.PnL)
		st.SettledAt = l.now()

		applied, err := l.bets.Settle(ctx, bet.ID, st)
		if err != nil {
			return summary, fmt.Errorf("settling bet %s: %w", bet.ID, err)
		}
		if !applied {
			summary.Conflicts++
			l.log.WithField("bet_id", bet.ID).Warn("settlement conflict, bet no longer pending")
			continue
		}

		summary.Settled++
		summary.PnL = summary.PnL.Add(st.PnL)
		if st.Status == StatusWon {
			summary.Won++
		} else {
			summary.Lost++
		}

		l.log.WithFields(logrus.Fields{
			"bet_id":   bet.ID,
			"match":    bet.MatchID,
			"market":   bet.Market,
			"status":   st.Status,
			"pnl":      st.PnL.String(),
			"bankroll": st.BankrollAfter.String(),
		}).Info("bet settled")
	}

	return summary, nil
}

// Performance aggregates settled results, overall and per value tier.
func (l *Ledger) Performance(ctx context.Context) (*PerformanceStats, error) {
	bets, err := l.bets.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading bets: %w", err)
	}

	stats := &PerformanceStats{
		TotalStaked:  decimal.Zero,
		TotalPnL:     decimal.Zero,
		ROIPercent:   decimal.Zero,
		TierWinRates: make(map[value.Tier]TierStats),
	}

	for _, bet := range bets {
		stats.TotalBets++
		if bet.Status == StatusPending {
			stats.Pending++
			continue
		}

		stats.Settled++
		stats.TotalStaked = stats.TotalStaked.Add(bet.Stake)
		stats.TotalPnL = stats.TotalPnL.Add(bet.PnL)

		ts := stats.TierWinRates[bet.ValueTier]
		ts.Settled++
		if bet.Status == StatusWon {
			stats.Wins++
			ts.Wins++
		} else {
			stats.Losses++
		}
		stats.TierWinRates[bet.ValueTier] = ts
	}

	if stats.Settled > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.Settled)
	}
	if stats.TotalStaked.IsPositive() {
		stats.ROIPercent = stats.TotalPnL.Div(stats.TotalStaked).Mul(hundred)
	}
	for tier, ts := range stats.TierWinRates {
		if ts.Settled > 0 {
			ts.WinRate = float64(ts.Wins) / float64(ts.Settled)
		}
		stats.TierWinRates[tier] = ts
	}

	return stats, nil
}

// RecentlySettled returns the last n settled bets in settlement order.
func (l *Ledger) RecentlySettled(ctx context.Context, n int) ([]BetRecord, error) {
	settled, err := l.bets.ListSettled(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settled bets: %w", err)
	}
	if n > 0 && len(settled) > n {
		settled = settled[len(settled)-n:]
	}
	return settled, nil
}

// EquityCurve folds settled bets over the initial bankroll in
// settlement order.
func (l *Ledger) EquityCurve(ctx context.Context) ([]EquityPoint, error) {
	settled, err := l.bets.ListSettled(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settled bets: %w", err)
	}

	curve := make([]EquityPoint, 0, len(settled))
	bankroll := l.initial
	for _, bet := range settled {
		bankroll = bankroll.Add(bet.PnL)
		curve = append(curve, EquityPoint{
			At:       bet.SettledAt,
			BetID:    bet.ID,
			PnL:      bet.PnL,
			Bankroll: bankroll,
		})
	}
	return curve, nil
}

// --- Internal helpers ---

// settle computes the outcome of one bet against a final score.
func settle(bet *BetRecord, score football.Score) Settlement {
	st := Settlement{Result: score.Result()}
	if bet.Market.Won(score) {
		st.Status = StatusWon
		st.PnL = bet.Stake.Mul(bet.Price.Sub(decimal.NewFromInt(1)))
	} else {
		st.Status = StatusLost
		st.PnL = bet.Stake.Neg()
	}
	if bet.Stake.IsPositive() {
		st.ROIPercent = st.PnL.Div(bet.Stake).Mul(hundred)
	}
	return st
}
