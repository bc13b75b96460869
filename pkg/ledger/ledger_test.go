package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathshard/oddsengine/pkg/football"
	"github.com/mathshard/oddsengine/pkg/value"
)

type matchMap map[football.MatchID]football.Match

func (m matchMap) GetMatch(ctx context.Context, id football.MatchID) (football.Match, error) {
	match, ok := m[id]
	if !ok {
		return football.Match{}, ErrNotFound
	}
	return match, nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestLedger(matches matchMap) *Ledger {
	return New(NewMemoryStore(), matches, decimal.NewFromInt(1000), quietLogger())
}

func ft(id football.MatchID, hg, ag int) football.Match {
	return football.Match{
		ID:         id,
		HomeTeamID: 1,
		AwayTeamID: 2,
		KickOff:    time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC),
		Status:     football.StatusFinished,
		FullTime:   &football.Score{Home: hg, Away: ag},
	}
}

func TestPlaceValidation(t *testing.T) {
	l := newTestLedger(matchMap{})
	ctx := context.Background()

	_, err := l.Place(ctx, PlaceRequest{
		MatchID: 1,
		Market:  football.MarketHomeWin,
		Stake:   decimal.Zero,
		Price:   decimal.NewFromFloat(2.0),
	})
	assert.ErrorIs(t, err, ErrInvalidStake)

	_, err = l.Place(ctx, PlaceRequest{
		MatchID: 1,
		Market:  football.MarketHomeWin,
		Stake:   decimal.NewFromInt(100),
		Price:   decimal.NewFromFloat(0.9),
	})
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestSettleWinningBet(t *testing.T) {
	matches := matchMap{10: ft(10, 2, 1)}
	l := newTestLedger(matches)
	ctx := context.Background()

	bet, err := l.Place(ctx, PlaceRequest{
		MatchID:   10,
		Market:    football.MarketHomeWin,
		Stake:     decimal.NewFromInt(100),
		Price:     decimal.NewFromFloat(2.5),
		ValueTier: value.TierHigh,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, bet.Status)

	summary, err := l.SettlePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Settled)
	assert.Equal(t, 1, summary.Won)

	settled, err := l.bets.Get(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusWon, settled.Status)
	assert.Equal(t, football.ResultHome, settled.Result)
	assert.True(t, settled.PnL.Equal(decimal.NewFromInt(150)), "pnl = %s", settled.PnL)
	assert.True(t, settled.ROIPercent.Equal(decimal.NewFromInt(150)), "roi = %s", settled.ROIPercent)
	assert.True(t, settled.BankrollAfter.Equal(decimal.NewFromInt(1150)), "bankroll = %s", settled.BankrollAfter)
	assert.False(t, settled.SettledAt.IsZero())
}

func TestSettleLosingBet(t *testing.T) {
	matches := matchMap{10: ft(10, 0, 0)}
	l := newTestLedger(matches)
	ctx := context.Background()

	bet, err := l.Place(ctx, PlaceRequest{
		MatchID: 10,
		Market:  football.MarketHomeWin,
		Stake:   decimal.NewFromInt(50),
		Price:   decimal.NewFromFloat(3.0),
	})
	require.NoError(t, err)

	_, err = l.SettlePending(ctx)
	require.NoError(t, err)

	settled, err := l.bets.Get(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusLost, settled.Status)
	assert.True(t, settled.PnL.Equal(decimal.NewFromInt(-50)))
	assert.True(t, settled.ROIPercent.Equal(decimal.NewFromInt(-100)))
	assert.True(t, settled.BankrollAfter.Equal(decimal.NewFromInt(950)))
}

func TestSettlementIsIdempotent(t *testing.T) {
	matches := matchMap{10: ft(10, 2, 0)}
	l := newTestLedger(matches)
	ctx := context.Background()

	_, err := l.Place(ctx, PlaceRequest{
		MatchID: 10,
		Market:  football.MarketHomeWin,
		Stake:   decimal.NewFromInt(100),
		Price:   decimal.NewFromFloat(2.0),
	})
	require.NoError(t, err)

	first, err := l.SettlePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Settled)

	second, err := l.SettlePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Examined, "settled bets must not be revisited")

	bankroll, err := l.Bankroll(ctx)
	require.NoError(t, err)
	assert.True(t, bankroll.Equal(decimal.NewFromInt(1100)), "bankroll = %s", bankroll)
}

func TestBankrollAtBetCarriesThroughSettlement(t *testing.T) {
	matches := matchMap{
		10: ft(10, 2, 0), // home win
		11: ft(11, 0, 0), // draw
	}
	l := newTestLedger(matches)
	ctx := context.Background()

	first, err := l.Place(ctx, PlaceRequest{
		MatchID: 10,
		Market:  football.MarketHomeWin,
		Stake:   decimal.NewFromInt(100),
		Price:   decimal.NewFromFloat(2.0),
	})
	require.NoError(t, err)
	assert.True(t, first.BankrollAtBet.Equal(decimal.NewFromInt(1000)),
		"bankroll at bet = %s", first.BankrollAtBet)

	_, err = l.SettlePending(ctx)
	require.NoError(t, err)

	// A bet placed after the first settlement sees the grown bankroll.
	second, err := l.Place(ctx, PlaceRequest{
		MatchID: 11,
		Market:  football.MarketHomeWin,
		Stake:   decimal.NewFromInt(50),
		Price:   decimal.NewFromFloat(2.0),
	})
	require.NoError(t, err)
	assert.True(t, second.BankrollAtBet.Equal(decimal.NewFromInt(1100)),
		"bankroll at bet = %s", second.BankrollAtBet)

	_, err = l.SettlePending(ctx)
	require.NoError(t, err)

	settled, err := l.bets.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, settled.BankrollAfter.Equal(settled.BankrollAtBet.Add(settled.PnL)),
		"bankroll after = %s", settled.BankrollAfter)
	assert.True(t, settled.BankrollAfter.Equal(decimal.NewFromInt(1050)),
		"bankroll after = %s", settled.BankrollAfter)
}

func TestSettleSkipsUnfinishedMatches(t *testing.T) {
	scheduled := football.Match{
		ID:         11,
		HomeTeamID: 1,
		AwayTeamID: 2,
		Status:     football.StatusScheduled,
	}
	l := newTestLedger(matchMap{11: scheduled})
	ctx := context.Background()

	bet, err := l.Place(ctx, PlaceRequest{
		MatchID: 11,
		Market:  football.MarketDraw,
		Stake:   decimal.NewFromInt(10),
		Price:   decimal.NewFromFloat(3.2),
	})
	require.NoError(t, err)

	summary, err := l.SettlePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Settled)
	assert.Equal(t, 1, summary.Unfinished)

	still, err := l.bets.Get(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, still.Status)
}

func TestSettleGuardPreventsDoubleSettlement(t *testing.T) {
	matches := matchMap{10: ft(10, 1, 0)}
	store := NewMemoryStore()
	l := New(store, matches, decimal.NewFromInt(1000), quietLogger())
	ctx := context.Background()

	bet, err := l.Place(ctx, PlaceRequest{
		MatchID: 10,
		Market:  football.MarketHomeWin,
		Stake:   decimal.NewFromInt(100),
		Price:   decimal.NewFromFloat(2.0),
	})
	require.NoError(t, err)

	// A concurrent pass settles the bet first.
	applied, err := store.Settle(ctx, bet.ID, Settlement{
		Status:    StatusWon,
		PnL:       decimal.NewFromInt(100),
		SettledAt: time.Now(),
	})
	require.NoError(t, err)
	require.True(t, applied)

	// The second attempt must not apply, and the stored outcome stands.
	applied, err = store.Settle(ctx, bet.ID, Settlement{Status: StatusLost})
	require.NoError(t, err)
	assert.False(t, applied, "second settlement must not apply")

	got, err := store.Get(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusWon, got.Status)
}

func TestPerformanceAndEquityCurve(t *testing.T) {
	matches := matchMap{
		10: ft(10, 2, 0), // home win
		11: ft(11, 0, 1), // away win
		12: ft(12, 1, 1), // draw
	}
	l := newTestLedger(matches)
	ctx := context.Background()

	place := func(match football.MatchID, market football.Market, stake float64, price float64, tier value.Tier) {
		t.Helper()
		_, err := l.Place(ctx, PlaceRequest{
			MatchID:   match,
			Market:    market,
			Stake:     decimal.NewFromFloat(stake),
			Price:     decimal.NewFromFloat(price),
			ValueTier: tier,
		})
		require.NoError(t, err)
	}

	place(10, football.MarketHomeWin, 100, 2.0, value.TierHigh) // wins +100
	place(11, football.MarketHomeWin, 50, 2.0, value.TierHigh)  // loses -50
	place(12, football.MarketDraw, 40, 3.5, value.TierMedium)   // wins +100

	_, err := l.SettlePending(ctx)
	require.NoError(t, err)

	stats, err := l.Performance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalBets)
	assert.Equal(t, 3, stats.Settled)
	assert.Equal(t, 2, stats.Wins)
	assert.InDelta(t, 2.0/3, stats.WinRate, 1e-9)
	assert.True(t, stats.TotalStaked.Equal(decimal.NewFromInt(190)))
	assert.True(t, stats.TotalPnL.Equal(decimal.NewFromInt(150)), "pnl = %s", stats.TotalPnL)

	high := stats.TierWinRates[value.TierHigh]
	assert.Equal(t, 2, high.Settled)
	assert.InDelta(t, 0.5, high.WinRate, 1e-9)
	medium := stats.TierWinRates[value.TierMedium]
	assert.Equal(t, 1, medium.Settled)
	assert.InDelta(t, 1.0, medium.WinRate, 1e-9)

	curve, err := l.EquityCurve(ctx)
	require.NoError(t, err)
	require.Len(t, curve, 3)
	assert.True(t, curve[len(curve)-1].Bankroll.Equal(decimal.NewFromInt(1150)),
		"final equity = %s", curve[len(curve)-1].Bankroll)
	for i := 1; i < len(curve); i++ {
		assert.False(t, curve[i].At.Before(curve[i-1].At), "curve out of order")
	}
}
