package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathshard/oddsengine/pkg/football"
	"github.com/mathshard/oddsengine/pkg/ledger"
	"github.com/mathshard/oddsengine/pkg/value"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "oddsengine_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedMatch(t *testing.T, s *Store, m football.Match) {
	t.Helper()
	require.NoError(t, s.UpsertMatch(context.Background(), m))
}

func ft(id football.MatchID, league football.LeagueID, kickOff time.Time, hg, ag int) football.Match {
	return football.Match{
		ID:         id,
		LeagueID:   league,
		Season:     2025,
		HomeTeamID: 1,
		AwayTeamID: 2,
		KickOff:    kickOff,
		Status:     football.StatusFinished,
		FullTime:   &football.Score{Home: hg, Away: ag},
	}
}

func TestTeamRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertLeague(ctx, football.League{ID: 39, Name: "Premier League", Country: "England", Season: 2025}))
	require.NoError(t, s.UpsertTeam(ctx, football.Team{ID: 1, LeagueID: 39, Name: "Arsenal", Code: "ARS", Country: "England"}))

	team, err := s.GetTeam(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Arsenal", team.Name)
	assert.Equal(t, football.LeagueID(39), team.LeagueID)

	_, err = s.GetTeam(ctx, 999)
	assert.ErrorIs(t, err, ErrTeamNotFound)

	teams, err := s.ListTeams(ctx, 39)
	require.NoError(t, err)
	assert.Len(t, teams, 1)
}

func TestMatchRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	kick := time.Date(2025, 8, 16, 15, 0, 0, 0, time.UTC)

	seedMatch(t, s, ft(100, 39, kick, 2, 1))

	m, err := s.GetMatch(ctx, 100)
	require.NoError(t, err)
	assert.True(t, m.Finished())
	assert.Equal(t, kick, m.KickOff)
	assert.Equal(t, 2, m.FullTime.Home)

	_, err = s.GetMatch(ctx, 999)
	assert.ErrorIs(t, err, ErrMatchNotFound)

	// Upsert updates in place.
	updated := ft(100, 39, kick, 3, 1)
	seedMatch(t, s, updated)
	m, err = s.GetMatch(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 3, m.FullTime.Home)
}

func TestListFinishedMatchesCutoff(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 8, 1, 15, 0, 0, 0, time.UTC)

	seedMatch(t, s, ft(1, 39, base, 1, 0))
	seedMatch(t, s, ft(2, 39, base.Add(7*24*time.Hour), 0, 0))
	seedMatch(t, s, ft(3, 140, base.Add(3*24*time.Hour), 2, 2))
	seedMatch(t, s, football.Match{
		ID: 4, LeagueID: 39, HomeTeamID: 1, AwayTeamID: 2,
		KickOff: base.Add(14 * 24 * time.Hour), Status: football.StatusScheduled,
	})

	all, err := s.ListFinishedMatches(ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3, "scheduled matches excluded")
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].KickOff.Before(all[i-1].KickOff), "not in kick-off order")
	}

	// Cutoff is strict: a match at the cutoff instant is excluded.
	cutoff := base.Add(7 * 24 * time.Hour)
	early, err := s.ListFinishedMatches(ctx, &cutoff, nil)
	require.NoError(t, err)
	assert.Len(t, early, 2)

	// League filter.
	epl, err := s.ListFinishedMatches(ctx, nil, []football.LeagueID{39})
	require.NoError(t, err)
	assert.Len(t, epl, 2)
}

func TestListUpcomingMatches(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 8, 20, 12, 0, 0, 0, time.UTC)

	seedMatch(t, s, football.Match{
		ID: 1, LeagueID: 39, HomeTeamID: 1, AwayTeamID: 2,
		KickOff: now.Add(24 * time.Hour), Status: football.StatusScheduled,
	})
	seedMatch(t, s, football.Match{
		ID: 2, LeagueID: 39, HomeTeamID: 3, AwayTeamID: 4,
		KickOff: now.Add(10 * 24 * time.Hour), Status: football.StatusScheduled,
	})
	seedMatch(t, s, ft(3, 39, now.Add(-24*time.Hour), 1, 1))

	upcoming, err := s.ListUpcomingMatches(ctx, now, now.Add(7*24*time.Hour), nil)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, football.MatchID(1), upcoming[0].ID)
}

func TestBetStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	bets := s.Bets()
	ctx := context.Background()

	bet := &ledger.BetRecord{
		ID:            "bet-1",
		MatchID:       100,
		Market:        football.MarketOver25,
		Stake:         decimal.NewFromInt(75),
		Price:         decimal.NewFromFloat(1.95),
		Probability:   0.61,
		KellyPercent:  0.08,
		ValueTier:     value.TierMedium,
		RiskTier:      value.RiskMedium,
		Status:        ledger.StatusPending,
		PlacedAt:      time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC),
		BankrollAtBet: decimal.NewFromInt(1000),
	}
	require.NoError(t, bets.Insert(ctx, bet))

	got, err := bets.Get(ctx, "bet-1")
	require.NoError(t, err)
	assert.True(t, got.Stake.Equal(bet.Stake))
	assert.True(t, got.Price.Equal(bet.Price))
	assert.True(t, got.BankrollAtBet.Equal(bet.BankrollAtBet))
	assert.Equal(t, value.TierMedium, got.ValueTier)
	assert.Equal(t, ledger.StatusPending, got.Status)
	assert.True(t, got.SettledAt.IsZero())

	_, err = bets.Get(ctx, "missing")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestBetStoreSettleGuard(t *testing.T) {
	s := openTestStore(t)
	bets := s.Bets()
	ctx := context.Background()

	bet := &ledger.BetRecord{
		ID:       "bet-1",
		MatchID:  100,
		Market:   football.MarketHomeWin,
		Stake:    decimal.NewFromInt(100),
		Price:    decimal.NewFromFloat(2.5),
		Status:   ledger.StatusPending,
		PlacedAt: time.Now().UTC(),
	}
	require.NoError(t, bets.Insert(ctx, bet))

	st := ledger.Settlement{
		Status:        ledger.StatusWon,
		Result:        football.ResultHome,
		PnL:           decimal.NewFromInt(150),
		ROIPercent:    decimal.NewFromInt(150),
		BankrollAfter: decimal.NewFromInt(1150),
		SettledAt:     time.Date(2025, 8, 21, 22, 0, 0, 0, time.UTC),
	}

	applied, err := bets.Settle(ctx, "bet-1", st)
	require.NoError(t, err)
	assert.True(t, applied)

	// Second attempt is a no-op.
	st.Status = ledger.StatusLost
	applied, err = bets.Settle(ctx, "bet-1", st)
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := bets.Get(ctx, "bet-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusWon, got.Status)
	assert.True(t, got.PnL.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, st.SettledAt, got.SettledAt)

	settled, err := bets.ListSettled(ctx)
	require.NoError(t, err)
	assert.Len(t, settled, 1)

	pending, err := bets.ListByStatus(ctx, ledger.StatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestLedgerOverSQLite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	kick := time.Date(2025, 8, 16, 15, 0, 0, 0, time.UTC)
	seedMatch(t, s, ft(100, 39, kick, 2, 0))

	l := ledger.New(s.Bets(), s, decimal.NewFromInt(1000), nil)

	_, err := l.Place(ctx, ledger.PlaceRequest{
		MatchID:   100,
		Market:    football.MarketHomeWin,
		Stake:     decimal.NewFromInt(100),
		Price:     decimal.NewFromFloat(2.0),
		ValueTier: value.TierHigh,
	})
	require.NoError(t, err)

	summary, err := l.SettlePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Won)

	bankroll, err := l.Bankroll(ctx)
	require.NoError(t, err)
	assert.True(t, bankroll.Equal(decimal.NewFromInt(1100)), "bankroll = %s", bankroll)
}
