package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mathshard/oddsengine/pkg/ledger"
)

// BetStore adapts the bet_history table to the ledger's Store
// interface.
type BetStore struct {
	db *sql.DB
}

// Bets returns the store's bet history view.
func (s *Store) Bets() *BetStore {
	return &BetStore{db: s.db}
}

// Insert stores a new bet record.
func (b *BetStore) Insert(ctx context.Context, bet *ledger.BetRecord) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO bet_history (id, match_id, market, stake, price, estimated,
			probability, kelly_percent, value_tier, risk_tier, status, placed_at,
			bankroll_at_bet, settled_at, result, pnl, roi_percent, bankroll_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, '', '0', '0', '0')`,
		bet.ID, bet.MatchID, bet.Market, bet.Stake.String(), bet.Price.String(),
		boolToInt(bet.EstimatedPrice), bet.Probability, bet.KellyPercent,
		bet.ValueTier, bet.RiskTier, bet.Status, bet.PlacedAt.UTC().Unix(),
		bet.BankrollAtBet.String())
	if err != nil {
		return fmt.Errorf("inserting bet %s: %w", bet.ID, err)
	}
	return nil
}

// Get returns a bet by ID.
func (b *BetStore) Get(ctx context.Context, id string) (*ledger.BetRecord, error) {
	row := b.db.QueryRowContext(ctx, betSelect+` WHERE id = ?`, id)
	bet, err := scanBet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bet %s: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading bet %s: %w", id, err)
	}
	return bet, nil
}

// ListByStatus returns bets with the given status in placement order.
func (b *BetStore) ListByStatus(ctx context.Context, status ledger.Status) ([]ledger.BetRecord, error) {
	return b.queryBets(ctx, betSelect+` WHERE status = ? ORDER BY placed_at, id`, status)
}

// ListSettled returns settled bets ordered by settlement time.
func (b *BetStore) ListSettled(ctx context.Context) ([]ledger.BetRecord, error) {
	return b.queryBets(ctx, betSelect+` WHERE status != ? ORDER BY settled_at, id`, ledger.StatusPending)
}

// ListAll returns every bet in placement order.
func (b *BetStore) ListAll(ctx context.Context) ([]ledger.BetRecord, error) {
	return b.queryBets(ctx, betSelect+` ORDER BY placed_at, id`)
}

// Settle applies the settlement only if the bet is still pending. The
// status guard in the WHERE clause makes concurrent passes safe: only
// one update can flip the row out of PENDING.
func (b *BetStore) Settle(ctx context.Context, id string, st ledger.Settlement) (bool, error) {
	res, err := b.db.ExecContext(ctx, `
		UPDATE bet_history
		SET status = ?, result = ?, pnl = ?, roi_percent = ?, bankroll_after = ?, settled_at = ?
		WHERE id = ? AND status = ?`,
		st.Status, st.Result, st.PnL.String(), st.ROIPercent.String(),
		st.BankrollAfter.String(), st.SettledAt.UTC().Unix(), id, ledger.StatusPending)
	if err != nil {
		return false, fmt.Errorf("settling bet %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("settling bet %s: %w", id, err)
	}
	return n == 1, nil
}

// --- Internal helpers ---

const betSelect = `SELECT id, match_id, market, stake, price, estimated, probability,
	kelly_percent, value_tier, risk_tier, status, placed_at, bankroll_at_bet,
	settled_at, result, pnl, roi_percent, bankroll_after FROM bet_history`

func scanBet(r rowScanner) (*ledger.BetRecord, error) {
	var (
		bet                ledger.BetRecord
		stake, price       string
		atBet              string
		pnl, roi, bankroll string
		estimated          int
		placedAt           int64
		settledAt          sql.NullInt64
	)
	err := r.Scan(&bet.ID, &bet.MatchID, &bet.Market, &stake, &price, &estimated,
		&bet.Probability, &bet.KellyPercent, &bet.ValueTier, &bet.RiskTier,
		&bet.Status, &placedAt, &atBet, &settledAt, &bet.Result, &pnl, &roi, &bankroll)
	if err != nil {
		return nil, err
	}

	if bet.Stake, err = decimal.NewFromString(stake); err != nil {
		return nil, fmt.Errorf("parsing stake %q: %w", stake, err)
	}
	if bet.BankrollAtBet, err = decimal.NewFromString(atBet); err != nil {
		return nil, fmt.Errorf("parsing bankroll %q: %w", atBet, err)
	}
	if bet.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parsing price %q: %w", price, err)
	}
	if bet.PnL, err = decimal.NewFromString(pnl); err != nil {
		return nil, fmt.Errorf("parsing pnl %q: %w", pnl, err)
	}
	if bet.ROIPercent, err = decimal.NewFromString(roi); err != nil {
		return nil, fmt.Errorf("parsing roi %q: %w", roi, err)
	}
	if bet.BankrollAfter, err = decimal.NewFromString(bankroll); err != nil {
		return nil, fmt.Errorf("parsing bankroll %q: %w", bankroll, err)
	}

	bet.EstimatedPrice = estimated != 0
	bet.PlacedAt = time.Unix(placedAt, 0).UTC()
	if settledAt.Valid {
		bet.SettledAt = time.Unix(settledAt.Int64, 0).UTC()
	}
	return &bet, nil
}

func (b *BetStore) queryBets(ctx context.Context, q string, args ...any) ([]ledger.BetRecord, error) {
	rows, err := b.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying bets: %w", err)
	}
	defer rows.Close()

	var bets []ledger.BetRecord
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bet: %w", err)
		}
		bets = append(bets, *bet)
	}
	return bets, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Interface checks.
var (
	_ ledger.Store       = (*BetStore)(nil)
	_ ledger.MatchGetter = (*Store)(nil)
)
