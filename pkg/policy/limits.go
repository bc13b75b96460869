// Package policy enforces bankroll limits on bet placement.
package policy

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mathshard/oddsengine/pkg/football"
)

// Limits defines the staking guardrails.
type Limits struct {
	MaxStakePerBet   decimal.Decimal // max single stake
	MinStake         decimal.Decimal // stakes below this are noise
	MaxMatchExposure decimal.Decimal // max open stake on one match
	MaxOpenExposure  decimal.Decimal // max total open stake
	MaxOpenBets      int             // max concurrent pending bets
	MaxDailyStake    decimal.Decimal // max staked per calendar day
}

// DefaultLimits returns conservative defaults for a 1000-unit bankroll.
func DefaultLimits() *Limits {
	return &Limits{
		MaxStakePerBet:   decimal.NewFromInt(250),
		MinStake:         decimal.NewFromInt(5),
		MaxMatchExposure: decimal.NewFromInt(300),
		MaxOpenExposure:  decimal.NewFromInt(1500),
		MaxOpenBets:      20,
		MaxDailyStake:    decimal.NewFromInt(500),
	}
}

// Engine tracks open exposure and validates proposed stakes.
type Engine struct {
	limits *Limits

	mu            sync.RWMutex
	matchExposure map[football.MatchID]decimal.Decimal
	openBets      int
	openExposure  decimal.Decimal
	dailyStaked   decimal.Decimal
	lastStakeDay  int // day of year
}

// NewEngine creates a policy engine with the given limits, or defaults
// when nil.
func NewEngine(limits *Limits) *Engine {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &Engine{
		limits:        limits,
		matchExposure: make(map[football.MatchID]decimal.Decimal),
		lastStakeDay:  time.Now().YearDay(),
	}
}

// CheckStake validates a proposed stake against every limit.
func (e *Engine) CheckStake(match football.MatchID, stake decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.resetDailyIfNeeded()

	if stake.GreaterThan(e.limits.MaxStakePerBet) {
		return fmt.Errorf("stake %s exceeds per-bet max %s", stake, e.limits.MaxStakePerBet)
	}
	if stake.LessThan(e.limits.MinStake) {
		return fmt.Errorf("stake %s below min %s", stake, e.limits.MinStake)
	}
	if e.openBets >= e.limits.MaxOpenBets {
		return fmt.Errorf("too many open bets: %d >= %d", e.openBets, e.limits.MaxOpenBets)
	}
	if e.matchExposure[match].Add(stake).GreaterThan(e.limits.MaxMatchExposure) {
		return fmt.Errorf("would exceed match exposure limit %s for match %d", e.limits.MaxMatchExposure, match)
	}
	if e.openExposure.Add(stake).GreaterThan(e.limits.MaxOpenExposure) {
		return fmt.Errorf("would exceed open exposure limit %s", e.limits.MaxOpenExposure)
	}
	if e.dailyStaked.Add(stake).GreaterThan(e.limits.MaxDailyStake) {
		return fmt.Errorf("would exceed daily stake limit %s", e.limits.MaxDailyStake)
	}
	return nil
}

// RecordBet registers a placed bet's exposure.
func (e *Engine) RecordBet(match football.MatchID, stake decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.resetDailyIfNeeded()
	e.matchExposure[match] = e.matchExposure[match].Add(stake)
	e.openExposure = e.openExposure.Add(stake)
	e.dailyStaked = e.dailyStaked.Add(stake)
	e.openBets++
}

// RecordSettled releases a settled bet's exposure.
func (e *Engine) RecordSettled(match football.MatchID, stake decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exp := e.matchExposure[match].Sub(stake)
	if exp.IsPositive() {
		e.matchExposure[match] = exp
	} else {
		delete(e.matchExposure, match)
	}
	e.openExposure = e.openExposure.Sub(stake)
	if e.openExposure.IsNegative() {
		e.openExposure = decimal.Zero
	}
	if e.openBets > 0 {
		e.openBets--
	}
}

// Status is a point-in-time summary of the policy state.
type Status struct {
	OpenBets     int    `json:"open_bets"`
	MaxOpenBets  int    `json:"max_open_bets"`
	OpenExposure string `json:"open_exposure"`
	MaxExposure  string `json:"max_exposure"`
	DailyStaked  string `json:"daily_staked"`
	MaxDaily     string `json:"max_daily_stake"`
}

// Status returns the current policy state.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Status{
		OpenBets:     e.openBets,
		MaxOpenBets:  e.limits.MaxOpenBets,
		OpenExposure: e.openExposure.String(),
		MaxExposure:  e.limits.MaxOpenExposure.String(),
		DailyStaked:  e.dailyStaked.String(),
		MaxDaily:     e.limits.MaxDailyStake.String(),
	}
}

// --- Internal helpers ---

func (e *Engine) resetDailyIfNeeded() {
	if day := time.Now().YearDay(); day != e.lastStakeDay {
		e.dailyStaked = decimal.Zero
		e.lastStakeDay = day
	}
}
