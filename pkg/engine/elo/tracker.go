// Package elo maintains per-team Elo ratings replayed over match
// history in kick-off order.
package elo

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/mathshard/oddsengine/pkg/football"
)

// Config holds the rating parameters.
type Config struct {
	InitialRating float64 // rating assigned before any match
	KFactor       float64 // per-match adjustment scale
	HomeBonus     float64 // rating points added to the home side's expectation

	// NeutralVenue disables the home bonus. Without it a zero
	// HomeBonus falls back to the default like the other fields.
	NeutralVenue bool
}

// DefaultConfig returns the standard rating parameters.
func DefaultConfig() Config {
	return Config{
		InitialRating: 1500,
		KFactor:       32,
		HomeBonus:     100,
	}
}

// RatingPoint is one entry in a team's rating history: the rating the
// team held immediately after the match at At.
type RatingPoint struct {
	At     time.Time
	Rating float64
}

// Tracker replays finished matches chronologically and keeps an
// append-only rating history per team.
type Tracker struct {
	cfg Config

	mu      sync.RWMutex
	ratings map[football.TeamID]float64
	history map[football.TeamID][]RatingPoint
	lastAt  time.Time
}

// NewTracker creates a tracker with the given config. Zero-value
// fields fall back to defaults.
func NewTracker(cfg Config) *Tracker {
	defaults := DefaultConfig()
	if cfg.InitialRating == 0 {
		cfg.InitialRating = defaults.InitialRating
	}
	if cfg.KFactor == 0 {
		cfg.KFactor = defaults.KFactor
	}
	if cfg.HomeBonus == 0 && !cfg.NeutralVenue {
		cfg.HomeBonus = defaults.HomeBonus
	}
	if cfg.NeutralVenue {
		cfg.HomeBonus = 0
	}

	return &Tracker{
		cfg:     cfg,
		ratings: make(map[football.TeamID]float64),
		history: make(map[football.TeamID][]RatingPoint),
	}
}

// Expected returns the home side's win expectancy given both ratings,
// with the home bonus applied.
func (t *Tracker) Expected(homeRating, awayRating float64) float64 {
	return 1 / (1 + math.Pow(10, (awayRating-(homeRating+t.cfg.HomeBonus))/400))
}

// Replay applies a batch of matches. Unfinished matches are skipped;
// the rest are sorted by kick-off and applied in order. Replaying a
// match that kicked off before an already-applied one is an error,
// since that would rewrite history.
func (t *Tracker) Replay(matches []football.Match) error {
	finished := make([]football.Match, 0, len(matches))
	for _, m := range matches {
		if m.Finished() {
			finished = append(finished, m)
		}
	}
	sort.SliceStable(finished, func(i, j int) bool {
		return finished[i].KickOff.Before(finished[j].KickOff)
	})

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(finished) > 0 && !t.lastAt.IsZero() && finished[0].KickOff.Before(t.lastAt) {
		return fmt.Errorf("elo: match %d at %s predates already-applied history at %s",
			finished[0].ID, finished[0].KickOff.Format(time.RFC3339), t.lastAt.Format(time.RFC3339))
	}

	for _, m := range finished {
		t.apply(m)
	}
	return nil
}

// Rating returns the team's current rating.
func (t *Tracker) Rating(team football.TeamID) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if r, ok := t.ratings[team]; ok {
		return r
	}
	return t.cfg.InitialRating
}

// RatingAsOf returns the rating the team held going into the given
// instant: the last rating recorded strictly before it. A team with no
// prior matches holds the initial rating.
func (t *Tracker) RatingAsOf(team football.TeamID, at time.Time) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	hist := t.history[team]
	// First point not strictly before at; the answer precedes it.
	i := sort.Search(len(hist), func(i int) bool {
		return !hist[i].At.Before(at)
	})
	if i == 0 {
		return t.cfg.InitialRating
	}
	return hist[i-1].Rating
}

// History returns a copy of the team's rating history.
func (t *Tracker) History(team football.TeamID) []RatingPoint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	hist := t.history[team]
	out := make([]RatingPoint, len(hist))
	copy(out, hist)
	return out
}

// TopTeams returns the n highest-rated teams, best first.
func (t *Tracker) TopTeams(n int) []football.TeamID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	teams := make([]football.TeamID, 0, len(t.ratings))
	for id := range t.ratings {
		teams = append(teams, id)
	}
	sort.Slice(teams, func(i, j int) bool {
		ri, rj := t.ratings[teams[i]], t.ratings[teams[j]]
		if ri != rj {
			return ri > rj
		}
		return teams[i] < teams[j]
	})
	if n < len(teams) {
		teams = teams[:n]
	}
	return teams
}

// --- Internal helpers ---

func (t *Tracker) apply(m football.Match) {
	home := t.ratingLocked(m.HomeTeamID)
	away := t.ratingLocked(m.AwayTeamID)

	expHome := t.Expected(home, away)

	var actualHome float64
	switch m.FullTime.Result() {
	case football.ResultHome:
		actualHome = 1
	case football.ResultDraw:
		actualHome = 0.5
	}

	delta := t.cfg.KFactor * (actualHome - expHome)
	newHome := home + delta
	newAway := away - delta

	t.ratings[m.HomeTeamID] = newHome
	t.ratings[m.AwayTeamID] = newAway
	t.history[m.HomeTeamID] = append(t.history[m.HomeTeamID], RatingPoint{At: m.KickOff, Rating: newHome})
	t.history[m.AwayTeamID] = append(t.history[m.AwayTeamID], RatingPoint{At: m.KickOff, Rating: newAway})
	t.lastAt = m.KickOff
}

func (t *Tracker) ratingLocked(team football.TeamID) float64 {
	if r, ok := t.ratings[team]; ok {
		return r
	}
	return t.cfg.InitialRating
}
