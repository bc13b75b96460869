// Package engine assembles the prediction stack over a point-in-time
// match snapshot: feature cache, Elo ratings and the Poisson scoreline
// model, built together from the same history so they can never
// disagree about what was known when.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/mathshard/oddsengine/pkg/engine/elo"
	"github.com/mathshard/oddsengine/pkg/engine/features"
	"github.com/mathshard/oddsengine/pkg/engine/poisson"
	"github.com/mathshard/oddsengine/pkg/football"
)

// MatchSource supplies finished match history.
type MatchSource interface {
	ListFinishedMatches(ctx context.Context, before *time.Time, leagues []football.LeagueID) ([]football.Match, error)
}

// SliceSource adapts an in-memory match slice to MatchSource.
type SliceSource []football.Match

// ListFinishedMatches filters the slice like a store query would.
func (s SliceSource) ListFinishedMatches(ctx context.Context, before *time.Time, leagues []football.LeagueID) ([]football.Match, error) {
	allowed := make(map[football.LeagueID]bool, len(leagues))
	for _, id := range leagues {
		allowed[id] = true
	}

	var out []football.Match
	for _, m := range s {
		if !m.Finished() {
			continue
		}
		if before != nil && !m.KickOff.Before(*before) {
			continue
		}
		if len(allowed) > 0 && !allowed[m.LeagueID] {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Options configures a snapshot build.
type Options struct {
	// AsOf cuts history to matches kicking off strictly before it.
	// Nil uses everything the source has.
	AsOf *time.Time

	// Leagues restricts history; empty means all.
	Leagues []football.LeagueID

	Elo     elo.Config
	Poisson poisson.Config
}

// Snapshot is an immutable prediction context. Rebuild to pick up new
// results; existing references stay valid and consistent.
type Snapshot struct {
	builtAt time.Time
	asOf    *time.Time
	matches []football.Match

	Features *features.Cache
	Ratings  *elo.Tracker
	Model    *poisson.Model
}

// Build loads history from the source and fits every component on it.
func Build(ctx context.Context, src MatchSource, opts Options) (*Snapshot, error) {
	matches, err := src.ListFinishedMatches(ctx, opts.AsOf, opts.Leagues)
	if err != nil {
		return nil, fmt.Errorf("loading match history: %w", err)
	}

	tracker := elo.NewTracker(opts.Elo)
	if err := tracker.Replay(matches); err != nil {
		return nil, fmt.Errorf("replaying ratings: %w", err)
	}

	return &Snapshot{
		builtAt:  time.Now(),
		asOf:     opts.AsOf,
		matches:  matches,
		Features: features.NewCache(matches),
		Ratings:  tracker,
		Model:    poisson.Build(matches, opts.Poisson),
	}, nil
}

// BuiltAt returns when the snapshot was assembled.
func (s *Snapshot) BuiltAt() time.Time {
	return s.builtAt
}

// MatchCount returns the size of the underlying history.
func (s *Snapshot) MatchCount() int {
	return len(s.matches)
}

// Predict prices all markets for a fixture.
func (s *Snapshot) Predict(m football.Match) (*poisson.Prediction, error) {
	if s.asOf != nil && m.KickOff.Before(*s.asOf) {
		return nil, fmt.Errorf("fixture %d kicks off before snapshot cut %s", m.ID, s.asOf.Format(time.RFC3339))
	}
	return s.Model.Predict(m.HomeTeamID, m.AwayTeamID)
}

// MatchFeatures returns the feature bundle for a fixture as of its
// kick-off.
func (s *Snapshot) MatchFeatures(m football.Match) features.MatchFeatures {
	return s.Features.MatchFeatures(m)
}

// EloDiff returns the home-minus-away rating gap going into a fixture.
func (s *Snapshot) EloDiff(m football.Match) float64 {
	return s.Ratings.RatingAsOf(m.HomeTeamID, m.KickOff) - s.Ratings.RatingAsOf(m.AwayTeamID, m.KickOff)
}
