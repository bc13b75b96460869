// importer loads league fixture files into the SQLite store. Feed
// files carry team names rather than IDs, so matches are resolved
// through the team index before they are written.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mathshard/oddsengine/internal/config"
	"github.com/mathshard/oddsengine/internal/logging"
	"github.com/mathshard/oddsengine/pkg/football"
	"github.com/mathshard/oddsengine/pkg/store"
)

var (
	// Flags
	configPath = flag.String("config", "", "Path to YAML config file")
	dbPath     = flag.String("db", "", "SQLite database path (overrides config)")
	filePath   = flag.String("file", "", "Fixture file to import (required)")
)

// fixtureFile is the on-disk import format: one league, its teams, and
// matches keyed by team name.
type fixtureFile struct {
	League  football.League `json:"league"`
	Teams   []football.Team `json:"teams"`
	Matches []fixtureMatch  `json:"matches"`
}

type fixtureMatch struct {
	ID       football.MatchID     `json:"id"`
	Round    string               `json:"round,omitempty"`
	Home     string               `json:"home"`
	Away     string               `json:"away"`
	KickOff  time.Time            `json:"kick_off"`
	Status   football.MatchStatus `json:"status"`
	FullTime *football.Score      `json:"full_time,omitempty"`
	HalfTime *football.Score      `json:"half_time,omitempty"`
}

func main() {
	flag.Parse()
	if *filePath == "" {
		fatal("-file is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("config: %v", err)
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		fatal("logging: %v", err)
	}

	s, err := store.Open(cfg.DatabasePath)
	if err != nil {
		fatal("opening store: %v", err)
	}
	defer s.Close()

	ff, err := readFixtureFile(*filePath)
	if err != nil {
		fatal("%v", err)
	}

	imported, skipped, err := importFile(context.Background(), s, ff, log)
	if err != nil {
		fatal("import: %v", err)
	}

	log.WithFields(logrus.Fields{
		"league":   ff.League.ID,
		"teams":    len(ff.Teams),
		"imported": imported,
		"skipped":  skipped,
	}).Info("import finished")
	fmt.Printf("imported %d matches (%d skipped) for league %d\n", imported, skipped, ff.League.ID)
}

func readFixtureFile(path string) (*fixtureFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening fixture file: %w", err)
	}
	defer f.Close()

	var ff fixtureFile
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ff); err != nil {
		return nil, fmt.Errorf("parsing fixture file %s: %w", path, err)
	}
	if ff.League.ID == 0 {
		return nil, fmt.Errorf("fixture file %s: league id missing", path)
	}
	return &ff, nil
}

// importFile writes the league and teams, then resolves each match's
// team names against the combined index of stored and file teams.
// Matches naming an unknown team are skipped, not fatal: feeds misspell
// names and the rest of the file is still worth keeping.
func importFile(ctx context.Context, s *store.Store, ff *fixtureFile, log *logrus.Logger) (imported, skipped int, err error) {
	if err := s.UpsertLeague(ctx, ff.League); err != nil {
		return 0, 0, err
	}

	stored, err := s.ListTeams(ctx, ff.League.ID)
	if err != nil {
		return 0, 0, err
	}
	idx := football.NewTeamIndex(stored)

	for _, team := range ff.Teams {
		if team.LeagueID == 0 {
			team.LeagueID = ff.League.ID
		}
		if err := s.UpsertTeam(ctx, team); err != nil {
			return imported, skipped, err
		}
		idx.Add(team)
	}

	for _, fm := range ff.Matches {
		m, ok := resolveMatch(idx, ff.League, fm)
		if !ok {
			skipped++
			log.WithFields(logrus.Fields{
				"match": fm.ID,
				"home":  fm.Home,
				"away":  fm.Away,
			}).Warn("unresolved team name, skipping match")
			continue
		}
		if err := s.UpsertMatch(ctx, m); err != nil {
			return imported, skipped, err
		}
		imported++
	}
	return imported, skipped, nil
}

// resolveMatch maps the feed's team names to stored team IDs.
func resolveMatch(idx *football.TeamIndex, league football.League, fm fixtureMatch) (football.Match, bool) {
	home, ok := idx.Find(fm.Home)
	if !ok {
		return football.Match{}, false
	}
	away, ok := idx.Find(fm.Away)
	if !ok {
		return football.Match{}, false
	}

	status := fm.Status
	if status == "" {
		status = football.StatusScheduled
	}

	return football.Match{
		ID:         fm.ID,
		LeagueID:   league.ID,
		Season:     league.Season,
		Round:      fm.Round,
		HomeTeamID: home.ID,
		AwayTeamID: away.ID,
		KickOff:    fm.KickOff,
		Status:     status,
		FullTime:   fm.FullTime,
		HalfTime:   fm.HalfTime,
	}, true
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
