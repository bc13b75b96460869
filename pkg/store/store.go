// Package store persists leagues, teams, matches and bet history in
// SQLite. It backs the model snapshot (match history reads) and the
// ledger (bet lifecycle writes).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mathshard/oddsengine/pkg/football"
)

var (
	ErrTeamNotFound  = errors.New("store: team not found")
	ErrMatchNotFound = errors.New("store: match not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS leagues (
	id      INTEGER PRIMARY KEY,
	name    TEXT NOT NULL,
	country TEXT NOT NULL DEFAULT '',
	season  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS teams (
	id        INTEGER PRIMARY KEY,
	league_id INTEGER NOT NULL REFERENCES leagues(id),
	name      TEXT NOT NULL,
	code      TEXT NOT NULL DEFAULT '',
	country   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS matches (
	id           INTEGER PRIMARY KEY,
	league_id    INTEGER NOT NULL,
	season       INTEGER NOT NULL DEFAULT 0,
	round        TEXT NOT NULL DEFAULT '',
	home_team_id INTEGER NOT NULL,
	away_team_id INTEGER NOT NULL,
	kick_off     INTEGER NOT NULL,
	status       TEXT NOT NULL,
	home_goals   INTEGER,
	away_goals   INTEGER,
	ht_home      INTEGER,
	ht_away      INTEGER
);
CREATE INDEX IF NOT EXISTS idx_matches_kick_off ON matches(kick_off);
CREATE INDEX IF NOT EXISTS idx_matches_league ON matches(league_id, kick_off);

CREATE TABLE IF NOT EXISTS bet_history (
	id             TEXT PRIMARY KEY,
	match_id       INTEGER NOT NULL,
	market         TEXT NOT NULL,
	stake          TEXT NOT NULL,
	price          TEXT NOT NULL,
	estimated      INTEGER NOT NULL DEFAULT 0,
	probability    REAL NOT NULL DEFAULT 0,
	kelly_percent  REAL NOT NULL DEFAULT 0,
	value_tier     TEXT NOT NULL DEFAULT '',
	risk_tier      TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	placed_at      INTEGER NOT NULL,
	bankroll_at_bet TEXT NOT NULL DEFAULT '0',
	settled_at     INTEGER,
	result         TEXT NOT NULL DEFAULT '',
	pnl            TEXT NOT NULL DEFAULT '0',
	roi_percent    TEXT NOT NULL DEFAULT '0',
	bankroll_after TEXT NOT NULL DEFAULT '0'
);
CREATE INDEX IF NOT EXISTS idx_bets_status ON bet_history(status);
CREATE INDEX IF NOT EXISTS idx_bets_settled ON bet_history(settled_at);
`

// Store is a SQLite-backed persistence layer.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	// SQLite handles one writer; a single pooled connection also keeps
	// in-memory databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertLeague inserts or replaces a league.
func (s *Store) UpsertLeague(ctx context.Context, l football.League) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leagues (id, name, country, season) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, country=excluded.country, season=excluded.season`,
		l.ID, l.Name, l.Country, l.Season)
	if err != nil {
		return fmt.Errorf("upserting league %d: %w", l.ID, err)
	}
	return nil
}

// UpsertTeam inserts or replaces a team.
func (s *Store) UpsertTeam(ctx context.Context, t football.Team) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO teams (id, league_id, name, code, country) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET league_id=excluded.league_id, name=excluded.name,
			code=excluded.code, country=excluded.country`,
		t.ID, t.LeagueID, t.Name, t.Code, t.Country)
	if err != nil {
		return fmt.Errorf("upserting team %d: %w", t.ID, err)
	}
	return nil
}

// UpsertMatch inserts or replaces a match.
func (s *Store) UpsertMatch(ctx context.Context, m football.Match) error {
	var hg, ag, hth, hta any
	if m.FullTime != nil {
		hg, ag = m.FullTime.Home, m.FullTime.Away
	}
	if m.HalfTime != nil {
		hth, hta = m.HalfTime.Home, m.HalfTime.Away
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matches (id, league_id, season, round, home_team_id, away_team_id,
			kick_off, status, home_goals, away_goals, ht_home, ht_away)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET league_id=excluded.league_id, season=excluded.season,
			round=excluded.round, home_team_id=excluded.home_team_id,
			away_team_id=excluded.away_team_id, kick_off=excluded.kick_off,
			status=excluded.status, home_goals=excluded.home_goals,
			away_goals=excluded.away_goals, ht_home=excluded.ht_home, ht_away=excluded.ht_away`,
		m.ID, m.LeagueID, m.Season, m.Round, m.HomeTeamID, m.AwayTeamID,
		m.KickOff.UTC().Unix(), m.Status, hg, ag, hth, hta)
	if err != nil {
		return fmt.Errorf("upserting match %d: %w", m.ID, err)
	}
	return nil
}

// GetTeam returns a team by ID.
func (s *Store) GetTeam(ctx context.Context, id football.TeamID) (football.Team, error) {
	var t football.Team
	err := s.db.QueryRowContext(ctx,
		`SELECT id, league_id, name, code, country FROM teams WHERE id = ?`, id).
		Scan(&t.ID, &t.LeagueID, &t.Name, &t.Code, &t.Country)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("team %d: %w", id, ErrTeamNotFound)
	}
	if err != nil {
		return t, fmt.Errorf("loading team %d: %w", id, err)
	}
	return t, nil
}

// ListTeams returns every team in a league.
func (s *Store) ListTeams(ctx context.Context, league football.LeagueID) ([]football.Team, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, league_id, name, code, country FROM teams WHERE league_id = ? ORDER BY id`, league)
	if err != nil {
		return nil, fmt.Errorf("listing teams for league %d: %w", league, err)
	}
	defer rows.Close()

	var teams []football.Team
	for rows.Next() {
		var t football.Team
		if err := rows.Scan(&t.ID, &t.LeagueID, &t.Name, &t.Code, &t.Country); err != nil {
			return nil, fmt.Errorf("scanning team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// GetMatch returns a match by ID.
func (s *Store) GetMatch(ctx context.Context, id football.MatchID) (football.Match, error) {
	row := s.db.QueryRowContext(ctx, matchSelect+` WHERE id = ?`, id)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return m, fmt.Errorf("match %d: %w", id, ErrMatchNotFound)
	}
	if err != nil {
		return m, fmt.Errorf("loading match %d: %w", id, err)
	}
	return m, nil
}

// ListFinishedMatches returns finished matches in kick-off order,
// optionally restricted to kick-offs strictly before a cutoff and to a
// set of leagues.
func (s *Store) ListFinishedMatches(ctx context.Context, before *time.Time, leagues []football.LeagueID) ([]football.Match, error) {
	q := matchSelect + ` WHERE status = ? AND home_goals IS NOT NULL`
	args := []any{football.StatusFinished}

	if before != nil {
		q += ` AND kick_off < ?`
		args = append(args, before.UTC().Unix())
	}
	if len(leagues) > 0 {
		q += ` AND league_id IN (` + placeholders(len(leagues)) + `)`
		for _, id := range leagues {
			args = append(args, id)
		}
	}
	q += ` ORDER BY kick_off, id`

	return s.queryMatches(ctx, q, args...)
}

// ListUpcomingMatches returns scheduled matches kicking off in
// [from, until), soonest first.
func (s *Store) ListUpcomingMatches(ctx context.Context, from, until time.Time, leagues []football.LeagueID) ([]football.Match, error) {
	q := matchSelect + ` WHERE status = ? AND kick_off >= ? AND kick_off < ?`
	args := []any{football.StatusScheduled, from.UTC().Unix(), until.UTC().Unix()}

	if len(leagues) > 0 {
		q += ` AND league_id IN (` + placeholders(len(leagues)) + `)`
		for _, id := range leagues {
			args = append(args, id)
		}
	}
	q += ` ORDER BY kick_off, id`

	return s.queryMatches(ctx, q, args...)
}

// --- Internal helpers ---

const matchSelect = `SELECT id, league_id, season, round, home_team_id, away_team_id,
	kick_off, status, home_goals, away_goals, ht_home, ht_away FROM matches`

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(r rowScanner) (football.Match, error) {
	var (
		m                football.Match
		kickOff          int64
		hg, ag, hth, hta sql.NullInt64
	)
	err := r.Scan(&m.ID, &m.LeagueID, &m.Season, &m.Round, &m.HomeTeamID, &m.AwayTeamID,
		&kickOff, &m.Status, &hg, &ag, &hth, &hta)
	if err != nil {
		return m, err
	}
	m.KickOff = time.Unix(kickOff, 0).UTC()
	if hg.Valid && ag.Valid {
		m.FullTime = &football.Score{Home: int(hg.Int64), Away: int(ag.Int64)}
	}
	if hth.Valid && hta.Valid {
		m.HalfTime = &football.Score{Home: int(hth.Int64), Away: int(hta.Int64)}
	}
	return m, nil
}

func (s *Store) queryMatches(ctx context.Context, q string, args ...any) ([]football.Match, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	var matches []football.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
