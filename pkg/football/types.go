// Package football defines the shared domain types for the odds engine:
// leagues, teams, matches, scores and betting markets.
package football

import "time"

// LeagueID identifies a league.
type LeagueID int64

// TeamID identifies a team.
type TeamID int64

// MatchID identifies a match.
type MatchID int64

// MatchStatus is the lifecycle state of a fixture.
type MatchStatus string

const (
	StatusScheduled MatchStatus = "NS"
	StatusLive      MatchStatus = "LIVE"
	StatusFinished  MatchStatus = "FT"
	StatusPostponed MatchStatus = "PST"
	StatusCancelled MatchStatus = "CANC"
)

// Terminal reports whether the match has reached a final result.
func (s MatchStatus) Terminal() bool {
	return s == StatusFinished
}

// Result is the full-time 1X2 outcome of a match.
type Result string

const (
	ResultHome Result = "H"
	ResultDraw Result = "D"
	ResultAway Result = "A"
)

// League describes a competition season.
type League struct {
	ID      LeagueID `json:"id"`
	Name    string   `json:"name"`
	Country string   `json:"country"`
	Season  int      `json:"season"`
}

// Team describes a club within a league.
type Team struct {
	ID       TeamID   `json:"id"`
	LeagueID LeagueID `json:"league_id"`
	Name     string   `json:"name"`
	Code     string   `json:"code,omitempty"`
	Country  string   `json:"country,omitempty"`
}

// Score is a goal count pair.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Result returns the 1X2 outcome implied by the score.
func (s Score) Result() Result {
	switch {
	case s.Home > s.Away:
		return ResultHome
	case s.Home < s.Away:
		return ResultAway
	default:
		return ResultDraw
	}
}

// Total returns the combined goal count.
func (s Score) Total() int {
	return s.Home + s.Away
}

// BothScored reports whether both teams found the net.
func (s Score) BothScored() bool {
	return s.Home > 0 && s.Away > 0
}

// Match is a single fixture. FullTime is nil until the match finishes.
type Match struct {
	ID         MatchID     `json:"id"`
	LeagueID   LeagueID    `json:"league_id"`
	Season     int         `json:"season"`
	Round      string      `json:"round,omitempty"`
	HomeTeamID TeamID      `json:"home_team_id"`
	AwayTeamID TeamID      `json:"away_team_id"`
	KickOff    time.Time   `json:"kick_off"`
	Status     MatchStatus `json:"status"`
	FullTime   *Score      `json:"full_time,omitempty"`
	HalfTime   *Score      `json:"half_time,omitempty"`
}

// Finished reports whether the match has a usable final score.
func (m *Match) Finished() bool {
	return m.Status.Terminal() && m.FullTime != nil
}

// Result returns the full-time outcome, if available.
func (m *Match) Result() (Result, bool) {
	if !m.Finished() {
		return "", false
	}
	return m.FullTime.Result(), true
}

// Involves reports whether the team played in this match.
func (m *Match) Involves(team TeamID) bool {
	return m.HomeTeamID == team || m.AwayTeamID == team
}

// GoalsFor returns the goals scored by the given team, if it played
// and the match finished.
func (m *Match) GoalsFor(team TeamID) (int, bool) {
	if !m.Finished() {
		return 0, false
	}
	switch team {
	case m.HomeTeamID:
		return m.FullTime.Home, true
	case m.AwayTeamID:
		return m.FullTime.Away, true
	}
	return 0, false
}

// GoalsAgainst returns the goals conceded by the given team, if it
// played and the match finished.
func (m *Match) GoalsAgainst(team TeamID) (int, bool) {
	if !m.Finished() {
		return 0, false
	}
	switch team {
	case m.HomeTeamID:
		return m.FullTime.Away, true
	case m.AwayTeamID:
		return m.FullTime.Home, true
	}
	return 0, false
}
