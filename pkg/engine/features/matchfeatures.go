package features

import (
	"github.com/mathshard/oddsengine/pkg/football"
)

// SchemaVersion tags the MatchFeatures layout. Bump it whenever a
// field is added, removed or changes meaning so persisted feature rows
// can be told apart.
const SchemaVersion = "v2"

// MatchFeatures is the full pre-match feature bundle for one fixture,
// computed as of kick-off.
type MatchFeatures struct {
	SchemaVersion string           `json:"schema_version"`
	MatchID       football.MatchID `json:"match_id"`

	HomeForm     Form `json:"home_form"`
	AwayForm     Form `json:"away_form"`
	HomeFormHome Form `json:"home_form_home"`
	AwayFormAway Form `json:"away_form_away"`

	HeadToHead HeadToHead `json:"head_to_head"`

	HomePosition int `json:"home_position"`
	AwayPosition int `json:"away_position"`

	HomeRestDays int     `json:"home_rest_days"`
	AwayRestDays int     `json:"away_rest_days"`
	HomeStreaks  Streaks `json:"home_streaks"`
	AwayStreaks  Streaks `json:"away_streaks"`
}

// MatchFeatures assembles the feature bundle for a fixture as of its
// kick-off instant.
func (c *Cache) MatchFeatures(m football.Match) MatchFeatures {
	asOf := m.KickOff
	return MatchFeatures{
		SchemaVersion: SchemaVersion,
		MatchID:       m.ID,

		HomeForm:     c.Form(m.HomeTeamID, asOf, DefaultWindow, VenueAll),
		AwayForm:     c.Form(m.AwayTeamID, asOf, DefaultWindow, VenueAll),
		HomeFormHome: c.Form(m.HomeTeamID, asOf, DefaultWindow, VenueHome),
		AwayFormAway: c.Form(m.AwayTeamID, asOf, DefaultWindow, VenueAway),

		HeadToHead: c.HeadToHead(m.HomeTeamID, m.AwayTeamID, asOf, DefaultWindow),

		HomePosition: c.LeaguePosition(m.HomeTeamID, m.LeagueID, asOf),
		AwayPosition: c.LeaguePosition(m.AwayTeamID, m.LeagueID, asOf),

		HomeRestDays: c.RestDays(m.HomeTeamID, asOf),
		AwayRestDays: c.RestDays(m.AwayTeamID, asOf),
		HomeStreaks:  c.Streaks(m.HomeTeamID, asOf),
		AwayStreaks:  c.Streaks(m.AwayTeamID, asOf),
	}
}
