package poisson

import (
	"github.com/mathshard/oddsengine/pkg/football"
)

// League-wide scoring baselines used when the snapshot has no matches.
const (
	DefaultLeagueAvgHome = 1.5
	DefaultLeagueAvgAway = 1.2
)

// Strengths holds attack and defense ratings per team, each expressed
// as a multiplier on the league-average scoring rate. A rating of 1.0
// is exactly average; unknown teams are treated as average.
type Strengths struct {
	Attack  map[football.TeamID]float64
	Defense map[football.TeamID]float64

	LeagueAvgHome float64
	LeagueAvgAway float64
}

type teamTally struct {
	homePlayed, awayPlayed     int
	homeScored, awayScored     int
	homeConceded, awayConceded int
}

// ComputeStrengths derives team ratings from finished matches. Each
// side of a team's schedule is compared against the matching league
// baseline and the two venue ratios are averaged, so a team that only
// played home matches still gets a usable rating.
func ComputeStrengths(matches []football.Match) Strengths {
	tallies := make(map[football.TeamID]*teamTally)
	tally := func(id football.TeamID) *teamTally {
		tt, ok := tallies[id]
		if !ok {
			tt = &teamTally{}
			tallies[id] = tt
		}
		return tt
	}

	var played, homeGoals, awayGoals int
	for _, m := range matches {
		if !m.Finished() {
			continue
		}
		played++
		homeGoals += m.FullTime.Home
		awayGoals += m.FullTime.Away

		h := tally(m.HomeTeamID)
		h.homePlayed++
		h.homeScored += m.FullTime.Home
		h.homeConceded += m.FullTime.Away

		a := tally(m.AwayTeamID)
		a.awayPlayed++
		a.awayScored += m.FullTime.Away
		a.awayConceded += m.FullTime.Home
	}

	s := Strengths{
		Attack:        make(map[football.TeamID]float64, len(tallies)),
		Defense:       make(map[football.TeamID]float64, len(tallies)),
		LeagueAvgHome: DefaultLeagueAvgHome,
		LeagueAvgAway: DefaultLeagueAvgAway,
	}
	if played > 0 {
		s.LeagueAvgHome = float64(homeGoals) / float64(played)
		s.LeagueAvgAway = float64(awayGoals) / float64(played)
	}
	if s.LeagueAvgHome <= 0 {
		s.LeagueAvgHome = DefaultLeagueAvgHome
	}
	if s.LeagueAvgAway <= 0 {
		s.LeagueAvgAway = DefaultLeagueAvgAway
	}

	for id, tt := range tallies {
		s.Attack[id] = venueAverage(
			ratio(tt.homeScored, tt.homePlayed, s.LeagueAvgHome),
			ratio(tt.awayScored, tt.awayPlayed, s.LeagueAvgAway),
		)
		s.Defense[id] = venueAverage(
			ratio(tt.homeConceded, tt.homePlayed, s.LeagueAvgAway),
			ratio(tt.awayConceded, tt.awayPlayed, s.LeagueAvgHome),
		)
	}
	return s
}

// AttackFor returns the team's attack rating, 1.0 when unknown.
func (s Strengths) AttackFor(team football.TeamID) float64 {
	if v, ok := s.Attack[team]; ok {
		return v
	}
	return 1.0
}

// DefenseFor returns the team's defense rating, 1.0 when unknown.
func (s Strengths) DefenseFor(team football.TeamID) float64 {
	if v, ok := s.Defense[team]; ok {
		return v
	}
	return 1.0
}

// --- Internal helpers ---

// ratio returns goals-per-match over the baseline, or -1 when the
// venue has no matches.
func ratio(goals, played int, baseline float64) float64 {
	if played == 0 || baseline <= 0 {
		return -1
	}
	return float64(goals) / float64(played) / baseline
}

func venueAverage(home, away float64) float64 {
	switch {
	case home >= 0 && away >= 0:
		return (home + away) / 2
	case home >= 0:
		return home
	case away >= 0:
		return away
	default:
		return 1.0
	}
}
