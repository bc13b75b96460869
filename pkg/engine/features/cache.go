// Package features computes point-in-time team statistics over a fixed
// snapshot of finished matches. Every query takes an as-of instant and
// only consults matches that kicked off strictly before it, so a value
// computed for a historical fixture never sees that fixture's own
// result or anything after it.
package features

import (
	"sort"
	"sync"
	"time"

	"github.com/mathshard/oddsengine/pkg/football"
)

const (
	// FormDecay is the per-match recency decay applied to weighted form.
	FormDecay = 0.85

	// DefaultWindow is the match window for form queries.
	DefaultWindow = 5

	defaultRestDays = 14
	maxRestDays     = 30

	// Teams with no prior matches are slotted mid-table.
	defaultPosition = 10

	neutralWinRate  = 0.5
	neutralAvgGoals = 1.25
	neutralWeighted = 1.5
)

// Venue restricts a form query to a side of the pitch.
type Venue string

const (
	VenueAll  Venue = "all"
	VenueHome Venue = "home"
	VenueAway Venue = "away"
)

// Form is a team's record over a recent-match window.
// A zero Played count means no history existed before the as-of
// instant; rate fields then carry neutral defaults rather than zeros.
type Form struct {
	Played          int
	Wins            int
	Draws           int
	Losses          int
	GoalsFor        int
	GoalsAgainst    int
	Points          int
	WinRate         float64
	AvgGoalsFor     float64
	AvgGoalsAgainst float64
	// WeightedPoints is the decay-weighted points per match on a 0..3
	// scale, most recent match weighted highest.
	WeightedPoints float64
}

// HeadToHead summarizes prior meetings between two teams, counted from
// the perspective of the first team regardless of venue.
type HeadToHead struct {
	Played        int
	FirstWins     int
	Draws         int
	SecondWins    int
	AvgGoalsFirst float64
	AvgGoalsSecond float64
	AvgTotalGoals float64
}

// Streaks carries current run-of-results counters.
type Streaks struct {
	Wins     int
	Unbeaten int
}

type formKey struct {
	team  football.TeamID
	asOf  int64
	lastN int
	venue Venue
}

type h2hKey struct {
	first, second football.TeamID
	asOf          int64
	lastN         int
}

type posKey struct {
	team   football.TeamID
	league football.LeagueID
	asOf   int64
}

// Cache answers point-in-time statistics queries over an immutable
// match snapshot. Results are memoized by exact query key; repeated
// queries are cheap and always identical.
type Cache struct {
	matches []football.Match
	byTeam  map[football.TeamID][]int

	mu   sync.RWMutex
	form map[formKey]Form
	h2h  map[h2hKey]HeadToHead
	pos  map[posKey]int
}

// NewCache builds a cache over the given matches. Unfinished matches
// are dropped; the rest are held in kick-off order.
func NewCache(matches []football.Match) *Cache {
	finished := make([]football.Match, 0, len(matches))
	for _, m := range matches {
		if m.Finished() {
			finished = append(finished, m)
		}
	}
	sort.SliceStable(finished, func(i, j int) bool {
		return finished[i].KickOff.Before(finished[j].KickOff)
	})

	byTeam := make(map[football.TeamID][]int)
	for i, m := range finished {
		byTeam[m.HomeTeamID] = append(byTeam[m.HomeTeamID], i)
		byTeam[m.AwayTeamID] = append(byTeam[m.AwayTeamID], i)
	}

	return &Cache{
		matches: finished,
		byTeam:  byTeam,
		form:    make(map[formKey]Form),
		h2h:     make(map[h2hKey]HeadToHead),
		pos:     make(map[posKey]int),
	}
}

// MatchCount returns the number of finished matches in the snapshot.
func (c *Cache) MatchCount() int {
	return len(c.matches)
}

// Form returns the team's record over its last lastN matches before
// asOf, optionally restricted to a venue.
func (c *Cache) Form(team football.TeamID, asOf time.Time, lastN int, venue Venue) Form {
	if lastN <= 0 {
		lastN = DefaultWindow
	}
	key := formKey{team: team, asOf: asOf.UnixNano(), lastN: lastN, venue: venue}

	c.mu.RLock()
	f, ok := c.form[key]
	c.mu.RUnlock()
	if ok {
		return f
	}

	f = c.computeForm(team, asOf, lastN, venue)

	c.mu.Lock()
	c.form[key] = f
	c.mu.Unlock()
	return f
}

// HeadToHead returns the record of prior meetings between first and
// second over their last lastN meetings before asOf.
func (c *Cache) HeadToHead(first, second football.TeamID, asOf time.Time, lastN int) HeadToHead {
	if lastN <= 0 {
		lastN = DefaultWindow
	}
	key := h2hKey{first: first, second: second, asOf: asOf.UnixNano(), lastN: lastN}

	c.mu.RLock()
	h, ok := c.h2h[key]
	c.mu.RUnlock()
	if ok {
		return h
	}

	h = c.computeH2H(first, second, asOf, lastN)

	c.mu.Lock()
	c.h2h[key] = h
	c.mu.Unlock()
	return h
}

// LeaguePosition returns the team's 1-based standing in its league
// table built from matches before asOf. Teams with no prior matches
// are placed mid-table.
func (c *Cache) LeaguePosition(team football.TeamID, league football.LeagueID, asOf time.Time) int {
	key := posKey{team: team, league: league, asOf: asOf.UnixNano()}

	c.mu.RLock()
	p, ok := c.pos[key]
	c.mu.RUnlock()
	if ok {
		return p
	}

	p = c.computePosition(team, league, asOf)

	c.mu.Lock()
	c.pos[key] = p
	c.mu.Unlock()
	return p
}

// RestDays returns the days since the team's last match before asOf,
// capped at maxRestDays. Teams with no history get the default.
func (c *Cache) RestDays(team football.TeamID, asOf time.Time) int {
	idxs := c.teamMatchesBefore(team, asOf)
	if len(idxs) == 0 {
		return defaultRestDays
	}
	last := c.matches[idxs[len(idxs)-1]]
	days := int(asOf.Sub(last.KickOff).Hours() / 24)
	if days < 0 {
		days = 0
	}
	if days > maxRestDays {
		days = maxRestDays
	}
	return days
}

// Streaks returns the team's current win and unbeaten runs before asOf.
func (c *Cache) Streaks(team football.TeamID, asOf time.Time) Streaks {
	idxs := c.teamMatchesBefore(team, asOf)

	var s Streaks
	winsDone, unbeatenDone := false, false
	for i := len(idxs) - 1; i >= 0 && !(winsDone && unbeatenDone); i-- {
		m := c.matches[idxs[i]]
		res := resultFor(team, m)
		if res == football.ResultHome && !winsDone {
			s.Wins++
		} else {
			winsDone = true
		}
		if res != football.ResultAway && !unbeatenDone {
			s.Unbeaten++
		} else {
			unbeatenDone = true
		}
	}
	return s
}

// --- Internal helpers ---

// resultFor maps a match result into the team's perspective: home=win,
// draw=draw, away=loss.
func resultFor(team football.TeamID, m football.Match) football.Result {
	r, _ := m.Result()
	switch {
	case r == football.ResultDraw:
		return football.ResultDraw
	case (r == football.ResultHome) == (m.HomeTeamID == team):
		return football.ResultHome
	default:
		return football.ResultAway
	}
}

func (c *Cache) teamMatchesBefore(team football.TeamID, asOf time.Time) []int {
	idxs := c.byTeam[team]
	// Indexes are in kick-off order; cut at the first match not strictly
	// before asOf.
	cut := sort.Search(len(idxs), func(i int) bool {
		return !c.matches[idxs[i]].KickOff.Before(asOf)
	})
	return idxs[:cut]
}

func (c *Cache) computeForm(team football.TeamID, asOf time.Time, lastN int, venue Venue) Form {
	idxs := c.teamMatchesBefore(team, asOf)

	selected := make([]football.Match, 0, lastN)
	for i := len(idxs) - 1; i >= 0 && len(selected) < lastN; i-- {
		m := c.matches[idxs[i]]
		switch venue {
		case VenueHome:
			if m.HomeTeamID != team {
				continue
			}
		case VenueAway:
			if m.AwayTeamID != team {
				continue
			}
		}
		selected = append(selected, m) // most recent first
	}

	if len(selected) == 0 {
		return Form{
			WinRate:         neutralWinRate,
			AvgGoalsFor:     neutralAvgGoals,
			AvgGoalsAgainst: neutralAvgGoals,
			WeightedPoints:  neutralWeighted,
		}
	}

	var f Form
	var weightedSum, weightTotal float64
	weight := 1.0
	for _, m := range selected {
		gf, _ := m.GoalsFor(team)
		ga, _ := m.GoalsAgainst(team)
		f.GoalsFor += gf
		f.GoalsAgainst += ga

		var pts int
		switch resultFor(team, m) {
		case football.ResultHome:
			f.Wins++
			pts = 3
		case football.ResultDraw:
			f.Draws++
			pts = 1
		default:
			f.Losses++
		}
		f.Points += pts

		weightedSum += float64(pts) * weight
		weightTotal += weight
		weight *= FormDecay
	}

	f.Played = len(selected)
	n := float64(f.Played)
	f.WinRate = float64(f.Wins) / n
	f.AvgGoalsFor = float64(f.GoalsFor) / n
	f.AvgGoalsAgainst = float64(f.GoalsAgainst) / n
	f.WeightedPoints = weightedSum / weightTotal
	return f
}

func (c *Cache) computeH2H(first, second football.TeamID, asOf time.Time, lastN int) HeadToHead {
	idxs := c.teamMatchesBefore(first, asOf)

	meetings := make([]football.Match, 0, lastN)
	for i := len(idxs) - 1; i >= 0 && len(meetings) < lastN; i-- {
		m := c.matches[idxs[i]]
		if m.Involves(second) {
			meetings = append(meetings, m)
		}
	}

	var h HeadToHead
	if len(meetings) == 0 {
		return h
	}

	var goalsFirst, goalsSecond int
	for _, m := range meetings {
		switch resultFor(first, m) {
		case football.ResultHome:
			h.FirstWins++
		case football.ResultDraw:
			h.Draws++
		default:
			h.SecondWins++
		}
		gf, _ := m.GoalsFor(first)
		ga, _ := m.GoalsAgainst(first)
		goalsFirst += gf
		goalsSecond += ga
	}

	h.Played = len(meetings)
	n := float64(h.Played)
	h.AvgGoalsFirst = float64(goalsFirst) / n
	h.AvgGoalsSecond = float64(goalsSecond) / n
	h.AvgTotalGoals = float64(goalsFirst+goalsSecond) / n
	return h
}

type tableRow struct {
	team   football.TeamID
	points int
	gd     int
	gf     int
}

func (c *Cache) computePosition(team football.TeamID, league football.LeagueID, asOf time.Time) int {
	rows := make(map[football.TeamID]*tableRow)

	row := func(id football.TeamID) *tableRow {
		r, ok := rows[id]
		if !ok {
			r = &tableRow{team: id}
			rows[id] = r
		}
		return r
	}

	for _, m := range c.matches {
		if m.LeagueID != league || !m.KickOff.Before(asOf) {
			continue
		}
		home, away := row(m.HomeTeamID), row(m.AwayTeamID)
		hg, ag := m.FullTime.Home, m.FullTime.Away

		home.gf += hg
		home.gd += hg - ag
		away.gf += ag
		away.gd += ag - hg

		switch m.FullTime.Result() {
		case football.ResultHome:
			home.points += 3
		case football.ResultAway:
			away.points += 3
		default:
			home.points++
			away.points++
		}
	}

	if _, ok := rows[team]; !ok {
		return defaultPosition
	}

	table := make([]*tableRow, 0, len(rows))
	for _, r := range rows {
		table = append(table, r)
	}
	sort.SliceStable(table, func(i, j int) bool {
		a, b := table[i], table[j]
		if a.points != b.points {
			return a.points > b.points
		}
		if a.gd != b.gd {
			return a.gd > b.gd
		}
		if a.gf != b.gf {
			return a.gf > b.gf
		}
		return a.team < b.team
	})

	for i, r := range table {
		if r.team == team {
			return i + 1
		}
	}
	return defaultPosition
}
