package football

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TeamIndex resolves team names from external feeds to stored teams.
// Lookups are accent- and suffix-insensitive so "Atlético Madrid",
// "Atletico Madrid" and "Atletico Madrid CF" all resolve to the same team.
type TeamIndex struct {
	mu       sync.RWMutex
	byID     map[TeamID]*Team
	byName   map[string]*Team
	byCode   map[string]*Team
	byLeague map[LeagueID][]*Team
}

// NewTeamIndex builds an index over the given teams.
func NewTeamIndex(teams []Team) *TeamIndex {
	idx := &TeamIndex{
		byID:     make(map[TeamID]*Team),
		byName:   make(map[string]*Team),
		byCode:   make(map[string]*Team),
		byLeague: make(map[LeagueID][]*Team),
	}
	for i := range teams {
		idx.add(&teams[i])
	}
	return idx
}

// Add inserts or replaces a team in the index.
func (idx *TeamIndex) Add(team Team) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.add(&team)
}

func (idx *TeamIndex) add(t *Team) {
	idx.byID[t.ID] = t
	idx.byName[NormalizeTeamName(t.Name)] = t
	if t.Code != "" {
		idx.byCode[strings.ToLower(t.Code)] = t
	}
	idx.byLeague[t.LeagueID] = append(idx.byLeague[t.LeagueID], t)
}

// ByID returns a team by ID.
func (idx *TeamIndex) ByID(id TeamID) (*Team, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	t, ok := idx.byID[id]
	return t, ok
}

// ByCode returns a team by short code.
func (idx *TeamIndex) ByCode(code string) (*Team, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	t, ok := idx.byCode[strings.ToLower(code)]
	return t, ok
}

// ByLeague returns all indexed teams in a league.
func (idx *TeamIndex) ByLeague(league LeagueID) []*Team {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.byLeague[league]
}

// Find resolves a team by name, falling back to suffix-stripped and
// partial matching.
func (idx *TeamIndex) Find(name string) (*Team, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	normName := NormalizeTeamName(name)
	if t, ok := idx.byName[normName]; ok {
		return t, true
	}

	suffixes := []string{" fc", " cf", " afc", " united", " city"}
	for _, suffix := range suffixes {
		stripped := strings.TrimSuffix(normName, suffix)
		if t, ok := idx.byName[stripped]; ok {
			return t, true
		}
	}

	for key, t := range idx.byName {
		if strings.Contains(key, normName) || strings.Contains(normName, key) {
			return t, true
		}
	}

	return nil, false
}

// NormalizeTeamName normalizes a team name for matching.
func NormalizeTeamName(name string) string {
	name = strings.ToLower(name)

	// Remove accents
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	name, _, _ = transform.String(t, name)

	// Remove common suffixes
	name = strings.ReplaceAll(name, " fc", "")
	name = strings.ReplaceAll(name, " afc", "")

	// Normalize spaces
	name = strings.Join(strings.Fields(name), " ")

	return strings.TrimSpace(name)
}
