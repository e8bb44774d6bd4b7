package gp

import (
	"math/rand/v2"
	"sort"
)

// Entry is one player's accumulated standing: points, accumulated
// time, and the ordering rule over them.
type Entry struct {
	PlayerName      string
	Team            string
	Points          int
	AccumulatedTime float64
}

// RaceResult is one kart's finish in a single race, the manager's unit
// of input for ProcessRace.
type RaceResult struct {
	PlayerName string
	Team       string
	Position   int // 1-based
	Time       float64
	FastestLap bool
	Pole       bool
}

// Manager accumulates GPScore across a sequence of races.
type Manager struct {
	Scoring   *Scoring
	entries   map[string]*Entry
	teamTotal map[string]*Entry
	order     []string // insertion order of player names, for determinism
}

// NewManager creates a GP manager using the given scoring function.
func NewManager(scoring *Scoring) *Manager {
	return &Manager{
		Scoring:   scoring,
		entries:   make(map[string]*Entry),
		teamTotal: make(map[string]*Entry),
	}
}

func (m *Manager) entry(name, team string) *Entry {
	e, ok := m.entries[name]
	if !ok {
		e = &Entry{PlayerName: name, Team: team}
		m.entries[name] = e
		m.order = append(m.order, name)
	}
	return e
}

func (m *Manager) teamEntry(team string) *Entry {
	e, ok := m.teamTotal[team]
	if !ok {
		e = &Entry{Team: team}
		m.teamTotal[team] = e
	}
	return e
}

// ProcessRace applies one race's results to the running standings:
// per-position points from the configured Scoring, plus pole and
// fastest-lap bonuses.
func (m *Manager) ProcessRace(results []RaceResult) {
	sorted := append([]RaceResult(nil), results...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	raceTimes := make(map[int]float64)
	scoreTable := m.Scoring.RefreshCustomScores(len(sorted))

	for _, r := range sorted {
		var pts int
		if m.Scoring.IsStandard() {
			pts = StandardScoreForPosition(r.Position)
			raceTimes[r.Position] = r.Time
		} else if m.Scoring.CanGetScoreForPosition(r.Position, raceTimes) {
			pts = m.Scoring.ScoreForPosition(r.Position, r.Time, raceTimes, scoreTable)
		}
		if r.Pole {
			pts += m.Scoring.PolePoints()
		}
		if r.FastestLap {
			pts += m.Scoring.FastestLapPoints()
		}

		e := m.entry(r.PlayerName, r.Team)
		e.Points += pts
		e.AccumulatedTime += r.Time
		if r.Team != "" {
			te := m.teamEntry(r.Team)
			te.Points += pts
			te.AccumulatedTime += r.Time
		}
	}
}

// Standings returns per-player entries ordered by (points desc, time
// asc).
func (m *Manager) Standings() []Entry {
	out := make([]Entry, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, *m.entries[name])
	}
	sortEntries(out)
	return out
}

// TeamStandings returns per-team totals ordered the same way.
func (m *Manager) TeamStandings() []Entry {
	out := make([]Entry, 0, len(m.teamTotal))
	for _, e := range m.teamTotal {
		out = append(out, *e)
	}
	sortEntries(out)
	return out
}

func sortEntries(e []Entry) {
	sort.SliceStable(e, func(i, j int) bool {
		if e[i].Points != e[j].Points {
			return e[i].Points > e[j].Points
		}
		return e[i].AccumulatedTime < e[j].AccumulatedTime
	})
}

// Shuffle permutes every player's accumulated score/time according to
// perm (a full permutation of player names), mirroring GPManager's
// shuffling of GP scores when teams are rebalanced mid-GP.
func (m *Manager) Shuffle(perm map[string]string) {
	snapshot := make(map[string]Entry, len(m.entries))
	for name, e := range m.entries {
		snapshot[name] = *e
	}
	for from, to := range perm {
		src, ok := snapshot[from]
		if !ok {
			continue
		}
		dst, ok := m.entries[to]
		if !ok {
			continue
		}
		dst.Points = src.Points
		dst.AccumulatedTime = src.AccumulatedTime
	}
}

// RandomPermutation builds a permutation map over the current
// player set for use with Shuffle.
func (m *Manager) RandomPermutation() map[string]string {
	names := append([]string(nil), m.order...)
	shuffled := append([]string(nil), names...)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	perm := make(map[string]string, len(names))
	for i, n := range names {
		perm[n] = shuffled[i]
	}
	return perm
}
