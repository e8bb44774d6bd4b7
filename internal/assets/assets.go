// Package assets implements the Asset Manager: the four disjoint
// kart/map universes, per-peer intersection bookkeeping, and the
// join/play admission predicates.
package assets

import (
	"math/rand/v2"
	"sort"

	"github.com/pkg/errors"
)

// Mode identifies a race mode, used to filter the available map set:
// race modes exclude arenas/soccers, CTF requires CTF-flagged tracks.
type Mode int

const (
	ModeRace Mode = iota
	ModeTimeTrial
	ModeFFA
	ModeCTF
	ModeSoccer
)

// Thresholds holds the join/play admission predicates.
type Thresholds struct {
	OfficialKartsJoin   float64
	OfficialTracksJoin  float64
	OfficialKartsPlay   float64
	OfficialTracksPlay  float64
	AddonKartsJoin      int
	AddonTracksJoin     int
	AddonArenasJoin     int
	AddonSoccersJoin    int
	AddonKartsPlay      int
	AddonTracksPlay     int
	AddonArenasPlay     int
	AddonSoccersPlay    int
}

// Manager holds the four universes and serving thresholds.
type Manager struct {
	OfficialKarts map[string]struct{}
	OfficialMaps  map[string]struct{}
	AddonKarts    map[string]struct{}
	AddonMaps     map[string]struct{}
	AddonArenas   map[string]struct{}
	AddonSoccers  map[string]struct{}
	MustHaveMaps  map[string]struct{}

	// CTFMaps / ArenaMaps / SoccerMaps subdivide OfficialMaps+AddonMaps
	// by the mode(s) they support, for per-mode filtering.
	CTFMaps    map[string]struct{}
	ArenaMaps  map[string]struct{}
	SoccerMaps map[string]struct{}

	Thresholds Thresholds
}

// New builds an empty Manager; callers populate the universes from
// the on-disk asset catalogue, loaded elsewhere.
func New(th Thresholds) *Manager {
	return &Manager{
		OfficialKarts: map[string]struct{}{},
		OfficialMaps:  map[string]struct{}{},
		AddonKarts:    map[string]struct{}{},
		AddonMaps:     map[string]struct{}{},
		AddonArenas:   map[string]struct{}{},
		AddonSoccers:  map[string]struct{}{},
		MustHaveMaps:  map[string]struct{}{},
		CTFMaps:       map[string]struct{}{},
		ArenaMaps:     map[string]struct{}{},
		SoccerMaps:    map[string]struct{}{},
		Thresholds:    th,
	}
}

func intersect(a map[string]struct{}, b []string) map[string]struct{} {
	bs := make(map[string]struct{}, len(b))
	for _, x := range b {
		bs[x] = struct{}{}
	}
	out := map[string]struct{}{}
	for k := range a {
		if _, ok := bs[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}

func fraction(have map[string]struct{}, universe map[string]struct{}) float64 {
	if len(universe) == 0 {
		return 1
	}
	n := 0
	for k := range universe {
		if _, ok := have[k]; ok {
			n++
		}
	}
	return float64(n) / float64(len(universe))
}

// Scores is the per-peer summary of asset overlap computed at
// connection time.
type Scores struct {
	OfficialKartFraction float64
	OfficialMapFraction  float64
	AddonKarts           int
	AddonTracks          int
	AddonArenas          int
	AddonSoccers         int
}

// Compute intersects a connecting peer's declared karts/maps against
// the server's universes.
func (m *Manager) Compute(clientKarts, clientMaps []string) Scores {
	return Scores{
		OfficialKartFraction: fraction(intersect(m.OfficialKarts, clientKarts), m.OfficialKarts),
		OfficialMapFraction:  fraction(intersect(m.OfficialMaps, clientMaps), m.OfficialMaps),
		AddonKarts:           len(intersect(m.AddonKarts, clientKarts)),
		AddonTracks:          len(intersect(m.AddonMaps, clientMaps)),
		AddonArenas:          len(intersect(m.AddonArenas, clientMaps)),
		AddonSoccers:         len(intersect(m.AddonSoccers, clientMaps)),
	}
}

// ErrNoCommonKarts / ErrNoCommonMaps / ErrMissingMustHave signal a
// hard join-admission failure.
var (
	ErrNoCommonKarts    = errors.New("no karts in common with server")
	ErrNoCommonMaps     = errors.New("no maps in common with server")
	ErrMissingMustHave  = errors.New("missing a must-have map")
	ErrBelowJoinThresh  = errors.New("below join threshold")
)

// CheckJoin runs every join-admission predicate and returns the first
// failing one, or nil if the peer may connect.
func (m *Manager) CheckJoin(clientKarts, clientMaps []string) error {
	if len(intersect(m.OfficialKarts, clientKarts))+len(intersect(m.AddonKarts, clientKarts)) == 0 {
		return ErrNoCommonKarts
	}
	if len(intersect(m.OfficialMaps, clientMaps))+len(intersect(m.AddonMaps, clientMaps)) == 0 {
		return ErrNoCommonMaps
	}
	s := m.Compute(clientKarts, clientMaps)
	if s.OfficialKartFraction < m.Thresholds.OfficialKartsJoin {
		return errors.Wrap(ErrBelowJoinThresh, "official karts")
	}
	if s.OfficialMapFraction < m.Thresholds.OfficialTracksJoin {
		return errors.Wrap(ErrBelowJoinThresh, "official tracks")
	}
	if s.AddonKarts < m.Thresholds.AddonKartsJoin {
		return errors.Wrap(ErrBelowJoinThresh, "addon karts")
	}
	if s.AddonTracks < m.Thresholds.AddonTracksJoin {
		return errors.Wrap(ErrBelowJoinThresh, "addon tracks")
	}
	if s.AddonArenas < m.Thresholds.AddonArenasJoin {
		return errors.Wrap(ErrBelowJoinThresh, "addon arenas")
	}
	if s.AddonSoccers < m.Thresholds.AddonSoccersJoin {
		return errors.Wrap(ErrBelowJoinThresh, "addon soccers")
	}
	have := intersect(m.OfficialMaps, clientMaps)
	haveAddon := intersect(m.AddonMaps, clientMaps)
	for must := range m.MustHaveMaps {
		_, ok1 := have[must]
		_, ok2 := haveAddon[must]
		if !ok1 && !ok2 {
			return errors.Wrapf(ErrMissingMustHave, "%s", must)
		}
	}
	return nil
}

// CanPlay applies the stricter play-thresholds: a peer failing one of
// these still connects, but as a forced spectator.
func (m *Manager) CanPlay(clientKarts, clientMaps []string) bool {
	s := m.Compute(clientKarts, clientMaps)
	th := m.Thresholds
	return s.OfficialKartFraction >= th.OfficialKartsPlay &&
		s.OfficialMapFraction >= th.OfficialTracksPlay &&
		s.AddonKarts >= th.AddonKartsPlay &&
		s.AddonTracks >= th.AddonTracksPlay &&
		s.AddonArenas >= th.AddonArenasPlay &&
		s.AddonSoccers >= th.AddonSoccersPlay
}

// AvailableMapsForMode filters the combined map universe down to what
// a given mode can use: race excludes arenas/soccers, CTF requires
// CTF-flagged tracks, etc.
func (m *Manager) AvailableMapsForMode(mode Mode) []string {
	all := map[string]struct{}{}
	for k := range m.OfficialMaps {
		all[k] = struct{}{}
	}
	for k := range m.AddonMaps {
		all[k] = struct{}{}
	}
	var out []string
	for k := range all {
		switch mode {
		case ModeRace, ModeTimeTrial:
			if _, arena := m.ArenaMaps[k]; arena {
				continue
			}
			if _, soccer := m.SoccerMaps[k]; soccer {
				continue
			}
		case ModeCTF:
			if _, ok := m.CTFMaps[k]; !ok {
				continue
			}
		case ModeSoccer:
			if _, ok := m.SoccerMaps[k]; !ok {
				continue
			}
		case ModeFFA:
			if _, ok := m.ArenaMaps[k]; !ok {
				continue
			}
		}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RandomAvailableMap picks uniformly among the maps available for
// mode; used for the "no votes cast" fallback.
func (m *Manager) RandomAvailableMap(mode Mode) (string, bool) {
	avail := m.AvailableMapsForMode(mode)
	if len(avail) == 0 {
		return "", false
	}
	return avail[rand.IntN(len(avail))], true
}

// SuggestNearMiss implements the set-typo-fixer supplemented feature
// (original_source utils/set_typo_fixer.cpp/hpp): given a misspelled
// track/kart name and the candidate universe, return the closest match
// by Levenshtein distance, or "" if nothing is close enough.
func SuggestNearMiss(input string, universe map[string]struct{}) string {
	best := ""
	bestDist := -1
	const maxAcceptableDistance = 3
	for cand := range universe {
		d := levenshtein(input, cand)
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = cand
		}
	}
	if bestDist < 0 || bestDist > maxAcceptableDistance {
		return ""
	}
	return best
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			min := del
			if ins < min {
				min = ins
			}
			if sub < min {
				min = sub
			}
			cur[j] = min
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
