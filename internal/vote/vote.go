// Package vote implements the Vote Aggregator and Map Vote Handler:
// per-peer track/laps/reverse ballots during a bounded voting window,
// resolved by a pluggable algorithm and coerced through server
// restrictions before becoming the match's default vote.
package vote

import (
	"math/rand/v2"
	"sort"
	"time"
)

// PeerVote is one peer's ballot, grounded on original_source
// network/peer_vote.hpp.
type PeerVote struct {
	PlayerName string
	TrackName  string
	NumLaps    uint8
	Reverse    bool
	CastAt     time.Time
}

// Algorithm selects the Map Vote Handler's resolution strategy,
// grounded on original_source utils/map_vote_handler.cpp/hpp.
type Algorithm int

const (
	AlgorithmStandard Algorithm = iota
	AlgorithmRandom
	AlgorithmAdvanced
)

// Aggregator collects per-peer votes during the SELECTING window.
type Aggregator struct {
	Algorithm Algorithm
	votes     map[uint32]PeerVote
}

func NewAggregator(algo Algorithm) *Aggregator {
	return &Aggregator{Algorithm: algo, votes: map[uint32]PeerVote{}}
}

// CastVote keeps only the most recent ballot per peer.
func (a *Aggregator) CastVote(hostID uint32, v PeerVote) {
	a.votes[hostID] = v
}

// Clear drops every recorded vote (called on entering a new SELECTING
// window).
func (a *Aggregator) Clear() {
	a.votes = map[uint32]PeerVote{}
}

// Count returns the number of distinct peers who have voted.
func (a *Aggregator) Count() int {
	return len(a.votes)
}

// Restrictions is the LobbySettings coercion layer applied to the
// resolved winner before it becomes the default vote.
type Restrictions struct {
	FixedDirection  *bool // non-nil forces Reverse to this value
	FixedLaps       *uint8
	LapsMultiplier  uint8 // if >0 and FixedLaps is nil, laps are rounded to a multiple of this
	MinLaps         uint8
	MaxLaps         uint8
	TrackSupportsReverse func(track string) bool
}

func (r Restrictions) apply(v PeerVote) PeerVote {
	if r.FixedDirection != nil {
		v.Reverse = *r.FixedDirection
	}
	if r.TrackSupportsReverse != nil && !r.TrackSupportsReverse(v.TrackName) {
		v.Reverse = false
	}
	switch {
	case r.FixedLaps != nil:
		v.NumLaps = *r.FixedLaps
	case r.LapsMultiplier > 0:
		rem := v.NumLaps % r.LapsMultiplier
		if rem != 0 {
			v.NumLaps += r.LapsMultiplier - rem
		}
	}
	if r.MinLaps > 0 && v.NumLaps < r.MinLaps {
		v.NumLaps = r.MinLaps
	}
	if r.MaxLaps > 0 && v.NumLaps > r.MaxLaps {
		v.NumLaps = r.MaxLaps
	}
	return v
}

// Resolve runs the configured algorithm over the current ballots and
// applies restrictions. randomMap backs the "no votes cast" fallback.
func (a *Aggregator) Resolve(restrictions Restrictions, randomMap func() string) (winner PeerVote, winnerHostID uint32, ok bool) {
	if len(a.votes) == 0 {
		if randomMap == nil {
			return PeerVote{}, 0, false
		}
		v := PeerVote{TrackName: randomMap(), NumLaps: 1}
		return restrictions.apply(v), 0, true
	}

	switch a.Algorithm {
	case AlgorithmRandom:
		return a.resolveRandom(restrictions)
	case AlgorithmAdvanced:
		// Reserved for extension; falls back to Standard when
		// unconfigured.
		return a.resolveStandard(restrictions)
	default:
		return a.resolveStandard(restrictions)
	}
}

func (a *Aggregator) resolveRandom(restrictions Restrictions) (PeerVote, uint32, bool) {
	ids := a.sortedHostIDs()
	pick := ids[rand.IntN(len(ids))]
	return restrictions.apply(a.votes[pick]), pick, true
}

func (a *Aggregator) sortedHostIDs() []uint32 {
	ids := make([]uint32, 0, len(a.votes))
	for id := range a.votes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// resolveStandard implements the Standard algorithm: majority track
// wins (a tie in track counts goes to the alphabetically first name);
// among that track's votes, majority (laps, reverse) wins, with ties
// between pairs broken by earliest CastAt.
func (a *Aggregator) resolveStandard(restrictions Restrictions) (PeerVote, uint32, bool) {
	trackCounts := map[string]int{}
	for _, v := range a.votes {
		trackCounts[v.TrackName]++
	}
	winningTrack := majorityKey(trackCounts)

	type paramKey struct {
		laps    uint8
		reverse bool
	}
	paramCounts := map[paramKey]int{}
	earliest := map[paramKey]time.Time{}
	earliestHost := map[paramKey]uint32{}
	earliestVote := map[paramKey]PeerVote{}

	for id, v := range a.votes {
		if v.TrackName != winningTrack {
			continue
		}
		k := paramKey{v.NumLaps, v.Reverse}
		paramCounts[k]++
		if t, seen := earliest[k]; !seen || v.CastAt.Before(t) {
			earliest[k] = v.CastAt
			earliestHost[k] = id
			earliestVote[k] = v
		}
	}

	var bestKey paramKey
	bestCount := -1
	var bestTime time.Time
	first := true
	for k, c := range paramCounts {
		t := earliest[k]
		if first || c > bestCount || (c == bestCount && t.Before(bestTime)) {
			bestKey, bestCount, bestTime, first = k, c, t, false
		}
	}

	winner := earliestVote[bestKey]
	return restrictions.apply(winner), earliestHost[bestKey], true
}

func majorityKey(counts map[string]int) string {
	best := ""
	bestCount := -1
	names := make([]string, 0, len(counts))
	for k := range counts {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		if counts[name] > bestCount {
			best, bestCount = name, counts[name]
		}
	}
	return best
}
