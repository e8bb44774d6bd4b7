package lobby

import "sort"

// InfiniteTime stands in for a kart that did not finish (or was never
// a participant) when ranking elimination order, grounded on
// original_source utils/kart_elimination.cpp's KartElimination::INF_TIME.
const InfiniteTime = 1e9

// Elimination implements the "Gnu Elimination" supplemented feature
// (original_source utils/kart_elimination.cpp/hpp): after each race,
// the slowest remaining participant (or every remaining participant
// who did not finish) is eliminated, until one winner remains.
type Elimination struct {
	enabled      bool
	kart         string
	remained     int // -1 means "not yet seeded from the first race"
	participants []string
}

// NewElimination returns a disabled Elimination component.
func NewElimination() *Elimination {
	return &Elimination{}
}

// Enable starts a new elimination run using kart as the forced kart.
func (e *Elimination) Enable(kart string) {
	e.enabled = true
	e.kart = kart
	e.remained = -1
	e.participants = nil
}

// Disable turns elimination off and clears standings.
func (e *Elimination) Disable() {
	e.enabled = false
	e.kart = ""
	e.remained = 0
	e.participants = nil
}

// IsEnabled reports whether an elimination run is in progress.
func (e *Elimination) IsEnabled() bool { return e.enabled }

// Kart returns the forced kart name for the current run.
func (e *Elimination) Kart() string { return e.kart }

// IsEliminated reports whether username has already been eliminated.
func (e *Elimination) IsEliminated(username string) bool {
	if !e.enabled || e.remained < 0 {
		return false
	}
	for i := 0; i < e.remained; i++ {
		if e.participants[i] == username {
			return false
		}
	}
	return true
}

// RemainingParticipants returns the set of usernames still in the run.
func (e *Elimination) RemainingParticipants() map[string]struct{} {
	out := map[string]struct{}{}
	if !e.enabled {
		return out
	}
	for i := 0; i < e.remained; i++ {
		out[e.participants[i]] = struct{}{}
	}
	return out
}

// OnRaceFinished applies one race's per-player times to the standings,
// seeding the participant list from the first race if needed, and
// eliminating the slowest finisher(s) (original's onRaceFinished).
// times maps username to race time; a remaining participant missing
// from times is given InfiniteTime (did not finish).
func (e *Elimination) OnRaceFinished(times map[string]float64) []string {
	if !e.enabled || e.remained == 0 {
		return nil
	}

	if e.remained < 0 {
		e.remained = len(times)
		for name := range times {
			e.participants = append(e.participants, name)
		}
		sort.Strings(e.participants)
	}

	for i := 0; i < e.remained; i++ {
		if _, ok := times[e.participants[i]]; !ok {
			times[e.participants[i]] = InfiniteTime
		}
	}

	active := append([]string(nil), e.participants[:e.remained]...)
	sort.SliceStable(active, func(i, j int) bool { return times[active[i]] < times[active[j]] })
	copy(e.participants, active)

	var eliminated []string
	e.remained--
	eliminated = append(eliminated, e.participants[e.remained])
	for e.remained-1 >= 0 && times[e.participants[e.remained-1]] == InfiniteTime {
		e.remained--
		eliminated = append(eliminated, e.participants[e.remained])
	}

	if e.remained <= 1 {
		e.enabled = false
	}
	return eliminated
}

// Winner returns the last remaining participant once the run has
// concluded (remained <= 1), or "" if still running or never started.
func (e *Elimination) Winner() string {
	if e.remained != 1 || len(e.participants) == 0 {
		return ""
	}
	return e.participants[0]
}
