package queue

import "strings"

// Queues holds the four map/kart sub-queues (one-time and cyclic, for
// both tracks and karts), mirroring LobbyQueues.
type Queues struct {
	onetimeTracks []Filter
	cyclicTracks  []Filter
	onetimeKarts  []Filter
	cyclicKarts   []Filter
}

// NewQueues returns an empty Queues.
func NewQueues() *Queues {
	return &Queues{}
}

// SplitQuoted splits input on sep, except inside matching open/close
// delimiters (e.g. "{...}"), allowing escape with backslash. Mirrors
// StringUtils::splitQuoted's role in loadTracksQueueFromConfig.
func SplitQuoted(input string, sep, open, closeCh byte) []string {
	var out []string
	var cur strings.Builder
	depth := 0
	escaped := false
	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case escaped:
			cur.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == open:
			depth++
		case c == closeCh:
			if depth > 0 {
				depth--
			}
		case c == sep && depth == 0:
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// LoadTracksFromConfig rebuilds every sub-queue from the configured
// order strings, mirroring LobbyQueues::loadTracksQueueFromConfig.
// cyclicTracksOrder/cyclicKartsOrder are appended after a placeholder
// is seeded for each one-time entry, so the cyclic queue only starts
// repeating once the one-time entries are exhausted.
func (q *Queues) LoadTracksFromConfig(tracksOrder, cyclicTracksOrder, kartsOrder, cyclicKartsOrder string) {
	q.onetimeTracks = nil
	q.cyclicTracks = nil
	q.onetimeKarts = nil
	q.cyclicKarts = nil

	for _, s := range SplitQuoted(tracksOrder, ' ', '{', '}') {
		q.onetimeTracks = append(q.onetimeTracks, NewTrackFilter(s))
		q.cyclicTracks = append(q.cyclicTracks, NewTrackFilter(PlaceholderString))
	}
	for _, s := range SplitQuoted(cyclicTracksOrder, ' ', '{', '}') {
		q.cyclicTracks = append(q.cyclicTracks, NewTrackFilter(s))
	}

	for _, s := range SplitQuoted(kartsOrder, ' ', '{', '}') {
		q.onetimeKarts = append(q.onetimeKarts, NewKartFilter(s))
		q.cyclicKarts = append(q.cyclicKarts, NewKartFilter(PlaceholderString))
	}
	for _, s := range SplitQuoted(cyclicKartsOrder, ' ', '{', '}') {
		q.cyclicKarts = append(q.cyclicKarts, NewKartFilter(s))
	}
}

// PopOnRaceFinished advances every sub-queue by one race, mirroring
// LobbyQueues::popOnRaceFinished: one-time queues simply drop their
// front entry; cyclic queues re-enqueue their front entry at the back
// unless it was a placeholder.
func (q *Queues) PopOnRaceFinished() {
	if len(q.onetimeTracks) > 0 {
		q.onetimeTracks = q.onetimeTracks[1:]
	}
	q.cyclicTracks = cycleOnce(q.cyclicTracks)

	if len(q.onetimeKarts) > 0 {
		q.onetimeKarts = q.onetimeKarts[1:]
	}
	q.cyclicKarts = cycleOnce(q.cyclicKarts)
}

func cycleOnce(queue []Filter) []Filter {
	if len(queue) == 0 {
		return queue
	}
	front := queue[0]
	rest := queue[1:]
	if front.IsPlaceholder() {
		return rest
	}
	return append(rest, front)
}

// ResetToDefaultSettings clears sub-queues not named in preserved,
// mirroring LobbyQueues::resetToDefaultSettings. Keys: "queue",
// "qcyclic", "kqueue", "kcyclic".
func (q *Queues) ResetToDefaultSettings(preserved map[string]struct{}) {
	if _, ok := preserved["queue"]; !ok {
		q.onetimeTracks = nil
	}
	if _, ok := preserved["qcyclic"]; !ok {
		q.cyclicTracks = nil
	}
	if _, ok := preserved["kqueue"]; !ok {
		q.onetimeKarts = nil
	}
	if _, ok := preserved["kcyclic"]; !ok {
		q.cyclicKarts = nil
	}
}

// ApplyFrontMapFilters narrows ctx by the front of both track
// sub-queues, mirroring LobbyQueues::applyFrontMapFilters.
func (q *Queues) ApplyFrontMapFilters(ctx *Context) {
	if len(q.onetimeTracks) > 0 {
		q.onetimeTracks[0].Apply(ctx)
	}
	if len(q.cyclicTracks) > 0 {
		q.cyclicTracks[0].Apply(ctx)
	}
}

// ApplyFrontKartFilters narrows ctx by the front of both kart
// sub-queues, mirroring LobbyQueues::applyFrontKartFilters.
func (q *Queues) ApplyFrontKartFilters(ctx *Context) {
	if len(q.onetimeKarts) > 0 {
		q.onetimeKarts[0].Apply(ctx)
	}
	if len(q.cyclicKarts) > 0 {
		q.cyclicKarts[0].Apply(ctx)
	}
}

// AreKartFiltersIgnoringKarts reports whether the active kart filter
// overrides player kart selection entirely, mirroring
// LobbyQueues::areKartFiltersIgnoringKarts.
func (q *Queues) AreKartFiltersIgnoringKarts() bool {
	if len(q.onetimeKarts) > 0 && q.onetimeKarts[0].IgnoresPlayersInput() {
		return true
	}
	if len(q.cyclicKarts) > 0 && q.cyclicKarts[0].IgnoresPlayersInput() {
		return true
	}
	return false
}

// OnetimeTracksQueue, CyclicTracksQueue, OnetimeKartsQueue, and
// CyclicKartsQueue expose the raw sub-queues for admin/status display.
func (q *Queues) OnetimeTracksQueue() []Filter { return q.onetimeTracks }
func (q *Queues) CyclicTracksQueue() []Filter  { return q.cyclicTracks }
func (q *Queues) OnetimeKartsQueue() []Filter  { return q.onetimeKarts }
func (q *Queues) CyclicKartsQueue() []Filter   { return q.cyclicKarts }
