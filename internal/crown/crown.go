// Package crown implements the Crown Manager: per-peer playability
// reason codes, the player-limit computation, and the deterministic
// crown-holder selection.
package crown

import (
	"sort"
	"time"

	"stklobby/internal/assets"
)

// Reason is a per-peer "why can't this peer play" code. HRNone means
// "can play".
type Reason int

const (
	HRNone Reason = iota
	HRAbsentPeer
	HRNotATournamentPlayer
	HRSpectatorByLimit
	HRLackingRequiredMaps
	HRAddonKartsPlayThreshold
	HRAddonTracksPlayThreshold
	HRAddonArenasPlayThreshold
	HRAddonSoccersPlayThreshold
	HROfficialKartsPlayThreshold
	HROfficialTracksPlayThreshold
	HRNoKartsAfterFilter
	HRNoMapsAfterFilter
)

// Mode caps the player limit per mode.
type ModeCap int

const (
	ModeCapNone ModeCap = 0
	ModeCapFFA  ModeCap = 10
	ModeCapCTF  ModeCap = 14
	ModeCapSoccer ModeCap = 14
)

// Candidate is the minimal view the Crown Manager needs of a peer;
// it never holds a pointer across calls, only values copied in by the
// caller, so a peer that disconnects mid-computation can't leave a
// dangling reference behind.
type Candidate struct {
	HostID          uint32
	Validated       bool
	IsAI            bool
	AlwaysSpectate  bool
	WaitingForGame  bool
	SlotBooked      bool
	RejoinTime      time.Time
	ProfileCount    int
	TournamentBlock bool // true if a tournament forbids this peer from playing
	CanPlayAssets   bool // result of assets.Manager.CanPlay for this peer
	NoKartsLeft     bool // true if the kart queue/filters left this peer with no kart
	NoMapsLeft      bool // true if the map queue/filters left no usable map
}

// Manager computes reason codes and the crown holder.
type Manager struct {
	ServerMaxPlayers     int
	CurrentMaxInGame     int // 0 = no additional cap
	spectatorsByLimit    map[uint32]struct{}
	whyCannotPlay        map[uint32]Reason
}

func New(serverMaxPlayers int) *Manager {
	return &Manager{
		ServerMaxPlayers:  serverMaxPlayers,
		spectatorsByLimit: map[uint32]struct{}{},
		whyCannotPlay:     map[uint32]Reason{},
	}
}

// PlayerLimit computes min(server_max_players, per_mode_cap).
func (m *Manager) PlayerLimit(mode assets.Mode) int {
	limit := m.ServerMaxPlayers
	if m.CurrentMaxInGame > 0 && m.CurrentMaxInGame < limit {
		limit = m.CurrentMaxInGame
	}
	var cap int
	switch mode {
	case assets.ModeFFA:
		cap = int(ModeCapFFA)
	case assets.ModeCTF:
		cap = int(ModeCapCTF)
	case assets.ModeSoccer:
		cap = int(ModeCapSoccer)
	default:
		cap = 0
	}
	if cap > 0 && cap < limit {
		limit = cap
	}
	return limit
}

// orderLess implements the deterministic crown ordering: slot-booked
// peers first, then ascending rejoin_time.
func orderLess(a, b Candidate) bool {
	if a.SlotBooked != b.SlotBooked {
		return a.SlotBooked
	}
	return a.RejoinTime.Before(b.RejoinTime)
}

// ComputeSpectatorsByLimit recomputes which validated, non-AI,
// non-waiting peers exceed the player limit for mode, in the
// deterministic crown order. It also records each excluded peer's
// reason code.
func (m *Manager) ComputeSpectatorsByLimit(candidates []Candidate, mode assets.Mode) {
	m.spectatorsByLimit = map[uint32]struct{}{}
	m.whyCannotPlay = map[uint32]Reason{}

	eligible := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.Validated || c.IsAI {
			continue
		}
		eligible = append(eligible, c)
	}
	sort.SliceStable(eligible, func(i, j int) bool { return orderLess(eligible[i], eligible[j]) })

	limit := m.PlayerLimit(mode)
	playerCount := 0
	for _, c := range eligible {
		if c.AlwaysSpectate || c.WaitingForGame {
			continue
		}
		reason := m.reasonFor(c)
		if reason != HRNone {
			m.whyCannotPlay[c.HostID] = reason
			m.spectatorsByLimit[c.HostID] = struct{}{}
			continue
		}
		playerCount += max(1, c.ProfileCount)
		if playerCount > limit {
			m.whyCannotPlay[c.HostID] = HRSpectatorByLimit
			m.spectatorsByLimit[c.HostID] = struct{}{}
		}
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (m *Manager) reasonFor(c Candidate) Reason {
	if c.ProfileCount == 0 {
		return HRAbsentPeer
	}
	if c.TournamentBlock {
		return HRNotATournamentPlayer
	}
	if c.NoMapsLeft {
		return HRNoMapsAfterFilter
	}
	if c.NoKartsLeft {
		return HRNoKartsAfterFilter
	}
	if !c.CanPlayAssets {
		return HROfficialTracksPlayThreshold
	}
	return HRNone
}

// CanRace reports whether hostID may play this match (HRNone reason).
func (m *Manager) CanRace(hostID uint32) bool {
	r, ok := m.whyCannotPlay[hostID]
	return !ok || r == HRNone
}

// Reason returns the recorded reason code for hostID, or HRNone.
func (m *Manager) Reason(hostID uint32) Reason {
	return m.whyCannotPlay[hostID]
}

// IsSpectatorByLimit reports whether hostID was excluded purely
// because the player limit was reached.
func (m *Manager) IsSpectatorByLimit(hostID uint32) bool {
	_, ok := m.spectatorsByLimit[hostID]
	return ok
}

// Crown picks the peer that would come first under the deterministic
// crown ordering, excluding peers in "command spectator" mode. Returns
// false if no eligible peer exists.
func Crown(candidates []Candidate) (Candidate, bool) {
	var eligible []Candidate
	for _, c := range candidates {
		if !c.Validated || c.IsAI || c.AlwaysSpectate {
			continue
		}
		eligible = append(eligible, c)
	}
	if len(eligible) == 0 {
		return Candidate{}, false
	}
	sort.SliceStable(eligible, func(i, j int) bool { return orderLess(eligible[i], eligible[j]) })
	return eligible[0], true
}
