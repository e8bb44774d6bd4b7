// Package session implements the PeerSession / PlayerProfile entities
// and the connection handshake state machine.
package session

import (
	"net"
	"sync"
	"time"
)

// State is a PeerSession's position in the handshake state machine.
type State int

const (
	StateIncoming State = iota
	StateHandshaking
	StateValidated
	StateActive
	StateSpectator
	StateWaitingForGame
	StateDisconnected
)

// Team is a kart's team assignment.
type Team int

const (
	TeamNone Team = iota
	TeamRed
	TeamBlue
)

// PlayerProfile is one split-screen profile bound to a PeerSession.
// The zeroth profile of a peer is its "main" profile.
type PlayerProfile struct {
	Name          string
	OnlineID      uint32 // 0 = offline
	LocalSubID    int
	DefaultColor  string
	KartTeam      Team
	TempTeamIndex int
	Handicap      int
	CountryCode   string
	KartName      string
	Score         int
	OverallTime   float64
}

// PeerSession is the per-connection record owned exclusively by the
// Lobby State Machine. Cyclic peer<->profile<->match references from
// the original are flattened here into an arena-friendly shape:
// callers hold a HostID, not a pointer, and re-resolve through the
// owning registry.
type PeerSession struct {
	mu sync.RWMutex

	HostID    uint32
	Address   net.Addr
	State     State
	Validated bool
	Spectator bool

	Capabilities  map[string]struct{}
	DeclaredKarts map[string]struct{}
	DeclaredMaps  map[string]struct{}
	AddonKarts    int
	AddonTracks   int
	AddonArenas   int
	AddonSoccers  int

	Profiles []*PlayerProfile

	MutedPeers map[uint32]struct{}

	PingMs          float64
	PacketLossPct   float64
	LastActivity    time.Time
	LastChat        time.Time
	ConsecutiveChat int

	// SlotBooked is true iff the peer was racing in the previous match
	// and has not left the server since.
	SlotBooked bool
	RejoinTime time.Time
}

// New creates an incoming PeerSession; it is not yet validated.
func New(hostID uint32, addr net.Addr) *PeerSession {
	return &PeerSession{
		HostID:        hostID,
		Address:       addr,
		State:         StateIncoming,
		Capabilities:  map[string]struct{}{},
		DeclaredKarts: map[string]struct{}{},
		DeclaredMaps:  map[string]struct{}{},
		MutedPeers:    map[uint32]struct{}{},
		LastActivity:  time.Now(),
	}
}

// MainProfile returns the peer's first (main) profile, or nil if none
// has been bound yet.
func (p *PeerSession) MainProfile() *PlayerProfile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.Profiles) == 0 {
		return nil
	}
	return p.Profiles[0]
}

// MainProfileNameOr returns the main profile's name, or fallback if no
// profile has been bound yet.
func (p *PeerSession) MainProfileNameOr(fallback string) string {
	if mp := p.MainProfile(); mp != nil {
		return mp.Name
	}
	return fallback
}

// AddProfile binds another split-screen profile to this peer.
func (p *PeerSession) AddProfile(profile *PlayerProfile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	profile.LocalSubID = len(p.Profiles)
	p.Profiles = append(p.Profiles, profile)
}

// UpdateLastActivity records inbound traffic, resetting the idle-kick
// clock.
func (p *PeerSession) UpdateLastActivity() {
	p.mu.Lock()
	p.LastActivity = time.Now()
	p.mu.Unlock()
}

// IdleFor reports how long the peer has been silent.
func (p *PeerSession) IdleFor(now time.Time) time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return now.Sub(p.LastActivity)
}

// MarkValidated transitions the peer past the handshake.
func (p *PeerSession) MarkValidated() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Validated = true
	p.State = StateValidated
}

// IsValidated reports whether the identity handshake completed; only
// validated peers may vote or race.
func (p *PeerSession) IsValidated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Validated
}

// Mute adds hostID to this peer's per-peer mute set.
func (p *PeerSession) Mute(hostID uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.MutedPeers[hostID] = struct{}{}
}

// Unmute removes hostID from the mute set.
func (p *PeerSession) Unmute(hostID uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.MutedPeers, hostID)
}

// IsMuting reports whether this peer is muting hostID.
func (p *PeerSession) IsMuting(hostID uint32) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.MutedPeers[hostID]
	return ok
}

// Registry is the arena of live PeerSessions, exclusively owned by the
// Lobby State Machine. HostIDs are monotonically assigned and never
// reused within a run.
type Registry struct {
	mu      sync.RWMutex
	peers   map[uint32]*PeerSession
	nextID  uint32
	maxEver uint32
}

// NewRegistry creates an empty registry; startID seeds the
// monotonically-increasing host_id counter from the persisted maximum,
// carried across runs to the maximum ever issued.
func NewRegistry(startID uint32) *Registry {
	return &Registry{peers: map[uint32]*PeerSession{}, nextID: startID, maxEver: startID}
}

// Admit allocates a fresh host_id and registers the session.
func (r *Registry) Admit(addr net.Addr) *PeerSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	if id > r.maxEver {
		r.maxEver = id
	}
	p := New(id, addr)
	r.peers[id] = p
	return p
}

// Remove deletes a peer from the registry (disconnect or reset-leave).
func (r *Registry) Remove(hostID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, hostID)
}

// Get resolves a host_id to its session, re-checking liveness for
// callers that hold only a non-owning handle.
func (r *Registry) Get(hostID uint32) (*PeerSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[hostID]
	return p, ok
}

// IsConnected reports whether hostID still has a live session.
func (r *Registry) IsConnected(hostID uint32) bool {
	_, ok := r.Get(hostID)
	return ok
}

// All returns a snapshot slice of all live peers, safe to range over
// without holding the registry lock.
func (r *Registry) All() []*PeerSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*PeerSession, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// Count returns the number of live peers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// MaxEverIssued returns the highest host_id ever handed out, for
// persistence across runs.
func (r *Registry) MaxEverIssued() uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maxEver
}
