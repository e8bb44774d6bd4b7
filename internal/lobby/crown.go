package lobby

import (
	"stklobby/internal/crown"
	"stklobby/internal/session"
)

// candidatesLocked builds the crown.Candidate view of every connected
// peer; caller must hold l.mu.
func (l *Lobby) candidatesLocked() []crown.Candidate {
	peers := l.Sessions.All()
	out := make([]crown.Candidate, 0, len(peers))
	for _, p := range peers {
		out = append(out, l.candidateFor(p))
	}
	return out
}

func (l *Lobby) candidateFor(p *session.PeerSession) crown.Candidate {
	canPlay := true
	if l.Assets != nil {
		karts := keysOf(p.DeclaredKarts)
		maps := keysOf(p.DeclaredMaps)
		canPlay = l.Assets.CanPlay(karts, maps)
	}
	tournamentBlock := false
	if l.Tournament != nil {
		tournamentBlock = !l.Tournament.CanPlay(p.MainProfileNameOr(""))
	}
	return crown.Candidate{
		HostID:          p.HostID,
		Validated:       p.IsValidated(),
		AlwaysSpectate:  p.Spectator,
		SlotBooked:      p.SlotBooked,
		RejoinTime:      p.RejoinTime,
		ProfileCount:    max(1, len(p.Profiles)),
		TournamentBlock: tournamentBlock,
		CanPlayAssets:   canPlay,
	}
}

func keysOf(s map[string]struct{}) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// crownHostIDLocked resolves who currently holds the crown; caller
// must hold l.mu.
func (l *Lobby) crownHostIDLocked() (uint32, bool) {
	c, ok := crown.Crown(l.candidatesLocked())
	if !ok {
		return 0, false
	}
	return c.HostID, true
}

// RefreshSpectatorsByLimit recomputes the crown manager's
// spectators-by-limit set for the configured mode; call whenever the
// connected population changes.
func (l *Lobby) RefreshSpectatorsByLimit() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Crown.ComputeSpectatorsByLimit(l.candidatesLocked(), l.cfg.Mode)
}
