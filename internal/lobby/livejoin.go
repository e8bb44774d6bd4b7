package lobby

import (
	"time"

	"stklobby/internal/assets"
	"stklobby/internal/packet"
)

// supportsLiveJoining reports whether mode allows a peer to join a
// race already in progress. Lapped modes require every kart present
// at the start to keep lap counting consistent; arena modes (FFA/CTF/
// Soccer) have no such constraint.
func supportsLiveJoining(mode assets.Mode) bool {
	switch mode {
	case assets.ModeFFA, assets.ModeCTF, assets.ModeSoccer:
		return true
	default:
		return false
	}
}

// HandleLiveJoinRequest honors a live-join attempt only while the
// world is active and the current mode supports it; otherwise it
// sends the peer back to the lobby.
func (l *Lobby) HandleLiveJoinRequest(hostID uint32, req *packet.LiveJoinRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()

	worldIsActive := l.state == Racing || l.state == WaitForRaceStarted
	if !worldIsActive || !supportsLiveJoining(l.cfg.Mode) || l.match == nil {
		l.send.send(hostID, &packet.BackLobby{Reason: packet.BLRNoPlaceForLiveJoin})
		return
	}

	peer, ok := l.Sessions.Get(hostID)
	if !ok {
		return
	}
	peer.Spectator = req.IsSpectator
	if !req.IsSpectator {
		l.match.playing[hostID] = struct{}{}
		if l.match.karts == nil {
			l.match.karts = map[uint32]*kartState{}
		}
		if _, ok := l.match.karts[hostID]; !ok {
			if karts := newMatchKarts(l.cfg.Server, map[uint32]struct{}{hostID: {}}); len(karts) == 1 {
				l.match.karts[hostID] = karts[hostID]
			}
		}
	}
	if l.match.liveJoined == nil {
		l.match.liveJoined = map[uint32]struct{}{}
	}
	l.match.liveJoined[hostID] = struct{}{}

	elapsed := float32(time.Since(l.match.startTime).Seconds())
	l.send.send(hostID, &packet.LiveJoin{
		ClientStartingTime:    0,
		LiveJoinStartTime:     elapsed,
		LastLiveJoinUtilTicks: int32(elapsed * 1000),
	})
	l.publishAdminEvent("live-join", peer.MainProfileNameOr(""))
	l.broadcastPlayerListLocked()
}
