package lobby

import (
	"time"

	"stklobby/internal/packet"
)

// Tick drives every time-based transition the Lobby State Machine
// owns: idle-peer kicking, selection-deadline resolution, the
// deterministic race start, and reset advancement. The caller's main
// loop invokes this on a fixed cadence, mirroring ServerLobby's
// polling update.
func (l *Lobby) Tick(now time.Time) {
	l.kickIdlePeers(now)

	if l.VotingDeadlineElapsed(now) {
		l.ResolveSelection()
	}

	l.BeginRacing(now)

	if l.AllAcksReceivedOrTimedOut(now) {
		l.BeginReset()
	}

	l.AdvanceReset()
}

// kickIdlePeers disconnects peers that have exceeded the configured
// idle threshold; the in-lobby and in-race thresholds differ because
// an idle racer still occupies a kart slot the rest of the match
// depends on.
func (l *Lobby) kickIdlePeers(now time.Time) {
	threshold := time.Duration(l.cfg.Server.Timeouts.IdleSeconds * float64(time.Second))
	if racing := l.State().IsRacing(); racing {
		threshold = time.Duration(l.cfg.Server.Timeouts.KickIdlePlayerSeconds * float64(time.Second))
	}
	if threshold <= 0 {
		return
	}

	var toKick []uint32
	for _, p := range l.Sessions.All() {
		if p.IdleFor(now) >= threshold {
			toKick = append(toKick, p.HostID)
		}
	}
	for _, hostID := range toKick {
		l.send.send(hostID, &packet.BackLobby{Reason: packet.BLRIdleKicked})
		l.Disconnect(hostID, 0, 0)
	}
}
