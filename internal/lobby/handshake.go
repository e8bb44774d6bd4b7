package lobby

import (
	"net"
	"time"

	"stklobby/internal/packet"
	"stklobby/internal/session"
	"stklobby/internal/storage"
)

// AdmissionResult is the outcome of a connection handshake attempt.
type AdmissionResult struct {
	Accepted *packet.ConnectionAccepted
	Refused  *packet.ConnectionRefused
	Peer     *session.PeerSession // non-nil iff Accepted != nil
}

// MinSupportedProtocolVersion is the oldest client protocol version
// this server still accepts.
const MinSupportedProtocolVersion = 1

// HandleConnectionRequested runs the full connection handshake: version
// check, then the admission order (ban lists, server-full, password,
// assets threshold), host_id assignment, and the updated player list
// broadcast. ipv4/ipv6 are the peer's resolved addresses, supplied by
// the transport layer, an external collaborator.
func (l *Lobby) HandleConnectionRequested(addr net.Addr, req *packet.ConnectionRequested, ipv4 uint32, ipv6 string) AdmissionResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	if req.ProtocolVersion < MinSupportedProtocolVersion {
		return AdmissionResult{Refused: &packet.ConnectionRefused{
			Reason: packet.RRIncompatibleData,
			Advice: "please update your client",
		}}
	}

	if reason, ok := l.checkBans(ipv4, ipv6, req.OnlineID); !ok {
		return AdmissionResult{Refused: &packet.ConnectionRefused{Reason: reason}}
	}

	if l.Sessions.Count() >= l.cfg.Server.MaxPlayers {
		return AdmissionResult{Refused: &packet.ConnectionRefused{Reason: packet.RRTooManyPlayers}}
	}

	if l.cfg.Server.Password != "" {
		if l.cfg.VerifyPassword == nil || !req.HasEncryptedPayload || !l.cfg.VerifyPassword(req.EncryptedPayload) {
			return AdmissionResult{Refused: &packet.ConnectionRefused{Reason: packet.RRWrongPassword}}
		}
	}

	if l.Assets != nil {
		if err := l.Assets.CheckJoin(req.DeclaredKarts, req.DeclaredMaps); err != nil {
			return AdmissionResult{Refused: &packet.ConnectionRefused{Reason: packet.RRInsufficientAssets}}
		}
	}

	peer := l.Sessions.Admit(addr)
	peer.Capabilities = toSet(req.Capabilities)
	peer.DeclaredKarts = toSet(req.DeclaredKarts)
	peer.DeclaredMaps = toSet(req.DeclaredMaps)
	if l.Assets != nil {
		scores := l.Assets.Compute(req.DeclaredKarts, req.DeclaredMaps)
		peer.AddonKarts = scores.AddonKarts
		peer.AddonTracks = scores.AddonTracks
		peer.AddonArenas = scores.AddonArenas
		peer.AddonSoccers = scores.AddonSoccers
	}
	peer.RejoinTime = time.Now()
	peer.MarkValidated()

	if l.store != nil {
		_ = l.store.RecordConnection(storage.ConnectionStat{
			HostID:          peer.HostID,
			IP:              ipv4,
			IPv6:            ipv6,
			OnlineID:        req.OnlineID,
			PlayerNum:       int(req.PlayerCount),
			AddonKartsCount: peer.AddonKarts, AddonTracksCount: peer.AddonTracks,
			AddonArenasCount: peer.AddonArenas, AddonSoccersCount: peer.AddonSoccers,
		})
	}

	accepted := &packet.ConnectionAccepted{
		HostID:             peer.HostID,
		ServerCapabilities: []string{"stk-lobby"},
		AutoStartTimer:     -1,
		StateFrequency:     1,
		ChatAllowed:        true,
		ReportsAllowed:     true,
	}

	l.publishAdminEvent("peer-joined", peer.MainProfileNameOr(""))
	l.broadcastPlayerListLocked()

	return AdmissionResult{Accepted: accepted, Peer: peer}
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, i := range items {
		out[i] = struct{}{}
	}
	return out
}

// checkBans runs the ban-list admission check; it is a no-op (always
// passes) when no storage backend is configured.
func (l *Lobby) checkBans(ipv4 uint32, ipv6 string, onlineID uint32) (packet.RefusalReason, bool) {
	if l.store == nil {
		return packet.RRNone, true
	}
	if bans, err := l.store.IPBansFor(ipv4); err == nil && len(bans) > 0 {
		return packet.RRBanned, false
	}
	if ipv6 != "" {
		if bans, err := l.store.IPv6BansFor(ipv6); err == nil && len(bans) > 0 {
			return packet.RRBanned, false
		}
	}
	if bans, err := l.store.OnlineIDBansFor(onlineID); err == nil && len(bans) > 0 {
		return packet.RRBanned, false
	}
	return packet.RRNone, true
}

// Disconnect removes hostID's session and notifies the rest of the
// lobby, mirroring ServerLobby's disconnect handling.
func (l *Lobby) Disconnect(hostID uint32, ping, packetLoss int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store != nil {
		_ = l.store.RecordDisconnect(hostID, uint32(ping), packetLoss)
	}
	l.Sessions.Remove(hostID)
	l.Chat.OnPeerDisconnect(hostID)
	l.publishAdminEvent("peer-left", "")
	l.broadcastPlayerListLocked()
}

// broadcastPlayerListLocked sends the updated player list to everyone;
// caller must hold l.mu.
func (l *Lobby) broadcastPlayerListLocked() {
	crowned, hasCrown := l.crownHostIDLocked()
	var entries []packet.PlayerListEntry
	for _, p := range l.Sessions.All() {
		entries = append(entries, packet.PlayerListEntry{
			HostID:      p.HostID,
			Username:    p.MainProfileNameOr(""),
			IsSpectator: p.Spectator,
			IsCrowned:   hasCrown && crowned == p.HostID,
		})
	}
	l.send.broadcast(&packet.PlayerList{Players: entries})
}
