// Package chat implements the Chat Manager: message routing, per-peer
// mute lists, team-only speaking, private-chat recipient sets, and the
// anti-spam window.
package chat

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stklobby/internal/team"
)

// Peer is the minimal view of a peer the chat manager needs; it never
// retains a pointer across calls, only this plain snapshot.
type Peer struct {
	HostID          uint32
	MainName        string
	Validated       bool
	WaitingForGame  bool
	MutedBy         func(senderHostID uint32) bool
}

// Manager routes chat messages.
type Manager struct {
	log zerolog.Logger

	// AntiSpamInterval is the configured per-peer minimum gap, in
	// seconds, between messages (0 disables the check).
	AntiSpamInterval float64

	messageReceivers map[uint32]map[string]struct{} // hostID -> whitelist of names
	teamSpeakers     map[uint32]struct{}

	lastChat        map[uint32]time.Time
	consecutiveChat map[uint32]int
}

func New(log zerolog.Logger, antiSpamInterval float64) *Manager {
	return &Manager{
		log:              log,
		AntiSpamInterval: antiSpamInterval,
		messageReceivers: map[uint32]map[string]struct{}{},
		teamSpeakers:     map[uint32]struct{}{},
		lastChat:         map[uint32]time.Time{},
		consecutiveChat:  map[uint32]int{},
	}
}

// SetMessageReceiversFor sets sender's private-chat recipient
// whitelist (by profile name).
func (m *Manager) SetMessageReceiversFor(hostID uint32, names []string) {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	m.messageReceivers[hostID] = set
}

// MakeChatPublicFor clears sender's private-chat whitelist, so it
// reaches everyone again (subject to the other routing rules).
func (m *Manager) MakeChatPublicFor(hostID uint32) {
	delete(m.messageReceivers, hostID)
}

// AddTeamSpeaker marks hostID as speaking team-only from now on.
func (m *Manager) AddTeamSpeaker(hostID uint32) {
	m.teamSpeakers[hostID] = struct{}{}
}

// RemoveTeamSpeaker reverts hostID to public speaking.
func (m *Manager) RemoveTeamSpeaker(hostID uint32) {
	delete(m.teamSpeakers, hostID)
}

func (m *Manager) isTeamSpeaker(hostID uint32) bool {
	_, ok := m.teamSpeakers[hostID]
	return ok
}

// SpamResult is returned by CheckSpam.
type SpamResult int

const (
	SpamOK SpamResult = iota
	SpamDropped
)

// CheckSpam implements the anti-spam window. The threshold is
// deliberately count-vs-seconds/2, kept as-is to preserve the
// dimensionally odd original behaviour.
func (m *Manager) CheckSpam(hostID uint32, now time.Time) SpamResult {
	if m.AntiSpamInterval <= 0 {
		return SpamOK
	}
	last, seen := m.lastChat[hostID]
	gap := now.Sub(last).Seconds()
	if seen && gap < m.AntiSpamInterval {
		m.consecutiveChat[hostID]++
	} else {
		m.consecutiveChat[hostID] = 0
	}
	m.lastChat[hostID] = now

	if float64(m.consecutiveChat[hostID]) >= m.AntiSpamInterval/2 {
		m.log.Warn().Uint32("hostID", hostID).Msg("spam detected, dropping message")
		return SpamDropped
	}
	return SpamOK
}

// ValidatePrefix checks the anti-impersonation rule: the message must
// literally begin with "<mainName>: ".
func ValidatePrefix(mainName, text string) bool {
	return strings.HasPrefix(text, mainName+": ")
}

// ShouldReceive implements the full routing predicate: sender must be
// validated; cross-peer mutes always block; waiting-
// for-game and racing peers never bridge; team-only restricts to
// shared-team peers; a private-chat whitelist restricts to matching
// names.
func (m *Manager) ShouldReceive(sender, target Peer, teams *team.Manager, targetIsReferee bool) bool {
	if !sender.Validated {
		return false
	}
	if target.MutedBy != nil && target.MutedBy(sender.HostID) {
		return false
	}
	if sender.WaitingForGame != target.WaitingForGame {
		return false
	}
	if m.isTeamSpeaker(sender.HostID) {
		if !targetIsReferee && !teams.SameTeam(sender.MainName, target.MainName) {
			return false
		}
	}
	if whitelist, ok := m.messageReceivers[sender.HostID]; ok && len(whitelist) > 0 {
		if _, allowed := whitelist[target.MainName]; !allowed && target.HostID != sender.HostID {
			return false
		}
	}
	return true
}

// OnPeerDisconnect releases all chat-manager state for hostID.
func (m *Manager) OnPeerDisconnect(hostID uint32) {
	delete(m.messageReceivers, hostID)
	delete(m.teamSpeakers, hostID)
	delete(m.lastChat, hostID)
	delete(m.consecutiveChat, hostID)
}
