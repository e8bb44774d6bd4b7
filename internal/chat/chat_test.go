package chat

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"stklobby/internal/team"
)

func newTestManager(interval float64) *Manager {
	return New(zerolog.Nop(), interval)
}

func TestValidatePrefixRejectsImpersonation(t *testing.T) {
	require.True(t, ValidatePrefix("alice", "alice: hello there"))
	require.False(t, ValidatePrefix("alice", "bob: hello there"))
	require.False(t, ValidatePrefix("alice", "hello there"))
}

func TestShouldReceiveBlocksUnvalidatedSender(t *testing.T) {
	m := newTestManager(0)
	teams := team.New()
	sender := Peer{HostID: 1, MainName: "alice", Validated: false}
	target := Peer{HostID: 2, MainName: "bob"}
	require.False(t, m.ShouldReceive(sender, target, teams, false))
}

func TestShouldReceiveHonoursMute(t *testing.T) {
	m := newTestManager(0)
	teams := team.New()
	sender := Peer{HostID: 1, MainName: "alice", Validated: true}
	target := Peer{HostID: 2, MainName: "bob", MutedBy: func(h uint32) bool { return h == 1 }}
	require.False(t, m.ShouldReceive(sender, target, teams, false))
}

func TestShouldReceiveTeamOnlyRestrictsToSameTeam(t *testing.T) {
	m := newTestManager(0)
	teams := team.New()
	teams.SetTeam("alice", team.ColorRed)
	teams.SetTeam("bob", team.ColorRed)
	teams.SetTeam("carol", team.ColorBlue)

	sender := Peer{HostID: 1, MainName: "alice", Validated: true}
	teammate := Peer{HostID: 2, MainName: "bob"}
	stranger := Peer{HostID: 3, MainName: "carol"}

	m.AddTeamSpeaker(1)
	require.True(t, m.ShouldReceive(sender, teammate, teams, false))
	require.False(t, m.ShouldReceive(sender, stranger, teams, false))

	m.RemoveTeamSpeaker(1)
	require.True(t, m.ShouldReceive(sender, stranger, teams, false))
}

func TestShouldReceiveRefereeBypassesTeamOnly(t *testing.T) {
	m := newTestManager(0)
	teams := team.New()
	teams.SetTeam("alice", team.ColorRed)
	teams.SetTeam("carol", team.ColorBlue)

	sender := Peer{HostID: 1, MainName: "alice", Validated: true}
	referee := Peer{HostID: 3, MainName: "carol"}

	m.AddTeamSpeaker(1)
	require.True(t, m.ShouldReceive(sender, referee, teams, true))
}

func TestShouldReceivePrivateWhitelistRestricts(t *testing.T) {
	m := newTestManager(0)
	teams := team.New()
	sender := Peer{HostID: 1, MainName: "alice", Validated: true}
	allowed := Peer{HostID: 2, MainName: "bob"}
	other := Peer{HostID: 3, MainName: "carol"}

	m.SetMessageReceiversFor(1, []string{"bob"})
	require.True(t, m.ShouldReceive(sender, allowed, teams, false))
	require.False(t, m.ShouldReceive(sender, other, teams, false))

	m.MakeChatPublicFor(1)
	require.True(t, m.ShouldReceive(sender, other, teams, false))
}

func TestShouldReceiveSeparatesWaitingAndRacingPeers(t *testing.T) {
	m := newTestManager(0)
	teams := team.New()
	sender := Peer{HostID: 1, MainName: "alice", Validated: true, WaitingForGame: true}
	racing := Peer{HostID: 2, MainName: "bob", WaitingForGame: false}
	waiting := Peer{HostID: 3, MainName: "carol", WaitingForGame: true}

	require.False(t, m.ShouldReceive(sender, racing, teams, false))
	require.True(t, m.ShouldReceive(sender, waiting, teams, false))
}

func TestCheckSpamDropsAfterHalfIntervalConsecutive(t *testing.T) {
	m := newTestManager(10)
	now := time.Now()

	require.Equal(t, SpamOK, m.CheckSpam(1, now))
	for i := 1; i < 5; i++ {
		now = now.Add(time.Second)
		m.CheckSpam(1, now)
	}
	now = now.Add(time.Second)
	require.Equal(t, SpamDropped, m.CheckSpam(1, now))
}

func TestCheckSpamResetsAfterGap(t *testing.T) {
	m := newTestManager(10)
	now := time.Now()
	m.CheckSpam(1, now)
	now = now.Add(20 * time.Second)
	require.Equal(t, SpamOK, m.CheckSpam(1, now))
}

func TestOnPeerDisconnectClearsState(t *testing.T) {
	m := newTestManager(5)
	m.SetMessageReceiversFor(1, []string{"bob"})
	m.AddTeamSpeaker(1)
	m.CheckSpam(1, time.Now())

	m.OnPeerDisconnect(1)

	_, hasWhitelist := m.messageReceivers[1]
	require.False(t, hasWhitelist)
	require.False(t, m.isTeamSpeaker(1))
}
