package lobby

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"stklobby/internal/assets"
	"stklobby/internal/config"
	"stklobby/internal/packet"
	"stklobby/internal/vote"
)

// recordingSender captures every packet sent/broadcast for assertions,
// mirroring how the teacher's tests observe channel fan-out.
type recordingSender struct {
	sent      []packet.Encoder
	broadcast []packet.Encoder
}

func newRecordingSender() (*recordingSender, Sender) {
	rs := &recordingSender{}
	return rs, Sender{
		Send:      func(hostID uint32, msg packet.Encoder) { rs.sent = append(rs.sent, msg) },
		Broadcast: func(msg packet.Encoder, exclude ...uint32) { rs.broadcast = append(rs.broadcast, msg) },
	}
}

func newTestLobby(t *testing.T) (*Lobby, *recordingSender) {
	t.Helper()
	rs, sender := newRecordingSender()
	cfg := Config{
		Server:        config.Default(),
		Mode:          assets.ModeRace,
		VoteAlgorithm: vote.AlgorithmStandard,
	}
	cfg.Server.MaxPlayers = 8
	// A nil Assets manager means "no asset catalogue configured"; the
	// handshake and crown candidate checks both treat that as
	// unconditional pass, which keeps these tests focused on lobby
	// state-machine behavior rather than asset-threshold arithmetic.
	l := New(zerolog.Nop(), cfg, sender, nil, nil, nil, nil)
	return l, rs
}

func TestStateStringAndPredicates(t *testing.T) {
	require.Equal(t, "LOAD_WORLD", LoadWorld.String())
	require.True(t, LoadWorld.IsWorldPicked())
	require.False(t, Selecting.IsWorldPicked())
	require.True(t, Racing.IsRacing())
	require.False(t, WaitForWorldLoaded.IsRacing())
	require.True(t, ResultDisplay.IsWorldFinished())
	require.False(t, WaitForRaceStopped.IsWorldFinished())
}

func TestHandshakeRejectsIncompatibleProtocolVersion(t *testing.T) {
	l, _ := newTestLobby(t)
	res := l.HandleConnectionRequested(&net.TCPAddr{}, &packet.ConnectionRequested{
		ProtocolVersion: 0,
	}, 0, "")
	require.Nil(t, res.Accepted)
	require.NotNil(t, res.Refused)
	require.Equal(t, packet.RRIncompatibleData, res.Refused.Reason)
}

func TestHandshakeRejectsWhenServerFull(t *testing.T) {
	l, _ := newTestLobby(t)
	l.cfg.Server.MaxPlayers = 1

	first := l.HandleConnectionRequested(&net.TCPAddr{}, &packet.ConnectionRequested{ProtocolVersion: MinSupportedProtocolVersion}, 0, "")
	require.NotNil(t, first.Accepted)

	second := l.HandleConnectionRequested(&net.TCPAddr{}, &packet.ConnectionRequested{ProtocolVersion: MinSupportedProtocolVersion}, 0, "")
	require.Nil(t, second.Accepted)
	require.Equal(t, packet.RRTooManyPlayers, second.Refused.Reason)
}

func TestHandshakeRejectsWrongPassword(t *testing.T) {
	l, _ := newTestLobby(t)
	l.cfg.Server.Password = "secret"
	l.cfg.VerifyPassword = func(payload []byte) bool { return string(payload) == "secret" }

	bad := l.HandleConnectionRequested(&net.TCPAddr{}, &packet.ConnectionRequested{
		ProtocolVersion: MinSupportedProtocolVersion, HasEncryptedPayload: true, EncryptedPayload: []byte("wrong"),
	}, 0, "")
	require.Nil(t, bad.Accepted)
	require.Equal(t, packet.RRWrongPassword, bad.Refused.Reason)

	good := l.HandleConnectionRequested(&net.TCPAddr{}, &packet.ConnectionRequested{
		ProtocolVersion: MinSupportedProtocolVersion, HasEncryptedPayload: true, EncryptedPayload: []byte("secret"),
	}, 0, "")
	require.NotNil(t, good.Accepted)
}

func TestHandshakeAssignsMonotonicHostIDsAndBroadcastsPlayerList(t *testing.T) {
	l, rs := newTestLobby(t)
	a := l.HandleConnectionRequested(&net.TCPAddr{}, &packet.ConnectionRequested{ProtocolVersion: MinSupportedProtocolVersion}, 0, "")
	b := l.HandleConnectionRequested(&net.TCPAddr{}, &packet.ConnectionRequested{ProtocolVersion: MinSupportedProtocolVersion}, 0, "")
	require.Equal(t, uint32(0), a.Accepted.HostID)
	require.Equal(t, uint32(1), b.Accepted.HostID)
	require.Len(t, rs.broadcast, 2)
	_, ok := rs.broadcast[1].(*packet.PlayerList)
	require.True(t, ok)
}

func TestDisconnectRemovesPeerAndBroadcasts(t *testing.T) {
	l, rs := newTestLobby(t)
	a := l.HandleConnectionRequested(&net.TCPAddr{}, &packet.ConnectionRequested{ProtocolVersion: MinSupportedProtocolVersion}, 0, "")
	rs.broadcast = nil

	l.Disconnect(a.Accepted.HostID, 0, 0)
	require.Equal(t, 0, l.Sessions.Count())
	require.Len(t, rs.broadcast, 1)
}

func TestRequestStartSelectionRequiresCrownHolder(t *testing.T) {
	l, _ := newTestLobby(t)
	a := l.HandleConnectionRequested(&net.TCPAddr{}, &packet.ConnectionRequested{ProtocolVersion: MinSupportedProtocolVersion}, 0, "")
	l.HandleConnectionRequested(&net.TCPAddr{}, &packet.ConnectionRequested{ProtocolVersion: MinSupportedProtocolVersion}, 0, "")

	crowned, ok := l.crownHostIDForTest()
	require.True(t, ok)

	nonCrowned := a.Accepted.HostID
	if crowned == a.Accepted.HostID {
		nonCrowned = 1
	}
	err := l.RequestStartSelection(nonCrowned)
	require.ErrorIs(t, err, ErrNotCrowned)

	require.NoError(t, l.RequestStartSelection(crowned))
	require.Equal(t, Selecting, l.State())
}

// crownHostIDForTest exposes crownHostIDLocked under the test's
// own lock acquisition, since the production method assumes the
// caller already holds l.mu.
func (l *Lobby) crownHostIDForTest() (uint32, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.crownHostIDLocked()
}

func TestVoteResolutionTransitionsToLoadWorldThenWaitForWorldLoaded(t *testing.T) {
	l, rs := newTestLobby(t)
	a := l.HandleConnectionRequested(&net.TCPAddr{}, &packet.ConnectionRequested{ProtocolVersion: MinSupportedProtocolVersion}, 0, "")
	require.NoError(t, l.RequestStartSelection(a.Accepted.HostID))

	l.HandleVoteRequest(a.Accepted.HostID, &packet.VoteRequest{Track: "zengarden", Laps: 3})
	l.ResolveSelection()

	require.Equal(t, WaitForWorldLoaded, l.State())
	found := false
	for _, msg := range rs.broadcast {
		if lw, ok := msg.(*packet.LoadWorld); ok {
			require.Equal(t, "zengarden", lw.Track)
			found = true
		}
	}
	require.True(t, found, "expected a LoadWorld broadcast")
}

func TestWorldLoadedAckTriggersStartGameOnceAllAck(t *testing.T) {
	l, rs := newTestLobby(t)
	a := l.HandleConnectionRequested(&net.TCPAddr{}, &packet.ConnectionRequested{ProtocolVersion: MinSupportedProtocolVersion}, 0, "")
	require.NoError(t, l.RequestStartSelection(a.Accepted.HostID))
	l.HandleVoteRequest(a.Accepted.HostID, &packet.VoteRequest{Track: "zengarden", Laps: 1})
	l.ResolveSelection()

	l.HandleWorldLoaded(a.Accepted.HostID, &packet.WorldLoaded{ClientRTTMillis: 40})

	require.Equal(t, WaitForRaceStarted, l.State())
	var gotStart bool
	for _, msg := range rs.broadcast {
		if _, ok := msg.(*packet.StartGame); ok {
			gotStart = true
		}
	}
	require.True(t, gotStart)
}

func TestBeginRacingWaitsForScheduledStartTime(t *testing.T) {
	l, _ := newTestLobby(t)
	a := l.HandleConnectionRequested(&net.TCPAddr{}, &packet.ConnectionRequested{ProtocolVersion: MinSupportedProtocolVersion}, 0, "")
	require.NoError(t, l.RequestStartSelection(a.Accepted.HostID))
	l.HandleVoteRequest(a.Accepted.HostID, &packet.VoteRequest{Track: "zengarden", Laps: 1})
	l.ResolveSelection()
	l.HandleWorldLoaded(a.Accepted.HostID, &packet.WorldLoaded{})

	l.BeginRacing(time.Now())
	require.Equal(t, WaitForRaceStarted, l.State(), "should not start before T_start")

	l.BeginRacing(l.match.startTime.Add(time.Millisecond))
	require.Equal(t, Racing, l.State())
}

func TestFinishDetectionLastKartCrossedBroadcastsRaceFinished(t *testing.T) {
	l, rs := newTestLobby(t)
	a := l.HandleConnectionRequested(&net.TCPAddr{}, &packet.ConnectionRequested{ProtocolVersion: MinSupportedProtocolVersion}, 0, "")
	require.NoError(t, l.RequestStartSelection(a.Accepted.HostID))
	l.HandleVoteRequest(a.Accepted.HostID, &packet.VoteRequest{Track: "zengarden", Laps: 1})
	l.ResolveSelection()
	l.HandleWorldLoaded(a.Accepted.HostID, &packet.WorldLoaded{})
	l.BeginRacing(l.match.startTime.Add(time.Millisecond))

	l.ReportFinish(a.Accepted.HostID, 42.5, 14.1)
	crit := l.CheckFinish(time.Now(), 0, 0, 0, 0)

	require.Equal(t, FinishLastKartCrossed, crit)
	require.Equal(t, ResultDisplay, l.State())

	var rf *packet.RaceFinished
	for _, msg := range rs.broadcast {
		if m, ok := msg.(*packet.RaceFinished); ok {
			rf = m
		}
	}
	require.NotNil(t, rf)
	require.True(t, rf.HasFastestLap)
}

func TestResetIsTwoPhaseAndIdempotentWhenIdle(t *testing.T) {
	l, _ := newTestLobby(t)
	require.True(t, l.AdvanceReset(), "an already-idle lobby is trivially reset")
	require.Equal(t, WaitingForStartGame, l.State())

	a := l.HandleConnectionRequested(&net.TCPAddr{}, &packet.ConnectionRequested{ProtocolVersion: MinSupportedProtocolVersion}, 0, "")
	require.NoError(t, l.RequestStartSelection(a.Accepted.HostID))
	require.Equal(t, Selecting, l.State())

	l.BeginReset()
	require.Equal(t, ResetWaiting, l.ResetState())
	require.False(t, l.AdvanceReset())
	require.Equal(t, ResetAsync, l.ResetState())
	require.True(t, l.AdvanceReset())
	require.Equal(t, ResetNone, l.ResetState())
	require.Equal(t, WaitingForStartGame, l.State())
}

func TestLiveJoinRefusedWhenModeDoesNotSupportIt(t *testing.T) {
	l, rs := newTestLobby(t) // default cfg.Mode = ModeRace
	a := l.HandleConnectionRequested(&net.TCPAddr{}, &packet.ConnectionRequested{ProtocolVersion: MinSupportedProtocolVersion}, 0, "")
	l.state = Racing
	l.match = &matchState{playing: map[uint32]struct{}{}, startTime: time.Now()}

	l.HandleLiveJoinRequest(a.Accepted.HostID, &packet.LiveJoinRequest{})

	require.Len(t, rs.sent, 1)
	bl, ok := rs.sent[0].(*packet.BackLobby)
	require.True(t, ok)
	require.Equal(t, packet.BLRNoPlaceForLiveJoin, bl.Reason)
}

func TestLiveJoinAcceptedInSoccerMode(t *testing.T) {
	l, rs := newTestLobby(t)
	l.cfg.Mode = assets.ModeSoccer
	a := l.HandleConnectionRequested(&net.TCPAddr{}, &packet.ConnectionRequested{ProtocolVersion: MinSupportedProtocolVersion}, 0, "")
	l.state = Racing
	l.match = &matchState{playing: map[uint32]struct{}{}, startTime: time.Now().Add(-5 * time.Second)}

	l.HandleLiveJoinRequest(a.Accepted.HostID, &packet.LiveJoinRequest{})

	require.Len(t, rs.sent, 1)
	_, ok := rs.sent[0].(*packet.LiveJoin)
	require.True(t, ok)
	_, playing := l.match.playing[a.Accepted.HostID]
	require.True(t, playing)
}

func TestTickKicksIdlePeers(t *testing.T) {
	l, rs := newTestLobby(t)
	l.cfg.Server.Timeouts.IdleSeconds = 1
	a := l.HandleConnectionRequested(&net.TCPAddr{}, &packet.ConnectionRequested{ProtocolVersion: MinSupportedProtocolVersion}, 0, "")
	peer, _ := l.Sessions.Get(a.Accepted.HostID)
	peer.LastActivity = time.Now().Add(-time.Hour)
	rs.sent = nil

	l.Tick(time.Now())

	require.Equal(t, 0, l.Sessions.Count())
	require.Len(t, rs.sent, 1)
}
