package transport

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"stklobby/internal/config"
	"stklobby/internal/lobby"
	"stklobby/internal/packet"
	"stklobby/internal/vote"
)

func TestFrameRoundTripsThroughAPipe(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	msg := &packet.BackLobby{Reason: packet.BLRIdleKicked}
	done := make(chan error, 1)
	go func() { done <- writeFrame(client, msg) }()

	r := bufio.NewReader(server)
	msgType, body, err := readFrame(r)
	require.NoError(t, <-done)
	require.NoError(t, err)
	require.Equal(t, packet.MsgBackLobby, msgType)

	var got packet.BackLobby
	require.NoError(t, packet.Decode(prependType(msgType, body), &got))
	require.Equal(t, packet.BLRIdleKicked, got.Reason)
}

func TestHandleConnAcceptsAHandshakeOverAPipe(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	cfg := lobby.Config{
		Server:        config.Default(),
		VoteAlgorithm: vote.AlgorithmStandard,
	}
	cfg.Server.MaxPlayers = 8

	s := New(zerolog.Nop())
	s.Lobby = lobby.New(zerolog.Nop(), cfg, s.Sender(), nil, nil, nil, nil)

	go s.handleConn(server)

	req := &packet.ConnectionRequested{ProtocolVersion: lobby.MinSupportedProtocolVersion}
	require.NoError(t, writeFrame(client, req))

	r := bufio.NewReader(client)
	msgType, body, err := readFrame(r)
	require.NoError(t, err)
	require.Equal(t, packet.MsgConnectionAccepted, msgType)

	var accepted packet.ConnectionAccepted
	require.NoError(t, packet.Decode(prependType(msgType, body), &accepted))
	require.NotZero(t, accepted.HostID)
}

func TestReadFrameRejectsOversizedLengthPrefix(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		var lenPrefix [4]byte
		lenPrefix[0] = 0xFF
		client.Write(lenPrefix[:])
	}()

	r := bufio.NewReader(server)
	server.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := readFrame(r)
	require.Error(t, err)
}
