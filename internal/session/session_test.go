package session

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryAssignsMonotonicUniqueHostIDs(t *testing.T) {
	reg := NewRegistry(0)
	addr := &net.TCPAddr{}

	a := reg.Admit(addr)
	b := reg.Admit(addr)
	c := reg.Admit(addr)

	require.Equal(t, uint32(0), a.HostID)
	require.Equal(t, uint32(1), b.HostID)
	require.Equal(t, uint32(2), c.HostID)
	require.Equal(t, 3, reg.Count())
}

func TestHostIDsNeverReusedWithinARun(t *testing.T) {
	reg := NewRegistry(0)
	addr := &net.TCPAddr{}

	a := reg.Admit(addr)
	reg.Remove(a.HostID)
	b := reg.Admit(addr)

	require.NotEqual(t, a.HostID, b.HostID)
}

func TestOnlyValidatedPeersMayVoteInvariant(t *testing.T) {
	p := New(1, &net.TCPAddr{})
	require.False(t, p.IsValidated())
	p.MarkValidated()
	require.True(t, p.IsValidated())
}

func TestMuteUnmute(t *testing.T) {
	p := New(1, &net.TCPAddr{})
	require.False(t, p.IsMuting(5))
	p.Mute(5)
	require.True(t, p.IsMuting(5))
	p.Unmute(5)
	require.False(t, p.IsMuting(5))
}
