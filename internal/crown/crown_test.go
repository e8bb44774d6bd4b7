package crown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stklobby/internal/assets"
)

func TestCrownPrefersSlotBookedThenEarliestRejoin(t *testing.T) {
	now := time.Now()
	candidates := []Candidate{
		{HostID: 1, Validated: true, ProfileCount: 1, CanPlayAssets: true, SlotBooked: false, RejoinTime: now},
		{HostID: 2, Validated: true, ProfileCount: 1, CanPlayAssets: true, SlotBooked: true, RejoinTime: now.Add(time.Second)},
		{HostID: 3, Validated: true, ProfileCount: 1, CanPlayAssets: true, SlotBooked: true, RejoinTime: now},
	}
	winner, ok := Crown(candidates)
	require.True(t, ok)
	require.Equal(t, uint32(3), winner.HostID)
}

func TestCrownExcludesAlwaysSpectate(t *testing.T) {
	candidates := []Candidate{
		{HostID: 1, Validated: true, ProfileCount: 1, AlwaysSpectate: true},
		{HostID: 2, Validated: true, ProfileCount: 1},
	}
	winner, ok := Crown(candidates)
	require.True(t, ok)
	require.Equal(t, uint32(2), winner.HostID)
}

func TestPlayerLimitAppliesPerModeCap(t *testing.T) {
	m := New(100)
	require.Equal(t, 10, m.PlayerLimit(assets.ModeFFA))
	require.Equal(t, 14, m.PlayerLimit(assets.ModeCTF))
	require.Equal(t, 100, m.PlayerLimit(assets.ModeRace))
}

func TestComputeSpectatorsByLimitExcludesOverflow(t *testing.T) {
	m := New(2)
	now := time.Now()
	candidates := []Candidate{
		{HostID: 1, Validated: true, ProfileCount: 1, CanPlayAssets: true, RejoinTime: now},
		{HostID: 2, Validated: true, ProfileCount: 1, CanPlayAssets: true, RejoinTime: now.Add(time.Second)},
		{HostID: 3, Validated: true, ProfileCount: 1, CanPlayAssets: true, RejoinTime: now.Add(2 * time.Second)},
	}
	m.ComputeSpectatorsByLimit(candidates, assets.ModeRace)

	require.True(t, m.CanRace(1))
	require.True(t, m.CanRace(2))
	require.False(t, m.CanRace(3))
	require.True(t, m.IsSpectatorByLimit(3))
	require.Equal(t, HRSpectatorByLimit, m.Reason(3))
}

func TestReasonForTournamentBlock(t *testing.T) {
	m := New(10)
	candidates := []Candidate{
		{HostID: 1, Validated: true, ProfileCount: 1, CanPlayAssets: true, TournamentBlock: true},
	}
	m.ComputeSpectatorsByLimit(candidates, assets.ModeRace)
	require.Equal(t, HRNotATournamentPlayer, m.Reason(1))
}
