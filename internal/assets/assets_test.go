package assets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	m := New(Thresholds{
		OfficialKartsJoin: 0.5, OfficialTracksJoin: 0.5,
		OfficialKartsPlay: 0.8, OfficialTracksPlay: 0.8,
	})
	for _, k := range []string{"tux", "nolok", "gnu", "sara"} {
		m.OfficialKarts[k] = struct{}{}
	}
	for _, t := range []string{"hacienda", "zengarden", "xr591", "mines"} {
		m.OfficialMaps[t] = struct{}{}
	}
	m.MustHaveMaps["hacienda"] = struct{}{}
	return m
}

func TestCheckJoinPassesWithFullOverlap(t *testing.T) {
	m := newTestManager()
	err := m.CheckJoin(
		[]string{"tux", "nolok", "gnu", "sara"},
		[]string{"hacienda", "zengarden", "xr591", "mines"},
	)
	require.NoError(t, err)
}

func TestCheckJoinFailsBelowThreshold(t *testing.T) {
	m := newTestManager()
	err := m.CheckJoin([]string{"tux"}, []string{"hacienda", "zengarden", "xr591", "mines"})
	require.Error(t, err)
}

func TestCheckJoinFailsMissingMustHave(t *testing.T) {
	m := newTestManager()
	err := m.CheckJoin(
		[]string{"tux", "nolok", "gnu", "sara"},
		[]string{"zengarden", "xr591", "mines"}, // missing must-have hacienda
	)
	require.ErrorIs(t, err, ErrMissingMustHave)
}

func TestCanPlayStricterThanCanJoin(t *testing.T) {
	m := newTestManager()
	// 2/4 karts and 2/4 maps clears the 0.5 join bar but not the 0.8 play bar.
	require.NoError(t, m.CheckJoin([]string{"tux", "nolok"}, []string{"hacienda", "zengarden"}))
	require.False(t, m.CanPlay([]string{"tux", "nolok"}, []string{"hacienda", "zengarden"}))
}

func TestRandomAvailableMapOnEmptySetFails(t *testing.T) {
	m := New(Thresholds{})
	_, ok := m.RandomAvailableMap(ModeRace)
	require.False(t, ok)
}

func TestSuggestNearMiss(t *testing.T) {
	universe := map[string]struct{}{"hacienda": {}, "zengarden": {}}
	require.Equal(t, "hacienda", SuggestNearMiss("haciendaa", universe))
	require.Equal(t, "", SuggestNearMiss("totallyunrelatedname", universe))
}
