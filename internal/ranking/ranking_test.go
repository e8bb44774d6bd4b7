package ranking

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPlayerStateUsesBaseConstants(t *testing.T) {
	s := NewPlayerState()
	require.Equal(t, BaseRankingPoints, s.RawScore)
	require.Equal(t, BaseRatingDeviation, s.Deviation)
}

func TestUpdateStateAllEliminatedIsNoOp(t *testing.T) {
	entries := []RaceEntry{
		{State: NewPlayerState(), IsEliminated: true, Time: 60},
		{State: NewPlayerState(), IsEliminated: true, Time: 60},
	}
	out := UpdateState(entries, false)
	require.Equal(t, entries[0].State, out[0])
	require.Equal(t, entries[1].State, out[1])
}

func TestUpdateStateWinnerGainsRatingOverEqualOpponent(t *testing.T) {
	entries := []RaceEntry{
		{State: NewPlayerState(), Time: 60},
		{State: NewPlayerState(), Time: 65},
	}
	out := UpdateState(entries, true)
	require.Greater(t, out[0].RawScore, entries[0].State.RawScore)
	require.Less(t, out[1].RawScore, entries[1].State.RawScore)
}

func TestUpdateStateDeviationNeverBelowMinimum(t *testing.T) {
	low := NewPlayerState()
	low.Deviation = MinRatingDeviation
	entries := []RaceEntry{
		{State: low, Time: 60},
		{State: low, Time: 61},
	}
	out := UpdateState(entries, true)
	require.GreaterOrEqual(t, out[0].Deviation, MinRatingDeviation)
	require.GreaterOrEqual(t, out[1].Deviation, MinRatingDeviation)
}

func TestUpdateStateIncrementsNumGames(t *testing.T) {
	entries := []RaceEntry{
		{State: NewPlayerState(), Time: 60},
		{State: NewPlayerState(), Time: 61},
	}
	out := UpdateState(entries, true)
	require.Equal(t, uint(1), out[0].NumGames)
}

func TestUpdateStateRepeatedDisconnectsRaiseDeviationFloor(t *testing.T) {
	s := NewPlayerState()
	s.DisconnectMask = 0b111 // 3 prior disconnects recorded
	entries := []RaceEntry{
		{State: s, IsEliminated: true, Time: 60},
		{State: NewPlayerState(), Time: 60},
	}
	out := UpdateState(entries, true)
	require.Greater(t, out[0].Deviation, MinRatingDeviation)
}

func TestComputeH2HResultFullWinBeyondThreshold(t *testing.T) {
	require.Equal(t, 1.0, computeH2HResult(50, 100))
}

func TestComputeH2HResultCloseRaceNearHalf(t *testing.T) {
	r := computeH2HResult(60.0, 60.1)
	require.InDelta(t, 0.5, r, 0.05)
}

func TestGetModeFactorDiffersByMode(t *testing.T) {
	require.Equal(t, 1.0, getModeFactor(true))
	require.Equal(t, 0.75, getModeFactor(false))
}

func TestComputeDataAccuracyReducedByHandicap(t *testing.T) {
	withoutHandicap := computeDataAccuracy(1000, 1000, 4000, 4000, 2, false)
	withHandicap := computeDataAccuracy(1000, 1000, 4000, 4000, 2, true)
	require.InDelta(t, withoutHandicap*0.25, withHandicap, 1e-9)
}
