package gp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseIntParamStringRejectsUnknownType(t *testing.T) {
	_, err := ParseIntParamString("bogus 1 2")
	require.Error(t, err)
}

func TestParseIntParamStringParsesFields(t *testing.T) {
	s, err := ParseIntParamString("fixed 3 1 10 8 6")
	require.NoError(t, err)
	require.Equal(t, 3, s.PolePoints())
	require.Equal(t, 1, s.FastestLapPoints())
}

func TestIsStandardRecognizesEmptyDefaultAndStandard(t *testing.T) {
	for _, in := range []string{"", "standard", "default"} {
		s, err := ParseIntParamString(in)
		require.NoError(t, err)
		require.True(t, s.IsStandard())
	}
	s, _ := ParseIntParamString("fixed 0 0 5")
	require.False(t, s.IsStandard())
}

func TestRefreshCustomScoresIncIsCumulativeDescending(t *testing.T) {
	s, err := ParseIntParamString("inc 0 0 1 2 3")
	require.NoError(t, err)
	scores := s.RefreshCustomScores(3)
	require.Equal(t, []int{6, 3, 1}, scores)
}

func TestRefreshCustomScoresFixedPadsWithZero(t *testing.T) {
	s, err := ParseIntParamString("fixed 0 0 10 8")
	require.NoError(t, err)
	scores := s.RefreshCustomScores(4)
	require.Equal(t, []int{10, 8, 0, 0}, scores)
}

func TestScoreForPositionLinearGapDecreasesWithDelta(t *testing.T) {
	s, err := ParseIntParamString("linear-gap 0 0 10000 1000 2000 0")
	require.NoError(t, err)
	raceTimes := map[int]float64{}
	winner := s.ScoreForPosition(1, 60.0, raceTimes, nil)
	require.Equal(t, 10, winner)

	second := s.ScoreForPosition(2, 61.0, raceTimes, nil)
	require.Less(t, second, winner)
}

func TestCanGetScoreForPositionRequiresWinnerTimeForGapModes(t *testing.T) {
	s, _ := ParseIntParamString("exp-gap 0 0 10000 1000 500 0")
	raceTimes := map[int]float64{}
	require.True(t, s.CanGetScoreForPosition(1, raceTimes))
	require.False(t, s.CanGetScoreForPosition(2, raceTimes))
	raceTimes[1] = 60
	require.True(t, s.CanGetScoreForPosition(2, raceTimes))
}

func TestStandardScoreForPositionMatchesBuiltinTable(t *testing.T) {
	require.Equal(t, 15, StandardScoreForPosition(1))
	require.Equal(t, 12, StandardScoreForPosition(2))
	require.Equal(t, 0, StandardScoreForPosition(20))
}

func TestManagerProcessRaceAccumulatesStandardPoints(t *testing.T) {
	m := NewManager(NewStandard())
	m.ProcessRace([]RaceResult{
		{PlayerName: "alice", Position: 1, Time: 60, FastestLap: true},
		{PlayerName: "bob", Position: 2, Time: 62},
	})
	standings := m.Standings()
	require.Equal(t, "alice", standings[0].PlayerName)
	require.Greater(t, standings[0].Points, standings[1].Points)
}

func TestManagerStandingsOrderedByPointsThenTime(t *testing.T) {
	m := NewManager(NewStandard())
	m.entry("alice", "")
	m.entries["alice"].Points = 10
	m.entries["alice"].AccumulatedTime = 120
	m.entry("bob", "")
	m.entries["bob"].Points = 10
	m.entries["bob"].AccumulatedTime = 100
	standings := m.Standings()
	require.Equal(t, "bob", standings[0].PlayerName)
}

func TestManagerTeamStandingsAggregatePerTeam(t *testing.T) {
	m := NewManager(NewStandard())
	m.ProcessRace([]RaceResult{
		{PlayerName: "alice", Team: "red", Position: 1, Time: 60},
		{PlayerName: "bob", Team: "blue", Position: 2, Time: 61},
		{PlayerName: "carl", Team: "red", Position: 3, Time: 62},
	})
	teams := m.TeamStandings()
	var red Entry
	for _, e := range teams {
		if e.Team == "red" {
			red = e
		}
	}
	require.Equal(t, StandardScoreForPosition(1)+StandardScoreForPosition(3), red.Points)
}

func TestManagerShuffleSwapsScores(t *testing.T) {
	m := NewManager(NewStandard())
	m.ProcessRace([]RaceResult{
		{PlayerName: "alice", Position: 1, Time: 60},
		{PlayerName: "bob", Position: 2, Time: 61},
	})
	before := map[string]int{"alice": m.entries["alice"].Points, "bob": m.entries["bob"].Points}
	m.Shuffle(map[string]string{"alice": "bob", "bob": "alice"})
	require.Equal(t, before["alice"], m.entries["bob"].Points)
	require.Equal(t, before["bob"], m.entries["alice"].Points)
}
