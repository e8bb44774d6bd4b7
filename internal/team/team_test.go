package team

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSameTeamByFixedColor(t *testing.T) {
	m := New()
	m.SetTeam("alice", ColorRed)
	m.SetTeam("bob", ColorRed)
	m.SetTeam("carol", ColorBlue)

	require.True(t, m.SameTeam("alice", "bob"))
	require.False(t, m.SameTeam("alice", "carol"))
}

func TestSameTeamByTemporaryIndex(t *testing.T) {
	m := New()
	m.SetTemporaryTeam("alice", 2)
	m.SetTemporaryTeam("bob", 2)
	m.SetTemporaryTeam("carol", 3)

	require.True(t, m.SameTeam("alice", "bob"))
	require.False(t, m.SameTeam("alice", "carol"))
}

func TestApplyPermutationRemapsTemporaryTeams(t *testing.T) {
	m := New()
	m.SetTemporaryTeam("alice", 0)
	m.SetTemporaryTeam("bob", 1)

	m.ApplyPermutation(map[int]int{0: 1, 1: 0})

	require.Equal(t, 1, m.TemporaryTeam("alice"))
	require.Equal(t, 0, m.TemporaryTeam("bob"))
}

func TestCategoryVisibility(t *testing.T) {
	m := New()
	m.AddPlayerToCategory("alice", "vip")
	require.True(t, m.IsCategoryVisible("vip"))
	require.Contains(t, m.VisibleCategoriesFor("alice"), "vip")

	m.SetCategoryVisible("vip", false)
	require.False(t, m.IsCategoryVisible("vip"))
	require.NotContains(t, m.VisibleCategoriesFor("alice"), "vip")
}
