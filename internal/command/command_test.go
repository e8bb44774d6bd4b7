package command

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return New(zerolog.Nop())
}

func TestHandleDispatchesRegisteredCommand(t *testing.T) {
	m := newTestManager()
	called := false
	m.Register(Command{
		Name:        "ping",
		Permissions: PermEveryone,
		StateScope:  StateScopeAlways,
		Handler: func(ctx *Context) error {
			called = true
			return nil
		},
	})

	ctx := &Context{SenderName: "alice", Permissions: PermUsual}
	err := m.Handle(ctx, "/ping", nil)
	require.NoError(t, err)
	require.True(t, called)
}

func TestHandleRejectsUnknownCommand(t *testing.T) {
	m := newTestManager()
	ctx := &Context{SenderName: "alice", Permissions: PermEveryone}
	err := m.Handle(ctx, "/nope", nil)
	require.ErrorIs(t, err, ErrUnknownCommand)
}

func TestHandleEnforcesPermissionMask(t *testing.T) {
	m := newTestManager()
	m.Register(Command{
		Name:        "kick",
		Permissions: PermUpCrowned,
		StateScope:  StateScopeAlways,
		Handler:     func(ctx *Context) error { return nil },
	})

	ctx := &Context{SenderName: "alice", Permissions: PermUsual}
	err := m.Handle(ctx, "/kick bob", nil)
	require.ErrorIs(t, err, ErrNotPermitted)
}

func TestHandleEnforcesStateScope(t *testing.T) {
	m := newTestManager()
	m.CurrentStateScope = StateScopeInGame
	m.Register(Command{
		Name:        "lobbyonly",
		Permissions: PermEveryone,
		StateScope:  StateScopeLobby,
		Handler:     func(ctx *Context) error { return nil },
	})

	ctx := &Context{SenderName: "alice", Permissions: PermUsual}
	err := m.Handle(ctx, "/lobbyonly", nil)
	require.ErrorIs(t, err, ErrWrongScope)
}

func TestHandleVotableRequiresMajority(t *testing.T) {
	m := newTestManager()
	called := false
	m.Register(Command{
		Name:        "start",
		Permissions: PermUpSingle,
		Votable:     true,
		StateScope:  StateScopeLobby,
		Handler: func(ctx *Context) error {
			called = true
			return nil
		},
	})
	m.CurrentStateScope = StateScopeLobby

	users := []string{"alice", "bob", "carol"}
	err := m.Handle(&Context{SenderName: "alice", Permissions: PermUsual}, "/start", users)
	require.ErrorIs(t, err, ErrAwaitingMoreVotes)
	require.False(t, called)

	err = m.Handle(&Context{SenderName: "bob", Permissions: PermUsual}, "/start", users)
	require.NoError(t, err)
	require.True(t, called)
}

func TestVotingCastVoteReplacesPriorVote(t *testing.T) {
	v := NewVoting(0.5)
	v.CastVote("alice", "map", "track1")
	v.CastVote("alice", "map", "track2")

	result := v.Process("map", []string{"alice", "bob"})
	require.Equal(t, 0, result.Counts["track1"])
	require.Equal(t, 1, result.Counts["track2"])
}

func TestVotingProcessIgnoresAbsentVoters(t *testing.T) {
	v := NewVoting(0.500001)
	v.CastVote("alice", "start", "")
	v.CastVote("ghost", "start", "")

	result := v.Process("start", []string{"alice", "bob"})
	require.False(t, result.Passed)
	require.Equal(t, 1, result.Counts[""])
}

func TestVotingProcessPassesAboveThreshold(t *testing.T) {
	v := NewVoting(0.500001)
	v.CastVote("alice", "start", "")
	v.CastVote("bob", "start", "")

	result := v.Process("start", []string{"alice", "bob", "carol"})
	require.True(t, result.Passed)
}
