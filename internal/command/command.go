// Package command implements the permissioned chat-command dispatcher:
// a registry of named commands gated by a permission mask, mode scope,
// and lobby/in-game state scope, plus command-level majority voting
// for commands that require it.
package command

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Context carries everything a command handler needs about the
// invocation. It never retains a pointer across calls, per the
// project's "weak handle" convention.
type Context struct {
	SenderHostID  uint32
	SenderName    string
	Argv          []string
	Cmd           string
	Permissions   Permission
	Voting        bool
	Reply         func(text string)
}

// Handler runs a command's action.
type Handler func(ctx *Context) error

// Description documents a command for /help and typo suggestions.
type Description struct {
	Usage       string
	Permissions string
	Help        string
}

// Command is one registered, dispatchable command.
type Command struct {
	Name        string
	Permissions Permission
	ModeScope   ModeScope
	StateScope  StateScope
	Votable     bool
	Handler     Handler
	Description Description
}

var (
	ErrUnknownCommand    = errors.New("unknown command")
	ErrNotPermitted      = errors.New("not permitted")
	ErrWrongScope        = errors.New("command unavailable in current mode or state")
	ErrAwaitingMoreVotes = errors.New("vote registered, awaiting more votes")
)

// Manager is the command registry and dispatcher (grounded on
// original_source network/protocols/command_manager.cpp/hpp).
type Manager struct {
	log      zerolog.Logger
	commands map[string]*Command
	voting   *Voting

	// CurrentModeScope/CurrentStateScope are read by isAvailable; the
	// caller updates them as the lobby transitions.
	CurrentModeScope  ModeScope
	CurrentStateScope StateScope
}

func New(log zerolog.Logger) *Manager {
	return &Manager{
		log:               log,
		commands:          map[string]*Command{},
		voting:            NewVoting(DefaultVoteThreshold),
		CurrentModeScope:  ModeScopeDefault,
		CurrentStateScope: StateScopeLobby,
	}
}

// Register adds a command to the dispatch table.
func (m *Manager) Register(c Command) {
	m.commands[c.Name] = &c
}

func (m *Manager) isAvailable(c *Command) bool {
	if c.ModeScope != 0 && m.CurrentModeScope != 0 && c.ModeScope&m.CurrentModeScope == 0 {
		return false
	}
	if c.StateScope != 0 && c.StateScope&m.CurrentStateScope == 0 {
		return false
	}
	return true
}

// parseArgv splits a raw chat-command line ("/kick bob reason") into
// argv, mirroring the original's whitespace-delimited tokenizer.
func parseArgv(line string) []string {
	return strings.Fields(line)
}

// Handle parses and dispatches a chat-command line beginning with
// "/". allUsers is the current multiset of present player names, used
// to resolve votable commands.
func (m *Manager) Handle(ctx *Context, line string, allUsers []string) error {
	argv := parseArgv(line)
	if len(argv) == 0 || !strings.HasPrefix(argv[0], "/") {
		return errors.New("not a command")
	}
	name := strings.TrimPrefix(argv[0], "/")
	ctx.Cmd = name
	ctx.Argv = argv[1:]

	c, ok := m.commands[name]
	if !ok {
		m.log.Debug().Str("cmd", name).Msg("unknown command")
		return ErrUnknownCommand
	}
	permitted := c.Permissions&ctx.Permissions != 0
	if !permitted && !c.Votable {
		return ErrNotPermitted
	}
	if !m.isAvailable(c) {
		return ErrWrongScope
	}

	if c.Votable && (!permitted || ctx.Permissions&PermUpSingle == 0) {
		return m.handleVotable(ctx, c, allUsers)
	}

	return c.Handler(ctx)
}

func (m *Manager) handleVotable(ctx *Context, c *Command, allUsers []string) error {
	option := strings.Join(ctx.Argv, " ")
	m.voting.CastVote(ctx.SenderName, c.Name, option)
	result := m.voting.Process(c.Name, allUsers)
	if !result.Passed {
		if ctx.Reply != nil {
			ctx.Reply(fmt.Sprintf("vote for /%s recorded (%d/%d needed)", c.Name, result.Counts[option], len(allUsers)))
		}
		return ErrAwaitingMoreVotes
	}
	m.voting.Clear(c.Name)
	winningArgv := strings.Fields(result.Option)
	ctx.Argv = winningArgv
	return c.Handler(ctx)
}

// Usage returns the registered command's usage string, or "" if
// unknown.
func (m *Manager) Usage(name string) string {
	c, ok := m.commands[name]
	if !ok {
		return ""
	}
	return c.Description.Usage
}

// Names returns every registered command name, in no particular
// order.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.commands))
	for name := range m.commands {
		names = append(names, name)
	}
	return names
}
