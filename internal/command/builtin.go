package command

import (
	"fmt"
	"strings"
)

// Hooks wires command handlers to the rest of the lobby without this
// package importing internal/lobby, avoiding an import cycle.
type Hooks struct {
	Kick         func(ctx *Context, targetName, reason string) error
	Mute         func(ctx *Context, targetName string) error
	Unmute       func(ctx *Context, targetName string) error
	ListMuted    func(ctx *Context) []string
	StartRace    func(ctx *Context) error
	ToggleTeam   func(ctx *Context) error
	SetPublic    func(ctx *Context) error
	PrivateTo    func(ctx *Context, names []string) error
}

// RegisterBuiltins wires up the subset of original commands most
// central to lobby control: process_kick, process_mute,
// process_unmute, process_listmute, process_start, process_teamchat,
// process_public, process_to.
func RegisterBuiltins(m *Manager, h Hooks) {
	m.Register(Command{
		Name:        "kick",
		Permissions: PermUpCrowned,
		StateScope:  StateScopeAlways,
		Description: Description{Usage: "/kick <name> [reason]"},
		Handler: func(ctx *Context) error {
			if len(ctx.Argv) == 0 {
				return fmt.Errorf("usage: %s", "/kick <name> [reason]")
			}
			reason := ""
			if len(ctx.Argv) > 1 {
				reason = strings.Join(ctx.Argv[1:], " ")
			}
			return h.Kick(ctx, ctx.Argv[0], reason)
		},
	})

	m.Register(Command{
		Name:        "mute",
		Permissions: PermEveryone,
		StateScope:  StateScopeAlways,
		Description: Description{Usage: "/mute <name>"},
		Handler: func(ctx *Context) error {
			if len(ctx.Argv) != 1 {
				return fmt.Errorf("usage: /mute <name>")
			}
			return h.Mute(ctx, ctx.Argv[0])
		},
	})

	m.Register(Command{
		Name:        "unmute",
		Permissions: PermEveryone,
		StateScope:  StateScopeAlways,
		Description: Description{Usage: "/unmute <name>"},
		Handler: func(ctx *Context) error {
			if len(ctx.Argv) != 1 {
				return fmt.Errorf("usage: /unmute <name>")
			}
			return h.Unmute(ctx, ctx.Argv[0])
		},
	})

	m.Register(Command{
		Name:        "listmute",
		Permissions: PermEveryone,
		StateScope:  StateScopeAlways,
		Description: Description{Usage: "/listmute"},
		Handler: func(ctx *Context) error {
			muted := h.ListMuted(ctx)
			if ctx.Reply != nil {
				ctx.Reply("muted: " + strings.Join(muted, ", "))
			}
			return nil
		},
	})

	m.Register(Command{
		Name:        "start",
		Permissions: PermUpSingle,
		Votable:     true,
		StateScope:  StateScopeLobby,
		Description: Description{Usage: "/start"},
		Handler: func(ctx *Context) error {
			return h.StartRace(ctx)
		},
	})

	m.Register(Command{
		Name:        "teamchat",
		Permissions: PermEveryone,
		StateScope:  StateScopeAlways,
		Description: Description{Usage: "/teamchat"},
		Handler: func(ctx *Context) error {
			return h.ToggleTeam(ctx)
		},
	})

	m.Register(Command{
		Name:        "public",
		Permissions: PermEveryone,
		StateScope:  StateScopeAlways,
		Description: Description{Usage: "/public"},
		Handler: func(ctx *Context) error {
			return h.SetPublic(ctx)
		},
	})

	m.Register(Command{
		Name:        "to",
		Permissions: PermEveryone,
		StateScope:  StateScopeAlways,
		Description: Description{Usage: "/to <name> [name...]"},
		Handler: func(ctx *Context) error {
			if len(ctx.Argv) == 0 {
				return fmt.Errorf("usage: /to <name> [name...]")
			}
			return h.PrivateTo(ctx, ctx.Argv)
		},
	})
}
