package lobby

import (
	"fmt"
	"strings"

	"stklobby/internal/command"
	"stklobby/internal/packet"
)

// commandHooks wires the chat-command registry to the rest of the
// lobby, avoiding an import cycle the way internal/command's Hooks
// type is designed for.
func (l *Lobby) commandHooks() command.Hooks {
	return command.Hooks{
		Kick: func(ctx *command.Context, targetName, reason string) error {
			hostID, ok := l.findByName(targetName)
			if !ok {
				return fmt.Errorf("no such player: %s", targetName)
			}
			l.send.send(hostID, &packet.BackLobby{Reason: packet.BLRClientError})
			l.Disconnect(hostID, 0, 0)
			return nil
		},
		Mute: func(ctx *command.Context, targetName string) error {
			peer, ok := l.Sessions.Get(ctx.SenderHostID)
			if !ok {
				return fmt.Errorf("unknown sender")
			}
			target, ok := l.findByName(targetName)
			if !ok {
				return fmt.Errorf("no such player: %s", targetName)
			}
			peer.Mute(target)
			return nil
		},
		Unmute: func(ctx *command.Context, targetName string) error {
			peer, ok := l.Sessions.Get(ctx.SenderHostID)
			if !ok {
				return fmt.Errorf("unknown sender")
			}
			target, ok := l.findByName(targetName)
			if !ok {
				return fmt.Errorf("no such player: %s", targetName)
			}
			peer.Unmute(target)
			return nil
		},
		ListMuted: func(ctx *command.Context) []string {
			peer, ok := l.Sessions.Get(ctx.SenderHostID)
			if !ok {
				return nil
			}
			var names []string
			for _, p := range l.Sessions.All() {
				if peer.IsMuting(p.HostID) {
					names = append(names, p.MainProfileNameOr(""))
				}
			}
			return names
		},
		StartRace: func(ctx *command.Context) error {
			return l.RequestStartSelection(ctx.SenderHostID)
		},
		ToggleTeam: func(ctx *command.Context) error {
			peer, ok := l.Sessions.Get(ctx.SenderHostID)
			if !ok {
				return fmt.Errorf("unknown sender")
			}
			if l.Chat == nil {
				return nil
			}
			return l.toggleTeamChat(peer.HostID)
		},
		SetPublic: func(ctx *command.Context) error {
			l.Chat.MakeChatPublicFor(ctx.SenderHostID)
			return nil
		},
		PrivateTo: func(ctx *command.Context, names []string) error {
			l.Chat.SetMessageReceiversFor(ctx.SenderHostID, names)
			return nil
		},
	}
}

func (l *Lobby) toggleTeamChat(hostID uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	// the chat manager exposes no "is team speaker" query, so this
	// only adds hostID to the team speakers; it never switches
	// team-only chat back off.
	l.Chat.AddTeamSpeaker(hostID)
	return nil
}

func (l *Lobby) findByName(name string) (uint32, bool) {
	for _, p := range l.Sessions.All() {
		if strings.EqualFold(p.MainProfileNameOr(""), name) {
			return p.HostID, true
		}
	}
	return 0, false
}
