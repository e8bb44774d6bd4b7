package lobby

import (
	"strings"
	"time"

	"stklobby/internal/chat"
	"stklobby/internal/command"
	"stklobby/internal/packet"
	"stklobby/internal/session"
)

// CommandPrefix marks a chat line as a command invocation rather than
// a message to route.
const CommandPrefix = "/"

// HandleChatMessage is the transport's single entry point for an
// inbound ChatMessage: lines starting with CommandPrefix are
// dispatched through the command registry, everything else is
// filtered per-recipient by the chat manager and re-broadcast.
func (l *Lobby) HandleChatMessage(hostID uint32, msg *packet.ChatMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sender, ok := l.Sessions.Get(hostID)
	if !ok || !sender.Validated {
		return
	}

	if strings.HasPrefix(msg.Text, CommandPrefix) {
		l.dispatchCommandLocked(sender, msg.Text)
		return
	}

	if l.Chat.CheckSpam(hostID, time.Now()) == chat.SpamDropped {
		return
	}

	senderName := sender.MainProfileNameOr("")
	if !chat.ValidatePrefix(senderName, msg.Text) {
		return
	}

	senderPeer := chat.Peer{
		HostID:         hostID,
		MainName:       senderName,
		Validated:      sender.Validated,
		WaitingForGame: sender.State == session.StateWaitingForGame,
	}

	for _, p := range l.Sessions.All() {
		targetPeer := chat.Peer{
			HostID:         p.HostID,
			MainName:       p.MainProfileNameOr(""),
			Validated:      p.Validated,
			WaitingForGame: p.State == session.StateWaitingForGame,
			MutedBy:        p.IsMuting,
		}
		if !l.Chat.ShouldReceive(senderPeer, targetPeer, l.Teams, false) {
			continue
		}
		l.send.send(p.HostID, &packet.ChatMessage{
			SenderHostID: hostID,
			Text:         msg.Text,
			TeamOnly:     msg.TeamOnly,
		})
	}
}

func (l *Lobby) dispatchCommandLocked(sender *session.PeerSession, line string) {
	names := make([]string, 0, l.Sessions.Count())
	for _, p := range l.Sessions.All() {
		names = append(names, p.MainProfileNameOr(""))
	}
	ctx := &command.Context{
		SenderHostID: sender.HostID,
		SenderName:   sender.MainProfileNameOr(""),
		Permissions:  command.PermUsual,
		Reply: func(text string) {
			l.send.send(sender.HostID, &packet.ChatMessage{SenderHostID: 0, Text: text})
		},
	}
	if l.crownHoldsLocked(sender.HostID) {
		ctx.Permissions |= command.PermCrowned
	}
	if err := l.Commands.Handle(ctx, line, names); err != nil {
		ctx.Reply(err.Error())
	}
}

func (l *Lobby) crownHoldsLocked(hostID uint32) bool {
	crowned, ok := l.crownHostIDLocked()
	return ok && crowned == hostID
}
