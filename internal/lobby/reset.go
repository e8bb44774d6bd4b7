package lobby

// BeginReset starts the two-phase reset: a synchronous world-teardown
// phase followed by an asynchronous lobby-rebuild phase. Idempotent:
// calling it while a reset is already underway, or while the lobby is
// already idle, is a no-op.
func (l *Lobby) BeginReset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.resetState != ResetNone {
		return
	}
	if l.state == WaitingForStartGame || l.state == SetPublicAddress || l.state == RegisterSelfAddress {
		return
	}
	l.resetState = ResetWaiting
	l.log.Debug().Msg("reset requested")
}

// AdvanceReset drives the reset state machine one step forward. The
// tick loop calls this every tick; it returns true once the lobby has
// fully returned to WAITING_FOR_START_GAME.
func (l *Lobby) AdvanceReset() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.resetState {
	case ResetNone:
		return l.state == WaitingForStartGame

	case ResetWaiting:
		// Synchronous teardown: world destruction itself is an
		// external collaborator, so this phase only hands over to the
		// rebuild phase, which drops the match bookkeeping.
		l.resetState = ResetAsync
		return false

	case ResetAsync:
		// Asynchronous rebuild: clear match bookkeeping and votes,
		// refresh spectators-by-limit for the newly-idle population,
		// and reopen the lobby for a new start-selection request. The
		// track/kart queues are not touched here.
		l.match = nil
		l.Votes.Clear()
		l.Crown.ComputeSpectatorsByLimit(l.candidatesLocked(), l.cfg.Mode)
		l.setState(WaitingForStartGame)
		l.resetState = ResetNone
		l.publishAdminEvent("state-change", l.state.String())
		l.broadcastPlayerListLocked()
		return true

	default:
		return false
	}
}
