package lobby

import (
	"time"

	"github.com/pkg/errors"

	"stklobby/internal/packet"
	"stklobby/internal/vote"
)

// MinPlayersToStart is the smallest connected population the lobby
// will allow a start-selection request for.
const MinPlayersToStart = 1

var (
	ErrNotCrowned        = errors.New("only the crown holder may start a race")
	ErrNotEnoughPlayers  = errors.New("not enough players to start")
	ErrStartForbidden    = errors.New("starting is forbidden right now")
	ErrWrongLobbyState   = errors.New("lobby is not accepting a start request")
)

// RequestStartSelection validates the start-selection preconditions
// and, if they hold, transitions the lobby into SELECTING and
// broadcasts StartSelection.
func (l *Lobby) RequestStartSelection(requesterHostID uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != WaitingForStartGame {
		return ErrWrongLobbyState
	}
	crowned, ok := l.crownHostIDLocked()
	if !ok || crowned != requesterHostID {
		return ErrNotCrowned
	}
	if l.Sessions.Count() < MinPlayersToStart {
		return ErrNotEnoughPlayers
	}
	if l.Tournament != nil && l.Tournament.ForbidStarting() {
		return ErrStartForbidden
	}

	l.Crown.ComputeSpectatorsByLimit(l.candidatesLocked(), l.cfg.Mode)
	l.Votes.Clear()
	l.match = &matchState{
		selectionDeadline: time.Now().Add(time.Duration(l.cfg.Server.Timeouts.VotingSeconds * float64(time.Second))),
	}

	l.setState(Selecting)
	l.send.broadcast(&packet.StartSelection{
		VotingTimeout: int32(l.cfg.Server.Timeouts.VotingSeconds),
		TrackVoting:   true,
	})
	l.publishAdminEvent("state-change", l.state.String())
	return nil
}

// HandleVoteRequest records hostID's ballot and re-broadcasts it;
// ineligible peers are silently ignored.
func (l *Lobby) HandleVoteRequest(hostID uint32, req *packet.VoteRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Selecting {
		return
	}
	peer, ok := l.Sessions.Get(hostID)
	if !ok {
		return
	}
	inTournament := l.Tournament != nil
	votable := true
	isPlayerRole := true
	if inTournament {
		name := peer.MainProfileNameOr("")
		votable = l.Tournament.CanVote(name)
		isPlayerRole = l.Tournament.CanPlay(name)
	}
	if !vote.Eligible(peer.IsValidated(), l.Crown.IsSpectatorByLimit(hostID), inTournament, votable, isPlayerRole) {
		return
	}

	v := vote.PeerVote{
		PlayerName: peer.MainProfileNameOr(""),
		TrackName:  req.Track,
		NumLaps:    req.Laps,
		Reverse:    req.Reverse,
		CastAt:     time.Now(),
	}
	l.Votes.CastVote(hostID, v)
	l.send.broadcast(&packet.Vote{HostID: hostID, Vote: *req})
}

// VotingDeadlineElapsed reports whether the selection window has
// closed, for the tick loop to poll.
func (l *Lobby) VotingDeadlineElapsed(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == Selecting && l.match != nil && !l.match.selectionDeadline.IsZero() && now.After(l.match.selectionDeadline)
}

// ResolveSelection runs the Map Vote Handler, applies restrictions, and
// transitions to LOAD_WORLD with the winning vote encoded into
// LoadWorld.
func (l *Lobby) ResolveSelection() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Selecting || l.match == nil {
		return
	}

	var randomMap func() string
	if l.Assets != nil {
		randomMap = func() string {
			m, _ := l.Assets.RandomAvailableMap(l.cfg.Mode)
			return m
		}
	}
	winner, winnerHostID, ok := l.Votes.Resolve(l.cfg.Restrictions, randomMap)
	if !ok {
		// no votes and no available map fallback: stay in the lobby.
		l.setState(WaitingForStartGame)
		l.match = nil
		return
	}
	if l.Tournament != nil {
		reverse := winner.Reverse
		laps := winner.NumLaps
		l.Tournament.ApplyRestrictionsOnDefaultVote(&laps, &reverse)
		winner.NumLaps, winner.Reverse = laps, reverse
	}

	l.match.vote = winner
	l.match.winnerHostID = winnerHostID
	l.match.playing = map[uint32]struct{}{}
	for _, c := range l.candidatesLocked() {
		if !l.Crown.IsSpectatorByLimit(c.HostID) {
			l.match.playing[c.HostID] = struct{}{}
		}
	}
	l.match.worldLoadedAcks = map[uint32]struct{}{}
	l.match.itemPolicy = newItemPolicy(l.cfg.Server.ItemStyle)
	l.match.karts = newMatchKarts(l.cfg.Server, l.match.playing)

	l.setState(LoadWorld)
	l.send.broadcast(&packet.LoadWorld{
		Track:        winner.TrackName,
		Laps:         winner.NumLaps,
		Reverse:      winner.Reverse,
		WinnerPeerID: winnerHostID,
	})
	l.publishAdminEvent("state-change", l.state.String())

	// World construction itself is an external collaborator; the lobby
	// immediately moves on to waiting for load acknowledgements.
	l.setState(WaitForWorldLoaded)
}
