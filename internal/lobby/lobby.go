package lobby

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stklobby/internal/adminrpc"
	"stklobby/internal/assets"
	"stklobby/internal/chat"
	"stklobby/internal/command"
	"stklobby/internal/config"
	"stklobby/internal/crown"
	"stklobby/internal/gp"
	"stklobby/internal/item"
	"stklobby/internal/packet"
	"stklobby/internal/queue"
	"stklobby/internal/ranking"
	"stklobby/internal/session"
	"stklobby/internal/storage"
	"stklobby/internal/team"
	"stklobby/internal/tournament"
	"stklobby/internal/tyre"
	"stklobby/internal/vote"
)

// Sender is the non-owning transport handle the Lobby State Machine
// uses to emit packets, kept as explicitly-passed closures rather than
// a global singleton. The network layer that actually frames and sends
// bytes is an external collaborator; the lobby only ever calls these
// two closures.
type Sender struct {
	Send      func(hostID uint32, msg packet.Encoder)
	Broadcast func(msg packet.Encoder, exclude ...uint32)
}

func (s Sender) send(hostID uint32, msg packet.Encoder) {
	if s.Send != nil {
		s.Send(hostID, msg)
	}
}

func (s Sender) broadcast(msg packet.Encoder, exclude ...uint32) {
	if s.Broadcast != nil {
		s.Broadcast(msg, exclude...)
	}
}

// Config bundles the server-wide, mostly-static settings the Lobby
// needs at construction time.
type Config struct {
	Server          config.ServerConfig
	ProtocolVersion uint32
	Mode            assets.Mode
	VoteAlgorithm   vote.Algorithm
	Restrictions    vote.Restrictions
	StartHostID     uint32 // seeds the host_id counter, persisted across runs

	// GPScoring enables Grand Prix point accumulation across races when
	// non-nil; nil means every race stands alone.
	GPScoring *gp.Scoring

	// VerifyPassword checks a ConnectionRequested's encrypted payload
	// against the server's configured password. Password-derived key
	// computation is an external collaborator that runs off the hot
	// path; nil means "no password configured".
	VerifyPassword func(payload []byte) bool
}

// Lobby is the LobbyContext aggregate: every sub-component is
// constructed here and handed only the references it needs,
// avoiding both C++-style multiple inheritance and a process-wide
// singleton.
type Lobby struct {
	log zerolog.Logger
	mu  sync.Mutex

	cfg   Config
	send  Sender
	store *storage.Store // nil if persistence is disabled

	state      State
	resetState ResetState

	Sessions     *session.Registry
	Assets       *assets.Manager
	Crown        *crown.Manager
	Teams        *team.Manager
	Chat         *chat.Manager
	Commands     *command.Manager
	Queues       *queue.Queues
	Votes        *vote.Aggregator
	GP           *gp.Manager          // nil unless a Grand Prix is running
	Tournament   *tournament.Tournament // nil unless tournament mode is loaded
	Elimination  *Elimination
	Admin        *adminrpc.AdminServer // nil if the admin surface is disabled

	// Rankings holds every seen player's persistent rating record,
	// keyed by player name; only consulted/updated when cfg.Server.Ranked.
	Rankings map[string]ranking.PlayerState

	// match holds the bookkeeping for the currently selected/running
	// match; nil when the lobby has no match in flight. At most one
	// non-idle match exists at a time.
	match *matchState
}

// New builds a Lobby with every sub-component wired per cfg. Callers
// that need a persistence layer, admin surface or tournament overlay
// pass already-constructed instances; all are optional (nil-able).
func New(log zerolog.Logger, cfg Config, send Sender, store *storage.Store, admin *adminrpc.AdminServer, assetsMgr *assets.Manager, trn *tournament.Tournament) *Lobby {
	l := &Lobby{
		log:         log,
		cfg:         cfg,
		send:        send,
		store:       store,
		state:       WaitingForStartGame,
		resetState:  ResetNone,
		Sessions:    session.NewRegistry(cfg.StartHostID),
		Assets:      assetsMgr,
		Crown:       crown.New(cfg.Server.MaxPlayers),
		Teams:       team.New(),
		Chat:        chat.New(log, 0),
		Commands:    command.New(log),
		Queues:      queue.NewQueues(),
		Votes:       vote.NewAggregator(cfg.VoteAlgorithm),
		Elimination: NewElimination(),
		Admin:       admin,
		Tournament:  trn,
		Rankings:    map[string]ranking.PlayerState{},
	}
	if cfg.GPScoring != nil {
		l.GP = gp.NewManager(cfg.GPScoring)
	}
	l.Queues.LoadTracksFromConfig(cfg.Server.OnetimeTracks, cfg.Server.CyclicTracks, cfg.Server.OnetimeKarts, cfg.Server.CyclicKarts)
	command.RegisterBuiltins(l.Commands, l.commandHooks())
	return l
}

// State returns the current Lobby State Machine state.
func (l *Lobby) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// ResetState returns the current two-phase reset variable.
func (l *Lobby) ResetState() ResetState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resetState
}

func (l *Lobby) setState(s State) {
	l.log.Debug().Stringer("from", l.state).Stringer("to", s).Msg("lobby state transition")
	l.state = s
}

// publishAdminEvent is a best-effort notification to the admin surface;
// it is a no-op when Admin is nil.
func (l *Lobby) publishAdminEvent(kind, detail string) {
	if l.Admin == nil {
		return
	}
	l.Admin.PublishEvent(&adminrpc.LobbyEvent{Kind: kind, Detail: detail, TickSeq: time.Now().UnixNano()})
}

// matchState holds the data that exists only while a match is live:
// selected vote, playing/spectating sets, per-kart tyre and item
// state, acknowledgement bookkeeping, and timing deadlines.
type matchState struct {
	vote         vote.PeerVote
	winnerHostID uint32

	playing     map[uint32]struct{} // host_id -> participating this match
	liveJoined  map[uint32]struct{} // host_id -> joined after start via LiveJoin

	selectionDeadline time.Time

	worldLoadedAcks map[uint32]struct{}
	startTime       time.Time

	finishOrder []finishEntry

	raceFinishedAckDeadline time.Time
	raceFinishedAcks        map[uint32]struct{}

	// itemPolicy is the race's parsed item-handout/blue-flag/virtual-
	// pace-car rule set, shared by every kart this match.
	itemPolicy *item.Policy

	// karts holds each participating peer's tyre/fuel and item state;
	// the caller's physics loop drives it via the Lobby's race-tick
	// methods, which own kart motion/position and call back in here.
	karts map[uint32]*kartState
}

// kartState is one participating kart's tyre/fuel degradation state
// and item-handout bookkeeping for the live match.
type kartState struct {
	Tyres *tyre.State
	Items item.KartItemState
}

// finishEntry records one peer's finishing data for RaceFinished/GP/
// ranking processing.
type finishEntry struct {
	HostID       uint32
	PlayerName   string
	Team         string
	Position     int
	Time         float64
	FastestLap   float64
	HasLap       bool
	Disqualified bool
}
