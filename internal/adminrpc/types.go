package adminrpc

// PeerInfo is one connected peer as exposed to admin tooling.
type PeerInfo struct {
	HostID   uint32
	Username string
	OnlineID uint32
	Team     string
	IsPeer   bool // false once disconnected but not yet pruned
}

// MatchStatus summarizes the lobby's currently running (or pending) match.
type MatchStatus struct {
	State      string // lobby state machine name, e.g. "racing", "waiting"
	Mode       string
	Track      string
	GameTick   int64
	PlayerCount int
}

// GPStanding is one entry of the grand prix leaderboard.
type GPStanding struct {
	PlayerName string
	Team       string
	Points     int
	Position   int
}

// StatusRequest carries no fields; status is always served in full.
type StatusRequest struct{}

// StatusResponse is the full admin snapshot returned by GetStatus.
type StatusResponse struct {
	Peers     []PeerInfo
	Match     MatchStatus
	Standings []GPStanding
}

// StreamRequest carries no fields; every admin client receives the
// same event stream.
type StreamRequest struct{}

// LobbyEvent is one state-machine transition or notable occurrence,
// pushed to every subscribed admin client.
type LobbyEvent struct {
	Kind    string // e.g. "state-change", "race-finished", "peer-joined"
	Detail  string
	TickSeq int64
}
