package packet

// Message types, one per concrete packet, used as the one-byte wire
// discriminator. Grouped roughly by the channel they travel on.
const (
	MsgConnectionRequested MessageType = iota + 1
	MsgConnectionAccepted
	MsgConnectionRefused
	MsgPlayerList
	MsgStartSelection
	MsgVoteRequest
	MsgVote
	MsgLoadWorld
	MsgWorldLoaded
	MsgStartGame
	MsgRaceFinished
	MsgRaceFinishedAck
	MsgLiveJoinRequest
	MsgLiveJoin
	MsgBackLobby
	MsgChatMessage
)

// ConnectionRequested is the client's initial handshake packet.
type ConnectionRequested struct {
	ProtocolVersion uint32
	UserVersion     string
	Capabilities    []string
	DeclaredKarts   []string
	DeclaredMaps    []string
	PlayerCount     uint8
	OnlineID        uint32 // 0 = offline
	// EncryptedPayload is present iff the server has a password set; the
	// predicate is evaluated by the caller (the server already knows its
	// own configuration, so the decode side is handed the predicate
	// result rather than re-deriving it from the wire).
	HasEncryptedPayload bool
	EncryptedPayload    []byte
}

func (ConnectionRequested) MessageType() MessageType { return MsgConnectionRequested }

func (c *ConnectionRequested) fields() []FieldSpec {
	return []FieldSpec{
		{
			Write: func(w *Writer) { w.WriteUint32(c.ProtocolVersion) },
			Read:  func(r *Reader) (err error) { c.ProtocolVersion, err = r.ReadUint32(); return },
		},
		{
			Write: func(w *Writer) { w.WriteString(c.UserVersion) },
			Read:  func(r *Reader) (err error) { c.UserVersion, err = r.ReadString(); return },
		},
		{
			Write: func(w *Writer) { WriteStringVector(w, c.Capabilities) },
			Read:  func(r *Reader) (err error) { c.Capabilities, err = ReadStringVector(r); return },
		},
		{
			Write: func(w *Writer) { WriteStringVector(w, c.DeclaredKarts) },
			Read:  func(r *Reader) (err error) { c.DeclaredKarts, err = ReadStringVector(r); return },
		},
		{
			Write: func(w *Writer) { WriteStringVector(w, c.DeclaredMaps) },
			Read:  func(r *Reader) (err error) { c.DeclaredMaps, err = ReadStringVector(r); return },
		},
		{
			Write: func(w *Writer) { w.WriteUint8(c.PlayerCount) },
			Read:  func(r *Reader) (err error) { c.PlayerCount, err = r.ReadUint8(); return },
		},
		{
			Write: func(w *Writer) { w.WriteUint32(c.OnlineID) },
			Read:  func(r *Reader) (err error) { c.OnlineID, err = r.ReadUint32(); return },
		},
		{
			Write: func(w *Writer) {
				if c.HasEncryptedPayload {
					w.WriteBytes16(c.EncryptedPayload)
				}
			},
			Read: func(r *Reader) error {
				if !c.HasEncryptedPayload {
					return nil
				}
				b, err := r.ReadBytes16()
				if err != nil {
					return err
				}
				c.EncryptedPayload = b
				return nil
			},
		},
	}
}

func (c *ConnectionRequested) EncodeTo(w *Writer)         { EncodeFields(w, c.fields()) }
func (c *ConnectionRequested) DecodeFrom(r *Reader) error { return DecodeFields(r, c.fields()) }

// RefusalReason enumerates ConnectionRefused reasons.
type RefusalReason uint8

const (
	RRNone RefusalReason = iota
	RRIncompatibleData
	RRBanned
	RRTooManyPlayers
	RRWrongPassword
	RRInsufficientAssets
)

// ConnectionRefused carries the exact admission-failure reason.
type ConnectionRefused struct {
	Reason RefusalReason
	Advice string // only meaningful for RRIncompatibleData
}

func (ConnectionRefused) MessageType() MessageType { return MsgConnectionRefused }

func (c *ConnectionRefused) fields() []FieldSpec {
	return []FieldSpec{
		{
			Write: func(w *Writer) { w.WriteUint8(uint8(c.Reason)) },
			Read: func(r *Reader) error {
				v, err := r.ReadUint8()
				if err != nil {
					return err
				}
				c.Reason = RefusalReason(v)
				return nil
			},
		},
		{
			Write: func(w *Writer) {
				if c.Reason == RRIncompatibleData {
					w.WriteString(c.Advice)
				}
			},
			Read: func(r *Reader) error {
				if c.Reason != RRIncompatibleData {
					return nil
				}
				var err error
				c.Advice, err = r.ReadString()
				return err
			},
		},
	}
}

func (c *ConnectionRefused) EncodeTo(w *Writer)         { EncodeFields(w, c.fields()) }
func (c *ConnectionRefused) DecodeFrom(r *Reader) error { return DecodeFields(r, c.fields()) }

// ConnectionAccepted is sent once admission checks pass.
type ConnectionAccepted struct {
	HostID             uint32
	ServerCapabilities []string
	AutoStartTimer     int32 // seconds, -1 if disabled
	StateFrequency     uint8 // physics ticks per network update
	ChatAllowed        bool
	ReportsAllowed     bool
}

func (ConnectionAccepted) MessageType() MessageType { return MsgConnectionAccepted }

func (c *ConnectionAccepted) fields() []FieldSpec {
	return []FieldSpec{
		{
			Write: func(w *Writer) { w.WriteUint32(c.HostID) },
			Read:  func(r *Reader) (err error) { c.HostID, err = r.ReadUint32(); return },
		},
		{
			Write: func(w *Writer) { WriteStringVector(w, c.ServerCapabilities) },
			Read:  func(r *Reader) (err error) { c.ServerCapabilities, err = ReadStringVector(r); return },
		},
		{
			Write: func(w *Writer) { w.WriteInt32(c.AutoStartTimer) },
			Read:  func(r *Reader) (err error) { c.AutoStartTimer, err = r.ReadInt32(); return },
		},
		{
			Write: func(w *Writer) { w.WriteUint8(c.StateFrequency) },
			Read:  func(r *Reader) (err error) { c.StateFrequency, err = r.ReadUint8(); return },
		},
		{
			Write: func(w *Writer) { w.WriteBool(c.ChatAllowed) },
			Read:  func(r *Reader) (err error) { c.ChatAllowed, err = r.ReadBool(); return },
		},
		{
			Write: func(w *Writer) { w.WriteBool(c.ReportsAllowed) },
			Read:  func(r *Reader) (err error) { c.ReportsAllowed, err = r.ReadBool(); return },
		},
	}
}

func (c *ConnectionAccepted) EncodeTo(w *Writer)         { EncodeFields(w, c.fields()) }
func (c *ConnectionAccepted) DecodeFrom(r *Reader) error { return DecodeFields(r, c.fields()) }

// VoteRequest is a peer's submission for the current vote.
type VoteRequest struct {
	Track   string
	Laps    uint8
	Reverse bool
	// HasHandicapTail is the forward-compatible optional tail field: an
	// older client simply never sets it, and the decoder leaves it
	// unset without erroring.
	HasHandicapTail bool
	HandicapTail    uint8
}

func (VoteRequest) MessageType() MessageType { return MsgVoteRequest }

func (v *VoteRequest) fields() []FieldSpec {
	return []FieldSpec{
		{
			Write: func(w *Writer) { w.WriteString(v.Track) },
			Read:  func(r *Reader) (err error) { v.Track, err = r.ReadString(); return },
		},
		{
			Write: func(w *Writer) { w.WriteUint8(v.Laps) },
			Read:  func(r *Reader) (err error) { v.Laps, err = r.ReadUint8(); return },
		},
		{
			Write: func(w *Writer) { w.WriteBool(v.Reverse) },
			Read:  func(r *Reader) (err error) { v.Reverse, err = r.ReadBool(); return },
		},
		{
			Optional: true,
			Write: func(w *Writer) {
				if v.HasHandicapTail {
					w.WriteUint8(v.HandicapTail)
				}
			},
			Read: func(r *Reader) error {
				val, err := r.ReadUint8()
				if err != nil {
					return err
				}
				v.HandicapTail = val
				v.HasHandicapTail = true
				return nil
			},
		},
	}
}

func (v *VoteRequest) EncodeTo(w *Writer)         { EncodeFields(w, v.fields()) }
func (v *VoteRequest) DecodeFrom(r *Reader) error { return DecodeFields(r, v.fields()) }

// Vote is the server's re-broadcast of a peer's vote.
type Vote struct {
	HostID uint32
	Vote   VoteRequest
}

func (Vote) MessageType() MessageType { return MsgVote }

func (v *Vote) fields() []FieldSpec {
	f := []FieldSpec{
		{
			Write: func(w *Writer) { w.WriteUint32(v.HostID) },
			Read:  func(r *Reader) (err error) { v.HostID, err = r.ReadUint32(); return },
		},
	}
	return append(f, v.Vote.fields()...)
}

func (v *Vote) EncodeTo(w *Writer)         { EncodeFields(w, v.fields()) }
func (v *Vote) DecodeFrom(r *Reader) error { return DecodeFields(r, v.fields()) }

// StartSelection begins the voting window.
type StartSelection struct {
	VotingTimeout   int32 // seconds
	NoKartSelection bool
	TrackVoting     bool
	Assets          []string
}

func (StartSelection) MessageType() MessageType { return MsgStartSelection }

func (s *StartSelection) fields() []FieldSpec {
	return []FieldSpec{
		{
			Write: func(w *Writer) { w.WriteInt32(s.VotingTimeout) },
			Read:  func(r *Reader) (err error) { s.VotingTimeout, err = r.ReadInt32(); return },
		},
		{
			Write: func(w *Writer) { w.WriteBool(s.NoKartSelection) },
			Read:  func(r *Reader) (err error) { s.NoKartSelection, err = r.ReadBool(); return },
		},
		{
			Write: func(w *Writer) { w.WriteBool(s.TrackVoting) },
			Read:  func(r *Reader) (err error) { s.TrackVoting, err = r.ReadBool(); return },
		},
		{
			Write: func(w *Writer) { WriteStringVector(w, s.Assets) },
			Read:  func(r *Reader) (err error) { s.Assets, err = ReadStringVector(r); return },
		},
	}
}

func (s *StartSelection) EncodeTo(w *Writer)         { EncodeFields(w, s.fields()) }
func (s *StartSelection) DecodeFrom(r *Reader) error { return DecodeFields(r, s.fields()) }

// LoadWorld carries the arbitrated winning vote.
type LoadWorld struct {
	Track        string
	Laps         uint8
	Reverse      bool
	WinnerPeerID uint32
}

func (LoadWorld) MessageType() MessageType { return MsgLoadWorld }

func (l *LoadWorld) fields() []FieldSpec {
	return []FieldSpec{
		{
			Write: func(w *Writer) { w.WriteString(l.Track) },
			Read:  func(r *Reader) (err error) { l.Track, err = r.ReadString(); return },
		},
		{
			Write: func(w *Writer) { w.WriteUint8(l.Laps) },
			Read:  func(r *Reader) (err error) { l.Laps, err = r.ReadUint8(); return },
		},
		{
			Write: func(w *Writer) { w.WriteBool(l.Reverse) },
			Read:  func(r *Reader) (err error) { l.Reverse, err = r.ReadBool(); return },
		},
		{
			Write: func(w *Writer) { w.WriteUint32(l.WinnerPeerID) },
			Read:  func(r *Reader) (err error) { l.WinnerPeerID, err = r.ReadUint32(); return },
		},
	}
}

func (l *LoadWorld) EncodeTo(w *Writer)         { EncodeFields(w, l.fields()) }
func (l *LoadWorld) DecodeFrom(r *Reader) error { return DecodeFields(r, l.fields()) }

// StartGame schedules the deterministic simultaneous start.
type StartGame struct {
	StartTimeUnixNano int64
	CheckCount        uint32
	ItemCompleteState []byte
}

func (StartGame) MessageType() MessageType { return MsgStartGame }

func (s *StartGame) fields() []FieldSpec {
	return []FieldSpec{
		{
			Write: func(w *Writer) { w.WriteUint64(uint64(s.StartTimeUnixNano)) },
			Read: func(r *Reader) error {
				v, err := r.ReadUint64()
				if err != nil {
					return err
				}
				s.StartTimeUnixNano = int64(v)
				return nil
			},
		},
		{
			Write: func(w *Writer) { w.WriteUint32(s.CheckCount) },
			Read:  func(r *Reader) (err error) { s.CheckCount, err = r.ReadUint32(); return },
		},
		{
			Write: func(w *Writer) { w.WriteBytes16(s.ItemCompleteState) },
			Read:  func(r *Reader) (err error) { s.ItemCompleteState, err = r.ReadBytes16(); return },
		},
	}
}

func (s *StartGame) EncodeTo(w *Writer)         { EncodeFields(w, s.fields()) }
func (s *StartGame) DecodeFrom(r *Reader) error { return DecodeFields(r, s.fields()) }

// PointChange is a per-player GP delta, nested inside RaceFinished.
type PointChange struct {
	HostID     uint32
	PointDelta int32
	NewPoints  int32
	NewTime    float32
}

func (p *PointChange) fields() []FieldSpec {
	return []FieldSpec{
		{
			Write: func(w *Writer) { w.WriteUint32(p.HostID) },
			Read:  func(r *Reader) (err error) { p.HostID, err = r.ReadUint32(); return },
		},
		{
			Write: func(w *Writer) { w.WriteInt32(p.PointDelta) },
			Read:  func(r *Reader) (err error) { p.PointDelta, err = r.ReadInt32(); return },
		},
		{
			Write: func(w *Writer) { w.WriteInt32(p.NewPoints) },
			Read:  func(r *Reader) (err error) { p.NewPoints, err = r.ReadInt32(); return },
		},
		{
			Write: func(w *Writer) { w.WriteFloat32(p.NewTime) },
			Read:  func(r *Reader) (err error) { p.NewTime, err = r.ReadFloat32(); return },
		},
	}
}

func writePointChanges(w *Writer, pcs []PointChange) {
	w.WriteUint8(uint8(len(pcs)))
	for i := range pcs {
		EncodeFields(w, pcs[i].fields())
	}
}

func readPointChanges(r *Reader) ([]PointChange, error) {
	n, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	out := make([]PointChange, n)
	for i := range out {
		if err := DecodeFields(r, out[i].fields()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// RaceFinished is broadcast at the end of a race.
type RaceFinished struct {
	HasFastestLap     bool
	FastestLapSeconds float32
	FastestKartName   string
	HasGPScores       bool
	PointChanges      []PointChange
}

func (RaceFinished) MessageType() MessageType { return MsgRaceFinished }

func (rf *RaceFinished) fields() []FieldSpec {
	return []FieldSpec{
		{
			Write: func(w *Writer) { w.WriteBool(rf.HasFastestLap) },
			Read:  func(r *Reader) (err error) { rf.HasFastestLap, err = r.ReadBool(); return },
		},
		{
			Write: func(w *Writer) {
				if rf.HasFastestLap {
					w.WriteFloat32(rf.FastestLapSeconds)
				}
			},
			Read: func(r *Reader) error {
				if !rf.HasFastestLap {
					return nil
				}
				var err error
				rf.FastestLapSeconds, err = r.ReadFloat32()
				return err
			},
		},
		{
			Write: func(w *Writer) {
				if rf.HasFastestLap {
					w.WriteString(rf.FastestKartName)
				}
			},
			Read: func(r *Reader) error {
				if !rf.HasFastestLap {
					return nil
				}
				var err error
				rf.FastestKartName, err = r.ReadString()
				return err
			},
		},
		{
			Write: func(w *Writer) { w.WriteBool(rf.HasGPScores) },
			Read:  func(r *Reader) (err error) { rf.HasGPScores, err = r.ReadBool(); return },
		},
		{
			Write: func(w *Writer) { writePointChanges(w, rf.PointChanges) },
			Read:  func(r *Reader) (err error) { rf.PointChanges, err = readPointChanges(r); return },
		},
	}
}

func (rf *RaceFinished) EncodeTo(w *Writer)         { EncodeFields(w, rf.fields()) }
func (rf *RaceFinished) DecodeFrom(r *Reader) error { return DecodeFields(r, rf.fields()) }

// BackLobbyReason enumerates why a peer is sent back to the lobby.
type BackLobbyReason uint8

const (
	BLRNone BackLobbyReason = iota
	BLRNoPlaceForLiveJoin
	BLRIdleKicked
	BLRClientError
	BLRServerReset
)

// BackLobby instructs a client to return to the lobby.
type BackLobby struct {
	Reason BackLobbyReason
}

func (BackLobby) MessageType() MessageType { return MsgBackLobby }

func (b *BackLobby) fields() []FieldSpec {
	return []FieldSpec{
		{
			Write: func(w *Writer) { w.WriteUint8(uint8(b.Reason)) },
			Read: func(r *Reader) error {
				v, err := r.ReadUint8()
				if err != nil {
					return err
				}
				b.Reason = BackLobbyReason(v)
				return nil
			},
		},
	}
}

func (b *BackLobby) EncodeTo(w *Writer)         { EncodeFields(w, b.fields()) }
func (b *BackLobby) DecodeFrom(r *Reader) error { return DecodeFields(r, b.fields()) }

// LiveJoinRequest asks to attach to an in-progress match.
type LiveJoinRequest struct {
	IsSpectator     bool
	HasPlayerKarts  bool
	PlayerKartNames []string
}

func (LiveJoinRequest) MessageType() MessageType { return MsgLiveJoinRequest }

func (l *LiveJoinRequest) fields() []FieldSpec {
	return []FieldSpec{
		{
			Write: func(w *Writer) { w.WriteBool(l.IsSpectator) },
			Read:  func(r *Reader) (err error) { l.IsSpectator, err = r.ReadBool(); return },
		},
		{
			Write: func(w *Writer) { w.WriteBool(l.HasPlayerKarts) },
			Read:  func(r *Reader) (err error) { l.HasPlayerKarts, err = r.ReadBool(); return },
		},
		{
			Write: func(w *Writer) {
				if l.HasPlayerKarts {
					WriteStringVector(w, l.PlayerKartNames)
				}
			},
			Read: func(r *Reader) error {
				if !l.HasPlayerKarts {
					return nil
				}
				var err error
				l.PlayerKartNames, err = ReadStringVector(r)
				return err
			},
		},
	}
}

func (l *LiveJoinRequest) EncodeTo(w *Writer)         { EncodeFields(w, l.fields()) }
func (l *LiveJoinRequest) DecodeFrom(r *Reader) error { return DecodeFields(r, l.fields()) }

// LiveJoin is the authoritative snapshot handed to a late joiner.
type LiveJoin struct {
	ClientStartingTime    float32
	LiveJoinStartTime     float32
	LastLiveJoinUtilTicks int32
	NimCompleteState      []byte
	WorldCompleteState    []byte
	HasInsideInfo         bool
	InsideInfo            []byte
}

func (LiveJoin) MessageType() MessageType { return MsgLiveJoin }

func (l *LiveJoin) fields() []FieldSpec {
	return []FieldSpec{
		{
			Write: func(w *Writer) { w.WriteFloat32(l.ClientStartingTime) },
			Read:  func(r *Reader) (err error) { l.ClientStartingTime, err = r.ReadFloat32(); return },
		},
		{
			Write: func(w *Writer) { w.WriteFloat32(l.LiveJoinStartTime) },
			Read:  func(r *Reader) (err error) { l.LiveJoinStartTime, err = r.ReadFloat32(); return },
		},
		{
			Write: func(w *Writer) { w.WriteInt32(l.LastLiveJoinUtilTicks) },
			Read:  func(r *Reader) (err error) { l.LastLiveJoinUtilTicks, err = r.ReadInt32(); return },
		},
		{
			Write: func(w *Writer) { w.WriteBytes16(l.NimCompleteState) },
			Read:  func(r *Reader) (err error) { l.NimCompleteState, err = r.ReadBytes16(); return },
		},
		{
			Write: func(w *Writer) { w.WriteBytes16(l.WorldCompleteState) },
			Read:  func(r *Reader) (err error) { l.WorldCompleteState, err = r.ReadBytes16(); return },
		},
		{
			Write: func(w *Writer) { w.WriteBool(l.HasInsideInfo) },
			Read:  func(r *Reader) (err error) { l.HasInsideInfo, err = r.ReadBool(); return },
		},
		{
			Write: func(w *Writer) {
				if l.HasInsideInfo {
					w.WriteBytes16(l.InsideInfo)
				}
			},
			Read: func(r *Reader) error {
				if !l.HasInsideInfo {
					return nil
				}
				var err error
				l.InsideInfo, err = r.ReadBytes16()
				return err
			},
		},
	}
}

func (l *LiveJoin) EncodeTo(w *Writer)         { EncodeFields(w, l.fields()) }
func (l *LiveJoin) DecodeFrom(r *Reader) error { return DecodeFields(r, l.fields()) }

// ChatMessage is a routed chat line; recipient predicates are applied
// server-side, not encoded on the wire.
type ChatMessage struct {
	SenderHostID uint32
	Text         string
	TeamOnly     bool
}

func (ChatMessage) MessageType() MessageType { return MsgChatMessage }

func (c *ChatMessage) fields() []FieldSpec {
	return []FieldSpec{
		{
			Write: func(w *Writer) { w.WriteUint32(c.SenderHostID) },
			Read:  func(r *Reader) (err error) { c.SenderHostID, err = r.ReadUint32(); return },
		},
		{
			Write: func(w *Writer) { w.WriteWString16(c.Text) },
			Read:  func(r *Reader) (err error) { c.Text, err = r.ReadWString16(); return },
		},
		{
			Write: func(w *Writer) { w.WriteBool(c.TeamOnly) },
			Read:  func(r *Reader) (err error) { c.TeamOnly, err = r.ReadBool(); return },
		},
	}
}

func (c *ChatMessage) EncodeTo(w *Writer)         { EncodeFields(w, c.fields()) }
func (c *ChatMessage) DecodeFrom(r *Reader) error { return DecodeFields(r, c.fields()) }
