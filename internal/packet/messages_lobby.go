package packet

// PlayerListEntry describes one connected player for the PlayerList
// broadcast.
type PlayerListEntry struct {
	HostID      uint32
	Username    string
	OnlineID    uint32
	IsSpectator bool
	IsCrowned   bool
}

func (p *PlayerListEntry) fields() []FieldSpec {
	return []FieldSpec{
		{
			Write: func(w *Writer) { w.WriteUint32(p.HostID) },
			Read:  func(r *Reader) (err error) { p.HostID, err = r.ReadUint32(); return },
		},
		{
			Write: func(w *Writer) { w.WriteString(p.Username) },
			Read:  func(r *Reader) (err error) { p.Username, err = r.ReadString(); return },
		},
		{
			Write: func(w *Writer) { w.WriteUint32(p.OnlineID) },
			Read:  func(r *Reader) (err error) { p.OnlineID, err = r.ReadUint32(); return },
		},
		{
			Write: func(w *Writer) { w.WriteBool(p.IsSpectator) },
			Read:  func(r *Reader) (err error) { p.IsSpectator, err = r.ReadBool(); return },
		},
		{
			Write: func(w *Writer) { w.WriteBool(p.IsCrowned) },
			Read:  func(r *Reader) (err error) { p.IsCrowned, err = r.ReadBool(); return },
		},
	}
}

// PlayerList is broadcast whenever the connected-player set changes.
type PlayerList struct {
	Players []PlayerListEntry
}

func (PlayerList) MessageType() MessageType { return MsgPlayerList }

func (p *PlayerList) fields() []FieldSpec {
	return []FieldSpec{
		{
			Write: func(w *Writer) {
				w.WriteUint16(uint16(len(p.Players)))
				for i := range p.Players {
					EncodeFields(w, p.Players[i].fields())
				}
			},
			Read: func(r *Reader) error {
				n, err := r.ReadUint16()
				if err != nil {
					return err
				}
				p.Players = make([]PlayerListEntry, n)
				for i := range p.Players {
					if err := DecodeFields(r, p.Players[i].fields()); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}

func (p *PlayerList) EncodeTo(w *Writer)         { EncodeFields(w, p.fields()) }
func (p *PlayerList) DecodeFrom(r *Reader) error { return DecodeFields(r, p.fields()) }

// WorldLoaded is the client's acknowledgement that it finished
// constructing the selected world.
type WorldLoaded struct {
	ClientRTTMillis uint32
}

func (WorldLoaded) MessageType() MessageType { return MsgWorldLoaded }

func (w2 *WorldLoaded) fields() []FieldSpec {
	return []FieldSpec{
		{
			Write: func(w *Writer) { w.WriteUint32(w2.ClientRTTMillis) },
			Read:  func(r *Reader) (err error) { w2.ClientRTTMillis, err = r.ReadUint32(); return },
		},
	}
}

func (w2 *WorldLoaded) EncodeTo(w *Writer)         { EncodeFields(w, w2.fields()) }
func (w2 *WorldLoaded) DecodeFrom(r *Reader) error { return DecodeFields(r, w2.fields()) }

// RaceFinishedAck is the client's acknowledgement of RaceFinished.
type RaceFinishedAck struct{}

func (RaceFinishedAck) MessageType() MessageType    { return MsgRaceFinishedAck }
func (*RaceFinishedAck) EncodeTo(w *Writer)         {}
func (*RaceFinishedAck) DecodeFrom(r *Reader) error { return nil }
