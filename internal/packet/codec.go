// Package packet implements the lobby wire protocol: length-delimited
// records carrying big-endian fixed-width integers, IEEE-754 floats,
// and length-prefixed strings. Every message type declares its layout
// once, as an ordered list of FieldSpec values, and EncodeFields /
// DecodeFields are the single generic routines that walk that list in
// both directions -- a message's Fields method is its serialisation,
// not a separate hand-written encoder and decoder pair.
package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// ErrDecode is returned whenever a required field cannot be read off
// the wire.
var ErrDecode = errors.New("protocol decode error")

// Channel identifies which logical channel a Packet travels on.
// Synchronous/reliable delivery is a channel-level property, not a
// per-message one.
type Channel uint8

const (
	ChannelLobbyRoom Channel = iota
	ChannelGameEvents
	ChannelGameSetup
	ChannelGameplay
)

// ChannelProperties describes the delivery semantics of a Channel.
type ChannelProperties struct {
	Synchronous bool
	Reliable    bool
}

var channelTable = map[Channel]ChannelProperties{
	ChannelLobbyRoom:  {Synchronous: true, Reliable: true},
	ChannelGameEvents: {Synchronous: true, Reliable: true},
	ChannelGameSetup:  {Synchronous: true, Reliable: true},
	ChannelGameplay:   {Synchronous: false, Reliable: false},
}

// PropertiesOf returns the synchronous/reliable flags for a channel.
func PropertiesOf(c Channel) ChannelProperties { return channelTable[c] }

// MessageType is the one-byte discriminator that begins every record.
type MessageType uint8

// Encoder is implemented by every concrete packet value. EncodeTo is
// expected to be a one-line call into EncodeFields over the value's own
// Fields() table, keeping the field list the only place a message's
// layout is written down.
type Encoder interface {
	MessageType() MessageType
	EncodeTo(w *Writer)
}

// Decoder is the encode/decode dual of Encoder.
type Decoder interface {
	DecodeFrom(r *Reader) error
}

// Writer accumulates an outbound packet body, big-endian throughout.
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) WriteUint8(v uint8)   { w.buf.WriteByte(v) }
func (w *Writer) WriteUint16(v uint16) { binary.Write(&w.buf, binary.BigEndian, v) }
func (w *Writer) WriteUint32(v uint32) { binary.Write(&w.buf, binary.BigEndian, v) }
func (w *Writer) WriteUint64(v uint64) { binary.Write(&w.buf, binary.BigEndian, v) }
func (w *Writer) WriteInt8(v int8)     { binary.Write(&w.buf, binary.BigEndian, v) }
func (w *Writer) WriteInt32(v int32)   { binary.Write(&w.buf, binary.BigEndian, v) }
func (w *Writer) WriteFloat32(v float32) {
	binary.Write(&w.buf, binary.BigEndian, math.Float32bits(v))
}
func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

// WriteVec3 encodes a position or velocity as three float32.
func (w *Writer) WriteVec3(x, y, z float32) {
	w.WriteFloat32(x)
	w.WriteFloat32(y)
	w.WriteFloat32(z)
}

// WriteQuat encodes an orientation as four float32.
func (w *Writer) WriteQuat(x, y, z, wv float32) {
	w.WriteFloat32(x)
	w.WriteFloat32(y)
	w.WriteFloat32(z)
	w.WriteFloat32(wv)
}

// WriteBytes16 writes a 16-bit length prefix followed by raw bytes --
// the framing used for opaque physics and item-state blobs that the
// lobby itself never interprets.
func (w *Writer) WriteBytes16(b []byte) {
	w.WriteUint16(uint16(len(b)))
	w.buf.Write(b)
}

// WriteString writes an 8-bit length-prefixed UTF-8 string (profile
// names, short labels).
func (w *Writer) WriteString(s string) {
	b := []byte(s)
	if len(b) > 255 {
		b = b[:255]
	}
	w.WriteUint8(uint8(len(b)))
	w.buf.Write(b)
}

// MaxWString16 is the maximum code-unit length for wstring16 (chat).
const MaxWString16 = 360

// WriteWString16 writes a 16-bit length-prefixed UTF-8 string, capped
// at MaxWString16 code units (runes).
func (w *Writer) WriteWString16(s string) {
	r := []rune(s)
	if len(r) > MaxWString16 {
		r = r[:MaxWString16]
	}
	b := []byte(string(r))
	w.WriteUint16(uint16(len(b)))
	w.buf.Write(b)
}

// Reader walks an inbound packet body. It snapshots its offset before
// attempting an optional field so a failed read restores exactly the
// pre-attempt position -- this is what gives the codec forward
// compatibility with senders built against an older schema.
type Reader struct {
	data []byte
	pos  int
}

func NewReader(data []byte) *Reader { return &Reader{data: data} }

// Offset returns the current read position, for manual snapshotting.
func (r *Reader) Offset() int { return r.pos }

// Seek restores a previously captured offset.
func (r *Reader) Seek(pos int) { r.pos = pos }

// Remaining reports how many bytes are left unread.
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

func (r *Reader) require(n int) error {
	if r.Remaining() < n {
		return errors.Wrapf(ErrDecode, "need %d bytes, have %d", n, r.Remaining())
	}
	return nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	if err := r.require(1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.require(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.require(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.require(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) ReadInt8() (int8, error) {
	v, err := r.ReadUint8()
	return int8(v), err
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadUint8()
	return v != 0, err
}

func (r *Reader) ReadVec3() (x, y, z float32, err error) {
	if x, err = r.ReadFloat32(); err != nil {
		return
	}
	if y, err = r.ReadFloat32(); err != nil {
		return
	}
	z, err = r.ReadFloat32()
	return
}

func (r *Reader) ReadQuat() (x, y, z, w float32, err error) {
	if x, err = r.ReadFloat32(); err != nil {
		return
	}
	if y, err = r.ReadFloat32(); err != nil {
		return
	}
	if z, err = r.ReadFloat32(); err != nil {
		return
	}
	w, err = r.ReadFloat32()
	return
}

func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint8()
	if err != nil {
		return "", err
	}
	if err := r.require(int(n)); err != nil {
		return "", err
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

// ReadBytes16 reads back what WriteBytes16 wrote.
func (r *Reader) ReadBytes16() ([]byte, error) {
	n, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	if err := r.require(int(n)); err != nil {
		return nil, err
	}
	out := append([]byte(nil), r.data[r.pos:r.pos+int(n)]...)
	r.pos += int(n)
	return out, nil
}

func (r *Reader) ReadWString16() (string, error) {
	n, err := r.ReadUint16()
	if err != nil {
		return "", err
	}
	if err := r.require(int(n)); err != nil {
		return "", err
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	runes := []rune(s)
	if len(runes) > MaxWString16 {
		return "", errors.Wrap(ErrDecode, "wstring16 exceeds max code units")
	}
	return s, nil
}

// TryOptional runs fn to decode an optional field. If no bytes remain,
// or fn fails with an error wrapping ErrDecode (such as running out of
// bytes part-way), the read offset is restored and the field is left
// unset; errors that do not wrap ErrDecode propagate. This is what lets
// a newer decoder accept a record written by an older, shorter schema.
func (r *Reader) TryOptional(fn func(*Reader) error) (present bool, err error) {
	start := r.pos
	if r.Remaining() == 0 {
		return false, nil
	}
	if e := fn(r); e != nil {
		if errors.Is(e, ErrDecode) {
			r.Seek(start)
			return false, nil
		}
		return false, e
	}
	return true, nil
}

// FieldSpec is one field of a packet's declared wire layout: a closure
// pair that both directions share, so the layout is written down once.
// Write and Read must each be no-ops (and Read must return nil without
// consuming bytes) when the field does not apply to this value -- a
// packet with conditional fields closes over its own already-known
// state to decide that, rather than the table carrying a predicate.
type FieldSpec struct {
	Write func(w *Writer)
	Read  func(r *Reader) error
	// Optional marks a forward-compatible tail field whose absence (an
	// older sender that never wrote it) must not be treated as a
	// decode error. Read is driven through TryOptional instead of
	// being called directly.
	Optional bool
}

// EncodeFields writes every field in fields, in declared order.
func EncodeFields(w *Writer, fields []FieldSpec) {
	for _, f := range fields {
		f.Write(w)
	}
}

// DecodeFields reads every field in fields, in declared order.
func DecodeFields(r *Reader, fields []FieldSpec) error {
	for _, f := range fields {
		if f.Optional {
			if _, err := r.TryOptional(f.Read); err != nil {
				return err
			}
			continue
		}
		if err := f.Read(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteStringVector writes an 8-bit count followed by that many
// length-prefixed strings.
func WriteStringVector(w *Writer, vals []string) {
	w.WriteUint8(uint8(len(vals)))
	for _, s := range vals {
		w.WriteString(s)
	}
}

// ReadStringVector reads back what WriteStringVector wrote.
func ReadStringVector(r *Reader) ([]string, error) {
	n, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = r.ReadString(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Encode serialises a packet: message-type byte followed by the
// packet's own field encoding.
func Encode(p Encoder) []byte {
	w := NewWriter()
	w.WriteUint8(uint8(p.MessageType()))
	p.EncodeTo(w)
	return w.Bytes()
}

// Decode reads the message-type byte and dispatches into dst, which
// must already be the correctly-typed zero value for that message.
func Decode(data []byte, dst Decoder) error {
	r := NewReader(data)
	if _, err := r.ReadUint8(); err != nil {
		return errors.Wrap(err, "packet: missing message-type byte")
	}
	if err := dst.DecodeFrom(r); err != nil {
		return fmt.Errorf("packet: decode %T: %w", dst, err)
	}
	return nil
}
