// Package transport frames lobby packets onto TCP connections: each
// record is a 4-byte big-endian length prefix followed by the
// message-type byte and the packet's own field encoding. It is the
// network layer the Lobby State Machine treats as an external
// collaborator.
package transport

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"stklobby/internal/lobby"
	"stklobby/internal/packet"
)

// MaxRecordSize bounds a single inbound record, guarding against a
// malformed or hostile length prefix forcing an unbounded allocation.
const MaxRecordSize = 1 << 20

// Server accepts TCP connections, runs the handshake, and pumps
// decoded packets into a Lobby while relaying outbound packets back
// onto the owning connection.
type Server struct {
	log   zerolog.Logger
	Lobby *lobby.Lobby

	mu    sync.Mutex
	conns map[uint32]net.Conn
}

// New constructs a Server. Callers must still set Lobby before
// accepting connections, and typically pass Sender() to lobby.New so
// the lobby's outbound packets reach this Server's connections.
func New(log zerolog.Logger) *Server {
	return &Server{log: log, conns: map[uint32]net.Conn{}}
}

// Sender returns the lobby.Sender this Server backs, wiring the
// lobby's only two transport touchpoints.
func (s *Server) Sender() lobby.Sender {
	return lobby.Sender{Send: s.send, Broadcast: s.broadcast}
}

func (s *Server) send(hostID uint32, msg packet.Encoder) {
	s.mu.Lock()
	conn, ok := s.conns[hostID]
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := writeFrame(conn, msg); err != nil {
		s.log.Debug().Err(err).Uint32("hostID", hostID).Msg("send failed")
	}
}

func (s *Server) broadcast(msg packet.Encoder, exclude ...uint32) {
	excluded := make(map[uint32]struct{}, len(exclude))
	for _, h := range exclude {
		excluded[h] = struct{}{}
	}
	s.mu.Lock()
	targets := make(map[uint32]net.Conn, len(s.conns))
	for hostID, conn := range s.conns {
		if _, skip := excluded[hostID]; skip {
			continue
		}
		targets[hostID] = conn
	}
	s.mu.Unlock()
	for hostID, conn := range targets {
		if err := writeFrame(conn, msg); err != nil {
			s.log.Debug().Err(err).Uint32("hostID", hostID).Msg("broadcast failed")
		}
	}
}

// AcceptLoop accepts connections on lis until it returns an error
// (typically because lis was closed during shutdown).
func (s *Server) AcceptLoop(lis net.Listener) {
	for {
		conn, err := lis.Accept()
		if err != nil {
			s.log.Info().Err(err).Msg("accept loop stopped")
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	msgType, body, err := readFrame(r)
	if err != nil {
		s.log.Debug().Err(err).Msg("handshake: failed to read first frame")
		return
	}
	if msgType != packet.MsgConnectionRequested {
		s.log.Debug().Uint8("msgType", uint8(msgType)).Msg("handshake: unexpected first message")
		return
	}
	var req packet.ConnectionRequested
	if err := packet.Decode(prependType(msgType, body), &req); err != nil {
		s.log.Debug().Err(err).Msg("handshake: decode failed")
		return
	}

	ipv4, ipv6 := addrToBits(conn.RemoteAddr())
	result := s.Lobby.HandleConnectionRequested(conn.RemoteAddr(), &req, ipv4, ipv6)
	if result.Refused != nil {
		writeFrame(conn, result.Refused)
		return
	}

	hostID := result.Accepted.HostID
	s.mu.Lock()
	s.conns[hostID] = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, hostID)
		s.mu.Unlock()
		s.Lobby.Disconnect(hostID, 0, 0)
	}()

	writeFrame(conn, result.Accepted)

	for {
		msgType, body, err := readFrame(r)
		if err != nil {
			if err != io.EOF {
				s.log.Debug().Err(err).Uint32("hostID", hostID).Msg("connection read error")
			}
			return
		}
		s.dispatch(hostID, msgType, body)
	}
}

func (s *Server) dispatch(hostID uint32, msgType packet.MessageType, body []byte) {
	raw := prependType(msgType, body)
	switch msgType {
	case packet.MsgVoteRequest:
		var v packet.VoteRequest
		if err := packet.Decode(raw, &v); err == nil {
			s.Lobby.HandleVoteRequest(hostID, &v)
		}
	case packet.MsgWorldLoaded:
		var w packet.WorldLoaded
		if err := packet.Decode(raw, &w); err == nil {
			s.Lobby.HandleWorldLoaded(hostID, &w)
		}
	case packet.MsgRaceFinishedAck:
		s.Lobby.HandleRaceFinishedAck(hostID)
	case packet.MsgLiveJoinRequest:
		var lj packet.LiveJoinRequest
		if err := packet.Decode(raw, &lj); err == nil {
			s.Lobby.HandleLiveJoinRequest(hostID, &lj)
		}
	case packet.MsgChatMessage:
		var c packet.ChatMessage
		if err := packet.Decode(raw, &c); err == nil {
			c.SenderHostID = hostID
			s.Lobby.HandleChatMessage(hostID, &c)
		}
	default:
		s.log.Debug().Uint8("msgType", uint8(msgType)).Uint32("hostID", hostID).Msg("unhandled message type")
	}
}

func writeFrame(w io.Writer, msg packet.Encoder) error {
	body := packet.Encode(msg)
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(body)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// readFrame reads one length-delimited record and returns its
// message-type byte and remaining body (the type byte itself is
// consumed here, not included in body).
func readFrame(r *bufio.Reader) (packet.MessageType, []byte, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return 0, nil, err
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	if n == 0 || n > MaxRecordSize {
		return 0, nil, io.ErrUnexpectedEOF
	}
	record := make([]byte, n)
	if _, err := io.ReadFull(r, record); err != nil {
		return 0, nil, err
	}
	return packet.MessageType(record[0]), record[1:], nil
}

// prependType reattaches the message-type byte so packet.Decode (which
// expects to re-read and discard it) sees the same layout it produces
// on encode.
func prependType(msgType packet.MessageType, body []byte) []byte {
	out := make([]byte, 0, len(body)+1)
	out = append(out, byte(msgType))
	return append(out, body...)
}

// addrToBits extracts an IPv4 bit pattern and/or IPv6 string from a
// net.Addr, leaving the other zero/empty when not applicable -- the
// ban-list lookups key on whichever is non-zero.
func addrToBits(addr net.Addr) (ipv4 uint32, ipv6 string) {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return 0, ""
	}
	if v4 := tcpAddr.IP.To4(); v4 != nil {
		return binary.BigEndian.Uint32(v4), ""
	}
	if v6 := tcpAddr.IP.To16(); v6 != nil {
		return 0, v6.String()
	}
	return 0, ""
}
