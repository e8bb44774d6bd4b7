package adminrpc

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// AdminServer implements AdminServiceServer over whatever lobby state
// is published to it via SetPeers/SetMatch/SetStandings/PublishEvent.
// It mirrors the teacher's CarServer: a single RWMutex guarding the
// snapshot fields, and a set of per-client channels fanned out to on
// every PublishEvent, exactly like StreamRaceUpdates's clients map.
type AdminServer struct {
	log zerolog.Logger

	mu        sync.RWMutex
	peers     []PeerInfo
	match     MatchStatus
	standings []GPStanding
	clients   map[chan *LobbyEvent]struct{}
}

// NewAdminServer constructs an AdminServer with no peers and an empty
// client set.
func NewAdminServer(log zerolog.Logger) *AdminServer {
	return &AdminServer{
		log:     log,
		clients: make(map[chan *LobbyEvent]struct{}),
	}
}

// SetPeers replaces the published peer list.
func (s *AdminServer) SetPeers(peers []PeerInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers = peers
}

// SetMatch replaces the published match status.
func (s *AdminServer) SetMatch(match MatchStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.match = match
}

// SetStandings replaces the published GP standings.
func (s *AdminServer) SetStandings(standings []GPStanding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.standings = standings
}

// GetStatus returns a snapshot of the currently published state.
func (s *AdminServer) GetStatus(ctx context.Context, req *StatusRequest) (*StatusResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &StatusResponse{
		Peers:     append([]PeerInfo(nil), s.peers...),
		Match:     s.match,
		Standings: append([]GPStanding(nil), s.standings...),
	}, nil
}

// PublishEvent fans an event out to every subscribed admin stream,
// dropping it for any client whose buffer is full rather than
// blocking the publisher (mirroring the teacher's non-blocking
// channel send in its physics loop broadcast).
func (s *AdminServer) PublishEvent(ev *LobbyEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.clients {
		select {
		case ch <- ev:
		default:
			s.log.Warn().Str("kind", ev.Kind).Msg("admin event stream client is slow, dropping event")
		}
	}
}

// StreamLobbyEvents subscribes the caller to every future PublishEvent
// call until the stream's context is cancelled.
func (s *AdminServer) StreamLobbyEvents(req *StreamRequest, stream AdminService_StreamLobbyEventsServer) error {
	ch := make(chan *LobbyEvent, 16)
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, ch)
		close(ch)
		s.mu.Unlock()
	}()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.Send(ev); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return stream.Context().Err()
		}
	}
}
