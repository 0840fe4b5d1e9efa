package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"

	"github.com/runger/palette/internal/broker"
)

// peer is one connected UI stream.
type peer struct {
	id     int
	stream grpc.ServerStream
	sendMu sync.Mutex
}

func (p *peer) send(env broker.Envelope) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	return p.stream.SendMsg(&env)
}

// Server is the host end of the bridge. It implements broker.Transport:
// envelopes received from any connected UI are delivered to subscribers, and
// posted responses are routed back to the peer that sent the request.
type Server struct {
	grpcServer *grpc.Server
	logger     *slog.Logger
	subs       *subscribers

	mu       sync.Mutex
	peers    map[int]*peer
	nextPeer int
	routes   map[string]*peer // correlation id -> requesting peer
	closed   bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server's logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a bridge server. Call Serve to accept connections.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		logger: slog.Default(),
		subs:   newSubscribers(),
		peers:  make(map[int]*peer),
		routes: make(map[string]*peer),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.grpcServer = grpc.NewServer()
	s.grpcServer.RegisterService(&bridgeServiceDesc, s)
	return s
}

// Ensure Server implements broker.Transport.
var _ broker.Transport = (*Server)(nil)

// Serve accepts connections on lis until Close. It returns nil after Close.
func (s *Server) Serve(lis net.Listener) error {
	err := s.grpcServer.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Subscribe registers handler for envelopes arriving from any peer.
func (s *Server) Subscribe(handler func(broker.Envelope)) func() {
	return s.subs.add(handler)
}

// Post sends env to the peer that issued the matching request. Envelopes
// with no known route are sent to every connected peer.
func (s *Server) Post(ctx context.Context, env broker.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	var targets []*peer
	if env.Response != nil {
		if p, ok := s.routes[env.Response.ID]; ok {
			delete(s.routes, env.Response.ID)
			targets = append(targets, p)
		}
	}
	if len(targets) == 0 {
		for _, p := range s.peers {
			targets = append(targets, p)
		}
	}
	s.mu.Unlock()

	if len(targets) == 0 {
		return ErrNoPeer
	}

	var errs []error
	for _, p := range targets {
		if err := p.send(env); err != nil {
			errs = append(errs, fmt.Errorf("peer %d: %w", p.id, err))
		}
	}
	return errors.Join(errs...)
}

// channel serves one UI connection until it disconnects.
func (s *Server) channel(stream grpc.ServerStream) error {
	p, err := s.addPeer(stream)
	if err != nil {
		return err
	}
	defer s.removePeer(p)

	s.logger.Debug("bridge peer connected", "peer", p.id)
	for {
		var env broker.Envelope
		if err := stream.RecvMsg(&env); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				s.logger.Debug("bridge peer disconnected", "peer", p.id)
				return nil
			}
			s.logger.Debug("bridge peer receive failed", "peer", p.id, "error", err)
			return nil
		}

		if env.Message != nil {
			s.mu.Lock()
			s.routes[env.Message.ID] = p
			s.mu.Unlock()
		}
		s.subs.deliver(env)
	}
}

func (s *Server) addPeer(stream grpc.ServerStream) (*peer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	p := &peer{id: s.nextPeer, stream: stream}
	s.nextPeer++
	s.peers[p.id] = p
	return p, nil
}

func (s *Server) removePeer(p *peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, p.id)
	for id, routed := range s.routes {
		if routed == p {
			delete(s.routes, id)
		}
	}
}

// PeerCount returns the number of connected UIs.
func (s *Server) PeerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Close stops the gRPC server and drops every peer.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.grpcServer.Stop()
}
