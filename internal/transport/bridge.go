package transport

import (
	"sync"

	"google.golang.org/grpc"

	"github.com/runger/palette/internal/broker"
)

// channelMethod is the full method name of the bridge stream.
const channelMethod = "/palette.bridge.v1.Bridge/Channel"

// bridgeService is implemented by Server; grpc checks registrations against it.
type bridgeService interface {
	channel(stream grpc.ServerStream) error
}

var bridgeServiceDesc = grpc.ServiceDesc{
	ServiceName: "palette.bridge.v1.Bridge",
	HandlerType: (*bridgeService)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Channel",
			Handler:       channelHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "palette/bridge",
}

func channelHandler(srv any, stream grpc.ServerStream) error {
	return srv.(bridgeService).channel(stream)
}

// subscribers is the handler set shared by both bridge endpoints.
type subscribers struct {
	mu       sync.RWMutex
	handlers map[int]func(broker.Envelope)
	nextID   int
}

func newSubscribers() *subscribers {
	return &subscribers{handlers: make(map[int]func(broker.Envelope))}
}

func (s *subscribers) add(handler func(broker.Envelope)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.handlers[id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.handlers, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers) deliver(env broker.Envelope) {
	s.mu.RLock()
	handlers := make([]func(broker.Envelope), 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.RUnlock()

	for _, h := range handlers {
		h(env)
	}
}

func (s *subscribers) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}
