package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/runger/palette/internal/broker"
)

// DialTimeout is the default time allowed to reach the host.
const DialTimeout = 2 * time.Second

// Client is the UI end of the bridge. It implements broker.Transport over a
// single bidirectional stream to the host.
type Client struct {
	conn   *grpc.ClientConn
	stream grpc.ClientStream
	cancel context.CancelFunc
	logger *slog.Logger
	subs   *subscribers

	sendMu sync.Mutex

	done      chan struct{}
	errMu     sync.Mutex
	err       error
	closeOnce sync.Once
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the client's logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Dial connects to the host listening on socketPath and opens the bridge
// stream. ctx bounds the connection attempt only.
func Dial(ctx context.Context, socketPath string, opts ...ClientOption) (*Client, error) {
	sock := NewUnixSocket(socketPath)
	if !sock.Exists() {
		return nil, fmt.Errorf("%w: %s", ErrSocketNotFound, sock.Path())
	}

	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return sock.DialContext(ctx)
	}

	//nolint:staticcheck // Using deprecated DialContext for blocking connection behavior
	conn, err := grpc.DialContext(
		ctx,
		"passthrough:///"+sock.Path(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(dialer),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	stream, err := conn.NewStream(streamCtx, &bridgeServiceDesc.Streams[0], channelMethod)
	if err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("failed to open bridge stream: %w", err)
	}

	c := &Client{
		conn:   conn,
		stream: stream,
		cancel: cancel,
		logger: slog.Default(),
		subs:   newSubscribers(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.recvLoop()
	return c, nil
}

// Ensure Client implements broker.Transport.
var _ broker.Transport = (*Client)(nil)

// Post sends env to the host.
func (c *Client) Post(ctx context.Context, env broker.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.done:
		return c.closedErr()
	default:
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.stream.SendMsg(&env); err != nil {
		return fmt.Errorf("send envelope: %w", err)
	}
	return nil
}

// Subscribe registers handler for envelopes arriving from the host.
func (c *Client) Subscribe(handler func(broker.Envelope)) func() {
	return c.subs.add(handler)
}

func (c *Client) recvLoop() {
	for {
		var env broker.Envelope
		if err := c.stream.RecvMsg(&env); err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Debug("bridge receive stopped", "error", err)
			}
			c.finish(err)
			return
		}
		c.subs.deliver(env)
	}
}

func (c *Client) finish(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) closedErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil || errors.Is(c.err, io.EOF) {
		return ErrClosed
	}
	return fmt.Errorf("%w: %v", ErrClosed, c.err)
}

// Done is closed once the stream to the host ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close ends the stream and the connection.
func (c *Client) Close() error {
	c.sendMu.Lock()
	_ = c.stream.CloseSend()
	c.sendMu.Unlock()

	c.cancel()
	err := c.conn.Close()
	<-c.done
	return err
}
