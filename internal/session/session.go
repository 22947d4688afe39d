// Package session implements the client side of a single counterparty
// session: it owns the connection handle, builds Logon,
// MarketDataRequest and NewOrderSingle messages, and pairs each
// request with the next inbound read.
//
// A response is the next message received, not necessarily the one
// matching the request.  The client does not correlate by ClOrdID or
// MDReqID and does not track sequence numbers.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ncerr "fixbridge/internal/errors"
	"fixbridge/internal/fix"
	"fixbridge/internal/metrics"
	"fixbridge/internal/transport"
	"fixbridge/util"
)

// DefaultRequestTimeout bounds a request round trip when the config
// leaves RequestTimeout unset.
const DefaultRequestTimeout = 10 * time.Second

// Config is the immutable session configuration.
type Config struct {
	Host         string
	Port         int
	SenderCompID string
	TargetCompID string
	Username     string
	Password     string
	UseTLS       bool

	Delimiter      fix.Delimiter
	RequestTimeout time.Duration
	ConnectTimeout time.Duration

	// Now and NewID are passed to the message builder.
	Now   func() time.Time
	NewID func() string
}

// Address returns host:port.
func (c Config) Address() string {
	return util.FormatAddr(c.Host, c.Port)
}

// Opener creates the connection handle.
type Opener interface {
	Open(ctx context.Context, address string) (transport.Stream, error)
}

// DialOpener opens streams with a transport.Dialer.
type DialOpener struct {
	Dialer transport.Dialer
}

// Open implements Opener.
func (o DialOpener) Open(ctx context.Context, address string) (transport.Stream, error) {
	c, err := transport.Open(ctx, o.Dialer, address)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, address string) (transport.Stream, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, address string) (transport.Stream, error) {
	return f(ctx, address)
}

// Response is the raw bytes of one inbound read.  Raw is nil when the
// peer closed the connection instead of answering.
type Response struct {
	Raw []byte
}

// Empty reports whether nothing was received.
func (r *Response) Empty() bool { return r == nil || len(r.Raw) == 0 }

// String returns the response as text, or "" when empty.
func (r *Response) String() string {
	if r.Empty() {
		return ""
	}
	return string(r.Raw)
}

// MsgType returns tag 35 of the first message in the response, or ""
// if it cannot be decoded.
func (r *Response) MsgType() string {
	if r.Empty() {
		return ""
	}
	msg, _, err := fix.Parse(r.Raw)
	if err != nil {
		return ""
	}
	return msg.MsgType()
}

// Messages decodes every complete message in the response.  A venue
// may batch several (e.g. a heartbeat followed by the answer) into one
// read.
func (r *Response) Messages() ([]*fix.Message, error) {
	if r.Empty() {
		return nil, nil
	}
	return fix.ParseAll(r.Raw)
}

// describe names the message types in r for logs.
func (r *Response) describe() string {
	msgs, err := r.Messages()
	if err != nil || len(msgs) == 0 {
		return "undecodable data"
	}
	names := make([]string, len(msgs))
	for i, m := range msgs {
		names[i] = fix.Summary(m)
	}
	return strings.Join(names, ", ")
}

// Client is a session client.  All methods are safe for concurrent
// use; request round trips are serialized so a response is never read
// by the wrong caller.
type Client struct {
	cfg     Config
	opener  Opener
	builder *fix.Builder
	logger  *util.Logger
	metrics *metrics.Collector

	// reqMu serializes connect and round trips.
	reqMu sync.Mutex

	mu     sync.RWMutex
	stream transport.Stream
}

// New returns a disconnected client.  logger and m may be nil.
func New(cfg Config, opener Opener, logger *util.Logger, m *metrics.Collector) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Delimiter == 0 {
		cfg.Delimiter = fix.Pipe
	}
	if logger == nil {
		logger = util.NewLogger(int(util.LogQuiet))
	}
	return &Client{
		cfg:    cfg,
		opener: opener,
		builder: &fix.Builder{
			SenderCompID: cfg.SenderCompID,
			TargetCompID: cfg.TargetCompID,
			Delimiter:    cfg.Delimiter,
			Now:          cfg.Now,
			NewID:        cfg.NewID,
		},
		logger:  logger.Named("session"),
		metrics: m,
	}
}

// Config returns the client's configuration.
func (c *Client) Config() Config { return c.cfg }

// Builder returns the message builder bound to this session.
func (c *Client) Builder() *fix.Builder { return c.builder }

// IsConnected reports whether a connection handle is held.  It does
// not imply the counterparty accepted the logon.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stream != nil
}

// Connect opens the connection and sends Logon.  It fails with
// ErrAlreadyConnected if a handle is already held.  If the logon
// cannot be sent the handle is closed and the client stays
// disconnected.
func (c *Client) Connect(ctx context.Context) error {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	if c.IsConnected() {
		return ncerr.ErrAlreadyConnected
	}

	addr := c.cfg.Address()
	if c.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
	}

	c.logger.Verbose("connecting to %s (tls=%v)", addr, c.cfg.UseTLS)
	stream, err := c.opener.Open(ctx, addr)
	if err != nil {
		c.metrics.ConnectFailed()
		c.metrics.RecordError(err.Error())
		c.logger.Error("connect %s: %v", addr, err)
		return err
	}

	logon := c.builder.Logon(c.cfg.Username, c.cfg.Password)
	if err := c.send(ctx, stream, logon); err != nil {
		stream.Close() //nolint:errcheck
		c.metrics.ConnectFailed()
		c.logger.Error("logon to %s: %v", addr, err)
		return err
	}

	c.mu.Lock()
	c.stream = stream
	c.mu.Unlock()
	c.metrics.Connected()
	c.logger.Info("connected to %s as %s -> %s", addr, c.cfg.SenderCompID, c.cfg.TargetCompID)
	return nil
}

// Disconnect closes and clears the connection handle.  It is a no-op
// when disconnected and may be called while a round trip is blocked,
// which then fails with a receive error.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()

	if stream == nil {
		return nil
	}
	c.metrics.Disconnected()
	c.logger.Info("disconnected from %s", stream.RemoteAddr())
	return stream.Close()
}

// RequestMarketData sends a MarketDataRequest for symbol and returns
// the next message received.
func (c *Client) RequestMarketData(ctx context.Context, symbol string) (*Response, error) {
	msg, err := c.builder.MarketDataRequest(symbol)
	if err != nil {
		c.metrics.RecordRejected()
		return nil, err
	}
	return c.roundTrip(ctx, msg)
}

// PlaceOrder sends a NewOrderSingle and returns the next message
// received.  Invalid orders fail with a *errors.ValidationError before
// any network I/O.
func (c *Client) PlaceOrder(ctx context.Context, o fix.Order) (*Response, error) {
	msg, err := c.builder.NewOrder(o)
	if err != nil {
		c.metrics.RecordRejected()
		return nil, err
	}
	return c.roundTrip(ctx, msg)
}

// roundTrip performs one send and exactly one receive.  The caller
// may stop waiting when ctx ends, but an exchange already on the wire
// runs to completion under the request timeout so its answer is never
// read by the next request.  Only a transport failure, timeout, or
// peer close drops the handle.
func (c *Client) roundTrip(ctx context.Context, msg []byte) (*Response, error) {
	type result struct {
		resp *Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := c.exchange(ctx, msg)
		done <- result{resp, err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) exchange(caller context.Context, msg []byte) (*Response, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	// Gave up while queued: nothing was sent, so nothing to finish.
	if err := caller.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	stream := c.stream
	c.mu.RUnlock()
	if stream == nil {
		return nil, ncerr.ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(caller), c.cfg.RequestTimeout)
	defer cancel()
	start := time.Now()

	if err := c.send(ctx, stream, msg); err != nil {
		c.fail(stream, err)
		return nil, err
	}

	raw, err := stream.Receive(ctx, util.ReceiveBufSize)
	if err != nil {
		c.fail(stream, err)
		return nil, err
	}
	c.metrics.MessageReceived(len(raw))
	if len(raw) == 0 {
		c.logger.Warn("%s closed the connection", stream.RemoteAddr())
		c.drop(stream)
		return &Response{}, nil
	}

	c.metrics.RoundTrip(time.Since(start))
	resp := &Response{Raw: raw}
	c.logger.Verbose("recv %s (%d bytes)", resp.describe(), len(raw))
	c.logger.Debug("recv %s", fix.Redact(raw))
	return resp, nil
}

func (c *Client) send(ctx context.Context, stream transport.Stream, msg []byte) error {
	c.logger.Debug("send %s", fix.Redact(msg))
	if err := stream.Send(ctx, msg); err != nil {
		return err
	}
	c.metrics.MessageSent(len(msg))
	return nil
}

func (c *Client) fail(stream transport.Stream, err error) {
	if ncerr.IsTimeout(err) {
		c.metrics.RecordTimeout()
	}
	c.metrics.RecordError(err.Error())
	c.logger.Error("%v", err)
	c.drop(stream)
}

// drop clears the handle if it is still stream.
func (c *Client) drop(stream transport.Stream) {
	c.mu.Lock()
	current := c.stream == stream
	if current {
		c.stream = nil
	}
	c.mu.Unlock()

	stream.Close() //nolint:errcheck
	if current {
		c.metrics.Disconnected()
	}
}

// String describes the session for logs.
func (c *Client) String() string {
	state := "disconnected"
	if c.IsConnected() {
		state = "connected"
	}
	return fmt.Sprintf("%s->%s@%s (%s)", c.cfg.SenderCompID, c.cfg.TargetCompID, c.cfg.Address(), state)
}
