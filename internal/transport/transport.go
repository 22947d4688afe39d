// Package transport moves raw bytes to and from the counterparty.
// It knows nothing about the protocol: dialers decide how a byte
// stream is established (plain TCP, TLS, or through an SSH jump
// host) and Conn exposes blocking send/receive bounded by a context.
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	ncerr "fixbridge/internal/errors"
	"fixbridge/util"
)

// Dialer opens outbound network connections.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}

// Stream is the duplex byte stream a session talks over.
type Stream interface {
	Send(ctx context.Context, b []byte) error
	Receive(ctx context.Context, max int) ([]byte, error)
	Close() error
	RemoteAddr() string
}

// Conn is a Stream over a net.Conn.
type Conn struct {
	nc   net.Conn
	addr string

	mu     sync.Mutex
	closed bool
}

// Open dials address with d.  Failures are *errors.NetworkError with
// Op "connect"; no stream is returned on failure.
func Open(ctx context.Context, d Dialer, address string) (*Conn, error) {
	nc, err := d.Dial(ctx, "tcp", address)
	if err != nil {
		return nil, ncerr.Wrap(ncerr.OpConnect, address, err)
	}
	return NewConn(nc, address), nil
}

// NewConn wraps an established connection.
func NewConn(nc net.Conn, address string) *Conn {
	return &Conn{nc: nc, addr: address}
}

// RemoteAddr returns the address the stream was opened to.
func (c *Conn) RemoteAddr() string { return c.addr }

// Send writes all of b.  It returns when the OS has accepted every
// byte, ctx is done, or the write fails.
func (c *Conn) Send(ctx context.Context, b []byte) error {
	if c.isClosed() {
		return ncerr.Wrap(ncerr.OpSend, c.addr, net.ErrClosed)
	}
	disarm := c.arm(ctx)
	defer disarm()

	for len(b) > 0 {
		n, err := c.nc.Write(b)
		if err != nil {
			return ncerr.Wrap(ncerr.OpSend, c.addr, ctxErr(ctx, err))
		}
		b = b[n:]
	}
	return nil
}

// Receive blocks until at least one byte arrives, the peer closes the
// connection, or ctx is done.  It returns at most max bytes.  A
// peer-initiated close yields (nil, nil).
func (c *Conn) Receive(ctx context.Context, max int) ([]byte, error) {
	if c.isClosed() {
		return nil, ncerr.Wrap(ncerr.OpReceive, c.addr, net.ErrClosed)
	}
	if max <= 0 {
		max = util.ReceiveBufSize
	}
	disarm := c.arm(ctx)
	defer disarm()

	buf := util.GetBuf()
	defer util.PutBuf(buf)
	scratch := *buf
	if max < len(scratch) {
		scratch = scratch[:max]
	} else if max > len(scratch) {
		scratch = make([]byte, max)
	}

	// Only io.EOF means the peer closed.  An empty read with no error
	// is retried, as bufio does, before giving up with ErrNoProgress.
	for empty := 0; ; empty++ {
		n, err := c.nc.Read(scratch)
		if n > 0 {
			out := make([]byte, n)
			copy(out, scratch[:n])
			return out, nil
		}
		switch {
		case errors.Is(err, io.EOF):
			return nil, nil
		case err != nil:
			return nil, ncerr.Wrap(ncerr.OpReceive, c.addr, ctxErr(ctx, err))
		case empty+1 >= maxEmptyReads:
			return nil, ncerr.Wrap(ncerr.OpReceive, c.addr, io.ErrNoProgress)
		}
	}
}

// maxEmptyReads bounds consecutive (0, nil) reads in Receive.
const maxEmptyReads = 100

// Close releases the socket.  Closing twice, or closing a nil *Conn,
// is a no-op.
func (c *Conn) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.nc.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// arm applies ctx's deadline to the socket and interrupts blocked I/O
// when ctx is cancelled.
func (c *Conn) arm(ctx context.Context) func() {
	dl, _ := ctx.Deadline()
	c.nc.SetDeadline(dl) //nolint:errcheck

	stop := context.AfterFunc(ctx, func() {
		c.nc.SetDeadline(time.Unix(1, 0)) //nolint:errcheck
	})
	return func() { stop() }
}

// ctxErr prefers the context's reason over the socket's deadline error.
func ctxErr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		if errors.Is(cerr, context.DeadlineExceeded) {
			return errors.Join(ncerr.ErrTimeout, cerr)
		}
		return cerr
	}
	return err
}
