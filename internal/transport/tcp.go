package transport

import (
	"context"
	"net"
	"time"
)

// TCPDialer opens plain TCP connections to the venue.  Some venues
// whitelist the client's source port as well as its address; LocalPort
// pins it.
type TCPDialer struct {
	Timeout   time.Duration
	KeepAlive time.Duration // 0 = Go default, negative disables
	LocalPort int           // 0 = ephemeral
}

// Dial connects to address over TCP.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	nd := net.Dialer{Timeout: d.Timeout, KeepAlive: d.KeepAlive}
	if d.LocalPort > 0 {
		nd.LocalAddr = &net.TCPAddr{Port: d.LocalPort}
	}
	return nd.DialContext(ctx, network, address)
}

// Close is a no-op; TCPDialer holds no state between dials.
func (d *TCPDialer) Close() error { return nil }
