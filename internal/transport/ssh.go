package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"fixbridge/tunnel"
	"fixbridge/util"
)

// SSHDialer reaches the venue through an SSH jump host.  The tunnel is
// connected lazily on the first Dial call and torn down on Close, so
// a session reconnect reuses the same SSH client while it is alive.
type SSHDialer struct {
	tunnel tunnel.Tunnel
	config tunnel.Config
	logger *util.Logger
	mu     sync.Mutex
}

// NewSSHDialer creates a dialer that forwards connections through an
// SSH tunnel.  The tunnel is not connected until the first Dial.
func NewSSHDialer(cfg tunnel.Config, logger *util.Logger) *SSHDialer {
	t := tunnel.NewSSHTunnel(cfg, logger)
	return &SSHDialer{tunnel: t, config: t.Config(), logger: logger}
}

// connect (re)establishes the SSH tunnel if it is not alive.
func (d *SSHDialer) connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.tunnel.IsAlive() {
		return nil
	}

	d.logger.Verbose("establishing SSH tunnel to %s", d.config)

	if err := d.tunnel.Connect(ctx); err != nil {
		return fmt.Errorf("tunnel: %w", err)
	}

	d.logger.Verbose("SSH tunnel established")
	return nil
}

// Dial connects to address through the SSH tunnel.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.connect(ctx); err != nil {
		return nil, err
	}
	return d.tunnel.Dial(ctx, network, address)
}

// Close tears down the underlying SSH tunnel.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tunnel.Close()
}
