package tunnel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "fixbridge/internal/errors"
	"fixbridge/util"
)

// SSHTunnel is a [Tunnel] over a single ssh.Client.  Each venue
// connection is a direct-tcpip channel on that client.
type SSHTunnel struct {
	cfg    Config
	logger *util.Logger

	mu     sync.RWMutex
	client *ssh.Client
}

// NewSSHTunnel returns an unconnected tunnel.
func NewSSHTunnel(cfg Config, logger *util.Logger) *SSHTunnel {
	if logger == nil {
		logger = util.NewLogger(int(util.LogQuiet))
	}
	return &SSHTunnel{cfg: cfg.withDefaults(), logger: logger}
}

// Config returns the effective configuration.
func (t *SSHTunnel) Config() Config { return t.cfg }

// Connect dials the jump host and authenticates.  Failures are
// *errors.SSHError with Op "auth", "hostkey" or "handshake", or a
// *errors.NetworkError when the jump host is unreachable.
func (t *SSHTunnel) Connect(ctx context.Context) error {
	if t.IsAlive() {
		return nil
	}

	methods, err := t.cfg.Auth.Methods()
	if err != nil {
		return ncerr.WrapSSH("auth", t.cfg.Host, t.cfg.Port, err)
	}
	check, err := t.cfg.hostKeyCallback(t.logger)
	if err != nil {
		return ncerr.WrapSSH("hostkey", t.cfg.Host, t.cfg.Port, err)
	}
	var rejected error
	verify := func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		rejected = check(hostname, remote, key)
		return rejected
	}

	addr := t.cfg.Addr()
	t.logger.Debug("SSH: dialing %s", t.cfg)
	nd := net.Dialer{Timeout: t.cfg.Timeout}
	nc, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return ncerr.Wrap(ncerr.OpConnect, addr, err)
	}

	// The handshake has no context of its own.
	deadline := time.Now().Add(t.cfg.Timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	nc.SetDeadline(deadline) //nolint:errcheck
	stop := context.AfterFunc(ctx, func() { nc.SetDeadline(time.Unix(1, 0)) }) //nolint:errcheck

	conn, chans, reqs, err := ssh.NewClientConn(nc, addr, &ssh.ClientConfig{
		User:            t.cfg.User,
		Auth:            methods,
		HostKeyCallback: verify,
		Timeout:         t.cfg.Timeout,
	})
	stop()
	if err != nil {
		nc.Close()
		switch {
		case rejected != nil:
			return ncerr.WrapSSH("hostkey", t.cfg.Host, t.cfg.Port, rejected)
		case strings.Contains(err.Error(), "unable to authenticate"):
			return ncerr.WrapSSH("auth", t.cfg.Host, t.cfg.Port, err)
		default:
			return ncerr.WrapSSH("handshake", t.cfg.Host, t.cfg.Port, err)
		}
	}
	nc.SetDeadline(time.Time{}) //nolint:errcheck

	client := ssh.NewClient(conn, chans, reqs)
	done := make(chan struct{})

	t.mu.Lock()
	t.client = client
	t.mu.Unlock()

	go t.watch(client, done)
	if t.cfg.KeepAlive > 0 {
		go t.keepAlive(client, done)
	}
	t.logger.Verbose("SSH: connected to %s", t.cfg)
	return nil
}

// Dial opens a direct-tcpip channel to address.
func (t *SSHTunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	t.mu.RLock()
	client := t.client
	t.mu.RUnlock()
	if client == nil {
		return nil, ncerr.ErrNotConnected
	}

	conn, err := client.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("via %s: %w", t.cfg.Addr(), err)
	}
	return conn, nil
}

// Close disconnects from the jump host.  Channels opened by Dial are
// closed with it.
func (t *SSHTunnel) Close() error {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.mu.Unlock()

	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// IsAlive reports whether the SSH connection is up.
func (t *SSHTunnel) IsAlive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.client != nil
}

// watch forgets client once its connection ends.
func (t *SSHTunnel) watch(client *ssh.Client, done chan struct{}) {
	err := client.Wait()
	close(done)

	t.mu.Lock()
	if t.client == client {
		t.client = nil
	}
	t.mu.Unlock()
	t.logger.Debug("SSH: connection to %s closed: %v", t.cfg.Addr(), err)
}

func (t *SSHTunnel) keepAlive(client *ssh.Client, done <-chan struct{}) {
	tick := time.NewTicker(t.cfg.KeepAlive)
	defer tick.Stop()

	for {
		select {
		case <-done:
			return
		case <-tick.C:
		}
		if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
			t.logger.Warn("SSH: keepalive to %s failed: %v", t.cfg.Addr(), err)
			client.Close()
			return
		}
	}
}
