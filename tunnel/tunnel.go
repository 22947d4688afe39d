// Package tunnel carries the venue connection through an SSH jump
// host, for counterparties that only accept traffic from a whitelisted
// bastion.  It is backed by golang.org/x/crypto/ssh.
package tunnel

import (
	"context"
	"net"
	"strconv"
	"time"
)

const (
	DefaultPort      = 22
	DefaultTimeout   = 30 * time.Second
	DefaultKeepAlive = 30 * time.Second
)

// Tunnel is an established path into the venue's network.
type Tunnel interface {
	// Connect reaches the jump host.  It is a no-op while alive.
	Connect(ctx context.Context) error

	// Dial opens a connection to address from the far side.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	Close() error
	IsAlive() bool
}

// Config describes the jump host and how to authenticate to it.
type Config struct {
	User string
	Host string
	Port int // 0 = DefaultPort
	Auth Auth

	// StrictHostKey verifies the jump host against KnownHosts
	// (~/.ssh/known_hosts when empty).
	StrictHostKey bool
	KnownHosts    string

	Timeout   time.Duration // dial and handshake, 0 = DefaultTimeout
	KeepAlive time.Duration // keepalive@openssh.com interval, 0 disables
}

// Addr returns host:port of the jump host.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) String() string {
	if c.User == "" {
		return c.Addr()
	}
	return c.User + "@" + c.Addr()
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}
