package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
)

// TLSDialer upgrades connections from Inner to TLS.
//
// With Verify unset the handshake skips both hostname and certificate
// checks, which is what the UAT counterparties require.  Never run
// against production with Verify off.
type TLSDialer struct {
	Inner  Dialer
	Verify bool
	// Config overrides the generated client config when non-nil.
	Config *tls.Config
}

// Dial opens the inner connection and completes the TLS handshake.
func (d *TLSDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	raw, err := d.Inner.Dial(ctx, network, address)
	if err != nil {
		return nil, err
	}

	cfg := d.clientConfig(address)
	conn := tls.Client(raw, cfg)
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}
	return conn, nil
}

func (d *TLSDialer) clientConfig(address string) *tls.Config {
	if d.Config != nil {
		return d.Config.Clone()
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		host = address
	}
	return &tls.Config{
		ServerName:         host,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !d.Verify, //nolint:gosec // permissive by configuration
	}
}

// Close releases the inner dialer.
func (d *TLSDialer) Close() error { return d.Inner.Close() }
