package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"fixbridge/internal/httpapi"
	"fixbridge/internal/retry"
	"fixbridge/internal/session"
	"fixbridge/internal/transport"
	"fixbridge/util"
)

// BridgeMode connects the session at startup and serves the HTTP
// adapter until ctx is cancelled.
type BridgeMode struct {
	Client      *session.Client
	Dialer      transport.Dialer
	API         *httpapi.Server
	Backoff     *retry.Backoff
	Addr        string
	GracePeriod time.Duration
	Logger      *util.Logger

	// OnListen, when set, receives the bound address before the
	// startup connect begins.  Tests use it with port 0.
	OnListen func(net.Addr)
}

// Run listens, connects with backoff, and serves.  A failed startup
// connect is logged and the server still starts disconnected.  On
// cancellation open streams are closed, in-flight requests get
// GracePeriod to finish, and the session is disconnected.
func (m *BridgeMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	ln, err := net.Listen("tcp", m.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", m.Addr, err)
	}
	if m.OnListen != nil {
		m.OnListen(ln.Addr())
	}

	m.connect(ctx)

	srv := &http.Server{
		Handler:           m.API.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()
	m.Logger.Info("listening on http://%s", ln.Addr())

	select {
	case err := <-serveErr:
		m.Client.Disconnect() //nolint:errcheck
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	m.Logger.Info("shutting down")
	m.API.CloseStreams()

	grace := m.GracePeriod
	if grace <= 0 {
		grace = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	err = srv.Shutdown(shutdownCtx)
	if derr := m.Client.Disconnect(); derr != nil {
		m.Logger.Warn("disconnect: %v", derr)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		m.Logger.Warn("in-flight requests did not finish within %v", grace)
		return nil
	}
	return err
}

// connect performs the startup connect.
func (m *BridgeMode) connect(ctx context.Context) {
	cfg := m.Client.Config()
	m.Logger.Verbose("connecting to %s via %s", cfg.Address(), describeDialer(m.Dialer))

	b := *m.Backoff
	b.OnRetry = func(attempt int, err error, wait time.Duration) {
		m.Logger.Warn("connect attempt %d failed: %v (retrying in %v)", attempt, err, wait.Truncate(time.Millisecond))
	}
	err := b.Do(ctx, func(ctx context.Context, _ int) error {
		return m.Client.Connect(ctx)
	})
	if err != nil {
		m.Logger.Error("FIX connection error: %v", err)
	}
}
