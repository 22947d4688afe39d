package core

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"fixbridge/config"
	"fixbridge/internal/httpapi"
	"fixbridge/internal/metrics"
	"fixbridge/internal/retry"
	"fixbridge/internal/session"
	"fixbridge/internal/transport"
	"fixbridge/tunnel"
	"fixbridge/util"
)

// Build wires cfg into a BridgeMode.  cfg must already be validated.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	delim, err := cfg.FixDelimiter()
	if err != nil {
		return nil, err
	}

	sessCfg := session.Config{
		Host:           cfg.Host,
		Port:           cfg.Port,
		SenderCompID:   cfg.SenderCompID,
		TargetCompID:   cfg.TargetCompID,
		Username:       cfg.Username,
		Password:       cfg.Password,
		UseTLS:         cfg.UseTLS,
		Delimiter:      delim,
		RequestTimeout: cfg.RequestTimeout,
		ConnectTimeout: cfg.ConnectTimeout,
	}
	if cfg.GenerateIDs {
		sessCfg.NewID = uuid.NewString
	}

	m := metrics.New()
	dialer := buildDialer(cfg, logger)
	client := session.New(sessCfg, session.DialOpener{Dialer: dialer}, logger, m)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics.NewExporter(m, cfg.SenderCompID, cfg.TargetCompID),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	breakerLog := logger.Named("circuit")
	breaker := retry.NewCircuitBreaker(&retry.CircuitBreakerConfig{
		OnStateChange: func(from, to retry.State) {
			breakerLog.Warn("circuit %s -> %s", from, to)
		},
	})

	api := httpapi.New(client, httpapi.Options{
		Logger:         logger.Named("http").Zap(),
		Metrics:        m,
		Breaker:        breaker,
		Registry:       registry,
		StreamInterval: cfg.StreamInterval,
	})

	return &BridgeMode{
		Client:      client,
		Dialer:      dialer,
		API:         api,
		Backoff:     retry.ConnectBackoff(cfg.ConnectAttempts),
		Addr:        cfg.HTTPAddr,
		GracePeriod: config.DefaultGracePeriod,
		Logger:      logger,
	}, nil
}

// buildDialer creates the transport.Dialer for cfg: plain TCP or the
// SSH jump host, optionally upgraded to TLS.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	var d transport.Dialer
	if cfg.TunnelEnabled {
		d = transport.NewSSHDialer(tunnel.Config{
			User: cfg.TunnelUser,
			Host: cfg.TunnelHost,
			Port: cfg.TunnelPort,
			Auth: tunnel.Auth{
				KeyPath:  cfg.SSHKeyPath,
				Agent:    cfg.UseSSHAgent,
				Password: cfg.SSHPassword,
			},
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			Timeout:       cfg.ConnectTimeout,
			KeepAlive:     tunnel.DefaultKeepAlive,
		}, logger)
	} else {
		d = &transport.TCPDialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: tunnel.DefaultKeepAlive,
			LocalPort: cfg.SourcePort,
		}
	}

	if cfg.UseTLS {
		d = &transport.TLSDialer{Inner: d, Verify: cfg.TLSVerify}
	}
	return d
}

// describeDialer names the dialer chain for logs.
func describeDialer(d transport.Dialer) string {
	switch v := d.(type) {
	case *transport.TLSDialer:
		return "tls+" + describeDialer(v.Inner)
	case *transport.SSHDialer:
		return "ssh"
	case *transport.TCPDialer:
		return "tcp"
	default:
		return fmt.Sprintf("%T", d)
	}
}
