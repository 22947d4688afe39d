package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultDelimiter keeps the wire format readable by the legacy
	// counterparty test harness.
	DefaultDelimiter = "pipe"

	// DefaultRequestTimeout bounds one request/response round trip.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultConnectTimeout bounds dialing plus the TLS/SSH handshake.
	DefaultConnectTimeout = 30 * time.Second

	// DefaultConnectAttempts is how many times the startup connect is
	// tried before the server starts disconnected.
	DefaultConnectAttempts = 3

	// DefaultHTTPAddr is where the HTTP adapter listens.
	DefaultHTTPAddr = ":8000"

	// DefaultStreamInterval paces the WebSocket market-data stream.
	DefaultStreamInterval = time.Second

	// DefaultEnvFile is loaded if present.
	DefaultEnvFile = ".env"

	// DefaultGracePeriod is how long shutdown waits for in-flight
	// HTTP requests.
	DefaultGracePeriod = 5 * time.Second
)

// Defaults returns a Config with every default applied.
func Defaults() *Config {
	return &Config{
		Delimiter:       DefaultDelimiter,
		RequestTimeout:  DefaultRequestTimeout,
		ConnectTimeout:  DefaultConnectTimeout,
		ConnectAttempts: DefaultConnectAttempts,
		HTTPAddr:        DefaultHTTPAddr,
		StreamInterval:  DefaultStreamInterval,
		EnvFile:         DefaultEnvFile,
	}
}
