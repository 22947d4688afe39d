// Package config defines the runtime configuration for fixbridge and
// the helpers that load it from a config file, the environment, and
// the command line.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ncerr "fixbridge/internal/errors"
	"fixbridge/internal/fix"
	"fixbridge/util"
)

// Config holds every tuneable for one bridge process.
type Config struct {
	// ── Counterparty session ─────────────────────────────────────────
	Host         string
	Port         int
	SenderCompID string
	TargetCompID string
	Username     string
	Password     string
	UseTLS       bool
	TLSVerify    bool   // verify the venue certificate and hostname
	Delimiter    string // "pipe" or "soh"
	GenerateIDs  bool   // uuid ClOrdID / MDReqID instead of fixed ids

	PromptPassword bool // read Password from the terminal

	RequestTimeout  time.Duration
	ConnectTimeout  time.Duration
	ConnectAttempts int
	SourcePort      int // local port to bind when dialing directly, 0 = ephemeral

	// ── SSH jump host ────────────────────────────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── HTTP adapter ─────────────────────────────────────────────────
	HTTPAddr       string
	StreamInterval time.Duration

	// ── Sources ──────────────────────────────────────────────────────
	ConfigFile string // --config
	Section    string // "Pricing" / "Trading" block in the config file
	EnvFile    string // .env path

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
	LogJSON bool
}

// Address returns host:port of the counterparty.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// FixDelimiter returns the parsed wire delimiter.
func (c *Config) FixDelimiter() (fix.Delimiter, error) {
	if c.Delimiter == "" {
		return fix.Pipe, nil
	}
	return fix.ParseDelimiter(c.Delimiter)
}

// ApplyTunnelSpec parses TunnelSpec into the Tunnel* fields.
func (c *Config) ApplyTunnelSpec() error {
	if c.TunnelSpec == "" {
		return nil
	}
	user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
	if err != nil {
		return err
	}
	c.TunnelEnabled = true
	c.TunnelUser = user
	c.TunnelHost = host
	c.TunnelPort = port
	return nil
}

// String renders the resolved configuration with secrets masked.
func (c *Config) String() string {
	var b strings.Builder
	row := func(k string, v interface{}) { fmt.Fprintf(&b, "  %-16s %v\n", k, v) }
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "****"
	}

	b.WriteString("session:\n")
	row("address", c.Address())
	row("sender", c.SenderCompID)
	row("target", c.TargetCompID)
	row("username", c.Username)
	row("password", mask(c.Password))
	row("tls", c.UseTLS)
	row("tls-verify", c.TLSVerify)
	row("delimiter", c.Delimiter)
	row("generate-ids", c.GenerateIDs)
	row("request-timeout", c.RequestTimeout)
	row("connect-timeout", c.ConnectTimeout)
	row("connect-retries", c.ConnectAttempts)
	if c.SourcePort != 0 {
		row("source-port", c.SourcePort)
	}
	if c.TunnelEnabled {
		b.WriteString("ssh:\n")
		row("jump-host", fmt.Sprintf("%s@%s:%d", c.TunnelUser, c.TunnelHost, c.TunnelPort))
		row("key", c.SSHKeyPath)
		row("agent", c.UseSSHAgent)
		row("strict-hostkey", c.StrictHostKey)
	}
	b.WriteString("http:\n")
	row("listen", c.HTTPAddr)
	row("stream-interval", c.StreamInterval)
	return b.String()
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q: expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is complete and consistent.
// Failures are *errors.ConfigError with a hint naming every source the
// value can come from.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return &ncerr.ConfigError{
			Field:   "host",
			Message: "venue host is required",
			Hint:    "pass --host, set FIXBRIDGE_HOST, or SocketConnectHost in the config file",
		}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &ncerr.ConfigError{
			Field:   "port",
			Value:   c.Port,
			Message: "must be 1-65535",
			Hint:    "pass --port, set FIXBRIDGE_PORT, or SocketConnectPort in the config file",
		}
	}
	if c.SenderCompID == "" {
		return &ncerr.ConfigError{Field: "sender", Message: "SenderCompID is required",
			Hint: "pass --sender or set FIXBRIDGE_SENDER_COMP_ID"}
	}
	if c.TargetCompID == "" {
		return &ncerr.ConfigError{Field: "target", Message: "TargetCompID is required",
			Hint: "pass --target or set FIXBRIDGE_TARGET_COMP_ID"}
	}
	if _, err := c.FixDelimiter(); err != nil {
		return &ncerr.ConfigError{Field: "delimiter", Value: c.Delimiter, Message: err.Error(),
			Hint: "use pipe for the test harness or soh for a standard venue"}
	}
	if c.RequestTimeout <= 0 {
		return &ncerr.ConfigError{Field: "request-timeout", Value: c.RequestTimeout,
			Message: "must be positive", Hint: "a stalled venue would otherwise block requests forever"}
	}
	if c.ConnectTimeout < 0 {
		return &ncerr.ConfigError{Field: "connect-timeout", Value: c.ConnectTimeout, Message: "must not be negative"}
	}
	if c.ConnectAttempts < 1 {
		return &ncerr.ConfigError{Field: "connect-retries", Value: c.ConnectAttempts, Message: "must be at least 1"}
	}
	if c.StreamInterval <= 0 {
		return &ncerr.ConfigError{Field: "stream-interval", Value: c.StreamInterval, Message: "must be positive"}
	}
	if c.HTTPAddr == "" {
		return &ncerr.ConfigError{Field: "listen", Message: "HTTP listen address is required", Hint: "e.g. --listen :8000"}
	}
	if _, port, err := util.SplitAddr(c.HTTPAddr); err != nil || port < 0 || port > 65535 {
		return &ncerr.ConfigError{Field: "listen", Value: c.HTTPAddr, Message: "must be [host]:port",
			Hint: "e.g. --listen :8000 or --listen 127.0.0.1:8000"}
	}
	if c.TunnelEnabled && c.TunnelHost == "" {
		return &ncerr.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: "tunnel host is required",
			Hint: "use -T user@host[:port]"}
	}
	if c.SourcePort < 0 || c.SourcePort > 65535 {
		return &ncerr.ConfigError{Field: "source-port", Value: c.SourcePort, Message: "must be 0-65535"}
	}
	if c.SourcePort != 0 && c.TunnelEnabled {
		return &ncerr.ConfigError{Field: "source-port", Value: c.SourcePort,
			Message: "cannot be combined with --tunnel", Hint: "the jump host picks the source port"}
	}
	if c.TLSVerify && !c.UseTLS {
		return &ncerr.ConfigError{Field: "tls-verify", Message: "requires --tls"}
	}
	return nil
}
