// Package cmd wires up the CLI flags, resolves the configuration from
// every source, and runs the bridge.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	flag "github.com/spf13/pflag"

	"fixbridge/config"
	"fixbridge/internal/core"
	"fixbridge/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X fixbridge/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// options are flags that steer the CLI itself rather than the bridge.
type options struct {
	dryRun       bool
	listSections bool
	showVersion  bool
	showHelp     bool
	quiet        bool
}

// Execute parses args and runs the bridge until ctx is cancelled.
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, args, os.Stdout)
}

func execute(ctx context.Context, args []string, stdout io.Writer) error {
	// First pass: find --config / --section / --env-file so the lower
	// precedence sources can be loaded before flags are applied.
	early := config.Defaults()
	fs, opts := newFlagSet(early)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.showHelp {
		printUsage(fs)
		return nil
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "fixbridge %s\n", version)
		return nil
	}

	if opts.listSections {
		return listSections(early.ConfigFile, stdout)
	}

	cfg, err := resolve(early)
	if err != nil {
		return err
	}
	// CountVar resets its target, so carry FIXBRIDGE_VERBOSE over.
	envVerbose := cfg.Verbose
	fs, opts = newFlagSet(cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.Verbose += envVerbose

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── tunnel spec ──────────────────────────────────────────────
	if err := cfg.ApplyTunnelSpec(); err != nil {
		return fmt.Errorf("tunnel: %w", err)
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if opts.dryRun {
		fmt.Fprint(stdout, cfg.String())
		return nil
	}

	if cfg.PromptPassword {
		pass, err := util.PromptSecret(fmt.Sprintf("FIX password for %s", cfg.Username))
		if err != nil {
			return err
		}
		cfg.Password = pass
	}

	// ── build components ─────────────────────────────────────────
	logger := newLogger(cfg, opts.quiet)
	defer logger.Sync() //nolint:errcheck

	if cfg.Verbose < 2 {
		gin.SetMode(gin.ReleaseMode)
	}

	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// resolve layers defaults, the config file, .env and the environment.
// Flags are applied on top by the caller.
func resolve(early *config.Config) (*config.Config, error) {
	cfg := config.Defaults()
	cfg.ConfigFile = early.ConfigFile
	cfg.Section = early.Section
	cfg.EnvFile = early.EnvFile

	if err := config.LoadDotEnv(cfg.EnvFile); err != nil {
		return nil, fmt.Errorf("load %s: %w", cfg.EnvFile, err)
	}
	if cfg.ConfigFile != "" {
		if err := config.LoadFile(cfg.ConfigFile, cfg.Section, cfg); err != nil {
			return nil, err
		}
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}

func newFlagSet(cfg *config.Config) (*flag.FlagSet, *options) {
	opts := &options{}
	fs := flag.NewFlagSet("fixbridge", flag.ContinueOnError)

	// ── session ──────────────────────────────────────────────────
	fs.StringVarP(&cfg.Host, "host", "H", cfg.Host, "Venue host")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Venue port")
	fs.StringVar(&cfg.SenderCompID, "sender", cfg.SenderCompID, "SenderCompID (49)")
	fs.StringVar(&cfg.TargetCompID, "target", cfg.TargetCompID, "TargetCompID (56)")
	fs.StringVarP(&cfg.Username, "username", "U", cfg.Username, "Logon username (553)")
	fs.StringVar(&cfg.Password, "password", cfg.Password, "Logon password (554); prefer --prompt-password or FIXBRIDGE_PASSWORD")
	fs.BoolVar(&cfg.PromptPassword, "prompt-password", cfg.PromptPassword, "Read the logon password from the terminal")
	fs.BoolVar(&cfg.UseTLS, "tls", cfg.UseTLS, "Wrap the venue connection in TLS")
	fs.BoolVar(&cfg.TLSVerify, "tls-verify", cfg.TLSVerify, "Verify the venue certificate and hostname")
	fs.StringVar(&cfg.Delimiter, "delimiter", cfg.Delimiter, "Field delimiter: pipe or soh")
	fs.BoolVar(&cfg.GenerateIDs, "generate-ids", cfg.GenerateIDs, "Use random ClOrdID/MDReqID instead of fixed ids")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "Round-trip timeout")
	fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "Dial and handshake timeout")
	fs.IntVar(&cfg.ConnectAttempts, "connect-retries", cfg.ConnectAttempts, "Startup connect attempts")
	fs.IntVar(&cfg.SourcePort, "source-port", cfg.SourcePort, "Bind the venue connection to this local port")

	// ── SSH jump host ────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Reach the venue via SSH [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── HTTP ─────────────────────────────────────────────────────
	fs.StringVarP(&cfg.HTTPAddr, "listen", "l", cfg.HTTPAddr, "HTTP listen address")
	fs.DurationVar(&cfg.StreamInterval, "stream-interval", cfg.StreamInterval, "WebSocket market-data interval")

	// ── sources ──────────────────────────────────────────────────
	fs.StringVarP(&cfg.ConfigFile, "config", "c", cfg.ConfigFile, "Config file (JSON, YAML, TOML)")
	fs.StringVar(&cfg.Section, "section", cfg.Section, "Config file section, e.g. Pricing or Trading")
	fs.StringVar(&cfg.EnvFile, "env-file", cfg.EnvFile, "Dotenv file loaded into the environment")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVarP(&opts.quiet, "quiet", "q", false, "Log errors only")
	fs.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "Log as JSON")

	fs.BoolVar(&opts.listSections, "list-sections", false, "List the session sections of --config and exit")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Print the resolved configuration and exit")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&opts.showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }
	return fs, opts
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional accepts an optional "host port" pair.
func parsePositional(cfg *config.Config, remaining []string) error {
	switch len(remaining) {
	case 0:
		return nil
	case 2:
		port, err := strconv.Atoi(remaining[1])
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid port %q", remaining[1])
		}
		cfg.Host = remaining[0]
		cfg.Port = port
		return nil
	case 1:
		return fmt.Errorf("port required after host %q", remaining[0])
	default:
		return fmt.Errorf("too many arguments: %v", remaining)
	}
}

func listSections(path string, w io.Writer) error {
	if path == "" {
		return fmt.Errorf("--list-sections requires --config")
	}
	sections, err := config.Sections(path)
	if err != nil {
		return err
	}
	for _, s := range sections {
		fmt.Fprintln(w, s)
	}
	return nil
}

// newLogger maps -v/-q onto logger verbosity: the default is normal
// output, each -v raises it, -q drops to errors only.
func newLogger(cfg *config.Config, quiet bool) *util.Logger {
	level := int(util.LogNormal) + cfg.Verbose
	if quiet {
		level = int(util.LogQuiet)
	}
	if cfg.LogJSON {
		return util.NewJSONLogger(level)
	}
	return util.NewLogger(level)
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `fixbridge v%s

HTTP/WebSocket bridge to a FIX 4.4 counterparty session.

Usage:
  fixbridge [options] [host port]

Configuration sources, highest first: flags, FIXBRIDGE_* environment
(after --env-file is loaded), --config file, built-in defaults.

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  fixbridge --sender CLIENT --target SERVER 127.0.0.1 9878
  fixbridge -c config.json --section Trading --prompt-password
  fixbridge -T ops@bastion --tls venue.internal 32478
  fixbridge -c config.json --section Pricing --dry-run
`)
}
