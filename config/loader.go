package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables, after .env is loaded  (this file)
//   3. Config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every supported variable.
const EnvPrefix = "FIXBRIDGE_"

// LoadDotEnv loads path into the process environment without
// overriding variables that are already set.  A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ── Environment variable mapping ─────────────────────────────────────
//
// Boolean values accept "1", "true", "yes" (case-insensitive).
// Durations accept Go syntax ("1500ms") or a bare number of seconds.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	setString(&cfg.Host, "HOST")
	if v := envInt("SOURCE_PORT"); v > 0 {
		cfg.SourcePort = v
	}
	if v := envInt("PORT"); v > 0 {
		cfg.Port = v
	}
	setString(&cfg.SenderCompID, "SENDER_COMP_ID")
	setString(&cfg.TargetCompID, "TARGET_COMP_ID")
	setString(&cfg.Username, "USERNAME")
	setString(&cfg.Password, "PASSWORD")
	setBool(&cfg.UseTLS, "USE_TLS")
	setBool(&cfg.TLSVerify, "TLS_VERIFY")
	setString(&cfg.Delimiter, "DELIMITER")
	setBool(&cfg.GenerateIDs, "GENERATE_IDS")
	setBool(&cfg.PromptPassword, "PROMPT_PASSWORD")
	setDuration(&cfg.RequestTimeout, "REQUEST_TIMEOUT")
	setDuration(&cfg.ConnectTimeout, "CONNECT_TIMEOUT")
	if v := envInt("CONNECT_ATTEMPTS"); v > 0 {
		cfg.ConnectAttempts = v
	}

	// SSH jump host
	setString(&cfg.TunnelSpec, "TUNNEL")
	setString(&cfg.SSHKeyPath, "SSH_KEY")
	setBool(&cfg.SSHPassword, "SSH_PASSWORD")
	setBool(&cfg.UseSSHAgent, "SSH_AGENT")
	setBool(&cfg.StrictHostKey, "STRICT_HOSTKEY")
	setString(&cfg.KnownHostsPath, "KNOWN_HOSTS")

	// HTTP adapter
	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setDuration(&cfg.StreamInterval, "STREAM_INTERVAL")

	// Output
	if v := envInt("VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	setBool(&cfg.LogJSON, "LOG_JSON")
}

// ── helpers ──────────────────────────────────────────────────────────

func getenv(key string) string {
	return os.Getenv(EnvPrefix + key)
}

func setString(dst *string, key string) {
	if v := getenv(key); v != "" {
		*dst = v
	}
}

// setBool only ever switches a flag on; an unset or unrecognised
// value leaves the current setting alone.
func setBool(dst *bool, key string) {
	if envBool(key) {
		*dst = true
	}
}

func setDuration(dst *time.Duration, key string) {
	if d, ok := parseDuration(getenv(key)); ok {
		*dst = d
	}
}

func envInt(key string) int {
	v := getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	return parseBool(getenv(key))
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

func parseDuration(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
		return time.Duration(n * float64(time.Second)), true
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
