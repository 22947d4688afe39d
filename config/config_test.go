package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	ncerr "fixbridge/internal/errors"
	"fixbridge/internal/fix"
)

// ── ParseTunnelSpec ──────────────────────────────────────────────────

func TestParseTunnelSpec(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantUser string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"full", "admin@bastion.example.com:2222", "admin", "bastion.example.com", 2222, false},
		{"no port", "root@gateway", "root", "gateway", 22, false},
		{"no user", "jump-host:2200", "", "jump-host", 2200, false},
		{"host only", "gateway.local", "", "gateway.local", 22, false},
		{"bad port", "user@host:999999", "", "", 0, true},
		{"empty", "", "", "", 0, true},
		{"colon only", ":", "", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, host, port, err := ParseTunnelSpec(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr = %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if user != tt.wantUser || host != tt.wantHost || port != tt.wantPort {
				t.Errorf("got (%q, %q, %d), want (%q, %q, %d)",
					user, host, port, tt.wantUser, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestApplyTunnelSpec(t *testing.T) {
	cfg := Defaults()
	cfg.TunnelSpec = "ops@jump:2200"
	if err := cfg.ApplyTunnelSpec(); err != nil {
		t.Fatal(err)
	}
	if !cfg.TunnelEnabled || cfg.TunnelUser != "ops" || cfg.TunnelHost != "jump" || cfg.TunnelPort != 2200 {
		t.Errorf("tunnel = %+v", cfg)
	}

	empty := Defaults()
	if err := empty.ApplyTunnelSpec(); err != nil || empty.TunnelEnabled {
		t.Errorf("empty spec enabled tunnel: %v", err)
	}
}

// ── Defaults ─────────────────────────────────────────────────────────

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.RequestTimeout != 10*time.Second || cfg.ConnectTimeout != 30*time.Second {
		t.Errorf("timeouts = %v / %v", cfg.RequestTimeout, cfg.ConnectTimeout)
	}
	if cfg.HTTPAddr != ":8000" || cfg.StreamInterval != time.Second || cfg.ConnectAttempts != 3 {
		t.Errorf("defaults = %+v", cfg)
	}
	d, err := cfg.FixDelimiter()
	if err != nil || d != fix.Pipe {
		t.Errorf("delimiter = %v, %v", d, err)
	}
}

// ── Validate ─────────────────────────────────────────────────────────

func validConfig() *Config {
	cfg := Defaults()
	cfg.Host = "venue.example.com"
	cfg.Port = 32477
	cfg.SenderCompID = "CLIENT"
	cfg.TargetCompID = "SERVER"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"valid", func(*Config) {}, ""},
		{"no host", func(c *Config) { c.Host = " " }, "host"},
		{"port zero", func(c *Config) { c.Port = 0 }, "port"},
		{"port too big", func(c *Config) { c.Port = 70000 }, "port"},
		{"no sender", func(c *Config) { c.SenderCompID = "" }, "sender"},
		{"no target", func(c *Config) { c.TargetCompID = "" }, "target"},
		{"bad delimiter", func(c *Config) { c.Delimiter = "tab" }, "delimiter"},
		{"soh ok", func(c *Config) { c.Delimiter = "soh" }, ""},
		{"zero request timeout", func(c *Config) { c.RequestTimeout = 0 }, "request-timeout"},
		{"no attempts", func(c *Config) { c.ConnectAttempts = 0 }, "connect-retries"},
		{"zero stream interval", func(c *Config) { c.StreamInterval = 0 }, "stream-interval"},
		{"no listen", func(c *Config) { c.HTTPAddr = "" }, "listen"},
		{"listen without port", func(c *Config) { c.HTTPAddr = "8000" }, "listen"},
		{"listen on loopback", func(c *Config) { c.HTTPAddr = "127.0.0.1:0" }, ""},
		{"tunnel without host", func(c *Config) { c.TunnelEnabled = true }, "tunnel"},
		{"verify without tls", func(c *Config) { c.TLSVerify = true }, "tls-verify"},
		{"verify with tls", func(c *Config) { c.TLSVerify = true; c.UseTLS = true }, ""},
		{"source port", func(c *Config) { c.SourcePort = 40001 }, ""},
		{"source port too big", func(c *Config) { c.SourcePort = 70000 }, "source-port"},
		{"source port via tunnel", func(c *Config) {
			c.SourcePort = 40001
			c.TunnelEnabled = true
			c.TunnelHost = "bastion"
		}, "source-port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ce *ncerr.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want *ConfigError", err)
			}
			if ce.Field != tt.wantField {
				t.Errorf("field = %q, want %q", ce.Field, tt.wantField)
			}
		})
	}
}

func TestValidate_HintNamesSources(t *testing.T) {
	err := Defaults().Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"hint:", "FIXBRIDGE_HOST", "SocketConnectHost"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should contain %q", err.Error(), want)
		}
	}
}

func TestString_MasksPassword(t *testing.T) {
	cfg := validConfig()
	cfg.Password = "hunter2"
	out := cfg.String()
	if strings.Contains(out, "hunter2") {
		t.Error("password leaked")
	}
	if !strings.Contains(out, "venue.example.com:32477") {
		t.Errorf("address missing:\n%s", out)
	}
}
