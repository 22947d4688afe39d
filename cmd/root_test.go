package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestExecute_Version verifies --version prints a version string.
func TestExecute_Version(t *testing.T) {
	var out bytes.Buffer
	if err := execute(context.Background(), []string{"--version"}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "fixbridge ") {
		t.Errorf("output = %q", out.String())
	}
}

// TestExecute_Help verifies --help returns without error.
func TestExecute_Help(t *testing.T) {
	if err := Execute(context.Background(), []string{"--help"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestExecute_DryRun verifies --dry-run validates and prints the
// resolved configuration without dialing.
func TestExecute_DryRun(t *testing.T) {
	var out bytes.Buffer
	err := execute(context.Background(), []string{
		"--sender", "CLIENT", "--target", "SERVER", "--password", "hunter2",
		"--env-file", "", "--dry-run", "venue.example.com", "9878",
	}, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "venue.example.com:9878") {
		t.Errorf("dry-run output missing address:\n%s", got)
	}
	if strings.Contains(got, "hunter2") {
		t.Error("dry-run output leaked the password")
	}
}

// TestExecute_DryRunInvalid verifies --dry-run still catches bad configs.
func TestExecute_DryRunInvalid(t *testing.T) {
	err := execute(context.Background(), []string{"--env-file", "", "--dry-run"}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "hint:") {
		t.Errorf("error should carry a hint: %v", err)
	}
}

// TestExecute_Precedence verifies flags > env > config file.
func TestExecute_Precedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.json")
	sheet := `{"Trading": {"SocketConnectHost": "file-host", "SocketConnectPort": 1111,
		"SenderCompID": "FILE", "TargetCompID": "FILE", "SocketUseSSL": "Y"}}`
	if err := os.WriteFile(file, []byte(sheet), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FIXBRIDGE_PORT", "2222")
	t.Setenv("FIXBRIDGE_SENDER_COMP_ID", "ENV")

	var out bytes.Buffer
	err := execute(context.Background(), []string{
		"-c", file, "--section", "Trading", "--env-file", "",
		"--sender", "FLAG", "--dry-run",
	}, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := out.String()
	for _, want := range []string{"file-host:2222", "FLAG"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if !hasRow(got, "tls", "true") {
		t.Errorf("SocketUseSSL=Y not applied:\n%s", got)
	}
}

// TestExecute_ListSections prints the session blocks of a config file.
func TestExecute_ListSections(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.json")
	sheet := `{"Pricing": {"SocketConnectHost": "a"}, "Trading": {"SocketConnectHost": "b"}}`
	if err := os.WriteFile(file, []byte(sheet), 0o600); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := execute(context.Background(), []string{"-c", file, "--list-sections"}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "Pricing\nTrading\n" {
		t.Errorf("output = %q", out.String())
	}

	if err := execute(context.Background(), []string{"--list-sections"}, &out); err == nil {
		t.Error("expected error without --config")
	}
}

func hasRow(out, key, value string) bool {
	for _, line := range strings.Split(out, "\n") {
		f := strings.Fields(line)
		if len(f) == 2 && f[0] == key && f[1] == value {
			return true
		}
	}
	return false
}

// TestExecute_InvalidFlags verifies unknown flags produce an error.
func TestExecute_InvalidFlags(t *testing.T) {
	err := Execute(context.Background(), []string{"--nonexistent-flag"})
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

// TestExecute_Positional covers the host/port pair.
func TestExecute_Positional(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"host without port", []string{"venue"}},
		{"bad port", []string{"venue", "http"}},
		{"too many", []string{"venue", "1", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--sender", "A", "--target", "B", "--env-file", "", "--dry-run"}, tt.args...)
			if err := execute(context.Background(), args, &bytes.Buffer{}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

// TestExecute_BadTunnelSpec verifies -T is parsed before validation.
func TestExecute_BadTunnelSpec(t *testing.T) {
	err := execute(context.Background(), []string{
		"--sender", "A", "--target", "B", "--env-file", "", "-T", "user@host:99999", "--dry-run", "venue", "9878",
	}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "tunnel") {
		t.Fatalf("err = %v, want tunnel error", err)
	}
}
