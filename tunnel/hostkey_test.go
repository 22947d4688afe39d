package tunnel

import (
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"fixbridge/util"
)

func newHostKey(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	return signer
}

func writeKnownHosts(t *testing.T, addr string, key ssh.PublicKey) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{knownhosts.Normalize(addr)}, key) + "\n"
	if err := os.WriteFile(path, []byte(line), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHostKeyCallback_AcceptsAnyWhenNotStrict(t *testing.T) {
	cb, err := Config{}.hostKeyCallback(util.NewLogger(0))
	if err != nil {
		t.Fatal(err)
	}
	remote := &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 22}
	if err := cb("bastion:22", remote, newHostKey(t).PublicKey()); err != nil {
		t.Errorf("unexpected rejection: %v", err)
	}
}

func TestHostKeyCallback_Strict(t *testing.T) {
	const addr = "bastion.example.com:2222"
	remote := &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 2222}
	known := newHostKey(t).PublicKey()
	path := writeKnownHosts(t, addr, known)

	cb, err := Config{StrictHostKey: true, KnownHosts: path}.hostKeyCallback(util.NewLogger(0))
	if err != nil {
		t.Fatal(err)
	}

	if err := cb(addr, remote, known); err != nil {
		t.Errorf("known key rejected: %v", err)
	}
	if err := cb(addr, remote, newHostKey(t).PublicKey()); err == nil {
		t.Error("changed key accepted")
	}
	err = cb("other.example.com:22", remote, known)
	if err == nil || !strings.Contains(err.Error(), "is not in") {
		t.Errorf("unknown host: err = %v", err)
	}
}

func TestHostKeyCallback_MissingKnownHosts(t *testing.T) {
	cfg := Config{StrictHostKey: true, KnownHosts: "/nonexistent/known_hosts"}
	if _, err := cfg.hostKeyCallback(util.NewLogger(0)); err == nil {
		t.Fatal("expected error")
	}
}
