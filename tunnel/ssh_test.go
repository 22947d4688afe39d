package tunnel

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "fixbridge/internal/errors"
	"fixbridge/util"
)

// jumpHost is an in-process SSH server that forwards direct-tcpip
// channels like a bastion.
type jumpHost struct {
	addr    *net.TCPAddr
	hostKey ssh.Signer
}

func startJumpHost(t *testing.T, cfg *ssh.ServerConfig) *jumpHost {
	t.Helper()
	j := &jumpHost{hostKey: newHostKey(t)}
	cfg.AddHostKey(j.hostKey)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	j.addr = ln.Addr().(*net.TCPAddr)

	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go serveJump(nc, cfg)
		}
	}()
	return j
}

func serveJump(nc net.Conn, cfg *ssh.ServerConfig) {
	defer nc.Close()
	conn, chans, reqs, err := ssh.NewServerConn(nc, cfg)
	if err != nil {
		return
	}
	defer conn.Close()
	go ssh.DiscardRequests(reqs)

	for nch := range chans {
		if nch.ChannelType() != "direct-tcpip" {
			nch.Reject(ssh.UnknownChannelType, "unsupported") //nolint:errcheck
			continue
		}
		var req struct {
			Host     string
			Port     uint32
			OrigHost string
			OrigPort uint32
		}
		if err := ssh.Unmarshal(nch.ExtraData(), &req); err != nil {
			nch.Reject(ssh.ConnectionFailed, "bad request") //nolint:errcheck
			continue
		}
		up, err := net.Dial("tcp", net.JoinHostPort(req.Host, strconv.Itoa(int(req.Port))))
		if err != nil {
			nch.Reject(ssh.ConnectionFailed, err.Error()) //nolint:errcheck
			continue
		}
		ch, creqs, err := nch.Accept()
		if err != nil {
			up.Close()
			continue
		}
		go ssh.DiscardRequests(creqs)
		go func() { io.Copy(ch, up); ch.Close() }() //nolint:errcheck
		go func() { io.Copy(up, ch); up.Close() }() //nolint:errcheck
	}
}

// startVenue answers each line with "ack:" plus the line.
func startVenue(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				sc := bufio.NewScanner(c)
				for sc.Scan() {
					c.Write([]byte("ack:" + sc.Text() + "\n")) //nolint:errcheck
				}
			}()
		}
	}()
	return ln.Addr().String()
}

func passwordServer(user, pass string) *ssh.ServerConfig {
	return &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, p []byte) (*ssh.Permissions, error) {
			if c.User() == user && string(p) == pass {
				return nil, nil
			}
			return nil, errors.New("denied")
		},
	}
}

func fixedPrompt(secret string) func(string) (string, error) {
	return func(string) (string, error) { return secret, nil }
}

func TestNewSSHTunnel_Defaults(t *testing.T) {
	tun := NewSSHTunnel(Config{User: "ops", Host: "jump.example.com"}, nil)

	cfg := tun.Config()
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.String() != "ops@jump.example.com:22" {
		t.Errorf("String = %q", cfg.String())
	}
	if tun.IsAlive() {
		t.Error("new tunnel should not be alive")
	}
}

func TestSSHTunnel_DialBeforeConnect(t *testing.T) {
	tun := NewSSHTunnel(Config{Host: "jump"}, util.NewLogger(0))
	_, err := tun.Dial(context.Background(), "tcp", "venue:9878")
	if !ncerr.Is(err, ncerr.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if err := tun.Close(); err != nil {
		t.Errorf("Close on unconnected tunnel: %v", err)
	}
}

func TestSSHTunnel_ForwardsToVenue(t *testing.T) {
	jump := startJumpHost(t, passwordServer("ops", "s3cret"))
	venue := startVenue(t)

	tun := NewSSHTunnel(Config{
		User:      "ops",
		Host:      "127.0.0.1",
		Port:      jump.addr.Port,
		Auth:      Auth{Password: true, Prompt: fixedPrompt("s3cret")},
		Timeout:   2 * time.Second,
		KeepAlive: 20 * time.Millisecond,
	}, util.NewLogger(0))

	ctx := context.Background()
	if err := tun.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tun.Close()
	if !tun.IsAlive() {
		t.Fatal("tunnel should be alive")
	}
	if err := tun.Connect(ctx); err != nil {
		t.Fatalf("second Connect: %v", err)
	}

	conn, err := tun.Dial(ctx, "tcp", venue)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if _, err := conn.Write([]byte("8=FIX.4.4|35=V|\n")); err != nil {
		t.Fatal(err)
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if line != "ack:8=FIX.4.4|35=V|\n" {
		t.Errorf("got %q", line)
	}
	conn.Close()

	// Survives a few keepalive rounds.
	time.Sleep(100 * time.Millisecond)
	if !tun.IsAlive() {
		t.Error("keepalive dropped a healthy tunnel")
	}

	if err := tun.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if tun.IsAlive() {
		t.Error("tunnel alive after Close")
	}
	if _, err := tun.Dial(ctx, "tcp", venue); !ncerr.Is(err, ncerr.ErrNotConnected) {
		t.Errorf("Dial after Close: %v", err)
	}
}

func TestSSHTunnel_PublicKeyAndStrictHostKey(t *testing.T) {
	keyPath := t.TempDir() + "/id_test"
	clientKey := writeKey(t, keyPath, "")

	jump := startJumpHost(t, &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, k ssh.PublicKey) (*ssh.Permissions, error) {
			if string(k.Marshal()) == string(clientKey.Marshal()) {
				return nil, nil
			}
			return nil, errors.New("unknown key")
		},
	})
	known := writeKnownHosts(t, jump.addr.String(), jump.hostKey.PublicKey())

	tun := NewSSHTunnel(Config{
		User:          "ops",
		Host:          "127.0.0.1",
		Port:          jump.addr.Port,
		Auth:          Auth{KeyPath: keyPath},
		StrictHostKey: true,
		KnownHosts:    known,
		Timeout:       2 * time.Second,
	}, util.NewLogger(0))
	if err := tun.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	tun.Close()
}

func TestSSHTunnel_Failures(t *testing.T) {
	jump := startJumpHost(t, passwordServer("ops", "s3cret"))
	otherHost := writeKnownHosts(t, jump.addr.String(), newHostKey(t).PublicKey())

	tests := []struct {
		name   string
		cfg    Config
		wantOp string
	}{
		{
			name:   "wrong password",
			cfg:    Config{User: "ops", Auth: Auth{Password: true, Prompt: fixedPrompt("nope")}},
			wantOp: "auth",
		},
		{
			name: "host key mismatch",
			cfg: Config{User: "ops", Auth: Auth{Password: true, Prompt: fixedPrompt("s3cret")},
				StrictHostKey: true, KnownHosts: otherHost},
			wantOp: "hostkey",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Host = "127.0.0.1"
			tt.cfg.Port = jump.addr.Port
			tt.cfg.Timeout = 2 * time.Second
			tun := NewSSHTunnel(tt.cfg, util.NewLogger(0))

			err := tun.Connect(context.Background())
			var sshErr *ncerr.SSHError
			if !ncerr.As(err, &sshErr) {
				t.Fatalf("expected *SSHError, got %v", err)
			}
			if sshErr.Op != tt.wantOp {
				t.Errorf("Op = %q, want %q (%v)", sshErr.Op, tt.wantOp, err)
			}
			if tun.IsAlive() {
				t.Error("tunnel alive after failed Connect")
			}
		})
	}
}

// TestSSHTunnel_HandshakeFailure points the tunnel at a server that is
// not speaking SSH.
func TestSSHTunnel_HandshakeFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		c.Write([]byte("8=FIX.4.4|35=5|\r\n")) //nolint:errcheck
		c.Close()
	}()

	tun := NewSSHTunnel(Config{
		User:    "ops",
		Host:    "127.0.0.1",
		Port:    ln.Addr().(*net.TCPAddr).Port,
		Auth:    Auth{Password: true, Prompt: fixedPrompt("x")},
		Timeout: 2 * time.Second,
	}, util.NewLogger(0))

	err = tun.Connect(context.Background())
	var sshErr *ncerr.SSHError
	if !ncerr.As(err, &sshErr) {
		t.Fatalf("expected *SSHError, got %v", err)
	}
	if sshErr.Op != "handshake" {
		t.Errorf("Op = %q, want handshake", sshErr.Op)
	}
}

func TestSSHTunnel_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	tun := NewSSHTunnel(Config{
		Host: "127.0.0.1", Port: port,
		Auth:    Auth{Password: true, Prompt: fixedPrompt("x")},
		Timeout: time.Second,
	}, util.NewLogger(0))

	err = tun.Connect(context.Background())
	var netErr *ncerr.NetworkError
	if !ncerr.As(err, &netErr) || netErr.Op != ncerr.OpConnect {
		t.Fatalf("expected connect NetworkError, got %v", err)
	}
}
