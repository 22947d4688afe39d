package session

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"fixbridge/internal/fix"
	"fixbridge/internal/transport"
)

// fakeVenue accepts one connection, reads pipe-delimited messages and
// answers every MarketDataRequest with a snapshot.  Logon is not
// answered.
func fakeVenue(t *testing.T) (host string, port int, got chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	got = make(chan string, 8)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		for {
			var b strings.Builder
			for {
				field, err := r.ReadString('|')
				if err != nil {
					return
				}
				b.WriteString(field)
				if strings.HasPrefix(field, "10=") {
					break
				}
			}
			msg := b.String()
			got <- msg
			if strings.Contains(msg, "|35=V|") {
				reply := fix.NewMessage(fix.MsgTypeMarketDataSnapshot).
					Set(fix.TagSymbol, "EUR/USD").
					Set(fix.TagMDEntryPx, "1.0842").
					Encode(fix.Pipe)
				conn.Write(reply) //nolint:errcheck
			}
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port, got
}

func TestClient_Loopback(t *testing.T) {
	host, port, got := fakeVenue(t)

	c := New(Config{
		Host:           host,
		Port:           port,
		SenderCompID:   "CLIENT",
		TargetCompID:   "SERVER",
		Username:       "u",
		Password:       "p",
		RequestTimeout: 2 * time.Second,
		ConnectTimeout: 2 * time.Second,
	}, DialOpener{Dialer: &transport.TCPDialer{Timeout: time.Second}}, nil, nil)
	defer c.Disconnect() //nolint:errcheck

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	select {
	case logon := <-got:
		if !strings.Contains(logon, "|35=A|") {
			t.Errorf("first message = %q, want logon", logon)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("venue never saw logon")
	}

	resp, err := c.RequestMarketData(context.Background(), "EUR/USD")
	if err != nil {
		t.Fatalf("RequestMarketData: %v", err)
	}
	if resp.MsgType() != fix.MsgTypeMarketDataSnapshot {
		t.Errorf("msg type = %q, raw = %q", resp.MsgType(), resp.Raw)
	}
	if !strings.Contains(resp.String(), "270=1.0842|") {
		t.Errorf("response = %q", resp.String())
	}
}

func TestClient_LoopbackRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	c := New(Config{Host: "127.0.0.1", Port: port},
		DialOpener{Dialer: &transport.TCPDialer{Timeout: time.Second}}, nil, nil)
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("expected connect error")
	}
	if c.IsConnected() {
		t.Error("connected after refused dial")
	}
}
