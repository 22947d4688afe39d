package util

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(3) // debug level
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	l.Error("e")
	l.Warn("w")
	l.Info("i")
	l.Verbose("v")
	l.Debug("d")

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d:\n%s", len(lines), output)
	}

	wantPrefixes := []string{"[ERR]", "[WRN]", "[INF]", "[VRB]", "[DBG]"}
	for i, prefix := range wantPrefixes {
		if !strings.Contains(lines[i], prefix) {
			t.Errorf("line %d %q missing prefix %q", i, lines[i], prefix)
		}
	}
}

func TestLogger_QuietMode(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(0) // quiet
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	l.Info("should not appear")
	l.Verbose("should not appear")
	l.Debug("should not appear")
	l.Error("always appears")

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 1 {
		t.Errorf("expected 1 line in quiet mode, got %d:\n%s", len(lines), output)
	}
}

func TestLogger_ZapHonoursVerbosity(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(int(LogQuiet))
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	z := l.Named("http").Zap()
	z.Info("GET /status 200")
	z.Debug("stream write failed")
	z.Warn("slow venue")
	if buf.Len() != 0 {
		t.Fatalf("quiet logger wrote %q", buf.String())
	}
	z.Error("listener closed")
	if !strings.Contains(buf.String(), "[ERR]") {
		t.Errorf("error suppressed: %q", buf.String())
	}

	buf.Reset()
	l = NewLogger(int(LogVerbose))
	l.SetOutput(&buf)
	l.SetTimestamps(false)
	l.Zap().Debug("zap debug")
	l.Debug("printf debug")
	if got := strings.TrimSpace(buf.String()); !strings.HasPrefix(got, "[VRB]") || strings.Contains(got, "printf debug") {
		t.Errorf("verbose output = %q", got)
	}
}

func TestLogger_Timestamps(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(1)
	l.SetOutput(&buf)
	l.SetTimestamps(true)

	l.Info("test")

	output := buf.String()
	// Timestamp format is "HH:MM:SS.mmm"
	if !strings.Contains(output, ":") || len(output) < 15 {
		t.Errorf("expected timestamp prefix, got %q", output)
	}
}

func TestLogger_Named(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(1)
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	l.Named("session").Info("logon sent")

	if !strings.Contains(buf.String(), "session") {
		t.Errorf("expected component name in %q", buf.String())
	}
	if !strings.Contains(buf.String(), "logon sent") {
		t.Errorf("expected message in %q", buf.String())
	}
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(2)
	l.SetOutput(&buf)

	l.Verbose("dialing %s", "venue:9878")

	var rec map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["level"] != "verbose" {
		t.Errorf("level = %v, want verbose", rec["level"])
	}
	if rec["msg"] != "dialing venue:9878" {
		t.Errorf("msg = %v", rec["msg"])
	}
}

func TestBufPool_RoundTrip(t *testing.T) {
	buf := GetBuf()
	if buf == nil {
		t.Fatal("GetBuf returned nil")
	}
	if len(*buf) != ReceiveBufSize {
		t.Errorf("buffer size = %d, want %d", len(*buf), ReceiveBufSize)
	}

	(*buf)[0] = 0xFF
	*buf = (*buf)[:10]
	PutBuf(buf)

	buf2 := GetBuf()
	if len(*buf2) != ReceiveBufSize {
		t.Errorf("recycled buffer size = %d, want %d", len(*buf2), ReceiveBufSize)
	}
	PutBuf(buf2)
}

func TestPutBuf_Nil(t *testing.T) {
	// Should not panic.
	PutBuf(nil)
}
