// Package metrics provides lightweight, lock-free counters for the
// bridge's single counterparty session.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for one session.
type Collector struct {
	connected        atomic.Bool
	connectsTotal    atomic.Int64
	connectFailures  atomic.Int64
	disconnectsTotal atomic.Int64
	messagesOut      atomic.Int64
	messagesIn       atomic.Int64
	bytesIn          atomic.Int64
	bytesOut         atomic.Int64
	emptyResponses   atomic.Int64
	timeoutsTotal    atomic.Int64
	rejectedRequests atomic.Int64
	errorsTotal      atomic.Int64
	roundTripNanos   atomic.Int64
	roundTrips       atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastConnect  time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Connection metrics ───────────────────────────────────────────────

// Connected records a successful connect.
func (c *Collector) Connected() {
	if c == nil {
		return
	}
	c.connected.Store(true)
	c.connectsTotal.Add(1)
	c.mu.Lock()
	c.lastConnect = time.Now()
	c.mu.Unlock()
}

// ConnectFailed records a failed connect attempt.
func (c *Collector) ConnectFailed() {
	if c == nil {
		return
	}
	c.connectFailures.Add(1)
}

// Disconnected records the connection handle being dropped.
func (c *Collector) Disconnected() {
	if c == nil {
		return
	}
	if c.connected.Swap(false) {
		c.disconnectsTotal.Add(1)
	}
}

// IsConnected mirrors the session's connected state.
func (c *Collector) IsConnected() bool {
	if c == nil {
		return false
	}
	return c.connected.Load()
}

// TotalConnects returns the lifetime successful connect count.
func (c *Collector) TotalConnects() int64 {
	if c == nil {
		return 0
	}
	return c.connectsTotal.Load()
}

// ── Message metrics ──────────────────────────────────────────────────

// MessageSent records one outbound message of n bytes.
func (c *Collector) MessageSent(n int) {
	if c == nil {
		return
	}
	c.messagesOut.Add(1)
	c.bytesOut.Add(int64(n))
}

// MessageReceived records one inbound read of n bytes.  Empty reads
// (peer closed) are counted separately.
func (c *Collector) MessageReceived(n int) {
	if c == nil {
		return
	}
	if n == 0 {
		c.emptyResponses.Add(1)
		return
	}
	c.messagesIn.Add(1)
	c.bytesIn.Add(int64(n))
}

// RoundTrip records the latency of one request/response pair.
func (c *Collector) RoundTrip(d time.Duration) {
	if c == nil {
		return
	}
	c.roundTrips.Add(1)
	c.roundTripNanos.Add(int64(d))
}

// MessagesSent returns the total outbound message count.
func (c *Collector) MessagesSent() int64 {
	if c == nil {
		return 0
	}
	return c.messagesOut.Load()
}

// MessagesReceived returns the total inbound message count.
func (c *Collector) MessagesReceived() int64 {
	if c == nil {
		return 0
	}
	return c.messagesIn.Load()
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// RecordTimeout counts a round trip abandoned at its deadline.
func (c *Collector) RecordTimeout() {
	if c == nil {
		return
	}
	c.timeoutsTotal.Add(1)
}

// RecordRejected counts a request refused before any network I/O.
func (c *Collector) RecordRejected() {
	if c == nil {
		return
	}
	c.rejectedRequests.Add(1)
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string  `json:"uptime"`
	Connected        bool    `json:"connected"`
	ConnectsTotal    int64   `json:"connects_total"`
	ConnectFailures  int64   `json:"connect_failures"`
	DisconnectsTotal int64   `json:"disconnects_total"`
	MessagesOut      int64   `json:"messages_out"`
	MessagesIn       int64   `json:"messages_in"`
	BytesIn          int64   `json:"bytes_in"`
	BytesOut         int64   `json:"bytes_out"`
	EmptyResponses   int64   `json:"empty_responses"`
	TimeoutsTotal    int64   `json:"timeouts_total"`
	RejectedRequests int64   `json:"rejected_requests"`
	ErrorsTotal      int64   `json:"errors_total"`
	RoundTrips       int64   `json:"round_trips"`
	AvgRoundTripMs   float64 `json:"avg_round_trip_ms"`
	LastConnect      string  `json:"last_connect,omitempty"`
	LastError        string  `json:"last_error,omitempty"`
	LastErrorMessage string  `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:           time.Since(c.startTime).Truncate(time.Second).String(),
		Connected:        c.connected.Load(),
		ConnectsTotal:    c.connectsTotal.Load(),
		ConnectFailures:  c.connectFailures.Load(),
		DisconnectsTotal: c.disconnectsTotal.Load(),
		MessagesOut:      c.messagesOut.Load(),
		MessagesIn:       c.messagesIn.Load(),
		BytesIn:          c.bytesIn.Load(),
		BytesOut:         c.bytesOut.Load(),
		EmptyResponses:   c.emptyResponses.Load(),
		TimeoutsTotal:    c.timeoutsTotal.Load(),
		RejectedRequests: c.rejectedRequests.Load(),
		ErrorsTotal:      c.errorsTotal.Load(),
		RoundTrips:       c.roundTrips.Load(),
	}
	if s.RoundTrips > 0 {
		avg := time.Duration(c.roundTripNanos.Load() / s.RoundTrips)
		s.AvgRoundTripMs = float64(avg) / float64(time.Millisecond)
	}
	if !c.lastConnect.IsZero() {
		s.LastConnect = c.lastConnect.Format(time.RFC3339)
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
