package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fixbridge"

// Exporter adapts a Collector to prometheus.Collector.  Values are
// read from the atomic counters at scrape time.
type Exporter struct {
	c *Collector

	connected      *prometheus.Desc
	connects       *prometheus.Desc
	connectFails   *prometheus.Desc
	disconnects    *prometheus.Desc
	messages       *prometheus.Desc
	bytes          *prometheus.Desc
	emptyResponses *prometheus.Desc
	timeouts       *prometheus.Desc
	rejected       *prometheus.Desc
	errors         *prometheus.Desc
	roundTrips     *prometheus.Desc
	roundTripSecs  *prometheus.Desc
}

// NewExporter returns an Exporter for c, labelled with the session's
// sender and target identifiers.
func NewExporter(c *Collector, sender, target string) *Exporter {
	labels := prometheus.Labels{"sender": sender, "target": target}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "session", name), help, variable, labels)
	}
	return &Exporter{
		c:              c,
		connected:      desc("connected", "1 when the session holds a connection."),
		connects:       desc("connects_total", "Successful connects."),
		connectFails:   desc("connect_failures_total", "Failed connect attempts."),
		disconnects:    desc("disconnects_total", "Connection handles dropped."),
		messages:       desc("messages_total", "Protocol messages by direction.", "direction"),
		bytes:          desc("bytes_total", "Wire bytes by direction.", "direction"),
		emptyResponses: desc("empty_responses_total", "Receives that returned nothing because the peer closed."),
		timeouts:       desc("timeouts_total", "Round trips abandoned at their deadline."),
		rejected:       desc("rejected_requests_total", "Requests refused before any network I/O."),
		errors:         desc("errors_total", "Transport errors."),
		roundTrips:     desc("round_trips_total", "Completed request/response pairs."),
		roundTripSecs:  desc("round_trip_seconds_total", "Cumulative request/response latency."),
	}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		e.connected, e.connects, e.connectFails, e.disconnects, e.messages, e.bytes,
		e.emptyResponses, e.timeouts, e.rejected, e.errors, e.roundTrips, e.roundTripSecs,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	c := e.c
	if c == nil {
		c = &Collector{}
	}
	connected := 0.0
	if c.connected.Load() {
		connected = 1
	}

	gauge := func(d *prometheus.Desc, v float64, lv ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, lv...)
	}
	counter := func(d *prometheus.Desc, v int64, lv ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), lv...)
	}

	gauge(e.connected, connected)
	counter(e.connects, c.connectsTotal.Load())
	counter(e.connectFails, c.connectFailures.Load())
	counter(e.disconnects, c.disconnectsTotal.Load())
	counter(e.messages, c.messagesOut.Load(), "out")
	counter(e.messages, c.messagesIn.Load(), "in")
	counter(e.bytes, c.bytesOut.Load(), "out")
	counter(e.bytes, c.bytesIn.Load(), "in")
	counter(e.emptyResponses, c.emptyResponses.Load())
	counter(e.timeouts, c.timeoutsTotal.Load())
	counter(e.rejected, c.rejectedRequests.Load())
	counter(e.errors, c.errorsTotal.Load())
	counter(e.roundTrips, c.roundTrips.Load())
	ch <- prometheus.MustNewConstMetric(e.roundTripSecs, prometheus.CounterValue,
		float64(c.roundTripNanos.Load())/1e9)
}
