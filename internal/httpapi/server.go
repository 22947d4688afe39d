// Package httpapi is the HTTP and WebSocket front end of the bridge.
// It translates JSON requests into session calls and session results
// back into JSON; it has no protocol knowledge of its own.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fixbridge/internal/fix"
	"fixbridge/internal/metrics"
	"fixbridge/internal/retry"
	"fixbridge/internal/session"
)

// Session is the part of *session.Client the adapter uses.
type Session interface {
	IsConnected() bool
	RequestMarketData(ctx context.Context, symbol string) (*session.Response, error)
	PlaceOrder(ctx context.Context, o fix.Order) (*session.Response, error)
}

// DefaultStreamInterval paces the market-data stream when Options
// leaves it unset.
const DefaultStreamInterval = time.Second

// writeWait bounds a single WebSocket write.
const writeWait = 10 * time.Second

// Options configures a Server.  Every field is optional.
type Options struct {
	Logger         *zap.Logger
	Metrics        *metrics.Collector
	Breaker        *retry.CircuitBreaker
	Registry       *prometheus.Registry
	StreamInterval time.Duration
}

// Server owns the gin router and the lifetime of open streams.
type Server struct {
	session  Session
	logger   *zap.Logger
	metrics  *metrics.Collector
	breaker  *retry.CircuitBreaker
	registry *prometheus.Registry
	interval time.Duration
	upgrader websocket.Upgrader
	requests *prometheus.CounterVec
	streams  prometheus.Gauge

	streamCtx   context.Context
	closeStream context.CancelFunc
	mu          sync.Mutex
	closed      bool
	wg          sync.WaitGroup
}

// New returns a Server for sess.
func New(sess Session, opts Options) *Server {
	s := &Server{
		session:  sess,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		breaker:  opts.Breaker,
		registry: opts.Registry,
		interval: opts.StreamInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fixbridge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fixbridge",
			Subsystem: "http",
			Name:      "open_streams",
			Help:      "Open market-data WebSocket streams.",
		}),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.interval <= 0 {
		s.interval = DefaultStreamInterval
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.registry.MustRegister(s.requests, s.streams)
	s.streamCtx, s.closeStream = context.WithCancel(context.Background())
	return s
}

// Router builds the gin engine with every route mounted.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(ginzap.Ginzap(s.logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(s.logger, true))
	router.Use(s.countRequests)

	router.GET("/status", s.handleStatus)
	router.GET("/market_data/:symbol", s.handleMarketData)
	router.POST("/place_order/", s.handlePlaceOrder)
	router.GET("/ws/market_data/:symbol", s.handleMarketDataStream)

	router.GET("/stats", s.handleStats)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	return router
}

// CloseStreams ends every open WebSocket stream and waits for their
// handlers to return.  http.Server.Shutdown does not track hijacked
// connections, so call this first.
func (s *Server) CloseStreams() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.closeStream()
	s.wg.Wait()
}

// track registers a stream handler.  It reports false once
// CloseStreams has been called.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) countRequests(c *gin.Context) {
	c.Next()
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	s.requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
}

// call runs fn through the circuit breaker when one is configured.
func (s *Server) call(fn func() (*session.Response, error)) (*session.Response, error) {
	if s.breaker == nil {
		return fn()
	}
	return retry.Call(s.breaker, fn)
}
