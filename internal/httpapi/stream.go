package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fixbridge/internal/session"
)

// handleMarketDataStream repeats a market-data round trip every
// stream interval and pushes each result to the client.  The stream
// ends on the first session error (sent as {"error": ...}), when the
// client goes away, or on CloseStreams.
func (s *Server) handleMarketDataStream(c *gin.Context) {
	symbol := c.Param("symbol")
	if !s.track() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server is shutting down"})
		return
	}
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		return
	}
	defer conn.Close()
	s.streams.Inc()
	defer s.streams.Dec()

	log := s.logger.With(zap.String("stream", uuid.NewString()), zap.String("symbol", symbol))
	log.Info("stream opened", zap.String("remote", c.Request.RemoteAddr))
	defer log.Info("stream closed")

	ctx, cancel := context.WithCancel(s.streamCtx)
	defer cancel()

	// The client sends nothing we use; reading only detects close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		resp, err := s.call(func() (*session.Response, error) {
			return s.session.RequestMarketData(ctx, symbol)
		})
		if ctx.Err() != nil {
			s.closeFrame(conn, websocket.CloseGoingAway, "")
			return
		}
		if err != nil {
			log.Warn("stream request failed", zap.Error(err))
			s.writeJSON(conn, map[string]string{"error": err.Error()}) //nolint:errcheck
			s.closeFrame(conn, websocket.CloseInternalServerErr, "session error")
			return
		}
		if err := s.writeJSON(conn, MarketDataResponse{Symbol: symbol, Data: rawData(resp), MsgType: resp.MsgType()}); err != nil {
			log.Debug("stream write failed", zap.Error(err))
			return
		}

		select {
		case <-ctx.Done():
			s.closeFrame(conn, websocket.CloseGoingAway, "")
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) writeJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
	return conn.WriteJSON(v)
}

func (s *Server) closeFrame(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)) //nolint:errcheck
}
