package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	ncerr "fixbridge/internal/errors"
	"fixbridge/internal/fix"
	"fixbridge/internal/session"
)

// OrderRequest is the body of POST /place_order/.
type OrderRequest struct {
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	OrderType string          `json:"order_type"`
}

func (r OrderRequest) order() fix.Order {
	return fix.Order{
		Symbol:    r.Symbol,
		Side:      r.Side,
		Quantity:  r.Quantity,
		Price:     r.Price,
		OrderType: r.OrderType,
	}
}

// MarketDataResponse is returned by GET /market_data/:symbol and each
// stream frame.  Data is null when the venue closed the connection
// instead of answering.
type MarketDataResponse struct {
	Symbol  string  `json:"symbol"`
	Data    *string `json:"data"`
	MsgType string  `json:"msg_type,omitempty"`
}

// OrderResponse is returned by POST /place_order/.  OrderID carries the
// raw venue response, not an identifier.
type OrderResponse struct {
	Status  string  `json:"status"`
	OrderID *string `json:"order_id"`
	MsgType string  `json:"msg_type,omitempty"`
}

func rawData(resp *session.Response) *string {
	if resp.Empty() {
		return nil
	}
	s := resp.String()
	return &s
}

func (s *Server) handleStatus(c *gin.Context) {
	status := "disconnected"
	if s.session.IsConnected() {
		status = "connected"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (s *Server) handleMarketData(c *gin.Context) {
	symbol := c.Param("symbol")
	resp, err := s.call(func() (*session.Response, error) {
		return s.session.RequestMarketData(c.Request.Context(), symbol)
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MarketDataResponse{
		Symbol:  symbol,
		Data:    rawData(resp),
		MsgType: resp.MsgType(),
	})
}

func (s *Server) handlePlaceOrder(c *gin.Context) {
	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order body: " + err.Error()})
		return
	}
	resp, err := s.call(func() (*session.Response, error) {
		return s.session.PlaceOrder(c.Request.Context(), req.order())
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, OrderResponse{
		Status:  "Order placed",
		OrderID: rawData(resp),
		MsgType: resp.MsgType(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	out := gin.H{"session": s.metrics.Snapshot()}
	if s.breaker != nil {
		out["circuit"] = s.breaker.CurrentState().String()
	}
	c.JSON(http.StatusOK, out)
}

// statusFor maps a session error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case ncerr.Is(err, ncerr.ErrValidation):
		return http.StatusBadRequest
	case ncerr.Is(err, ncerr.ErrNotConnected), ncerr.Is(err, ncerr.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case ncerr.IsTimeout(err):
		return http.StatusGatewayTimeout
	case ncerr.Is(err, ncerr.ErrConnection), ncerr.Is(err, ncerr.ErrSend), ncerr.Is(err, ncerr.ErrReceive):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", zap.String("route", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
