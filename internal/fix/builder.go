package fix

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	ncerr "fixbridge/internal/errors"
)

// SendingTimeLayout is the UTCTimestamp format with milliseconds.
const SendingTimeLayout = "20060102-15:04:05.000"

// Sequence numbers are fixed per message kind; the bridge does not
// track a session sequence.
const (
	seqLogon      = 1
	seqMarketData = 2
	seqNewOrder   = 3
)

// Identifiers used when no generator is configured, matching the
// legacy counterparty test harness.
const (
	DefaultClOrdID = "1234"
	DefaultMDReqID = "1"
)

// HeartbeatInterval is advertised in Logon (108), in seconds.
const HeartbeatInterval = 30

// Side / OrdType wire values.
var (
	sideCodes    = map[string]string{"buy": "1", "sell": "2"}
	ordTypeCodes = map[string]string{"market": "1", "limit": "2"}
)

// SideCode maps "buy"/"sell" to tag 54.
func SideCode(side string) (string, error) {
	if c, ok := sideCodes[side]; ok {
		return c, nil
	}
	return "", ncerr.Invalid("side", side, "must be buy or sell")
}

// OrdTypeCode maps "market"/"limit" to tag 40.
func OrdTypeCode(orderType string) (string, error) {
	if c, ok := ordTypeCodes[orderType]; ok {
		return c, nil
	}
	return "", ncerr.Invalid("order_type", orderType, "must be market or limit")
}

// Order is an application order intent.
type Order struct {
	Symbol    string
	Side      string // buy | sell
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	OrderType string // market | limit
}

// Validate checks o without building anything.
func (o Order) Validate() error {
	if strings.TrimSpace(o.Symbol) == "" {
		return ncerr.Invalid("symbol", nil, "required")
	}
	if _, err := SideCode(o.Side); err != nil {
		return err
	}
	if _, err := OrdTypeCode(o.OrderType); err != nil {
		return err
	}
	if !o.Quantity.IsPositive() {
		return ncerr.Invalid("quantity", o.Quantity.String(), "must be positive")
	}
	if o.Price.IsNegative() {
		return ncerr.Invalid("price", o.Price.String(), "must not be negative")
	}
	if o.OrderType == "limit" && !o.Price.IsPositive() {
		return ncerr.Invalid("price", o.Price.String(), "limit orders need a positive price")
	}
	return nil
}

// Builder constructs the three outbound message kinds for one
// sender/target pair.
type Builder struct {
	SenderCompID string
	TargetCompID string
	Delimiter    Delimiter

	// Now stamps SendingTime/TransactTime.  Defaults to time.Now.
	Now func() time.Time
	// NewID generates ClOrdID and MDReqID.  When nil the fixed
	// DefaultClOrdID / DefaultMDReqID are used.
	NewID func() string
}

func (b *Builder) header(msgType string, seq int) *Message {
	return NewMessage(msgType).
		Set(TagSenderCompID, b.SenderCompID).
		Set(TagTargetCompID, b.TargetCompID).
		SetInt(TagMsgSeqNum, seq).
		Set(TagSendingTime, b.timestamp())
}

func (b *Builder) timestamp() string {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	return now().UTC().Format(SendingTimeLayout)
}

func (b *Builder) id(fallback string) string {
	if b.NewID != nil {
		return b.NewID()
	}
	return fallback
}

func (b *Builder) delim() Delimiter {
	if b.Delimiter == 0 {
		return Pipe
	}
	return b.Delimiter
}

// Logon builds the Logon (35=A) message.
func (b *Builder) Logon(username, password string) []byte {
	return b.LogonMessage(username, password).Encode(b.delim())
}

// LogonMessage returns the unencoded Logon.
func (b *Builder) LogonMessage(username, password string) *Message {
	return b.header(MsgTypeLogon, seqLogon).
		Set(TagEncryptMethod, "0").
		SetInt(TagHeartBtInt, HeartbeatInterval).
		Set(TagResetSeqNumFlag, "Y").
		Set(TagUsername, username).
		Set(TagPassword, password)
}

// MarketDataRequest builds a MarketDataRequest (35=V) for one symbol.
func (b *Builder) MarketDataRequest(symbol string) ([]byte, error) {
	msg, err := b.MarketDataRequestMessage(symbol)
	if err != nil {
		return nil, err
	}
	return msg.Encode(b.delim()), nil
}

// MarketDataRequestMessage returns the unencoded request.
func (b *Builder) MarketDataRequestMessage(symbol string) (*Message, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, ncerr.Invalid("symbol", nil, "required")
	}
	return b.header(MsgTypeMarketDataRequest, seqMarketData).
		Set(TagMDReqID, b.id(DefaultMDReqID)).
		Set(TagSubscriptionRequestType, "1").
		Set(TagMarketDepth, "1").
		Set(TagMDUpdateType, "1").
		Set(TagNoRelatedSym, "1").
		Set(TagSymbol, symbol), nil
}

// NewOrder builds a NewOrderSingle (35=D).  Invalid orders fail with
// a *errors.ValidationError.
func (b *Builder) NewOrder(o Order) ([]byte, error) {
	msg, err := b.NewOrderMessage(o)
	if err != nil {
		return nil, err
	}
	return msg.Encode(b.delim()), nil
}

// NewOrderMessage returns the unencoded order.  Market orders still
// carry Price, as the counterparty harness expects.
func (b *Builder) NewOrderMessage(o Order) (*Message, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	side, _ := SideCode(o.Side)
	ordType, _ := OrdTypeCode(o.OrderType)

	msg := b.header(MsgTypeNewOrderSingle, seqNewOrder).
		Set(TagClOrdID, b.id(DefaultClOrdID)).
		Set(TagSymbol, o.Symbol).
		Set(TagSide, side).
		Set(TagOrderQty, o.Quantity.String()).
		Set(TagOrdType, ordType).
		Set(TagPrice, o.Price.String())
	if ts, ok := msg.Get(TagSendingTime); ok {
		msg.Set(TagTransactTime, ts)
	}
	return msg, nil
}
