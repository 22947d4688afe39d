package fix

import (
	"strconv"
	"strings"
)

// Tag is a numeric field identifier.
type Tag int

func (t Tag) String() string { return strconv.Itoa(int(t)) }

// Standard header / trailer.
const (
	TagBeginString  Tag = 8
	TagBodyLength   Tag = 9
	TagCheckSum     Tag = 10
	TagMsgSeqNum    Tag = 34
	TagMsgType      Tag = 35
	TagSenderCompID Tag = 49
	TagSendingTime  Tag = 52
	TagTargetCompID Tag = 56
)

// Logon.
const (
	TagEncryptMethod   Tag = 98
	TagHeartBtInt      Tag = 108
	TagResetSeqNumFlag Tag = 141
	TagUsername        Tag = 553
	TagPassword        Tag = 554
)

// MarketDataRequest.
const (
	TagMDReqID                 Tag = 262
	TagSubscriptionRequestType Tag = 263
	TagMarketDepth             Tag = 264
	TagMDUpdateType            Tag = 265
	TagNoRelatedSym            Tag = 146
	TagSymbol                  Tag = 55
)

// NewOrderSingle.
const (
	TagClOrdID      Tag = 11
	TagOrderQty     Tag = 38
	TagOrdType      Tag = 40
	TagPrice        Tag = 44
	TagSide         Tag = 54
	TagTransactTime Tag = 60
)

// Inbound fields shown in [Summary].
const (
	TagText           Tag = 58
	TagOrdStatus      Tag = 39
	TagExecType       Tag = 150
	TagRefSeqNum      Tag = 45
	TagMDReqRejReason Tag = 281
	TagMDEntryType    Tag = 269
	TagMDEntryPx      Tag = 270
)

// Message types.
const (
	MsgTypeHeartbeat            = "0"
	MsgTypeReject               = "3"
	MsgTypeLogout               = "5"
	MsgTypeExecutionReport      = "8"
	MsgTypeLogon                = "A"
	MsgTypeNewOrderSingle       = "D"
	MsgTypeMarketDataRequest    = "V"
	MsgTypeMarketDataSnapshot   = "W"
	MsgTypeMarketDataIncRefresh = "X"
	MsgTypeMarketDataReject     = "Y"
)

// BeginString is the protocol version carried in tag 8.
const BeginString = "FIX.4.4"

// MsgTypeName returns a readable name for the common message types.
func MsgTypeName(msgType string) string {
	switch msgType {
	case MsgTypeHeartbeat:
		return "Heartbeat"
	case MsgTypeReject:
		return "Reject"
	case MsgTypeLogout:
		return "Logout"
	case MsgTypeExecutionReport:
		return "ExecutionReport"
	case MsgTypeLogon:
		return "Logon"
	case MsgTypeNewOrderSingle:
		return "NewOrderSingle"
	case MsgTypeMarketDataRequest:
		return "MarketDataRequest"
	case MsgTypeMarketDataSnapshot:
		return "MarketDataSnapshotFullRefresh"
	case MsgTypeMarketDataIncRefresh:
		return "MarketDataIncrementalRefresh"
	case MsgTypeMarketDataReject:
		return "MarketDataRequestReject"
	}
	return ""
}

var summaryTags = map[string][]Tag{
	MsgTypeReject:               {TagRefSeqNum, TagText},
	MsgTypeLogout:               {TagText},
	MsgTypeExecutionReport:      {TagClOrdID, TagExecType, TagOrdStatus, TagText},
	MsgTypeMarketDataSnapshot:   {TagSymbol, TagMDEntryType, TagMDEntryPx},
	MsgTypeMarketDataIncRefresh: {TagSymbol, TagMDEntryType, TagMDEntryPx},
	MsgTypeMarketDataReject:     {TagMDReqID, TagMDReqRejReason, TagText},
}

// Summary names the type of m plus the fields that explain it, e.g.
// "Reject(45=3 58=Required tag missing)".
func Summary(m *Message) string {
	name := MsgTypeName(m.MsgType())
	if name == "" {
		name = "35=" + m.MsgType()
	}
	var parts []string
	for _, tag := range summaryTags[m.MsgType()] {
		if v, ok := m.Get(tag); ok {
			parts = append(parts, tag.String()+"="+v)
		}
	}
	if len(parts) == 0 {
		return name
	}
	return name + "(" + strings.Join(parts, " ") + ")"
}
