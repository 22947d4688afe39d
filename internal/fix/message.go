// Package fix encodes and decodes tag=value protocol messages.
//
// A Message is an ordered list of fields.  Encode prepends BeginString
// and BodyLength and appends CheckSum, all computed from the bytes
// actually written, so callers never supply framing fields themselves.
package fix

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Delimiter separates fields on the wire.
type Delimiter byte

const (
	// SOH is the standard field separator.
	SOH Delimiter = 0x01
	// Pipe is the printable separator the legacy counterparty test
	// harness expects.
	Pipe Delimiter = '|'
)

// ParseDelimiter accepts "pipe", "|", "soh", or "\x01".
func ParseDelimiter(s string) (Delimiter, error) {
	switch strings.ToLower(s) {
	case "pipe", "|", "":
		return Pipe, nil
	case "soh", "\x01", `\x01`, "^a":
		return SOH, nil
	}
	return 0, fmt.Errorf("unknown field delimiter %q (want pipe or soh)", s)
}

func (d Delimiter) String() string {
	if d == SOH {
		return "soh"
	}
	return string(rune(d))
}

// Field is a single tag=value pair.
type Field struct {
	Tag   Tag
	Value string
}

// Message is an ordered sequence of fields, excluding the framing
// tags 8, 9 and 10 when built for sending.
type Message struct {
	Fields []Field
}

// NewMessage starts a message of the given type.
func NewMessage(msgType string) *Message {
	return &Message{Fields: []Field{{Tag: TagMsgType, Value: msgType}}}
}

// Set appends a field and returns m for chaining.
func (m *Message) Set(tag Tag, value string) *Message {
	m.Fields = append(m.Fields, Field{Tag: tag, Value: value})
	return m
}

// SetInt appends an integer field.
func (m *Message) SetInt(tag Tag, v int) *Message {
	return m.Set(tag, strconv.Itoa(v))
}

// Get returns the first value for tag.
func (m *Message) Get(tag Tag) (string, bool) {
	for _, f := range m.Fields {
		if f.Tag == tag {
			return f.Value, true
		}
	}
	return "", false
}

// MsgType returns tag 35, or "" if absent.
func (m *Message) MsgType() string {
	v, _ := m.Get(TagMsgType)
	return v
}

// Encode serialises m with the given delimiter.
func (m *Message) Encode(d Delimiter) []byte {
	return Encode(BeginString, m.Fields, d)
}

// Encode renders fields as a complete framed message:
//
//	8=<begin>|9=<len>|<fields>|10=<sum>|
//
// BodyLength counts the bytes from the first body field up to and
// including the delimiter before tag 10.  CheckSum is the byte sum of
// everything before tag 10, modulo 256, rendered as three digits.
func Encode(begin string, fields []Field, d Delimiter) []byte {
	var body bytes.Buffer
	for _, f := range fields {
		writeField(&body, f.Tag, f.Value, d)
	}

	var out bytes.Buffer
	out.Grow(body.Len() + 32)
	writeField(&out, TagBeginString, begin, d)
	writeField(&out, TagBodyLength, strconv.Itoa(body.Len()), d)
	out.Write(body.Bytes())

	writeField(&out, TagCheckSum, fmt.Sprintf("%03d", Checksum(out.Bytes())), d)
	return out.Bytes()
}

// Checksum returns the modulo-256 byte sum of b.
func Checksum(b []byte) int {
	var sum int
	for _, c := range b {
		sum += int(c)
	}
	return sum % 256
}

func writeField(buf *bytes.Buffer, tag Tag, value string, d Delimiter) {
	buf.WriteString(strconv.Itoa(int(tag)))
	buf.WriteByte('=')
	buf.WriteString(value)
	buf.WriteByte(byte(d))
}

// String renders m with a pipe delimiter and without framing, for logs.
func (m *Message) String() string {
	var b strings.Builder
	for i, f := range m.Fields {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(f.Tag.String())
		b.WriteByte('=')
		b.WriteString(f.Value)
	}
	return b.String()
}
