package fix

import (
	"bytes"
	"fmt"
	"strconv"
)

// DetectDelimiter guesses the separator used in raw.  SOH wins when
// present; otherwise the pipe is assumed.
func DetectDelimiter(raw []byte) Delimiter {
	if bytes.IndexByte(raw, byte(SOH)) >= 0 {
		return SOH
	}
	return Pipe
}

// Parse decodes the first message in raw.  It stops after the CheckSum
// field and returns the unread remainder, which may hold further
// messages from the same read.  The checksum is not verified.
func Parse(raw []byte) (*Message, []byte, error) {
	d := byte(DetectDelimiter(raw))
	msg := &Message{}
	rest := raw

	for len(rest) > 0 {
		end := bytes.IndexByte(rest, d)
		var chunk []byte
		if end < 0 {
			chunk, rest = rest, nil
		} else {
			chunk, rest = rest[:end], rest[end+1:]
		}
		chunk = bytes.TrimSpace(chunk)
		if len(chunk) == 0 {
			continue
		}

		eq := bytes.IndexByte(chunk, '=')
		if eq <= 0 {
			return nil, nil, fmt.Errorf("malformed field %q", chunk)
		}
		n, err := strconv.Atoi(string(chunk[:eq]))
		if err != nil || n <= 0 {
			return nil, nil, fmt.Errorf("malformed tag %q", chunk[:eq])
		}
		msg.Fields = append(msg.Fields, Field{Tag: Tag(n), Value: string(chunk[eq+1:])})

		if Tag(n) == TagCheckSum {
			break
		}
	}

	if len(msg.Fields) == 0 {
		return nil, nil, fmt.Errorf("empty message")
	}
	return msg, rest, nil
}

// ParseAll decodes every message in raw.
func ParseAll(raw []byte) ([]*Message, error) {
	var out []*Message
	rest := raw
	for len(bytes.TrimSpace(rest)) > 0 {
		msg, r, err := Parse(rest)
		if err != nil {
			return out, err
		}
		out = append(out, msg)
		rest = r
	}
	return out, nil
}

// Redact returns raw with the Password (554) value masked, for logging.
func Redact(raw []byte) string {
	d := byte(DetectDelimiter(raw))
	key := []byte(TagPassword.String() + "=")
	out := make([]byte, 0, len(raw))
	rest := raw
	for len(rest) > 0 {
		end := bytes.IndexByte(rest, d)
		var chunk []byte
		if end < 0 {
			chunk, rest = rest, nil
		} else {
			chunk, rest = rest[:end+1], rest[end+1:]
		}
		if bytes.HasPrefix(chunk, key) {
			out = append(out, key...)
			out = append(out, "****"...)
			if chunk[len(chunk)-1] == d {
				out = append(out, d)
			}
			continue
		}
		out = append(out, chunk...)
	}
	if d == byte(SOH) {
		out = bytes.ReplaceAll(out, []byte{byte(SOH)}, []byte{'|'})
	}
	return string(out)
}
