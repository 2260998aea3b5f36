package coiot

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// CoAP header constants (RFC 7252 §3).
const (
	coapVersion    = 1
	headerLength   = 4
	payloadMarker  = 0xFF
	maxTokenLength = 8

	// Extended option delta/length encodings.
	extendedByte     = 13
	extendedWord     = 14
	reservedNibble   = 15
	extendedByteBase = 13
	extendedWordBase = 269
)

// Option numbers used by CoIoT.
const (
	OptionURIPath  = 11
	OptionDeviceID = 3332
	OptionValidity = 3412
	OptionSerial   = 3420
)

// CodeCoIoT is the non-standard request code (0.30) Shelly uses for CoIoT.
const CodeCoIoT = 30

// MessageType is the CoAP message type.
type MessageType uint8

// CoAP message types.
const (
	Confirmable     MessageType = 0
	NonConfirmable  MessageType = 1
	Acknowledgement MessageType = 2
	Reset           MessageType = 3
)

// Option is a single CoAP option.
type Option struct {
	Number uint16
	Value  []byte
}

// Message is a decoded CoAP message.
type Message struct {
	Type      MessageType
	Code      uint8
	MessageID uint16
	Token     []byte
	Options   []Option
	Payload   []byte
}

// ParseMessage decodes a CoAP datagram.
//
// Only the framing is validated; option semantics are left to the caller.
func ParseMessage(data []byte) (*Message, error) {
	if len(data) < headerLength {
		return nil, ErrMessageTooShort
	}

	version := data[0] >> 6
	if version != coapVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	tokenLength := int(data[0] & 0x0F)
	if tokenLength > maxTokenLength {
		return nil, fmt.Errorf("%w: token length %d", ErrMalformedOption, tokenLength)
	}

	msg := &Message{
		Type:      MessageType((data[0] >> 4) & 0x03),
		Code:      data[1],
		MessageID: binary.BigEndian.Uint16(data[2:4]),
	}

	pos := headerLength
	if len(data) < pos+tokenLength {
		return nil, ErrMessageTooShort
	}
	if tokenLength > 0 {
		msg.Token = append([]byte(nil), data[pos:pos+tokenLength]...)
	}
	pos += tokenLength

	var number int
	for pos < len(data) {
		if data[pos] == payloadMarker {
			pos++
			if pos == len(data) {
				// A marker followed by nothing is a format error.
				return nil, fmt.Errorf("%w: empty payload after marker", ErrMalformedOption)
			}
			msg.Payload = append([]byte(nil), data[pos:]...)
			break
		}

		delta := int(data[pos] >> 4)
		length := int(data[pos] & 0x0F)
		pos++

		var err error
		if delta, pos, err = readExtended(data, pos, delta); err != nil {
			return nil, err
		}
		if length, pos, err = readExtended(data, pos, length); err != nil {
			return nil, err
		}

		if pos+length > len(data) {
			return nil, fmt.Errorf("%w: value overruns message", ErrMalformedOption)
		}

		number += delta
		if number > math.MaxUint16 {
			return nil, fmt.Errorf("%w: option number %d exceeds 16 bits", ErrMalformedOption, number)
		}
		msg.Options = append(msg.Options, Option{
			Number: uint16(number),
			Value:  append([]byte(nil), data[pos:pos+length]...),
		})
		pos += length
	}

	return msg, nil
}

// readExtended resolves the 13/14 extended encodings of an option nibble.
func readExtended(data []byte, pos, nibble int) (value, next int, err error) {
	switch nibble {
	case extendedByte:
		if pos >= len(data) {
			return 0, pos, fmt.Errorf("%w: truncated extended byte", ErrMalformedOption)
		}
		return int(data[pos]) + extendedByteBase, pos + 1, nil
	case extendedWord:
		if pos+1 >= len(data) {
			return 0, pos, fmt.Errorf("%w: truncated extended word", ErrMalformedOption)
		}
		return int(binary.BigEndian.Uint16(data[pos:pos+2])) + extendedWordBase, pos + 2, nil
	case reservedNibble:
		return 0, pos, fmt.Errorf("%w: reserved nibble", ErrMalformedOption)
	default:
		return nibble, pos, nil
	}
}

// Option returns the value of the first option with the given number.
func (m *Message) Option(number uint16) ([]byte, bool) {
	for _, o := range m.Options {
		if o.Number == number {
			return o.Value, true
		}
	}
	return nil, false
}

// Path joins the URI-Path options, e.g. "cit/s".
func (m *Message) Path() string {
	var segments []string
	for _, o := range m.Options {
		if o.Number == OptionURIPath {
			segments = append(segments, string(o.Value))
		}
	}
	return strings.Join(segments, "/")
}

// IsStatus reports whether the message is a CoIoT status publication.
func (m *Message) IsStatus() bool {
	return m.Code == CodeCoIoT && m.Path() == "cit/s"
}

// uintOption decodes a CoAP uint option (big endian, 0-4 bytes).
func uintOption(value []byte) (uint32, error) {
	if len(value) > 4 { //nolint:mnd // CoAP uint options are at most 4 bytes
		return 0, fmt.Errorf("%w: uint option of %d bytes", ErrMalformedOption, len(value))
	}
	var v uint32
	for _, b := range value {
		v = v<<8 | uint32(b)
	}
	return v, nil
}
