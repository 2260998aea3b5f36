package coiot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Validity unit encodings for option 3412.
const (
	validityQuarterSecond = 250 * time.Millisecond
	validityTenSeconds    = 10 * time.Second
)

// Property is one [channel, id, value] triple from a status payload.
type Property struct {
	Channel int
	ID      int
	Value   any
}

// StatusUpdate is a decoded CoIoT status publication from a single device.
type StatusUpdate struct {
	// DeviceType is the model identifier, e.g. "SHSW-1".
	DeviceType string

	// DeviceID is the device's unique identifier, e.g. "ABC123".
	DeviceID string

	// Revision is the CoIoT description revision advertised by the device.
	Revision string

	// Host is the IP address the datagram arrived from.
	Host string

	// Validity is how long the device promises the status remains current.
	// Zero means the device did not advertise one.
	Validity time.Duration

	// Serial increments whenever the device's state changes.
	Serial uint16

	// Properties holds the decoded payload.
	Properties []Property

	// ReceivedAt is when the datagram was read.
	ReceivedAt time.Time
}

// Key returns the "type#id" identity of the reporting device.
func (u StatusUpdate) Key() string {
	return u.DeviceType + "#" + u.DeviceID
}

// ParseStatus extracts a StatusUpdate from a CoIoT status message.
//
// Parameters:
//   - msg: decoded CoAP message, expected to satisfy IsStatus
//   - host: source address of the datagram
//
// Returns:
//   - StatusUpdate: the decoded update
//   - error: if the device ID option is missing or the payload is not valid
func ParseStatus(msg *Message, host string) (StatusUpdate, error) {
	raw, ok := msg.Option(OptionDeviceID)
	if !ok {
		return StatusUpdate{}, ErrMissingDeviceID
	}

	deviceType, deviceID, revision, err := splitDeviceID(string(raw))
	if err != nil {
		return StatusUpdate{}, err
	}

	update := StatusUpdate{
		DeviceType: deviceType,
		DeviceID:   deviceID,
		Revision:   revision,
		Host:       host,
	}

	if v, ok := msg.Option(OptionValidity); ok {
		n, err := uintOption(v)
		if err != nil {
			return StatusUpdate{}, fmt.Errorf("validity: %w", err)
		}
		update.Validity = decodeValidity(n)
	}

	if v, ok := msg.Option(OptionSerial); ok {
		n, err := uintOption(v)
		if err != nil {
			return StatusUpdate{}, fmt.Errorf("serial: %w", err)
		}
		update.Serial = uint16(n) //nolint:gosec // serial is a 16-bit counter on the wire
	}

	if len(msg.Payload) > 0 {
		props, err := parseProperties(msg.Payload)
		if err != nil {
			return StatusUpdate{}, err
		}
		update.Properties = props
	}

	return update, nil
}

// splitDeviceID splits "TYPE#ID#REV". The revision part is optional.
func splitDeviceID(raw string) (deviceType, deviceID, revision string, err error) {
	parts := strings.Split(raw, "#")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidDeviceID, raw)
	}
	if len(parts) > 2 {
		revision = parts[2]
	}
	return parts[0], parts[1], revision, nil
}

// decodeValidity converts the option 3412 encoding into a duration.
// An even value counts quarter seconds, an odd value counts tens of seconds.
func decodeValidity(v uint32) time.Duration {
	if v&0x1 == 0 {
		return time.Duration(v) * validityQuarterSecond
	}
	return time.Duration(v) * validityTenSeconds
}

// parseProperties decodes {"G":[[ch,id,val],...]}.
func parseProperties(payload []byte) ([]Property, error) {
	var body struct {
		G [][]json.RawMessage `json:"G"`
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	props := make([]Property, 0, len(body.G))
	for i, triple := range body.G {
		if len(triple) != 3 { //nolint:mnd // [channel, id, value]
			return nil, fmt.Errorf("%w: entry %d has %d elements", ErrInvalidPayload, i, len(triple))
		}

		channel, err := strconv.Atoi(string(triple[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d channel: %w", ErrInvalidPayload, i, err)
		}
		id, err := strconv.Atoi(string(triple[1]))
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d id: %w", ErrInvalidPayload, i, err)
		}
		value, err := decodeValue(triple[2])
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d value: %w", ErrInvalidPayload, i, err)
		}

		props = append(props, Property{Channel: channel, ID: id, Value: value})
	}
	return props, nil
}

// decodeValue turns a JSON scalar into int64, float64, string, bool or nil.
func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		return n.Float64()
	}
	return v, nil
}
