package net

import (
	"errors"
	"math"
	"reflect"

	"github.com/ugorji/go/codec"
)

const (
	// MessageType is the type of every broadcast envelope.
	MessageType = "message"
	// HeartbeatType marks heartbeat payloads.
	HeartbeatType = "HeartBeat"
	// Ping is the message of an outgoing heartbeat.
	Ping = "ping"
	// Pong is the message of a heartbeat reply.
	Pong = "pong"
)

// ErrMalformedEnvelope is returned when bytes on the wire do not form a
// broadcast envelope.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Envelope is the signed broadcast message exchanged between nodes. Data is
// either a string or the generic form of a JSON value (maps, slices, strings,
// int64, float64, bool, nil).
type Envelope struct {
	Data      interface{} `codec:"data"`
	PubKey    string      `codec:"pubKey"`
	Signature string      `codec:"signature"`
	Timestamp int64       `codec:"timestamp"`
	Type      string      `codec:"type"`
}

// Heartbeat is the payload of ping and pong messages.
type Heartbeat struct {
	Message   string `codec:"message"`
	Timestamp int64  `codec:"timestamp"`
	Type      string `codec:"type"`
}

// NewPing returns a ping stamped with ts, in milliseconds.
func NewPing(ts int64) Heartbeat {
	return Heartbeat{
		Message:   Ping,
		Timestamp: ts,
		Type:      HeartbeatType,
	}
}

func jsonHandle() *codec.JsonHandle {
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	jh.SignedInteger = true
	jh.MapType = reflect.TypeOf(map[string]interface{}(nil))
	return jh
}

// Marshal returns the JSON text of the envelope.
func (e *Envelope) Marshal() ([]byte, error) {
	var b []byte
	enc := codec.NewEncoderBytes(&b, jsonHandle())
	if err := enc.Encode(e); err != nil {
		return nil, err
	}
	return b, nil
}

// UnmarshalEnvelope parses raw into an Envelope. The public key must be a
// non-empty string, the timestamp an integer and data must be present.
func UnmarshalEnvelope(raw []byte) (*Envelope, error) {
	var generic interface{}
	dec := codec.NewDecoderBytes(raw, jsonHandle())
	if err := dec.Decode(&generic); err != nil {
		return nil, ErrMalformedEnvelope
	}

	m, ok := generic.(map[string]interface{})
	if !ok {
		return nil, ErrMalformedEnvelope
	}

	pubKey, ok := m["pubKey"].(string)
	if !ok || pubKey == "" {
		return nil, ErrMalformedEnvelope
	}

	ts, ok := AsInt64(m["timestamp"])
	if !ok {
		return nil, ErrMalformedEnvelope
	}

	data, ok := m["data"]
	if !ok || data == nil {
		return nil, ErrMalformedEnvelope
	}

	sig, _ := m["signature"].(string)
	typ, _ := m["type"].(string)

	return &Envelope{
		Data:      data,
		PubKey:    pubKey,
		Signature: sig,
		Timestamp: ts,
		Type:      typ,
	}, nil
}

// NormalizePayload converts data into the generic form it takes after a trip
// over the wire. Strings are returned unchanged.
func NormalizePayload(data interface{}) (interface{}, error) {
	if s, ok := data.(string); ok {
		return s, nil
	}

	h := jsonHandle()

	var b []byte
	if err := codec.NewEncoderBytes(&b, h).Encode(data); err != nil {
		return nil, err
	}

	var generic interface{}
	if err := codec.NewDecoderBytes(b, h).Decode(&generic); err != nil {
		return nil, err
	}

	return generic, nil
}

// DecodePayload parses JSON text into the generic form of a payload.
func DecodePayload(raw []byte) (interface{}, error) {
	var generic interface{}
	if err := codec.NewDecoderBytes(raw, jsonHandle()).Decode(&generic); err != nil {
		return nil, err
	}
	return generic, nil
}

// CanonicalPayload returns the message that is signed for data: a string is
// used verbatim, anything else is the canonical JSON text of its generic
// form, with sorted map keys.
func CanonicalPayload(data interface{}) (string, error) {
	if s, ok := data.(string); ok {
		return s, nil
	}

	generic, err := NormalizePayload(data)
	if err != nil {
		return "", err
	}

	var b []byte
	if err := codec.NewEncoderBytes(&b, jsonHandle()).Encode(generic); err != nil {
		return "", err
	}

	return string(b), nil
}

// ParseHeartbeat recognises a heartbeat payload in the generic form of an
// envelope's data.
func ParseHeartbeat(data interface{}) (Heartbeat, bool) {
	m, ok := data.(map[string]interface{})
	if !ok {
		return Heartbeat{}, false
	}

	typ, _ := m["type"].(string)
	if typ != HeartbeatType {
		return Heartbeat{}, false
	}

	msg, ok := m["message"].(string)
	if !ok {
		return Heartbeat{}, false
	}

	ts, ok := AsInt64(m["timestamp"])
	if !ok {
		return Heartbeat{}, false
	}

	return Heartbeat{
		Message:   msg,
		Timestamp: ts,
		Type:      typ,
	}, true
}

// HeartbeatMessage returns the payload as a map when it is a heartbeat whose
// message is msg. Unlike ParseHeartbeat it does not require a timestamp.
func HeartbeatMessage(data interface{}, msg string) (map[string]interface{}, bool) {
	m, ok := data.(map[string]interface{})
	if !ok {
		return nil, false
	}
	if typ, _ := m["type"].(string); typ != HeartbeatType {
		return nil, false
	}
	if got, _ := m["message"].(string); got != msg {
		return nil, false
	}
	return m, true
}

// PongFor copies a ping payload and turns it into a pong. Every other field,
// the timestamp included, is echoed unchanged.
func PongFor(ping map[string]interface{}) map[string]interface{} {
	pong := make(map[string]interface{}, len(ping))
	for k, v := range ping {
		pong[k] = v
	}
	pong["message"] = Pong
	return pong
}

// AsInt64 converts a decoded JSON number to int64. Floats are accepted only
// when they hold an integral value.
func AsInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || n >= 9223372036854775808.0 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}
