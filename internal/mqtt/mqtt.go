// Package mqtt carries heartbeats over an MQTT broker, with fakes for tests.
package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// DefaultTopic is the topic heartbeats are published to when none is configured.
const DefaultTopic = "attendlog/heartbeat"

// ErrEmptyPayload is returned by ParsePayload for blank messages.
var ErrEmptyPayload = errors.New("empty heartbeat payload")

// Payload is the JSON body of a heartbeat message.
type Payload struct {
	ID        string `json:"id,omitempty"`
	DeviceID  string `json:"device_id"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Heartbeat is a decoded heartbeat message.
type Heartbeat struct {
	ID        string
	DeviceID  string
	Timestamp time.Time // zero means "when received"
}

// Publisher sends heartbeats to the broker.
type Publisher interface {
	// Publish sends a heartbeat and waits for the broker to acknowledge it.
	Publish(hb Heartbeat) error

	// Close disconnects from the broker.
	Close() error
}

// Handler is invoked for every message on a subscribed topic.
type Handler func(payload []byte)

// Subscriber receives raw messages from the broker.
type Subscriber interface {
	Subscribe(topic string, handler Handler) error
	Close() error
}

// FormatPayload creates the JSON payload for a heartbeat.
func FormatPayload(hb Heartbeat) ([]byte, error) {
	payload := Payload{ID: hb.ID, DeviceID: hb.DeviceID}
	if !hb.Timestamp.IsZero() {
		payload.Timestamp = hb.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(payload)
}

// ParsePayload decodes a heartbeat message. The timestamp accepts RFC 3339
// or Unix seconds.
func ParsePayload(raw []byte) (Heartbeat, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return Heartbeat{}, ErrEmptyPayload
	}

	var body struct {
		ID        string          `json:"id"`
		DeviceID  string          `json:"device_id"`
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return Heartbeat{}, err
	}

	hb := Heartbeat{ID: body.ID, DeviceID: body.DeviceID}
	ts, err := parseTimestamp(body.Timestamp)
	if err != nil {
		return Heartbeat{}, err
	}
	hb.Timestamp = ts
	return hb, nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}

	var unix int64
	if err := json.Unmarshal(raw, &unix); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return time.Time{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, text)
}
