// Package agent sends a single heartbeat from the machine being tracked,
// either to the HTTP API or through an MQTT broker.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/attendlog/internal/mqtt"
	"github.com/google/uuid"
)

// DefaultTimeout bounds a single HTTP heartbeat.
const DefaultTimeout = 10 * time.Second

// ErrMissingToken is returned when the HTTP sender has no bearer token.
var ErrMissingToken = errors.New("bearer token is required")

// Heartbeat is what the agent reports.
type Heartbeat struct {
	ID        string
	DeviceID  string
	Timestamp time.Time
}

// Sender delivers one heartbeat.
type Sender interface {
	Send(ctx context.Context, hb Heartbeat) error
}

// NewHeartbeat stamps a heartbeat for device with a fresh id. An empty
// device falls back to the short host name.
func NewHeartbeat(device string, now time.Time) Heartbeat {
	device = strings.TrimSpace(device)
	if device == "" {
		device = Hostname()
	}
	return Heartbeat{ID: uuid.NewString(), DeviceID: device, Timestamp: now.UTC().Truncate(time.Second)}
}

// Hostname returns the first label of the host name.
func Hostname() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "unknown"
	}
	return strings.SplitN(host, ".", 2)[0]
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSender posts heartbeats to <server>/api/heartbeat.
type HTTPSender struct {
	base     string
	endpoint string
	token    string
	http     httpDoer
}

// NewHTTPSender builds an HTTPSender for the server base URL.
func NewHTTPSender(serverURL, token string) (*HTTPSender, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}
	base := strings.TrimRight(strings.TrimSpace(serverURL), "/")
	if base == "" {
		return nil, errors.New("server url is required")
	}
	return &HTTPSender{
		base:     base,
		endpoint: base + "/api/heartbeat",
		token:    token,
		http:     &http.Client{Timeout: DefaultTimeout},
	}, nil
}

// SetHTTPClient replaces the HTTP client; nil restores the default.
func (s *HTTPSender) SetHTTPClient(client httpDoer) {
	if client == nil {
		s.http = &http.Client{Timeout: DefaultTimeout}
		return
	}
	s.http = client
}

type heartbeatRequest struct {
	ID        string `json:"id,omitempty"`
	DeviceID  string `json:"device_id"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Send posts hb and treats any non-2xx status as failure.
func (s *HTTPSender) Send(ctx context.Context, hb Heartbeat) error {
	payload := heartbeatRequest{ID: hb.ID, DeviceID: hb.DeviceID}
	if !hb.Timestamp.IsZero() {
		payload.Timestamp = hb.Timestamp.UTC().Format(time.RFC3339)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode heartbeat: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "attendlog-agent/"+hb.DeviceID)

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("post heartbeat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		text := strings.TrimSpace(string(msg))
		if text == "" {
			text = resp.Status
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, text)
	}
	return nil
}

// Ping checks that the server answers its health endpoint.
func (s *HTTPSender) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("ping server: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return nil
}

// MQTTSender publishes heartbeats through a broker.
type MQTTSender struct {
	pub mqtt.Publisher
}

// NewMQTTSender wraps pub.
func NewMQTTSender(pub mqtt.Publisher) *MQTTSender {
	return &MQTTSender{pub: pub}
}

// Send publishes hb. The broker acknowledgement is awaited by the publisher.
func (s *MQTTSender) Send(ctx context.Context, hb Heartbeat) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.pub.Publish(mqtt.Heartbeat{ID: hb.ID, DeviceID: hb.DeviceID, Timestamp: hb.Timestamp})
}

// Close disconnects the publisher.
func (s *MQTTSender) Close() error {
	return s.pub.Close()
}

// RunOnce sends one heartbeat and returns the process exit code: 0 on
// success, 1 otherwise.
func RunOnce(ctx context.Context, sender Sender, hb Heartbeat, logf func(format string, args ...any)) int {
	if err := sender.Send(ctx, hb); err != nil {
		logf("failed to send heartbeat for %s: %v", hb.DeviceID, err)
		return 1
	}
	logf("heartbeat sent for %s at %s", hb.DeviceID, hb.Timestamp.Format(time.RFC3339))
	return 0
}
