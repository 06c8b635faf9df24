// Package ingest feeds heartbeats received over MQTT into the heartbeat
// service.
package ingest

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/attendlog/internal/logger"
	"github.com/attendlog/internal/mqtt"
	"github.com/attendlog/internal/ratelimit"
	"github.com/attendlog/internal/service"
	"go.uber.org/zap"
)

// ErrRateLimited is returned by Handle when a device sends too often.
var ErrRateLimited = errors.New("heartbeat rate limit exceeded")

// Recorder stores a heartbeat. *service.HeartbeatService satisfies it.
type Recorder interface {
	Record(ctx context.Context, in service.HeartbeatInput) (*service.HeartbeatResult, error)
}

// Stats counts what the listener has seen since it started.
type Stats struct {
	Received   int64 `json:"received"`
	Recorded   int64 `json:"recorded"`
	Duplicates int64 `json:"duplicates"`
	Rejected   int64 `json:"rejected"`
}

// Listener subscribes to a topic and records every valid heartbeat on it.
type Listener struct {
	sub      mqtt.Subscriber
	topic    string
	recorder Recorder
	limiter  *ratelimit.Keyed

	received   atomic.Int64
	recorded   atomic.Int64
	duplicates atomic.Int64
	rejected   atomic.Int64
}

// NewListener builds a Listener. limiter may be nil.
func NewListener(sub mqtt.Subscriber, topic string, recorder Recorder, limiter *ratelimit.Keyed) *Listener {
	if strings.TrimSpace(topic) == "" {
		topic = mqtt.DefaultTopic
	}
	return &Listener{sub: sub, topic: topic, recorder: recorder, limiter: limiter}
}

// Start subscribes to the topic. Messages are recorded with ctx until it is
// cancelled; later messages are dropped.
func (l *Listener) Start(ctx context.Context) error {
	return l.sub.Subscribe(l.topic, func(payload []byte) {
		if ctx.Err() != nil {
			return
		}
		if _, err := l.Handle(ctx, payload); err != nil {
			logger.L.Warn("mqtt heartbeat rejected", zap.String("topic", l.topic), zap.Error(err))
		}
	})
}

// Handle decodes and records a single message.
func (l *Listener) Handle(ctx context.Context, payload []byte) (*service.HeartbeatResult, error) {
	l.received.Add(1)

	hb, err := mqtt.ParsePayload(payload)
	if err != nil {
		l.rejected.Add(1)
		return nil, err
	}
	if !l.limiter.Allow(strings.TrimSpace(hb.DeviceID)) {
		l.rejected.Add(1)
		return nil, ErrRateLimited
	}

	res, err := l.recorder.Record(ctx, service.HeartbeatInput{
		ID:        hb.ID,
		DeviceID:  hb.DeviceID,
		Timestamp: hb.Timestamp,
	})
	if err != nil {
		l.rejected.Add(1)
		return nil, err
	}
	if res.Duplicate {
		l.duplicates.Add(1)
	} else {
		l.recorded.Add(1)
	}
	logger.L.Debug("mqtt heartbeat",
		zap.String("device_id", res.Heartbeat.DeviceID),
		zap.String("date", res.Date.String()),
		zap.Bool("duplicate", res.Duplicate),
		zap.Int("recorded_minutes", res.RecordedMinutes),
	)
	return res, nil
}

// Stats returns a snapshot of the counters.
func (l *Listener) Stats() Stats {
	return Stats{
		Received:   l.received.Load(),
		Recorded:   l.recorded.Load(),
		Duplicates: l.duplicates.Load(),
		Rejected:   l.rejected.Load(),
	}
}

// Close releases the subscriber.
func (l *Listener) Close() error {
	return l.sub.Close()
}
