package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type heartbeatResponse struct {
	ID              string `json:"id"`
	DeviceID        string `json:"device_id"`
	Date            string `json:"date"`
	Duplicate       bool   `json:"duplicate"`
	RecordedMinutes int    `json:"recorded_minutes"`
}

func TestPostHeartbeatRejectedWithoutConfiguredToken(t *testing.T) {
	env := newTestEnv(t, Options{}, "")

	rr := env.do(t, http.MethodPost, "/api/heartbeat", "anything", gin.H{"device_id": "laptop"})
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestPostHeartbeatRecordsAndDeduplicates(t *testing.T) {
	env := newTestEnv(t, Options{AgentToken: testAgentToken}, "")

	body := gin.H{"device_id": "laptop", "timestamp": "2024-03-04T09:00:00Z"}
	if rr := env.do(t, http.MethodPost, "/api/heartbeat", "", body); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}
	if rr := env.do(t, http.MethodPost, "/api/heartbeat", "wrong", body); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rr.Code)
	}

	id := uuid.NewString()
	first := env.do(t, http.MethodPost, "/api/heartbeat", testAgentToken, gin.H{
		"id": id, "device_id": "laptop", "timestamp": "2024-03-04T09:00:00Z",
	})
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", first.Code, first.Body.String())
	}
	var res heartbeatResponse
	decodeJSON(t, first, &res)
	if res.ID != id || res.Date != "2024-03-04" || res.RecordedMinutes != 1 || res.Duplicate {
		t.Fatalf("unexpected response %+v", res)
	}

	again := env.do(t, http.MethodPost, "/api/heartbeat", testAgentToken, gin.H{
		"id": id, "device_id": "laptop", "timestamp": "2024-03-04T09:05:00Z",
	})
	if again.Code != http.StatusOK {
		t.Fatalf("expected 200 for duplicate, got %d", again.Code)
	}
	decodeJSON(t, again, &res)
	if !res.Duplicate || res.RecordedMinutes != 1 {
		t.Fatalf("duplicate must not change minutes: %+v", res)
	}

	next := env.do(t, http.MethodPost, "/api/heartbeat", testAgentToken, gin.H{
		"device_id": "laptop", "timestamp": "2024-03-04T09:02:00Z",
	})
	if next.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", next.Code)
	}
	decodeJSON(t, next, &res)
	// 09:01 has no heartbeat, so only two minutes are recorded.
	if res.RecordedMinutes != 2 {
		t.Fatalf("expected 2 recorded minutes, got %d", res.RecordedMinutes)
	}

	list := env.do(t, http.MethodGet, "/api/heartbeats/2024-03-04", env.token(t), nil)
	if list.Code != http.StatusOK {
		t.Fatalf("list heartbeats: %d", list.Code)
	}
	var day struct {
		Count     int `json:"count"`
		Intervals []struct {
			Start string `json:"start"`
			End   string `json:"end"`
			Beats int    `json:"beats"`
		} `json:"intervals"`
	}
	decodeJSON(t, list, &day)
	if day.Count != 2 || len(day.Intervals) != 1 || day.Intervals[0].Beats != 2 {
		t.Fatalf("unexpected day listing %+v", day)
	}
}

func TestPostHeartbeatValidation(t *testing.T) {
	env := newTestEnv(t, Options{AgentToken: testAgentToken}, "")

	tests := []struct {
		name string
		body gin.H
	}{
		{name: "missing device", body: gin.H{"timestamp": "2024-03-04T09:00:00Z"}},
		{name: "invalid id", body: gin.H{"id": "not-a-uuid", "device_id": "laptop"}},
		{name: "invalid timestamp", body: gin.H{"device_id": "laptop", "timestamp": "yesterday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/heartbeat", testAgentToken, tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d (%s)", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestPostHeartbeatRateLimitedPerDevice(t *testing.T) {
	env := newTestEnv(t, Options{AgentToken: testAgentToken, HeartbeatRatePerMinute: 2}, "")

	if rr := env.do(t, http.MethodPost, "/api/heartbeat", testAgentToken, gin.H{"device_id": "laptop"}); rr.Code != http.StatusCreated {
		t.Fatalf("expected first heartbeat to pass, got %d", rr.Code)
	}
	if rr := env.do(t, http.MethodPost, "/api/heartbeat", testAgentToken, gin.H{"device_id": "laptop"}); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr := env.do(t, http.MethodPost, "/api/heartbeat", testAgentToken, gin.H{"device_id": "desktop"}); rr.Code != http.StatusCreated {
		t.Fatalf("other devices keep their own budget, got %d", rr.Code)
	}
}

func TestRebuildAttendanceAndHealth(t *testing.T) {
	env := newTestEnv(t, Options{AgentToken: testAgentToken}, "")
	for _, ts := range []string{"2024-03-04T09:00:00Z", "2024-03-05T09:00:00Z"} {
		if rr := env.do(t, http.MethodPost, "/api/heartbeat", testAgentToken, gin.H{"device_id": "laptop", "timestamp": ts}); rr.Code != http.StatusCreated {
			t.Fatalf("record heartbeat: %d", rr.Code)
		}
	}

	rr := env.do(t, http.MethodPost, "/api/attendance/rebuild", env.token(t), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("rebuild: %d (%s)", rr.Code, rr.Body.String())
	}

	env.api.SetIngestStats(func() any { return gin.H{"received": 7} })
	health := env.do(t, http.MethodGet, "/health", "", nil)
	if health.Code != http.StatusOK {
		t.Fatalf("health: %d", health.Code)
	}
	var body struct {
		Status     string         `json:"status"`
		Heartbeats int            `json:"heartbeats"`
		MQTT       map[string]int `json:"mqtt"`
	}
	decodeJSON(t, health, &body)
	if body.Status != "ok" || body.Heartbeats != 2 || body.MQTT["received"] != 7 {
		t.Fatalf("unexpected health body %+v", body)
	}
}
