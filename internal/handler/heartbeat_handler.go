package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/attendlog/internal/service"
	"github.com/gin-gonic/gin"
)

type heartbeatRequest struct {
	ID        string     `json:"id"`
	DeviceID  string     `json:"device_id"`
	Timestamp *time.Time `json:"timestamp"`
}

// PostHeartbeat 接收心跳代理的上报。重复的心跳 ID 返回 200，新心跳返回 201。
func (a *API) PostHeartbeat(c *gin.Context) {
	var req heartbeatRequest
	if !bindJSON(c, &req, "无效的心跳数据") {
		return
	}
	if !a.limiter.Allow(strings.TrimSpace(req.DeviceID)) {
		respondError(c, http.StatusTooManyRequests, "心跳过于频繁")
		return
	}

	in := service.HeartbeatInput{ID: req.ID, DeviceID: req.DeviceID}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}

	res, err := a.heartbeats.Record(c.Request.Context(), in)
	if err != nil {
		respondServiceError(c, err, "记录心跳失败")
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"id":               res.Heartbeat.UUID,
		"device_id":        res.Heartbeat.DeviceID,
		"timestamp":        res.Heartbeat.Timestamp,
		"date":             res.Date,
		"duplicate":        res.Duplicate,
		"recorded_minutes": res.RecordedMinutes,
	})
}

// RebuildAttendance 从心跳表重建全部 daily_attendances。
func (a *API) RebuildAttendance(c *gin.Context) {
	report, err := a.attendance.RebuildAll(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "重建考勤缓存失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "重建完成", "report": report})
}

// ListDayHeartbeats 返回某日（按配置时区）的原始心跳。
func (a *API) ListDayHeartbeats(c *gin.Context) {
	d, ok := parseDateParam(c, "date")
	if !ok {
		return
	}
	rows, err := a.heartbeats.ListForDate(c.Request.Context(), d)
	if err != nil {
		respondServiceError(c, err, "获取心跳失败")
		return
	}
	intervals, err := a.attendance.Intervals(c.Request.Context(), d)
	if err != nil {
		respondServiceError(c, err, "获取心跳失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": d, "count": len(rows), "heartbeats": rows, "intervals": intervals})
}
