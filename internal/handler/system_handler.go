package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck 提供监控系统使用的健康检查端点，附带心跳总数与 MQTT 统计。
func (a *API) HealthCheck(c *gin.Context) {
	sqlDB, err := a.db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "database handle unavailable",
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "database unreachable",
		})
		return
	}

	body := gin.H{
		"status":   "ok",
		"database": "up",
	}
	if count, err := a.heartbeats.Count(c.Request.Context()); err == nil {
		body["heartbeats"] = count
	}
	if a.ingestStats != nil {
		body["mqtt"] = a.ingestStats()
	}
	c.JSON(http.StatusOK, body)
}
