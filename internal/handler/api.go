package handler

import (
	"strings"

	"github.com/attendlog/internal/ratelimit"
	"github.com/attendlog/internal/service"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Options 汇总 API 的可选配置。
type Options struct {
	// AgentToken 是心跳代理使用的 Bearer token；为空时心跳接口拒绝所有请求。
	AgentToken string
	// HeartbeatRatePerMinute 限制单个设备每分钟的心跳数，<= 0 表示不限制。
	HeartbeatRatePerMinute int
	// SiteName 显示在页面标题中。
	SiteName string
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db          *gorm.DB
	heartbeats  *service.HeartbeatService
	attendance  *service.AttendanceService
	policy      *service.PolicyService
	corrections *service.CorrectionService
	ledger      *service.LedgerService
	recalc      *service.RecalcService
	auth        *service.AuthService
	limiter     *ratelimit.Keyed
	agentToken  string
	siteName    string
	ingestStats func() any
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, svc *service.Services, opts Options) *API {
	name := strings.TrimSpace(opts.SiteName)
	if name == "" {
		name = "AttendLog"
	}
	return &API{
		db:          gdb,
		heartbeats:  svc.Heartbeats,
		attendance:  svc.Attendance,
		policy:      svc.Policy,
		corrections: svc.Corrections,
		ledger:      svc.Ledger,
		recalc:      svc.Recalc,
		auth:        svc.Auth,
		limiter:     ratelimit.New(opts.HeartbeatRatePerMinute),
		agentToken:  strings.TrimSpace(opts.AgentToken),
		siteName:    name,
	}
}

// SetIngestStats 挂接 MQTT 监听器的统计信息，健康检查会一并返回。
func (a *API) SetIngestStats(stats func() any) {
	a.ingestStats = stats
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}

func (a *API) renderHTML(c *gin.Context, status int, template string, data gin.H) {
	payload := gin.H{}
	for key, value := range data {
		payload[key] = value
	}
	if _, exists := payload["siteName"]; !exists {
		payload["siteName"] = a.siteName
	}
	if _, exists := payload["username"]; !exists {
		payload["username"] = currentUsername(c)
	}
	c.HTML(status, template, payload)
}
