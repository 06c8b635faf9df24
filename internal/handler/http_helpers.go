package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/attendlog/internal/auth"
	"github.com/attendlog/internal/ledger"
	"github.com/attendlog/internal/logger"
	"github.com/attendlog/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

// respondServiceError 把服务层错误映射为 HTTP 状态码；未识别的错误记录日志并返回 500。
func respondServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ledger.ErrInvalidRange):
		respondError(c, http.StatusBadRequest, "日期区间无效：结束日期早于开始日期")
	case errors.Is(err, ledger.ErrNegativeMinutes):
		respondError(c, http.StatusBadRequest, "分钟数不能为负数")
	case errors.Is(err, service.ErrDeviceIDRequired):
		respondError(c, http.StatusBadRequest, "device_id 不能为空")
	case errors.Is(err, service.ErrInvalidHeartbeatID):
		respondError(c, http.StatusBadRequest, "心跳 ID 必须是 UUID")
	case errors.Is(err, ledger.ErrMissingSettings):
		respondError(c, http.StatusNotFound, "尚未配置考勤设置")
	case errors.Is(err, service.ErrHolidayNotFound):
		respondError(c, http.StatusNotFound, "节假日不存在")
	case errors.Is(err, service.ErrLeaveNotFound):
		respondError(c, http.StatusNotFound, "请假记录不存在")
	case errors.Is(err, service.ErrCorrectionNotFound):
		respondError(c, http.StatusNotFound, "修正记录不存在")
	case errors.Is(err, ledger.ErrConcurrentSettingsChange):
		respondError(c, http.StatusConflict, "重算期间设置被修改，请重试")
	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "用户名或密码错误")
	case errors.Is(err, service.ErrTOTPRequired):
		respondError(c, http.StatusUnauthorized, "需要二次验证码")
	case errors.Is(err, auth.ErrMissingSecret):
		respondError(c, http.StatusServiceUnavailable, "未配置 JWT_SECRET")
	default:
		logger.L.Error(fallback, zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, http.StatusInternalServerError, fallback)
	}
}

func parseDateParam(c *gin.Context, key string) (ledger.Date, bool) {
	d, err := ledger.ParseDate(c.Param(key))
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的日期，格式应为 YYYY-MM-DD")
		return ledger.Date{}, false
	}
	return d, true
}

// parseRangeQuery 解析 ?start=&end=。两者都为空时返回 nil；只给出一个时视为错误。
func parseRangeQuery(c *gin.Context) (*ledger.DateRange, bool) {
	rawStart := strings.TrimSpace(c.Query("start"))
	rawEnd := strings.TrimSpace(c.Query("end"))
	if rawStart == "" && rawEnd == "" {
		return nil, true
	}
	if rawStart == "" || rawEnd == "" {
		respondError(c, http.StatusBadRequest, "start 与 end 需要同时提供")
		return nil, false
	}
	r, ok := parseRange(c, rawStart, rawEnd)
	if !ok {
		return nil, false
	}
	return &r, true
}

func parseRange(c *gin.Context, rawStart, rawEnd string) (ledger.DateRange, bool) {
	start, err := ledger.ParseDate(rawStart)
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的开始日期")
		return ledger.DateRange{}, false
	}
	end, err := ledger.ParseDate(rawEnd)
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的结束日期")
		return ledger.DateRange{}, false
	}
	r := ledger.DateRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		respondServiceError(c, err, "日期区间无效")
		return ledger.DateRange{}, false
	}
	return r, true
}

// parseAsOf 解析 ?as_of=，支持 today 或具体日期；为空时 ok 为 true 且 set 为 false。
func (a *API) parseAsOf(c *gin.Context) (d ledger.Date, set bool, ok bool) {
	raw := strings.TrimSpace(c.Query("as_of"))
	switch strings.ToLower(raw) {
	case "":
		return ledger.Date{}, false, true
	case "today":
		return a.ledger.Today(), true, true
	}
	d, err := ledger.ParseDate(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的 as_of 日期")
		return ledger.Date{}, false, false
	}
	return d, true, true
}
