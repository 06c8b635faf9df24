package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/attendlog/internal/db"
	"github.com/attendlog/internal/ledger"
	"github.com/attendlog/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type settingsRequest struct {
	StartDate            string           `json:"start_date" binding:"required"`
	EndDate              string           `json:"end_date" binding:"required"`
	WorkingDays          []string         `json:"working_days"`
	DailyRequiredMinutes *int             `json:"daily_required_minutes"`
	DailyWorkingHours    *decimal.Decimal `json:"daily_working_hours"`
}

type settingsView struct {
	StartDate            string    `json:"start_date"`
	EndDate              string    `json:"end_date"`
	WorkingDays          []string  `json:"working_days"`
	DailyRequiredMinutes int       `json:"daily_required_minutes"`
	DailyWorkingHours    string    `json:"daily_working_hours"`
	Revision             int64     `json:"revision"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func newSettingsView(row *db.Settings) settingsView {
	days, _ := ledger.ParseWeekdays(row.WorkingDays)
	return settingsView{
		StartDate:            row.StartDate,
		EndDate:              row.EndDate,
		WorkingDays:          days.Names(),
		DailyRequiredMinutes: row.DailyRequiredMinutes,
		DailyWorkingHours:    ledger.Hours(row.DailyRequiredMinutes).StringFixed(2),
		Revision:             row.Revision,
		UpdatedAt:            row.UpdatedAt,
	}
}

// GetSettings 返回当前考勤设置。
func (a *API) GetSettings(c *gin.Context) {
	row, err := a.policy.GetSettings(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "获取设置失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": newSettingsView(row)})
}

// UpdateSettings 整体替换考勤设置。每日时长可用分钟或小时（如 7.5）给出，分钟优先。
func (a *API) UpdateSettings(c *gin.Context) {
	var req settingsRequest
	if !bindJSON(c, &req, "开始日期与结束日期不能为空") {
		return
	}

	r, ok := parseRange(c, req.StartDate, req.EndDate)
	if !ok {
		return
	}

	days := ledger.MondayToFriday
	if req.WorkingDays != nil {
		parsed, err := ledger.ParseWeekdayList(req.WorkingDays)
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的工作日")
			return
		}
		days = parsed
	}

	var minutes int
	switch {
	case req.DailyRequiredMinutes != nil:
		minutes = *req.DailyRequiredMinutes
	case req.DailyWorkingHours != nil:
		m, err := ledger.MinutesFromHours(*req.DailyWorkingHours)
		if err != nil {
			respondServiceError(c, err, "无效的每日工时")
			return
		}
		minutes = m
	default:
		respondError(c, http.StatusBadRequest, "需要提供 daily_required_minutes 或 daily_working_hours")
		return
	}

	row, err := a.policy.UpdateSettings(c.Request.Context(), service.SettingsInput{
		StartDate:            r.Start,
		EndDate:              r.End,
		WorkingDays:          days,
		DailyRequiredMinutes: minutes,
	})
	if err != nil {
		respondServiceError(c, err, "保存设置失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "设置已保存", "settings": newSettingsView(row)})
}

type holidayRequest struct {
	Date        string `json:"date" binding:"required"`
	Description string `json:"description"`
}

type rangeRequest struct {
	StartDate   string `json:"start_date" binding:"required"`
	EndDate     string `json:"end_date" binding:"required"`
	Description string `json:"description"`
}

// ListHolidays 返回节假日，可用 ?start=&end= 过滤。
func (a *API) ListHolidays(c *gin.Context) {
	r, ok := parseRangeQuery(c)
	if !ok {
		return
	}
	rows, err := a.policy.ListHolidays(c.Request.Context(), r)
	if err != nil {
		respondServiceError(c, err, "获取节假日失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"holidays": rows})
}

// CreateHoliday 添加单个节假日；日期已存在时更新描述。
func (a *API) CreateHoliday(c *gin.Context) {
	var req holidayRequest
	if !bindJSON(c, &req, "日期不能为空") {
		return
	}
	d, err := ledger.ParseDate(req.Date)
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的日期，格式应为 YYYY-MM-DD")
		return
	}
	holiday, err := a.policy.AddHoliday(c.Request.Context(), d, req.Description)
	if err != nil {
		respondServiceError(c, err, "添加节假日失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "节假日已添加", "holiday": holiday})
}

// CreateHolidayRange 把区间内每一天设为节假日。
func (a *API) CreateHolidayRange(c *gin.Context) {
	var req rangeRequest
	if !bindJSON(c, &req, "开始日期与结束日期不能为空") {
		return
	}
	r, ok := parseRange(c, req.StartDate, req.EndDate)
	if !ok {
		return
	}
	res, err := a.policy.AddHolidayRange(c.Request.Context(), r, req.Description)
	if err != nil {
		respondServiceError(c, err, "添加节假日失败")
		return
	}
	c.JSON(http.StatusOK, res)
}

// DeleteHoliday 删除节假日。
func (a *API) DeleteHoliday(c *gin.Context) {
	d, ok := parseDateParam(c, "date")
	if !ok {
		return
	}
	if err := a.policy.DeleteHoliday(c.Request.Context(), d); err != nil {
		respondServiceError(c, err, "删除节假日失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "节假日已删除"})
}

type leaveRequest struct {
	Date        string `json:"date"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Kind        string `json:"kind" binding:"required"`
	Description string `json:"description"`
}

// ListLeaves 返回请假记录，可用 ?start=&end= 过滤。
func (a *API) ListLeaves(c *gin.Context) {
	r, ok := parseRangeQuery(c)
	if !ok {
		return
	}
	rows, err := a.policy.ListLeaves(c.Request.Context(), r)
	if err != nil {
		respondServiceError(c, err, "获取请假记录失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaves": rows})
}

// CreateLeave 添加请假。给出 date 时只登记这一天；给出 start_date/end_date 时跳过非工作日与节假日。
func (a *API) CreateLeave(c *gin.Context) {
	var req leaveRequest
	if !bindJSON(c, &req, "请假类型不能为空") {
		return
	}
	kind, err := ledger.ParseLeaveKind(req.Kind)
	if err != nil {
		respondError(c, http.StatusBadRequest, "请假类型只能是 half 或 full")
		return
	}

	if date := strings.TrimSpace(req.Date); date != "" {
		d, err := ledger.ParseDate(date)
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的日期，格式应为 YYYY-MM-DD")
			return
		}
		leave, err := a.policy.AddLeave(c.Request.Context(), d, kind, req.Description)
		if err != nil {
			respondServiceError(c, err, "添加请假失败")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "请假已添加", "leave": leave})
		return
	}

	if strings.TrimSpace(req.StartDate) == "" || strings.TrimSpace(req.EndDate) == "" {
		respondError(c, http.StatusBadRequest, "需要提供 date 或 start_date 与 end_date")
		return
	}
	r, ok := parseRange(c, req.StartDate, req.EndDate)
	if !ok {
		return
	}
	res, err := a.policy.AddLeaveRange(c.Request.Context(), r, kind, req.Description)
	if err != nil {
		respondServiceError(c, err, "添加请假失败")
		return
	}
	c.JSON(http.StatusOK, res)
}

// DeleteLeave 删除请假。
func (a *API) DeleteLeave(c *gin.Context) {
	d, ok := parseDateParam(c, "date")
	if !ok {
		return
	}
	if err := a.policy.DeleteLeave(c.Request.Context(), d); err != nil {
		respondServiceError(c, err, "删除请假失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "请假已删除"})
}
