package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/attendlog/internal/chart"
	"github.com/attendlog/internal/ledger"
	"github.com/attendlog/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	defaultChartMonths = 12
	maxChartMonths     = 36
	maxDaysPerRequest  = 366
	maxBalanceDays     = 3 * maxDaysPerRequest
)

type dayView struct {
	ledger.DayLedger
	BalanceText string `json:"balance_text"`
}

func newDayView(l ledger.DayLedger) dayView {
	return dayView{DayLedger: l, BalanceText: ledger.FormatMinutes(l.Balance)}
}

// GetDay 返回单日的类别、应出勤、有效分钟与余额。
func (a *API) GetDay(c *gin.Context) {
	d, ok := parseDateParam(c, "date")
	if !ok {
		return
	}
	day, err := a.ledger.Day(c.Request.Context(), d)
	if err != nil {
		respondServiceError(c, err, "获取日数据失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"day": newDayView(day)})
}

// ListDays 返回区间内逐日数据，区间必填且不超过一年。
func (a *API) ListDays(c *gin.Context) {
	r, ok := parseRangeQuery(c)
	if !ok {
		return
	}
	if r == nil {
		respondError(c, http.StatusBadRequest, "需要提供 start 与 end")
		return
	}
	if r.Days() > maxDaysPerRequest {
		respondError(c, http.StatusBadRequest, "区间不能超过 366 天")
		return
	}
	days, err := a.ledger.Days(c.Request.Context(), *r)
	if err != nil {
		respondServiceError(c, err, "获取日数据失败")
		return
	}
	views := make([]dayView, 0, len(days))
	for _, d := range days {
		views = append(views, newDayView(d))
	}
	c.JSON(http.StatusOK, gin.H{"range": r, "days": views})
}

// MonthlyBalances 返回各月汇总。未给出区间时使用整个报告期，显式区间不超过三年；
// ?as_of= 限制计入的最后日期。
func (a *API) MonthlyBalances(c *gin.Context) {
	r, ok := parseRangeQuery(c)
	if !ok {
		return
	}
	if r != nil && r.Days() > maxBalanceDays {
		respondError(c, http.StatusBadRequest, "区间不能超过三年")
		return
	}
	asOf, limited, ok := a.parseAsOf(c)
	if !ok {
		return
	}

	var (
		rows []ledger.MonthBalance
		err  error
	)
	if limited {
		rows, err = a.ledger.MonthlyBalancesAsOf(c.Request.Context(), r, asOf)
	} else {
		rows, err = a.ledger.MonthlyBalances(c.Request.Context(), r)
	}
	if err != nil {
		respondServiceError(c, err, "获取月度余额失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"months": rows})
}

// TotalBalance 返回整个报告期的总余额；?as_of= 同 MonthlyBalances。
func (a *API) TotalBalance(c *gin.Context) {
	asOf, limited, ok := a.parseAsOf(c)
	if !ok {
		return
	}

	var (
		total ledger.Summary
		err   error
	)
	if limited {
		total, err = a.ledger.TotalBalanceAsOf(c.Request.Context(), asOf)
	} else {
		total, err = a.ledger.TotalBalance(c.Request.Context())
	}
	if err != nil {
		respondServiceError(c, err, "获取总余额失败")
		return
	}

	daily := 0
	if settings, _, err := a.policy.CurrentSettings(c.Request.Context()); err == nil && settings != nil {
		daily = settings.DailyRequiredMinutes
	}
	c.JSON(http.StatusOK, gin.H{
		"total":         total,
		"balance_text":  ledger.FormatMinutes(total.Balance),
		"balance_days":  ledger.FormatWorkdays(total.Balance, daily),
		"balance_hours": ledger.Hours(total.Balance).StringFixed(2),
	})
}

type recalculateRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Recalculate 手动触发重算；可选地限定区间，默认为整个报告期。
func (a *API) Recalculate(c *gin.Context) {
	var req recalculateRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req, "无效的请求") {
		return
	}

	change := service.Change{Reason: "manual"}
	if req.StartDate != "" || req.EndDate != "" {
		r, ok := parseRange(c, req.StartDate, req.EndDate)
		if !ok {
			return
		}
		change.NewPeriod = &r
	}

	report, err := a.recalc.Recalculate(c.Request.Context(), change)
	if err != nil {
		respondServiceError(c, err, "重算失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

func (a *API) chartMonths(c *gin.Context) int {
	months, err := strconv.Atoi(c.DefaultQuery("months", strconv.Itoa(defaultChartMonths)))
	if err != nil || months <= 0 {
		return defaultChartMonths
	}
	if months > maxChartMonths {
		return maxChartMonths
	}
	return months
}

// ChartData 返回最近若干月的工作、应出勤与余额小时数。
func (a *API) ChartData(c *gin.Context) {
	points, err := a.ledger.ChartData(c.Request.Context(), a.chartMonths(c))
	if err != nil {
		respondServiceError(c, err, "获取图表数据失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": points})
}

// ChartPNG 以 PNG 柱状图返回同样的数据。
func (a *API) ChartPNG(c *gin.Context) {
	points, err := a.ledger.ChartData(c.Request.Context(), a.chartMonths(c))
	if err != nil {
		respondServiceError(c, err, "获取图表数据失败")
		return
	}
	groups := make([]chart.Group, 0, len(points))
	for _, p := range points {
		groups = append(groups, chart.Group{Label: p.Month[2:], Worked: p.WorkedHours, Required: p.RequiredHours})
	}

	var buf bytes.Buffer
	if err := chart.Encode(&buf, groups, chart.Options{}); err != nil {
		respondServiceError(c, err, "生成图表失败")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}
