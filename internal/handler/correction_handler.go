package handler

import (
	"net/http"

	"github.com/attendlog/internal/ledger"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type correctionRequest struct {
	CorrectedMinutes *int             `json:"corrected_minutes"`
	CorrectedHours   *decimal.Decimal `json:"corrected_hours"`
	Reason           string           `json:"reason"`
}

// correctionRange 返回 ?start=&end=，未给出时为本月。
func (a *API) correctionRange(c *gin.Context) (ledger.DateRange, bool) {
	r, ok := parseRangeQuery(c)
	if !ok {
		return ledger.DateRange{}, false
	}
	if r == nil {
		return a.ledger.Today().MonthOf().Range(), true
	}
	if r.Days() > maxDaysPerRequest {
		respondError(c, http.StatusBadRequest, "区间不能超过 366 天")
		return ledger.DateRange{}, false
	}
	return *r, true
}

// ListCorrections 返回区间内逐日的记录、修正、有效分钟、应出勤与余额。
func (a *API) ListCorrections(c *gin.Context) {
	r, ok := a.correctionRange(c)
	if !ok {
		return
	}
	rows, err := a.ledger.CorrectionRows(c.Request.Context(), r)
	if err != nil {
		respondServiceError(c, err, "获取修正数据失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"range": r, "rows": rows})
}

// UpsertCorrection 设置某日的修正分钟数，已存在时覆盖。
func (a *API) UpsertCorrection(c *gin.Context) {
	d, ok := parseDateParam(c, "date")
	if !ok {
		return
	}
	var req correctionRequest
	if !bindJSON(c, &req, "无效的修正数据") {
		return
	}

	var minutes int
	switch {
	case req.CorrectedMinutes != nil:
		minutes = *req.CorrectedMinutes
	case req.CorrectedHours != nil:
		m, err := ledger.MinutesFromHours(*req.CorrectedHours)
		if err != nil {
			respondServiceError(c, err, "无效的修正时长")
			return
		}
		minutes = m
	default:
		respondError(c, http.StatusBadRequest, "需要提供 corrected_minutes 或 corrected_hours")
		return
	}

	correction, err := a.corrections.Upsert(c.Request.Context(), d, minutes, req.Reason)
	if err != nil {
		respondServiceError(c, err, "保存修正失败")
		return
	}
	day, err := a.ledger.Day(c.Request.Context(), d)
	if err != nil {
		respondServiceError(c, err, "保存修正失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "修正已保存", "correction": correction, "day": newDayView(day)})
}

// DeleteCorrection 删除修正，该日恢复使用记录分钟数。
func (a *API) DeleteCorrection(c *gin.Context) {
	d, ok := parseDateParam(c, "date")
	if !ok {
		return
	}
	if err := a.corrections.Delete(c.Request.Context(), d); err != nil {
		respondServiceError(c, err, "删除修正失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "修正已删除"})
}
