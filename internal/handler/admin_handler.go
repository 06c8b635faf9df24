package handler

import (
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/attendlog/internal/ledger"
	"github.com/attendlog/internal/logger"
	"github.com/attendlog/internal/service"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ShowLoginPage 渲染登录页面
func (a *API) ShowLoginPage(c *gin.Context) {
	a.renderHTML(c, http.StatusOK, "login.html", gin.H{
		"title":       "管理员登录",
		"totpEnabled": a.auth.TOTPEnabled(),
	})
}

// Login 处理表单登录，成功后写入会话并跳转到仪表盘。
func (a *API) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	code := c.PostForm("code")

	user, err := a.auth.Authenticate(c.Request.Context(), username, password, code)
	if err != nil {
		msg := "用户名或密码错误"
		if errors.Is(err, service.ErrTOTPRequired) {
			msg = "请输入二次验证码"
		} else if !errors.Is(err, service.ErrInvalidCredentials) {
			logger.L.Error("login", zap.Error(err))
			msg = "登录失败"
		}
		a.renderHTML(c, http.StatusUnauthorized, "login.html", gin.H{
			"title":       "管理员登录",
			"error":       msg,
			"totpEnabled": a.auth.TOTPEnabled(),
		})
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserIDKey, user.ID)
	session.Set(sessionUsernameKey, user.Username)
	if err := session.Save(); err != nil {
		a.renderHTML(c, http.StatusInternalServerError, "login.html", gin.H{"title": "管理员登录", "error": "会话保存失败"})
		return
	}

	c.Redirect(http.StatusFound, "/dashboard")
}

// Logout 处理用户登出
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	c.Redirect(http.StatusFound, "/admin/login")
}

type tokenRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Code     string `json:"code"`
}

// IssueToken 为脚本与外部客户端签发 API token。
func (a *API) IssueToken(c *gin.Context) {
	var req tokenRequest
	if !bindJSON(c, &req, "用户名和密码不能为空") {
		return
	}
	res, err := a.auth.IssueToken(c.Request.Context(), req.Username, req.Password, req.Code)
	if err != nil {
		respondServiceError(c, err, "签发 token 失败")
		return
	}
	c.JSON(http.StatusOK, res)
}

type monthRow struct {
	ledger.MonthBalance
	WorkedText   string
	RequiredText string
	BalanceText  string
}

// ShowDashboard 渲染仪表盘：截至今天的总余额、月度汇总与当月日历。
func (a *API) ShowDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	today := a.ledger.Today()

	month := today.MonthOf()
	if raw := strings.TrimSpace(c.Query("month")); raw != "" {
		parsed, err := ledger.ParseMonth(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的月份，格式应为 YYYY-MM")
			return
		}
		month = parsed
	}

	settings, _, err := a.policy.CurrentSettings(ctx)
	if err != nil {
		respondServiceError(c, err, "加载仪表盘失败")
		return
	}
	total, err := a.ledger.TotalBalanceAsOf(ctx, today)
	if err != nil {
		respondServiceError(c, err, "加载仪表盘失败")
		return
	}
	months, err := a.ledger.MonthlyBalancesAsOf(ctx, nil, today)
	if err != nil {
		respondServiceError(c, err, "加载仪表盘失败")
		return
	}
	calendar, err := a.ledger.Calendar(ctx, month)
	if err != nil {
		respondServiceError(c, err, "加载仪表盘失败")
		return
	}
	latest, err := a.heartbeats.Latest(ctx)
	if err != nil {
		respondServiceError(c, err, "加载仪表盘失败")
		return
	}

	daily := 0
	if settings != nil {
		daily = settings.DailyRequiredMinutes
	}
	rows := make([]monthRow, 0, len(months))
	for _, m := range months {
		rows = append(rows, monthRow{
			MonthBalance: m,
			WorkedText:   ledger.FormatMinutes(m.Worked),
			RequiredText: ledger.FormatMinutes(m.Required),
			BalanceText:  ledger.FormatWorkdays(m.Balance, daily),
		})
	}

	a.renderHTML(c, http.StatusOK, "dashboard.html", gin.H{
		"title":         "仪表盘",
		"today":         today,
		"settings":      settings,
		"total":         total,
		"totalText":     ledger.FormatWorkdays(total.Balance, daily),
		"totalHHMM":     ledger.FormatMinutes(total.Balance),
		"months":        rows,
		"month":         month,
		"prevMonth":     month.Prev(),
		"nextMonth":     month.Next(),
		"calendar":      calendar,
		"leadingBlanks": int(month.First().Weekday()+6) % 7,
		"latest":        latest,
	})
}

// ShowSettings 渲染设置页面：考勤设置、节假日与请假。
func (a *API) ShowSettings(c *gin.Context) {
	ctx := c.Request.Context()

	var view *settingsView
	row, err := a.policy.GetSettings(ctx)
	switch {
	case err == nil:
		v := newSettingsView(row)
		view = &v
	case errors.Is(err, ledger.ErrMissingSettings):
	default:
		respondServiceError(c, err, "加载设置失败")
		return
	}

	holidays, err := a.policy.ListHolidays(ctx, nil)
	if err != nil {
		respondServiceError(c, err, "加载设置失败")
		return
	}
	leaves, err := a.policy.ListLeaves(ctx, nil)
	if err != nil {
		respondServiceError(c, err, "加载设置失败")
		return
	}

	a.renderHTML(c, http.StatusOK, "settings.html", gin.H{
		"title":    "考勤设置",
		"settings": view,
		"weekdays": ledger.MondayToFriday.With(6).With(0).Names(),
		"holidays": holidays,
		"leaves":   leaves,
	})
}

type correctionPageRow struct {
	service.CorrectionRow
	ReasonHTML  template.HTML
	BalanceText string
}

// ShowCorrections 渲染修正页面，原因按 Markdown 渲染。
func (a *API) ShowCorrections(c *gin.Context) {
	r, ok := a.correctionRange(c)
	if !ok {
		return
	}
	rows, err := a.ledger.CorrectionRows(c.Request.Context(), r)
	if err != nil {
		respondServiceError(c, err, "加载修正数据失败")
		return
	}

	view := make([]correctionPageRow, 0, len(rows))
	for _, row := range rows {
		html, err := renderMarkdown(row.Reason)
		if err != nil {
			html = template.HTML(template.HTMLEscapeString(row.Reason))
		}
		view = append(view, correctionPageRow{
			CorrectionRow: row,
			ReasonHTML:    html,
			BalanceText:   ledger.FormatMinutes(row.Balance),
		})
	}

	a.renderHTML(c, http.StatusOK, "corrections.html", gin.H{
		"title":  "修正",
		"period": r,
		"rows":   view,
	})
}

// Home 跳转到仪表盘。
func (a *API) Home(c *gin.Context) {
	c.Redirect(http.StatusFound, "/dashboard")
}
