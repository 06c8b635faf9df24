package router

import (
	"html/template"
	"strings"
	"time"

	"github.com/attendlog/internal/handler"
	"github.com/attendlog/internal/ledger"
	"github.com/attendlog/internal/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

// Options 控制路由层的可选行为。
type Options struct {
	SessionSecret  string
	TemplateGlob   string
	StaticDir      string
	AllowedOrigins []string
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(logger.GinMiddleware(), logger.Recovery())

	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.New(corsConfig(opts.AllowedOrigins)))
	}

	// 配置会话中间件
	secret := opts.SessionSecret
	if secret == "" {
		secret = "attendlog-dev-secret"
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 7 * 24 * 3600, HttpOnly: true})
	r.Use(sessions.Sessions("attendlog_session", store))

	// 加载模板并添加自定义函数
	r.SetFuncMap(FuncMap())
	if strings.TrimSpace(opts.TemplateGlob) != "" {
		r.LoadHTMLGlob(opts.TemplateGlob)
	}
	if opts.StaticDir != "" {
		r.Static("/static", opts.StaticDir)
	}

	r.GET("/health", api.HealthCheck)
	r.GET("/", api.Home)

	admin := r.Group("/admin")
	{
		admin.GET("/login", api.ShowLoginPage)
		admin.POST("/login", api.Login)
		admin.GET("/logout", api.Logout)
	}

	pages := r.Group("")
	pages.Use(api.AuthRequired(false))
	{
		pages.GET("/dashboard", api.ShowDashboard)
		pages.GET("/settings", api.ShowSettings)
		pages.GET("/corrections", api.ShowCorrections)
	}

	r.POST("/api/auth/token", api.IssueToken)

	// 心跳代理
	agent := r.Group("/api")
	agent.Use(api.AgentAuth())
	{
		agent.POST("/heartbeat", api.PostHeartbeat)
	}

	apiGroup := r.Group("/api")
	apiGroup.Use(api.AuthRequired(true))
	{
		apiGroup.GET("/settings", api.GetSettings)
		apiGroup.PUT("/settings", api.UpdateSettings)

		apiGroup.GET("/holidays", api.ListHolidays)
		apiGroup.POST("/holidays", api.CreateHoliday)
		apiGroup.POST("/holidays/range", api.CreateHolidayRange)
		apiGroup.DELETE("/holidays/:date", api.DeleteHoliday)

		apiGroup.GET("/leaves", api.ListLeaves)
		apiGroup.POST("/leaves", api.CreateLeave)
		apiGroup.DELETE("/leaves/:date", api.DeleteLeave)

		apiGroup.GET("/corrections", api.ListCorrections)
		apiGroup.PUT("/corrections/:date", api.UpsertCorrection)
		apiGroup.DELETE("/corrections/:date", api.DeleteCorrection)

		apiGroup.GET("/days", api.ListDays)
		apiGroup.GET("/days/:date", api.GetDay)
		apiGroup.GET("/heartbeats/:date", api.ListDayHeartbeats)

		apiGroup.GET("/balances/monthly", api.MonthlyBalances)
		apiGroup.GET("/balances/total", api.TotalBalance)

		apiGroup.POST("/recalculate", api.Recalculate)
		apiGroup.POST("/attendance/rebuild", api.RebuildAttendance)

		apiGroup.GET("/charts/monthly", api.ChartData)
		apiGroup.GET("/charts/monthly.png", api.ChartPNG)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// FuncMap 返回页面模板使用的函数。
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"sub": func(a, b int) int {
			return a - b
		},
		"seq": func(n int) []int {
			out := make([]int, n)
			for i := range out {
				out[i] = i
			}
			return out
		},
		"hhmm":  ledger.FormatMinutes,
		"hours": func(minutes int) string { return ledger.Hours(minutes).StringFixed(2) },
		"neg":   func(minutes int) bool { return minutes < 0 },
	}
}
