package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/attendlog/internal/auth"
	"github.com/attendlog/internal/cache"
	"github.com/attendlog/internal/config"
	"github.com/attendlog/internal/db"
	"github.com/attendlog/internal/handler"
	"github.com/attendlog/internal/ingest"
	"github.com/attendlog/internal/ledger"
	"github.com/attendlog/internal/logger"
	"github.com/attendlog/internal/mqtt"
	"github.com/attendlog/internal/ratelimit"
	"github.com/attendlog/internal/router"
	"github.com/attendlog/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	cfg := config.Load()

	log, err := logger.Init(logger.Options{
		Level:      cfg.LogLevel,
		Path:       cfg.LogPath,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal("invalid timezone", zap.Error(err))
	}

	// 初始化数据库
	gdb, err := db.Init(cfg.DatabaseURL, gormlogger.Default.LogMode(logger.GormLevel(cfg.LogLevel)))
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var minutesCache cache.MinutesCache = cache.NewMemory(cfg.CacheTTL)
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn("redis unavailable, using in-process cache", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			defer client.Close()
			minutesCache = cache.NewRedis(client, cfg.CacheTTL)
			log.Info("using redis cache", zap.String("addr", cfg.RedisAddr))
		}
	}

	agg := ledger.Aggregator{Location: loc, MergeGap: cfg.MergeGap}
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	svc := service.NewServices(gdb, agg, minutesCache, issuer, cfg.AdminTOTPSecret)

	today := ledger.DateOf(time.Now(), loc)
	if _, created, err := svc.Policy.EnsureDefaultSettings(ctx, today); err != nil {
		log.Fatal("failed to ensure default settings", zap.Error(err))
	} else if created {
		log.Info("created default settings", zap.String("month", today.MonthOf().String()))
	}
	if err := db.EnsureUser(gdb, cfg.SuperRootUserName, cfg.SuperRootPassword); err != nil {
		log.Fatal("failed to ensure admin user", zap.Error(err))
	}
	if cfg.BearerToken == "" {
		log.Warn("BEARER_TOKEN is empty, heartbeat endpoint will reject every request")
	}

	api := handler.NewAPI(gdb, svc, handler.Options{
		AgentToken:             cfg.BearerToken,
		HeartbeatRatePerMinute: cfg.HeartbeatRatePerMinute,
	})

	if cfg.MQTTBroker != "" {
		client, err := mqtt.NewClient(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic)
		if err != nil {
			log.Fatal("failed to connect to mqtt broker", zap.String("broker", cfg.MQTTBroker), zap.Error(err))
		}
		listener := ingest.NewListener(client, cfg.MQTTTopic, svc.Heartbeats, ratelimit.New(cfg.HeartbeatRatePerMinute))
		if err := listener.Start(ctx); err != nil {
			log.Fatal("failed to subscribe", zap.String("topic", cfg.MQTTTopic), zap.Error(err))
		}
		defer listener.Close()
		api.SetIngestStats(func() any { return listener.Stats() })
		log.Info("mqtt ingestion started", zap.String("broker", cfg.MQTTBroker), zap.String("topic", cfg.MQTTTopic))
	}

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, router.Options{
		SessionSecret:  cfg.SessionSecret,
		TemplateGlob:   cfg.TemplateGlob,
		StaticDir:      "./web/static",
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("listening", zap.String("addr", cfg.ListenAddr), zap.String("timezone", loc.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to run server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
