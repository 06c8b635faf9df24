// Command agent sends one heartbeat for the current machine. Schedule it with
// cron or a similar scheduler, once a minute.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/attendlog/internal/agent"
	"github.com/attendlog/internal/logger"
	"github.com/attendlog/internal/mqtt"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	deviceID := flag.String("device-id", env("DEVICE_ID", ""), "Device identifier (defaults to the host name)")
	broker := flag.String("mqtt", env("MQTT_BROKER", ""), "Publish through this MQTT broker instead of HTTP")
	topic := flag.String("topic", env("MQTT_TOPIC", mqtt.DefaultTopic), "MQTT topic")
	test := flag.Bool("test", false, "Check that the server is reachable and exit")
	flag.Bool("once", true, "Send one heartbeat and exit (the default)")
	flag.Parse()

	if _, err := logger.Init(logger.Options{
		Level: env("LOG_LEVEL", "info"),
		Path:  env("LOG_PATH", defaultLogPath()),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
	}
	defer logger.Sync()

	os.Exit(run(*deviceID, *broker, *topic, *test))
}

func run(deviceID, broker, topic string, test bool) int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*agent.DefaultTimeout)
	defer cancel()

	hb := agent.NewHeartbeat(deviceID, time.Now())
	logf := logger.S.Infof

	if broker != "" {
		if test {
			logger.L.Error("--test only applies to HTTP mode")
			return 1
		}
		client, err := mqtt.NewClient(broker, "attendlog-agent-"+hb.DeviceID, topic)
		if err != nil {
			logger.L.Error("connect mqtt broker", zap.String("broker", broker), zap.Error(err))
			return 1
		}
		sender := agent.NewMQTTSender(client)
		defer sender.Close()
		return agent.RunOnce(ctx, sender, hb, logf)
	}

	sender, err := agent.NewHTTPSender(env("SERVER_URL", "http://localhost:8080"), env("BEARER_TOKEN", ""))
	if err != nil {
		logger.L.Error("configure agent", zap.Error(err))
		return 1
	}
	if test {
		if err := sender.Ping(ctx); err != nil {
			logger.L.Error("connection failed", zap.Error(err))
			return 1
		}
		logger.L.Info("connection successful")
		return 0
	}
	return agent.RunOnce(ctx, sender, hb, logf)
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func defaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".attendlog_agent.log")
}
