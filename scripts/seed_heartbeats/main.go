package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/attendlog/internal/config"
	"github.com/attendlog/internal/db"
	"github.com/attendlog/internal/ledger"
	"github.com/attendlog/internal/service"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// 测试数据生成器：为区间内的工作日生成每分钟一次的心跳，含午休间隔。
func main() {
	cfg := config.Load()

	today := time.Now()
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	dbURL := flag.String("db", cfg.DatabaseURL, "database url or sqlite path")
	start := flag.String("start", monthStart.Format("2006-01-02"), "first date (YYYY-MM-DD)")
	end := flag.String("end", today.Format("2006-01-02"), "last date (YYYY-MM-DD)")
	device := flag.String("device", "seed-laptop", "device id")
	seed := flag.Uint64("seed", 1, "random seed")
	user := flag.String("user", "admin", "admin user name, empty to skip")
	password := flag.String("password", "admin123", "admin password")
	flag.Parse()

	if err := run(cfg, *dbURL, *start, *end, *device, *seed, *user, *password); err != nil {
		fmt.Fprintf(os.Stderr, "seed heartbeats: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.AppConfig, dbURL, rawStart, rawEnd, device string, seed uint64, user, password string) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	startDate, err := ledger.ParseDate(rawStart)
	if err != nil {
		return err
	}
	endDate, err := ledger.ParseDate(rawEnd)
	if err != nil {
		return err
	}
	r, err := ledger.NewDateRange(startDate, endDate)
	if err != nil {
		return err
	}

	gdb, err := db.Init(dbURL, gormlogger.Default.LogMode(gormlogger.Silent))
	if err != nil {
		return err
	}

	fmt.Println("开始生成测试数据...")

	if err := db.EnsureUser(gdb, user, password); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	rows := generate(r, device, ledger.MondayToFriday, loc, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
	n, err := insert(gdb, rows)
	if err != nil {
		return err
	}

	agg := ledger.Aggregator{Location: loc, MergeGap: cfg.MergeGap}
	svc := service.NewServices(gdb, agg, nil, nil, "")
	report, err := svc.Attendance.RebuildAll(context.Background())
	if err != nil {
		return fmt.Errorf("rebuild attendance: %w", err)
	}

	fmt.Printf("测试数据生成完成！心跳 %d 条，考勤 %d 天\n", n, report.Dates)
	if user != "" {
		fmt.Printf("用户: %s (密码: %s)\n", user, password)
	}
	return nil
}

// generate returns one heartbeat per minute for every working day in r: a
// morning block from about 09:00 to 12:00 and an afternoon block from about
// 12:45 to 17:30, each edge jittered by up to 30 minutes. Roughly one minute in
// forty is dropped to leave gaps the merge rule has to bridge.
func generate(r ledger.DateRange, device string, days ledger.WeekdaySet, loc *time.Location, rng *rand.Rand) []db.Heartbeat {
	var rows []db.Heartbeat
	for _, d := range r.Dates() {
		if !days.Has(d.Weekday()) {
			continue
		}
		midnight := d.Start(loc)
		blocks := [][2]int{
			{9*60 + jitter(rng), 12 * 60},
			{12*60 + 45, 17*60 + 30 + jitter(rng)},
		}
		for _, b := range blocks {
			for m := b[0]; m <= b[1]; m++ {
				if rng.IntN(40) == 0 {
					continue
				}
				ts := midnight.Add(time.Duration(m)*time.Minute + time.Duration(rng.IntN(60))*time.Second)
				rows = append(rows, db.Heartbeat{
					UUID:      uuid.NewString(),
					DeviceID:  device,
					Timestamp: ts.UTC().Truncate(time.Second),
				})
			}
		}
	}
	return rows
}

func jitter(rng *rand.Rand) int {
	return rng.IntN(61) - 30
}

func insert(gdb *gorm.DB, rows []db.Heartbeat) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := gdb.CreateInBatches(rows, 500).Error; err != nil {
		return 0, fmt.Errorf("insert heartbeats: %w", err)
	}
	return len(rows), nil
}
