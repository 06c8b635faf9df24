package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/attendlog/internal/cache"
	"github.com/attendlog/internal/db"
	"github.com/attendlog/internal/ledger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testServices struct {
	db          *gorm.DB
	cache       *cache.Memory
	attendance  *AttendanceService
	heartbeats  *HeartbeatService
	policy      *PolicyService
	corrections *CorrectionService
	ledger      *LedgerService
	recalc      *RecalcService
}

func setupServiceTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s-%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	t.Cleanup(func() { _ = sqlDB.Close() })
	return gdb
}

func newTestServices(t *testing.T, loc *time.Location) *testServices {
	t.Helper()
	if loc == nil {
		loc = time.UTC
	}

	gdb := setupServiceTestDB(t, t.Name())
	mem := cache.NewMemory(0)
	attendance := NewAttendanceService(gdb, ledger.NewAggregator(loc), mem)
	policy := NewPolicyService(gdb)
	corrections := NewCorrectionService(gdb)
	ledgerSvc := NewLedgerService(policy, attendance, corrections)

	return &testServices{
		db:          gdb,
		cache:       mem,
		attendance:  attendance,
		heartbeats:  NewHeartbeatService(gdb, attendance),
		policy:      policy,
		corrections: corrections,
		ledger:      ledgerSvc,
		recalc:      NewRecalcService(policy, ledgerSvc),
	}
}

func (ts *testServices) setMarchSettings(t *testing.T, daily int) {
	t.Helper()
	_, err := ts.policy.UpdateSettings(context.Background(), SettingsInput{
		StartDate:            ledger.MustParseDate("2024-03-01"),
		EndDate:              ledger.MustParseDate("2024-03-31"),
		WorkingDays:          ledger.MondayToFriday,
		DailyRequiredMinutes: daily,
	})
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
}

func (ts *testServices) record(t *testing.T, device string, stamps ...string) {
	t.Helper()
	for _, raw := range stamps {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if _, err := ts.heartbeats.Record(context.Background(), HeartbeatInput{DeviceID: device, Timestamp: at}); err != nil {
			t.Fatalf("record heartbeat %s: %v", raw, err)
		}
	}
}

func fixedClock(raw string) func() time.Time {
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return at }
}
