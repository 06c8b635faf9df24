package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/attendlog/internal/cache"
	"github.com/attendlog/internal/db"
	"github.com/attendlog/internal/ledger"
	"github.com/attendlog/internal/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AttendanceService 维护 daily_attendances 缓存表：由心跳聚合得到，随时可以重建。
// 它从不修改 heartbeats 与 corrections。
type AttendanceService struct {
	db    *gorm.DB
	agg   ledger.Aggregator
	cache cache.MinutesCache

	// 刷新与重建持写锁；RecordedBetween 在读表和回填缓存期间持读锁，
	// 保证回填的值不会晚于随后一次刷新的失效
	refreshMu sync.RWMutex
	now       func() time.Time
}

// RebuildReport 描述一次全量重建的结果。
type RebuildReport struct {
	Heartbeats int64        `json:"heartbeats"`
	Dates      int          `json:"dates"`
	Minutes    int          `json:"minutes"`
	From       *ledger.Date `json:"from,omitempty"`
	To         *ledger.Date `json:"to,omitempty"`
}

// NewAttendanceService 构造 AttendanceService；c 为空时使用不过期的内存缓存。
func NewAttendanceService(gdb *gorm.DB, agg ledger.Aggregator, c cache.MinutesCache) *AttendanceService {
	if c == nil {
		c = cache.NewMemory(0)
	}
	return &AttendanceService{db: gdb, agg: agg, cache: c, now: time.Now}
}

// Location 返回日期归属所用的时区。
func (s *AttendanceService) Location() *time.Location {
	if s.agg.Location == nil {
		return time.UTC
	}
	return s.agg.Location
}

// DateOf 返回时间点在配置时区中的日期。
func (s *AttendanceService) DateOf(t time.Time) ledger.Date {
	return ledger.DateOf(t, s.Location())
}

// bounds 返回日期范围对应的 UTC 半开区间 [from, to)。
func (s *AttendanceService) bounds(r ledger.DateRange) (time.Time, time.Time) {
	loc := s.Location()
	return r.Start.Start(loc).UTC(), r.End.AddDays(1).Start(loc).UTC()
}

func (s *AttendanceService) timestampsBetween(ctx context.Context, gdb *gorm.DB, r ledger.DateRange) ([]time.Time, error) {
	from, to := s.bounds(r)
	var stamps []time.Time
	if err := gdb.WithContext(ctx).
		Model(&db.Heartbeat{}).
		Where("timestamp >= ? AND timestamp < ?", from, to).
		Order("timestamp ASC").
		Pluck("timestamp", &stamps).Error; err != nil {
		return nil, fmt.Errorf("load heartbeats: %w", err)
	}
	return stamps, nil
}

// Refresh 重新聚合某一天的心跳并写回 daily_attendances，随后只失效这一天的缓存。
func (s *AttendanceService) Refresh(ctx context.Context, d ledger.Date) (*db.DailyAttendance, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	stamps, err := s.timestampsBetween(ctx, s.db, ledger.DateRange{Start: d, End: d})
	if err != nil {
		return nil, err
	}

	row := db.DailyAttendance{
		Date:            d.String(),
		RecordedMinutes: s.agg.AggregateDate(d, stamps),
		HeartbeatCount:  len(stamps),
	}
	if len(stamps) > 0 {
		row.FirstSeen = stamps[0]
		row.LastSeen = stamps[len(stamps)-1]
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"recorded_minutes", "heartbeat_count", "first_seen", "last_seen", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("upsert daily attendance: %w", err)
	}

	if err := s.cache.Invalidate(ctx, d); err != nil {
		logger.L.Warn("invalidate minutes cache", zap.String("date", d.String()), zap.Error(err))
	}
	return &row, nil
}

// Get 返回某一天的缓存行；没有心跳的日期返回 nil。
func (s *AttendanceService) Get(ctx context.Context, d ledger.Date) (*db.DailyAttendance, error) {
	var rows []db.DailyAttendance
	if err := s.db.WithContext(ctx).Where("date = ?", d.String()).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get daily attendance: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// RecordedBetween 返回范围内每个日期的记录分钟数，先查缓存，未命中再读表并回填。
// 没有心跳的日期不出现在结果中；今天之后的空日期不回填缓存。
func (s *AttendanceService) RecordedBetween(ctx context.Context, r ledger.DateRange) (map[ledger.Date]int, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	dates := r.Dates()

	cached, err := s.cache.GetMany(ctx, dates)
	if err != nil {
		logger.L.Warn("read minutes cache", zap.Error(err))
		cached = map[ledger.Date]int{}
	}

	out := make(map[ledger.Date]int, len(dates))
	for d, m := range cached {
		if m > 0 {
			out[d] = m
		}
	}
	if len(cached) == len(dates) {
		return out, nil
	}

	s.refreshMu.RLock()
	defer s.refreshMu.RUnlock()

	var rows []db.DailyAttendance
	if err := s.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", r.Start.String(), r.End.String()).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list daily attendance: %w", err)
	}
	stored := make(map[ledger.Date]int, len(rows))
	for _, row := range rows {
		d, err := ledger.ParseDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("daily attendance %q: %w", row.Date, err)
		}
		stored[d] = row.RecordedMinutes
	}

	today := s.DateOf(s.now())
	missing := make(map[ledger.Date]int)
	for _, d := range dates {
		if _, ok := cached[d]; ok {
			continue
		}
		m := stored[d]
		if m > 0 {
			out[d] = m
		} else if d.After(today) {
			continue
		}
		missing[d] = m
	}
	if len(missing) == 0 {
		return out, nil
	}
	if err := s.cache.SetMany(ctx, missing); err != nil {
		logger.L.Warn("fill minutes cache", zap.Error(err))
	}
	return out, nil
}

// Recorded 返回单日记录分钟数。
func (s *AttendanceService) Recorded(ctx context.Context, d ledger.Date) (int, error) {
	m, err := s.RecordedBetween(ctx, ledger.DateRange{Start: d, End: d})
	if err != nil {
		return 0, err
	}
	return m[d], nil
}

// Intervals 返回某日心跳合并后的在线区间。
func (s *AttendanceService) Intervals(ctx context.Context, d ledger.Date) ([]ledger.Interval, error) {
	stamps, err := s.timestampsBetween(ctx, s.db, ledger.DateRange{Start: d, End: d})
	if err != nil {
		return nil, err
	}
	ivs := s.agg.Intervals(stamps)[d]
	if ivs == nil {
		ivs = []ledger.Interval{}
	}
	return ivs, nil
}

// RebuildAll 清空 daily_attendances 并按月分块从全部心跳重建，最后清空缓存。
func (s *AttendanceService) RebuildAll(ctx context.Context) (*RebuildReport, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	report := &RebuildReport{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&db.DailyAttendance{}).Error; err != nil {
			return fmt.Errorf("clear daily attendance: %w", err)
		}

		if err := tx.Model(&db.Heartbeat{}).Count(&report.Heartbeats).Error; err != nil {
			return fmt.Errorf("count heartbeats: %w", err)
		}
		if report.Heartbeats == 0 {
			return nil
		}
		var first, last db.Heartbeat
		if err := tx.Order("timestamp ASC").First(&first).Error; err != nil {
			return fmt.Errorf("first heartbeat: %w", err)
		}
		if err := tx.Order("timestamp DESC").First(&last).Error; err != nil {
			return fmt.Errorf("last heartbeat: %w", err)
		}

		from, to := s.DateOf(first.Timestamp), s.DateOf(last.Timestamp)
		report.From, report.To = &from, &to

		for _, chunk := range (ledger.DateRange{Start: from, End: to}).Months() {
			stamps, err := s.timestampsBetween(ctx, tx, chunk)
			if err != nil {
				return err
			}
			if len(stamps) == 0 {
				continue
			}
			rows := dailyRows(s.agg, s.Location(), stamps)
			if err := tx.CreateInBatches(rows, 200).Error; err != nil {
				return fmt.Errorf("insert daily attendance: %w", err)
			}
			for _, row := range rows {
				report.Dates++
				report.Minutes += row.RecordedMinutes
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Flush(ctx); err != nil {
		logger.L.Warn("flush minutes cache", zap.Error(err))
	}
	logger.L.Info("daily attendance rebuilt",
		zap.Int64("heartbeats", report.Heartbeats),
		zap.Int("dates", report.Dates),
		zap.Int("minutes", report.Minutes),
	)
	return report, nil
}

// dailyRows 把已按时间排序的时间戳聚合成按日期排序的缓存行。
func dailyRows(agg ledger.Aggregator, loc *time.Location, stamps []time.Time) []db.DailyAttendance {
	minutes := agg.Aggregate(stamps)
	byDate := make(map[ledger.Date]*db.DailyAttendance, len(minutes))
	var order []ledger.Date
	for _, ts := range stamps {
		d := ledger.DateOf(ts, loc)
		row, ok := byDate[d]
		if !ok {
			row = &db.DailyAttendance{Date: d.String(), RecordedMinutes: minutes[d], FirstSeen: ts}
			byDate[d] = row
			order = append(order, d)
		}
		row.HeartbeatCount++
		row.LastSeen = ts
	}
	rows := make([]db.DailyAttendance, 0, len(order))
	for _, d := range order {
		rows = append(rows, *byDate[d])
	}
	return rows
}
