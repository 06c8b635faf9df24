package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/attendlog/internal/db"
	"github.com/attendlog/internal/ledger"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxDeviceIDLength = 128

// HeartbeatInput 是一次心跳上报；ID 与 Timestamp 可省略。
type HeartbeatInput struct {
	ID        string
	DeviceID  string
	Timestamp time.Time
}

// HeartbeatResult 返回写入的心跳以及该日期刷新后的记录分钟数。
type HeartbeatResult struct {
	Heartbeat       db.Heartbeat `json:"heartbeat"`
	Duplicate       bool         `json:"duplicate"`
	Date            ledger.Date  `json:"date"`
	RecordedMinutes int          `json:"recorded_minutes"`
}

// HeartbeatService 负责心跳的追加写入，从不更新或删除已有心跳。
type HeartbeatService struct {
	db         *gorm.DB
	attendance *AttendanceService
	now        func() time.Time
}

// NewHeartbeatService 构造 HeartbeatService。
func NewHeartbeatService(gdb *gorm.DB, attendance *AttendanceService) *HeartbeatService {
	return &HeartbeatService{db: gdb, attendance: attendance, now: time.Now}
}

// Record 追加一条心跳并刷新所属日期的 daily_attendances。
// 相同 ID 重复提交时不会写入新行，Duplicate 为 true。
func (s *HeartbeatService) Record(ctx context.Context, in HeartbeatInput) (*HeartbeatResult, error) {
	deviceID := strings.TrimSpace(in.DeviceID)
	if deviceID == "" {
		return nil, ErrDeviceIDRequired
	}
	deviceID = truncateRunes(deviceID, maxDeviceIDLength)

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	} else {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, ErrInvalidHeartbeatID
		}
		id = parsed.String()
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	hb := db.Heartbeat{
		UUID:      id,
		DeviceID:  deviceID,
		Timestamp: ts.UTC().Truncate(time.Second),
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uuid"}},
		DoNothing: true,
	}).Create(&hb)
	if res.Error != nil {
		return nil, fmt.Errorf("create heartbeat: %w", res.Error)
	}

	result := &HeartbeatResult{Heartbeat: hb}
	if res.RowsAffected == 0 {
		var existing db.Heartbeat
		if err := s.db.WithContext(ctx).Where("uuid = ?", id).First(&existing).Error; err != nil {
			return nil, fmt.Errorf("load duplicate heartbeat: %w", err)
		}
		result.Heartbeat = existing
		result.Duplicate = true
	}

	result.Date = s.attendance.DateOf(result.Heartbeat.Timestamp)
	if result.Duplicate {
		m, err := s.attendance.Recorded(ctx, result.Date)
		if err != nil {
			return nil, err
		}
		result.RecordedMinutes = m
		return result, nil
	}

	row, err := s.attendance.Refresh(ctx, result.Date)
	if err != nil {
		return nil, err
	}
	result.RecordedMinutes = row.RecordedMinutes
	return result, nil
}

// Latest 返回最近一条心跳；尚无心跳时返回 nil。
func (s *HeartbeatService) Latest(ctx context.Context) (*db.Heartbeat, error) {
	var rows []db.Heartbeat
	if err := s.db.WithContext(ctx).Order("timestamp DESC").Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("latest heartbeat: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// ListForDate 返回某一天的全部心跳，按时间升序。
func (s *HeartbeatService) ListForDate(ctx context.Context, d ledger.Date) ([]db.Heartbeat, error) {
	from, to := s.attendance.bounds(ledger.DateRange{Start: d, End: d})
	var rows []db.Heartbeat
	if err := s.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp < ?", from, to).
		Order("timestamp ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list heartbeats: %w", err)
	}
	return rows, nil
}

// Count 返回心跳总数。
func (s *HeartbeatService) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&db.Heartbeat{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count heartbeats: %w", err)
	}
	return n, nil
}
