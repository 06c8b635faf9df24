package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/attendlog/internal/db"
	"github.com/attendlog/internal/ledger"
	"github.com/attendlog/internal/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxReasonLength = 2000

// CorrectionService 管理每日人工修正。修正只覆盖计算结果，从不写回 daily_attendances 或 heartbeats。
type CorrectionService struct {
	db *gorm.DB
}

// NewCorrectionService 构造 CorrectionService。
func NewCorrectionService(gdb *gorm.DB) *CorrectionService {
	return &CorrectionService{db: gdb}
}

// Upsert 写入或替换某日的修正，负数分钟直接拒绝。
func (s *CorrectionService) Upsert(ctx context.Context, d ledger.Date, minutes int, reason string) (*db.Correction, error) {
	if err := ledger.CheckMinutes(minutes); err != nil {
		return nil, fmt.Errorf("corrected minutes %d: %w", minutes, err)
	}
	reason = truncateRunes(strings.TrimSpace(reason), maxReasonLength)

	correction := db.Correction{Date: d.String(), CorrectedMinutes: minutes, Reason: reason}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"corrected_minutes", "reason", "updated_at"}),
	}).Create(&correction).Error; err != nil {
		return nil, fmt.Errorf("save correction: %w", err)
	}

	logger.L.Info("correction saved", zap.String("date", correction.Date), zap.Int("minutes", minutes))
	return s.Get(ctx, d)
}

// Get 返回某日的修正。
func (s *CorrectionService) Get(ctx context.Context, d ledger.Date) (*db.Correction, error) {
	var correction db.Correction
	if err := s.db.WithContext(ctx).Where("date = ?", d.String()).First(&correction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCorrectionNotFound
		}
		return nil, fmt.Errorf("get correction: %w", err)
	}
	return &correction, nil
}

// Delete 删除某日的修正，该日重新使用聚合出的分钟数。
func (s *CorrectionService) Delete(ctx context.Context, d ledger.Date) error {
	res := s.db.WithContext(ctx).Where("date = ?", d.String()).Delete(&db.Correction{})
	if res.Error != nil {
		return fmt.Errorf("delete correction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrCorrectionNotFound
	}
	logger.L.Info("correction deleted", zap.String("date", d.String()))
	return nil
}

// ListBetween 返回区间内的修正，按日期升序；r 为空时返回全部。
func (s *CorrectionService) ListBetween(ctx context.Context, r *ledger.DateRange) ([]db.Correction, error) {
	query := s.db.WithContext(ctx).Model(&db.Correction{})
	if r != nil {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		query = query.Where("date >= ? AND date <= ?", r.Start.String(), r.End.String())
	}
	var corrections []db.Correction
	if err := query.Order("date ASC").Find(&corrections).Error; err != nil {
		return nil, fmt.Errorf("list corrections: %w", err)
	}
	return corrections, nil
}

// MinutesBetween 以日期为键返回区间内的修正分钟数。
func (s *CorrectionService) MinutesBetween(ctx context.Context, r ledger.DateRange) (map[ledger.Date]int, error) {
	rows, err := s.ListBetween(ctx, &r)
	if err != nil {
		return nil, err
	}
	out := make(map[ledger.Date]int, len(rows))
	for _, row := range rows {
		d, err := ledger.ParseDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("correction %q: %w", row.Date, err)
		}
		out[d] = row.CorrectedMinutes
	}
	return out, nil
}
