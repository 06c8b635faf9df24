package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/attendlog/internal/ledger"
	"github.com/attendlog/internal/logger"
	"go.uber.org/zap"
)

const recalcAttempts = 3

// Report 是一次重算的结果。重算只读，不写 heartbeats、daily_attendances 与 corrections。
type Report struct {
	Reason     string            `json:"reason,omitempty"`
	Range      *ledger.DateRange `json:"range,omitempty"`
	Revision   int64             `json:"revision"`
	Months     int               `json:"months"`
	Days       int               `json:"days"`
	Categories map[string]int    `json:"categories"`
	Worked     int               `json:"worked_minutes"`
	Required   int               `json:"required_minutes"`
	Balance    int               `json:"balance"`
	Duration   time.Duration     `json:"duration_ns"`
}

// RecalcService 在策略变化后重新推导受影响区间内的类别、应出勤分钟与余额。
type RecalcService struct {
	policy *PolicyService
	ledger *LedgerService

	// afterChunk 只在测试中使用，用于在两个月块之间注入并发修改。
	afterChunk func(chunk ledger.DateRange)
}

// NewRecalcService 构造 RecalcService。
func NewRecalcService(policy *PolicyService, ledgerSvc *LedgerService) *RecalcService {
	return &RecalcService{policy: policy, ledger: ledgerSvc}
}

// AffectedRange 计算变更影响的区间：新旧报告期的并集；都未给出时为当前报告期。
// 没有任何可用区间时 ok 为 false。
func AffectedRange(change Change, current *ledger.Settings) (ledger.DateRange, bool) {
	var ranges []ledger.DateRange
	if change.OldPeriod != nil {
		ranges = append(ranges, *change.OldPeriod)
	}
	if change.NewPeriod != nil {
		ranges = append(ranges, *change.NewPeriod)
	}
	if len(ranges) == 0 {
		if current == nil {
			return ledger.DateRange{}, false
		}
		return current.Period, true
	}
	out := ranges[0]
	for _, r := range ranges[1:] {
		out = out.Union(r)
	}
	return out, true
}

// Recalculate 按月分块重新推导影响区间。每块开始前都会核对设置的 Revision，
// 若期间设置被修改则返回 ledger.ErrConcurrentSettingsChange，调用方直接重试即可。
func (s *RecalcService) Recalculate(ctx context.Context, change Change) (*Report, error) {
	start := time.Now()

	settings, revision, err := s.policy.CurrentSettings(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{Reason: change.Reason, Revision: revision, Categories: map[string]int{}}
	for _, c := range ledger.Categories {
		report.Categories[c.String()] = 0
	}

	rng, ok := AffectedRange(change, settings)
	if !ok {
		report.Duration = time.Since(start)
		return report, nil
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	report.Range = &rng

	for _, chunk := range rng.Months() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		book, err := s.ledger.Book(ctx, chunk)
		if err != nil {
			return nil, err
		}
		_, current, err := s.policy.CurrentSettings(ctx)
		if err != nil {
			return nil, err
		}
		if current != revision {
			return nil, fmt.Errorf("recalculate %s: %w", chunk, ledger.ErrConcurrentSettingsChange)
		}

		days, err := book.Days(chunk)
		if err != nil {
			return nil, err
		}
		for _, d := range days {
			report.Days++
			report.Categories[d.Category.String()]++
			if !d.InPeriod() {
				continue
			}
			report.Worked += d.Effective
			report.Required += d.Required
			report.Balance += d.Balance
		}
		report.Months++

		if s.afterChunk != nil {
			s.afterChunk(chunk)
		}
	}

	report.Duration = time.Since(start)
	return report, nil
}

// PolicyChanged 实现 ChangeListener：变更后立即重算并记录结果，遇到并发修改时重试。
func (s *RecalcService) PolicyChanged(ctx context.Context, change Change) {
	for attempt := 1; attempt <= recalcAttempts; attempt++ {
		report, err := s.Recalculate(ctx, change)
		if errors.Is(err, ledger.ErrConcurrentSettingsChange) {
			logger.L.Warn("settings changed during recalculation, retrying", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			logger.L.Error("recalculate", zap.String("reason", change.Reason), zap.Error(err))
			return
		}
		fields := []zap.Field{
			zap.String("reason", report.Reason),
			zap.Int("days", report.Days),
			zap.Int("required", report.Required),
			zap.Int("balance", report.Balance),
			zap.Duration("duration", report.Duration),
		}
		if report.Range != nil {
			fields = append(fields, zap.String("range", report.Range.String()))
		}
		logger.L.Info("recalculated", fields...)
		return
	}
	logger.L.Error("recalculate gave up after concurrent settings changes", zap.String("reason", change.Reason))
}
