package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/attendlog/internal/db"
	"github.com/attendlog/internal/ledger"
	"github.com/attendlog/internal/logger"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// DefaultDailyRequiredMinutes 初始化设置时使用的每日应出勤分钟数（8 小时）
	DefaultDailyRequiredMinutes = 480
	defaultHolidayDescription   = "Holiday"
	maxDescriptionLength        = 255
)

// Change 描述一次策略变更，供重算流程确定影响范围。
// 两个区间都为空时表示整个当前报告期。
type Change struct {
	Reason    string            `json:"reason,omitempty"`
	OldPeriod *ledger.DateRange `json:"old_period,omitempty"`
	NewPeriod *ledger.DateRange `json:"new_period,omitempty"`
}

// ChangeListener 在设置、节假日或请假变更后被调用。
type ChangeListener interface {
	PolicyChanged(ctx context.Context, change Change)
}

// SettingsInput 是更新设置的完整输入，设置总是整体替换。
type SettingsInput struct {
	StartDate            ledger.Date
	EndDate              ledger.Date
	WorkingDays          ledger.WeekdaySet
	DailyRequiredMinutes int
}

// RangeResult 汇总按区间批量添加节假日或请假的结果。
type RangeResult struct {
	Added          int      `json:"added"`
	Skipped        int      `json:"skipped"`
	ProcessedDates []string `json:"processed_dates"`
	SkippedDates   []string `json:"skipped_dates"`
}

// PolicyService 管理唯一设置行、节假日集合与请假标记。
type PolicyService struct {
	db        *gorm.DB
	sanitizer *bluemonday.Policy
	listeners []ChangeListener
}

// NewPolicyService 构造 PolicyService。
func NewPolicyService(gdb *gorm.DB) *PolicyService {
	return &PolicyService{db: gdb, sanitizer: bluemonday.StrictPolicy()}
}

// Subscribe 注册变更监听者。
func (s *PolicyService) Subscribe(l ChangeListener) {
	s.listeners = append(s.listeners, l)
}

func (s *PolicyService) notify(ctx context.Context, change Change) {
	for _, l := range s.listeners {
		l.PolicyChanged(ctx, change)
	}
}

// cleanDescription 去掉标签后还原实体，按纯文本保存；输出时由模板负责转义。
func (s *PolicyService) cleanDescription(raw string) string {
	text := html.UnescapeString(s.sanitizer.Sanitize(raw))
	return truncateRunes(strings.TrimSpace(text), maxDescriptionLength)
}

// GetSettings 读取设置行；不存在时返回 ledger.ErrMissingSettings。
func (s *PolicyService) GetSettings(ctx context.Context) (*db.Settings, error) {
	var settings db.Settings
	if err := s.db.WithContext(ctx).First(&settings, db.SettingsID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrMissingSettings
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &settings, nil
}

// CurrentSettings 以纯值形式返回设置；尚未配置时返回 nil 与 0。
func (s *PolicyService) CurrentSettings(ctx context.Context) (*ledger.Settings, int64, error) {
	row, err := s.GetSettings(ctx)
	if errors.Is(err, ledger.ErrMissingSettings) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	settings, err := SettingsFromRow(*row)
	if err != nil {
		return nil, 0, err
	}
	return &settings, row.Revision, nil
}

// SettingsFromRow 把存储行转换为 ledger.Settings。
func SettingsFromRow(row db.Settings) (ledger.Settings, error) {
	start, err := ledger.ParseDate(row.StartDate)
	if err != nil {
		return ledger.Settings{}, err
	}
	end, err := ledger.ParseDate(row.EndDate)
	if err != nil {
		return ledger.Settings{}, err
	}
	days, err := ledger.ParseWeekdays(row.WorkingDays)
	if err != nil {
		return ledger.Settings{}, err
	}
	return ledger.Settings{
		Period:               ledger.DateRange{Start: start, End: end},
		WorkingDays:          days,
		DailyRequiredMinutes: row.DailyRequiredMinutes,
	}, nil
}

// UpdateSettings 整体替换设置并递增 Revision，随后通知监听者重算。
// 它只写 settings 表。
func (s *PolicyService) UpdateSettings(ctx context.Context, in SettingsInput) (*db.Settings, error) {
	next := ledger.Settings{
		Period:               ledger.DateRange{Start: in.StartDate, End: in.EndDate},
		WorkingDays:          in.WorkingDays,
		DailyRequiredMinutes: in.DailyRequiredMinutes,
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}

	var saved db.Settings
	var oldPeriod *ledger.DateRange
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current db.Settings
		err := tx.First(&current, db.SettingsID).Error
		switch {
		case err == nil:
			if prev, convErr := SettingsFromRow(current); convErr == nil {
				oldPeriod = &prev.Period
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return fmt.Errorf("load settings: %w", err)
		}

		saved = db.Settings{
			ID:                   db.SettingsID,
			StartDate:            in.StartDate.String(),
			EndDate:              in.EndDate.String(),
			WorkingDays:          in.WorkingDays.String(),
			DailyRequiredMinutes: in.DailyRequiredMinutes,
			Revision:             current.Revision + 1,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"start_date", "end_date", "working_days", "daily_required_minutes", "revision", "updated_at"}),
		}).Create(&saved).Error; err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.L.Info("settings updated",
		zap.String("start", saved.StartDate),
		zap.String("end", saved.EndDate),
		zap.String("working_days", saved.WorkingDays),
		zap.Int("daily_required_minutes", saved.DailyRequiredMinutes),
		zap.Int64("revision", saved.Revision),
	)
	s.notify(ctx, Change{Reason: "settings", OldPeriod: oldPeriod, NewPeriod: &next.Period})
	return &saved, nil
}

// EnsureDefaultSettings 在尚无设置时创建覆盖 today 所在月份、周一至周五、每日 480 分钟的设置。
func (s *PolicyService) EnsureDefaultSettings(ctx context.Context, today ledger.Date) (*db.Settings, bool, error) {
	existing, err := s.GetSettings(ctx)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ledger.ErrMissingSettings) {
		return nil, false, err
	}

	month := today.MonthOf()
	row := db.Settings{
		ID:                   db.SettingsID,
		StartDate:            month.First().String(),
		EndDate:              month.Last().String(),
		WorkingDays:          ledger.MondayToFriday.String(),
		DailyRequiredMinutes: DefaultDailyRequiredMinutes,
		Revision:             1,
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return nil, false, fmt.Errorf("create default settings: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		current, err := s.GetSettings(ctx)
		return current, false, err
	}
	return &row, true, nil
}

// ListHolidays 返回节假日，r 为空时返回全部，按日期升序。
func (s *PolicyService) ListHolidays(ctx context.Context, r *ledger.DateRange) ([]db.Holiday, error) {
	query := s.db.WithContext(ctx).Model(&db.Holiday{})
	if r != nil {
		query = query.Where("date >= ? AND date <= ?", r.Start.String(), r.End.String())
	}
	var holidays []db.Holiday
	if err := query.Order("date ASC").Find(&holidays).Error; err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	return holidays, nil
}

// AddHoliday 把日期加入节假日集合；已存在时只更新描述。
func (s *PolicyService) AddHoliday(ctx context.Context, d ledger.Date, description string) (*db.Holiday, error) {
	holiday := db.Holiday{Date: d.String(), Description: s.cleanDescription(description)}
	if holiday.Description == "" {
		holiday.Description = defaultHolidayDescription
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"description"}),
	}).Create(&holiday).Error; err != nil {
		return nil, fmt.Errorf("add holiday: %w", err)
	}
	single := ledger.DateRange{Start: d, End: d}
	s.notify(ctx, Change{Reason: "holiday", NewPeriod: &single})
	return &holiday, nil
}

// AddHolidayRange 把区间内的每个日期加入节假日集合。
func (s *PolicyService) AddHolidayRange(ctx context.Context, r ledger.DateRange, description string) (*RangeResult, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	desc := s.cleanDescription(description)
	if desc == "" {
		desc = defaultHolidayDescription
	}

	result := &RangeResult{ProcessedDates: []string{}, SkippedDates: []string{}}
	rows := make([]db.Holiday, 0, r.Days())
	for _, d := range r.Dates() {
		rows = append(rows, db.Holiday{Date: d.String(), Description: desc})
		result.ProcessedDates = append(result.ProcessedDates, d.String())
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"description"}),
	}).CreateInBatches(rows, 200).Error; err != nil {
		return nil, fmt.Errorf("add holiday range: %w", err)
	}
	result.Added = len(rows)
	s.notify(ctx, Change{Reason: "holiday", NewPeriod: &r})
	return result, nil
}

// DeleteHoliday 从集合中移除日期。
func (s *PolicyService) DeleteHoliday(ctx context.Context, d ledger.Date) error {
	res := s.db.WithContext(ctx).Where("date = ?", d.String()).Delete(&db.Holiday{})
	if res.Error != nil {
		return fmt.Errorf("delete holiday: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrHolidayNotFound
	}
	single := ledger.DateRange{Start: d, End: d}
	s.notify(ctx, Change{Reason: "holiday", NewPeriod: &single})
	return nil
}

// ListLeaves 返回请假标记，r 为空时返回全部，按日期升序。
func (s *PolicyService) ListLeaves(ctx context.Context, r *ledger.DateRange) ([]db.Leave, error) {
	query := s.db.WithContext(ctx).Model(&db.Leave{})
	if r != nil {
		query = query.Where("date >= ? AND date <= ?", r.Start.String(), r.End.String())
	}
	var leaves []db.Leave
	if err := query.Order("date ASC").Find(&leaves).Error; err != nil {
		return nil, fmt.Errorf("list leaves: %w", err)
	}
	return leaves, nil
}

// AddLeave 标记单日请假，已有标记时覆盖类型与描述。
func (s *PolicyService) AddLeave(ctx context.Context, d ledger.Date, kind ledger.LeaveKind, description string) (*db.Leave, error) {
	leave := db.Leave{Date: d.String(), Kind: kind.String(), Description: s.cleanDescription(description)}
	if err := s.upsertLeaves(ctx, []db.Leave{leave}); err != nil {
		return nil, err
	}
	single := ledger.DateRange{Start: d, End: d}
	s.notify(ctx, Change{Reason: "leave", NewPeriod: &single})
	return &leave, nil
}

// AddLeaveRange 为区间内的工作日标记请假，非工作日与节假日会被跳过并记录在结果中。
// 需要已有设置来判断工作日。
func (s *PolicyService) AddLeaveRange(ctx context.Context, r ledger.DateRange, kind ledger.LeaveKind, description string) (*RangeResult, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	settings, _, err := s.CurrentSettings(ctx)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, ledger.ErrMissingSettings
	}
	holidays, err := s.ListHolidays(ctx, &r)
	if err != nil {
		return nil, err
	}
	isHoliday := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		isHoliday[h.Date] = true
	}

	desc := s.cleanDescription(description)
	result := &RangeResult{ProcessedDates: []string{}, SkippedDates: []string{}}
	var rows []db.Leave
	for _, d := range r.Dates() {
		key := d.String()
		if !settings.WorkingDays.Has(d.Weekday()) || isHoliday[key] {
			result.Skipped++
			result.SkippedDates = append(result.SkippedDates, key)
			continue
		}
		rows = append(rows, db.Leave{Date: key, Kind: kind.String(), Description: desc})
		result.ProcessedDates = append(result.ProcessedDates, key)
	}

	if len(rows) > 0 {
		if err := s.upsertLeaves(ctx, rows); err != nil {
			return nil, err
		}
		s.notify(ctx, Change{Reason: "leave", NewPeriod: &r})
	}
	result.Added = len(rows)
	return result, nil
}

func (s *PolicyService) upsertLeaves(ctx context.Context, rows []db.Leave) error {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "description"}),
	}).CreateInBatches(rows, 200).Error; err != nil {
		return fmt.Errorf("save leave: %w", err)
	}
	return nil
}

// DeleteLeave 移除某日的请假标记。
func (s *PolicyService) DeleteLeave(ctx context.Context, d ledger.Date) error {
	res := s.db.WithContext(ctx).Where("date = ?", d.String()).Delete(&db.Leave{})
	if res.Error != nil {
		return fmt.Errorf("delete leave: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrLeaveNotFound
	}
	single := ledger.DateRange{Start: d, End: d}
	s.notify(ctx, Change{Reason: "leave", NewPeriod: &single})
	return nil
}

// LoadPolicy 组装纯值形式的策略：设置、r 内的节假日与请假（r 为空时全部）。
// 同时返回设置的 Revision。
func (s *PolicyService) LoadPolicy(ctx context.Context, r *ledger.DateRange) (ledger.Policy, int64, error) {
	settings, revision, err := s.CurrentSettings(ctx)
	if err != nil {
		return ledger.Policy{}, 0, err
	}

	holidays, err := s.ListHolidays(ctx, r)
	if err != nil {
		return ledger.Policy{}, 0, err
	}
	leaves, err := s.ListLeaves(ctx, r)
	if err != nil {
		return ledger.Policy{}, 0, err
	}

	p := ledger.Policy{
		Settings: settings,
		Holidays: make(map[ledger.Date]string, len(holidays)),
		Leaves:   make(map[ledger.Date]ledger.LeaveKind, len(leaves)),
	}
	for _, h := range holidays {
		d, err := ledger.ParseDate(h.Date)
		if err != nil {
			return ledger.Policy{}, 0, err
		}
		p.Holidays[d] = h.Description
	}
	for _, l := range leaves {
		d, err := ledger.ParseDate(l.Date)
		if err != nil {
			return ledger.Policy{}, 0, err
		}
		kind, err := ledger.ParseLeaveKind(l.Kind)
		if err != nil {
			return ledger.Policy{}, 0, err
		}
		p.Leaves[d] = kind
	}
	return p, revision, nil
}
