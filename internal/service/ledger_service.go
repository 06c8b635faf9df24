package service

import (
	"context"
	"time"

	"github.com/attendlog/internal/ledger"
)

// LedgerService 组合策略、记录分钟数与修正，对外提供日、月、总余额查询。
// 所有计算都委托给纯函数包 ledger，本身不写任何数据。
type LedgerService struct {
	policy      *PolicyService
	attendance  *AttendanceService
	corrections *CorrectionService
	now         func() time.Time
}

// CalendarDay 是仪表盘日历中的一格。
type CalendarDay struct {
	ledger.DayLedger
	IsToday  bool `json:"is_today"`
	IsFuture bool `json:"is_future"`
}

// ChartPoint 是图表中一个月的数据，单位为小时。
type ChartPoint struct {
	Month         string  `json:"month"`
	WorkedHours   float64 `json:"worked_hours"`
	RequiredHours float64 `json:"required_hours"`
	BalanceHours  float64 `json:"balance_hours"`
}

// CorrectionRow 是修正页面的一行。
type CorrectionRow struct {
	ledger.DayLedger
	Reason string `json:"reason,omitempty"`
}

// NewLedgerService 构造 LedgerService。
func NewLedgerService(policy *PolicyService, attendance *AttendanceService, corrections *CorrectionService) *LedgerService {
	return &LedgerService{policy: policy, attendance: attendance, corrections: corrections, now: time.Now}
}

// Today 返回配置时区中的今天。
func (s *LedgerService) Today() ledger.Date {
	return s.attendance.DateOf(s.now())
}

// Book 读取计算区间 r 所需的全部输入。
func (s *LedgerService) Book(ctx context.Context, r ledger.DateRange) (ledger.Book, error) {
	if err := r.Validate(); err != nil {
		return ledger.Book{}, err
	}
	p, _, err := s.policy.LoadPolicy(ctx, &r)
	if err != nil {
		return ledger.Book{}, err
	}
	recorded, err := s.attendance.RecordedBetween(ctx, r)
	if err != nil {
		return ledger.Book{}, err
	}
	corrections, err := s.corrections.MinutesBetween(ctx, r)
	if err != nil {
		return ledger.Book{}, err
	}
	return ledger.Book{Policy: p, Worked: ledger.Worked{Recorded: recorded, Corrections: corrections}}, nil
}

func single(d ledger.Date) ledger.DateRange {
	return ledger.DateRange{Start: d, End: d}
}

// EffectiveMinutes 返回某日的有效分钟数：有修正用修正，否则用记录值，都没有为 0。
func (s *LedgerService) EffectiveMinutes(ctx context.Context, d ledger.Date) (int, error) {
	book, err := s.Book(ctx, single(d))
	if err != nil {
		return 0, err
	}
	return book.Worked.Effective(d), nil
}

// Classify 返回某日在当前策略下的类别与应出勤分钟数。
func (s *LedgerService) Classify(ctx context.Context, d ledger.Date) (ledger.Classification, error) {
	r := single(d)
	p, _, err := s.policy.LoadPolicy(ctx, &r)
	if err != nil {
		return ledger.Classification{}, err
	}
	return ledger.Classify(d, p), nil
}

// Day 返回某日的完整推导结果。
func (s *LedgerService) Day(ctx context.Context, d ledger.Date) (ledger.DayLedger, error) {
	book, err := s.Book(ctx, single(d))
	if err != nil {
		return ledger.DayLedger{}, err
	}
	return book.Day(d), nil
}

// Days 返回区间内每一天的推导结果，包括报告期外的日期。
func (s *LedgerService) Days(ctx context.Context, r ledger.DateRange) ([]ledger.DayLedger, error) {
	book, err := s.Book(ctx, r)
	if err != nil {
		return nil, err
	}
	return book.Days(r)
}

// DailyBalance 返回某日余额（有效分钟减应出勤分钟）。
func (s *LedgerService) DailyBalance(ctx context.Context, d ledger.Date) (int, error) {
	l, err := s.Day(ctx, d)
	if err != nil {
		return 0, err
	}
	return l.Balance, nil
}

// period 返回 r，r 为空时回退到当前报告期；尚未配置设置时 ok 为 false。
func (s *LedgerService) period(ctx context.Context, r *ledger.DateRange) (ledger.DateRange, bool, error) {
	if r != nil {
		return *r, true, r.Validate()
	}
	settings, _, err := s.policy.CurrentSettings(ctx)
	if err != nil {
		return ledger.DateRange{}, false, err
	}
	if settings == nil {
		return ledger.DateRange{}, false, nil
	}
	return settings.Period, true, nil
}

// MonthlyBalances 按月份顺序返回区间内各月的汇总；r 为空时使用整个报告期。
func (s *LedgerService) MonthlyBalances(ctx context.Context, r *ledger.DateRange) ([]ledger.MonthBalance, error) {
	rng, ok, err := s.period(ctx, r)
	if err != nil || !ok {
		return []ledger.MonthBalance{}, err
	}
	book, err := s.Book(ctx, rng)
	if err != nil {
		return nil, err
	}
	return book.Monthly(rng)
}

// MonthlyBalancesAsOf 与 MonthlyBalances 相同，但 asOf 之后的日期不计入。
func (s *LedgerService) MonthlyBalancesAsOf(ctx context.Context, r *ledger.DateRange, asOf ledger.Date) ([]ledger.MonthBalance, error) {
	rng, ok, err := s.period(ctx, r)
	if err != nil || !ok {
		return []ledger.MonthBalance{}, err
	}
	book, err := s.Book(ctx, rng)
	if err != nil {
		return nil, err
	}
	return book.MonthlyAsOf(rng, asOf)
}

// TotalBalance 汇总整个报告期 [start_date, end_date]；尚未配置设置时为零值。
func (s *LedgerService) TotalBalance(ctx context.Context) (ledger.Summary, error) {
	rng, ok, err := s.period(ctx, nil)
	if err != nil || !ok {
		return ledger.Summary{}, err
	}
	book, err := s.Book(ctx, rng)
	if err != nil {
		return ledger.Summary{}, err
	}
	return book.Total(), nil
}

// TotalBalanceAsOf 汇总报告期开始到 asOf（含）为止的日期。
func (s *LedgerService) TotalBalanceAsOf(ctx context.Context, asOf ledger.Date) (ledger.Summary, error) {
	rng, ok, err := s.period(ctx, nil)
	if err != nil || !ok {
		return ledger.Summary{}, err
	}
	book, err := s.Book(ctx, rng)
	if err != nil {
		return ledger.Summary{}, err
	}
	return book.TotalAsOf(asOf), nil
}

// Calendar 返回某月每一天的推导结果，并标记今天与未来日期。
func (s *LedgerService) Calendar(ctx context.Context, month ledger.Month) ([]CalendarDay, error) {
	days, err := s.Days(ctx, month.Range())
	if err != nil {
		return nil, err
	}
	today := s.Today()
	out := make([]CalendarDay, 0, len(days))
	for _, d := range days {
		out = append(out, CalendarDay{
			DayLedger: d,
			IsToday:   d.Date == today,
			IsFuture:  d.Date.After(today),
		})
	}
	return out, nil
}

// ChartData 返回截至本月的最近 months 个月的工作、应出勤与余额小时数，按时间先后排列。
// 只计入今天及之前的日期。
func (s *LedgerService) ChartData(ctx context.Context, months int) ([]ChartPoint, error) {
	if months <= 0 {
		months = 12
	}
	today := s.Today()
	first := ledger.NewDate(today.Year, today.Month-time.Month(months-1), 1)
	r := ledger.DateRange{Start: first, End: today.MonthOf().Last()}

	rows, err := s.MonthlyBalancesAsOf(ctx, &r, today)
	if err != nil {
		return nil, err
	}
	points := make([]ChartPoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, ChartPoint{
			Month:         row.Month.String(),
			WorkedHours:   ledger.HoursFloat(row.Worked),
			RequiredHours: ledger.HoursFloat(row.Required),
			BalanceHours:  ledger.HoursFloat(row.Balance),
		})
	}
	return points, nil
}

// CorrectionRows 返回修正页面所需的逐日数据，附带修正原因。
func (s *LedgerService) CorrectionRows(ctx context.Context, r ledger.DateRange) ([]CorrectionRow, error) {
	days, err := s.Days(ctx, r)
	if err != nil {
		return nil, err
	}
	corrections, err := s.corrections.ListBetween(ctx, &r)
	if err != nil {
		return nil, err
	}
	reasons := make(map[string]string, len(corrections))
	for _, c := range corrections {
		reasons[c.Date] = c.Reason
	}

	rows := make([]CorrectionRow, 0, len(days))
	for _, d := range days {
		rows = append(rows, CorrectionRow{DayLedger: d, Reason: reasons[d.Date.String()]})
	}
	return rows, nil
}
