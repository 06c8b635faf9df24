package ledger

// Worked holds the two worked-minute sources for a set of dates. Corrections
// always win over Recorded; neither map is ever written by this package.
type Worked struct {
	Recorded    map[Date]int
	Corrections map[Date]int
}

// Corrected returns the correction for d, if any.
func (w Worked) Corrected(d Date) (int, bool) {
	m, ok := w.Corrections[d]
	return m, ok
}

// Effective returns the correction for d when present, else the recorded
// minutes (0 when nothing was recorded).
func (w Worked) Effective(d Date) int {
	if m, ok := w.Corrected(d); ok {
		return m
	}
	return w.Recorded[d]
}

// DayLedger is the full derivation for a single date.
type DayLedger struct {
	Date      Date     `json:"date"`
	Category  Category `json:"category"`
	Recorded  int      `json:"recorded_minutes"`
	Corrected *int     `json:"corrected_minutes,omitempty"`
	Effective int      `json:"effective_minutes"`
	Required  int      `json:"required_minutes"`
	Balance   int      `json:"balance"`
}

// InPeriod reports whether the day counts towards period sums.
func (l DayLedger) InPeriod() bool {
	return l.Category.InPeriod()
}

// Summary is the rollup of a date range.
type Summary struct {
	Range    DateRange `json:"range"`
	Days     int       `json:"days"`
	Worked   int       `json:"worked_minutes"`
	Required int       `json:"required_minutes"`
	Balance  int       `json:"balance"`
}

func (s *Summary) add(l DayLedger) {
	s.Days++
	s.Worked += l.Effective
	s.Required += l.Required
	s.Balance += l.Balance
}

// MonthBalance is one row of the monthly report.
type MonthBalance struct {
	Month Month `json:"month"`
	Summary
	IsFuture   bool `json:"is_future"`
	IsComplete bool `json:"is_complete"`
}

// Book combines a policy with worked minutes and answers balance questions.
type Book struct {
	Policy Policy
	Worked Worked
}

// Day derives the ledger entry for d.
func (b Book) Day(d Date) DayLedger {
	c := Classify(d, b.Policy)
	l := DayLedger{
		Date:      d,
		Category:  c.Category,
		Recorded:  b.Worked.Recorded[d],
		Effective: b.Worked.Effective(d),
		Required:  c.RequiredMinutes,
	}
	if m, ok := b.Worked.Corrected(d); ok {
		corrected := m
		l.Corrected = &corrected
	}
	l.Balance = l.Effective - l.Required
	return l
}

// DailyBalance is effective minus required for d.
func (b Book) DailyBalance(d Date) int {
	return b.Day(d).Balance
}

// Days derives every date in r, outside-period dates included.
func (b Book) Days(r DateRange) ([]DayLedger, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	out := make([]DayLedger, 0, r.Days())
	for _, d := range r.Dates() {
		out = append(out, b.Day(d))
	}
	return out, nil
}

// Summarize sums the in-period dates of r.
func (b Book) Summarize(r DateRange) (Summary, error) {
	if err := r.Validate(); err != nil {
		return Summary{}, err
	}
	s := Summary{Range: r}
	for _, d := range r.Dates() {
		l := b.Day(d)
		if !l.InPeriod() {
			continue
		}
		s.add(l)
	}
	return s, nil
}

// Monthly returns one row per calendar month touched by r, in month order.
func (b Book) Monthly(r DateRange) ([]MonthBalance, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	var rows []MonthBalance
	for _, chunk := range r.Months() {
		s, err := b.Summarize(chunk)
		if err != nil {
			return nil, err
		}
		rows = append(rows, MonthBalance{Month: chunk.Start.MonthOf(), Summary: s})
	}
	return rows, nil
}

// Total sums the whole reporting period. Without settings it is empty.
func (b Book) Total() Summary {
	period, ok := b.Policy.Period()
	if !ok {
		return Summary{}
	}
	s, _ := b.Summarize(period)
	return s
}

// TotalAsOf sums the reporting period up to and including asOf; later dates
// are not yet due and are left out.
func (b Book) TotalAsOf(asOf Date) Summary {
	period, ok := b.Policy.Period()
	if !ok {
		return Summary{}
	}
	r, ok := period.Intersect(DateRange{Start: period.Start, End: asOf})
	if !ok {
		return Summary{Range: DateRange{Start: period.Start, End: asOf}}
	}
	s, _ := b.Summarize(r)
	return s
}

// MonthlyAsOf is Monthly with dates after asOf left out. Months that start
// after asOf are flagged IsFuture and carry zero sums; IsComplete is set when
// the worked minutes cover the required ones.
func (b Book) MonthlyAsOf(r DateRange, asOf Date) ([]MonthBalance, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	var rows []MonthBalance
	for _, chunk := range r.Months() {
		row := MonthBalance{Month: chunk.Start.MonthOf(), Summary: Summary{Range: chunk}}
		if chunk.Start.After(asOf) {
			row.IsFuture = true
			row.IsComplete = true
			rows = append(rows, row)
			continue
		}
		due, _ := chunk.Intersect(DateRange{Start: chunk.Start, End: asOf})
		s, err := b.Summarize(due)
		if err != nil {
			return nil, err
		}
		s.Range = chunk
		row.Summary = s
		row.IsComplete = s.Required == 0 || s.Worked >= s.Required
		rows = append(rows, row)
	}
	return rows, nil
}
