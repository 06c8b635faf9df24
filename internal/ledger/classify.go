package ledger

// Classification is the classifier output for one date.
type Classification struct {
	Category        Category `json:"category"`
	RequiredMinutes int      `json:"required_minutes"`
}

// Classify assigns d a category and its required minutes under p. The first
// matching rule wins:
//
//  1. outside the reporting period, or no settings: OutsidePeriod, 0
//  2. holiday: Holiday, 0
//  3. full day leave: FullDayLeave, 0
//  4. half day leave: HalfDayLeave, daily/2 (floor)
//  5. weekday not worked: Weekend, 0
//  6. otherwise: Workday, daily
func Classify(d Date, p Policy) Classification {
	s := p.Settings
	if s == nil || !s.Period.Contains(d) {
		return Classification{Category: CategoryOutsidePeriod}
	}
	if p.IsHoliday(d) {
		return Classification{Category: CategoryHoliday}
	}
	if kind, ok := p.LeaveOn(d); ok {
		switch kind {
		case LeaveFullDay:
			return Classification{Category: CategoryFullDayLeave}
		case LeaveHalfDay:
			return Classification{Category: CategoryHalfDayLeave, RequiredMinutes: s.DailyRequiredMinutes / 2}
		}
	}
	if !s.WorkingDays.Has(d.Weekday()) {
		return Classification{Category: CategoryWeekend}
	}
	return Classification{Category: CategoryWorkday, RequiredMinutes: s.DailyRequiredMinutes}
}

// RequiredMinutes is shorthand for Classify(d, p).RequiredMinutes.
func RequiredMinutes(d Date, p Policy) int {
	return Classify(d, p).RequiredMinutes
}
