package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WeekdaySet is a bitmask of time.Weekday values.
type WeekdaySet uint8

// MondayToFriday is the default working week.
const MondayToFriday = WeekdaySet(1<<time.Monday | 1<<time.Tuesday | 1<<time.Wednesday | 1<<time.Thursday | 1<<time.Friday)

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// NewWeekdaySet builds a set from individual weekdays.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

// ParseWeekdays accepts names ("Mon", "monday") separated by commas. An empty
// string yields an empty set.
func ParseWeekdays(raw string) (WeekdaySet, error) {
	var s WeekdaySet
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		day, ok := weekdayNames[name]
		if !ok {
			return 0, fmt.Errorf("unknown weekday %q", part)
		}
		s = s.With(day)
	}
	return s, nil
}

// ParseWeekdayList is ParseWeekdays for already split values.
func ParseWeekdayList(values []string) (WeekdaySet, error) {
	return ParseWeekdays(strings.Join(values, ","))
}

// With returns s plus d.
func (s WeekdaySet) With(d time.Weekday) WeekdaySet {
	return s | 1<<uint(d)
}

// Has reports whether d is in s.
func (s WeekdaySet) Has(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

// Days returns the members Monday first.
func (s WeekdaySet) Days() []time.Weekday {
	var days []time.Weekday
	for _, d := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday} {
		if s.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

// Names returns three letter names Monday first.
func (s WeekdaySet) Names() []string {
	days := s.Days()
	names := make([]string, 0, len(days))
	for _, d := range days {
		names = append(names, d.String()[:3])
	}
	return names
}

// String renders the storage form, e.g. "Mon,Tue,Wed".
func (s WeekdaySet) String() string {
	return strings.Join(s.Names(), ",")
}

// LeaveKind distinguishes half and full day leave.
type LeaveKind int

const (
	LeaveHalfDay LeaveKind = iota + 1
	LeaveFullDay
)

func (k LeaveKind) String() string {
	switch k {
	case LeaveHalfDay:
		return "half"
	case LeaveFullDay:
		return "full"
	default:
		return "leave(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseLeaveKind accepts "half" or "full".
func ParseLeaveKind(raw string) (LeaveKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "half", "half_day", "leave_half":
		return LeaveHalfDay, nil
	case "full", "full_day", "leave_full":
		return LeaveFullDay, nil
	default:
		return 0, fmt.Errorf("unknown leave kind %q", raw)
	}
}

// Settings is the single active reporting policy.
type Settings struct {
	Period               DateRange
	WorkingDays          WeekdaySet
	DailyRequiredMinutes int
}

// Validate checks the policy invariants.
func (s Settings) Validate() error {
	if err := s.Period.Validate(); err != nil {
		return err
	}
	if s.DailyRequiredMinutes < 0 {
		return fmt.Errorf("daily required minutes: %w", ErrNegativeMinutes)
	}
	return nil
}

// Policy is everything the classifier needs. A nil Settings means no policy
// has been configured yet.
type Policy struct {
	Settings *Settings
	Holidays map[Date]string
	Leaves   map[Date]LeaveKind
}

// IsHoliday reports whether d is in the holiday set.
func (p Policy) IsHoliday(d Date) bool {
	_, ok := p.Holidays[d]
	return ok
}

// LeaveOn returns the leave marked on d, if any.
func (p Policy) LeaveOn(d Date) (LeaveKind, bool) {
	kind, ok := p.Leaves[d]
	return kind, ok
}

// Period returns the reporting period; ok is false without settings.
func (p Policy) Period() (DateRange, bool) {
	if p.Settings == nil {
		return DateRange{}, false
	}
	return p.Settings.Period, true
}
