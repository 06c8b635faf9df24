// Package ledger contains the pure attendance derivation and balance logic.
// Nothing in this package touches storage, the network, or the wall clock:
// policy, heartbeats and corrections are always passed in as values.
package ledger

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the textual form of a Date everywhere (storage keys, JSON, URLs).
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes year/month/day (so NewDate(2024, 2, 30) is 2024-03-01).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC), time.UTC)
}

// DateOf returns the calendar date of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(raw string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return DateOf(t, time.UTC), nil
}

// MustParseDate is ParseDate for constants and tests.
func MustParseDate(raw string) Date {
	d, err := ParseDate(raw)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Start returns midnight of d in loc.
func (d Date) Start(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

// Weekday returns the day of week of d.
func (d Date) Weekday() time.Weekday {
	return d.Start(time.UTC).Weekday()
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return cmpInt(d.Year, other.Year)
	case d.Month != other.Month:
		return cmpInt(int(d.Month), int(other.Month))
	default:
		return cmpInt(d.Day, other.Day)
	}
}

func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }
func (d Date) After(other Date) bool  { return d.Compare(other) > 0 }

// MonthOf returns the calendar month that contains d.
func (d Date) MonthOf() Month {
	return Month{Year: d.Year, Month: d.Month}
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Month identifies a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// First returns the first day of m.
func (m Month) First() Date {
	return Date{Year: m.Year, Month: m.Month, Day: 1}
}

// Last returns the last day of m.
func (m Month) Last() Date {
	return m.Next().First().AddDays(-1)
}

// Next returns the following month.
func (m Month) Next() Month {
	return NewDate(m.Year, m.Month+1, 1).MonthOf()
}

// Prev returns the preceding month.
func (m Month) Prev() Month {
	return NewDate(m.Year, m.Month-1, 1).MonthOf()
}

// ParseMonth parses "2006-01".
func ParseMonth(raw string) (Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(raw))
	if err != nil {
		return Month{}, fmt.Errorf("parse month %q: %w", raw, err)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// Range returns the full date range of m.
func (m Month) Range() DateRange {
	return DateRange{Start: m.First(), End: m.Last()}
}

// MarshalText implements encoding.TextMarshaler.
func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// NewDateRange builds a validated range.
func NewDateRange(start, end Date) (DateRange, error) {
	r := DateRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// Validate returns ErrInvalidRange when End is before Start.
func (r DateRange) Validate() error {
	if r.End.Before(r.Start) {
		return fmt.Errorf("%w: %s is before %s", ErrInvalidRange, r.End, r.Start)
	}
	return nil
}

// Contains reports whether d lies within r, bounds included.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days returns the number of dates in r (0 for an invalid range).
func (r DateRange) Days() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return int(r.End.Start(time.UTC).Sub(r.Start.Start(time.UTC)).Hours()/24) + 1
}

// Dates lists every date in r in ascending order.
func (r DateRange) Dates() []Date {
	n := r.Days()
	dates := make([]Date, 0, n)
	for d := r.Start; !d.After(r.End); d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates
}

// Intersect returns the overlap of r and other; ok is false when they do not overlap.
func (r DateRange) Intersect(other DateRange) (DateRange, bool) {
	start := r.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := r.End
	if other.End.Before(end) {
		end = other.End
	}
	if end.Before(start) {
		return DateRange{}, false
	}
	return DateRange{Start: start, End: end}, true
}

// Union returns the smallest range covering both r and other.
func (r DateRange) Union(other DateRange) DateRange {
	start := r.Start
	if other.Start.Before(start) {
		start = other.Start
	}
	end := r.End
	if other.End.After(end) {
		end = other.End
	}
	return DateRange{Start: start, End: end}
}

// Months splits r into per-month chunks, each clipped to r.
func (r DateRange) Months() []DateRange {
	if r.End.Before(r.Start) {
		return nil
	}
	var chunks []DateRange
	for m := r.Start.MonthOf(); !m.First().After(r.End); m = m.Next() {
		if chunk, ok := m.Range().Intersect(r); ok {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

func (r DateRange) String() string {
	return r.Start.String() + ".." + r.End.String()
}
