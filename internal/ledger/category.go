package ledger

import "fmt"

// Category is the closed set of day classifications. OutsidePeriod is not a
// policy category; it marks dates that are excluded from every rollup.
type Category int

const (
	CategoryOutsidePeriod Category = iota
	CategoryWorkday
	CategoryWeekend
	CategoryHoliday
	CategoryHalfDayLeave
	CategoryFullDayLeave
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryWorkday,
	CategoryWeekend,
	CategoryHoliday,
	CategoryHalfDayLeave,
	CategoryFullDayLeave,
	CategoryOutsidePeriod,
}

func (c Category) String() string {
	switch c {
	case CategoryOutsidePeriod:
		return "outside_period"
	case CategoryWorkday:
		return "workday"
	case CategoryWeekend:
		return "weekend"
	case CategoryHoliday:
		return "holiday"
	case CategoryHalfDayLeave:
		return "leave_half"
	case CategoryFullDayLeave:
		return "leave_full"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Code returns the legacy numeric code used by older attendance sheets
// (0 workday, 1 weekend, 10 half-day leave, 11 full-day leave, 90 holiday).
func (c Category) Code() int {
	switch c {
	case CategoryWorkday:
		return 0
	case CategoryWeekend:
		return 1
	case CategoryHalfDayLeave:
		return 10
	case CategoryFullDayLeave:
		return 11
	case CategoryHoliday:
		return 90
	default:
		return -1
	}
}

// InPeriod reports whether dates of this category count towards rollups.
func (c Category) InPeriod() bool {
	return c != CategoryOutsidePeriod
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// ParseCategory is the inverse of Category.String.
func ParseCategory(raw string) (Category, error) {
	for _, c := range Categories {
		if c.String() == raw {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", raw)
}
