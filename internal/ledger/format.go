package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var sixty = decimal.NewFromInt(60)

// FormatMinutes renders signed minutes as HH:MM, e.g. -447 => "-07:27".
func FormatMinutes(minutes int) string {
	sign := ""
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	return fmt.Sprintf("%s%02d:%02d", sign, minutes/60, minutes%60)
}

// FormatWorkdays renders minutes in units of a working day of daily minutes:
// "2d 01:30", "3d", "04:15" or "45m". A zero daily length yields "0d 00:00".
func FormatWorkdays(minutes, daily int) string {
	if daily <= 0 {
		return "0d 00:00"
	}
	sign := ""
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	days := minutes / daily
	rest := minutes % daily
	hours, mins := rest/60, rest%60
	switch {
	case days > 0 && rest > 0:
		return fmt.Sprintf("%s%dd %02d:%02d", sign, days, hours, mins)
	case days > 0:
		return fmt.Sprintf("%s%dd", sign, days)
	case hours > 0:
		return fmt.Sprintf("%s%02d:%02d", sign, hours, mins)
	default:
		return fmt.Sprintf("%s%02dm", sign, mins)
	}
}

// FormatSignedHours renders minutes as "+7h 30m" / "-0h 15m".
func FormatSignedHours(minutes int) string {
	sign := "+"
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	return fmt.Sprintf("%s%dh %dm", sign, minutes/60, minutes%60)
}

// Hours converts minutes to hours rounded to two decimals.
func Hours(minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(minutes)).Div(sixty).Round(2)
}

// HoursFloat is Hours as a float64 for chart payloads.
func HoursFloat(minutes int) float64 {
	f, _ := Hours(minutes).Float64()
	return f
}

// MinutesFromHours converts a decimal hour figure such as "7.5" to whole
// minutes, truncating any fraction of a minute.
func MinutesFromHours(hours decimal.Decimal) (int, error) {
	if hours.IsNegative() {
		return 0, fmt.Errorf("hours %s: %w", hours, ErrNegativeMinutes)
	}
	return int(hours.Mul(sixty).IntPart()), nil
}

// ParseHours is MinutesFromHours for a textual input.
func ParseHours(raw string) (int, error) {
	hours, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("parse hours %q: %w", raw, err)
	}
	return MinutesFromHours(hours)
}
