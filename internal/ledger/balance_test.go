package ledger

import (
	"errors"
	"testing"
)

func TestBookScenarios(t *testing.T) {
	p := marchPolicy(450)
	p.Holidays[MustParseDate("2024-03-09")] = "holiday"

	book := Book{
		Policy: p,
		Worked: Worked{
			Recorded: map[Date]int{
				MustParseDate("2024-03-04"): 3,
				MustParseDate("2024-03-05"): 200,
			},
			Corrections: map[Date]int{
				MustParseDate("2024-03-05"): 480,
			},
		},
	}

	t.Run("workday with three heartbeats", func(t *testing.T) {
		l := book.Day(MustParseDate("2024-03-04"))
		if l.Category != CategoryWorkday || l.Required != 450 || l.Effective != 3 || l.Balance != -447 {
			t.Fatalf("unexpected ledger: %+v", l)
		}
		if l.Corrected != nil {
			t.Fatalf("expected no correction, got %d", *l.Corrected)
		}
	})

	t.Run("holiday without heartbeats", func(t *testing.T) {
		l := book.Day(MustParseDate("2024-03-09"))
		if l.Category != CategoryHoliday || l.Recorded != 0 || l.Required != 0 || l.Balance != 0 {
			t.Fatalf("unexpected ledger: %+v", l)
		}
	})

	t.Run("correction replaces recorded minutes", func(t *testing.T) {
		l := book.Day(MustParseDate("2024-03-05"))
		if l.Recorded != 200 || l.Effective != 480 || l.Corrected == nil || *l.Corrected != 480 {
			t.Fatalf("unexpected ledger: %+v", l)
		}
		if l.Balance != 30 {
			t.Fatalf("expected balance 30, got %d", l.Balance)
		}
	})
}

func TestWorkedCorrectionAlwaysWins(t *testing.T) {
	d := MustParseDate("2024-03-06")
	for _, tc := range []struct {
		name      string
		recorded  int
		corrected int
	}{
		{"smaller", 300, 120},
		{"larger", 120, 300},
		{"equal", 200, 200},
		{"zero", 480, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w := Worked{
				Recorded:    map[Date]int{d: tc.recorded},
				Corrections: map[Date]int{d: tc.corrected},
			}
			if got := w.Effective(d); got != tc.corrected {
				t.Fatalf("expected %d, got %d", tc.corrected, got)
			}
			if w.Recorded[d] != tc.recorded {
				t.Fatal("recorded minutes were modified")
			}
		})
	}

	if got := (Worked{}).Effective(d); got != 0 {
		t.Fatalf("expected 0 without any data, got %d", got)
	}
}

func TestSummarizeExcludesOutsidePeriod(t *testing.T) {
	book := Book{
		Policy: marchPolicy(450),
		Worked: Worked{Recorded: map[Date]int{
			MustParseDate("2024-02-29"): 600,
			MustParseDate("2024-03-01"): 450,
			MustParseDate("2024-04-01"): 600,
		}},
	}

	r := DateRange{Start: MustParseDate("2024-02-26"), End: MustParseDate("2024-03-01")}
	s, err := book.Summarize(r)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if s.Days != 1 || s.Worked != 450 || s.Required != 450 || s.Balance != 0 {
		t.Fatalf("unexpected summary: %+v", s)
	}

	if l := book.Day(MustParseDate("2024-02-29")); l.Required != 0 || l.Category != CategoryOutsidePeriod {
		t.Fatalf("expected outside period day, got %+v", l)
	}
}

func TestSummarizeRejectsInvertedRange(t *testing.T) {
	book := Book{Policy: marchPolicy(450)}
	r := DateRange{Start: MustParseDate("2024-03-10"), End: MustParseDate("2024-03-01")}
	if _, err := book.Summarize(r); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if _, err := book.Monthly(r); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange from Monthly, got %v", err)
	}
	if _, err := book.Days(r); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange from Days, got %v", err)
	}
}

func TestBalancesAreAdditive(t *testing.T) {
	p := Policy{
		Settings: &Settings{
			Period:               DateRange{Start: MustParseDate("2024-01-15"), End: MustParseDate("2024-04-10")},
			WorkingDays:          MondayToFriday,
			DailyRequiredMinutes: 451,
		},
		Holidays: map[Date]string{MustParseDate("2024-02-05"): "h"},
		Leaves: map[Date]LeaveKind{
			MustParseDate("2024-03-06"): LeaveHalfDay,
			MustParseDate("2024-03-07"): LeaveFullDay,
		},
	}
	recorded := map[Date]int{}
	corrections := map[Date]int{}
	for i, d := range p.Settings.Period.Dates() {
		recorded[d] = (i * 37) % 520
		if i%11 == 0 {
			corrections[d] = (i * 13) % 600
		}
	}
	book := Book{Policy: p, Worked: Worked{Recorded: recorded, Corrections: corrections}}

	// Query a wider range than the period to exercise exclusion as well.
	r := DateRange{Start: MustParseDate("2024-01-01"), End: MustParseDate("2024-04-30")}
	months, err := book.Monthly(r)
	if err != nil {
		t.Fatalf("monthly: %v", err)
	}
	if len(months) != 4 {
		t.Fatalf("expected 4 months, got %d", len(months))
	}

	sumMonths := 0
	for i, m := range months {
		if i > 0 && !months[i-1].Month.First().Before(m.Month.First()) {
			t.Fatalf("months out of order: %s then %s", months[i-1].Month, m.Month)
		}
		days, err := book.Days(m.Range)
		if err != nil {
			t.Fatalf("days: %v", err)
		}
		sumDays := 0
		for _, l := range days {
			if l.InPeriod() {
				sumDays += l.Balance
			}
		}
		if sumDays != m.Balance {
			t.Fatalf("%s: daily balances sum to %d, monthly balance is %d", m.Month, sumDays, m.Balance)
		}
		if m.Worked-m.Required != m.Balance {
			t.Fatalf("%s: balance %d != worked %d - required %d", m.Month, m.Balance, m.Worked, m.Required)
		}
		sumMonths += m.Balance
	}

	total := book.Total()
	if sumMonths != total.Balance {
		t.Fatalf("monthly balances sum to %d, total is %d", sumMonths, total.Balance)
	}
	if total.Days != p.Settings.Period.Days() {
		t.Fatalf("expected %d days in total, got %d", p.Settings.Period.Days(), total.Days)
	}
}

func TestTotalWithoutSettingsIsEmpty(t *testing.T) {
	book := Book{Worked: Worked{Recorded: map[Date]int{MustParseDate("2024-03-04"): 100}}}
	if got := book.Total(); got != (Summary{}) {
		t.Fatalf("expected empty summary, got %+v", got)
	}
}

func TestMonthlyAsOf(t *testing.T) {
	p := marchPolicy(450)
	p.Settings.Period.End = MustParseDate("2024-05-31")
	book := Book{Policy: p, Worked: Worked{Recorded: map[Date]int{
		MustParseDate("2024-04-02"): 500,
		MustParseDate("2024-04-20"): 500,
	}}}

	rows, err := book.MonthlyAsOf(p.Settings.Period, MustParseDate("2024-04-10"))
	if err != nil {
		t.Fatalf("monthly as of: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	march, april, may := rows[0], rows[1], rows[2]
	if march.Required != 21*450 || march.IsFuture || march.IsComplete {
		t.Fatalf("unexpected march row: %+v", march)
	}
	if april.Required != 8*450 || april.Worked != 500 || april.IsFuture {
		t.Fatalf("unexpected april row: %+v", april)
	}
	if april.Range.End != MustParseDate("2024-04-30") {
		t.Fatalf("expected april row to keep its full range, got %s", april.Range)
	}
	if !may.IsFuture || may.Required != 0 || may.Worked != 0 {
		t.Fatalf("unexpected may row: %+v", may)
	}

	total := book.TotalAsOf(MustParseDate("2024-04-10"))
	if total.Required != march.Required+april.Required || total.Worked != 500 {
		t.Fatalf("unexpected total as of: %+v", total)
	}

	before := book.TotalAsOf(MustParseDate("2024-02-01"))
	if before.Days != 0 || before.Required != 0 {
		t.Fatalf("expected nothing due before the period, got %+v", before)
	}
}
