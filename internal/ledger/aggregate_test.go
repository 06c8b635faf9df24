package ledger

import (
	"reflect"
	"testing"
	"time"
)

func at(raw string) time.Time {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		panic(err)
	}
	return t
}

func TestAggregatorRecordedMinutes(t *testing.T) {
	day := MustParseDate("2024-03-04")
	cases := []struct {
		name       string
		gap        time.Duration
		timestamps []string
		want       int
	}{
		{
			name:       "consecutive minutes",
			gap:        DefaultMergeGap,
			timestamps: []string{"2024-03-04T09:00:00Z", "2024-03-04T09:01:00Z", "2024-03-04T09:02:00Z"},
			want:       3,
		},
		{
			name:       "lone heartbeat",
			gap:        DefaultMergeGap,
			timestamps: []string{"2024-03-04T13:37:12Z"},
			want:       1,
		},
		{
			name:       "same minute deduplicated",
			gap:        DefaultMergeGap,
			timestamps: []string{"2024-03-04T09:00:05Z", "2024-03-04T09:00:55Z", "2024-03-04T09:00:05Z"},
			want:       1,
		},
		{
			name:       "minute between heartbeats is not credited",
			gap:        DefaultMergeGap,
			timestamps: []string{"2024-03-04T09:00:00Z", "2024-03-04T09:02:00Z"},
			want:       2,
		},
		{
			name:       "three minute gap splits",
			gap:        DefaultMergeGap,
			timestamps: []string{"2024-03-04T09:00:00Z", "2024-03-04T09:03:00Z"},
			want:       2,
		},
		{
			name:       "one minute gap counts distinct minutes",
			gap:        time.Minute,
			timestamps: []string{"2024-03-04T09:00:00Z", "2024-03-04T09:02:00Z"},
			want:       2,
		},
		{
			name:       "unsorted input",
			gap:        DefaultMergeGap,
			timestamps: []string{"2024-03-04T09:02:00Z", "2024-03-04T09:00:00Z", "2024-03-04T09:01:00Z"},
			want:       3,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var ts []time.Time
			for _, raw := range tc.timestamps {
				ts = append(ts, at(raw))
			}
			agg := Aggregator{Location: time.UTC, MergeGap: tc.gap}
			got := agg.Aggregate(ts)
			if got[day] != tc.want {
				t.Fatalf("expected %d minutes, got %d (%v)", tc.want, got[day], got)
			}
			if len(got) != 1 {
				t.Fatalf("expected a single date, got %v", got)
			}
		})
	}
}

func TestAggregatorSplitsAtMidnight(t *testing.T) {
	agg := NewAggregator(time.UTC)
	got := agg.Aggregate([]time.Time{
		at("2024-03-04T23:58:00Z"),
		at("2024-03-04T23:59:00Z"),
		at("2024-03-05T00:00:00Z"),
		at("2024-03-05T00:01:00Z"),
		at("2024-03-05T00:02:00Z"),
	})

	want := map[Date]int{
		MustParseDate("2024-03-04"): 2,
		MustParseDate("2024-03-05"): 3,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestAggregatorUsesConfiguredZone(t *testing.T) {
	cet := time.FixedZone("CET", 3600)
	ts := []time.Time{at("2024-03-04T23:30:00Z")}

	utc := NewAggregator(time.UTC).Aggregate(ts)
	if utc[MustParseDate("2024-03-04")] != 1 {
		t.Fatalf("expected heartbeat on 2024-03-04 in UTC, got %v", utc)
	}

	local := NewAggregator(cet).Aggregate(ts)
	if local[MustParseDate("2024-03-05")] != 1 {
		t.Fatalf("expected heartbeat on 2024-03-05 in CET, got %v", local)
	}
}

func TestAggregatorIsIdempotentAndMonotone(t *testing.T) {
	agg := NewAggregator(time.UTC)
	base := []time.Time{
		at("2024-03-04T08:00:00Z"),
		at("2024-03-04T08:01:00Z"),
		at("2024-03-04T08:05:00Z"),
		at("2024-03-04T10:00:00Z"),
		at("2024-03-05T10:00:00Z"),
	}

	first := agg.Aggregate(base)
	second := agg.Aggregate(base)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("aggregation not idempotent: %v vs %v", first, second)
	}

	grown := append(append([]time.Time{}, base...), at("2024-03-04T08:03:00Z"), at("2024-03-04T08:01:30Z"))
	after := agg.Aggregate(grown)
	for d, before := range first {
		if after[d] < before {
			t.Fatalf("minutes for %s decreased from %d to %d", d, before, after[d])
		}
	}
	// 08:00, 08:01, 08:03, 08:05 and 10:00; 08:01:30 shares a minute with 08:01.
	if after[MustParseDate("2024-03-04")] != 5 {
		t.Fatalf("expected 5 distinct minutes, got %d", after[MustParseDate("2024-03-04")])
	}
}

func TestAggregatorIntervalsAndSingleDate(t *testing.T) {
	agg := NewAggregator(time.UTC)
	ts := []time.Time{
		at("2024-03-04T09:00:00Z"),
		at("2024-03-04T09:01:00Z"),
		at("2024-03-04T11:00:00Z"),
		at("2024-03-05T09:00:00Z"),
	}

	ivs := agg.Intervals(ts)[MustParseDate("2024-03-04")]
	if len(ivs) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(ivs))
	}
	if ivs[0].Minutes() != 2 || ivs[1].Minutes() != 1 {
		t.Fatalf("unexpected interval lengths: %d, %d", ivs[0].Minutes(), ivs[1].Minutes())
	}
	if ivs[0].Beats != 2 || ivs[1].Beats != 1 {
		t.Fatalf("unexpected beat counts: %d, %d", ivs[0].Beats, ivs[1].Beats)
	}

	if got := agg.AggregateDate(MustParseDate("2024-03-05"), ts); got != 1 {
		t.Fatalf("expected 1 minute for 2024-03-05, got %d", got)
	}
	if got := agg.AggregateDate(MustParseDate("2024-03-06"), ts); got != 0 {
		t.Fatalf("expected 0 minutes for a date without heartbeats, got %d", got)
	}
}

func TestAggregatorCountsOneMinutePerHeartbeatMinute(t *testing.T) {
	agg := NewAggregator(time.UTC)
	start := at("2024-03-04T09:00:00Z")
	var ts []time.Time
	for i := 0; i < 60; i++ {
		ts = append(ts, start.Add(time.Duration(2*i)*time.Minute))
	}

	day := MustParseDate("2024-03-04")
	if got := agg.Aggregate(ts)[day]; got != 60 {
		t.Fatalf("expected 60 minutes for 60 heartbeats, got %d", got)
	}

	ivs := agg.Intervals(ts)[day]
	if len(ivs) != 1 {
		t.Fatalf("expected heartbeats two minutes apart to share one interval, got %d", len(ivs))
	}
	if ivs[0].Beats != 60 || ivs[0].Minutes() != 119 {
		t.Fatalf("unexpected interval %+v (span %d)", ivs[0], ivs[0].Minutes())
	}
}

func TestAggregatorFloorsMinutesBeforeEpoch(t *testing.T) {
	agg := NewAggregator(time.UTC)
	ts := []time.Time{
		at("1969-12-31T23:58:30Z"),
		at("1969-12-31T23:59:10Z"),
		at("1969-12-31T23:59:50Z"),
	}

	day := MustParseDate("1969-12-31")
	if got := agg.Aggregate(ts)[day]; got != 2 {
		t.Fatalf("expected 2 distinct minutes, got %d", got)
	}
	ivs := agg.Intervals(ts)[day]
	if len(ivs) != 1 || !ivs[0].Start.Equal(at("1969-12-31T23:58:00Z")) || !ivs[0].End.Equal(at("1969-12-31T23:59:00Z")) {
		t.Fatalf("unexpected intervals %+v", ivs)
	}
}
