package ledger

import (
	"sort"
	"time"
)

// DefaultMergeGap joins heartbeats that are at most two minutes apart into
// one displayed interval.
const DefaultMergeGap = 2 * time.Minute

// Aggregator turns heartbeat timestamps into recorded minutes per date.
//
// Timestamps are truncated to whole minutes and grouped by their calendar date
// in Location. Every distinct minute that holds at least one heartbeat counts
// once; minutes between heartbeats are never credited. MergeGap only shapes
// the intervals returned by Intervals. A heartbeat only ever counts towards
// its own date, so an interval running across midnight is split at the date
// boundary.
type Aggregator struct {
	Location *time.Location
	MergeGap time.Duration
}

// Interval is a closed run of heartbeat minutes within one date. Beats is the
// number of distinct minutes inside it that hold a heartbeat.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Beats int       `json:"beats"`
}

// Minutes is the wall-clock span of the interval in minutes, both ends
// included. It is at least Beats.
func (iv Interval) Minutes() int {
	return int(iv.End.Sub(iv.Start)/time.Minute) + 1
}

// NewAggregator returns an aggregator for loc with the default merge gap.
func NewAggregator(loc *time.Location) Aggregator {
	return Aggregator{Location: loc, MergeGap: DefaultMergeGap}
}

func (a Aggregator) location() *time.Location {
	if a.Location == nil {
		return time.UTC
	}
	return a.Location
}

func (a Aggregator) gapMinutes() int64 {
	gap := int64(a.MergeGap / time.Minute)
	if gap < 1 {
		return 1
	}
	return gap
}

// Aggregate maps each date that has at least one heartbeat to its recorded
// minutes. The input need not be sorted and may contain duplicates.
func (a Aggregator) Aggregate(timestamps []time.Time) map[Date]int {
	out := make(map[Date]int)
	for date, minutes := range a.minutesByDate(timestamps) {
		out[date] = len(minutes)
	}
	return out
}

// AggregateDate returns the recorded minutes for d only; timestamps on other
// dates are ignored.
func (a Aggregator) AggregateDate(d Date, timestamps []time.Time) int {
	loc := a.location()
	var own []time.Time
	for _, ts := range timestamps {
		if DateOf(ts, loc) == d {
			own = append(own, ts)
		}
	}
	return a.Aggregate(own)[d]
}

// Intervals groups the timestamps into intervals per date for display.
// Consecutive heartbeat minutes at most MergeGap apart share an interval.
func (a Aggregator) Intervals(timestamps []time.Time) map[Date][]Interval {
	loc := a.location()
	gap := a.gapMinutes()
	out := make(map[Date][]Interval)
	for d, minutes := range a.minutesByDate(timestamps) {
		var ivs []Interval
		start, last, beats := minutes[0], minutes[0], 1
		for _, m := range minutes[1:] {
			if m-last <= gap {
				last = m
				beats++
				continue
			}
			ivs = append(ivs, minuteInterval(start, last, beats, loc))
			start, last, beats = m, m, 1
		}
		ivs = append(ivs, minuteInterval(start, last, beats, loc))
		out[d] = ivs
	}
	return out
}

// minutesByDate returns the sorted distinct Unix minutes per date.
func (a Aggregator) minutesByDate(timestamps []time.Time) map[Date][]int64 {
	loc := a.location()
	seen := make(map[Date]map[int64]struct{})
	for _, ts := range timestamps {
		d := DateOf(ts, loc)
		if seen[d] == nil {
			seen[d] = make(map[int64]struct{})
		}
		seen[d][unixMinute(ts)] = struct{}{}
	}

	out := make(map[Date][]int64, len(seen))
	for d, set := range seen {
		minutes := make([]int64, 0, len(set))
		for m := range set {
			minutes = append(minutes, m)
		}
		sort.Slice(minutes, func(i, j int) bool { return minutes[i] < minutes[j] })
		out[d] = minutes
	}
	return out
}

// unixMinute floors ts to its minute since the Unix epoch. Unix minutes stay
// monotonic across DST transitions and floor correctly before 1970.
func unixMinute(ts time.Time) int64 {
	return ts.Truncate(time.Minute).Unix() / 60
}

func minuteInterval(start, end int64, beats int, loc *time.Location) Interval {
	return Interval{
		Start: time.Unix(start*60, 0).In(loc),
		End:   time.Unix(end*60, 0).In(loc),
		Beats: beats,
	}
}
