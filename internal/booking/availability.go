package booking

import (
	"sort"
	"time"

	"github.com/iliyamo/trainer-booking/internal/model"
)

// AvailableWindows derives the free windows of a trainer inside
// [from, to).  Weekly rules apply on their weekday unless the date has
// one-off overrides, which then replace them.  Blocked windows and the
// busy intervals (typically active bookings) are removed.  Rules are
// interpreted in loc.
func AvailableWindows(rules []model.AvailabilityRule, blocks []model.BlockedWindow, busy []Interval, from, to time.Time, loc *time.Location) []model.Window {
	if !from.Before(to) {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	var open []Interval
	first := from.In(loc)
	day := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)
	for ; day.Before(to); day = day.AddDate(0, 0, 1) {
		for _, r := range rulesFor(rules, day) {
			if r.EndMinute <= r.StartMinute {
				continue
			}
			open = append(open, Interval{
				Start: day.Add(time.Duration(r.StartMinute) * time.Minute),
				End:   day.Add(time.Duration(r.EndMinute) * time.Minute),
			})
		}
	}
	open = Merge(open)

	cut := make([]Interval, 0, len(blocks)+len(busy))
	for _, b := range blocks {
		cut = append(cut, Interval{Start: b.StartsAt, End: b.EndsAt})
	}
	cut = append(cut, busy...)
	open = Subtract(open, Merge(cut))

	out := make([]model.Window, 0, len(open))
	for _, iv := range open {
		if iv.Start.Before(from) {
			iv.Start = from
		}
		if iv.End.After(to) {
			iv.End = to
		}
		if iv.Start.Before(iv.End) {
			out = append(out, model.Window{Start: iv.Start.UTC(), End: iv.End.UTC()})
		}
	}
	return out
}

func rulesFor(rules []model.AvailabilityRule, day time.Time) []model.AvailabilityRule {
	var weekly, overrides []model.AvailabilityRule
	for _, r := range rules {
		switch {
		case r.Date != nil:
			y, m, d := r.Date.Date()
			if y == day.Year() && m == day.Month() && d == day.Day() {
				overrides = append(overrides, r)
			}
		case r.Weekday != nil && *r.Weekday == day.Weekday():
			weekly = append(weekly, r)
		}
	}
	if len(overrides) > 0 {
		return overrides
	}
	return weekly
}

// Merge sorts intervals and joins the ones that overlap or touch.
func Merge(in []Interval) []Interval {
	if len(in) == 0 {
		return nil
	}
	s := make([]Interval, len(in))
	copy(s, in)
	sort.Slice(s, func(i, j int) bool { return s[i].Start.Before(s[j].Start) })

	out := []Interval{s[0]}
	for _, iv := range s[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// Subtract removes every interval of cut from base.  Both inputs must be
// sorted and non-overlapping, as returned by Merge.
func Subtract(base, cut []Interval) []Interval {
	var out []Interval
	for _, b := range base {
		cur := b
		for _, c := range cut {
			if !c.End.After(cur.Start) {
				continue
			}
			if !c.Start.Before(cur.End) {
				break
			}
			if c.Start.After(cur.Start) {
				out = append(out, Interval{Start: cur.Start, End: c.Start})
			}
			cur.Start = c.End
			if !cur.Start.Before(cur.End) {
				break
			}
		}
		if cur.Start.Before(cur.End) {
			out = append(out, cur)
		}
	}
	return out
}
