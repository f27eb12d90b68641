package timing

import (
	"time"

	"schedforge/internal/catalog"
)

// sequence orders a day's items: revenue anchors first in the day, engagement
// dealt round-robin into the gaps after each anchor, and retention closing the
// gap before the next anchor. Leftover retention closes the last gap.
func sequence(items []*item) []*item {
	var rev, eng, ret []*item
	for _, it := range items {
		switch it.slot.SendType.Category {
		case catalog.CategoryRevenue:
			rev = append(rev, it)
		case catalog.CategoryEngagement:
			eng = append(eng, it)
		default:
			ret = append(ret, it)
		}
	}
	if len(rev) == 0 {
		return append(eng, ret...)
	}

	gaps := make([][]*item, len(rev))
	for k, it := range eng {
		gaps[k%len(rev)] = append(gaps[k%len(rev)], it)
	}
	last := len(rev) - 1
	for j, it := range ret {
		g := j
		if g > last {
			g = last
		}
		gaps[g] = append(gaps[g], it)
	}

	out := make([]*item, 0, len(items))
	for i, r := range rev {
		out = append(out, r)
		out = append(out, gaps[i]...)
	}
	return out
}

// assignBase gives each item of day d the earliest time that clears every
// earlier item in sequence. When the later item outranks the earlier one the
// jitter span and maximum shift are reserved on top of the gap, so collision
// resolution never has to move a lower-priority item into a higher one.
func (e *Engine) assignBase(d int, weekday time.Weekday, items []*item) {
	start := d*minutesPerDay + e.cfg.DayStart - e.cfg.JitterMin
	if e.cfg.JitterMin > 0 {
		start = d*minutesPerDay + e.cfg.DayStart
	}
	reserve := e.jitterSpan() + int(e.cfg.MaxShift/time.Minute)

	var done []*item
	for _, x := range sequence(items) {
		t := start
		for _, p := range done {
			need := p.base + e.gap(p.slot.SendType, x.slot.SendType)
			if x.priority > p.priority {
				need += reserve
			}
			if need > t {
				t = need
			}
		}
		if x.slot.SendType.Category == catalog.CategoryRevenue {
			t = e.snap(t, weekday)
		}
		x.base = t
		x.at = t
		x.state = StateCandidateAssigned
		done = append(done, x)
	}
}

// snap moves t forward onto a prime hour, or failing that a secondary hour,
// when the move costs no more than the snap tolerance. A time already inside
// a window stays put.
func (e *Engine) snap(t int, weekday time.Weekday) int {
	m := t % minutesPerDay
	h := m / 60
	next := (h + 1) * 60
	tol := int(e.cfg.SnapTolerance / time.Minute)

	w := e.windows(weekday)
	for _, hours := range [][]int{w.Prime, w.Secondary} {
		if containsHour(hours, h) {
			return t
		}
		if next-m <= tol && containsHour(hours, h+1) {
			return t + next - m
		}
	}
	return t
}

func containsHour(hours []int, h int) bool {
	for _, x := range hours {
		if x == h {
			return true
		}
	}
	return false
}
