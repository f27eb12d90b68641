package timing

import (
	"sort"
	"time"
)

// resolve places items in priority order. Higher priority items keep their
// jittered time; a lower priority item that collides is shifted forward in
// steps up to the maximum shift, then moved to the next slot on its day that
// clears every gap rule, and dropped when none exists.
func (e *Engine) resolve(items []*item) []*item {
	order := make([]*item, len(items))
	copy(order, items)
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].priority != order[j].priority {
			return order[i].priority > order[j].priority
		}
		if order[i].at != order[j].at {
			return order[i].at < order[j].at
		}
		return order[i].index < order[j].index
	})

	placed := make([]*item, 0, len(items))
	for _, x := range order {
		x.state = StateCooldownChecked
		t, ok := e.findSlot(x, placed)
		if !ok {
			x.state = StateDropped
			continue
		}
		x.at = t
		x.state = StateCollisionResolved
		placed = append(placed, x)
	}
	return placed
}

func (e *Engine) findSlot(x *item, placed []*item) (int, bool) {
	lo, hi := e.dayBounds(x.day)
	t := x.at
	if e.fits(x, t, placed, lo, hi) {
		return t, true
	}

	step := int(e.cfg.ShiftStep / time.Minute)
	if step < 1 {
		step = 5
	}
	maxShift := int(e.cfg.MaxShift / time.Minute)
	for s := step; s <= maxShift; s += step {
		if c := t + s; !isQuarterHour(c) && e.fits(x, c, placed, lo, hi) {
			return c, true
		}
	}

	c := t + maxShift + step
	if c < lo {
		c = lo + step
	}
	for ; c <= hi; c += step {
		if !isQuarterHour(c) && e.fits(x, c, placed, lo, hi) {
			return c, true
		}
	}
	return 0, false
}

func (e *Engine) fits(x *item, t int, placed []*item, lo, hi int) bool {
	if t < lo || t > hi || e.inDeadZone(t) {
		return false
	}
	for _, p := range placed {
		if p.at <= t {
			if t-p.at < e.gap(p.slot.SendType, x.slot.SendType) {
				return false
			}
		} else if p.at-t < e.gap(x.slot.SendType, p.slot.SendType) {
			return false
		}
	}
	return true
}
