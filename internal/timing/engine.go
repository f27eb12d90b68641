// Package timing turns an allocation plan into concrete send times.
//
// Every item walks a fixed state machine:
//
//	unscheduled → candidate_time_assigned → jittered → cooldown_checked → collision_resolved → final
//
// with dropped as the terminal state for items no slot on their day can hold.
// Times are handled as minutes on a continuous week timeline (day*1440 + minute
// of day) and only turned back into wall clock at the end.
package timing

import (
	"fmt"
	"sort"
	"time"

	"schedforge/internal/allocator"
	"schedforge/internal/catalog"
	"schedforge/internal/logging"
	"schedforge/internal/types"
)

const minutesPerDay = 24 * 60

// lateSlot is where early dead-zone items move on the previous day.
const lateSlot = 23 * 60

// Config holds the timing rules. Clock values are minutes after midnight.
type Config struct {
	GlobalMinGap  time.Duration
	JitterMin     int
	JitterMax     int
	DayStart      int
	DayEnd        int
	DeadZoneStart int
	DeadZoneEnd   int
	ShiftStep     time.Duration
	MaxShift      time.Duration
	SnapTolerance time.Duration
}

// DefaultConfig returns the standard timing rules.
func DefaultConfig() Config {
	return Config{
		GlobalMinGap:  catalog.GlobalMinGap,
		JitterMin:     -7,
		JitterMax:     8,
		DayStart:      7 * 60,
		DayEnd:        23*60 + 59,
		DeadZoneStart: 3 * 60,
		DeadZoneEnd:   7 * 60,
		ShiftStep:     5 * time.Minute,
		MaxShift:      15 * time.Minute,
		SnapTolerance: 20 * time.Minute,
	}
}

// State is an item's position in the timing state machine.
type State int

const (
	StateUnscheduled State = iota
	StateCandidateAssigned
	StateJittered
	StateCooldownChecked
	StateCollisionResolved
	StateFinal
	StateDropped
)

var stateNames = [...]string{
	"unscheduled",
	"candidate_time_assigned",
	"jittered",
	"cooldown_checked",
	"collision_resolved",
	"final",
	"dropped",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Placement is a scheduled slot.
type Placement struct {
	Slot allocator.Slot
	At   time.Time
	// Index is the slot's position in the allocation plan.
	Index int
	State State
}

// Unschedulable reports an item no slot could hold.
type Unschedulable struct {
	Index       int             `json:"index"`
	SendTypeKey string          `json:"send_type_key"`
	ContentType string          `json:"content_type"`
	Date        string          `json:"date"`
	Code        types.ErrorCode `json:"code"`
	Reason      string          `json:"reason"`
}

// Result is the engine output. Placements are sorted by time.
type Result struct {
	Placements    []Placement
	Unschedulable []Unschedulable
}

// Engine schedules plans. It holds no per-run state and is safe for
// concurrent use.
type Engine struct {
	cfg     Config
	windows func(time.Weekday) catalog.HourWindows
}

// New returns an Engine using cfg and the default hour windows.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg, windows: catalog.Windows}
}

type item struct {
	index    int
	slot     allocator.Slot
	priority int
	day      int
	base     int
	at       int
	state    State
}

// Schedule assigns a time to every slot in plan. Jitter draws come from rng
// in plan order, so equal seeds give equal schedules.
func (e *Engine) Schedule(plan *allocator.Plan, rng types.RandomSource) *Result {
	log := logging.Get(logging.CategoryTiming)

	items := make([]*item, len(plan.Slots))
	byDay := make(map[int][]*item)
	for i, s := range plan.Slots {
		it := &item{index: i, slot: s, priority: catalog.Priority(s.SendType), day: s.Day}
		items[i] = it
		byDay[s.Day] = append(byDay[s.Day], it)
	}

	for d := 0; d < allocator.DaysPerWeek; d++ {
		e.assignBase(d, plan.WeekStart.AddDate(0, 0, d).Weekday(), byDay[d])
	}
	for _, it := range items {
		it.at = e.jitter(it.base, rng)
		it.state = StateJittered
	}
	// An item stays on its slot's day unless the early dead zone of that day
	// moves it to the previous evening. A time past the end of its day fails
	// the day bounds and the item is dropped.
	for _, it := range items {
		moved := e.normalizeDeadZone(it.at)
		it.day = it.slot.Day
		if it.at/minutesPerDay == it.slot.Day && moved/minutesPerDay < it.slot.Day {
			it.day = it.slot.Day - 1
		}
		it.at = moved
	}

	res := &Result{}
	placed := e.resolve(items)
	for _, it := range items {
		if it.state == StateDropped {
			u := Unschedulable{
				Index:       it.index,
				SendTypeKey: it.slot.SendType.Key,
				ContentType: it.slot.ContentType,
				Date:        it.slot.Date.Format(types.DateLayout),
				Code:        types.CodeUnschedulableItem,
				Reason:      "no slot on its day satisfies every gap rule",
			}
			res.Unschedulable = append(res.Unschedulable, u)
			log.Warn("dropped %s on %s: %s", u.SendTypeKey, u.Date, u.Reason)
		}
	}

	sort.SliceStable(placed, func(i, j int) bool {
		if placed[i].at != placed[j].at {
			return placed[i].at < placed[j].at
		}
		return placed[i].index < placed[j].index
	})
	for _, it := range placed {
		it.state = StateFinal
		res.Placements = append(res.Placements, Placement{
			Slot:  it.slot,
			At:    plan.WeekStart.Add(time.Duration(it.at) * time.Minute),
			Index: it.index,
			State: it.state,
		})
	}
	log.Debug("scheduled %d items, dropped %d", len(res.Placements), len(res.Unschedulable))
	return res
}

// gap returns the minimum spacing when a precedes b.
func (e *Engine) gap(a, b catalog.SendType) int {
	g := catalog.RequiredGap(a, b)
	if e.cfg.GlobalMinGap > g {
		g = e.cfg.GlobalMinGap
	}
	return int(g / time.Minute)
}

func (e *Engine) jitterSpan() int {
	return e.cfg.JitterMax - e.cfg.JitterMin
}

func isQuarterHour(minute int) bool {
	return minute%15 == 0
}

// Jitter offsets t by a draw in [JitterMin, JitterMax], redrawing while the
// result lands on :00, :15, :30 or :45.
func (e *Engine) Jitter(t int, rng types.RandomSource) int {
	return e.jitter(t, rng)
}

func (e *Engine) jitter(t int, rng types.RandomSource) int {
	n := e.jitterSpan() + 1
	for {
		out := t + e.cfg.JitterMin + rng.Intn(n)
		if !isQuarterHour(out) {
			return out
		}
	}
}

// NormalizeDeadZone moves a week-timeline minute out of the dead zone. The
// early half goes to the previous evening (the first day has none, so it
// moves to the end of the dead zone); the late half moves to the end of the
// dead zone on the same day.
func (e *Engine) NormalizeDeadZone(t int) int {
	return e.normalizeDeadZone(t)
}

func (e *Engine) normalizeDeadZone(t int) int {
	day, m := t/minutesPerDay, t%minutesPerDay
	if m < e.cfg.DeadZoneStart || m >= e.cfg.DeadZoneEnd {
		return t
	}
	split := e.cfg.DeadZoneStart + (e.cfg.DeadZoneEnd-e.cfg.DeadZoneStart)/2
	if m < split && day > 0 {
		return (day-1)*minutesPerDay + lateSlot
	}
	return day*minutesPerDay + e.cfg.DeadZoneEnd
}

func (e *Engine) inDeadZone(t int) bool {
	m := t % minutesPerDay
	return m >= e.cfg.DeadZoneStart && m < e.cfg.DeadZoneEnd
}

func (e *Engine) dayBounds(day int) (lo, hi int) {
	return day*minutesPerDay + e.cfg.DayStart, day*minutesPerDay + e.cfg.DayEnd
}
