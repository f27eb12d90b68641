// Package allocator decides which send types and content types fill each day
// of a week, before any clock time is chosen.
package allocator

import (
	"fmt"
	"math"
	"sort"
	"time"

	"schedforge/internal/catalog"
	"schedforge/internal/logging"
	"schedforge/internal/triggers"
	"schedforge/internal/types"
)

// DaysPerWeek is the allocation horizon.
const DaysPerWeek = 7

// Config tunes the allocator.
type Config struct {
	// MaxContentRepeatsPerDay is a soft cap: once every candidate reaches it,
	// selection ignores the cap rather than failing.
	MaxContentRepeatsPerDay int
}

// DefaultConfig returns the standard allocator settings.
func DefaultConfig() Config {
	return Config{MaxContentRepeatsPerDay: 3}
}

// Slot is one allocated (send type, content type, day) tuple.
type Slot struct {
	Day         int              `json:"day"`
	Date        time.Time        `json:"date"`
	SendType    catalog.SendType `json:"send_type"`
	ContentType string           `json:"content_type"`
}

// Plan is the allocator's output for one creator week.
type Plan struct {
	WeekStart        time.Time                             `json:"week_start"`
	Slots            []Slot                                `json:"slots"`
	DailyCounts      [DaysPerWeek]map[catalog.Category]int `json:"daily_counts"`
	VolumeMultiplier float64                               `json:"volume_multiplier"`
}

// UniqueByCategory returns the distinct send type keys per category.
func (p *Plan) UniqueByCategory() map[catalog.Category]map[string]bool {
	out := make(map[catalog.Category]map[string]bool)
	for _, s := range p.Slots {
		if out[s.SendType.Category] == nil {
			out[s.SendType.Category] = make(map[string]bool)
		}
		out[s.SendType.Category][s.SendType.Key] = true
	}
	return out
}

// SlotsForDay returns the slots allocated to day d, in allocation order.
func (p *Plan) SlotsForDay(d int) []Slot {
	var out []Slot
	for _, s := range p.Slots {
		if s.Day == d {
			out = append(out, s)
		}
	}
	return out
}

// Allocator assigns send and content types across a week.
type Allocator struct {
	catalog *catalog.Catalog
	cfg     Config
}

// New returns an Allocator reading from cat.
func New(cat *catalog.Catalog, cfg Config) *Allocator {
	if cfg.MaxContentRepeatsPerDay < 1 {
		cfg.MaxContentRepeatsPerDay = DefaultConfig().MaxContentRepeatsPerDay
	}
	return &Allocator{catalog: cat, cfg: cfg}
}

func infeasible(format string, args ...interface{}) error {
	return types.NewStageError(types.StageAllocator, types.CodeAllocationInfeasible, format, args...)
}

// Allocate produces the week's plan. It fails with ALLOCATION_INFEASIBLE
// instead of under-filling when quotas or diversity cannot be met.
func (a *Allocator) Allocate(cc types.CreatorContext, weekStart time.Time, compounds triggers.Set) (*Plan, error) {
	log := logging.Get(logging.CategoryAllocator).With("creator_id", cc.CreatorID)

	volume, err := cc.ResolveVolume()
	if err != nil {
		return nil, types.NewStageError(types.StageAllocator, types.CodeInvalidInput, "%v", err)
	}

	sendTypes := a.catalog.Allocatable(cc.PageType)
	byCategory := make(map[catalog.Category][]catalog.SendType)
	for _, st := range sendTypes {
		byCategory[st.Category] = append(byCategory[st.Category], st)
	}

	rule := catalog.DiversityFor(cc.PageType)
	if err := checkEligibleDiversity(byCategory, rule, cc.PageType); err != nil {
		return nil, err
	}

	picker, err := newContentPicker(cc, a.cfg.MaxContentRepeatsPerDay)
	if err != nil {
		return nil, err
	}

	volumeMult := compounds.Mean(picker.contentTypes())
	plan := &Plan{WeekStart: weekStart, VolumeMultiplier: volumeMult}
	log.Debug("volume tier %s, multiplier %.3f, %d send types eligible", volume.Tier, volumeMult, len(sendTypes))

	weekCount := make(map[string]int)
	excluded := make(map[string]bool)

	for d := 0; d < DaysPerWeek; d++ {
		date := weekStart.AddDate(0, 0, d)
		dayCount := make(map[string]int)
		plan.DailyCounts[d] = make(map[catalog.Category]int)
		picker.startDay()

		for _, cat := range catalog.Categories {
			eligible := byCategory[cat]
			if len(eligible) == 0 {
				continue
			}
			n := targetCount(volume.Ranges[cat], volume.DayWeights[date.Weekday()], volume.Boost(date), volumeMult)
			plan.DailyCounts[d][cat] = n

			for k := 0; k < n; k++ {
				st, ok := pickSendType(eligible, a.catalog, dayCount, weekCount, excluded)
				if !ok {
					return nil, infeasible("%s: no %s send type left for slot %d of %d (daily/weekly caps exhausted)", date.Format(types.DateLayout), cat, k+1, n)
				}
				dayCount[st.Key]++
				weekCount[st.Key]++
				if st.WeeklyMax > 0 && weekCount[st.Key] >= st.WeeklyMax && !excluded[st.Key] {
					excluded[st.Key] = true
					log.Debug("%s reached weekly cap %d, excluded for remainder of week", st.Key, st.WeeklyMax)
				}

				plan.Slots = append(plan.Slots, Slot{
					Day:         d,
					Date:        date,
					SendType:    st,
					ContentType: picker.pick(),
				})
			}
		}
	}

	if err := checkPlanDiversity(plan, rule); err != nil {
		return nil, err
	}

	log.Info("allocated %d slots across %d days", len(plan.Slots), DaysPerWeek)
	return plan, nil
}

// targetCount positions the day inside the category range, applies the
// calendar boost and trigger multiplier, then clamps back into the range.
func targetCount(r catalog.Range, weight, boost, mult float64) int {
	base := float64(r.Min) + float64(r.Max-r.Min)*weight
	return r.Clamp(int(math.Round(base * boost * mult)))
}

// pickSendType returns the least-used type this week that still has daily
// and weekly room, ties broken by catalog order.
func pickSendType(eligible []catalog.SendType, cat *catalog.Catalog, dayCount, weekCount map[string]int, excluded map[string]bool) (catalog.SendType, bool) {
	var best catalog.SendType
	found := false
	for _, st := range eligible {
		if excluded[st.Key] || dayCount[st.Key] >= st.DailyMax {
			continue
		}
		if !found ||
			weekCount[st.Key] < weekCount[best.Key] ||
			(weekCount[st.Key] == weekCount[best.Key] && cat.Order(st.Key) < cat.Order(best.Key)) {
			best = st
			found = true
		}
	}
	return best, found
}

func checkEligibleDiversity(byCategory map[catalog.Category][]catalog.SendType, rule catalog.DiversityRule, page catalog.PageType) error {
	total := 0
	for _, cat := range catalog.Categories {
		n := len(byCategory[cat])
		total += n
		if need := rule.MinFor(cat); n < need {
			return infeasible("only %d %s send types usable on a %s page, need %d distinct", n, cat, page, need)
		}
	}
	if total < rule.MinTotal {
		return infeasible("only %d send types usable on a %s page, need %d distinct", total, page, rule.MinTotal)
	}
	return nil
}

func checkPlanDiversity(plan *Plan, rule catalog.DiversityRule) error {
	unique := plan.UniqueByCategory()
	total := 0
	for _, cat := range catalog.Categories {
		n := len(unique[cat])
		total += n
		if need := rule.MinFor(cat); n < need {
			return infeasible("plan uses %d distinct %s types, need %d", n, cat, need)
		}
	}
	if total < rule.MinTotal {
		return infeasible("plan uses %d distinct send types, need %d", total, rule.MinTotal)
	}
	return nil
}

// UniqueKeys returns the sorted distinct send type keys in the plan.
func (p *Plan) UniqueKeys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, s := range p.Slots {
		if !seen[s.SendType.Key] {
			seen[s.SendType.Key] = true
			keys = append(keys, s.SendType.Key)
		}
	}
	sort.Strings(keys)
	return keys
}

// String summarises the plan for logs.
func (p *Plan) String() string {
	return fmt.Sprintf("plan{week=%s slots=%d unique=%d}", p.WeekStart.Format(types.DateLayout), len(p.Slots), len(p.UniqueKeys()))
}
