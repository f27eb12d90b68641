package catalog

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Range is an inclusive per-day count range.
type Range struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// Clamp bounds n to the range.
func (r Range) Clamp(n int) int {
	if n < r.Min {
		return r.Min
	}
	if n > r.Max {
		return r.Max
	}
	return n
}

// VolumeConfig describes how many items of each category a creator's tier
// sends per day.
type VolumeConfig struct {
	Tier   string             `json:"tier" yaml:"tier"`
	Ranges map[Category]Range `json:"ranges" yaml:"ranges"`
	// DayWeights positions each weekday inside its range: 0 = Min, 1 = Max.
	// Indexed by time.Weekday.
	DayWeights [7]float64 `json:"day_weights" yaml:"day_weights"`
	// CalendarBoosts multiplies a date's counts, keyed by "2006-01-02".
	CalendarBoosts map[string]float64 `json:"calendar_boosts,omitempty" yaml:"calendar_boosts,omitempty"`
}

// Validate checks that ranges are well formed.
func (v VolumeConfig) Validate() error {
	for _, c := range Categories {
		r, ok := v.Ranges[c]
		if !ok {
			return fmt.Errorf("volume tier %q: missing %s range", v.Tier, c)
		}
		if r.Min < 0 || r.Max < r.Min {
			return fmt.Errorf("volume tier %q: invalid %s range [%d,%d]", v.Tier, c, r.Min, r.Max)
		}
	}
	for i, w := range v.DayWeights {
		if w < 0 || w > 1 {
			return fmt.Errorf("volume tier %q: day weight for %s out of [0,1]", v.Tier, time.Weekday(i))
		}
	}
	for date, boost := range v.CalendarBoosts {
		if _, err := time.Parse(time.DateOnly, date); err != nil {
			return fmt.Errorf("volume tier %q: calendar boost date %q: %w", v.Tier, date, err)
		}
		if boost <= 0 {
			return fmt.Errorf("volume tier %q: calendar boost for %s must be positive", v.Tier, date)
		}
	}
	return nil
}

// Boost returns the calendar multiplier for date, 1.0 when unset.
func (v VolumeConfig) Boost(date time.Time) float64 {
	if b, ok := v.CalendarBoosts[date.Format(time.DateOnly)]; ok {
		return b
	}
	return 1.0
}

// Volume tier names.
const (
	TierLow      = "LOW"
	TierStandard = "STANDARD"
	TierHigh     = "HIGH"
	TierUltra    = "ULTRA"
)

// Sunday-first weights: weekends sit at the top of each range.
var defaultDayWeights = [7]float64{0.8, 0.3, 0.4, 0.5, 0.6, 0.9, 1.0}

// Revenue stays at three or fewer per day: with a 4h engagement-to-revenue
// cooldown a day of e engagement and r revenue items spans e + 4(r-1) hours.
var tiers = map[string]VolumeConfig{
	TierLow: {
		Tier: TierLow,
		Ranges: map[Category]Range{
			CategoryRevenue:    {Min: 1, Max: 2},
			CategoryEngagement: {Min: 2, Max: 3},
			CategoryRetention:  {Min: 1, Max: 1},
		},
		DayWeights: defaultDayWeights,
	},
	TierStandard: {
		Tier: TierStandard,
		Ranges: map[Category]Range{
			CategoryRevenue:    {Min: 2, Max: 3},
			CategoryEngagement: {Min: 3, Max: 5},
			CategoryRetention:  {Min: 1, Max: 2},
		},
		DayWeights: defaultDayWeights,
	},
	TierHigh: {
		Tier: TierHigh,
		Ranges: map[Category]Range{
			CategoryRevenue:    {Min: 3, Max: 3},
			CategoryEngagement: {Min: 4, Max: 5},
			CategoryRetention:  {Min: 1, Max: 2},
		},
		DayWeights: defaultDayWeights,
	},
	TierUltra: {
		Tier: TierUltra,
		Ranges: map[Category]Range{
			CategoryRevenue:    {Min: 3, Max: 3},
			CategoryEngagement: {Min: 5, Max: 6},
			CategoryRetention:  {Min: 2, Max: 2},
		},
		DayWeights: defaultDayWeights,
	},
}

// Tier returns a copy of the named volume preset. Names are case-insensitive.
func Tier(name string) (VolumeConfig, bool) {
	v, ok := tiers[strings.ToUpper(name)]
	if !ok {
		return VolumeConfig{}, false
	}
	ranges := make(map[Category]Range, len(v.Ranges))
	for k, r := range v.Ranges {
		ranges[k] = r
	}
	v.Ranges = ranges
	return v, true
}

// TierNames returns the preset names, sorted.
func TierNames() []string {
	names := make([]string, 0, len(tiers))
	for n := range tiers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// HourWindows lists the preferred send hours for a weekday.
type HourWindows struct {
	Prime     []int `json:"prime" yaml:"prime"`
	Secondary []int `json:"secondary" yaml:"secondary"`
}

var weekdayWindows = HourWindows{
	Prime:     []int{12, 20, 21},
	Secondary: []int{9, 10, 17, 18, 19, 22},
}

var weekendWindows = HourWindows{
	Prime:     []int{11, 14, 21},
	Secondary: []int{10, 13, 19, 20, 22},
}

// Windows returns the default prime and secondary hours for w.
func Windows(w time.Weekday) HourWindows {
	if w == time.Saturday || w == time.Sunday {
		return weekendWindows
	}
	return weekdayWindows
}
