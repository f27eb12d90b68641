package allocator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedforge/internal/catalog"
	"schedforge/internal/triggers"
	"schedforge/internal/types"
)

var monday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func paidContext(allowed ...string) types.CreatorContext {
	return types.CreatorContext{
		CreatorID:           "creator-1",
		PageType:            catalog.PagePaid,
		AllowedContentTypes: allowed,
		VolumeTier:          catalog.TierStandard,
	}
}

func allocate(t *testing.T, cc types.CreatorContext, set triggers.Set) *Plan {
	t.Helper()
	p, err := New(catalog.Default(), DefaultConfig()).Allocate(cc, monday, set)
	require.NoError(t, err)
	return p
}

func TestAllocateStandardPaidMeetsDiversity(t *testing.T) {
	p := allocate(t, paidContext("lingerie", "feet"), nil)

	assert.GreaterOrEqual(t, len(p.UniqueKeys()), 10)
	unique := p.UniqueByCategory()
	assert.GreaterOrEqual(t, len(unique[catalog.CategoryRevenue]), 4)
	assert.GreaterOrEqual(t, len(unique[catalog.CategoryEngagement]), 4)
	assert.GreaterOrEqual(t, len(unique[catalog.CategoryRetention]), 2)

	tier, _ := catalog.Tier(catalog.TierStandard)
	for d := 0; d < DaysPerWeek; d++ {
		for _, cat := range catalog.Categories {
			n := len(filter(p.SlotsForDay(d), cat))
			r := tier.Ranges[cat]
			assert.True(t, n >= r.Min && n <= r.Max, "day %d %s count %d outside [%d,%d]", d, cat, n, r.Min, r.Max)
			assert.Equal(t, p.DailyCounts[d][cat], n)
		}
	}
	for _, s := range p.Slots {
		assert.Contains(t, []string{"lingerie", "feet"}, s.ContentType)
		assert.False(t, s.SendType.Derived)
	}
}

func TestAllocateNeverProposesAvoided(t *testing.T) {
	cc := paidContext("lingerie", "feet")
	cc.AvoidContentTypes = []string{"feet"}
	p := allocate(t, cc, nil)
	for _, s := range p.Slots {
		require.Equal(t, "lingerie", s.ContentType)
	}
}

func TestAllocateRespectsCaps(t *testing.T) {
	for _, tier := range catalog.TierNames() {
		t.Run(tier, func(t *testing.T) {
			cc := paidContext("a", "b", "c")
			cc.VolumeTier = tier
			p := allocate(t, cc, nil)

			week := make(map[string]int)
			for d := 0; d < DaysPerWeek; d++ {
				day := make(map[string]int)
				for _, s := range p.SlotsForDay(d) {
					day[s.SendType.Key]++
					week[s.SendType.Key]++
					assert.LessOrEqual(t, day[s.SendType.Key], s.SendType.DailyMax, "%s on day %d", s.SendType.Key, d)
				}
			}
			for key, n := range week {
				st, _ := catalog.Default().Lookup(key)
				if st.WeeklyMax > 0 {
					assert.LessOrEqual(t, n, st.WeeklyMax, key)
				}
			}
		})
	}
}

func TestAllocateFreePage(t *testing.T) {
	cc := paidContext("lingerie")
	cc.PageType = catalog.PageFree
	p := allocate(t, cc, nil)

	for _, s := range p.Slots {
		assert.True(t, s.SendType.AllowedOn(catalog.PageFree), s.SendType.Key)
		assert.NotEqual(t, catalog.CategoryRetention, s.SendType.Category)
	}
	assert.Contains(t, p.UniqueKeys(), catalog.PPVWall)
	assert.NotContains(t, p.UniqueKeys(), catalog.TipGoal)
}

func TestAllocateInfeasibleWhenTooFewTypes(t *testing.T) {
	var defs []catalog.SendType
	revenue := 0
	for _, st := range catalog.Default().All() {
		if st.Category == catalog.CategoryRevenue {
			revenue++
			if revenue > 3 {
				continue
			}
		}
		defs = append(defs, st)
	}
	cat, err := catalog.New(defs)
	require.NoError(t, err)

	_, err = New(cat, DefaultConfig()).Allocate(paidContext("lingerie"), monday, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrAllocationInfeasible))
	assert.Equal(t, types.CodeAllocationInfeasible, types.CodeOf(err))
}

func TestAllocateInfeasibleWhenCapsRunOut(t *testing.T) {
	var defs []catalog.SendType
	for _, st := range catalog.Default().All() {
		if st.Category == catalog.CategoryRevenue {
			st.WeeklyMax = 1
		}
		defs = append(defs, st)
	}
	cat, err := catalog.New(defs)
	require.NoError(t, err)

	_, err = New(cat, DefaultConfig()).Allocate(paidContext("lingerie"), monday, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrAllocationInfeasible)
	assert.Contains(t, err.Error(), "caps exhausted")
}

func TestContentTierPreference(t *testing.T) {
	cc := paidContext("lingerie", "feet")
	cc.ContentTiers = [][]string{{"feet"}, {"lingerie"}}
	p := allocate(t, cc, nil)

	day := p.SlotsForDay(0)
	require.Greater(t, len(day), 3)
	for _, s := range day[:3] {
		assert.Equal(t, "feet", s.ContentType)
	}
	assert.Equal(t, "lingerie", day[3].ContentType)
}

func TestContentRotatesLeastRecentlyUsed(t *testing.T) {
	p := allocate(t, paidContext("c", "a", "b"), nil)
	var got []string
	for _, s := range p.Slots[:6] {
		got = append(got, s.ContentType)
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, got)
}

func TestAvoidedTiersAreSkipped(t *testing.T) {
	cc := paidContext("lingerie", "feet")
	cc.AvoidContentTypes = []string{"feet"}
	cc.ContentTiers = [][]string{{"feet"}, {"lingerie"}}
	p := allocate(t, cc, nil)
	assert.Equal(t, "lingerie", p.Slots[0].ContentType)
}

func TestTriggerMultiplierMovesVolume(t *testing.T) {
	boosted := allocate(t, paidContext("lingerie"), triggers.CompoundAll([]types.Trigger{
		{ContentType: "lingerie", Type: types.TriggerHighPerformer, Multiplier: 2.0},
	}))
	dampened := allocate(t, paidContext("lingerie"), triggers.CompoundAll([]types.Trigger{
		{ContentType: "lingerie", Type: types.TriggerSaturating, Multiplier: 0.5},
	}))

	tier, _ := catalog.Tier(catalog.TierStandard)
	assert.Equal(t, 2.0, boosted.VolumeMultiplier)
	assert.Equal(t, tier.Ranges[catalog.CategoryEngagement].Max, boosted.DailyCounts[0][catalog.CategoryEngagement])
	assert.Equal(t, tier.Ranges[catalog.CategoryEngagement].Min, dampened.DailyCounts[0][catalog.CategoryEngagement])
}

func TestCalendarBoost(t *testing.T) {
	tier, _ := catalog.Tier(catalog.TierStandard)
	tier.CalendarBoosts = map[string]float64{"2026-10-19": 2.0}
	cc := paidContext("lingerie")
	cc.Volume = &tier

	p := allocate(t, cc, nil)
	assert.Equal(t, tier.Ranges[catalog.CategoryRevenue].Max, p.DailyCounts[0][catalog.CategoryRevenue])
	assert.Equal(t, tier.Ranges[catalog.CategoryRevenue].Min, p.DailyCounts[1][catalog.CategoryRevenue])
}

func TestTargetCount(t *testing.T) {
	r := catalog.Range{Min: 3, Max: 5}
	tests := []struct {
		name                string
		weight, boost, mult float64
		want                int
	}{
		{"bottom", 0, 1, 1, 3},
		{"top", 1, 1, 1, 5},
		{"middle rounds", 0.5, 1, 1, 4},
		{"boost clamps", 1, 1.5, 1, 5},
		{"dampen clamps", 0, 1, 0.5, 3},
		{"mult inside range", 0, 1, 1.4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, targetCount(r, tt.weight, tt.boost, tt.mult))
		})
	}
}

func filter(slots []Slot, cat catalog.Category) []Slot {
	var out []Slot
	for _, s := range slots {
		if s.SendType.Category == cat {
			out = append(out, s)
		}
	}
	return out
}
