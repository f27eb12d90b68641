package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogShape(t *testing.T) {
	c := Default()
	require.Equal(t, 22, c.Len())

	counts := map[Category]int{}
	for _, st := range c.All() {
		counts[st.Category]++
	}
	assert.Equal(t, 9, counts[CategoryRevenue])
	assert.Equal(t, 9, counts[CategoryEngagement])
	assert.Equal(t, 4, counts[CategoryRetention])
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New([]SendType{
		{Key: "a", Category: CategoryRevenue},
		{Key: "a", Category: CategoryRevenue},
	})
	require.Error(t, err)

	_, err = New([]SendType{{Key: "b", Category: "nonsense"}})
	require.Error(t, err)
}

func TestPageRestrictions(t *testing.T) {
	c := Default()
	for _, key := range []string{TipGoal, RenewOnPost, RenewOnMessage, ExpiredWinback} {
		st, ok := c.Lookup(key)
		require.True(t, ok, key)
		assert.False(t, st.AllowedOn(PageFree), "%s must not be allowed on free pages", key)
		assert.True(t, st.AllowedOn(PagePaid), key)
	}
	wall, _ := c.Lookup(PPVWall)
	assert.False(t, wall.AllowedOn(PagePaid))
	assert.True(t, wall.AllowedOn(PageFree))
}

func TestAllocatableExcludesDerived(t *testing.T) {
	for _, page := range []PageType{PagePaid, PageFree} {
		for _, st := range Default().Allocatable(page) {
			if st.Key == PPVFollowup {
				t.Fatalf("ppv_followup must never be allocatable (%s)", page)
			}
			if !st.AllowedOn(page) {
				t.Errorf("%s returned for %s page", st.Key, page)
			}
		}
	}
}

func TestCooldownMatrix(t *testing.T) {
	tests := []struct {
		from, to Category
		want     time.Duration
	}{
		{CategoryRevenue, CategoryRevenue, 4 * time.Hour},
		{CategoryRevenue, CategoryEngagement, time.Hour},
		{CategoryRevenue, CategoryRetention, GlobalMinGap},
		{CategoryEngagement, CategoryRevenue, 4 * time.Hour},
		{CategoryEngagement, CategoryEngagement, time.Hour},
		{CategoryEngagement, CategoryRetention, time.Hour},
		{CategoryRetention, CategoryRevenue, 2 * time.Hour},
		{CategoryRetention, CategoryEngagement, time.Hour},
		{CategoryRetention, CategoryRetention, 4 * time.Hour},
	}
	for _, tt := range tests {
		if got := Cooldown(tt.from, tt.to); got != tt.want {
			t.Errorf("Cooldown(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestRequiredGapUsesPerTypeGap(t *testing.T) {
	c := Default()
	dm, _ := c.Lookup(DMFarm)
	bump, _ := c.Lookup(BumpNormal)
	assert.Equal(t, 2*time.Hour, RequiredGap(dm, dm))
	assert.Equal(t, time.Hour, RequiredGap(dm, bump))
	assert.Equal(t, 4*time.Hour, c.MaxRequiredGap())
}

func TestPriorityOrder(t *testing.T) {
	c := Default()
	get := func(k string) int {
		st, _ := c.Lookup(k)
		return Priority(st)
	}
	assert.Greater(t, get(PPVUnlock), get(Bundle))
	assert.Greater(t, get(Bundle), get(BumpNormal))
	assert.Greater(t, get(BumpNormal), get(RenewOnPost))
	assert.Equal(t, PriorityRetention, get(PPVFollowup))
}

func TestFlyerSetIsRevenueOnly(t *testing.T) {
	c := Default()
	keys := c.FlyerRequiredKeys()
	require.NotEmpty(t, keys)
	for _, k := range keys {
		st, _ := c.Lookup(k)
		assert.Equal(t, CategoryRevenue, st.Category, k)
	}
	assert.True(t, c.FlyerRequired(PPVUnlock))
	assert.False(t, c.FlyerRequired(TipGoal))
	assert.False(t, c.FlyerRequired("unknown"))
}

func TestTierPresets(t *testing.T) {
	for _, name := range TierNames() {
		v, ok := Tier(name)
		require.True(t, ok)
		require.NoError(t, v.Validate(), name)
		rev := v.Ranges[CategoryRevenue]
		eng := v.Ranges[CategoryEngagement]
		// The busiest day must fit between 07:00 and 23:00.
		span := eng.Max + 4*(rev.Max-1)
		assert.LessOrEqual(t, span, 16, "tier %s does not fit in a day", name)
	}

	v, ok := Tier("standard")
	require.True(t, ok)
	v.Ranges[CategoryRevenue] = Range{Min: 9, Max: 9}
	again, _ := Tier(TierStandard)
	assert.Equal(t, 2, again.Ranges[CategoryRevenue].Min, "presets must not be mutable through copies")

	_, ok = Tier("MEGA")
	assert.False(t, ok)
}

func TestVolumeBoost(t *testing.T) {
	v, _ := Tier(TierLow)
	v.CalendarBoosts = map[string]float64{"2026-12-25": 1.5}
	require.NoError(t, v.Validate())
	assert.Equal(t, 1.5, v.Boost(time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1.0, v.Boost(time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC)))

	v.CalendarBoosts = map[string]float64{"not-a-date": 1.2}
	assert.Error(t, v.Validate())
}

func TestRangeClamp(t *testing.T) {
	r := Range{Min: 2, Max: 4}
	assert.Equal(t, 2, r.Clamp(0))
	assert.Equal(t, 3, r.Clamp(3))
	assert.Equal(t, 4, r.Clamp(10))
}
