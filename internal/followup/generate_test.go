package followup

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedforge/internal/catalog"
	"schedforge/internal/types"
)

// scripted replays fixed normal draws.
type scripted struct {
	norms []float64
	i     int
}

func (s *scripted) Intn(int) int { return 0 }

func (s *scripted) NormFloat64() float64 {
	v := s.norms[s.i%len(s.norms)]
	s.i++
	return v
}

func parent(key, date, clock string) types.ScheduleItem {
	return types.ScheduleItem{SendTypeKey: key, ContentType: "lingerie", ScheduledDate: date, ScheduledTime: clock}
}

func TestSampleDelayStaysInBounds(t *testing.T) {
	cfg := DefaultConfig()
	rng := types.NewRandom(3)
	var sum float64
	const n = 10000
	for i := 0; i < n; i++ {
		d := SampleDelay(cfg, rng)
		require.GreaterOrEqual(t, d, 15)
		require.LessOrEqual(t, d, 45)
		sum += float64(d)
	}
	assert.InDelta(t, 28.0, sum/n, 1.0)
}

func TestSampleDelayRejectsOutOfBounds(t *testing.T) {
	rng := &scripted{norms: []float64{3.0, -2.0, 0.25}}
	assert.Equal(t, 30, SampleDelay(DefaultConfig(), rng))
	assert.Equal(t, 3, rng.i)
}

func TestGenerateAttachesToParents(t *testing.T) {
	items := []types.ScheduleItem{
		parent(catalog.PPVUnlock, "2026-10-20", "12:04"),
		parent(catalog.Bundle, "2026-10-20", "16:08"),
		parent(catalog.TipGoal, "2026-10-20", "20:11"),
		parent(catalog.BumpNormal, "2026-10-20", "21:13"),
	}
	res, err := Generate(items, DefaultConfig(), &scripted{norms: []float64{0}})
	require.NoError(t, err)
	require.Len(t, res.Followups, 2)

	f := res.Followups[0]
	assert.Equal(t, 0, f.ParentIndex)
	assert.Equal(t, catalog.PPVFollowup, f.SendTypeKey)
	assert.Equal(t, "lingerie", f.ContentType)
	assert.Equal(t, "2026-10-20", f.ScheduledDate)
	assert.Equal(t, "12:32", f.ScheduledTime)
	assert.Equal(t, 28, f.DelayMinutes)

	assert.Equal(t, 2, res.Followups[1].ParentIndex)
	assert.Equal(t, "20:39", res.Followups[1].ScheduledTime)
	assert.Empty(t, res.Dropped)
}

func TestGenerateDropsAfterCutoff(t *testing.T) {
	items := []types.ScheduleItem{
		parent(catalog.PPVUnlock, "2026-10-20", "23:02"),
		parent(catalog.PPVWall, "2026-10-21", "23:10"),
	}
	res, err := Generate(items, DefaultConfig(), &scripted{norms: []float64{0}})
	require.NoError(t, err)

	require.Len(t, res.Followups, 1)
	assert.Equal(t, "23:30", res.Followups[0].ScheduledTime)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, Dropped{ParentIndex: 1, SendTypeKey: catalog.PPVWall, Date: "2026-10-21", Reason: ReasonAfterCutoff}, res.Dropped[0])
}

func TestGenerateDailyCap(t *testing.T) {
	var items []types.ScheduleItem
	for i := 0; i < 7; i++ {
		items = append(items, parent(catalog.PPVUnlock, "2026-10-20", fmt.Sprintf("%02d:04", 8+2*i)))
	}
	items = append(items, parent(catalog.PPVUnlock, "2026-10-21", "09:04"))

	res, err := Generate(items, DefaultConfig(), types.NewRandom(1))
	require.NoError(t, err)
	require.Len(t, res.Followups, 6)
	for i := 0; i < 5; i++ {
		assert.Equal(t, i, res.Followups[i].ParentIndex)
	}
	assert.Equal(t, 7, res.Followups[5].ParentIndex)

	require.Len(t, res.Dropped, 2)
	for i, d := range res.Dropped {
		assert.Equal(t, 5+i, d.ParentIndex)
		assert.Equal(t, ReasonDailyCap, d.Reason)
	}
}

func TestGenerateBadParentTime(t *testing.T) {
	_, err := Generate([]types.ScheduleItem{parent(catalog.PPVUnlock, "2026-10-20", "noon")}, DefaultConfig(), types.NewRandom(1))
	require.Error(t, err)
	assert.Equal(t, types.CodeInvalidInput, types.CodeOf(err))
}
