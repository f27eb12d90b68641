package preflight

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedforge/internal/catalog"
	"schedforge/internal/types"
)

var now = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

const yamlContext = `
creator_id: creator-1
page_type: paid
allowed_content_types: [lingerie, " feet", lingerie]
avoid_content_types: [shower]
content_tiers:
  - [lingerie]
  - [feet]
volume_tier: STANDARD
pricing:
  base_price: 18
triggers:
  - content_type: lingerie
    trigger_type: HIGH_PERFORMER
    multiplier: 1.2
    confidence: 0.9
    expires_at: 2026-10-22T00:00:00Z
  - content_type: feet
    trigger_type: SATURATING
    multiplier: 0.85
    confidence: 0.6
    expires_at: 2026-10-01T00:00:00Z
`

const jsonContext = `{
  "creator_id": "creator-2",
  "page_type": "free",
  "allowed_content_types": ["lingerie"],
  "volume_tier": "LOW",
  "triggers": [
    {"content_type": "lingerie", "trigger_type": "TRENDING_UP", "multiplier": 1.1, "confidence": 0.5}
  ]
}`

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := write(t, t.TempDir(), "creator-1.yaml", yamlContext)

	snap, err := Load(path, now)
	require.NoError(t, err)

	cc := snap.Context
	assert.Equal(t, "creator-1", cc.CreatorID)
	assert.Equal(t, catalog.PagePaid, cc.PageType)
	assert.Equal(t, []string{"lingerie", "feet"}, cc.AllowedContentTypes)
	assert.Equal(t, [][]string{{"lingerie"}, {"feet"}}, cc.ContentTiers)
	assert.Equal(t, 18.0, cc.Pricing.BasePrice)

	require.Len(t, cc.Triggers, 1)
	assert.Equal(t, types.TriggerHighPerformer, cc.Triggers[0].Type)
	require.Len(t, snap.Expired, 1)
	assert.Equal(t, "feet", snap.Expired[0].ContentType)

	assert.NoError(t, types.ValidateContext(cc, now))
}

func TestLoadJSON(t *testing.T) {
	path := write(t, t.TempDir(), "creator-2.json", jsonContext)

	snap, err := Load(path, now)
	require.NoError(t, err)
	assert.Equal(t, catalog.PageFree, snap.Context.PageType)
	require.Len(t, snap.Context.Triggers, 1)
	assert.True(t, snap.Context.Triggers[0].ExpiresAt.IsZero())
	assert.Empty(t, snap.Expired)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"), now)
	assert.Error(t, err)

	_, err = Load(write(t, dir, "notes.txt", "hello"), now)
	assert.ErrorContains(t, err, "unsupported")

	_, err = Load(write(t, dir, "bad.json", "{"), now)
	assert.ErrorContains(t, err, "failed to parse")
}

func TestPrepareKeepsEmptyEntriesForValidation(t *testing.T) {
	cc := Prepare(types.CreatorContext{AllowedContentTypes: []string{"a", " ", "a"}}, now)
	assert.Equal(t, []string{"a", ""}, cc.AllowedContentTypes)
	assert.Nil(t, cc.AvoidContentTypes)
}

func TestLoadDirSortsAndSkips(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "b.json", jsonContext)
	write(t, dir, "a.yaml", yamlContext)
	write(t, dir, "README.md", "# contexts")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0755))

	snaps, err := LoadDir(dir, now)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "creator-1", snaps[0].Context.CreatorID)
	assert.Equal(t, "creator-2", snaps[1].Context.CreatorID)
}

func TestLoadSchedule(t *testing.T) {
	dir := t.TempDir()
	bare := write(t, dir, "bare.json", `{"creator_id":"c","week_start":"2026-10-19","items":[],"followups":[]}`)
	wrapped := write(t, dir, "wrapped.json", `{"seed":1,"schedule":{"creator_id":"c","week_start":"2026-10-19","items":[],"followups":[]}}`)

	for _, path := range []string{bare, wrapped} {
		out, err := LoadSchedule(path)
		require.NoError(t, err, path)
		assert.Equal(t, "c", out.CreatorID)
		assert.Equal(t, "2026-10-19", out.WeekStart)
	}
}
