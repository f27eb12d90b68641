// Package preflight loads creator context snapshots from disk and prepares
// them for a generation run.
package preflight

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"schedforge/internal/logging"
	"schedforge/internal/triggers"
	"schedforge/internal/types"
)

// Snapshot is a loaded creator context and what preparing it removed.
type Snapshot struct {
	Path    string
	Context types.CreatorContext
	// Expired holds the triggers dropped because they had expired at load time.
	Expired []types.Trigger
}

// Load reads a creator context from a .yaml, .yml or .json file and drops
// triggers that have expired at now. The result is not validated; the
// pipeline does that at entry.
func Load(path string, now time.Time) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read context: %w", err)
	}

	var cc types.CreatorContext
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &cc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cc)
	default:
		return nil, fmt.Errorf("unsupported context file %s (want .yaml, .yml or .json)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse context %s: %w", path, err)
	}

	snap := &Snapshot{Path: path, Context: Prepare(cc, now)}
	for _, t := range cc.Triggers {
		if t.Expired(now) {
			snap.Expired = append(snap.Expired, t)
		}
	}
	if len(snap.Expired) > 0 {
		logging.Get(logging.CategoryTriggers).Info("%s: dropped %d expired triggers", cc.CreatorID, len(snap.Expired))
	}
	return snap, nil
}

// Prepare returns a copy of cc with content lists trimmed and de-duplicated
// and expired triggers removed.
func Prepare(cc types.CreatorContext, now time.Time) types.CreatorContext {
	out := cc
	out.AllowedContentTypes = clean(cc.AllowedContentTypes)
	out.AvoidContentTypes = clean(cc.AvoidContentTypes)
	if len(cc.ContentTiers) > 0 {
		out.ContentTiers = make([][]string, 0, len(cc.ContentTiers))
		for _, tier := range cc.ContentTiers {
			out.ContentTiers = append(out.ContentTiers, clean(tier))
		}
	}
	out.Triggers = triggers.Active(cc.Triggers, now)
	return out
}

// clean trims entries and drops repeats, keeping first-seen order. Empty
// entries are kept so the input contract can report them.
func clean(list []string) []string {
	if list == nil {
		return nil
	}
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s != "" && seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// LoadDir loads every context file in dir, sorted by file name. Files with
// other extensions are skipped.
func LoadDir(dir string, now time.Time) ([]*Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read context dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	snaps := make([]*Snapshot, 0, len(names))
	for _, name := range names {
		snap, err := Load(filepath.Join(dir, name), now)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// LoadSchedule reads a schedule previously written by the generate command,
// either bare or wrapped in a run result under "schedule".
func LoadSchedule(path string) (*types.ScheduleOutput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule: %w", err)
	}
	var wrapped struct {
		Schedule *types.ScheduleOutput `json:"schedule"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Schedule != nil {
		return wrapped.Schedule, nil
	}
	var out types.ScheduleOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse schedule %s: %w", path, err)
	}
	return &out, nil
}
