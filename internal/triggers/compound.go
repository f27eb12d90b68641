// Package triggers combines performance signals into one clamped multiplier
// per content type.
package triggers

import (
	"math"
	"sort"
	"time"

	"schedforge/internal/logging"
	"schedforge/internal/types"
)

// Compound bounds.
const (
	MinMultiplier = 0.50
	MaxMultiplier = 2.00
)

// Compound is the combined signal for one content type.
type Compound struct {
	ContentType string `json:"content_type"`
	// Multiplier is the clamped product.
	Multiplier float64 `json:"multiplier"`
	// Raw is the unclamped product.
	Raw      float64         `json:"raw"`
	Triggers []types.Trigger `json:"triggers"`
	// HasConflictingSignals is set when boosting and dampening triggers both
	// apply. The clamped compound is still used.
	HasConflictingSignals bool `json:"has_conflicting_signals"`
}

// Set maps content type to its compound.
type Set map[string]Compound

// For returns the multiplier for contentType, 1.0 when no trigger applies.
func (s Set) For(contentType string) float64 {
	if c, ok := s[contentType]; ok {
		return c.Multiplier
	}
	return 1.0
}

// Conflicts returns the content types with conflicting signals, sorted.
func (s Set) Conflicts() []string {
	var out []string
	for ct, c := range s {
		if c.HasConflictingSignals {
			out = append(out, ct)
		}
	}
	sort.Strings(out)
	return out
}

// Mean returns the average multiplier over contentTypes, counting types
// without triggers as 1.0. Empty input yields 1.0.
func (s Set) Mean(contentTypes []string) float64 {
	if len(contentTypes) == 0 {
		return 1.0
	}
	var sum float64
	for _, ct := range contentTypes {
		sum += s.For(ct)
	}
	return sum / float64(len(contentTypes))
}

// Active drops triggers that have expired at now.
func Active(list []types.Trigger, now time.Time) []types.Trigger {
	out := make([]types.Trigger, 0, len(list))
	for _, t := range list {
		if !t.Expired(now) {
			out = append(out, t)
		}
	}
	return out
}

// CompoundAll groups triggers by content type and compounds each group. The
// result does not depend on input order.
func CompoundAll(list []types.Trigger) Set {
	groups := make(map[string][]types.Trigger)
	for _, t := range list {
		groups[t.ContentType] = append(groups[t.ContentType], t)
	}

	out := make(Set, len(groups))
	for ct, group := range groups {
		c := compound(ct, group)
		out[ct] = c
		if c.HasConflictingSignals {
			logging.Get(logging.CategoryTriggers).Warn("conflicting signals for %s: raw=%.4f applied=%.4f", ct, c.Raw, c.Multiplier)
		}
	}
	return out
}

func compound(contentType string, group []types.Trigger) Compound {
	sorted := make([]types.Trigger, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Type != sorted[j].Type {
			return sorted[i].Type < sorted[j].Type
		}
		if sorted[i].Multiplier != sorted[j].Multiplier {
			return sorted[i].Multiplier < sorted[j].Multiplier
		}
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence < sorted[j].Confidence
		}
		return sorted[i].ExpiresAt.Before(sorted[j].ExpiresAt)
	})

	raw := 1.0
	var boost, dampen bool
	for _, t := range sorted {
		raw *= t.Multiplier
		switch {
		case t.Multiplier > 1.0:
			boost = true
		case t.Multiplier < 1.0:
			dampen = true
		}
	}

	raw = round4(raw)
	return Compound{
		ContentType:           contentType,
		Multiplier:            clamp(raw),
		Raw:                   raw,
		Triggers:              sorted,
		HasConflictingSignals: boost && dampen,
	}
}

func clamp(v float64) float64 {
	return math.Max(MinMultiplier, math.Min(MaxMultiplier, v))
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
