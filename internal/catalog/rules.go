package catalog

import "time"

// GlobalMinGap is the floor between any two scheduled items.
const GlobalMinGap = 45 * time.Minute

// cooldowns is the category-to-category cooldown matrix. Pairs that are not
// listed fall back to GlobalMinGap.
var cooldowns = map[Category]map[Category]time.Duration{
	CategoryRevenue: {
		CategoryRevenue:    4 * time.Hour,
		CategoryEngagement: 1 * time.Hour,
	},
	CategoryEngagement: {
		CategoryRevenue:    4 * time.Hour,
		CategoryEngagement: 1 * time.Hour,
		CategoryRetention:  1 * time.Hour,
	},
	CategoryRetention: {
		CategoryRevenue:    2 * time.Hour,
		CategoryEngagement: 1 * time.Hour,
		CategoryRetention:  4 * time.Hour,
	},
}

// Cooldown returns the wait required after an item of category from before an
// item of category to.
func Cooldown(from, to Category) time.Duration {
	if d, ok := cooldowns[from][to]; ok && d > GlobalMinGap {
		return d
	}
	return GlobalMinGap
}

// RequiredGap is the minimum spacing between earlier and later: the larger of
// the global gap, the category cooldown, and the per-type gap when both items
// share a send type.
func RequiredGap(earlier, later SendType) time.Duration {
	gap := Cooldown(earlier.Category, later.Category)
	if earlier.Key == later.Key {
		if earlier.MinGap > gap {
			gap = earlier.MinGap
		}
	}
	return gap
}

// MaxRequiredGap is the largest value RequiredGap can return for c.
func (c *Catalog) MaxRequiredGap() time.Duration {
	max := GlobalMinGap
	for _, row := range cooldowns {
		for _, d := range row {
			if d > max {
				max = d
			}
		}
	}
	for _, t := range c.types {
		if t.MinGap > max {
			max = t.MinGap
		}
	}
	return max
}

// DiversityRule holds the minimum distinct send-type counts for a week.
type DiversityRule struct {
	MinTotal      int `json:"min_total"`
	MinRevenue    int `json:"min_revenue"`
	MinEngagement int `json:"min_engagement"`
	MinRetention  int `json:"min_retention"`
}

// MinFor returns the per-category minimum.
func (r DiversityRule) MinFor(c Category) int {
	switch c {
	case CategoryRevenue:
		return r.MinRevenue
	case CategoryEngagement:
		return r.MinEngagement
	case CategoryRetention:
		return r.MinRetention
	}
	return 0
}

var diversity = map[PageType]DiversityRule{
	PagePaid: {MinTotal: 10, MinRevenue: 4, MinEngagement: 4, MinRetention: 2},
	PageFree: {MinTotal: 10, MinRevenue: 4, MinEngagement: 4},
}

// DiversityFor returns the diversity thresholds for a page type.
func DiversityFor(page PageType) DiversityRule {
	return diversity[page]
}

// Collision priorities, higher wins.
const (
	PriorityRetention  = 1
	PriorityEngagement = 2
	PriorityRevenue    = 3
	PriorityUnlock     = 4
)

// Followups are placed after collision resolution, so ppv_followup needs no
// tier of its own.
var keyPriority = map[string]int{
	PPVUnlock: PriorityUnlock,
}

var categoryPriority = map[Category]int{
	CategoryRevenue:    PriorityRevenue,
	CategoryEngagement: PriorityEngagement,
	CategoryRetention:  PriorityRetention,
}

// Priority returns the collision priority of a send type.
func Priority(t SendType) int {
	if p, ok := keyPriority[t.Key]; ok {
		return p
	}
	return categoryPriority[t.Category]
}

// FollowupParents are the send types that spawn a ppv_followup.
var FollowupParents = map[string]bool{
	PPVUnlock: true,
	PPVWall:   true,
	TipGoal:   true,
}

// FlyerRequired reports whether key must carry flyer_required = 1.
func (c *Catalog) FlyerRequired(key string) bool {
	t, ok := c.Lookup(key)
	return ok && t.RequiresFlyer
}

// FlyerRequiredKeys returns the flyer-required set in catalog order.
func (c *Catalog) FlyerRequiredKeys() []string {
	var keys []string
	for _, t := range c.types {
		if t.RequiresFlyer {
			keys = append(keys, t.Key)
		}
	}
	return keys
}
