// Package catalog holds the immutable reference tables the schedule pipeline
// reads: the 22 send-type definitions, the category cooldown matrix, diversity
// thresholds, collision priorities, and the volume tier presets.
//
// Nothing in this package is mutated after init. Callers receive copies.
package catalog

import (
	"fmt"
	"sort"
	"time"
)

// Category groups send types by business purpose.
type Category string

const (
	CategoryRevenue    Category = "revenue"
	CategoryEngagement Category = "engagement"
	CategoryRetention  Category = "retention"
)

// Categories lists every category in canonical order.
var Categories = []Category{CategoryRevenue, CategoryEngagement, CategoryRetention}

// PageType is either a creator's page kind ("paid"/"free") or, on a send type,
// the page kinds it may be used on ("both" included).
type PageType string

const (
	PageBoth PageType = "both"
	PagePaid PageType = "paid"
	PageFree PageType = "free"
)

// Send type keys.
const (
	PPVUnlock      = "ppv_unlock"
	PPVWall        = "ppv_wall"
	TipGoal        = "tip_goal"
	Bundle         = "bundle"
	FlashBundle    = "flash_bundle"
	GamePost       = "game_post"
	FirstToTip     = "first_to_tip"
	VIPProgram     = "vip_program"
	SnapchatBundle = "snapchat_bundle"

	LinkDrop        = "link_drop"
	WallLinkDrop    = "wall_link_drop"
	BumpNormal      = "bump_normal"
	BumpDescriptive = "bump_descriptive"
	BumpTextOnly    = "bump_text_only"
	BumpFlyer       = "bump_flyer"
	DMFarm          = "dm_farm"
	LikeFarm        = "like_farm"
	LivePromo       = "live_promo"

	RenewOnPost    = "renew_on_post"
	RenewOnMessage = "renew_on_message"
	PPVFollowup    = "ppv_followup"
	ExpiredWinback = "expired_winback"
)

// Channel keys.
const (
	ChannelMassMessage     = "mass_message"
	ChannelWallPost        = "wall_post"
	ChannelTargetedMessage = "targeted_message"
)

// SendType is one immutable catalog entry.
type SendType struct {
	Key      string   `json:"key" yaml:"key"`
	Category Category `json:"category" yaml:"category"`
	PageType PageType `json:"page_type" yaml:"page_type"`
	DailyMax int      `json:"daily_max" yaml:"daily_max"`
	// WeeklyMax of 0 means no weekly cap.
	WeeklyMax     int           `json:"weekly_max,omitempty" yaml:"weekly_max,omitempty"`
	MinGap        time.Duration `json:"min_gap" yaml:"min_gap"`
	RequiresMedia bool          `json:"requires_media" yaml:"requires_media"`
	RequiresPrice bool          `json:"requires_price" yaml:"requires_price"`
	RequiresFlyer bool          `json:"requires_flyer" yaml:"requires_flyer"`
	Channel       string        `json:"channel" yaml:"channel"`
	// Derived types are produced from other items (followups) and are never
	// allocated directly.
	Derived bool `json:"derived,omitempty" yaml:"derived,omitempty"`
}

// AllowedOn reports whether the send type may be used on the given page type.
func (s SendType) AllowedOn(page PageType) bool {
	return s.PageType == PageBoth || s.PageType == page
}

// Catalog is a read-only, ordered set of send types.
type Catalog struct {
	types []SendType
	byKey map[string]int
}

// New builds a catalog from definitions, rejecting duplicates and blanks.
func New(defs []SendType) (*Catalog, error) {
	c := &Catalog{
		types: make([]SendType, 0, len(defs)),
		byKey: make(map[string]int, len(defs)),
	}
	for _, d := range defs {
		if d.Key == "" {
			return nil, fmt.Errorf("catalog: send type with empty key")
		}
		if _, dup := c.byKey[d.Key]; dup {
			return nil, fmt.Errorf("catalog: duplicate send type %q", d.Key)
		}
		switch d.Category {
		case CategoryRevenue, CategoryEngagement, CategoryRetention:
		default:
			return nil, fmt.Errorf("catalog: send type %q has unknown category %q", d.Key, d.Category)
		}
		c.byKey[d.Key] = len(c.types)
		c.types = append(c.types, d)
	}
	return c, nil
}

var defaultCatalog = mustDefault()

func mustDefault() *Catalog {
	c, err := New(definitions)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the standard 22-type catalog.
func Default() *Catalog {
	return defaultCatalog
}

// Len returns the number of send types.
func (c *Catalog) Len() int { return len(c.types) }

// Lookup returns the definition for key.
func (c *Catalog) Lookup(key string) (SendType, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return SendType{}, false
	}
	return c.types[i], true
}

// Order returns the catalog position of key, or -1.
func (c *Catalog) Order(key string) int {
	if i, ok := c.byKey[key]; ok {
		return i
	}
	return -1
}

// All returns a copy of every definition in catalog order.
func (c *Catalog) All() []SendType {
	out := make([]SendType, len(c.types))
	copy(out, c.types)
	return out
}

// Allocatable returns the non-derived types usable on page, in catalog order.
func (c *Catalog) Allocatable(page PageType) []SendType {
	var out []SendType
	for _, t := range c.types {
		if t.Derived || !t.AllowedOn(page) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Keys returns the sorted key set.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.types))
	for _, t := range c.types {
		keys = append(keys, t.Key)
	}
	sort.Strings(keys)
	return keys
}

var definitions = []SendType{
	// Revenue
	{Key: PPVUnlock, Category: CategoryRevenue, PageType: PageBoth, DailyMax: 2, MinGap: 4 * time.Hour, RequiresMedia: true, RequiresPrice: true, RequiresFlyer: true, Channel: ChannelMassMessage},
	{Key: PPVWall, Category: CategoryRevenue, PageType: PageFree, DailyMax: 1, WeeklyMax: 5, MinGap: 4 * time.Hour, RequiresMedia: true, RequiresPrice: true, RequiresFlyer: true, Channel: ChannelWallPost},
	{Key: TipGoal, Category: CategoryRevenue, PageType: PagePaid, DailyMax: 1, WeeklyMax: 3, MinGap: 4 * time.Hour, RequiresMedia: true, Channel: ChannelWallPost},
	{Key: Bundle, Category: CategoryRevenue, PageType: PageBoth, DailyMax: 1, WeeklyMax: 4, MinGap: 4 * time.Hour, RequiresMedia: true, RequiresPrice: true, RequiresFlyer: true, Channel: ChannelMassMessage},
	{Key: FlashBundle, Category: CategoryRevenue, PageType: PageBoth, DailyMax: 1, WeeklyMax: 2, MinGap: 4 * time.Hour, RequiresMedia: true, RequiresPrice: true, RequiresFlyer: true, Channel: ChannelMassMessage},
	{Key: GamePost, Category: CategoryRevenue, PageType: PageBoth, DailyMax: 1, WeeklyMax: 3, MinGap: 4 * time.Hour, RequiresMedia: true, RequiresFlyer: true, Channel: ChannelWallPost},
	{Key: FirstToTip, Category: CategoryRevenue, PageType: PageBoth, DailyMax: 1, WeeklyMax: 3, MinGap: 4 * time.Hour, RequiresMedia: true, RequiresFlyer: true, Channel: ChannelWallPost},
	{Key: VIPProgram, Category: CategoryRevenue, PageType: PageBoth, DailyMax: 1, WeeklyMax: 1, MinGap: 4 * time.Hour, RequiresMedia: true, RequiresPrice: true, RequiresFlyer: true, Channel: ChannelWallPost},
	{Key: SnapchatBundle, Category: CategoryRevenue, PageType: PageBoth, DailyMax: 1, WeeklyMax: 1, MinGap: 4 * time.Hour, RequiresMedia: true, RequiresPrice: true, RequiresFlyer: true, Channel: ChannelMassMessage},

	// Engagement
	{Key: LinkDrop, Category: CategoryEngagement, PageType: PageBoth, DailyMax: 2, MinGap: 2 * time.Hour, Channel: ChannelMassMessage},
	{Key: WallLinkDrop, Category: CategoryEngagement, PageType: PageBoth, DailyMax: 2, MinGap: 2 * time.Hour, RequiresMedia: true, Channel: ChannelWallPost},
	{Key: BumpNormal, Category: CategoryEngagement, PageType: PageBoth, DailyMax: 2, MinGap: time.Hour, RequiresMedia: true, Channel: ChannelMassMessage},
	{Key: BumpDescriptive, Category: CategoryEngagement, PageType: PageBoth, DailyMax: 2, MinGap: time.Hour, RequiresMedia: true, Channel: ChannelMassMessage},
	{Key: BumpTextOnly, Category: CategoryEngagement, PageType: PageBoth, DailyMax: 2, MinGap: time.Hour, Channel: ChannelMassMessage},
	{Key: BumpFlyer, Category: CategoryEngagement, PageType: PageBoth, DailyMax: 2, MinGap: time.Hour, RequiresMedia: true, Channel: ChannelMassMessage},
	{Key: DMFarm, Category: CategoryEngagement, PageType: PageBoth, DailyMax: 1, WeeklyMax: 4, MinGap: 2 * time.Hour, Channel: ChannelMassMessage},
	{Key: LikeFarm, Category: CategoryEngagement, PageType: PageBoth, DailyMax: 1, WeeklyMax: 4, MinGap: 2 * time.Hour, RequiresMedia: true, Channel: ChannelWallPost},
	{Key: LivePromo, Category: CategoryEngagement, PageType: PageBoth, DailyMax: 1, WeeklyMax: 2, MinGap: 2 * time.Hour, RequiresMedia: true, Channel: ChannelWallPost},

	// Retention
	{Key: RenewOnPost, Category: CategoryRetention, PageType: PagePaid, DailyMax: 1, MinGap: 4 * time.Hour, RequiresMedia: true, Channel: ChannelWallPost},
	{Key: RenewOnMessage, Category: CategoryRetention, PageType: PagePaid, DailyMax: 1, MinGap: 4 * time.Hour, Channel: ChannelMassMessage},
	{Key: PPVFollowup, Category: CategoryRetention, PageType: PageBoth, DailyMax: 5, MinGap: 15 * time.Minute, Channel: ChannelMassMessage, Derived: true},
	{Key: ExpiredWinback, Category: CategoryRetention, PageType: PagePaid, DailyMax: 1, WeeklyMax: 4, MinGap: 4 * time.Hour, Channel: ChannelTargetedMessage},
}
