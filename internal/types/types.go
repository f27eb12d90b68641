// Package types provides the shared data model of the schedule pipeline.
// Stage packages depend on it; it depends only on the catalog.
package types

import (
	"fmt"
	"sort"
	"time"

	"schedforge/internal/catalog"
)

// =============================================================================
// CREATOR INPUT
// =============================================================================

// TriggerType names a performance signal.
type TriggerType string

const (
	TriggerHighPerformer   TriggerType = "HIGH_PERFORMER"
	TriggerTrendingUp      TriggerType = "TRENDING_UP"
	TriggerEmergingWinner  TriggerType = "EMERGING_WINNER"
	TriggerSaturating      TriggerType = "SATURATING"
	TriggerAudienceFatigue TriggerType = "AUDIENCE_FATIGUE"
)

// KnownTriggerTypes is the accepted trigger vocabulary.
var KnownTriggerTypes = map[TriggerType]bool{
	TriggerHighPerformer:   true,
	TriggerTrendingUp:      true,
	TriggerEmergingWinner:  true,
	TriggerSaturating:      true,
	TriggerAudienceFatigue: true,
}

// Trigger is a performance-derived multiplier for one content type.
type Trigger struct {
	ContentType string      `json:"content_type" yaml:"content_type"`
	Type        TriggerType `json:"trigger_type" yaml:"trigger_type"`
	Multiplier  float64     `json:"multiplier" yaml:"multiplier"`
	Confidence  float64     `json:"confidence" yaml:"confidence"`
	ExpiresAt   time.Time   `json:"expires_at" yaml:"expires_at"`
}

// Expired reports whether the trigger is no longer active at now.
// A zero ExpiresAt never expires.
func (t Trigger) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// PricingBounds are the creator's price limits. Zero values mean "use the
// engine default".
type PricingBounds struct {
	BasePrice float64 `json:"base_price,omitempty" yaml:"base_price,omitempty"`
	Floor     float64 `json:"floor,omitempty" yaml:"floor,omitempty"`
	Ceiling   float64 `json:"ceiling,omitempty" yaml:"ceiling,omitempty"`
}

// CreatorContext is the read-only snapshot a generation run works from.
type CreatorContext struct {
	CreatorID           string           `json:"creator_id" yaml:"creator_id"`
	PageType            catalog.PageType `json:"page_type" yaml:"page_type"`
	AllowedContentTypes []string         `json:"allowed_content_types" yaml:"allowed_content_types"`
	AvoidContentTypes   []string         `json:"avoid_content_types,omitempty" yaml:"avoid_content_types,omitempty"`
	// ContentTiers ranks content types, best first.
	ContentTiers [][]string `json:"content_tiers,omitempty" yaml:"content_tiers,omitempty"`
	VolumeTier   string     `json:"volume_tier" yaml:"volume_tier"`
	// Volume overrides the VolumeTier preset when set.
	Volume   *catalog.VolumeConfig `json:"volume,omitempty" yaml:"volume,omitempty"`
	Pricing  PricingBounds         `json:"pricing,omitempty" yaml:"pricing,omitempty"`
	Triggers []Trigger             `json:"triggers,omitempty" yaml:"triggers,omitempty"`
}

// AllowedSet returns the allowed content types as a set.
func (c CreatorContext) AllowedSet() map[string]bool {
	return toSet(c.AllowedContentTypes)
}

// AvoidSet returns the avoided content types as a set.
func (c CreatorContext) AvoidSet() map[string]bool {
	return toSet(c.AvoidContentTypes)
}

// Usable returns allowed minus avoid, sorted.
func (c CreatorContext) Usable() []string {
	avoid := c.AvoidSet()
	var out []string
	for ct := range c.AllowedSet() {
		if !avoid[ct] {
			out = append(out, ct)
		}
	}
	sort.Strings(out)
	return out
}

// ResolveVolume returns the explicit volume override or the tier preset.
func (c CreatorContext) ResolveVolume() (catalog.VolumeConfig, error) {
	if c.Volume != nil {
		v := *c.Volume
		if v.Tier == "" {
			v.Tier = c.VolumeTier
		}
		return v, v.Validate()
	}
	v, ok := catalog.Tier(c.VolumeTier)
	if !ok {
		return catalog.VolumeConfig{}, fmt.Errorf("unknown volume tier %q (known: %v)", c.VolumeTier, catalog.TierNames())
	}
	return v, nil
}

func toSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, s := range list {
		set[s] = true
	}
	return set
}

// =============================================================================
// SCHEDULE OUTPUT
// =============================================================================

// Date and clock layouts used on the wire.
const (
	DateLayout  = time.DateOnly
	ClockLayout = "15:04"
)

// ScheduleItem is one send in the week.
type ScheduleItem struct {
	SendTypeKey   string           `json:"send_type_key"`
	Category      catalog.Category `json:"category"`
	ContentType   string           `json:"content_type"`
	ScheduledDate string           `json:"scheduled_date"`
	ScheduledTime string           `json:"scheduled_time"`
	Price         *float64         `json:"price"`
	FlyerRequired int              `json:"flyer_required"`
	ChannelKey    string           `json:"channel_key"`
}

// At returns the item's wall-clock time.
func (i ScheduleItem) At() (time.Time, error) {
	return ParseSlot(i.ScheduledDate, i.ScheduledTime)
}

// Followup is a delayed retention send attached to a parent item.
type Followup struct {
	ParentIndex   int    `json:"parent_index"`
	SendTypeKey   string `json:"send_type_key"`
	ContentType   string `json:"content_type"`
	ScheduledDate string `json:"scheduled_date"`
	ScheduledTime string `json:"scheduled_time"`
	DelayMinutes  int    `json:"delay_minutes"`
}

// At returns the followup's wall-clock time.
func (f Followup) At() (time.Time, error) {
	return ParseSlot(f.ScheduledDate, f.ScheduledTime)
}

// ScheduleOutput is the complete week handed to the validator.
type ScheduleOutput struct {
	CreatorID string         `json:"creator_id"`
	WeekStart string         `json:"week_start"`
	Items     []ScheduleItem `json:"items"`
	Followups []Followup     `json:"followups"`
}

// ParseSlot joins a wire date and clock into a time. Times are creator wall
// clock and carried in UTC.
func ParseSlot(date, clock string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+ClockLayout, date+" "+clock, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid slot %q %q: %w", date, clock, err)
	}
	return t, nil
}

// FormatSlot splits t into wire date and clock.
func FormatSlot(t time.Time) (date, clock string) {
	return t.Format(DateLayout), t.Format(ClockLayout)
}

// =============================================================================
// VALIDATION CERTIFICATE
// =============================================================================

// Status is the certificate verdict.
type Status string

const (
	StatusApproved    Status = "APPROVED"
	StatusNeedsReview Status = "NEEDS_REVIEW"
	StatusRejected    Status = "REJECTED"
)

// Gate names a hard gate.
type Gate string

const (
	GateVault     Gate = "vault"
	GateAvoid     Gate = "avoid"
	GatePageType  Gate = "page_type"
	GateDiversity Gate = "diversity"
	GateFlyer     Gate = "flyer"
	GateTiming    Gate = "timing"
)

// GateOrder is the strict execution order of the hard gates.
var GateOrder = []Gate{GateVault, GateAvoid, GatePageType, GateDiversity, GateFlyer, GateTiming}

// Violation records one hard-gate failure.
type Violation struct {
	Gate      Gate      `json:"gate"`
	Code      ErrorCode `json:"code"`
	ItemIndex int       `json:"item_index"`
	Detail    string    `json:"detail"`
}

// ValidationCertificate attests the outcome of one validation pass. It is
// never edited; re-validation issues a new certificate.
type ValidationCertificate struct {
	Version         string            `json:"version"`
	CertificateID   string            `json:"certificate_id"`
	CreatorID       string            `json:"creator_id"`
	WeekStart       string            `json:"week_start"`
	Timestamp       time.Time         `json:"timestamp"`
	ExpiresAt       time.Time         `json:"expires_at"`
	ScheduleHash    string            `json:"schedule_hash"`
	VaultHash       string            `json:"vault_hash"`
	AvoidHash       string            `json:"avoid_hash"`
	ItemCount       int               `json:"item_count"`
	FollowupCount   int               `json:"followup_count"`
	QualityScore    float64           `json:"quality_score"`
	Status          Status            `json:"status"`
	Gates           map[Gate]bool     `json:"gates"`
	GatesChecked    []Gate            `json:"gates_checked"`
	ViolationCounts map[ErrorCode]int `json:"violation_counts"`
	Violations      []Violation       `json:"violations,omitempty"`
	Recommendations []string          `json:"recommendations,omitempty"`
	Signature       string            `json:"signature"`
}

// IsFresh reports whether the certificate may still be persisted at now.
func (c *ValidationCertificate) IsFresh(now time.Time) bool {
	return !now.After(c.ExpiresAt)
}

// Approved reports whether the schedule may ship.
func (c *ValidationCertificate) Approved() bool {
	return c.Status == StatusApproved
}
