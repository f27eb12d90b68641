package types

import (
	"fmt"
	"math/rand"
	"time"

	"schedforge/internal/catalog"
)

// RandomSource is the seedable randomness the timing and followup stages draw
// from. *rand.Rand satisfies it.
type RandomSource interface {
	Intn(n int) int
	NormFloat64() float64
}

// NewRandom returns a deterministic source for seed.
func NewRandom(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// ValidateContext checks the input contract at pipeline entry. All problems
// are reported together; nothing is partially processed.
func ValidateContext(c CreatorContext, now time.Time) error {
	var errs []FieldError

	if c.CreatorID == "" {
		errs = append(errs, FieldError{"creator_id", "required"})
	}

	switch c.PageType {
	case catalog.PagePaid, catalog.PageFree:
	default:
		errs = append(errs, FieldError{"page_type", fmt.Sprintf("must be %q or %q, got %q", catalog.PagePaid, catalog.PageFree, c.PageType)})
	}

	if len(c.AllowedContentTypes) == 0 {
		errs = append(errs, FieldError{"allowed_content_types", "required and must contain at least one item"})
	}
	for i, ct := range c.AllowedContentTypes {
		if ct == "" {
			errs = append(errs, FieldError{fmt.Sprintf("allowed_content_types[%d]", i), "must be non-empty"})
		}
	}
	for i, ct := range c.AvoidContentTypes {
		if ct == "" {
			errs = append(errs, FieldError{fmt.Sprintf("avoid_content_types[%d]", i), "must be non-empty"})
		}
	}
	if len(c.AllowedContentTypes) > 0 && len(c.Usable()) == 0 {
		errs = append(errs, FieldError{"allowed_content_types", "every allowed type is also avoided"})
	}

	if _, err := c.ResolveVolume(); err != nil {
		errs = append(errs, FieldError{"volume_tier", err.Error()})
	}

	p := c.Pricing
	if p.BasePrice < 0 || p.Floor < 0 || p.Ceiling < 0 {
		errs = append(errs, FieldError{"pricing", "values must not be negative"})
	}
	if p.Ceiling > 0 && p.Floor > p.Ceiling {
		errs = append(errs, FieldError{"pricing", fmt.Sprintf("floor %.2f above ceiling %.2f", p.Floor, p.Ceiling)})
	}

	for i, t := range c.Triggers {
		field := fmt.Sprintf("triggers[%d]", i)
		if t.ContentType == "" {
			errs = append(errs, FieldError{field + ".content_type", "required"})
		}
		if !KnownTriggerTypes[t.Type] {
			errs = append(errs, FieldError{field + ".trigger_type", fmt.Sprintf("unknown type %q", t.Type)})
		}
		if t.Multiplier <= 0 {
			errs = append(errs, FieldError{field + ".multiplier", "must be positive"})
		}
		if t.Confidence < 0 || t.Confidence > 1 {
			errs = append(errs, FieldError{field + ".confidence", "must be within [0,1]"})
		}
		if t.Expired(now) {
			errs = append(errs, FieldError{field + ".expires_at", fmt.Sprintf("expired at %s", t.ExpiresAt.Format(time.RFC3339))})
		}
	}

	if len(errs) > 0 {
		return &StageError{
			Stage:  StageInput,
			Code:   CodeInvalidInput,
			Detail: fmt.Sprintf("creator context for %q failed validation", c.CreatorID),
			Fields: errs,
		}
	}
	return nil
}

// ParseWeekStart parses the week_start date.
func ParseWeekStart(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, &StageError{Stage: StageInput, Code: CodeInvalidInput, Detail: "week_start", Fields: []FieldError{{"week_start", "must be YYYY-MM-DD"}}, Err: err}
	}
	return t, nil
}
