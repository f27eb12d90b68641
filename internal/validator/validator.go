// Package validator re-checks an assembled week against the hard gates,
// scores it, and issues a signed ValidationCertificate.
//
// The validator trusts nothing from the stages that built the schedule: it
// works only from the ScheduleOutput, the creator context and the catalog.
package validator

import (
	"fmt"
	"time"

	"schedforge/internal/catalog"
	"schedforge/internal/logging"
	"schedforge/internal/types"
)

// Config holds scoring and certificate settings.
type Config struct {
	Version         string
	Freshness       time.Duration
	DiversityTarget int
	GlobalMinGap    time.Duration
	PriceFloor      float64
	PriceCeiling    float64
	PriceIncrement  float64
	FollowupMin     int
	FollowupMax     int
}

// DefaultConfig returns the standard validator settings.
func DefaultConfig() Config {
	return Config{
		Version:         "1.0",
		Freshness:       5 * time.Minute,
		DiversityTarget: 14,
		GlobalMinGap:    catalog.GlobalMinGap,
		PriceFloor:      5,
		PriceCeiling:    50,
		PriceIncrement:  0.5,
		FollowupMin:     15,
		FollowupMax:     45,
	}
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock sets the certificate clock.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// Validator checks schedules. It is safe for concurrent use.
type Validator struct {
	cfg     Config
	catalog *catalog.Catalog
	now     func() time.Time
}

// New returns a Validator.
func New(cat *catalog.Catalog, cfg Config, opts ...Option) *Validator {
	v := &Validator{cfg: cfg, catalog: cat, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type gateFunc func(*check) []types.Violation

// check carries one validation pass.
type check struct {
	out       *types.ScheduleOutput
	cc        types.CreatorContext
	cat       *catalog.Catalog
	cfg       Config
	sendTypes []catalog.SendType // per item
}

// Validate runs the gates in order, stopping at the first failure, and
// returns the resulting certificate. Gate failures are reported through the
// certificate; the error is reserved for unusable input.
func (v *Validator) Validate(out *types.ScheduleOutput, cc types.CreatorContext) (*types.ValidationCertificate, error) {
	if out == nil {
		return nil, types.NewStageError(types.StageValidator, types.CodeInvalidInput, "nil schedule")
	}
	c := &check{out: out, cc: cc, cat: v.catalog, cfg: v.cfg}
	for i, it := range out.Items {
		st, ok := v.catalog.Lookup(it.SendTypeKey)
		if !ok {
			return nil, types.NewStageError(types.StageValidator, types.CodeInvalidInput, "item %d: unknown send type %q", i, it.SendTypeKey)
		}
		c.sendTypes = append(c.sendTypes, st)
	}
	for i, f := range out.Followups {
		if _, ok := v.catalog.Lookup(f.SendTypeKey); !ok {
			return nil, types.NewStageError(types.StageValidator, types.CodeInvalidInput, "followup %d: unknown send type %q", i, f.SendTypeKey)
		}
		if f.ParentIndex < 0 || f.ParentIndex >= len(out.Items) {
			return nil, types.NewStageError(types.StageValidator, types.CodeInvalidInput, "followup %d: parent index %d out of range", i, f.ParentIndex)
		}
	}

	audit := logging.AuditFor(out.CreatorID, out.WeekStart)
	cert := &types.ValidationCertificate{
		Version:         v.cfg.Version,
		CreatorID:       out.CreatorID,
		WeekStart:       out.WeekStart,
		ItemCount:       len(out.Items),
		FollowupCount:   len(out.Followups),
		Gates:           make(map[types.Gate]bool, len(types.GateOrder)),
		ViolationCounts: make(map[types.ErrorCode]int),
	}
	for _, g := range types.GateOrder {
		cert.Gates[g] = false
	}

	failed := false
	for _, g := range types.GateOrder {
		cert.GatesChecked = append(cert.GatesChecked, g)
		vs := gates[g](c)
		if len(vs) > 0 {
			cert.Violations = vs
			for _, viol := range vs {
				cert.ViolationCounts[viol.Code]++
			}
			audit.GateFailed(string(g), len(vs))
			logging.Validator("%s week %s failed %s gate with %d violations", out.CreatorID, out.WeekStart, g, len(vs))
			failed = true
			break
		}
		cert.Gates[g] = true
	}

	if failed {
		cert.QualityScore = 0
		cert.Status = types.StatusRejected
	} else {
		s := score(c)
		cert.QualityScore = s.Total
		cert.Status = statusFor(s.Total)
		if s.Total < approvedThreshold {
			cert.Recommendations = s.Recommendations
		}
	}

	if err := v.seal(cert, out, cc); err != nil {
		return nil, fmt.Errorf("seal certificate: %w", err)
	}
	audit.CertificateIssued(cert.CertificateID, string(cert.Status), cert.QualityScore)
	return cert, nil
}

// Status thresholds.
const (
	approvedThreshold       = 85
	approvedWithRecsMinimum = 75
	needsReviewMinimum      = 60
)

func statusFor(score float64) types.Status {
	switch {
	case score >= approvedWithRecsMinimum:
		return types.StatusApproved
	case score >= needsReviewMinimum:
		return types.StatusNeedsReview
	default:
		return types.StatusRejected
	}
}
