package pipeline

import (
	"schedforge/internal/allocator"
	"schedforge/internal/config"
	"schedforge/internal/followup"
	"schedforge/internal/pricing"
	"schedforge/internal/timing"
	"schedforge/internal/validator"
)

// The stage packages stay free of the config package; these adapters map the
// YAML sections onto their typed settings.

func allocatorConfig(c *config.Config) allocator.Config {
	return allocator.Config{MaxContentRepeatsPerDay: c.Allocator.MaxContentRepeatsPerDay}
}

func timingConfig(c *config.Config) timing.Config {
	dayStart, dayEnd := c.GetDayBounds()
	dzStart, dzEnd := c.GetDeadZone()
	return timing.Config{
		GlobalMinGap:  c.GetGlobalMinGap(),
		JitterMin:     c.Timing.JitterMin,
		JitterMax:     c.Timing.JitterMax,
		DayStart:      dayStart,
		DayEnd:        dayEnd,
		DeadZoneStart: dzStart,
		DeadZoneEnd:   dzEnd,
		ShiftStep:     c.GetShiftStep(),
		MaxShift:      c.GetMaxShift(),
		SnapTolerance: c.GetSnapTolerance(),
	}
}

func pricingConfig(c *config.Config) pricing.Config {
	p := c.Pricing
	return pricing.Config{
		DefaultBase:        p.DefaultBase,
		Floor:              p.Floor,
		Ceiling:            p.Ceiling,
		Increment:          p.Increment,
		PrimeHourFactor:    p.PrimeHourFactor,
		OffPeakFactor:      p.OffPeakFactor,
		ScarcityFactors:    p.ScarcityFactors,
		PerformanceFactors: p.PerformanceFactors,
	}
}

func followupConfig(c *config.Config) followup.Config {
	f := c.Followup
	return followup.Config{
		MeanMinutes:   f.MeanMinutes,
		StdDevMinutes: f.StdDevMinutes,
		MinDelay:      f.MinDelay,
		MaxDelay:      f.MaxDelay,
		Cutoff:        c.GetFollowupCutoff(),
		DailyCap:      f.DailyCap,
	}
}

func validatorConfig(c *config.Config) validator.Config {
	return validator.Config{
		Version:         c.Validator.CertificateVersion,
		Freshness:       c.GetFreshness(),
		DiversityTarget: c.Validator.DiversityTarget,
		GlobalMinGap:    c.GetGlobalMinGap(),
		PriceFloor:      c.Pricing.Floor,
		PriceCeiling:    c.Pricing.Ceiling,
		PriceIncrement:  c.Pricing.Increment,
		FollowupMin:     c.Followup.MinDelay,
		FollowupMax:     c.Followup.MaxDelay,
	}
}
