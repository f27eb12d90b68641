package config

import "fmt"

// PricingConfig configures the pricing engine and its adjustment stack.
// Factors are multiplicative; 1.0 is neutral.
type PricingConfig struct {
	DefaultBase float64 `yaml:"default_base"`
	Floor       float64 `yaml:"floor"`
	Ceiling     float64 `yaml:"ceiling"`
	Increment   float64 `yaml:"increment"`

	// Timing adjustment: prime-hour sends vs. everything else
	PrimeHourFactor float64 `yaml:"prime_hour_factor"`
	OffPeakFactor   float64 `yaml:"off_peak_factor"`

	// Scarcity adjustment per send type
	ScarcityFactors map[string]float64 `yaml:"scarcity_factors"`

	// Performance adjustment per content type
	PerformanceFactors map[string]float64 `yaml:"performance_factors"`
}

func defaultPricingConfig() PricingConfig {
	return PricingConfig{
		DefaultBase:     15,
		Floor:           5,
		Ceiling:         50,
		Increment:       0.5,
		PrimeHourFactor: 1.10,
		OffPeakFactor:   1.0,
		ScarcityFactors: map[string]float64{
			"flash_bundle":    1.20,
			"vip_program":     1.50,
			"snapchat_bundle": 1.25,
			"bundle":          1.10,
		},
	}
}

func (p PricingConfig) validate() error {
	if p.Floor <= 0 || p.Ceiling < p.Floor {
		return fmt.Errorf("pricing: bounds [%.2f,%.2f] invalid", p.Floor, p.Ceiling)
	}
	if p.DefaultBase <= 0 {
		return fmt.Errorf("pricing: default_base must be positive")
	}
	if p.Increment < 0 {
		return fmt.Errorf("pricing: increment must be >= 0")
	}
	if p.PrimeHourFactor <= 0 || p.OffPeakFactor <= 0 {
		return fmt.Errorf("pricing: timing factors must be positive")
	}
	for k, v := range p.ScarcityFactors {
		if v <= 0 {
			return fmt.Errorf("pricing: scarcity factor for %s must be positive", k)
		}
	}
	for k, v := range p.PerformanceFactors {
		if v <= 0 {
			return fmt.Errorf("pricing: performance factor for %s must be positive", k)
		}
	}
	return nil
}
