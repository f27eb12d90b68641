package config

import (
	"fmt"
	"time"
)

// TimingConfig configures the timing engine.
type TimingConfig struct {
	GlobalMinGap  string `yaml:"global_min_gap"`
	JitterMin     int    `yaml:"jitter_min"` // minutes, signed
	JitterMax     int    `yaml:"jitter_max"`
	DayStart      string `yaml:"day_start"` // HH:MM
	DayEnd        string `yaml:"day_end"`   // HH:MM, last placeable minute
	DeadZoneStart string `yaml:"dead_zone_start"`
	DeadZoneEnd   string `yaml:"dead_zone_end"`
	ShiftStep     string `yaml:"shift_step"`
	MaxShift      string `yaml:"max_shift"`
	// How far a revenue item may slide to land on a prime or secondary hour.
	SnapTolerance string `yaml:"snap_tolerance"`
}

func defaultTimingConfig() TimingConfig {
	return TimingConfig{
		GlobalMinGap:  "45m",
		JitterMin:     -7,
		JitterMax:     8,
		DayStart:      "07:00",
		DayEnd:        "23:59",
		DeadZoneStart: "03:00",
		DeadZoneEnd:   "07:00",
		ShiftStep:     "5m",
		MaxShift:      "15m",
		SnapTolerance: "20m",
	}
}

func (t TimingConfig) validate() error {
	if t.JitterMin > 0 || t.JitterMax < 0 || t.JitterMax-t.JitterMin < 1 {
		return fmt.Errorf("timing: jitter range [%d,%d] invalid", t.JitterMin, t.JitterMax)
	}
	for name, v := range map[string]string{
		"day_start": t.DayStart, "day_end": t.DayEnd,
		"dead_zone_start": t.DeadZoneStart, "dead_zone_end": t.DeadZoneEnd,
	} {
		if _, err := parseClock(v); err != nil {
			return fmt.Errorf("timing: %s: %w", name, err)
		}
	}
	start, _ := parseClock(t.DayStart)
	end, _ := parseClock(t.DayEnd)
	if end <= start {
		return fmt.Errorf("timing: day_end %s must be after day_start %s", t.DayEnd, t.DayStart)
	}
	for name, v := range map[string]string{
		"global_min_gap": t.GlobalMinGap, "shift_step": t.ShiftStep,
		"max_shift": t.MaxShift, "snap_tolerance": t.SnapTolerance,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("timing: %s: %w", name, err)
		}
	}
	return nil
}

// GetGlobalMinGap returns the global minimum gap as a duration.
func (c *Config) GetGlobalMinGap() time.Duration {
	return durationOr(c.Timing.GlobalMinGap, 45*time.Minute)
}

// GetShiftStep returns the collision shift increment.
func (c *Config) GetShiftStep() time.Duration {
	return durationOr(c.Timing.ShiftStep, 5*time.Minute)
}

// GetMaxShift returns the maximum collision shift.
func (c *Config) GetMaxShift() time.Duration {
	return durationOr(c.Timing.MaxShift, 15*time.Minute)
}

// GetSnapTolerance returns the revenue window snap tolerance.
func (c *Config) GetSnapTolerance() time.Duration {
	return durationOr(c.Timing.SnapTolerance, 20*time.Minute)
}

// GetDayBounds returns day start and end as minutes after midnight.
func (c *Config) GetDayBounds() (start, end int) {
	start, err := parseClock(c.Timing.DayStart)
	if err != nil {
		start = 7 * 60
	}
	end, err = parseClock(c.Timing.DayEnd)
	if err != nil {
		end = 23*60 + 59
	}
	return start, end
}

// GetDeadZone returns the dead zone as minutes after midnight.
func (c *Config) GetDeadZone() (start, end int) {
	start, err := parseClock(c.Timing.DeadZoneStart)
	if err != nil {
		start = 3 * 60
	}
	end, err = parseClock(c.Timing.DeadZoneEnd)
	if err != nil {
		end = 7 * 60
	}
	return start, end
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
