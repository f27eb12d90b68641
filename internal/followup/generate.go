// Package followup derives delayed ppv_followup sends from their parents.
package followup

import (
	"math"
	"time"

	"schedforge/internal/catalog"
	"schedforge/internal/logging"
	"schedforge/internal/types"
)

// Config holds the delay distribution and the day limits.
type Config struct {
	MeanMinutes   float64
	StdDevMinutes float64
	MinDelay      int
	MaxDelay      int
	// Cutoff is the latest followup time, in minutes after midnight.
	Cutoff   int
	DailyCap int
}

// DefaultConfig returns the standard followup rules.
func DefaultConfig() Config {
	return Config{
		MeanMinutes:   28,
		StdDevMinutes: 8,
		MinDelay:      15,
		MaxDelay:      45,
		Cutoff:        23*60 + 30,
		DailyCap:      5,
	}
}

// DropReason explains a skipped followup.
type DropReason string

const (
	ReasonAfterCutoff DropReason = "AFTER_CUTOFF"
	ReasonDailyCap    DropReason = "DAILY_CAP"
)

// Dropped records an eligible parent that got no followup.
type Dropped struct {
	ParentIndex int        `json:"parent_index"`
	SendTypeKey string     `json:"send_type_key"`
	Date        string     `json:"date"`
	Reason      DropReason `json:"reason"`
}

// Result is the generator output.
type Result struct {
	Followups []types.Followup
	Dropped   []Dropped
}

// maxDraws bounds rejection sampling; past it the mean is used.
const maxDraws = 1000

// SampleDelay draws a whole-minute delay from the normal distribution
// truncated to [MinDelay, MaxDelay].
func SampleDelay(cfg Config, rng types.RandomSource) int {
	lo, hi := float64(cfg.MinDelay), float64(cfg.MaxDelay)
	for i := 0; i < maxDraws; i++ {
		x := cfg.MeanMinutes + cfg.StdDevMinutes*rng.NormFloat64()
		if x >= lo && x <= hi {
			return int(math.Round(x))
		}
	}
	return int(math.Round(math.Max(lo, math.Min(hi, cfg.MeanMinutes))))
}

// Generate walks items in order and attaches a followup to every eligible
// parent. A followup past the cutoff is dropped, never moved to the next day.
// Once a day reaches the cap its remaining parents are skipped.
func Generate(items []types.ScheduleItem, cfg Config, rng types.RandomSource) (*Result, error) {
	log := logging.Get(logging.CategoryFollowup)
	res := &Result{}
	perDay := make(map[string]int)

	for i, parent := range items {
		if !catalog.FollowupParents[parent.SendTypeKey] {
			continue
		}
		if perDay[parent.ScheduledDate] >= cfg.DailyCap {
			res.Dropped = append(res.Dropped, Dropped{i, parent.SendTypeKey, parent.ScheduledDate, ReasonDailyCap})
			log.Debug("parent %d on %s: daily cap %d reached", i, parent.ScheduledDate, cfg.DailyCap)
			continue
		}

		at, err := parent.At()
		if err != nil {
			return nil, &types.StageError{Stage: types.StageFollowup, Code: types.CodeInvalidInput, Detail: parent.SendTypeKey, Err: err}
		}
		delay := SampleDelay(cfg, rng)
		minute := at.Hour()*60 + at.Minute() + delay
		if minute > cfg.Cutoff {
			res.Dropped = append(res.Dropped, Dropped{i, parent.SendTypeKey, parent.ScheduledDate, ReasonAfterCutoff})
			log.Debug("parent %d at %s +%dm passes cutoff", i, parent.ScheduledTime, delay)
			continue
		}

		date, clock := types.FormatSlot(at.Add(time.Duration(delay)*time.Minute))
		res.Followups = append(res.Followups, types.Followup{
			ParentIndex:   i,
			SendTypeKey:   catalog.PPVFollowup,
			ContentType:   parent.ContentType,
			ScheduledDate: date,
			ScheduledTime: clock,
			DelayMinutes:  delay,
		})
		perDay[parent.ScheduledDate]++
	}
	return res, nil
}
