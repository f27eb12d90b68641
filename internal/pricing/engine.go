// Package pricing computes bounded prices for items that carry one.
package pricing

import (
	"fmt"
	"math"
	"time"

	"schedforge/internal/catalog"
	"schedforge/internal/logging"
	"schedforge/internal/triggers"
	"schedforge/internal/types"
)

// Config holds the price bounds and the adjustment factors.
type Config struct {
	DefaultBase float64
	Floor       float64
	Ceiling     float64
	// Increment is the rounding step; 0 rounds to cents.
	Increment          float64
	PrimeHourFactor    float64
	OffPeakFactor      float64
	ScarcityFactors    map[string]float64
	PerformanceFactors map[string]float64
}

// DefaultConfig returns the standard pricing rules.
func DefaultConfig() Config {
	return Config{
		DefaultBase:     15,
		Floor:           5,
		Ceiling:         50,
		Increment:       0.5,
		PrimeHourFactor: 1.10,
		OffPeakFactor:   1.0,
		ScarcityFactors: map[string]float64{
			catalog.FlashBundle:    1.20,
			catalog.VIPProgram:     1.50,
			catalog.SnapchatBundle: 1.25,
			catalog.Bundle:         1.10,
		},
	}
}

// Adjustment is one applied factor.
type Adjustment struct {
	Name   string  `json:"name"`
	Factor float64 `json:"factor"`
}

// Quote is the full derivation of one price.
type Quote struct {
	Base        float64      `json:"base"`
	Adjustments []Adjustment `json:"adjustments"`
	Compound    float64      `json:"compound"`
	Raw         float64      `json:"raw"`
	Floor       float64      `json:"floor"`
	Ceiling     float64      `json:"ceiling"`
	Final       float64      `json:"final"`
}

type adjuster struct {
	name string
	fn   func(item types.ScheduleItem, at time.Time) float64
}

// Engine prices schedule items.
type Engine struct {
	cfg     Config
	catalog *catalog.Catalog
	stack   []adjuster
}

// New returns an Engine. The adjustment stack runs timing, then scarcity,
// then performance.
func New(cat *catalog.Catalog, cfg Config) *Engine {
	e := &Engine{cfg: cfg, catalog: cat}
	e.stack = []adjuster{
		{"timing", e.timingFactor},
		{"scarcity", func(item types.ScheduleItem, _ time.Time) float64 {
			return factorOr(cfg.ScarcityFactors, item.SendTypeKey)
		}},
		{"performance", func(item types.ScheduleItem, _ time.Time) float64 {
			return factorOr(cfg.PerformanceFactors, item.ContentType)
		}},
	}
	return e
}

func factorOr(m map[string]float64, key string) float64 {
	if f, ok := m[key]; ok && f > 0 {
		return f
	}
	return 1.0
}

func (e *Engine) timingFactor(_ types.ScheduleItem, at time.Time) float64 {
	for _, h := range catalog.Windows(at.Weekday()).Prime {
		if at.Hour() == h {
			return e.cfg.PrimeHourFactor
		}
	}
	return e.cfg.OffPeakFactor
}

// EffectiveBounds narrows the engine bounds by the creator's own.
func EffectiveBounds(floor, ceiling float64, b types.PricingBounds) (lo, hi float64) {
	lo, hi = floor, ceiling
	if b.Floor > lo {
		lo = b.Floor
	}
	if b.Ceiling > 0 && b.Ceiling < hi {
		hi = b.Ceiling
	}
	return lo, hi
}

// Bounds returns the effective [floor, ceiling] for a creator.
func (e *Engine) Bounds(b types.PricingBounds) (lo, hi float64) {
	return EffectiveBounds(e.cfg.Floor, e.cfg.Ceiling, b)
}

// Quote prices one item. Items whose send type carries no price get ok=false.
func (e *Engine) Quote(item types.ScheduleItem, b types.PricingBounds, compounds triggers.Set) (q Quote, ok bool, err error) {
	st, found := e.catalog.Lookup(item.SendTypeKey)
	if !found {
		return Quote{}, false, types.NewStageError(types.StagePricing, types.CodeInvalidInput, "unknown send type %q", item.SendTypeKey)
	}
	if !st.RequiresPrice {
		return Quote{}, false, nil
	}
	at, err := item.At()
	if err != nil {
		return Quote{}, false, &types.StageError{Stage: types.StagePricing, Code: types.CodeInvalidInput, Detail: item.SendTypeKey, Err: err}
	}

	lo, hi := e.Bounds(b)
	if lo > hi {
		return Quote{}, false, types.NewStageError(types.StagePricing, types.CodeInvalidInput, "price floor %.2f above ceiling %.2f", lo, hi)
	}

	q.Base = b.BasePrice
	if q.Base <= 0 {
		q.Base = e.cfg.DefaultBase
	}
	price := q.Base
	for _, a := range e.stack {
		f := a.fn(item, at)
		q.Adjustments = append(q.Adjustments, Adjustment{Name: a.name, Factor: f})
		price *= f
	}
	q.Compound = compounds.For(item.ContentType)
	price *= q.Compound

	q.Raw = price
	q.Floor, q.Ceiling = lo, hi
	q.Final = Round(math.Max(lo, math.Min(hi, price)), e.cfg.Increment, lo, hi)
	return q, true, nil
}

// Apply sets Price on every item that requires one and clears it elsewhere.
// It returns the quotes keyed by item index.
func (e *Engine) Apply(items []types.ScheduleItem, b types.PricingBounds, compounds triggers.Set) (map[int]Quote, error) {
	quotes := make(map[int]Quote)
	for i := range items {
		q, ok, err := e.Quote(items[i], b, compounds)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if !ok {
			items[i].Price = nil
			continue
		}
		price := q.Final
		items[i].Price = &price
		quotes[i] = q
		logging.PricingDebug("%s %s %s: base=%.2f raw=%.4f final=%.2f", items[i].ScheduledDate, items[i].ScheduledTime, items[i].SendTypeKey, q.Base, q.Raw, q.Final)
	}
	return quotes, nil
}

// Round snaps v to the nearest multiple of inc while staying inside [lo, hi].
// When no multiple fits, the bound nearest v wins.
func Round(v, inc, lo, hi float64) float64 {
	if inc <= 0 {
		return cents(math.Max(lo, math.Min(hi, v)))
	}
	r := math.Round(v/inc) * inc
	if r > hi {
		r = math.Floor(hi/inc) * inc
	}
	if r < lo {
		r = math.Ceil(lo/inc) * inc
	}
	if r < lo || r > hi {
		r = math.Max(lo, math.Min(hi, v))
	}
	return cents(r)
}

// OnIncrement reports whether v is a multiple of inc, to the cent.
func OnIncrement(v, inc float64) bool {
	if inc <= 0 {
		return true
	}
	steps := v / inc
	return math.Abs(steps-math.Round(steps)) < 1e-6
}

func cents(v float64) float64 {
	return math.Round(v*100) / 100
}
