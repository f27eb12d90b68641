package validator

import (
	"fmt"
	"math"

	"schedforge/internal/pricing"
)

// Score weights, summing to 100.
const (
	weightVault     = 25.0
	weightAvoid     = 25.0
	weightDiversity = 20.0
	weightTiming    = 15.0
	weightPricing   = 15.0
)

// Breakdown is the weighted quality score and its parts.
type Breakdown struct {
	Vault           float64
	Avoid           float64
	Diversity       float64
	Timing          float64
	Pricing         float64
	Total           float64
	Recommendations []string
}

func share(good, total int) float64 {
	if total == 0 {
		return 1
	}
	return float64(good) / float64(total)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func score(c *check) Breakdown {
	var b Breakdown
	allowed, avoid := c.cc.AllowedSet(), c.cc.AvoidSet()
	n := len(c.out.Items)

	inVault, clean := 0, 0
	for _, it := range c.out.Items {
		if allowed[it.ContentType] {
			inVault++
		}
		if !avoid[it.ContentType] {
			clean++
		}
	}
	b.Vault = weightVault * share(inVault, n)
	b.Avoid = weightAvoid * share(clean, n)

	unique, _ := uniqueKeys(c)
	target := c.cfg.DiversityTarget
	if target < 1 {
		target = 1
	}
	b.Diversity = weightDiversity * math.Min(1, float64(unique)/float64(target))
	if unique < target {
		b.Recommendations = append(b.Recommendations, fmt.Sprintf("diversity: %d unique send types, %d earns the full score", unique, target))
	}

	offQuarter := 0
	for _, it := range c.out.Items {
		at, err := it.At()
		if err == nil && at.Minute()%15 != 0 {
			offQuarter++
		}
	}
	b.Timing = weightTiming * share(offQuarter, n)
	if offQuarter < n {
		b.Recommendations = append(b.Recommendations, fmt.Sprintf("timing: %d items sit on quarter-hour marks", n-offQuarter))
	}

	lo, hi := pricing.EffectiveBounds(c.cfg.PriceFloor, c.cfg.PriceCeiling, c.cc.Pricing)
	priced, valid := 0, 0
	for i, it := range c.out.Items {
		if !c.sendTypes[i].RequiresPrice {
			continue
		}
		priced++
		if p := it.Price; p != nil && *p >= lo && *p <= hi && pricing.OnIncrement(*p, c.cfg.PriceIncrement) {
			valid++
		}
	}
	b.Pricing = weightPricing * share(valid, priced)
	if valid < priced {
		b.Recommendations = append(b.Recommendations, fmt.Sprintf("pricing: %d of %d priced items missing, out of [%.2f, %.2f] or off increment", priced-valid, priced, lo, hi))
	}

	b.Total = round2(b.Vault + b.Avoid + b.Diversity + b.Timing + b.Pricing)
	return b
}
