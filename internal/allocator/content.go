package allocator

import (
	"schedforge/internal/types"
)

type contentCandidate struct {
	name string
	rank int
}

// contentPicker rotates content types within their performance tier.
// Better tiers win; within a tier the least recently used type wins.
type contentPicker struct {
	candidates []contentCandidate
	maxPerDay  int

	clock    int
	lastUsed map[string]int
	dayUse   map[string]int
}

func newContentPicker(cc types.CreatorContext, maxPerDay int) (*contentPicker, error) {
	usable := cc.Usable()
	if len(usable) == 0 {
		return nil, types.NewStageError(types.StageAllocator, types.CodeAllocationInfeasible,
			"no content types remain after removing avoided types")
	}
	ok := make(map[string]bool, len(usable))
	for _, ct := range usable {
		ok[ct] = true
	}

	p := &contentPicker{maxPerDay: maxPerDay, lastUsed: make(map[string]int)}
	placed := make(map[string]bool)
	rank := 0
	for _, tier := range cc.ContentTiers {
		added := false
		for _, ct := range tier {
			if ok[ct] && !placed[ct] {
				p.candidates = append(p.candidates, contentCandidate{name: ct, rank: rank})
				placed[ct] = true
				added = true
			}
		}
		if added {
			rank++
		}
	}
	// Untiered usable types rank last, in name order.
	for _, ct := range usable {
		if !placed[ct] {
			p.candidates = append(p.candidates, contentCandidate{name: ct, rank: rank})
		}
	}
	for _, c := range p.candidates {
		p.lastUsed[c.name] = -1
	}
	return p, nil
}

func (p *contentPicker) contentTypes() []string {
	out := make([]string, len(p.candidates))
	for i, c := range p.candidates {
		out[i] = c.name
	}
	return out
}

func (p *contentPicker) startDay() {
	p.dayUse = make(map[string]int)
}

// pick returns the next content type. The per-day repeat cap is honoured
// while any candidate is under it.
func (p *contentPicker) pick() string {
	best := p.best(true)
	if best < 0 {
		best = p.best(false)
	}
	name := p.candidates[best].name
	p.lastUsed[name] = p.clock
	p.clock++
	p.dayUse[name]++
	return name
}

func (p *contentPicker) best(capped bool) int {
	best := -1
	for i, c := range p.candidates {
		if capped && p.dayUse[c.name] >= p.maxPerDay {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := p.candidates[best]
		if c.rank < b.rank || (c.rank == b.rank && p.lastUsed[c.name] < p.lastUsed[b.name]) {
			best = i
		}
	}
	return best
}
