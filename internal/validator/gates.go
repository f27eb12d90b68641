package validator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"schedforge/internal/catalog"
	"schedforge/internal/types"
)

// followupIndex marks violations that belong to a followup rather than an item.
const followupIndex = -1

var gates = map[types.Gate]gateFunc{
	types.GateVault:     vaultGate,
	types.GateAvoid:     avoidGate,
	types.GatePageType:  pageTypeGate,
	types.GateDiversity: diversityGate,
	types.GateFlyer:     flyerGate,
	types.GateTiming:    timingGate,
}

func vaultGate(c *check) []types.Violation {
	allowed := c.cc.AllowedSet()
	var out []types.Violation
	for i, it := range c.out.Items {
		if !allowed[it.ContentType] {
			out = append(out, types.Violation{Gate: types.GateVault, Code: types.CodeVaultViolation, ItemIndex: i,
				Detail: fmt.Sprintf("%s uses content type %q outside the allowed set", it.SendTypeKey, it.ContentType)})
		}
	}
	for i, f := range c.out.Followups {
		if !allowed[f.ContentType] {
			out = append(out, types.Violation{Gate: types.GateVault, Code: types.CodeVaultViolation, ItemIndex: followupIndex,
				Detail: fmt.Sprintf("followup %d uses content type %q outside the allowed set", i, f.ContentType)})
		}
	}
	return out
}

func avoidGate(c *check) []types.Violation {
	avoid := c.cc.AvoidSet()
	var out []types.Violation
	for i, it := range c.out.Items {
		if avoid[it.ContentType] {
			out = append(out, types.Violation{Gate: types.GateAvoid, Code: types.CodeAvoidTierViolation, ItemIndex: i,
				Detail: fmt.Sprintf("%s uses avoided content type %q", it.SendTypeKey, it.ContentType)})
		}
	}
	for i, f := range c.out.Followups {
		if avoid[f.ContentType] {
			out = append(out, types.Violation{Gate: types.GateAvoid, Code: types.CodeAvoidTierViolation, ItemIndex: followupIndex,
				Detail: fmt.Sprintf("followup %d uses avoided content type %q", i, f.ContentType)})
		}
	}
	return out
}

func pageTypeGate(c *check) []types.Violation {
	var out []types.Violation
	for i, st := range c.sendTypes {
		if !st.AllowedOn(c.cc.PageType) {
			out = append(out, types.Violation{Gate: types.GatePageType, Code: types.CodePageTypeViolation, ItemIndex: i,
				Detail: fmt.Sprintf("%s is restricted to %s pages, creator page is %s", st.Key, st.PageType, c.cc.PageType)})
		}
	}
	return out
}

// uniqueKeys counts distinct send types across items and followups, per
// category.
func uniqueKeys(c *check) (total int, byCategory map[catalog.Category]int) {
	seen := make(map[string]bool)
	byCategory = make(map[catalog.Category]int)
	add := func(st catalog.SendType) {
		if seen[st.Key] {
			return
		}
		seen[st.Key] = true
		byCategory[st.Category]++
	}
	for _, st := range c.sendTypes {
		add(st)
	}
	for _, f := range c.out.Followups {
		st, _ := c.cat.Lookup(f.SendTypeKey)
		add(st)
	}
	return len(seen), byCategory
}

func diversityGate(c *check) []types.Violation {
	rule := catalog.DiversityFor(c.cc.PageType)
	total, byCategory := uniqueKeys(c)

	var short []string
	if total < rule.MinTotal {
		short = append(short, fmt.Sprintf("%d unique send types (need %d)", total, rule.MinTotal))
	}
	for _, cat := range catalog.Categories {
		if need := rule.MinFor(cat); byCategory[cat] < need {
			short = append(short, fmt.Sprintf("%d unique %s (need %d)", byCategory[cat], cat, need))
		}
	}
	if len(short) == 0 {
		return nil
	}
	return []types.Violation{{Gate: types.GateDiversity, Code: types.CodeInsufficientDiv, ItemIndex: followupIndex,
		Detail: strings.Join(short, "; ")}}
}

func flyerGate(c *check) []types.Violation {
	var out []types.Violation
	for i, it := range c.out.Items {
		if c.sendTypes[i].RequiresFlyer && it.FlyerRequired != 1 {
			out = append(out, types.Violation{Gate: types.GateFlyer, Code: types.CodeFlyerViolation, ItemIndex: i,
				Detail: fmt.Sprintf("%s requires flyer_required = 1, got %d", it.SendTypeKey, it.FlyerRequired)})
		}
	}
	return out
}

type timed struct {
	index int
	at    time.Time
	st    catalog.SendType
}

func timingGate(c *check) []types.Violation {
	var out []types.Violation
	collide := func(i int, format string, args ...interface{}) {
		out = append(out, types.Violation{Gate: types.GateTiming, Code: types.CodeTimingCollision, ItemIndex: i, Detail: fmt.Sprintf(format, args...)})
	}

	list := make([]timed, 0, len(c.out.Items))
	for i, it := range c.out.Items {
		at, err := it.At()
		if err != nil {
			collide(i, "%s: %v", it.SendTypeKey, err)
			continue
		}
		list = append(list, timed{i, at, c.sendTypes[i]})
	}
	sort.SliceStable(list, func(a, b int) bool { return list[a].at.Before(list[b].at) })

	horizon := c.cat.MaxRequiredGap()
	if c.cfg.GlobalMinGap > horizon {
		horizon = c.cfg.GlobalMinGap
	}
	for a := 0; a < len(list); a++ {
		for b := a + 1; b < len(list); b++ {
			diff := list[b].at.Sub(list[a].at)
			if diff >= horizon {
				break
			}
			need := catalog.RequiredGap(list[a].st, list[b].st)
			if c.cfg.GlobalMinGap > need {
				need = c.cfg.GlobalMinGap
			}
			if diff < need {
				collide(list[b].index, "%s at %s is %s after %s (needs %s)",
					list[b].st.Key, list[b].at.Format("2006-01-02 15:04"), diff, list[a].st.Key, need)
			}
		}
	}

	for i, f := range c.out.Followups {
		if f.DelayMinutes < c.cfg.FollowupMin || f.DelayMinutes > c.cfg.FollowupMax {
			collide(followupIndex, "followup %d delay %dm outside [%d,%d]", i, f.DelayMinutes, c.cfg.FollowupMin, c.cfg.FollowupMax)
			continue
		}
		at, err := f.At()
		if err != nil {
			collide(followupIndex, "followup %d: %v", i, err)
			continue
		}
		parentAt, err := c.out.Items[f.ParentIndex].At()
		if err != nil {
			continue
		}
		if got := at.Sub(parentAt); got != time.Duration(f.DelayMinutes)*time.Minute {
			collide(followupIndex, "followup %d is %s after its parent, declared %dm", i, got, f.DelayMinutes)
		}
	}
	return out
}
