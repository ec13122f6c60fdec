// Package engine implements the evaluation algorithm: given an immutable
// snapshot, a flag key, and a context, it resolves a concrete variant.
// The engine is pure and total — it performs no I/O, never panics, and
// always returns a Result with a reason from the closed set.
package engine

import (
	"sort"

	"github.com/flagwell/flagwell/internal/hashing"
	"github.com/flagwell/flagwell/internal/model"
	"github.com/flagwell/flagwell/internal/operators"
	"github.com/flagwell/flagwell/internal/snapshot"
)

// anonymousTargetingKey is substituted when ctx.TargetingKey is empty, so
// bucketing still produces a stable (if shared-across-anonymous-callers)
// result rather than being skipped.
const anonymousTargetingKey = "__anonymous__"

// Context is the evaluation context passed by a caller: a stable
// targeting key (used for overrides and bucketing) plus arbitrary
// attributes consulted by segment constraints.
type Context struct {
	TargetingKey string
	Attributes   map[string]any
}

// Result is the deterministic output of Evaluate.
type Result struct {
	FlagKey    string      `json:"flag_key"`
	VariantKey string      `json:"variant_key"`
	Value      any         `json:"value"`
	Reason     model.Reason `json:"reason"`
	RuleID     string      `json:"rule_id,omitempty"`
}

// Evaluate resolves flagKey against cfg for ctx, falling back to
// defaultValue when the flag is missing or a referenced variant cannot be
// resolved. The algorithm is deterministic and ordered: lookup, disabled
// check, override, ranked segment-matched rules, default.
func Evaluate(cfg *snapshot.Config, flagKey string, ctx Context, defaultValue any) Result {
	flag, ok := cfg.Flags[flagKey]
	if !ok {
		return Result{FlagKey: flagKey, VariantKey: "", Value: defaultValue, Reason: model.ReasonFlagNotFound}
	}

	if !flag.Enabled {
		return resolveVariant(flag, flag.DefaultVariantID, flagKey, defaultValue, model.ReasonDisabled, "")
	}

	if ctx.TargetingKey != "" {
		if variantID, ok := flag.Overrides[ctx.TargetingKey]; ok {
			return resolveVariant(flag, variantID, flagKey, defaultValue, model.ReasonOverride, "")
		}
	}

	rules := make([]model.TargetingRule, len(flag.Rules))
	copy(rules, flag.Rules)
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Rank != rules[j].Rank {
			return rules[i].Rank < rules[j].Rank
		}
		return rules[i].ID < rules[j].ID
	})

	targetingKey := ctx.TargetingKey
	if targetingKey == "" {
		targetingKey = anonymousTargetingKey
	}

	for _, rule := range rules {
		if !ruleMatches(rule, cfg.Segments, ctx) {
			continue
		}
		if rule.VariantID != "" {
			return resolveVariant(flag, rule.VariantID, flagKey, defaultValue, model.ReasonRuleMatch, rule.ID)
		}
		if len(rule.Distributions) > 0 {
			bucket := hashing.Bucket(flagKey, targetingKey)
			variantID := walkDistributions(rule.Distributions, bucket)
			if variantID != "" {
				return resolveVariant(flag, variantID, flagKey, defaultValue, model.ReasonRuleMatch, rule.ID)
			}
		}
		// Degenerate rule (no variant_id, no distributions): fall through.
	}

	return resolveVariant(flag, flag.DefaultVariantID, flagKey, defaultValue, model.ReasonDefault, "")
}

// walkDistributions accumulates rollout_pct in stored order and returns the
// first variant whose cumulative threshold strictly exceeds bucket.
func walkDistributions(dists []model.RuleDistribution, bucket int) string {
	cumulative := 0
	for _, d := range dists {
		cumulative += d.RolloutPct
		if cumulative > bucket {
			return d.VariantID
		}
	}
	return "" // distributions under-sum the bucket space; caller falls through
}

// resolveVariant looks up variantID in flag.Variants; a missing variant
// substitutes defaultValue and an empty variant key. The same substitution
// applies everywhere a variant lookup can fail.
func resolveVariant(flag snapshot.FlagConfig, variantID, flagKey string, defaultValue any, reason model.Reason, ruleID string) Result {
	v, ok := flag.Variants[variantID]
	if !ok {
		return Result{FlagKey: flagKey, VariantKey: "", Value: defaultValue, Reason: reason, RuleID: ruleID}
	}
	return Result{FlagKey: flagKey, VariantKey: v.Key, Value: v.Value, Reason: reason, RuleID: ruleID}
}

// ruleMatches evaluates a rule's RuleSegments, AND-ing them together. A
// rule with zero segments is a catch-all.
func ruleMatches(rule model.TargetingRule, segments map[string]model.Segment, ctx Context) bool {
	if len(rule.Segments) == 0 {
		return true
	}
	for _, rs := range rule.Segments {
		seg, ok := segments[rs.SegmentID]
		if !ok {
			return false
		}
		matched := segmentMatches(seg, ctx)
		if rs.Negate {
			matched = !matched
		}
		if !matched {
			return false
		}
	}
	return true
}

// segmentMatches applies a segment's match_type across its constraints.
// "targetingKey" is a reserved attribute name pulling from ctx.TargetingKey;
// any other attribute is looked up in ctx.Attributes. A missing attribute
// makes the constraint evaluate false regardless of operator.
func segmentMatches(seg model.Segment, ctx Context) bool {
	if len(seg.Constraints) == 0 {
		return true
	}
	if seg.MatchType == model.MatchAny {
		for _, c := range seg.Constraints {
			if constraintMatches(c, ctx) {
				return true
			}
		}
		return false
	}
	for _, c := range seg.Constraints {
		if !constraintMatches(c, ctx) {
			return false
		}
	}
	return true
}

func constraintMatches(c model.SegmentConstraint, ctx Context) bool {
	var attr any
	var present bool
	if c.Attribute == "targetingKey" {
		attr = ctx.TargetingKey
		present = ctx.TargetingKey != ""
	} else {
		attr, present = ctx.Attributes[c.Attribute]
	}
	if !present {
		return false
	}
	return operators.Evaluate(c.Operator, attr, c.Values)
}
