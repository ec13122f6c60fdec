package engine_test

import (
	"fmt"
	"testing"

	"github.com/flagwell/flagwell/internal/engine"
	"github.com/flagwell/flagwell/internal/model"
	"github.com/flagwell/flagwell/internal/snapshot"
)

func emptyConfig() *snapshot.Config {
	return &snapshot.Config{Flags: map[string]snapshot.FlagConfig{}, Segments: map[string]model.Segment{}}
}

func TestFlagNotFound(t *testing.T) {
	result := engine.Evaluate(emptyConfig(), "x", engine.Context{}, false)
	if result.Reason != model.ReasonFlagNotFound || result.VariantKey != "" || result.Value != false {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestDisabledFlag(t *testing.T) {
	cfg := emptyConfig()
	cfg.Flags["f"] = snapshot.FlagConfig{
		Key:              "f",
		Enabled:          false,
		DefaultVariantID: "off",
		Variants: map[string]model.Variant{
			"on":  {ID: "on", Key: "on", Value: true},
			"off": {ID: "off", Key: "off", Value: false},
		},
	}
	result := engine.Evaluate(cfg, "f", engine.Context{}, true)
	if result.Reason != model.ReasonDisabled || result.VariantKey != "off" || result.Value != false {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestOverride(t *testing.T) {
	cfg := emptyConfig()
	cfg.Flags["f"] = snapshot.FlagConfig{
		Key:              "f",
		Enabled:          true,
		DefaultVariantID: "off",
		Variants: map[string]model.Variant{
			"on":  {ID: "on", Key: "on", Value: true},
			"off": {ID: "off", Key: "off", Value: false},
		},
		Overrides: map[string]string{"user-123": "on"},
	}

	match := engine.Evaluate(cfg, "f", engine.Context{TargetingKey: "user-123"}, false)
	if match.Reason != model.ReasonOverride || match.Value != true {
		t.Fatalf("unexpected result: %+v", match)
	}

	miss := engine.Evaluate(cfg, "f", engine.Context{TargetingKey: "user-456"}, false)
	if miss.Reason != model.ReasonDefault || miss.Value != false {
		t.Fatalf("unexpected result: %+v", miss)
	}
}

func countrySegmentConfig() (*snapshot.Config, string) {
	cfg := emptyConfig()
	cfg.Segments["seg-us"] = model.Segment{
		ID:        "seg-us",
		MatchType: model.MatchAll,
		Constraints: []model.SegmentConstraint{
			{Attribute: "country", Operator: model.OpEq, Values: []string{"US"}},
		},
	}
	cfg.Flags["f"] = snapshot.FlagConfig{
		Key:              "f",
		Enabled:          true,
		DefaultVariantID: "off",
		Variants: map[string]model.Variant{
			"on":  {ID: "on", Key: "on", Value: true},
			"off": {ID: "off", Key: "off", Value: false},
		},
		Rules: []model.TargetingRule{
			{ID: "r1", Rank: 1, VariantID: "on", Segments: []model.RuleSegment{{SegmentID: "seg-us"}}},
		},
	}
	return cfg, "f"
}

func TestSegmentRule(t *testing.T) {
	cfg, key := countrySegmentConfig()

	us := engine.Evaluate(cfg, key, engine.Context{TargetingKey: "u1", Attributes: map[string]any{"country": "US"}}, false)
	if us.Reason != model.ReasonRuleMatch || us.VariantKey != "on" {
		t.Fatalf("unexpected US result: %+v", us)
	}

	uk := engine.Evaluate(cfg, key, engine.Context{TargetingKey: "u2", Attributes: map[string]any{"country": "UK"}}, false)
	if uk.Reason != model.ReasonDefault || uk.VariantKey != "off" {
		t.Fatalf("unexpected UK result: %+v", uk)
	}
}

func TestPercentageRollout(t *testing.T) {
	cfg := emptyConfig()
	cfg.Flags["f"] = snapshot.FlagConfig{
		Key:              "f",
		Enabled:          true,
		DefaultVariantID: "off",
		Variants: map[string]model.Variant{
			"on":  {ID: "on", Key: "on", Value: true},
			"off": {ID: "off", Key: "off", Value: false},
		},
		Rules: []model.TargetingRule{
			{ID: "r1", Rank: 1, Distributions: []model.RuleDistribution{
				{VariantID: "on", RolloutPct: 5000},
				{VariantID: "off", RolloutPct: 5000},
			}},
		},
	}

	onCount := 0
	const n = 10000
	for i := 0; i < n; i++ {
		ctx := engine.Context{TargetingKey: fmt.Sprintf("user-%d", i)}
		result := engine.Evaluate(cfg, "f", ctx, false)
		if result.VariantKey == "on" {
			onCount++
		}
	}
	frac := float64(onCount) / float64(n)
	if frac < 0.45 || frac > 0.55 {
		t.Fatalf("expected rollout fraction within [0.45, 0.55], got %f", frac)
	}
}

func TestRuleOrdering(t *testing.T) {
	cfg := emptyConfig()
	cfg.Flags["f"] = snapshot.FlagConfig{
		Key:              "f",
		Enabled:          true,
		DefaultVariantID: "a",
		Variants: map[string]model.Variant{
			"a": {ID: "a", Key: "a", Value: "a"},
			"b": {ID: "b", Key: "b", Value: "b"},
		},
		Rules: []model.TargetingRule{
			{ID: "rule-b", Rank: 2, VariantID: "b"}, // stored first, ranked second
			{ID: "rule-a", Rank: 1, VariantID: "a"}, // stored second, ranked first
		},
	}
	result := engine.Evaluate(cfg, "f", engine.Context{TargetingKey: "u"}, nil)
	if result.VariantKey != "a" {
		t.Fatalf("expected lower-rank rule to win regardless of storage order, got %+v", result)
	}
}

func TestNegatedSegment(t *testing.T) {
	cfg := emptyConfig()
	cfg.Segments["beta"] = model.Segment{
		ID:        "beta",
		MatchType: model.MatchAll,
		Constraints: []model.SegmentConstraint{
			{Attribute: "beta", Operator: model.OpEq, Values: []string{"true"}},
		},
	}
	cfg.Flags["f"] = snapshot.FlagConfig{
		Key:              "f",
		Enabled:          true,
		DefaultVariantID: "off",
		Variants: map[string]model.Variant{
			"on":  {ID: "on", Key: "on", Value: true},
			"off": {ID: "off", Key: "off", Value: false},
		},
		Rules: []model.TargetingRule{
			{ID: "r1", Rank: 1, VariantID: "on", Segments: []model.RuleSegment{{SegmentID: "beta", Negate: true}}},
		},
	}

	notBeta := engine.Evaluate(cfg, "f", engine.Context{TargetingKey: "u1", Attributes: map[string]any{"beta": false}}, false)
	if notBeta.Reason != model.ReasonRuleMatch {
		t.Fatalf("expected negated segment to match non-beta user: %+v", notBeta)
	}

	isBeta := engine.Evaluate(cfg, "f", engine.Context{TargetingKey: "u2", Attributes: map[string]any{"beta": true}}, false)
	if isBeta.Reason != model.ReasonDefault {
		t.Fatalf("expected negated segment to reject beta user: %+v", isBeta)
	}
}

func TestDeterministicAcrossCalls(t *testing.T) {
	cfg, key := countrySegmentConfig()
	ctx := engine.Context{TargetingKey: "u1", Attributes: map[string]any{"country": "US"}}
	first := engine.Evaluate(cfg, key, ctx, false)
	second := engine.Evaluate(cfg, key, ctx, false)
	if first != second {
		t.Fatalf("expected identical results across calls: %+v != %+v", first, second)
	}
}
