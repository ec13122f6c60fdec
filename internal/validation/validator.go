// Package validation provides request-payload validation for the
// management API: flag/segment key format, variant value/type
// compatibility, and write-time checks for distribution sums and rule
// reference existence, enforced here rather than left for the engine to
// silently paper over at evaluation time.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/flagwell/flagwell/internal/model"
)

const (
	// MaxKeyLength is the maximum length for flag, variant, and segment keys.
	MaxKeyLength = 64
	// MaxDescriptionLength is the maximum length for descriptions.
	MaxDescriptionLength = 500
	// TotalBasisPoints is the required sum of a rule's distribution rollout_pct values.
	TotalBasisPoints = 10000
)

// keyPattern matches alphanumeric characters, underscores, and hyphens.
var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidationResult holds field-level validation errors.
type ValidationResult struct {
	Valid  bool
	Errors map[string]string
}

// NewValidationResult creates an empty, valid result.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{Valid: true, Errors: make(map[string]string)}
}

// AddError records a field error and marks the result invalid.
func (v *ValidationResult) AddError(field, message string) {
	v.Valid = false
	v.Errors[field] = message
}

// Merge folds another result's errors into this one.
func (v *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	for field, message := range other.Errors {
		v.AddError(field, message)
	}
}

// ValidateKey validates a flag, variant, or segment key.
func ValidateKey(field, key string) *ValidationResult {
	result := NewValidationResult()
	key = strings.TrimSpace(key)

	if key == "" {
		result.AddError(field, "key is required")
		return result
	}
	if utf8.RuneCountInString(key) > MaxKeyLength {
		result.AddError(field, fmt.Sprintf("key must not exceed %d characters", MaxKeyLength))
		return result
	}
	if !keyPattern.MatchString(key) {
		result.AddError(field, "key must contain only alphanumeric characters, underscores, and hyphens")
	}
	return result
}

// ValidateDescription validates an optional free-text description.
func ValidateDescription(description string) *ValidationResult {
	result := NewValidationResult()
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		result.AddError("description", fmt.Sprintf("description must not exceed %d characters", MaxDescriptionLength))
	}
	return result
}

// ValidateFlagType rejects any flag_type outside the closed set. Unlike
// snapshot.Build (which coerces an unknown flag_type to boolean for
// resilience when reading already-stored data), writes reject it outright.
func ValidateFlagType(t model.FlagType) *ValidationResult {
	result := NewValidationResult()
	switch t {
	case model.FlagTypeBoolean, model.FlagTypeString, model.FlagTypeNumber, model.FlagTypeJSON:
	default:
		result.AddError("flag_type", fmt.Sprintf("unknown flag_type %q", t))
	}
	return result
}

// ValidateVariants checks that a flag's variants have unique, valid keys
// and that each variant's value is shape-compatible with flagType. This is
// where that compatibility is enforced; the engine never checks it.
func ValidateVariants(variants []model.Variant, flagType model.FlagType) *ValidationResult {
	result := NewValidationResult()
	if len(variants) == 0 {
		result.AddError("variants", "flag must declare at least one variant")
		return result
	}

	seen := make(map[string]bool, len(variants))
	for i, v := range variants {
		field := fmt.Sprintf("variants[%d]", i)
		result.Merge(ValidateKey(field+".key", v.Key))
		if seen[v.Key] {
			result.AddError(field+".key", fmt.Sprintf("duplicate variant key %q", v.Key))
		}
		seen[v.Key] = true

		if !valueMatchesType(v.Value, flagType) {
			result.AddError(field+".value", fmt.Sprintf("value is not compatible with flag_type %q", flagType))
		}
	}
	return result
}

func valueMatchesType(value any, flagType model.FlagType) bool {
	switch flagType {
	case model.FlagTypeBoolean:
		_, ok := value.(bool)
		return ok
	case model.FlagTypeString:
		_, ok := value.(string)
		return ok
	case model.FlagTypeNumber:
		_, ok := value.(float64)
		return ok
	case model.FlagTypeJSON:
		return true // any JSON shape is valid for a json-typed variant
	default:
		return false
	}
}

// ValidateDefaultVariant checks that defaultVariantID references one of
// variants.
func ValidateDefaultVariant(defaultVariantID string, variants []model.Variant) *ValidationResult {
	result := NewValidationResult()
	for _, v := range variants {
		if v.ID == defaultVariantID {
			return result
		}
	}
	result.AddError("default_variant_id", "must reference a variant of this flag")
	return result
}

// ValidateDistributions checks a rule's percentage-rollout distributions:
// every referenced variant must exist on the flag, and rollout_pct must
// sum to exactly TotalBasisPoints. Enforced at write time so a client
// cannot silently under-serve users bucketed above an incomplete
// cumulative threshold.
func ValidateDistributions(dists []model.RuleDistribution, variantIDs map[string]bool) *ValidationResult {
	result := NewValidationResult()
	if len(dists) == 0 {
		return result
	}

	sum := 0
	for i, d := range dists {
		field := fmt.Sprintf("distributions[%d]", i)
		if !variantIDs[d.VariantID] {
			result.AddError(field+".variant_id", fmt.Sprintf("references unknown variant %q", d.VariantID))
		}
		if d.RolloutPct < 0 || d.RolloutPct > TotalBasisPoints {
			result.AddError(field+".rollout_pct", fmt.Sprintf("must be between 0 and %d", TotalBasisPoints))
		}
		sum += d.RolloutPct
	}
	if sum != TotalBasisPoints {
		result.AddError("distributions", fmt.Sprintf("rollout_pct must sum to exactly %d basis points, got %d", TotalBasisPoints, sum))
	}
	return result
}

// ValidateRule checks one targeting rule's shape: it must resolve to
// either a direct variant or a non-empty distributions list (never
// neither), and every referenced segment must exist.
func ValidateRule(rule model.TargetingRule, variantIDs, segmentIDs map[string]bool) *ValidationResult {
	result := NewValidationResult()

	if rule.VariantID == "" && len(rule.Distributions) == 0 {
		result.AddError("rule", "must set either variant_id or a non-empty distributions list")
	}
	if rule.VariantID != "" && !variantIDs[rule.VariantID] {
		result.AddError("rule.variant_id", fmt.Sprintf("references unknown variant %q", rule.VariantID))
	}
	if len(rule.Distributions) > 0 {
		result.Merge(ValidateDistributions(rule.Distributions, variantIDs))
	}
	for i, rs := range rule.Segments {
		if !segmentIDs[rs.SegmentID] {
			result.AddError(fmt.Sprintf("rule.segments[%d]", i), fmt.Sprintf("references unknown segment %q", rs.SegmentID))
		}
	}
	return result
}

// ValidateOperator rejects any operator outside the closed set. Unlike
// snapshot.Build (which coerces an unknown stored operator to eq for
// resilience), writes reject it outright.
func ValidateOperator(op model.Operator) *ValidationResult {
	result := NewValidationResult()
	switch op {
	case model.OpEq, model.OpNeq, model.OpGt, model.OpGte, model.OpLt, model.OpLte,
		model.OpIn, model.OpNotIn, model.OpContains, model.OpStartsWith, model.OpEndsWith,
		model.OpMatches, model.OpSemverEq, model.OpSemverGt, model.OpSemverLt:
	default:
		result.AddError("operator", fmt.Sprintf("unknown operator %q", op))
	}
	return result
}

// ValidateSegment checks a segment's match_type and each constraint's
// operator and non-empty values list.
func ValidateSegment(seg model.Segment) *ValidationResult {
	result := NewValidationResult()
	result.Merge(ValidateKey("key", seg.Key))

	switch seg.MatchType {
	case model.MatchAll, model.MatchAny:
	default:
		result.AddError("match_type", fmt.Sprintf("unknown match_type %q", seg.MatchType))
	}

	for i, c := range seg.Constraints {
		field := fmt.Sprintf("constraints[%d]", i)
		if strings.TrimSpace(c.Attribute) == "" {
			result.AddError(field+".attribute", "attribute is required")
		}
		result.Merge(ValidateOperator(c.Operator))
		if len(c.Values) == 0 {
			result.AddError(field+".values", "must list at least one constraint value")
		}
	}
	return result
}
