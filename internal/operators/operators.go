// Package operators implements the pure, total operator evaluator: given an
// operator, an attribute value of arbitrary JSON shape, and an ordered list
// of string constraint values, it decides a match. No call ever panics or
// errors; any coercion failure collapses to false.
package operators

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/flagwell/flagwell/internal/model"
)

// regexCache holds compiled *regexp.Regexp by pattern for the matches operator.
var regexCache sync.Map

// Evaluate applies op to attr against cv, evaluating left-to-right with
// short-circuit OR across cv entries (except neq/not_in, which negate the
// corresponding positive operator).
func Evaluate(op model.Operator, attr any, cv []string) bool {
	switch op {
	case model.OpEq:
		return anyMatch(attr, cv, eqOne)
	case model.OpNeq:
		return !anyMatch(attr, cv, eqOne)
	case model.OpGt:
		return anyMatch(attr, cv, gtOne)
	case model.OpGte:
		return anyMatch(attr, cv, gteOne)
	case model.OpLt:
		return anyMatch(attr, cv, ltOne)
	case model.OpLte:
		return anyMatch(attr, cv, lteOne)
	case model.OpIn:
		return inList(attr, cv)
	case model.OpNotIn:
		return !inList(attr, cv)
	case model.OpContains:
		return anyMatch(attr, cv, containsOne)
	case model.OpStartsWith:
		return anyMatch(attr, cv, startsWithOne)
	case model.OpEndsWith:
		return anyMatch(attr, cv, endsWithOne)
	case model.OpMatches:
		return anyMatch(attr, cv, matchesOne)
	case model.OpSemverEq:
		return anyMatch(attr, cv, semverCmp(func(a, b *semver.Version) bool { return a.Equal(b) }))
	case model.OpSemverGt:
		return anyMatch(attr, cv, semverCmp(func(a, b *semver.Version) bool { return a.GreaterThan(b) }))
	case model.OpSemverLt:
		return anyMatch(attr, cv, semverCmp(func(a, b *semver.Version) bool { return a.LessThan(b) }))
	default:
		return false
	}
}

// anyMatch evaluates, for non-array attr, pred(attr, v) for each v in cv,
// short-circuiting true. Array attr is handled by in/not_in separately:
// an array attribute returns false for all other operators.
func anyMatch(attr any, cv []string, pred func(attr any, v string) bool) bool {
	if isArray(attr) {
		return false
	}
	for _, v := range cv {
		if pred(attr, v) {
			return true
		}
	}
	return false
}

func isArray(v any) bool {
	switch v.(type) {
	case []any, []string:
		return true
	default:
		return false
	}
}

// inList implements both `in` (and, negated, `not_in`). An array attribute
// matches if any element, coerced to string, appears in cv.
func inList(attr any, cv []string) bool {
	if isArray(attr) {
		elems, ok := toStringSlice(attr)
		if !ok {
			return false
		}
		for _, e := range elems {
			for _, v := range cv {
				if e == v {
					return true
				}
			}
		}
		return false
	}
	s, ok := toString(attr)
	if !ok {
		return false
	}
	for _, v := range cv {
		if s == v {
			return true
		}
	}
	return false
}

func eqOne(attr any, v string) bool {
	s, ok := toString(attr)
	return ok && s == v
}

func gtOne(attr any, v string) bool   { return numCmp(attr, v, func(a, b float64) bool { return a > b }) }
func gteOne(attr any, v string) bool  { return numCmp(attr, v, func(a, b float64) bool { return a >= b }) }
func ltOne(attr any, v string) bool   { return numCmp(attr, v, func(a, b float64) bool { return a < b }) }
func lteOne(attr any, v string) bool  { return numCmp(attr, v, func(a, b float64) bool { return a <= b }) }

func numCmp(attr any, v string, cmp func(a, b float64) bool) bool {
	a, ok := toFloat64(attr)
	if !ok {
		return false
	}
	b, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return false
	}
	return cmp(a, b)
}

func containsOne(attr any, v string) bool {
	s, ok := toString(attr)
	return ok && strings.Contains(s, v)
}

func startsWithOne(attr any, v string) bool {
	s, ok := toString(attr)
	return ok && strings.HasPrefix(s, v)
}

func endsWithOne(attr any, v string) bool {
	s, ok := toString(attr)
	return ok && strings.HasSuffix(s, v)
}

func matchesOne(attr any, pattern string) bool {
	s, ok := toString(attr)
	if !ok {
		return false
	}
	rx, ok := compiledRegex(pattern)
	if !ok {
		return false
	}
	return rx.MatchString(s)
}

func compiledRegex(pattern string) (*regexp.Regexp, bool) {
	if cached, ok := regexCache.Load(pattern); ok {
		rx, ok := cached.(*regexp.Regexp)
		return rx, ok
	}
	rx, err := regexp.Compile(pattern)
	if err != nil {
		return nil, false
	}
	regexCache.Store(pattern, rx)
	return rx, true
}

func semverCmp(cmp func(a, b *semver.Version) bool) func(attr any, v string) bool {
	return func(attr any, v string) bool {
		s, ok := toString(attr)
		if !ok {
			return false
		}
		av, err := semver.NewVersion(s)
		if err != nil {
			return false
		}
		bv, err := semver.NewVersion(v)
		if err != nil {
			return false
		}
		return cmp(av, bv)
	}
}

// toString implements the attr→string coercion rule: strings pass through,
// numbers render in canonical decimal form, bools render as "true"/"false".
func toString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true
	default:
		return "", false
	}
}

func toFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toStringSlice(v any) ([]string, bool) {
	switch vals := v.(type) {
	case []string:
		return vals, true
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			s, ok := toString(item)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
