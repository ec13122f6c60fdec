// Package snapshot builds the immutable per-(project, environment) bundle
// of flags, segments, and version that the evaluation engine consumes.
//
// A Config is a plain value, not a global. The engine (internal/engine)
// never holds a live handle to mutable storage; callers rebuild a fresh
// Config on cache miss or change notification and hand it to the engine by
// reference. Concurrent evaluations safely share one Config because it is
// never mutated after Build returns it.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/flagwell/flagwell/internal/model"
	"github.com/flagwell/flagwell/internal/store"
)

// FlagConfig is one flag's evaluation-ready state for a single environment:
// its enabled/default state plus its variants, rules, and overrides,
// indexed for O(1) lookup during evaluation.
type FlagConfig struct {
	Key              string
	FlagType         model.FlagType
	Enabled          bool
	DefaultVariantID string
	Variants         map[string]model.Variant // keyed by variant id
	Rules            []model.TargetingRule    // storage order; engine sorts by rank
	Overrides        map[string]string        // targeting_key -> variant id, first-wins already resolved
}

// Config is the immutable snapshot consumed by internal/engine.
type Config struct {
	ProjectID     string
	EnvironmentID string
	Version       int64
	ETag          string
	Flags         map[string]FlagConfig  // keyed by flag key
	Segments      map[string]model.Segment // keyed by segment id
}

// Build materializes a Config for (projectID, environmentID) from the
// durable store: flags missing a FlagEnvironment row are omitted; a
// missing/invalid default_variant_id falls back to the first variant;
// unknown flag_type coerces to boolean; unknown match_type coerces to
// "all".
func Build(ctx context.Context, st store.Store, projectID, environmentID string) (*Config, error) {
	src, err := st.LoadSnapshotSource(ctx, projectID, environmentID)
	if err != nil {
		return nil, err
	}

	flags := make(map[string]FlagConfig, len(src.Flags))
	for _, f := range src.Flags {
		fe, ok := src.FlagEnvironments[f.ID]
		if !ok {
			continue // no per-environment row: omitted from the snapshot
		}

		variants := make(map[string]model.Variant, len(f.Variants))
		for _, v := range f.Variants {
			variants[v.ID] = v
		}

		defaultVariantID := fe.DefaultVariantID
		if _, ok := variants[defaultVariantID]; !ok && len(f.Variants) > 0 {
			defaultVariantID = f.Variants[0].ID
		}

		flagType := f.FlagType
		switch flagType {
		case model.FlagTypeBoolean, model.FlagTypeString, model.FlagTypeNumber, model.FlagTypeJSON:
		default:
			flagType = model.FlagTypeBoolean
		}

		overrides := make(map[string]string, len(fe.Overrides))
		for _, o := range fe.Overrides {
			if _, exists := overrides[o.TargetingKey]; !exists {
				overrides[o.TargetingKey] = o.VariantID // first encountered wins
			}
		}

		flags[f.Key] = FlagConfig{
			Key:              f.Key,
			FlagType:         flagType,
			Enabled:          fe.Enabled,
			DefaultVariantID: defaultVariantID,
			Variants:         variants,
			Rules:            fe.Rules,
			Overrides:        overrides,
		}
	}

	segments := make(map[string]model.Segment, len(src.Segments))
	for _, seg := range src.Segments {
		if seg.MatchType != model.MatchAny {
			seg.MatchType = model.MatchAll
		}
		for i := range seg.Constraints {
			if !isKnownOperator(seg.Constraints[i].Operator) {
				seg.Constraints[i].Operator = model.OpEq
			}
		}
		segments[seg.ID] = seg
	}

	version := src.Version
	if version == 0 {
		version = 1
	}

	cfg := &Config{
		ProjectID:     projectID,
		EnvironmentID: environmentID,
		Version:       version,
		Flags:         flags,
		Segments:      segments,
	}
	cfg.ETag = computeETag(cfg)
	return cfg, nil
}

func isKnownOperator(op model.Operator) bool {
	switch op {
	case model.OpEq, model.OpNeq, model.OpGt, model.OpGte, model.OpLt, model.OpLte,
		model.OpIn, model.OpNotIn, model.OpContains, model.OpStartsWith, model.OpEndsWith,
		model.OpMatches, model.OpSemverEq, model.OpSemverGt, model.OpSemverLt:
		return true
	default:
		return false
	}
}

// computeETag derives a weak ETag over the config's content so identical
// snapshots compare equal regardless of when they were built.
func computeETag(cfg *Config) string {
	serialized, _ := json.Marshal(struct {
		Flags    map[string]FlagConfig     `json:"flags"`
		Segments map[string]model.Segment  `json:"segments"`
		Version  int64                     `json:"version"`
	}{cfg.Flags, cfg.Segments, cfg.Version})
	hash := sha256.Sum256(serialized)
	return `W/"` + hex.EncodeToString(hash[:]) + `"`
}

// MarshalJSON renders the Config in the wire shape used by the stream and
// flags-config endpoints: {flags, segments, version}.
func (c *Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Flags    map[string]FlagConfig    `json:"flags"`
		Segments map[string]model.Segment `json:"segments"`
		Version  int64                    `json:"version"`
	}{c.Flags, c.Segments, c.Version})
}

// cacheEnvelope is the internal (not wire-facing) encoding used by
// internal/cache, which additionally needs ProjectID/EnvironmentID/ETag
// restored on a cache hit.
type cacheEnvelope struct {
	ProjectID     string                   `json:"project_id"`
	EnvironmentID string                   `json:"environment_id"`
	Version       int64                    `json:"version"`
	ETag          string                   `json:"etag"`
	Flags         map[string]FlagConfig    `json:"flags"`
	Segments      map[string]model.Segment `json:"segments"`
}

// Encode serializes the full Config, including fields not present in the
// public wire format, for storage in the external snapshot cache.
func (c *Config) Encode() ([]byte, error) {
	return json.Marshal(cacheEnvelope{
		ProjectID:     c.ProjectID,
		EnvironmentID: c.EnvironmentID,
		Version:       c.Version,
		ETag:          c.ETag,
		Flags:         c.Flags,
		Segments:      c.Segments,
	})
}

// Decode reverses Encode.
func Decode(raw []byte) (*Config, error) {
	var env cacheEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &Config{
		ProjectID:     env.ProjectID,
		EnvironmentID: env.EnvironmentID,
		Version:       env.Version,
		ETag:          env.ETag,
		Flags:         env.Flags,
		Segments:      env.Segments,
	}, nil
}
