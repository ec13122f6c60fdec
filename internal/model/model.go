// Package model defines the entity types shared across the flag-evaluation
// and config-distribution core: projects, environments, flags and their
// per-environment state, targeting rules, segments, and SDK credentials.
package model

import "time"

// FlagType constrains a flag's variant values.
type FlagType string

const (
	FlagTypeBoolean FlagType = "boolean"
	FlagTypeString  FlagType = "string"
	FlagTypeNumber  FlagType = "number"
	FlagTypeJSON    FlagType = "json"
)

// Operator is one member of the closed operator set consumed by internal/operators.
type Operator string

const (
	OpEq         Operator = "eq"
	OpNeq        Operator = "neq"
	OpGt         Operator = "gt"
	OpGte        Operator = "gte"
	OpLt         Operator = "lt"
	OpLte        Operator = "lte"
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
	OpMatches    Operator = "matches"
	OpSemverEq   Operator = "semver_eq"
	OpSemverGt   Operator = "semver_gt"
	OpSemverLt   Operator = "semver_lt"
)

// MatchType controls how a Segment's constraints combine.
type MatchType string

const (
	MatchAll MatchType = "all"
	MatchAny MatchType = "any"
)

// Reason is the closed set of evaluation outcomes returned by internal/engine.
type Reason string

const (
	ReasonFlagNotFound Reason = "flag_not_found"
	ReasonDisabled     Reason = "disabled"
	ReasonOverride     Reason = "override"
	ReasonRuleMatch    Reason = "rule_match"
	ReasonDefault      Reason = "default"
	ReasonError        Reason = "error"
)

// CredentialType distinguishes SDK credential kinds.
type CredentialType string

const (
	CredentialServer CredentialType = "server"
	CredentialClient CredentialType = "client"
)

// Prefix returns the wire prefix for each CredentialType.
func (t CredentialType) Prefix() string {
	switch t {
	case CredentialServer:
		return "srv_"
	case CredentialClient:
		return "cli_"
	default:
		return ""
	}
}

type Project struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Environment struct {
	ID        string    `json:"id" db:"id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	Key       string    `json:"key" db:"key"`
	Name      string    `json:"name" db:"name"`
	SortOrder int       `json:"sort_order" db:"sort_order"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Variant struct {
	ID          string `json:"id" db:"id"`
	FlagID      string `json:"flag_id" db:"flag_id"`
	Key         string `json:"key" db:"key"`
	Value       any    `json:"value" db:"value"`
	Description string `json:"description,omitempty" db:"description"`
}

type Flag struct {
	ID          string    `json:"id" db:"id"`
	ProjectID   string    `json:"project_id" db:"project_id"`
	Key         string    `json:"key" db:"key"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	FlagType    FlagType  `json:"flag_type" db:"flag_type"`
	Tags        []string  `json:"tags,omitempty" db:"tags"`
	Archived    bool      `json:"archived" db:"archived"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	Variants    []Variant `json:"variants"`
}

// FlagEnvironment holds per-(flag,environment) mutable evaluation state.
type FlagEnvironment struct {
	FlagID            string          `json:"flag_id" db:"flag_id"`
	EnvironmentID     string          `json:"environment_id" db:"environment_id"`
	Enabled           bool            `json:"enabled" db:"enabled"`
	DefaultVariantID  string          `json:"default_variant_id" db:"default_variant_id"`
	Rules             []TargetingRule `json:"rules"`
	Overrides         []Override      `json:"overrides"`
}

type RuleSegment struct {
	SegmentID string `json:"segment_id" db:"segment_id"`
	Negate    bool   `json:"negate" db:"negate"`
}

type RuleDistribution struct {
	VariantID  string `json:"variant_id" db:"variant_id"`
	RolloutPct int    `json:"rollout_pct" db:"rollout_pct"`
}

type TargetingRule struct {
	ID            string             `json:"id" db:"id"`
	Rank          int32              `json:"rank" db:"rank"`
	Description   string             `json:"description,omitempty" db:"description"`
	VariantID     string             `json:"variant_id,omitempty" db:"variant_id"`
	Distributions []RuleDistribution `json:"distributions,omitempty"`
	Segments      []RuleSegment      `json:"segments,omitempty"`
}

type Override struct {
	TargetingKey string `json:"targeting_key" db:"targeting_key"`
	VariantID    string `json:"variant_id" db:"variant_id"`
}

type SegmentConstraint struct {
	Attribute string   `json:"attribute" db:"attribute"`
	Operator  Operator `json:"operator" db:"operator"`
	Values    []string `json:"values" db:"values"`
}

type Segment struct {
	ID          string              `json:"id" db:"id"`
	ProjectID   string              `json:"project_id" db:"project_id"`
	Key         string              `json:"key" db:"key"`
	Name        string              `json:"name" db:"name"`
	MatchType   MatchType           `json:"match_type" db:"match_type"`
	Constraints []SegmentConstraint `json:"constraints"`
}

// ConfigVersion tracks the monotonic version counter for one environment.
type ConfigVersion struct {
	EnvironmentID string `json:"environment_id" db:"environment_id"`
	Version       int64  `json:"version" db:"version"`
}

// SDKCredential is a management-issued credential used by the evaluate/stream
// surfaces. The plaintext key is shown once at creation; KeyHash persists.
type SDKCredential struct {
	ID            string         `json:"id" db:"id"`
	EnvironmentID string         `json:"environment_id" db:"environment_id"`
	Type          CredentialType `json:"type" db:"type"`
	Name          string         `json:"name" db:"name"`
	KeyHash       string         `json:"-" db:"key_hash"`
	KeyPrefix     string         `json:"key_prefix" db:"key_prefix"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	RevokedAt     *time.Time     `json:"revoked_at,omitempty" db:"revoked_at"`
}

func (c SDKCredential) Revoked() bool { return c.RevokedAt != nil }

// AuditEntry is the minimal shape exposed at the audit-log route; the full
// record shape lives with the store adapter, specified only at the HTTP
// boundary here.
type AuditEntry struct {
	ID           string    `json:"id" db:"id"`
	ProjectID    string    `json:"project_id,omitempty" db:"project_id"`
	ActorID      string    `json:"actor_id" db:"actor_id"`
	ActorKind    string    `json:"actor_kind" db:"actor_kind"`
	Action       string    `json:"action" db:"action"`
	ResourceType string    `json:"resource_type,omitempty" db:"resource_type"`
	ResourceID   string    `json:"resource_id" db:"resource_id"`
	Status       string    `json:"status" db:"status"`
	IPAddress    string    `json:"ip_address,omitempty" db:"ip_address"`
	OccurredAt   time.Time `json:"occurred_at" db:"occurred_at"`
}

// Webhook is a registered external URL notified on config changes.
type Webhook struct {
	ID             string     `json:"id" db:"id"`
	ProjectID      string     `json:"project_id" db:"project_id"`
	URL            string     `json:"url" db:"url"`
	Secret         string     `json:"-" db:"secret"`
	Environments   []string   `json:"environments,omitempty" db:"environments"`
	MaxRetries     int        `json:"max_retries" db:"max_retries"`
	TimeoutSeconds int        `json:"timeout_seconds" db:"timeout_seconds"`
	Active         bool       `json:"active" db:"active"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	LastTriggered  *time.Time `json:"last_triggered,omitempty" db:"last_triggered"`
}

// WebhookDelivery records one delivery attempt for a Webhook.
type WebhookDelivery struct {
	ID           string    `json:"id" db:"id"`
	WebhookID    string    `json:"webhook_id" db:"webhook_id"`
	EventType    string    `json:"event_type" db:"event_type"`
	StatusCode   int       `json:"status_code,omitempty" db:"status_code"`
	Success      bool      `json:"success" db:"success"`
	ErrorMessage string    `json:"error_message,omitempty" db:"error_message"`
	DurationMs   int       `json:"duration_ms,omitempty" db:"duration_ms"`
	RetryCount   int       `json:"retry_count" db:"retry_count"`
	OccurredAt   time.Time `json:"occurred_at" db:"occurred_at"`
}
