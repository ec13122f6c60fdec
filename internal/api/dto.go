package api

import "github.com/flagwell/flagwell/internal/model"

// setupResponse is returned by POST /api/v1/setup.
type setupResponse struct {
	Project      model.Project              `json:"project"`
	Environments []model.Environment        `json:"environments"`
	SDKKeys      []sdkCredentialWithSecret  `json:"sdk_keys"`
}

type setupRequest struct {
	ProjectName string `json:"project_name"`
}

type createProjectRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type createEnvironmentRequest struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

type createFlagRequest struct {
	Key         string         `json:"key"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	FlagType    model.FlagType `json:"flag_type"`
	Tags        []string       `json:"tags,omitempty"`
	Variants    []model.Variant `json:"variants"`
}

// updateFlagRequest is the full per-environment PUT body: there is no
// separate targeting-rule route, so rules/overrides/toggle/default all
// travel together as one document keyed to an environment_id.
type updateFlagRequest struct {
	Name             string                 `json:"name,omitempty"`
	Description      string                 `json:"description,omitempty"`
	Tags             []string               `json:"tags,omitempty"`
	Archived         *bool                  `json:"archived,omitempty"`
	Variants         []model.Variant        `json:"variants,omitempty"`
	EnvironmentID    string                 `json:"environment_id,omitempty"`
	Enabled          *bool                  `json:"enabled,omitempty"`
	DefaultVariantID string                 `json:"default_variant_id,omitempty"`
	Rules            []model.TargetingRule  `json:"rules,omitempty"`
	Overrides        []model.Override       `json:"overrides,omitempty"`
}

type toggleFlagRequest struct {
	Enabled       bool   `json:"enabled"`
	EnvironmentID string `json:"environment_id"`
}

type createSegmentRequest struct {
	Key         string                     `json:"key"`
	Name        string                     `json:"name"`
	MatchType   model.MatchType            `json:"match_type"`
	Constraints []model.SegmentConstraint  `json:"constraints"`
}

type createSDKKeyRequest struct {
	EnvironmentID string               `json:"environment_id"`
	Type          model.CredentialType `json:"type"`
	Name          string               `json:"name"`
}

// sdkCredentialWithSecret is the create-time response shape: the plaintext
// secret is shown exactly once and never persisted.
type sdkCredentialWithSecret struct {
	model.SDKCredential
	Secret string `json:"secret"`
}

type createWebhookRequest struct {
	URL            string   `json:"url"`
	Environments   []string `json:"environments,omitempty"`
	MaxRetries     int      `json:"max_retries,omitempty"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"`
}

// webhookWithSecret is the create-time response shape: model.Webhook keeps
// Secret unexported from JSON everywhere else, but the signing secret must
// be shown once at creation so the caller can configure their receiver.
type webhookWithSecret struct {
	model.Webhook
	Secret string `json:"secret"`
}

type evaluateRequest struct {
	FlagKey      string         `json:"flag_key"`
	Context      evaluateContext `json:"context"`
	DefaultValue any            `json:"default_value"`
}

type evaluateContext struct {
	TargetingKey string         `json:"targeting_key"`
	Attributes   map[string]any `json:"attributes"`
}

type evaluateBatchRequest struct {
	Context evaluateContext      `json:"context"`
	Flags   []evaluateBatchItem  `json:"flags"`
}

type evaluateBatchItem struct {
	FlagKey      string          `json:"flag_key"`
	Context      *evaluateContext `json:"context,omitempty"`
	DefaultValue any             `json:"default_value"`
}
