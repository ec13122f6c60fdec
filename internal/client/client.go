// Package client is a thin Go binding for the flagwell HTTP API, used by
// cmd/flagship and anything else that would rather speak Go structs than
// hand-roll requests.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flagwell/flagwell/internal/engine"
	"github.com/flagwell/flagwell/internal/model"
	"github.com/flagwell/flagwell/internal/snapshot"
)

// Client is a management-surface HTTP client authenticated with a bearer
// (management) token. SDK-credentialed evaluation traffic goes through
// Cached instead, which holds a local snapshot and never touches the
// network per call.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient builds a Client against baseURL, authenticating every request
// with the given bearer token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ListProjects returns every project visible to the caller's principal.
func (c *Client) ListProjects(ctx context.Context) ([]model.Project, error) {
	var projects []model.Project
	err := c.do(ctx, http.MethodGet, "/api/v1/projects", nil, &projects)
	return projects, err
}

// GetProject fetches one project by ID.
func (c *Client) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	var project model.Project
	if err := c.do(ctx, http.MethodGet, "/api/v1/projects/"+projectID, nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// ListEnvironments returns the environments configured for a project.
func (c *Client) ListEnvironments(ctx context.Context, projectID string) ([]model.Environment, error) {
	var environments []model.Environment
	err := c.do(ctx, http.MethodGet, "/api/v1/projects/"+projectID+"/environments", nil, &environments)
	return environments, err
}

// ListFlags returns every flag defined for a project.
func (c *Client) ListFlags(ctx context.Context, projectID string) ([]model.Flag, error) {
	var flags []model.Flag
	err := c.do(ctx, http.MethodGet, "/api/v1/projects/"+projectID+"/flags", nil, &flags)
	return flags, err
}

// GetFlag fetches a single flag by key.
func (c *Client) GetFlag(ctx context.Context, projectID, key string) (*model.Flag, error) {
	var flag model.Flag
	if err := c.do(ctx, http.MethodGet, "/api/v1/projects/"+projectID+"/flags/"+key, nil, &flag); err != nil {
		return nil, err
	}
	return &flag, nil
}

// CreateFlagParams is the request body for CreateFlag.
type CreateFlagParams struct {
	Key         string          `json:"key"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	FlagType    model.FlagType  `json:"flag_type"`
	Tags        []string        `json:"tags,omitempty"`
	Variants    []model.Variant `json:"variants"`
}

// CreateFlag creates a new flag and its variants.
func (c *Client) CreateFlag(ctx context.Context, projectID string, params CreateFlagParams) (*model.Flag, error) {
	var flag model.Flag
	if err := c.do(ctx, http.MethodPost, "/api/v1/projects/"+projectID+"/flags", params, &flag); err != nil {
		return nil, err
	}
	return &flag, nil
}

// UpdateFlagParams is the request body for UpdateFlag: the combined
// metadata/targeting/toggle document the PUT route accepts, all optional
// except EnvironmentID when any per-environment field is set.
type UpdateFlagParams struct {
	Name             string                `json:"name,omitempty"`
	Description      string                `json:"description,omitempty"`
	Tags             []string              `json:"tags,omitempty"`
	Archived         *bool                 `json:"archived,omitempty"`
	Variants         []model.Variant       `json:"variants,omitempty"`
	EnvironmentID    string                `json:"environment_id,omitempty"`
	Enabled          *bool                 `json:"enabled,omitempty"`
	DefaultVariantID string                `json:"default_variant_id,omitempty"`
	Rules            []model.TargetingRule `json:"rules,omitempty"`
	Overrides        []model.Override      `json:"overrides,omitempty"`
}

// UpdateFlag applies params to an existing flag.
func (c *Client) UpdateFlag(ctx context.Context, projectID, key string, params UpdateFlagParams) (*model.Flag, error) {
	var flag model.Flag
	if err := c.do(ctx, http.MethodPut, "/api/v1/projects/"+projectID+"/flags/"+key, params, &flag); err != nil {
		return nil, err
	}
	return &flag, nil
}

// ToggleFlag flips a flag's enabled state for one environment.
func (c *Client) ToggleFlag(ctx context.Context, projectID, key, environmentID string, enabled bool) error {
	body := map[string]any{"enabled": enabled, "environment_id": environmentID}
	return c.do(ctx, http.MethodPatch, "/api/v1/projects/"+projectID+"/flags/"+key+"/toggle", body, nil)
}

// DeleteFlag removes a flag and its per-environment state.
func (c *Client) DeleteFlag(ctx context.Context, projectID, key string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/projects/"+projectID+"/flags/"+key, nil, nil)
}

// ListSegments returns the segments defined for a project.
func (c *Client) ListSegments(ctx context.Context, projectID string) ([]model.Segment, error) {
	var segments []model.Segment
	err := c.do(ctx, http.MethodGet, "/api/v1/projects/"+projectID+"/segments", nil, &segments)
	return segments, err
}

// DeleteSegment removes a segment by ID.
func (c *Client) DeleteSegment(ctx context.Context, projectID, segmentID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/projects/"+projectID+"/segments/"+segmentID, nil, nil)
}

// CreatedSDKCredential is the create-time response for a new SDK key: the
// plaintext secret is shown exactly once.
type CreatedSDKCredential struct {
	model.SDKCredential
	Secret string `json:"secret"`
}

// CreateSDKKey issues a new SDK credential scoped to one environment.
func (c *Client) CreateSDKKey(ctx context.Context, projectID, environmentID, name string, credType model.CredentialType) (*CreatedSDKCredential, error) {
	body := map[string]any{"environment_id": environmentID, "name": name, "type": credType}
	var created CreatedSDKCredential
	if err := c.do(ctx, http.MethodPost, "/api/v1/projects/"+projectID+"/sdk-keys", body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// RevokeSDKKey invalidates an SDK credential immediately.
func (c *Client) RevokeSDKKey(ctx context.Context, projectID, keyID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/projects/"+projectID+"/sdk-keys/"+keyID+"/revoke", nil, nil)
}

// SDKClient talks the evaluate/stream surface using an SDK credential
// (srv_*/cli_*) instead of a management bearer token.
type SDKClient struct {
	BaseURL    string
	Credential string
	HTTPClient *http.Client
}

// NewSDKClient builds an SDKClient against baseURL, authenticating with a
// raw (non-Bearer) SDK credential.
func NewSDKClient(baseURL, credential string) *SDKClient {
	return &SDKClient{
		BaseURL:    baseURL,
		Credential: credential,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *SDKClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.Credential)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(raw))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// FetchSnapshot pulls the current flags-config bundle for the credential's
// environment, ready to be handed to Cached.
func (c *SDKClient) FetchSnapshot(ctx context.Context) (*snapshot.Config, error) {
	var cfg snapshot.Config
	if err := c.get(ctx, "/api/v1/flags-config", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Cached wraps a locally held snapshot.Config and evaluates flags in
// process, with no network call per evaluation. A caller refreshes it
// periodically (or on a stream push) with Refresh.
type Cached struct {
	sdk *SDKClient
	cfg *snapshot.Config
}

// NewCached builds a Cached evaluator backed by sdk, fetching the initial
// snapshot eagerly.
func NewCached(ctx context.Context, sdk *SDKClient) (*Cached, error) {
	cfg, err := sdk.FetchSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &Cached{sdk: sdk, cfg: cfg}, nil
}

// Refresh re-fetches the snapshot and swaps it in. Cached is not safe for
// concurrent Refresh/Evaluate calls without external synchronization.
func (c *Cached) Refresh(ctx context.Context) error {
	cfg, err := c.sdk.FetchSnapshot(ctx)
	if err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// Evaluate resolves flagKey against the locally held snapshot, performing
// no I/O.
func (c *Cached) Evaluate(flagKey, targetingKey string, attributes map[string]any, defaultValue any) engine.Result {
	return engine.Evaluate(c.cfg, flagKey, engine.Context{
		TargetingKey: targetingKey,
		Attributes:   attributes,
	}, defaultValue)
}

// Version reports the version of the currently held snapshot.
func (c *Cached) Version() int64 {
	return c.cfg.Version
}
