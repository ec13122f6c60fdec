package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/flagwell/flagwell/internal/model"
	"github.com/flagwell/flagwell/internal/testutil"
)

func enableFlag(t *testing.T, handler http.Handler, token, pid, key, envID, defaultVariantID string) {
	t.Helper()
	req := &testutil.HTTPRequest{
		Method: "PUT",
		Path:   "/api/v1/projects/" + pid + "/flags/" + key,
		Body: `{"environment_id":"` + envID + `","enabled":true,"default_variant_id":"` + defaultVariantID + `"}`,
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr := req.Do(t, handler)
	if rr.Code != http.StatusOK {
		t.Fatalf("enable flag failed: %d: %s", rr.Code, rr.Body.String())
	}
}

func TestEvaluate_ReturnsDefaultVariantWhenEnabled(t *testing.T) {
	server, st := testutil.NewTestServer(t)
	handler := server.Router()
	ctx := context.Background()
	project, env := testutil.SeedProject(t, ctx, st, "acme")
	token := seedManagementToken(t, ctx, st)
	sdkKey := testutil.SeedSDKCredential(t, ctx, st, env.ID)

	flag := createFlag(t, handler, token, project.ID, "checkout-v2")
	enableFlag(t, handler, token, project.ID, "checkout-v2", env.ID, flag.Variants[0].ID)

	req := &testutil.HTTPRequest{
		Method:  "POST",
		Path:    "/api/v1/evaluate",
		Body:    `{"flag_key":"checkout-v2","context":{"targeting_key":"u1"},"default_value":false}`,
		Headers: map[string]string{"Authorization": sdkKey},
	}
	rr := req.Do(t, handler)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var result struct {
		Value  any    `json:"value"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Reason != string(model.ReasonDefault) {
		t.Errorf("expected reason 'default', got %q", result.Reason)
	}
	if result.Value != true {
		t.Errorf("expected value true, got %v", result.Value)
	}
}

func TestEvaluate_UnknownFlagFallsBackToRequestDefault(t *testing.T) {
	server, st := testutil.NewTestServer(t)
	handler := server.Router()
	ctx := context.Background()
	_, env := testutil.SeedProject(t, ctx, st, "acme")
	sdkKey := testutil.SeedSDKCredential(t, ctx, st, env.ID)

	req := &testutil.HTTPRequest{
		Method:  "POST",
		Path:    "/api/v1/evaluate",
		Body:    `{"flag_key":"nonexistent","context":{"targeting_key":"u1"},"default_value":"fallback"}`,
		Headers: map[string]string{"Authorization": sdkKey},
	}
	rr := req.Do(t, handler)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var result struct {
		Value  any    `json:"value"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Reason != string(model.ReasonFlagNotFound) {
		t.Errorf("expected reason 'flag_not_found', got %q", result.Reason)
	}
	if result.Value != "fallback" {
		t.Errorf("expected fallback value, got %v", result.Value)
	}
}

func TestEvaluateBatch_PerItemContextOverridesRequestLevel(t *testing.T) {
	server, st := testutil.NewTestServer(t)
	handler := server.Router()
	ctx := context.Background()
	project, env := testutil.SeedProject(t, ctx, st, "acme")
	token := seedManagementToken(t, ctx, st)
	sdkKey := testutil.SeedSDKCredential(t, ctx, st, env.ID)

	flag := createFlag(t, handler, token, project.ID, "batch-flag")
	enableFlag(t, handler, token, project.ID, "batch-flag", env.ID, flag.Variants[0].ID)

	override := &testutil.HTTPRequest{
		Method: "PUT",
		Path:   "/api/v1/projects/" + project.ID + "/flags/batch-flag",
		Body: `{"environment_id":"` + env.ID + `","overrides":[` +
			`{"targeting_key":"item-level","variant_id":"` + flag.Variants[1].ID + `"}]}`,
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	if rr := override.Do(t, handler); rr.Code != http.StatusOK {
		t.Fatalf("set override failed: %d: %s", rr.Code, rr.Body.String())
	}

	req := &testutil.HTTPRequest{
		Method: "POST",
		Path:   "/api/v1/evaluate/batch",
		Body: `{"context":{"targeting_key":"request-level"},"flags":[` +
			`{"flag_key":"batch-flag","default_value":false},` +
			`{"flag_key":"batch-flag","context":{"targeting_key":"item-level"},"default_value":false}]}`,
		Headers: map[string]string{"Authorization": sdkKey},
	}
	rr := req.Do(t, handler)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Results []struct {
			Value  any    `json:"value"`
			Reason string `json:"reason"`
		} `json:"results"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode batch result: %v", err)
	}
	if len(payload.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(payload.Results))
	}
	if payload.Results[0].Reason != string(model.ReasonDefault) || payload.Results[0].Value != true {
		t.Errorf("request-level context: expected default/true, got %s/%v", payload.Results[0].Reason, payload.Results[0].Value)
	}
	if payload.Results[1].Reason != string(model.ReasonOverride) || payload.Results[1].Value != false {
		t.Errorf("item-level context: expected override/false, got %s/%v", payload.Results[1].Reason, payload.Results[1].Value)
	}
}

func TestFlagsConfig_ReturnsSnapshot(t *testing.T) {
	server, st := testutil.NewTestServer(t)
	handler := server.Router()
	ctx := context.Background()
	_, env := testutil.SeedProject(t, ctx, st, "acme")
	sdkKey := testutil.SeedSDKCredential(t, ctx, st, env.ID)

	req := &testutil.HTTPRequest{
		Method:  "GET",
		Path:    "/api/v1/flags-config",
		Headers: map[string]string{"Authorization": sdkKey},
	}
	rr := req.Do(t, handler)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
}
