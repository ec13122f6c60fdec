package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/flagwell/flagwell/internal/testutil"
)

func TestWebhooks_CreateAndList(t *testing.T) {
	server, st := testutil.NewTestServer(t)
	handler := server.Router()
	ctx := context.Background()
	project, _ := testutil.SeedProject(t, ctx, st, "acme")
	token := seedManagementToken(t, ctx, st)

	create := &testutil.HTTPRequest{
		Method:  "POST",
		Path:    "/api/v1/projects/" + project.ID + "/webhooks",
		Body:    `{"url":"https://example.com/hooks/flagwell","max_retries":5,"timeout_seconds":10}`,
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr := create.Do(t, handler)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var hook struct {
		ID     string `json:"id"`
		Secret string `json:"secret"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &hook); err != nil {
		t.Fatalf("decode webhook: %v", err)
	}
	if hook.Secret == "" {
		t.Fatal("expected generated webhook secret")
	}

	list := &testutil.HTTPRequest{
		Method:  "GET",
		Path:    "/api/v1/projects/" + project.ID + "/webhooks",
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr = list.Do(t, handler)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestWebhooks_CreateRejectsMissingURL(t *testing.T) {
	server, st := testutil.NewTestServer(t)
	handler := server.Router()
	ctx := context.Background()
	project, _ := testutil.SeedProject(t, ctx, st, "acme")
	token := seedManagementToken(t, ctx, st)

	req := &testutil.HTTPRequest{
		Method:  "POST",
		Path:    "/api/v1/projects/" + project.ID + "/webhooks",
		Body:    `{}`,
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr := req.Do(t, handler)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}
