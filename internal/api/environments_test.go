package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/flagwell/flagwell/internal/model"
	"github.com/flagwell/flagwell/internal/testutil"
)

func TestEnvironments_CreateAndList(t *testing.T) {
	server, st := testutil.NewTestServer(t)
	handler := server.Router()
	ctx := context.Background()
	project, _ := testutil.SeedProject(t, ctx, st, "acme")
	token := seedManagementToken(t, ctx, st)

	create := &testutil.HTTPRequest{
		Method:  "POST",
		Path:    "/api/v1/projects/" + project.ID + "/environments",
		Body:    `{"key":"staging","name":"Staging","sort_order":1}`,
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr := create.Do(t, handler)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	list := &testutil.HTTPRequest{
		Method:  "GET",
		Path:    "/api/v1/projects/" + project.ID + "/environments",
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr = list.Do(t, handler)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var envs []model.Environment
	if err := json.Unmarshal(rr.Body.Bytes(), &envs); err != nil {
		t.Fatalf("decode environments: %v", err)
	}
	if len(envs) != 2 {
		t.Fatalf("expected 2 environments (seeded + created), got %d", len(envs))
	}
}

func TestEnvironments_CreateRejectsMissingKey(t *testing.T) {
	server, st := testutil.NewTestServer(t)
	handler := server.Router()
	ctx := context.Background()
	project, _ := testutil.SeedProject(t, ctx, st, "acme")
	token := seedManagementToken(t, ctx, st)

	req := &testutil.HTTPRequest{
		Method:  "POST",
		Path:    "/api/v1/projects/" + project.ID + "/environments",
		Body:    `{"name":"No Key"}`,
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr := req.Do(t, handler)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}
