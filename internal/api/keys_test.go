package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/flagwell/flagwell/internal/testutil"
)

func TestSDKKeys_CreateListRevoke(t *testing.T) {
	server, st := testutil.NewTestServer(t)
	handler := server.Router()
	ctx := context.Background()
	project, env := testutil.SeedProject(t, ctx, st, "acme")
	token := seedManagementToken(t, ctx, st)

	create := &testutil.HTTPRequest{
		Method:  "POST",
		Path:    "/api/v1/projects/" + project.ID + "/sdk-keys",
		Body:    `{"environment_id":"` + env.ID + `","type":"server","name":"ci"}`,
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr := create.Do(t, handler)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created struct {
		ID     string `json:"id"`
		Secret string `json:"secret"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created key: %v", err)
	}
	if created.Secret == "" {
		t.Fatal("expected plaintext secret in create response")
	}

	list := &testutil.HTTPRequest{
		Method:  "GET",
		Path:    "/api/v1/projects/" + project.ID + "/sdk-keys",
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr = list.Do(t, handler)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	revoke := &testutil.HTTPRequest{
		Method:  "POST",
		Path:    "/api/v1/projects/" + project.ID + "/sdk-keys/" + created.ID + "/revoke",
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr = revoke.Do(t, handler)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestSDKKeys_CreateRejectsUnknownType(t *testing.T) {
	server, st := testutil.NewTestServer(t)
	handler := server.Router()
	ctx := context.Background()
	project, env := testutil.SeedProject(t, ctx, st, "acme")
	token := seedManagementToken(t, ctx, st)

	req := &testutil.HTTPRequest{
		Method:  "POST",
		Path:    "/api/v1/projects/" + project.ID + "/sdk-keys",
		Body:    `{"environment_id":"` + env.ID + `","type":"admin","name":"bad"}`,
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr := req.Do(t, handler)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}
