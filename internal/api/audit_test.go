package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/flagwell/flagwell/internal/testutil"
)

func TestAuditLog_DefaultLimitAfterFlagMutation(t *testing.T) {
	server, st := testutil.NewTestServer(t)
	handler := server.Router()
	ctx := context.Background()
	project, _ := testutil.SeedProject(t, ctx, st, "acme")
	token := seedManagementToken(t, ctx, st)

	createFlag(t, handler, token, project.ID, "audited-flag")

	list := &testutil.HTTPRequest{
		Method:  "GET",
		Path:    "/api/v1/projects/" + project.ID + "/audit-log",
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr := list.Do(t, handler)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var payload struct {
		Entries []map[string]any `json:"entries"`
		Limit   int              `json:"limit"`
		Offset  int              `json:"offset"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode audit log: %v", err)
	}
	if payload.Limit != 50 {
		t.Errorf("expected default limit 50, got %d", payload.Limit)
	}
}

func TestAuditLog_RespectsLimitAndOffset(t *testing.T) {
	server, st := testutil.NewTestServer(t)
	handler := server.Router()
	ctx := context.Background()
	project, _ := testutil.SeedProject(t, ctx, st, "acme")
	token := seedManagementToken(t, ctx, st)

	req := &testutil.HTTPRequest{
		Method:  "GET",
		Path:    "/api/v1/projects/" + project.ID + "/audit-log?limit=5&offset=10",
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr := req.Do(t, handler)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode audit log: %v", err)
	}
	if payload.Limit != 5 || payload.Offset != 10 {
		t.Errorf("expected limit=5 offset=10, got limit=%d offset=%d", payload.Limit, payload.Offset)
	}
}
