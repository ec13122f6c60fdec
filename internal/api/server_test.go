package api_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/flagwell/flagwell/internal/testutil"
)

func TestHealth_OK(t *testing.T) {
	server, _ := testutil.NewTestServer(t)
	handler := server.Router()

	req := &testutil.HTTPRequest{Method: "GET", Path: "/health"}
	rr := req.Do(t, handler)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestEvaluate_RejectsManagementPrincipal(t *testing.T) {
	server, st := testutil.NewTestServer(t)
	handler := server.Router()
	token := seedManagementToken(t, context.Background(), st)

	req := &testutil.HTTPRequest{
		Method:  "POST",
		Path:    "/api/v1/evaluate",
		Body:    `{"flag_key":"x","context":{"targeting_key":"u1"},"default_value":false}`,
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr := req.Do(t, handler)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rr.Code, rr.Body.String())
	}
}
