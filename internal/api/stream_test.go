package api_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flagwell/flagwell/internal/testutil"
)

func TestStream_InitialSnapshotThenClose(t *testing.T) {
	server, st := testutil.NewTestServer(t)
	handler := server.Router()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, env := testutil.SeedProject(t, context.Background(), st, "acme")
	sdkKey := testutil.SeedSDKCredential(t, context.Background(), st, env.ID)

	req := httptest.NewRequest("GET", "/api/v1/stream", nil).WithContext(ctx)
	req.Header.Set("Authorization", sdkKey)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "event: config") {
		t.Errorf("expected a config event in the stream, got: %s", rr.Body.String())
	}
}

func TestStream_RejectsManagementPrincipal(t *testing.T) {
	server, st := testutil.NewTestServer(t)
	handler := server.Router()
	ctx := context.Background()
	testutil.SeedProject(t, ctx, st, "acme")
	token := testutil.IssueManagementToken(t, "user-1", "")

	req := httptest.NewRequest("GET", "/api/v1/stream", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != 403 {
		t.Fatalf("expected 403, got %d: %s", rr.Code, rr.Body.String())
	}
}
