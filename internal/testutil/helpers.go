// Package testutil provides shared test scaffolding for the HTTP surface:
// an in-memory-backed Server plus a small HTTP request helper covering the
// full entity set.
package testutil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flagwell/flagwell/internal/api"
	"github.com/flagwell/flagwell/internal/auth"
	"github.com/flagwell/flagwell/internal/changebus"
	"github.com/flagwell/flagwell/internal/model"
	"github.com/flagwell/flagwell/internal/store"
)

// NewTestServer builds an api.Server over a fresh in-memory store, with no
// cache, publisher, audit service, or webhook dispatcher — every optional
// dependency is nil, exercising the "reduced deployment" path every
// handler must tolerate.
func NewTestServer(t *testing.T) (*api.Server, store.Store) {
	t.Helper()
	st := store.NewMemoryStore()
	bus := changebus.NewBus()
	t.Cleanup(bus.Close)
	_, jwks := testSigningKey()
	verifier := auth.NewVerifier(st, jwks, testIssuer)
	srv := api.NewServer(st, nil, bus, nil, verifier, nil, nil)
	return srv, st
}

// SeedProject creates a project with one environment and returns both.
func SeedProject(t *testing.T, ctx context.Context, st store.Store, name string) (model.Project, model.Environment) {
	t.Helper()
	project := model.Project{ID: "proj-" + name, Name: name, Slug: name}
	if err := st.CreateProject(ctx, &project); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	env := model.Environment{ID: "env-" + name, ProjectID: project.ID, Key: "production", Name: "Production"}
	if err := st.CreateEnvironment(ctx, &env); err != nil {
		t.Fatalf("seed environment: %v", err)
	}
	return project, env
}

// SeedSDKCredential mints a server credential for environmentID and returns
// its plaintext value, ready to use as a Bearer-less Authorization header.
func SeedSDKCredential(t *testing.T, ctx context.Context, st store.Store, environmentID string) string {
	t.Helper()
	raw, hash, err := auth.GenerateSDKCredential(model.CredentialServer)
	if err != nil {
		t.Fatalf("generate sdk credential: %v", err)
	}
	cred := model.SDKCredential{
		ID:            "cred-" + environmentID,
		EnvironmentID: environmentID,
		Type:          model.CredentialServer,
		Name:          "test",
		KeyHash:       hash,
		KeyPrefix:     raw[:12],
	}
	if err := st.CreateSDKCredential(ctx, &cred); err != nil {
		t.Fatalf("seed sdk credential: %v", err)
	}
	return raw
}

// HTTPRequest is a minimal declarative HTTP request for table-driven
// handler tests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	Headers map[string]string
}

// Do executes the request against handler and returns the recorded response.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Path, body)
	if r.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}
