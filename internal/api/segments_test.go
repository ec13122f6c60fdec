package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/flagwell/flagwell/internal/model"
	"github.com/flagwell/flagwell/internal/testutil"
)

func TestSegments_CreateListDelete(t *testing.T) {
	server, st := testutil.NewTestServer(t)
	handler := server.Router()
	ctx := context.Background()
	project, _ := testutil.SeedProject(t, ctx, st, "acme")
	token := seedManagementToken(t, ctx, st)

	create := &testutil.HTTPRequest{
		Method: "POST",
		Path:   "/api/v1/projects/" + project.ID + "/segments",
		Body: `{"key":"beta-users","name":"Beta Users","match_type":"all",` +
			`"constraints":[{"attribute":"plan","operator":"eq","values":["beta"]}]}`,
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr := create.Do(t, handler)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var seg model.Segment
	if err := json.Unmarshal(rr.Body.Bytes(), &seg); err != nil {
		t.Fatalf("decode segment: %v", err)
	}

	list := &testutil.HTTPRequest{
		Method:  "GET",
		Path:    "/api/v1/projects/" + project.ID + "/segments",
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr = list.Do(t, handler)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var segs []model.Segment
	if err := json.Unmarshal(rr.Body.Bytes(), &segs); err != nil {
		t.Fatalf("decode segments: %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}

	del := &testutil.HTTPRequest{
		Method:  "DELETE",
		Path:    "/api/v1/projects/" + project.ID + "/segments/" + seg.ID,
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr = del.Do(t, handler)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestSegments_CreateRejectsConstraintWithNoValues(t *testing.T) {
	server, st := testutil.NewTestServer(t)
	handler := server.Router()
	ctx := context.Background()
	project, _ := testutil.SeedProject(t, ctx, st, "acme")
	token := seedManagementToken(t, ctx, st)

	req := &testutil.HTTPRequest{
		Method: "POST",
		Path:   "/api/v1/projects/" + project.ID + "/segments",
		Body: `{"key":"empty","name":"Empty","match_type":"all",` +
			`"constraints":[{"attribute":"plan","operator":"eq","values":[]}]}`,
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr := req.Do(t, handler)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}
