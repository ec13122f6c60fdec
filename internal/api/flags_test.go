package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/flagwell/flagwell/internal/model"
	"github.com/flagwell/flagwell/internal/testutil"
)

func createFlag(t *testing.T, handler http.Handler, token, pid, key string) model.Flag {
	t.Helper()
	body := `{"key":"` + key + `","name":"My Flag","flag_type":"boolean","variants":[` +
		`{"key":"on","value":true},{"key":"off","value":false}]}`
	req := &testutil.HTTPRequest{
		Method:  "POST",
		Path:    "/api/v1/projects/" + pid + "/flags",
		Body:    body,
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr := req.Do(t, handler)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var flag model.Flag
	if err := json.Unmarshal(rr.Body.Bytes(), &flag); err != nil {
		t.Fatalf("decode flag: %v", err)
	}
	return flag
}

func TestFlags_CreateListGet(t *testing.T) {
	server, st := testutil.NewTestServer(t)
	handler := server.Router()
	ctx := context.Background()
	project, _ := testutil.SeedProject(t, ctx, st, "acme")
	token := seedManagementToken(t, ctx, st)

	flag := createFlag(t, handler, token, project.ID, "new-checkout")
	if flag.Key != "new-checkout" {
		t.Errorf("expected key 'new-checkout', got %q", flag.Key)
	}
	if len(flag.Variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(flag.Variants))
	}

	list := &testutil.HTTPRequest{
		Method:  "GET",
		Path:    "/api/v1/projects/" + project.ID + "/flags",
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr := list.Do(t, handler)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var flags []model.Flag
	if err := json.Unmarshal(rr.Body.Bytes(), &flags); err != nil {
		t.Fatalf("decode flags: %v", err)
	}
	if len(flags) != 1 {
		t.Fatalf("expected 1 flag, got %d", len(flags))
	}

	get := &testutil.HTTPRequest{
		Method:  "GET",
		Path:    "/api/v1/projects/" + project.ID + "/flags/new-checkout",
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr = get.Do(t, handler)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestFlags_CreateRejectsInvalidVariants(t *testing.T) {
	server, st := testutil.NewTestServer(t)
	handler := server.Router()
	ctx := context.Background()
	project, _ := testutil.SeedProject(t, ctx, st, "acme")
	token := seedManagementToken(t, ctx, st)

	req := &testutil.HTTPRequest{
		Method:  "POST",
		Path:    "/api/v1/projects/" + project.ID + "/flags",
		Body:    `{"key":"bad","name":"Bad","flag_type":"boolean","variants":[]}`,
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr := req.Do(t, handler)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestFlags_ToggleAndEvaluate(t *testing.T) {
	server, st := testutil.NewTestServer(t)
	handler := server.Router()
	ctx := context.Background()
	project, env := testutil.SeedProject(t, ctx, st, "acme")
	token := seedManagementToken(t, ctx, st)
	sdkKey := testutil.SeedSDKCredential(t, ctx, st, env.ID)

	flag := createFlag(t, handler, token, project.ID, "new-checkout")
	onVariantID := flag.Variants[0].ID

	update := &testutil.HTTPRequest{
		Method: "PUT",
		Path:   "/api/v1/projects/" + project.ID + "/flags/new-checkout",
		Body: `{"environment_id":"` + env.ID + `","enabled":true,"default_variant_id":"` + onVariantID + `"}`,
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr := update.Do(t, handler)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	toggle := &testutil.HTTPRequest{
		Method:  "PATCH",
		Path:    "/api/v1/projects/" + project.ID + "/flags/new-checkout/toggle",
		Body:    `{"enabled":false,"environment_id":"` + env.ID + `"}`,
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr = toggle.Do(t, handler)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	evalReq := &testutil.HTTPRequest{
		Method:  "POST",
		Path:    "/api/v1/evaluate",
		Body:    `{"flag_key":"new-checkout","context":{"targeting_key":"user-1"},"default_value":false}`,
		Headers: map[string]string{"Authorization": sdkKey},
	}
	rr = evalReq.Do(t, handler)
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
	if result.Reason != string(model.ReasonDisabled) {
		t.Errorf("expected reason 'disabled' after toggle-off, got %q", result.Reason)
	}
}

func TestFlags_Delete(t *testing.T) {
	server, st := testutil.NewTestServer(t)
	handler := server.Router()
	ctx := context.Background()
	project, _ := testutil.SeedProject(t, ctx, st, "acme")
	token := seedManagementToken(t, ctx, st)

	createFlag(t, handler, token, project.ID, "to-delete")

	del := &testutil.HTTPRequest{
		Method:  "DELETE",
		Path:    "/api/v1/projects/" + project.ID + "/flags/to-delete",
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr := del.Do(t, handler)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}

	get := &testutil.HTTPRequest{
		Method:  "GET",
		Path:    "/api/v1/projects/" + project.ID + "/flags/to-delete",
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}
	rr = get.Do(t, handler)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
}
