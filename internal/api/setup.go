package api

import (
	"net/http"
	"strings"

	"github.com/flagwell/flagwell/internal/auth"
	"github.com/flagwell/flagwell/internal/model"
)

// defaultEnvironments are provisioned by POST /api/v1/setup. The data
// model is flat at the project level with no separate Organization
// entity, so setup provisions a Project plus these three environments
// plus one server SDK credential per environment.
var defaultEnvironments = []string{"development", "staging", "production"}

// handleSetup bootstraps a fresh project: the project itself, its three
// standard environments, and one server SDK credential per environment.
// Unauthenticated by design — it exists to get a brand new deployment off
// the ground before any credential exists to authenticate with.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	var req setupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.ProjectName)
	if name == "" {
		name = "default"
	}

	project := &model.Project{
		ID:   newID(),
		Name: name,
		Slug: slugify(name),
	}
	if err := s.store.CreateProject(r.Context(), project); err != nil {
		writeStoreError(w, r, err)
		return
	}

	envs := make([]model.Environment, 0, len(defaultEnvironments))
	keys := make([]sdkCredentialWithSecret, 0, len(defaultEnvironments))

	for i, key := range defaultEnvironments {
		env := &model.Environment{
			ID:        newID(),
			ProjectID: project.ID,
			Key:       key,
			Name:      strings.Title(key),
			SortOrder: i,
		}
		if err := s.store.CreateEnvironment(r.Context(), env); err != nil {
			writeStoreError(w, r, err)
			return
		}
		envs = append(envs, *env)

		raw, hash, err := auth.GenerateSDKCredential(model.CredentialServer)
		if err != nil {
			InternalError(w, r, "failed to generate sdk credential")
			return
		}
		cred := &model.SDKCredential{
			ID:            newID(),
			EnvironmentID: env.ID,
			Type:          model.CredentialServer,
			Name:          key + "-default",
			KeyHash:       hash,
			KeyPrefix:     raw[:12],
		}
		if err := s.store.CreateSDKCredential(r.Context(), cred); err != nil {
			writeStoreError(w, r, err)
			return
		}
		keys = append(keys, sdkCredentialWithSecret{SDKCredential: *cred, Secret: raw})
	}

	writeJSON(w, http.StatusCreated, setupResponse{
		Project:      *project,
		Environments: envs,
		SDKKeys:      keys,
	})
}

func slugify(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastDash := false
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
