package store_test

import (
	"context"
	"testing"

	"github.com/flagwell/flagwell/internal/model"
	"github.com/flagwell/flagwell/internal/store"
)

func TestMemoryStoreFlagLifecycle(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	proj := &model.Project{Name: "Acme", Slug: "acme"}
	if err := s.CreateProject(ctx, proj); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	env := &model.Environment{ProjectID: proj.ID, Key: "production", Name: "Production"}
	if err := s.CreateEnvironment(ctx, env); err != nil {
		t.Fatalf("CreateEnvironment: %v", err)
	}

	flag := &model.Flag{
		ProjectID: proj.ID,
		Key:       "new-checkout",
		Name:      "New checkout",
		FlagType:  model.FlagTypeBoolean,
		Variants: []model.Variant{
			{Key: "on", Value: true},
			{Key: "off", Value: false},
		},
	}
	if err := s.CreateFlag(ctx, flag); err != nil {
		t.Fatalf("CreateFlag: %v", err)
	}

	if err := s.CreateFlag(ctx, &model.Flag{ProjectID: proj.ID, Key: "new-checkout"}); err != store.ErrConflict {
		t.Fatalf("expected ErrConflict on duplicate key, got %v", err)
	}

	got, err := s.GetFlagByKey(ctx, proj.ID, "new-checkout")
	if err != nil {
		t.Fatalf("GetFlagByKey: %v", err)
	}
	if got.Name != "New checkout" {
		t.Errorf("got name %q", got.Name)
	}

	flags, err := s.ListFlags(ctx, proj.ID)
	if err != nil || len(flags) != 1 {
		t.Fatalf("ListFlags: %v / %d flags", err, len(flags))
	}

	fe := &model.FlagEnvironment{
		FlagID:           flag.ID,
		EnvironmentID:    env.ID,
		Enabled:          true,
		DefaultVariantID: flag.Variants[1].ID,
	}
	if err := s.UpsertFlagEnvironment(ctx, fe); err != nil {
		t.Fatalf("UpsertFlagEnvironment: %v", err)
	}

	v, err := s.IncrementConfigVersion(ctx, env.ID)
	if err != nil || v != 2 {
		t.Fatalf("IncrementConfigVersion: v=%d err=%v", v, err)
	}

	src, err := s.LoadSnapshotSource(ctx, proj.ID, env.ID)
	if err != nil {
		t.Fatalf("LoadSnapshotSource: %v", err)
	}
	if len(src.Flags) != 1 || src.Version != 2 {
		t.Fatalf("unexpected snapshot source: %+v", src)
	}

	if err := s.DeleteFlag(ctx, proj.ID, "new-checkout"); err != nil {
		t.Fatalf("DeleteFlag: %v", err)
	}
	if err := s.DeleteFlag(ctx, proj.ID, "new-checkout"); err != nil {
		t.Fatalf("DeleteFlag should be idempotent: %v", err)
	}
}

func TestMemoryStoreSDKCredentials(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	cred := &model.SDKCredential{EnvironmentID: "env-1", Type: model.CredentialServer, Name: "ci", KeyHash: "abc123"}
	if err := s.CreateSDKCredential(ctx, cred); err != nil {
		t.Fatalf("CreateSDKCredential: %v", err)
	}

	got, err := s.GetSDKKeyByHash(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetSDKKeyByHash: %v", err)
	}
	if got.ID != cred.ID {
		t.Fatalf("got wrong credential")
	}

	if err := s.RevokeSDKCredential(ctx, cred.ID); err != nil {
		t.Fatalf("RevokeSDKCredential: %v", err)
	}
	if _, err := s.GetSDKKeyByHash(ctx, "abc123"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound after revoke, got %v", err)
	}
}

func TestMemoryStoreDeleteSegmentCascades(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	seg := &model.Segment{ProjectID: "p1", Key: "beta", MatchType: model.MatchAll}
	if err := s.CreateSegment(ctx, seg); err != nil {
		t.Fatalf("CreateSegment: %v", err)
	}

	fe := &model.FlagEnvironment{
		FlagID:        "f1",
		EnvironmentID: "e1",
		Rules: []model.TargetingRule{
			{ID: "r1", Segments: []model.RuleSegment{{SegmentID: seg.ID}}},
		},
	}
	if err := s.UpsertFlagEnvironment(ctx, fe); err != nil {
		t.Fatalf("UpsertFlagEnvironment: %v", err)
	}

	if err := s.DeleteSegment(ctx, seg.ID); err != nil {
		t.Fatalf("DeleteSegment: %v", err)
	}

	got, err := s.GetFlagEnvironment(ctx, "f1", "e1")
	if err != nil {
		t.Fatalf("GetFlagEnvironment: %v", err)
	}
	if len(got.Rules[0].Segments) != 0 {
		t.Fatalf("expected segment reference to be stripped, got %+v", got.Rules[0].Segments)
	}
}
