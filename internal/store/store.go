// Package store defines the durable-store adapter: the read/write
// operations the rest of the core consumes. Only the shape matters here;
// the storage engine backing it (Postgres, or an in-memory map for tests)
// is interchangeable behind the Store interface.
package store

import (
	"context"
	"errors"

	"github.com/flagwell/flagwell/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned on a unique-key violation at create time.
var ErrConflict = errors.New("store: conflict")

// SnapshotSource is the composite read the snapshot builder needs to
// assemble one (project, environment) snapshot in a single pass. Flags
// carries every non-archived flag in the project with its variants
// populated; FlagEnvironments is keyed by flag id and holds only rows that
// exist for the requested environment (flags absent here are omitted from
// the snapshot); Segments carries every segment in the project with its
// constraints populated.
type SnapshotSource struct {
	Flags            []model.Flag
	FlagEnvironments map[string]model.FlagEnvironment
	Segments         []model.Segment
	Version          int64
}

// Store is the durable-store adapter consumed by the rest of the core.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context) ([]model.Project, error)

	// Environments
	CreateEnvironment(ctx context.Context, e *model.Environment) error
	ListEnvironments(ctx context.Context, projectID string) ([]model.Environment, error)
	GetEnvironment(ctx context.Context, id string) (*model.Environment, error)

	// Flags + variants
	CreateFlag(ctx context.Context, f *model.Flag) error
	GetFlagByKey(ctx context.Context, projectID, key string) (*model.Flag, error)
	ListFlags(ctx context.Context, projectID string) ([]model.Flag, error)
	UpdateFlag(ctx context.Context, f *model.Flag) error
	DeleteFlag(ctx context.Context, projectID, key string) error

	// Per-(flag,environment) state: toggle, default variant, rules, overrides
	GetFlagEnvironment(ctx context.Context, flagID, environmentID string) (*model.FlagEnvironment, error)
	UpsertFlagEnvironment(ctx context.Context, fe *model.FlagEnvironment) error
	SetFlagEnabled(ctx context.Context, flagID, environmentID string, enabled bool) error

	// Segments
	CreateSegment(ctx context.Context, s *model.Segment) error
	ListSegments(ctx context.Context, projectID string) ([]model.Segment, error)
	DeleteSegment(ctx context.Context, id string) error

	// SDK credentials
	CreateSDKCredential(ctx context.Context, c *model.SDKCredential) error
	GetSDKKeyByHash(ctx context.Context, hash string) (*model.SDKCredential, error)
	RevokeSDKCredential(ctx context.Context, id string) error
	TouchSDKCredentialLastUsed(ctx context.Context, id string) error
	ListSDKCredentials(ctx context.Context, environmentID string) ([]model.SDKCredential, error)

	// Config version: atomic, monotonic per environment
	IncrementConfigVersion(ctx context.Context, environmentID string) (int64, error)
	GetConfigVersion(ctx context.Context, environmentID string) (int64, error)

	// Composite read for the snapshot builder
	LoadSnapshotSource(ctx context.Context, projectID, environmentID string) (*SnapshotSource, error)

	// Audit log: best-effort, never fails the caller's request in practice
	// (the handler layer treats AppendAudit errors as non-fatal).
	AppendAudit(ctx context.Context, entry model.AuditEntry) error
	ListAudit(ctx context.Context, projectID string, limit, offset int) ([]model.AuditEntry, error)

	// Webhooks: delivery is best-effort; RecordWebhookDelivery must never
	// fail the caller's request.
	CreateWebhook(ctx context.Context, w *model.Webhook) error
	ListActiveWebhooks(ctx context.Context, projectID string) ([]model.Webhook, error)
	TouchWebhookLastTriggered(ctx context.Context, id string) error
	RecordWebhookDelivery(ctx context.Context, d model.WebhookDelivery) error

	Close()
}
