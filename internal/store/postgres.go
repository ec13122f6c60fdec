package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flagwell/flagwell/internal/model"
)

// PostgresStore is a PostgreSQL implementation of Store, querying hand-
// written SQL through pgx directly (no code-generation step). Flag
// variants, targeting rules/overrides, and segment constraints are stored
// as JSONB columns rather than fully normalized tables: this keeps the
// adapter's query surface small while still giving the management API
// row-level CRUD on every entity in the model, and preserves the
// referential-integrity checks at the application layer where the
// snapshot builder already has to walk these structures.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pgx connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) Close() { p.pool.Close() }

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (p *PostgresStore) CreateProject(ctx context.Context, proj *model.Project) error {
	return p.pool.QueryRow(ctx,
		`INSERT INTO projects (name, slug) VALUES ($1, $2) RETURNING id, created_at`,
		proj.Name, proj.Slug,
	).Scan(&proj.ID, &proj.CreatedAt)
}

func (p *PostgresStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var proj model.Project
	err := p.pool.QueryRow(ctx,
		`SELECT id, name, slug, created_at FROM projects WHERE id = $1`, id,
	).Scan(&proj.ID, &proj.Name, &proj.Slug, &proj.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &proj, nil
}

func (p *PostgresStore) ListProjects(ctx context.Context) ([]model.Project, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, slug, created_at FROM projects ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Project, 0)
	for rows.Next() {
		var proj model.Project
		if err := rows.Scan(&proj.ID, &proj.Name, &proj.Slug, &proj.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, proj)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CreateEnvironment(ctx context.Context, e *model.Environment) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO environments (project_id, key, name, sort_order) VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		e.ProjectID, e.Key, e.Name, e.SortOrder,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `INSERT INTO config_versions (environment_id, version) VALUES ($1, 1)
		ON CONFLICT (environment_id) DO NOTHING`, e.ID)
	return err
}

func (p *PostgresStore) ListEnvironments(ctx context.Context, projectID string) ([]model.Environment, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, project_id, key, name, sort_order, created_at FROM environments
		 WHERE project_id = $1 ORDER BY sort_order`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Environment, 0)
	for rows.Next() {
		var e model.Environment
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Key, &e.Name, &e.SortOrder, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *PostgresStore) GetEnvironment(ctx context.Context, id string) (*model.Environment, error) {
	var e model.Environment
	err := p.pool.QueryRow(ctx,
		`SELECT id, project_id, key, name, sort_order, created_at FROM environments WHERE id = $1`, id,
	).Scan(&e.ID, &e.ProjectID, &e.Key, &e.Name, &e.SortOrder, &e.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &e, nil
}

func (p *PostgresStore) CreateFlag(ctx context.Context, f *model.Flag) error {
	variantsJSON, err := json.Marshal(f.Variants)
	if err != nil {
		return err
	}
	err = p.pool.QueryRow(ctx,
		`INSERT INTO flags (project_id, key, name, description, flag_type, tags, archived, variants)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		f.ProjectID, f.Key, f.Name, f.Description, f.FlagType, f.Tags, f.Archived, variantsJSON,
	).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		var pgErr interface{ SQLState() string }
		if errors.As(err, &pgErr) && pgErr.SQLState() == "23505" {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (p *PostgresStore) scanFlag(row pgx.Row) (*model.Flag, error) {
	var f model.Flag
	var variantsJSON []byte
	if err := row.Scan(&f.ID, &f.ProjectID, &f.Key, &f.Name, &f.Description, &f.FlagType, &f.Tags, &f.Archived, &f.CreatedAt, &variantsJSON); err != nil {
		return nil, err
	}
	if len(variantsJSON) > 0 {
		_ = json.Unmarshal(variantsJSON, &f.Variants)
	}
	return &f, nil
}

const flagColumns = `id, project_id, key, name, description, flag_type, tags, archived, created_at, variants`

func (p *PostgresStore) GetFlagByKey(ctx context.Context, projectID, key string) (*model.Flag, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+flagColumns+` FROM flags WHERE project_id = $1 AND key = $2`, projectID, key)
	f, err := p.scanFlag(row)
	if err != nil {
		return nil, mapErr(err)
	}
	return f, nil
}

func (p *PostgresStore) ListFlags(ctx context.Context, projectID string) ([]model.Flag, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+flagColumns+` FROM flags WHERE project_id = $1 AND archived = false ORDER BY key`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Flag, 0)
	for rows.Next() {
		f, err := p.scanFlag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpdateFlag(ctx context.Context, f *model.Flag) error {
	variantsJSON, err := json.Marshal(f.Variants)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx,
		`UPDATE flags SET name=$2, description=$3, flag_type=$4, tags=$5, archived=$6, variants=$7
		 WHERE id = $1`,
		f.ID, f.Name, f.Description, f.FlagType, f.Tags, f.Archived, variantsJSON)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) DeleteFlag(ctx context.Context, projectID, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM flags WHERE project_id = $1 AND key = $2`, projectID, key)
	return err
}

func (p *PostgresStore) GetFlagEnvironment(ctx context.Context, flagID, environmentID string) (*model.FlagEnvironment, error) {
	var fe model.FlagEnvironment
	var rulesJSON, overridesJSON []byte
	err := p.pool.QueryRow(ctx,
		`SELECT flag_id, environment_id, enabled, default_variant_id, rules, overrides
		 FROM flag_environments WHERE flag_id = $1 AND environment_id = $2`, flagID, environmentID,
	).Scan(&fe.FlagID, &fe.EnvironmentID, &fe.Enabled, &fe.DefaultVariantID, &rulesJSON, &overridesJSON)
	if err != nil {
		return nil, mapErr(err)
	}
	_ = json.Unmarshal(rulesJSON, &fe.Rules)
	_ = json.Unmarshal(overridesJSON, &fe.Overrides)
	return &fe, nil
}

func (p *PostgresStore) UpsertFlagEnvironment(ctx context.Context, fe *model.FlagEnvironment) error {
	rulesJSON, err := json.Marshal(fe.Rules)
	if err != nil {
		return err
	}
	overridesJSON, err := json.Marshal(fe.Overrides)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO flag_environments (flag_id, environment_id, enabled, default_variant_id, rules, overrides)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (flag_id, environment_id) DO UPDATE SET
		   enabled = EXCLUDED.enabled,
		   default_variant_id = EXCLUDED.default_variant_id,
		   rules = EXCLUDED.rules,
		   overrides = EXCLUDED.overrides`,
		fe.FlagID, fe.EnvironmentID, fe.Enabled, fe.DefaultVariantID, rulesJSON, overridesJSON)
	return err
}

func (p *PostgresStore) SetFlagEnabled(ctx context.Context, flagID, environmentID string, enabled bool) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE flag_environments SET enabled = $3 WHERE flag_id = $1 AND environment_id = $2`,
		flagID, environmentID, enabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) CreateSegment(ctx context.Context, seg *model.Segment) error {
	constraintsJSON, err := json.Marshal(seg.Constraints)
	if err != nil {
		return err
	}
	return p.pool.QueryRow(ctx,
		`INSERT INTO segments (project_id, key, name, match_type, constraints)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		seg.ProjectID, seg.Key, seg.Name, seg.MatchType, constraintsJSON,
	).Scan(&seg.ID)
}

func (p *PostgresStore) ListSegments(ctx context.Context, projectID string) ([]model.Segment, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, project_id, key, name, match_type, constraints FROM segments
		 WHERE project_id = $1 ORDER BY key`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Segment, 0)
	for rows.Next() {
		var seg model.Segment
		var constraintsJSON []byte
		if err := rows.Scan(&seg.ID, &seg.ProjectID, &seg.Key, &seg.Name, &seg.MatchType, &constraintsJSON); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(constraintsJSON, &seg.Constraints)
		out = append(out, seg)
	}
	return out, rows.Err()
}

// DeleteSegment cascades: references to this segment are stripped from
// every flag_environments row's embedded rules JSON.
func (p *PostgresStore) DeleteSegment(ctx context.Context, id string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM segments WHERE id = $1`, id); err != nil {
		return err
	}

	rows, err := tx.Query(ctx, `SELECT flag_id, environment_id, rules FROM flag_environments`)
	if err != nil {
		return err
	}
	type pending struct {
		flagID, envID string
		rules         []model.TargetingRule
	}
	var toUpdate []pending
	for rows.Next() {
		var flagID, envID string
		var rulesJSON []byte
		if err := rows.Scan(&flagID, &envID, &rulesJSON); err != nil {
			rows.Close()
			return err
		}
		var rules []model.TargetingRule
		_ = json.Unmarshal(rulesJSON, &rules)
		changed := false
		for ri, rule := range rules {
			kept := rule.Segments[:0]
			for _, rs := range rule.Segments {
				if rs.SegmentID != id {
					kept = append(kept, rs)
				} else {
					changed = true
				}
			}
			rules[ri].Segments = kept
		}
		if changed {
			toUpdate = append(toUpdate, pending{flagID, envID, rules})
		}
	}
	rows.Close()

	for _, u := range toUpdate {
		rulesJSON, err := json.Marshal(u.rules)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE flag_environments SET rules = $3 WHERE flag_id = $1 AND environment_id = $2`,
			u.flagID, u.envID, rulesJSON); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (p *PostgresStore) CreateSDKCredential(ctx context.Context, c *model.SDKCredential) error {
	return p.pool.QueryRow(ctx,
		`INSERT INTO sdk_credentials (environment_id, type, name, key_hash, key_prefix)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		c.EnvironmentID, c.Type, c.Name, c.KeyHash, c.KeyPrefix,
	).Scan(&c.ID, &c.CreatedAt)
}

func (p *PostgresStore) GetSDKKeyByHash(ctx context.Context, hash string) (*model.SDKCredential, error) {
	var c model.SDKCredential
	err := p.pool.QueryRow(ctx,
		`SELECT id, environment_id, type, name, key_hash, key_prefix, created_at, revoked_at
		 FROM sdk_credentials WHERE key_hash = $1 AND revoked_at IS NULL`, hash,
	).Scan(&c.ID, &c.EnvironmentID, &c.Type, &c.Name, &c.KeyHash, &c.KeyPrefix, &c.CreatedAt, &c.RevokedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (p *PostgresStore) RevokeSDKCredential(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE sdk_credentials SET revoked_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchSDKCredentialLastUsed is fire-and-forget; callers should invoke it
// from a detached goroutine, not on the request path.
func (p *PostgresStore) TouchSDKCredentialLastUsed(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `UPDATE sdk_credentials SET last_used_at = now() WHERE id = $1`, id)
	return err
}

func (p *PostgresStore) ListSDKCredentials(ctx context.Context, environmentID string) ([]model.SDKCredential, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, environment_id, type, name, key_hash, key_prefix, created_at, revoked_at
		 FROM sdk_credentials WHERE environment_id = $1 ORDER BY created_at`, environmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.SDKCredential, 0)
	for rows.Next() {
		var c model.SDKCredential
		if err := rows.Scan(&c.ID, &c.EnvironmentID, &c.Type, &c.Name, &c.KeyHash, &c.KeyPrefix, &c.CreatedAt, &c.RevokedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// IncrementConfigVersion is atomic under concurrent callers: the UPDATE...
// RETURNING runs under the row's implicit lock, so two concurrent bumps for
// the same environment serialize and each sees a distinct, strictly
// increasing value.
func (p *PostgresStore) IncrementConfigVersion(ctx context.Context, environmentID string) (int64, error) {
	var version int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO config_versions (environment_id, version) VALUES ($1, 1)
		 ON CONFLICT (environment_id) DO UPDATE SET version = config_versions.version + 1
		 RETURNING version`, environmentID,
	).Scan(&version)
	return version, err
}

func (p *PostgresStore) GetConfigVersion(ctx context.Context, environmentID string) (int64, error) {
	var version int64
	err := p.pool.QueryRow(ctx, `SELECT version FROM config_versions WHERE environment_id = $1`, environmentID).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 1, nil
	}
	return version, err
}

// LoadSnapshotSource performs the composite read the snapshot builder
// needs under a single read-only transaction, giving intra-snapshot
// referential integrity: a consistent view across the
// flags/flag_environments/segments reads that make up one snapshot.
func (p *PostgresStore) LoadSnapshotSource(ctx context.Context, projectID, environmentID string) (*SnapshotSource, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	flagRows, err := tx.Query(ctx, `SELECT `+flagColumns+` FROM flags WHERE project_id = $1 AND archived = false ORDER BY key`, projectID)
	if err != nil {
		return nil, err
	}
	flags := make([]model.Flag, 0)
	for flagRows.Next() {
		f, err := p.scanFlag(flagRows)
		if err != nil {
			flagRows.Close()
			return nil, err
		}
		flags = append(flags, *f)
	}
	flagRows.Close()
	if err := flagRows.Err(); err != nil {
		return nil, err
	}

	feRows, err := tx.Query(ctx,
		`SELECT fe.flag_id, fe.environment_id, fe.enabled, fe.default_variant_id, fe.rules, fe.overrides
		 FROM flag_environments fe JOIN flags f ON f.id = fe.flag_id
		 WHERE f.project_id = $1 AND fe.environment_id = $2`, projectID, environmentID)
	if err != nil {
		return nil, err
	}
	flagEnvs := make(map[string]model.FlagEnvironment)
	for feRows.Next() {
		var fe model.FlagEnvironment
		var rulesJSON, overridesJSON []byte
		if err := feRows.Scan(&fe.FlagID, &fe.EnvironmentID, &fe.Enabled, &fe.DefaultVariantID, &rulesJSON, &overridesJSON); err != nil {
			feRows.Close()
			return nil, err
		}
		_ = json.Unmarshal(rulesJSON, &fe.Rules)
		_ = json.Unmarshal(overridesJSON, &fe.Overrides)
		flagEnvs[fe.FlagID] = fe
	}
	feRows.Close()
	if err := feRows.Err(); err != nil {
		return nil, err
	}

	segRows, err := tx.Query(ctx, `SELECT id, project_id, key, name, match_type, constraints FROM segments WHERE project_id = $1 ORDER BY key`, projectID)
	if err != nil {
		return nil, err
	}
	segments := make([]model.Segment, 0)
	for segRows.Next() {
		var seg model.Segment
		var constraintsJSON []byte
		if err := segRows.Scan(&seg.ID, &seg.ProjectID, &seg.Key, &seg.Name, &seg.MatchType, &constraintsJSON); err != nil {
			segRows.Close()
			return nil, err
		}
		_ = json.Unmarshal(constraintsJSON, &seg.Constraints)
		segments = append(segments, seg)
	}
	segRows.Close()
	if err := segRows.Err(); err != nil {
		return nil, err
	}

	var version int64 = 1
	err = tx.QueryRow(ctx, `SELECT version FROM config_versions WHERE environment_id = $1`, environmentID).Scan(&version)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &SnapshotSource{Flags: flags, FlagEnvironments: flagEnvs, Segments: segments, Version: version}, nil
}

func (p *PostgresStore) AppendAudit(ctx context.Context, entry model.AuditEntry) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO audit_log (project_id, actor_id, actor_kind, action, resource_type, resource_id, status, ip_address)
		 VALUES (NULLIF($1, ''), $2, $3, $4, $5, $6, $7, $8)`,
		entry.ProjectID, entry.ActorID, entry.ActorKind, entry.Action, entry.ResourceType, entry.ResourceID, entry.Status, entry.IPAddress)
	return err
}

func (p *PostgresStore) ListAudit(ctx context.Context, projectID string, limit, offset int) ([]model.AuditEntry, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, COALESCE(project_id, ''), actor_id, actor_kind, action, resource_type, resource_id, status, ip_address, occurred_at
		 FROM audit_log WHERE ($1 = '' OR project_id = $1)
		 ORDER BY occurred_at DESC LIMIT $2 OFFSET $3`, projectID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.AuditEntry, 0)
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.ActorID, &e.ActorKind, &e.Action, &e.ResourceType, &e.ResourceID, &e.Status, &e.IPAddress, &e.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CreateWebhook(ctx context.Context, w *model.Webhook) error {
	return p.pool.QueryRow(ctx,
		`INSERT INTO webhooks (project_id, url, secret, environments, max_retries, timeout_seconds, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
		w.ProjectID, w.URL, w.Secret, w.Environments, w.MaxRetries, w.TimeoutSeconds, w.Active,
	).Scan(&w.ID, &w.CreatedAt)
}

func (p *PostgresStore) ListActiveWebhooks(ctx context.Context, projectID string) ([]model.Webhook, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, project_id, url, secret, environments, max_retries, timeout_seconds, active, created_at, last_triggered
		 FROM webhooks WHERE project_id = $1 AND active = true ORDER BY created_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Webhook, 0)
	for rows.Next() {
		var w model.Webhook
		if err := rows.Scan(&w.ID, &w.ProjectID, &w.URL, &w.Secret, &w.Environments, &w.MaxRetries, &w.TimeoutSeconds, &w.Active, &w.CreatedAt, &w.LastTriggered); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (p *PostgresStore) TouchWebhookLastTriggered(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `UPDATE webhooks SET last_triggered = now() WHERE id = $1`, id)
	return err
}

func (p *PostgresStore) RecordWebhookDelivery(ctx context.Context, d model.WebhookDelivery) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO webhook_deliveries (webhook_id, event_type, status_code, success, error_message, duration_ms, retry_count)
		 VALUES ($1, $2, NULLIF($3, 0), $4, NULLIF($5, ''), NULLIF($6, 0), $7)`,
		d.WebhookID, d.EventType, d.StatusCode, d.Success, d.ErrorMessage, d.DurationMs, d.RetryCount)
	return err
}
