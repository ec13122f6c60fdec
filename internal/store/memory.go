package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flagwell/flagwell/internal/model"
)

// MemoryStore is an in-process Store implementation used for tests and for
// local development without Postgres. All operations are guarded by a
// single mutex; this is intentionally simple, not a performance model.
type MemoryStore struct {
	mu sync.Mutex

	projects     map[string]model.Project
	environments map[string]model.Environment
	flags        map[string]model.Flag           // keyed by flag id
	flagEnvs     map[string]model.FlagEnvironment // keyed by flagID+"/"+environmentID
	segments     map[string]model.Segment
	credentials  map[string]model.SDKCredential
	versions     map[string]int64
	audit        []model.AuditEntry
	webhooks     map[string]model.Webhook
	deliveries   []model.WebhookDelivery
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects:     make(map[string]model.Project),
		environments: make(map[string]model.Environment),
		flags:        make(map[string]model.Flag),
		flagEnvs:     make(map[string]model.FlagEnvironment),
		segments:     make(map[string]model.Segment),
		credentials:  make(map[string]model.SDKCredential),
		versions:     make(map[string]int64),
		webhooks:     make(map[string]model.Webhook),
	}
}

func feKey(flagID, environmentID string) string { return flagID + "/" + environmentID }

func (s *MemoryStore) CreateProject(_ context.Context, p *model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now().UTC()
	s.projects[p.ID] = *p
	return nil
}

func (s *MemoryStore) GetProject(_ context.Context, id string) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ListProjects(_ context.Context) ([]model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CreateEnvironment(_ context.Context, e *model.Environment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now().UTC()
	s.environments[e.ID] = *e
	s.versions[e.ID] = 1
	return nil
}

func (s *MemoryStore) ListEnvironments(_ context.Context, projectID string) ([]model.Environment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Environment, 0)
	for _, e := range s.environments {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (s *MemoryStore) GetEnvironment(_ context.Context, id string) (*model.Environment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.environments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (s *MemoryStore) CreateFlag(_ context.Context, f *model.Flag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.flags {
		if existing.ProjectID == f.ProjectID && existing.Key == f.Key {
			return ErrConflict
		}
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.CreatedAt = time.Now().UTC()
	for i := range f.Variants {
		if f.Variants[i].ID == "" {
			f.Variants[i].ID = uuid.NewString()
		}
		f.Variants[i].FlagID = f.ID
	}
	s.flags[f.ID] = *f
	return nil
}

func (s *MemoryStore) GetFlagByKey(_ context.Context, projectID, key string) (*model.Flag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.flags {
		if f.ProjectID == projectID && f.Key == key {
			fc := f
			return &fc, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListFlags(_ context.Context, projectID string) ([]model.Flag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Flag, 0)
	for _, f := range s.flags {
		if f.ProjectID == projectID && !f.Archived {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStore) UpdateFlag(_ context.Context, f *model.Flag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flags[f.ID]; !ok {
		return ErrNotFound
	}
	for i := range f.Variants {
		if f.Variants[i].ID == "" {
			f.Variants[i].ID = uuid.NewString()
		}
		f.Variants[i].FlagID = f.ID
	}
	s.flags[f.ID] = *f
	return nil
}

func (s *MemoryStore) DeleteFlag(_ context.Context, projectID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var id string
	for fid, f := range s.flags {
		if f.ProjectID == projectID && f.Key == key {
			id = fid
			break
		}
	}
	if id == "" {
		return nil // idempotent
	}
	delete(s.flags, id)
	for k, fe := range s.flagEnvs {
		if fe.FlagID == id {
			delete(s.flagEnvs, k)
		}
	}
	return nil
}

func (s *MemoryStore) GetFlagEnvironment(_ context.Context, flagID, environmentID string) (*model.FlagEnvironment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fe, ok := s.flagEnvs[feKey(flagID, environmentID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &fe, nil
}

func (s *MemoryStore) UpsertFlagEnvironment(_ context.Context, fe *model.FlagEnvironment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flagEnvs[feKey(fe.FlagID, fe.EnvironmentID)] = *fe
	return nil
}

func (s *MemoryStore) SetFlagEnabled(_ context.Context, flagID, environmentID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := feKey(flagID, environmentID)
	fe, ok := s.flagEnvs[k]
	if !ok {
		return ErrNotFound
	}
	fe.Enabled = enabled
	s.flagEnvs[k] = fe
	return nil
}

func (s *MemoryStore) CreateSegment(_ context.Context, seg *model.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seg.ID == "" {
		seg.ID = uuid.NewString()
	}
	s.segments[seg.ID] = *seg
	return nil
}

func (s *MemoryStore) ListSegments(_ context.Context, projectID string) ([]model.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Segment, 0)
	for _, seg := range s.segments {
		if seg.ProjectID == projectID {
			out = append(out, seg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// DeleteSegment removes a segment and cascades by stripping any RuleSegment
// references to it from every flag's targeting rules.
func (s *MemoryStore) DeleteSegment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.segments[id]; !ok {
		return nil
	}
	delete(s.segments, id)
	for k, fe := range s.flagEnvs {
		changed := false
		for ri, rule := range fe.Rules {
			kept := rule.Segments[:0]
			for _, rs := range rule.Segments {
				if rs.SegmentID != id {
					kept = append(kept, rs)
				} else {
					changed = true
				}
			}
			fe.Rules[ri].Segments = kept
		}
		if changed {
			s.flagEnvs[k] = fe
		}
	}
	return nil
}

func (s *MemoryStore) CreateSDKCredential(_ context.Context, c *model.SDKCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	s.credentials[c.ID] = *c
	return nil
}

func (s *MemoryStore) GetSDKKeyByHash(_ context.Context, hash string) (*model.SDKCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.credentials {
		if c.KeyHash == hash && !c.Revoked() {
			cc := c
			return &cc, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) RevokeSDKCredential(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	c.RevokedAt = &now
	s.credentials[id] = c
	return nil
}

func (s *MemoryStore) TouchSDKCredentialLastUsed(_ context.Context, id string) error {
	// Best-effort; the in-memory store has nothing else to do with this.
	return nil
}

func (s *MemoryStore) ListSDKCredentials(_ context.Context, environmentID string) ([]model.SDKCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SDKCredential, 0)
	for _, c := range s.credentials {
		if c.EnvironmentID == environmentID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) IncrementConfigVersion(_ context.Context, environmentID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[environmentID]++
	if s.versions[environmentID] == 0 {
		s.versions[environmentID] = 1
	}
	return s.versions[environmentID], nil
}

func (s *MemoryStore) GetConfigVersion(_ context.Context, environmentID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[environmentID]
	if !ok {
		return 1, nil
	}
	return v, nil
}

func (s *MemoryStore) LoadSnapshotSource(_ context.Context, projectID, environmentID string) (*SnapshotSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flags := make([]model.Flag, 0)
	for _, f := range s.flags {
		if f.ProjectID == projectID && !f.Archived {
			flags = append(flags, f)
		}
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].Key < flags[j].Key })

	flagEnvs := make(map[string]model.FlagEnvironment)
	for _, f := range flags {
		if fe, ok := s.flagEnvs[feKey(f.ID, environmentID)]; ok {
			flagEnvs[f.ID] = fe
		}
	}

	segments := make([]model.Segment, 0)
	for _, seg := range s.segments {
		if seg.ProjectID == projectID {
			segments = append(segments, seg)
		}
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].Key < segments[j].Key })

	version := s.versions[environmentID]
	if version == 0 {
		version = 1
	}

	return &SnapshotSource{
		Flags:            flags,
		FlagEnvironments: flagEnvs,
		Segments:         segments,
		Version:          version,
	}, nil
}

func (s *MemoryStore) AppendAudit(_ context.Context, entry model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	s.audit = append(s.audit, entry)
	return nil
}

func (s *MemoryStore) ListAudit(_ context.Context, _ string, limit, offset int) ([]model.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]model.AuditEntry, len(s.audit))
	copy(all, s.audit)
	sort.Slice(all, func(i, j int) bool { return all[i].OccurredAt.After(all[j].OccurredAt) })
	if offset >= len(all) {
		return []model.AuditEntry{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *MemoryStore) CreateWebhook(_ context.Context, w *model.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	w.CreatedAt = time.Now().UTC()
	s.webhooks[w.ID] = *w
	return nil
}

func (s *MemoryStore) ListActiveWebhooks(_ context.Context, projectID string) ([]model.Webhook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Webhook, 0)
	for _, w := range s.webhooks {
		if w.Active && w.ProjectID == projectID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) TouchWebhookLastTriggered(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.webhooks[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	w.LastTriggered = &now
	s.webhooks[id] = w
	return nil
}

func (s *MemoryStore) RecordWebhookDelivery(_ context.Context, d model.WebhookDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.OccurredAt.IsZero() {
		d.OccurredAt = time.Now().UTC()
	}
	s.deliveries = append(s.deliveries, d)
	return nil
}

// DeliveriesForTest returns a snapshot of recorded webhook deliveries.
// Exposed for test assertions only; no production caller needs it.
func (s *MemoryStore) DeliveriesForTest() []model.WebhookDelivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.WebhookDelivery, len(s.deliveries))
	copy(out, s.deliveries)
	return out
}

func (s *MemoryStore) Close() {}
