package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/corvusHold/courier/internal/dispatch/domain"
	"github.com/corvusHold/courier/internal/platform/cache"
)

// memMessages is an in-memory MessageRepository that keeps every save in order.
type memMessages struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]*domain.Message
	order []uuid.UUID
	saves []domain.Status
	err   error

	// claimed holds lease expiries set by ClaimDue.
	claimed map[uuid.UUID]time.Time
}

func newMemMessages() *memMessages {
	return &memMessages{rows: map[uuid.UUID]*domain.Message{}, claimed: map[uuid.UUID]time.Time{}}
}

func (r *memMessages) Save(_ context.Context, m *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.rows[m.ID]; !ok {
		r.order = append(r.order, m.ID)
	}
	r.rows[m.ID] = m.Clone()
	r.saves = append(r.saves, m.Status)
	return nil
}

func (r *memMessages) GetByID(_ context.Context, _ domain.ChannelType, id uuid.UUID) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	return m.Clone(), nil
}

func (r *memMessages) Delete(_ context.Context, _ domain.ChannelType, tenantID uuid.UUID, ids []uuid.UUID, hard bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now()
	for _, id := range ids {
		m, ok := r.rows[id]
		if !ok || m.TenantID != tenantID {
			continue
		}
		n++
		if hard {
			delete(r.rows, id)
		} else {
			m.DeletedAt = &now
		}
	}
	return n, nil
}

func (r *memMessages) DeleteOlderThan(_ context.Context, _ domain.ChannelType, tenantID *uuid.UUID, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, m := range r.rows {
		if tenantID != nil && m.TenantID != *tenantID {
			continue
		}
		if m.CreatedAt.Before(cutoff) {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

func (r *memMessages) ClaimDue(_ context.Context, ch domain.ChannelType, now, leaseUntil time.Time, limit int) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Message
	for _, id := range r.order {
		m, ok := r.rows[id]
		if !ok || m.Channel != ch || m.Status != domain.StatusPending || m.DeletedAt != nil {
			continue
		}
		if m.ExpectedSendDate != nil && m.ExpectedSendDate.After(now) {
			continue
		}
		if until, ok := r.claimed[id]; ok && until.After(now) {
			continue
		}
		r.claimed[id] = leaseUntil
		out = append(out, m.Clone())
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memMessages) all() []*domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Message, 0, len(r.order))
	for _, id := range r.order {
		if m, ok := r.rows[id]; ok {
			out = append(out, m)
		}
	}
	return out
}

// memDirectory serves the same contact list for every category and counts lookups.
type memDirectory struct {
	contacts []domain.Contact
	calls    map[string]int
	lastIDs  []uuid.UUID
}

func newMemDirectory(contacts []domain.Contact) *memDirectory {
	return &memDirectory{contacts: contacts, calls: map[string]int{}}
}

func (d *memDirectory) page(limit, offset int) []domain.Contact {
	if offset >= len(d.contacts) {
		return nil
	}
	end := offset + limit
	if end > len(d.contacts) {
		end = len(d.contacts)
	}
	return append([]domain.Contact(nil), d.contacts[offset:end]...)
}

func (d *memDirectory) ByUserIDs(_ context.Context, ids []uuid.UUID) ([]domain.Contact, error) {
	d.calls["user"]++
	d.lastIDs = ids
	return append([]domain.Contact(nil), d.contacts...), nil
}

func (d *memDirectory) ByTenants(_ context.Context, ids []uuid.UUID, limit, offset int) ([]domain.Contact, error) {
	d.calls["tenant"]++
	d.lastIDs = ids
	return d.page(limit, offset), nil
}

func (d *memDirectory) ByDepartments(_ context.Context, ids []uuid.UUID, limit, offset int) ([]domain.Contact, error) {
	d.calls["dept"]++
	d.lastIDs = ids
	return d.page(limit, offset), nil
}

func (d *memDirectory) ByGroups(_ context.Context, ids []uuid.UUID, limit, offset int) ([]domain.Contact, error) {
	d.calls["group"]++
	d.lastIDs = ids
	return d.page(limit, offset), nil
}

func (d *memDirectory) ByRoles(_ context.Context, _ uuid.UUID, _ []string, limit, offset int) ([]domain.Contact, error) {
	d.calls["roles"]++
	return d.page(limit, offset), nil
}

func (d *memDirectory) All(_ context.Context, limit, offset int) ([]domain.Contact, error) {
	d.calls["all"]++
	return d.page(limit, offset), nil
}

func (d *memDirectory) total() int {
	n := 0
	for _, v := range d.calls {
		n += v
	}
	return n
}

type memConfigs struct {
	byID map[uuid.UUID]domain.ChannelConfig
}

func (c *memConfigs) Enabled(_ context.Context, tenantID uuid.UUID, ch domain.ChannelType) (domain.ChannelConfig, error) {
	ids := make([]uuid.UUID, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		cfg := c.byID[id]
		if cfg.TenantID == tenantID && cfg.Channel == ch && cfg.Enabled {
			return cfg, nil
		}
	}
	return domain.ChannelConfig{}, domain.ErrChannelUnavailable
}

func (c *memConfigs) GetByID(_ context.Context, tenantID uuid.UUID, id uuid.UUID) (domain.ChannelConfig, error) {
	cfg, ok := c.byID[id]
	if !ok || cfg.TenantID != tenantID {
		return domain.ChannelConfig{}, domain.ErrChannelUnavailable
	}
	return cfg, nil
}

type memTemplates struct {
	rows []domain.Template
}

func (t *memTemplates) GetByCode(_ context.Context, tenantID uuid.UUID, ch domain.ChannelType, code string) (domain.Template, error) {
	for _, tpl := range t.rows {
		if tpl.TenantID == tenantID && tpl.Code == code && tpl.Channel == ch {
			return tpl, nil
		}
	}
	return domain.Template{}, domain.ErrTemplateNotFound
}

// fakeChannel records provider calls. failFor fails specific destinations, failAll every call.
type fakeChannel struct {
	typ        domain.ChannelType
	perDest    bool
	requireTpl bool
	calls      [][]string
	batchCalls [][]string
	params     []map[string]string
	failFor    map[string]error
	failAll    error
}

func newFakeEmail() *fakeChannel { return &fakeChannel{typ: domain.ChannelEmail, perDest: true} }

func newFakeSMS() *fakeChannel {
	return &fakeChannel{typ: domain.ChannelSMS, requireTpl: true}
}

func (f *fakeChannel) Type() domain.ChannelType { return f.typ }

func (f *fakeChannel) Address(c domain.Contact) string {
	if f.typ == domain.ChannelSMS {
		return c.Mobile
	}
	return c.Email
}

func (f *fakeChannel) PerDestination() bool   { return f.perDest }
func (f *fakeChannel) RequiresTemplate() bool { return f.requireTpl }

func (f *fakeChannel) outcome(dests []string) error {
	if f.failAll != nil {
		return f.failAll
	}
	for _, d := range dests {
		if err, ok := f.failFor[d]; ok {
			return err
		}
	}
	return nil
}

func (f *fakeChannel) SendMessage(_ context.Context, _ domain.ChannelConfig, _ domain.Template, m *domain.Message) error {
	f.calls = append(f.calls, append([]string(nil), m.Destinations...))
	f.params = append(f.params, m.Params)
	return f.outcome(m.Destinations)
}

func (f *fakeChannel) SendBatchMessage(_ context.Context, _ domain.ChannelConfig, _ domain.Template, m *domain.Message) error {
	f.batchCalls = append(f.batchCalls, append([]string(nil), m.Destinations...))
	return f.outcome(m.Destinations)
}

func (f *fakeChannel) destinationsSent() int {
	n := 0
	for _, c := range f.calls {
		n += len(c)
	}
	return n
}

// memCache is a TTL-aware stand-in for the Redis cache used by the verification store.
type memCache struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memCache) Set(_ context.Context, ns, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[cache.Key(ns, key)] = value
	m.ttls[cache.Key(ns, key)] = ttl
	return nil
}

func (m *memCache) Get(_ context.Context, ns, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[cache.Key(ns, key)]
	if !ok {
		return "", cache.ErrMiss
	}
	return v, nil
}

func (m *memCache) Exists(ctx context.Context, ns, key string) (bool, error) {
	_, err := m.Get(ctx, ns, key)
	if errors.Is(err, cache.ErrMiss) {
		return false, nil
	}
	return err == nil, err
}

func (m *memCache) Delete(_ context.Context, entries ...cache.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		delete(m.data, cache.Key(e.Namespace, e.Key))
	}
	return nil
}
