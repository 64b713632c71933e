package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/civiclens/registry-cli/internal/model"
)

// MemoryStore is an in-memory Store used by tests and dry runs. It honors
// the same guard semantics as the SQL stores.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	members map[int64]model.Member
	log     []model.ExtractionLogEntry
	pages   map[string]model.PageCache
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		nextID:  1,
		members: make(map[int64]model.Member),
		pages:   make(map[string]model.PageCache),
	}
}

func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error                      { return nil }

func (s *MemoryStore) CreateMember(ctx context.Context, m *model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	m.ID = s.nextID
	s.nextID++
	m.Version = 1
	m.CreatedAt = now
	m.UpdatedAt = now
	s.members[m.ID] = *m
	return nil
}

func (s *MemoryStore) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *MemoryStore) SearchMembers(ctx context.Context, query string, limit int) ([]model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}
	q := strings.ToLower(query)
	var out []model.Member
	for _, m := range s.members {
		if q == "" || strings.Contains(strings.ToLower(m.Name), q) ||
			strings.Contains(strings.ToLower(m.Party), q) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UpdateMemberGuarded(ctx context.Context, m *model.Member) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.members[m.ID]
	if !ok || cur.Version != m.Version || cur.IsManuallyVerified {
		return false, nil
	}
	cur.Name = m.Name
	cur.Role = m.Role
	cur.Party = m.Party
	cur.District = m.District
	cur.SourceURL = m.SourceURL
	cur.LatestExtractionLogID = m.LatestExtractionLogID
	cur.Version++
	cur.UpdatedAt = time.Now().UTC()
	s.members[m.ID] = cur
	return true, nil
}

func (s *MemoryStore) VerifyMember(ctx context.Context, m *model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.members[m.ID]
	if !ok {
		return eris.Errorf("memory: verify member %d: not found", m.ID)
	}
	cur.Name = m.Name
	cur.Role = m.Role
	cur.Party = m.Party
	cur.District = m.District
	cur.SourceURL = m.SourceURL
	cur.IsManuallyVerified = true
	cur.Version++
	cur.UpdatedAt = time.Now().UTC()
	s.members[m.ID] = cur
	return nil
}

func (s *MemoryStore) AppendExtractionLog(ctx context.Context, e *model.ExtractionLogEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.log = append(s.log, *e)
	return e.ID, nil
}

func (s *MemoryStore) ListExtractionLog(ctx context.Context, entityType model.EntityType, entityID int64) ([]model.ExtractionLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.ExtractionLogEntry
	for _, e := range s.log {
		if e.EntityType == entityType && e.EntityID != nil && *e.EntityID == entityID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) GetCachedPage(ctx context.Context, url string) (*model.PageCache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pc, ok := s.pages[url]
	if !ok || !pc.ExpiresAt.After(time.Now().UTC()) {
		return nil, nil
	}
	return &pc, nil
}

func (s *MemoryStore) SetCachedPage(ctx context.Context, url string, page model.FetchedPage, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.pages[url] = model.PageCache{
		ID:        uuid.NewString(),
		URL:       url,
		Page:      page,
		FetchedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	return nil
}

func (s *MemoryStore) DeleteExpiredPages(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	n := 0
	for url, pc := range s.pages {
		if !pc.ExpiresAt.After(now) {
			delete(s.pages, url)
			n++
		}
	}
	return n, nil
}
