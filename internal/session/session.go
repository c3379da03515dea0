// Package session owns the per-user working state: the in-memory asset
// caches, the quota tracker and the generation flows. State lives for
// the lifetime of the server process; the remote store holds the only
// durable copy, so a fresh session simply reloads from remote.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fitcheckhq/fitcheck/internal/datauri"
	"github.com/fitcheckhq/fitcheck/internal/genimage"
	"github.com/fitcheckhq/fitcheck/internal/library"
	"github.com/fitcheckhq/fitcheck/internal/model"
	"github.com/fitcheckhq/fitcheck/internal/orchestrator"
	"github.com/fitcheckhq/fitcheck/internal/quota"
	"github.com/fitcheckhq/fitcheck/internal/storage"
	"github.com/fitcheckhq/fitcheck/internal/stylist"
)

// Session is one signed-in user's working state.
type Session struct {
	User *model.User

	// Library holds the wardrobe group (self photos, garments); Catalog
	// holds the business group (mannequins, products).
	Library *library.Cache
	Catalog *library.Cache

	Quota *quota.Tracker

	TryOn      *orchestrator.Orchestrator
	CatalogGen *orchestrator.Orchestrator
	Stylist    *stylist.Advisor
}

// cacheFor returns the cache owning the category.
func (s *Session) cacheFor(category model.Category) (*library.Cache, error) {
	group, ok := model.GroupOf(category)
	if !ok {
		return nil, library.ErrUnknownCategory
	}
	if group == model.GroupLibrary {
		return s.Library, nil
	}
	return s.Catalog, nil
}

// Records lists the visible records for a category.
func (s *Session) Records(category model.Category) ([]model.AssetRecord, error) {
	cache, err := s.cacheFor(category)
	if err != nil {
		return nil, err
	}
	return cache.Records(category), nil
}

// Load refetches one category from the remote store.
func (s *Session) Load(ctx context.Context, category model.Category) ([]model.AssetRecord, error) {
	cache, err := s.cacheFor(category)
	if err != nil {
		return nil, err
	}
	return cache.Load(ctx, category)
}

// Add uploads files into a category.
func (s *Session) Add(ctx context.Context, category model.Category, uploads []library.Upload) ([]model.AssetRecord, []error) {
	cache, err := s.cacheFor(category)
	if err != nil {
		return nil, []error{err}
	}
	return cache.Add(ctx, category, uploads)
}

// Remove deletes one record.
func (s *Session) Remove(ctx context.Context, category model.Category, id string) error {
	cache, err := s.cacheFor(category)
	if err != nil {
		return err
	}
	return cache.Remove(ctx, category, id)
}

// Generator is the full capability surface the generation flows need.
// *genimage.Client satisfies it.
type Generator interface {
	genimage.Generator
	genimage.StructuredGenerator
}

// Deps are the process-wide services sessions are built from.
type Deps struct {
	Store     storage.UserStores
	Counter   quota.Counter
	Generator Generator
	Resolver  *datauri.Resolver

	// QuotaLimit is the per-user, per-day generation budget.
	QuotaLimit int
}

// Manager hands out one session per user and keeps it for the process
// lifetime. Two requests carrying the same user share a session, which
// is what makes the single in-flight guard and the quota cache work.
type Manager struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(deps Deps) *Manager {
	if deps.Resolver == nil {
		deps.Resolver = datauri.NewResolver(nil)
	}
	return &Manager{
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// Get returns the user's session, creating and hydrating it on first
// sight. Hydration failures are logged, not fatal: each category can be
// reloaded individually later.
func (m *Manager) Get(ctx context.Context, user *model.User) *Session {
	m.mu.Lock()
	if sess, ok := m.sessions[user.ID]; ok {
		m.mu.Unlock()
		return sess
	}
	m.mu.Unlock()

	sess := m.build(user)
	if err := sess.Library.LoadAll(ctx); err != nil {
		slog.Warn("failed to hydrate library", "user_id", user.ID, "error", err)
	}
	if err := sess.Catalog.LoadAll(ctx); err != nil {
		slog.Warn("failed to hydrate catalog", "user_id", user.ID, "error", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// A concurrent first request may have built the session already.
	if existing, ok := m.sessions[user.ID]; ok {
		return existing
	}
	m.sessions[user.ID] = sess
	return sess
}

// Peek returns the session without creating one.
func (m *Manager) Peek(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[userID]
	return sess, ok
}

// End drops the user's session. In-memory state is discarded; the
// remote store is untouched.
func (m *Manager) End(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

func (m *Manager) build(user *model.User) *Session {
	store := m.deps.Store.ForUser(user.ID)
	libCache := library.NewCache(model.GroupLibrary, store, m.deps.Resolver)
	catCache := library.NewCache(model.GroupCatalog, store, m.deps.Resolver)
	tracker := quota.NewTracker(m.deps.Counter, user.ID, m.deps.QuotaLimit)

	return &Session{
		User:       user,
		Library:    libCache,
		Catalog:    catCache,
		Quota:      tracker,
		TryOn:      orchestrator.New(orchestrator.TryOnConfig(), libCache, tracker, m.deps.Generator),
		CatalogGen: orchestrator.New(orchestrator.CatalogConfig(), catCache, tracker, m.deps.Generator),
		Stylist:    stylist.NewAdvisor(libCache, tracker, m.deps.Generator),
	}
}
