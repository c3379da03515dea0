package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitcheckhq/fitcheck/internal/genimage"
	"github.com/fitcheckhq/fitcheck/internal/library"
	"github.com/fitcheckhq/fitcheck/internal/model"
	"github.com/fitcheckhq/fitcheck/internal/storage"
)

// memStores keeps per-user objects in memory.
type memStores struct {
	mu      sync.Mutex
	objects map[string]map[model.Category][]storage.Object
	nextID  int
}

func newMemStores() *memStores {
	return &memStores{objects: make(map[string]map[model.Category][]storage.Object)}
}

func (m *memStores) ForUser(userID string) storage.Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[userID]; !ok {
		m.objects[userID] = make(map[model.Category][]storage.Object)
	}
	return &memUserStore{parent: m, userID: userID}
}

type memUserStore struct {
	parent *memStores
	userID string
}

func (s *memUserStore) List(ctx context.Context, category model.Category) ([]storage.Object, error) {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	return append([]storage.Object(nil), s.parent.objects[s.userID][category]...), nil
}

func (s *memUserStore) Upload(ctx context.Context, category model.Category, name, dataURI string) (storage.Object, error) {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	s.parent.nextID++
	obj := storage.Object{
		Handle: fmt.Sprintf("users/%s/%s/obj-%d", s.userID, category, s.parent.nextID),
		Name:   name,
		Link:   fmt.Sprintf("https://store.test/obj-%d", s.parent.nextID),
	}
	s.parent.objects[s.userID][category] = append(s.parent.objects[s.userID][category], obj)
	return obj, nil
}

func (s *memUserStore) Delete(ctx context.Context, handle string) error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	for cat, objs := range s.parent.objects[s.userID] {
		for i, obj := range objs {
			if obj.Handle == handle {
				s.parent.objects[s.userID][cat] = append(objs[:i], objs[i+1:]...)
				return nil
			}
		}
	}
	return storage.ErrObjectNotFound
}

type memCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *memCounter) Count(ctx context.Context, userID, period string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[userID+":"+period], nil
}

func (c *memCounter) Increment(ctx context.Context, userID, period string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[userID+":"+period]++
	return c.counts[userID+":"+period], nil
}

type stubGen struct{}

func (stubGen) Generate(ctx context.Context, req genimage.Request) (*genimage.Result, error) {
	return &genimage.Result{ImageDataURI: "data:image/png;base64,b3V0"}, nil
}

func (stubGen) GenerateStructured(ctx context.Context, req genimage.Request, out any) error {
	return nil
}

func newTestManager(stores *memStores) *Manager {
	return NewManager(Deps{
		Store:      stores,
		Counter:    &memCounter{counts: map[string]int{}},
		Generator:  stubGen{},
		QuotaLimit: 3,
	})
}

func TestGetReturnsSameSession(t *testing.T) {
	mgr := newTestManager(newMemStores())
	ctx := context.Background()
	user := &model.User{ID: "u1", SignedIn: true}

	first := mgr.Get(ctx, user)
	second := mgr.Get(ctx, user)
	assert.Same(t, first, second)

	other := mgr.Get(ctx, &model.User{ID: "u2", SignedIn: true})
	assert.NotSame(t, first, other)
}

func TestGetHydratesFromRemote(t *testing.T) {
	stores := newMemStores()
	ctx := context.Background()

	// Pre-existing uploads from an earlier process.
	seed := stores.ForUser("u1")
	_, err := seed.Upload(ctx, model.CategorySelfPhoto, "me.png", "data:image/png;base64,cGl4")
	require.NoError(t, err)
	_, err = seed.Upload(ctx, model.CategoryProduct, "mug.png", "data:image/png;base64,cGl4")
	require.NoError(t, err)

	mgr := newTestManager(stores)
	sess := mgr.Get(ctx, &model.User{ID: "u1", SignedIn: true})

	photos, err := sess.Records(model.CategorySelfPhoto)
	require.NoError(t, err)
	assert.Len(t, photos, 1)
	assert.Equal(t, "me.png", photos[0].FileName)

	products, err := sess.Records(model.CategoryProduct)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestSessionRoutesCategoriesToTheRightCache(t *testing.T) {
	mgr := newTestManager(newMemStores())
	ctx := context.Background()
	sess := mgr.Get(ctx, &model.User{ID: "u1", SignedIn: true})

	added, failed := sess.Add(ctx, model.CategoryGarment, []library.Upload{
		{FileName: "jacket.png", DataURI: "data:image/png;base64,cGl4"},
	})
	require.Empty(t, failed)
	require.Len(t, added, 1)

	assert.Len(t, sess.Library.Records(model.CategoryGarment), 1)
	assert.Empty(t, sess.Catalog.Records(model.CategoryMannequin))

	require.NoError(t, sess.Remove(ctx, model.CategoryGarment, added[0].ID))
	assert.Empty(t, sess.Library.Records(model.CategoryGarment))

	_, err := sess.Records("avatar")
	assert.ErrorIs(t, err, library.ErrUnknownCategory)
}

func TestEndDiscardsLocalStateOnly(t *testing.T) {
	stores := newMemStores()
	mgr := newTestManager(stores)
	ctx := context.Background()
	user := &model.User{ID: "u1", SignedIn: true}

	sess := mgr.Get(ctx, user)
	added, failed := sess.Add(ctx, model.CategorySelfPhoto, []library.Upload{
		{FileName: "me.png", DataURI: "data:image/png;base64,cGl4"},
	})
	require.Empty(t, failed)
	require.Len(t, added, 1)

	mgr.End(user.ID)
	_, ok := mgr.Peek(user.ID)
	assert.False(t, ok)

	// A fresh session sees the remote copy again.
	fresh := mgr.Get(ctx, user)
	assert.NotSame(t, sess, fresh)
	photos, err := fresh.Records(model.CategorySelfPhoto)
	require.NoError(t, err)
	assert.Len(t, photos, 1)
}
