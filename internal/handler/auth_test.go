package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitcheckhq/fitcheck/internal/config"
	"github.com/fitcheckhq/fitcheck/internal/ctxkeys"
	"github.com/fitcheckhq/fitcheck/internal/genimage"
	"github.com/fitcheckhq/fitcheck/internal/library"
	"github.com/fitcheckhq/fitcheck/internal/model"
	"github.com/fitcheckhq/fitcheck/internal/orchestrator"
	"github.com/fitcheckhq/fitcheck/internal/service"
	"github.com/fitcheckhq/fitcheck/internal/session"
	"github.com/fitcheckhq/fitcheck/internal/storage"
)

// memStores keeps per-user objects in memory, linking them to a test
// server so display URLs resolve.
type memStores struct {
	mu       sync.Mutex
	linkBase string
	objects  map[string]map[model.Category][]storage.Object
	nextID   int
}

func newMemStores(linkBase string) *memStores {
	return &memStores{
		linkBase: linkBase,
		objects:  make(map[string]map[model.Category][]storage.Object),
	}
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
		Link:   fmt.Sprintf("%s/obj-%d", s.parent.linkBase, s.parent.nextID),
	}
	s.parent.objects[s.userID][category] = append(s.parent.objects[s.userID][category], obj)
	return obj, nil
}

func (s *memUserStore) Delete(ctx context.Context, handle string) error {
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

// blockGen holds every Generate call open until released.
type blockGen struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *blockGen) Generate(ctx context.Context, req genimage.Request) (*genimage.Result, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return &genimage.Result{ImageDataURI: "data:image/png;base64,b3V0"}, nil
}

func (g *blockGen) GenerateStructured(ctx context.Context, req genimage.Request, out any) error {
	return nil
}

func TestLogoutRefusedWhileGenerationInFlight(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("pixels"))
	}))
	defer srv.Close()

	gen := &blockGen{started: make(chan struct{}), release: make(chan struct{})}
	mgr := session.NewManager(session.Deps{
		Store:      newMemStores(srv.URL),
		Counter:    &memCounter{counts: map[string]int{}},
		Generator:  gen,
		QuotaLimit: 3,
	})

	ctx := context.Background()
	user := &model.User{ID: "u1", Email: "u1@example.com", SignedIn: true}
	sess := mgr.Get(ctx, user)

	subject, err := sess.Library.AddOne(ctx, model.CategorySelfPhoto, library.Upload{
		FileName: "me.png", DataURI: "data:image/png;base64,cGl4",
	})
	require.NoError(t, err)
	garment, err := sess.Library.AddOne(ctx, model.CategoryGarment, library.Upload{
		FileName: "jacket.png", DataURI: "data:image/png;base64,cGl4",
	})
	require.NoError(t, err)

	submitDone := make(chan error, 1)
	go func() {
		_, err := sess.TryOn.Submit(ctx, user, orchestrator.Params{
			SubjectID: subject.ID,
			TargetIDs: []string{garment.ID},
		})
		submitDone <- err
	}()
	<-gen.started

	authService := service.NewAuthService("test-secret", time.Hour, false)
	h := NewAuthHandler(authService, mgr, &config.Config{AppEnv: "development"})

	logout := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		req = req.WithContext(ctxkeys.WithUser(req.Context(), user))
		rec := httptest.NewRecorder()
		h.Logout(rec, req)
		return rec
	}

	// A running generation pins the session.
	rec := logout()
	assert.Equal(t, http.StatusConflict, rec.Code)
	_, stillThere := mgr.Peek(user.ID)
	assert.True(t, stillThere)

	close(gen.release)
	require.NoError(t, <-submitDone)

	rec = logout()
	assert.Equal(t, http.StatusOK, rec.Code)
	_, stillThere = mgr.Peek(user.ID)
	assert.False(t, stillThere)

	// The auth cookie is cleared either way.
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "auth_token", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
}
