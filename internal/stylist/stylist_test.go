package stylist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitcheckhq/fitcheck/internal/datauri"
	"github.com/fitcheckhq/fitcheck/internal/genimage"
	"github.com/fitcheckhq/fitcheck/internal/library"
	"github.com/fitcheckhq/fitcheck/internal/model"
	"github.com/fitcheckhq/fitcheck/internal/orchestrator"
	"github.com/fitcheckhq/fitcheck/internal/quota"
	"github.com/fitcheckhq/fitcheck/internal/storage"
)

type memStore struct {
	mu       sync.Mutex
	linkBase string
	objects  map[model.Category][]storage.Object
	nextID   int
}

func (m *memStore) List(ctx context.Context, category model.Category) ([]storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.Object(nil), m.objects[category]...), nil
}

func (m *memStore) Upload(ctx context.Context, category model.Category, name, dataURI string) (storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	obj := storage.Object{
		Handle: fmt.Sprintf("users/u1/%s/obj-%d", category, m.nextID),
		Name:   name,
		Link:   fmt.Sprintf("%s/obj-%d", m.linkBase, m.nextID),
	}
	m.objects[category] = append(m.objects[category], obj)
	return obj, nil
}

func (m *memStore) Delete(ctx context.Context, handle string) error { return nil }

type fixedCounter struct {
	count    int
	countErr error
}

func (f *fixedCounter) Count(ctx context.Context, userID, period string) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.count, nil
}

func (f *fixedCounter) Increment(ctx context.Context, userID, period string) (int, error) {
	f.count++
	return f.count, nil
}

type structuredFake struct {
	calls   int
	payload string
}

func (s *structuredFake) GenerateStructured(ctx context.Context, req genimage.Request, out any) error {
	s.calls++
	return json.Unmarshal([]byte(s.payload), out)
}

func newTestAdvisor(t *testing.T, gen genimage.StructuredGenerator, counter quota.Counter) (*Advisor, *library.Cache) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("pixels"))
	}))
	t.Cleanup(srv.Close)

	store := &memStore{linkBase: srv.URL, objects: make(map[model.Category][]storage.Object)}
	cache := library.NewCache(model.GroupLibrary, store, datauri.NewResolver(nil))
	tracker := quota.NewTracker(counter, "u1", 3)
	return NewAdvisor(cache, tracker, gen), cache
}

func seedWardrobe(t *testing.T, cache *library.Cache) (subject model.AssetRecord, garments []model.AssetRecord) {
	t.Helper()
	ctx := context.Background()
	subject, err := cache.AddOne(ctx, model.CategorySelfPhoto, library.Upload{
		FileName: "me.png", DataURI: "data:image/png;base64,c3ViamVjdA==",
	})
	require.NoError(t, err)
	for _, name := range []string{"jacket.png", "jeans.png"} {
		rec, err := cache.AddOne(ctx, model.CategoryGarment, library.Upload{
			FileName: name, DataURI: "data:image/png;base64,Z2FybWVudA==",
		})
		require.NoError(t, err)
		garments = append(garments, rec)
	}
	return subject, garments
}

func TestRecommendDefaultsToWholeWardrobe(t *testing.T) {
	gen := &structuredFake{payload: `[
		{"outfit_description": "Jacket over jeans", "confidence_score": 0.9},
		{"outfit_description": "Jeans with a plain tee", "confidence_score": 0.6}
	]`}
	counter := &fixedCounter{}
	advisor, cache := newTestAdvisor(t, gen, counter)
	subject, _ := seedWardrobe(t, cache)

	user := &model.User{ID: "u1", SignedIn: true}
	recs, err := advisor.Recommend(context.Background(), user, subject.ID, nil)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Jacket over jeans", recs[0].OutfitDescription)
	assert.Equal(t, 0.9, recs[0].ConfidenceScore)
	assert.Equal(t, 1, counter.count, "a delivered recommendation consumes quota")
}

func TestRecommendRequiresGarments(t *testing.T) {
	gen := &structuredFake{payload: `[]`}
	advisor, cache := newTestAdvisor(t, gen, &fixedCounter{})

	subject, err := cache.AddOne(context.Background(), model.CategorySelfPhoto, library.Upload{
		FileName: "me.png", DataURI: "data:image/png;base64,c3ViamVjdA==",
	})
	require.NoError(t, err)

	user := &model.User{ID: "u1", SignedIn: true}
	_, err = advisor.Recommend(context.Background(), user, subject.ID, nil)
	assert.ErrorIs(t, err, orchestrator.ErrMissingSelection)
	assert.Zero(t, gen.calls)
}

func TestRecommendBlockedOnExhaustedQuota(t *testing.T) {
	gen := &structuredFake{payload: `[]`}
	counter := &fixedCounter{count: 3}
	advisor, cache := newTestAdvisor(t, gen, counter)
	subject, garments := seedWardrobe(t, cache)

	user := &model.User{ID: "u1", SignedIn: true}
	_, err := advisor.Recommend(context.Background(), user, subject.ID, []string{garments[0].ID})
	assert.ErrorIs(t, err, orchestrator.ErrQuotaExceeded)
	assert.Zero(t, gen.calls)
}

func TestRecommendUnknownGarment(t *testing.T) {
	gen := &structuredFake{payload: `[]`}
	advisor, cache := newTestAdvisor(t, gen, &fixedCounter{})
	subject, _ := seedWardrobe(t, cache)

	user := &model.User{ID: "u1", SignedIn: true}
	_, err := advisor.Recommend(context.Background(), user, subject.ID, []string{"missing"})
	var unavailable *orchestrator.AssetUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "missing", unavailable.ID)
	assert.Zero(t, gen.calls)
}

func TestRecommendBlockedOnUnknownQuota(t *testing.T) {
	gen := &structuredFake{payload: `[]`}
	counter := &fixedCounter{countErr: errors.New("counter service down")}
	advisor, cache := newTestAdvisor(t, gen, counter)
	subject, garments := seedWardrobe(t, cache)

	user := &model.User{ID: "u1", SignedIn: true}
	_, err := advisor.Recommend(context.Background(), user, subject.ID, []string{garments[0].ID})
	assert.ErrorIs(t, err, quota.ErrUnknown, "unknown budget must block, not admit")
	assert.Zero(t, gen.calls)
}
