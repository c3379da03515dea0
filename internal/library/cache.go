// Package library keeps an in-memory, per-category view of a user's
// images synchronized with the remote asset store. The remote store is
// the source of truth: records become visible only after the store
// confirms an upload, and they leave the view only after the store
// confirms a delete.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fitcheckhq/fitcheck/internal/datauri"
	"github.com/fitcheckhq/fitcheck/internal/model"
	"github.com/fitcheckhq/fitcheck/internal/storage"
)

var (
	ErrUnknownCategory = errors.New("category not in this library group")
	ErrAssetNotFound   = errors.New("asset not found")
)

// UploadError reports a failed upload of a single file. Other files in
// the same batch are unaffected.
type UploadError struct {
	FileName string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %q failed: %v", e.FileName, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// DeleteError reports a failed remote delete. The record stays visible:
// local-only deletion would desynchronize the cache from the store.
type DeleteError struct {
	ID  string
	Err error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete asset %s failed: %v", e.ID, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }

// Upload is one file selected by the user, already inline-encoded.
type Upload struct {
	FileName string
	DataURI  string
}

// Cache is the asset library for one category group. All mutation goes
// through its methods; network calls never happen while the lock is
// held, so state stays consistent across suspension points.
type Cache struct {
	group    model.Group
	store    storage.Store
	resolver *datauri.Resolver

	mu      sync.Mutex
	records map[model.Category][]model.AssetRecord
}

// NewCache creates an empty library for the group, backed by the store.
func NewCache(group model.Group, store storage.Store, resolver *datauri.Resolver) *Cache {
	records := make(map[model.Category][]model.AssetRecord, len(group.Categories()))
	for _, c := range group.Categories() {
		records[c] = nil
	}
	return &Cache{
		group:    group,
		store:    store,
		resolver: resolver,
		records:  records,
	}
}

// Group returns the category group this cache serves.
func (c *Cache) Group() model.Group { return c.group }

func (c *Cache) owns(category model.Category) bool {
	_, ok := c.records[category]
	return ok
}

// Records returns a copy of the category's current sequence, oldest
// confirmed upload first.
func (c *Cache) Records(category model.Category) []model.AssetRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.AssetRecord(nil), c.records[category]...)
}

// Find returns the record with the given id in the category.
func (c *Cache) Find(category model.Category, id string) (model.AssetRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range c.records[category] {
		if rec.ID == id {
			return rec, true
		}
	}
	return model.AssetRecord{}, false
}

// Load fetches the authoritative list from the remote store and replaces
// the category's sequence wholesale. Concurrent loads cannot tear the
// sequence: whichever fetch completes last installs its full result.
func (c *Cache) Load(ctx context.Context, category model.Category) ([]model.AssetRecord, error) {
	if !c.owns(category) {
		return nil, ErrUnknownCategory
	}

	objects, err := c.store.List(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", category, err)
	}

	fresh := make([]model.AssetRecord, 0, len(objects))
	for _, obj := range objects {
		fresh = append(fresh, model.AssetRecord{
			ID:           obj.Handle,
			Category:     category,
			FileName:     obj.Name,
			DisplayURL:   obj.Link,
			RemoteHandle: obj.Handle,
		})
	}

	c.mu.Lock()
	c.records[category] = fresh
	c.mu.Unlock()

	return append([]model.AssetRecord(nil), fresh...), nil
}

// LoadAll refreshes every category in the group concurrently and returns
// the first error encountered.
func (c *Cache) LoadAll(ctx context.Context) error {
	categories := c.group.Categories()

	var wg sync.WaitGroup
	errs := make([]error, len(categories))
	for i, category := range categories {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.Load(ctx, category)
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Add uploads each file independently and appends a confirmed record per
// successful upload. A failed file is dropped with an error; files that
// already succeeded stay. No pending record ever enters the visible
// sequence.
func (c *Cache) Add(ctx context.Context, category model.Category, uploads []Upload) ([]model.AssetRecord, []error) {
	if !c.owns(category) {
		return nil, []error{ErrUnknownCategory}
	}

	type result struct {
		record model.AssetRecord
		err    error
	}
	results := make([]result, len(uploads))

	var wg sync.WaitGroup
	for i, up := range uploads {
		wg.Add(1)
		go func() {
			defer wg.Done()
			obj, err := c.store.Upload(ctx, category, up.FileName, up.DataURI)
			if err != nil {
				results[i] = result{err: &UploadError{FileName: up.FileName, Err: err}}
				return
			}
			// The upload's data URI is not carried into the confirmed
			// record: once DisplayURL exists it is the only route to the
			// bytes, so the cache never pins base64 bodies.
			results[i] = result{record: model.AssetRecord{
				ID:           obj.Handle,
				Category:     category,
				FileName:     up.FileName,
				DisplayURL:   obj.Link,
				RemoteHandle: obj.Handle,
			}}
		}()
	}
	wg.Wait()

	var added []model.AssetRecord
	var failed []error
	c.mu.Lock()
	for _, res := range results {
		if res.err != nil {
			failed = append(failed, res.err)
			continue
		}
		c.records[category] = append(c.records[category], res.record)
		added = append(added, res.record)
	}
	c.mu.Unlock()

	for _, err := range failed {
		slog.Warn("asset upload failed", "category", category, "error", err)
	}

	return added, failed
}

// AddOne uploads a single file and returns its confirmed record.
func (c *Cache) AddOne(ctx context.Context, category model.Category, up Upload) (model.AssetRecord, error) {
	added, failed := c.Add(ctx, category, []Upload{up})
	if len(failed) > 0 {
		return model.AssetRecord{}, failed[0]
	}
	return added[0], nil
}

// Remove deletes the record from the remote store and, only on confirmed
// success, drops it from the sequence. On failure the record stays
// visible and the error is returned.
func (c *Cache) Remove(ctx context.Context, category model.Category, id string) error {
	if !c.owns(category) {
		return ErrUnknownCategory
	}

	rec, ok := c.Find(category, id)
	if !ok {
		return ErrAssetNotFound
	}
	if rec.Pending() {
		return &DeleteError{ID: id, Err: errors.New("record has no remote handle")}
	}

	if err := c.store.Delete(ctx, rec.RemoteHandle); err != nil {
		return &DeleteError{ID: id, Err: err}
	}

	c.mu.Lock()
	seq := c.records[category]
	for i, r := range seq {
		if r.ID == id {
			c.records[category] = append(seq[:i:i], seq[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	return nil
}

// ResolvePayload returns the record's bytes as an inline data URI. A
// still-held inline payload is reused; otherwise the display URL is
// dereferenced through the codec. This is the only path by which asset
// bytes are obtained for transmission to generation.
func (c *Cache) ResolvePayload(ctx context.Context, category model.Category, id string) (string, error) {
	if !c.owns(category) {
		return "", ErrUnknownCategory
	}

	rec, ok := c.Find(category, id)
	if !ok {
		return "", ErrAssetNotFound
	}
	if rec.InlinePayload != "" {
		return rec.InlinePayload, nil
	}

	return c.resolver.Resolve(ctx, rec.DisplayURL)
}
