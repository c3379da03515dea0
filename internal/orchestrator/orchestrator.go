// Package orchestrator turns a user's asset selection into a single,
// quota-checked, long-running generation job. One orchestrator instance
// serves one user session and one pairing of categories; it admits at
// most one request at a time.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fitcheckhq/fitcheck/internal/genimage"
	"github.com/fitcheckhq/fitcheck/internal/library"
	"github.com/fitcheckhq/fitcheck/internal/model"
	"github.com/fitcheckhq/fitcheck/internal/quota"
)

var (
	// ErrMissingSelection: the subject or all targets are unset.
	ErrMissingSelection = errors.New("missing selection")
	// ErrUnauthenticated: no valid user session is attached.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrQuotaExceeded: no generation budget left in the current period.
	ErrQuotaExceeded = errors.New("generation quota exceeded")
	// ErrRequestInProgress: another request is still in flight.
	ErrRequestInProgress = errors.New("a generation request is already in progress")
)

// AssetUnavailableError identifies the referenced asset whose bytes
// could not be resolved. The whole request aborts: no partial
// submission with missing inputs.
type AssetUnavailableError struct {
	Category model.Category
	ID       string
	Err      error
}

func (e *AssetUnavailableError) Error() string {
	return fmt.Sprintf("asset %s/%s unavailable: %v", e.Category, e.ID, e.Err)
}

func (e *AssetUnavailableError) Unwrap() error { return e.Err }

// GenerationError wraps a failed capability call, keeping the upstream
// message where available.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Params is one user submission.
type Params struct {
	SubjectID string
	TargetIDs []string
	Style     string // optional style instruction appended to the prompt
}

// Config fixes the category pairing and result handling for an
// orchestrator instance.
type Config struct {
	SubjectCategory model.Category
	TargetCategory  model.Category
	// ResultCategory receives the generated image so it shows up in the
	// user's history.
	ResultCategory model.Category
	// ResultPrefix names persisted results, e.g. "try-on" or "catalog".
	ResultPrefix string
	// Prompt builds the capability instruction from the style text.
	Prompt func(style string) string
}

// Orchestrator runs the request state machine:
// Validating → Admitted → InFlight → {Persisting → Succeeded} | Failed.
type Orchestrator struct {
	cfg       Config
	library   *library.Cache
	quota     *quota.Tracker
	generator genimage.Generator
	now       func() time.Time

	mu       sync.Mutex
	inFlight bool
}

// New creates an orchestrator over the given library group and quota
// tracker.
func New(cfg Config, lib *library.Cache, tracker *quota.Tracker, generator genimage.Generator) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		library:   lib,
		quota:     tracker,
		generator: generator,
		now:       time.Now,
	}
}

// Submit runs one generation request to a terminal state. Validation
// rejections happen before any network call; a post-admission failure
// aborts cleanly with cache and quota untouched. Persistence failure
// after a successful generation is reported as a warning on the
// outcome, not as a failed request.
func (o *Orchestrator) Submit(ctx context.Context, user *model.User, p Params) (*model.GenerationOutcome, error) {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return nil, ErrRequestInProgress
	}
	o.inFlight = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.inFlight = false
		o.mu.Unlock()
	}()

	req := &model.GenerationRequest{
		ID:          uuid.New().String(),
		SubjectID:   p.SubjectID,
		TargetIDs:   p.TargetIDs,
		Status:      model.StatusValidating,
		SubmittedAt: o.now(),
	}

	if user == nil {
		req.Status = model.StatusFailed
		return nil, ErrUnauthenticated
	}
	if p.SubjectID == "" || len(p.TargetIDs) == 0 {
		req.Status = model.StatusFailed
		return nil, ErrMissingSelection
	}

	// Quota must be freshly known at admission time, not a value cached
	// at page load. Unknown state blocks submission (fail closed).
	state, err := o.quota.Refresh(ctx)
	if err != nil {
		req.Status = model.StatusFailed
		return nil, err
	}
	if state.Remaining() <= 0 {
		req.Status = model.StatusFailed
		return nil, ErrQuotaExceeded
	}

	req.Status = model.StatusAdmitted

	images, err := o.resolveInputs(ctx, p)
	if err != nil {
		req.Status = model.StatusFailed
		return nil, err
	}

	req.Status = model.StatusInFlight
	slog.Info("generation request in flight",
		"request_id", req.ID,
		"user_id", user.ID,
		"subject", p.SubjectID,
		"targets", len(p.TargetIDs),
	)

	// The capability is costly and non-idempotent: exactly one call,
	// no automatic retry.
	result, err := o.generator.Generate(ctx, genimage.Request{
		Prompt: o.cfg.Prompt(p.Style),
		Images: images,
	})
	if err != nil {
		req.Status = model.StatusFailed
		return nil, &GenerationError{Err: err}
	}

	req.Status = model.StatusPersisting
	outcome := &model.GenerationOutcome{
		Request:        req,
		ImageDataURI:   result.ImageDataURI,
		QuotaRemaining: -1,
	}

	// The quota counter only moves after confirmed output.
	if quotaState, quotaErr := o.quota.RecordUse(ctx); quotaErr != nil {
		slog.Warn("failed to record quota use", "request_id", req.ID, "error", quotaErr)
	} else {
		outcome.QuotaRemaining = quotaState.Remaining()
	}

	o.persist(ctx, req, outcome)

	req.Status = model.StatusSucceeded
	return outcome, nil
}

// InFlight reports whether a request is currently running.
func (o *Orchestrator) InFlight() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight
}

// resolveInputs turns every referenced asset into a transferable
// payload, subject first. Any single failure aborts the set.
func (o *Orchestrator) resolveInputs(ctx context.Context, p Params) ([]string, error) {
	type assetRef struct {
		category model.Category
		id       string
	}
	refs := make([]assetRef, 0, len(p.TargetIDs)+1)
	refs = append(refs, assetRef{o.cfg.SubjectCategory, p.SubjectID})
	for _, id := range p.TargetIDs {
		refs = append(refs, assetRef{o.cfg.TargetCategory, id})
	}

	images := make([]string, 0, len(refs))
	for _, ref := range refs {
		rec, ok := o.library.Find(ref.category, ref.id)
		if !ok {
			return nil, &AssetUnavailableError{Category: ref.category, ID: ref.id, Err: library.ErrAssetNotFound}
		}
		if rec.Pending() {
			return nil, &AssetUnavailableError{Category: ref.category, ID: ref.id, Err: errors.New("upload not confirmed")}
		}
		payload, err := o.library.ResolvePayload(ctx, ref.category, ref.id)
		if err != nil {
			return nil, &AssetUnavailableError{Category: ref.category, ID: ref.id, Err: err}
		}
		images = append(images, payload)
	}

	return images, nil
}

// persist saves the generated image back into the library so it appears
// in the user's history. Failure here never fails the request: the user
// already has the image in hand.
func (o *Orchestrator) persist(ctx context.Context, req *model.GenerationRequest, outcome *model.GenerationOutcome) {
	name := fmt.Sprintf("%s-%s.png", o.cfg.ResultPrefix, req.SubmittedAt.UTC().Format("20060102-150405"))

	rec, err := o.library.AddOne(ctx, o.cfg.ResultCategory, library.Upload{
		FileName: name,
		DataURI:  outcome.ImageDataURI,
	})
	if err != nil {
		outcome.PersistenceWarning = fmt.Sprintf("result could not be saved to your library: %v", err)
		slog.Warn("failed to persist generation result",
			"request_id", req.ID,
			"category", o.cfg.ResultCategory,
			"error", err,
		)
		return
	}

	outcome.ResultAsset = &rec
}
