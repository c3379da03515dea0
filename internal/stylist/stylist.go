// Package stylist suggests outfits from the user's garment library. It
// asks the capability for structured JSON rather than an image and never
// persists anything, but it draws on the same generation budget as the
// image flows.
package stylist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fitcheckhq/fitcheck/internal/genimage"
	"github.com/fitcheckhq/fitcheck/internal/library"
	"github.com/fitcheckhq/fitcheck/internal/model"
	"github.com/fitcheckhq/fitcheck/internal/orchestrator"
	"github.com/fitcheckhq/fitcheck/internal/quota"
)

const advisorPrompt = "You are a personal stylist. The first image is a photo of " +
	"a person; the following images are garments from their wardrobe. " +
	"Suggest up to three complete outfits using only these garments. " +
	"Respond with a JSON array of objects, each with an " +
	"\"outfit_description\" string and a \"confidence_score\" number " +
	"between 0 and 1."

// Advisor produces outfit recommendations for one user session. Like
// the image orchestrators it admits at most one request at a time.
type Advisor struct {
	library   *library.Cache
	quota     *quota.Tracker
	generator genimage.StructuredGenerator

	mu       sync.Mutex
	inFlight bool
}

func NewAdvisor(lib *library.Cache, tracker *quota.Tracker, generator genimage.StructuredGenerator) *Advisor {
	return &Advisor{
		library:   lib,
		quota:     tracker,
		generator: generator,
	}
}

// Recommend asks for outfit suggestions built from the subject photo and
// the given garments. An empty garment list means the whole wardrobe.
func (a *Advisor) Recommend(ctx context.Context, user *model.User, subjectID string, garmentIDs []string) ([]model.Recommendation, error) {
	a.mu.Lock()
	if a.inFlight {
		a.mu.Unlock()
		return nil, orchestrator.ErrRequestInProgress
	}
	a.inFlight = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.inFlight = false
		a.mu.Unlock()
	}()

	if user == nil {
		return nil, orchestrator.ErrUnauthenticated
	}
	if subjectID == "" {
		return nil, orchestrator.ErrMissingSelection
	}
	if len(garmentIDs) == 0 {
		for _, rec := range a.library.Records(model.CategoryGarment) {
			garmentIDs = append(garmentIDs, rec.ID)
		}
	}
	if len(garmentIDs) == 0 {
		return nil, orchestrator.ErrMissingSelection
	}

	remaining, ok := a.quota.Remaining(ctx)
	if !ok {
		return nil, quota.ErrUnknown
	}
	if remaining <= 0 {
		return nil, orchestrator.ErrQuotaExceeded
	}

	images := make([]string, 0, len(garmentIDs)+1)
	payload, err := a.library.ResolvePayload(ctx, model.CategorySelfPhoto, subjectID)
	if err != nil {
		return nil, &orchestrator.AssetUnavailableError{Category: model.CategorySelfPhoto, ID: subjectID, Err: err}
	}
	images = append(images, payload)
	for _, id := range garmentIDs {
		payload, err := a.library.ResolvePayload(ctx, model.CategoryGarment, id)
		if err != nil {
			return nil, &orchestrator.AssetUnavailableError{Category: model.CategoryGarment, ID: id, Err: err}
		}
		images = append(images, payload)
	}

	var recs []model.Recommendation
	err = a.generator.GenerateStructured(ctx, genimage.Request{
		Prompt: advisorPrompt,
		Images: images,
	}, &recs)
	if err != nil {
		return nil, &orchestrator.GenerationError{Err: err}
	}
	if len(recs) == 0 {
		return nil, &orchestrator.GenerationError{Err: fmt.Errorf("no recommendations returned")}
	}

	if _, err := a.quota.RecordUse(ctx); err != nil {
		slog.Warn("failed to record quota use", "user_id", user.ID, "error", err)
	}

	return recs, nil
}
