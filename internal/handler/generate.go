package handler

import (
	"encoding/json"
	"net/http"

	"github.com/fitcheckhq/fitcheck/internal/ctxkeys"
	"github.com/fitcheckhq/fitcheck/internal/model"
	"github.com/fitcheckhq/fitcheck/internal/orchestrator"
	"github.com/fitcheckhq/fitcheck/internal/session"
)

type generateHandler struct{}

func NewGenerateHandler() *generateHandler {
	return &generateHandler{}
}

type generateRequest struct {
	SubjectID string   `json:"subject_id"`
	TargetIDs []string `json:"target_ids"`
	Style     string   `json:"style,omitempty"`
}

type generateResponse struct {
	RequestID          string              `json:"request_id"`
	Status             model.RequestStatus `json:"status"`
	ImageDataURI       string              `json:"image_data_uri"`
	ResultAsset        *model.AssetRecord  `json:"result_asset,omitempty"`
	PersistenceWarning string              `json:"persistence_warning,omitempty"`
	QuotaRemaining     int                 `json:"quota_remaining"`
}

// TryOn runs a try-on generation: self photo + garments.
func (h *generateHandler) TryOn(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(sess *session.Session) *orchestrator.Orchestrator { return sess.TryOn })
}

// Catalog runs a catalog generation: mannequin + product.
func (h *generateHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(sess *session.Session) *orchestrator.Orchestrator { return sess.CatalogGen })
}

func (h *generateHandler) run(w http.ResponseWriter, r *http.Request, pick func(*session.Session) *orchestrator.Orchestrator) {
	sess := ctxkeys.Session(r.Context())
	user := ctxkeys.User(r.Context())

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	outcome, err := pick(sess).Submit(r.Context(), user, orchestrator.Params{
		SubjectID: req.SubjectID,
		TargetIDs: req.TargetIDs,
		Style:     req.Style,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, generateResponse{
		RequestID:          outcome.Request.ID,
		Status:             outcome.Request.Status,
		ImageDataURI:       outcome.ImageDataURI,
		ResultAsset:        outcome.ResultAsset,
		PersistenceWarning: outcome.PersistenceWarning,
		QuotaRemaining:     outcome.QuotaRemaining,
	})
}
