package handler

import (
	"encoding/json"
	"net/http"

	"github.com/fitcheckhq/fitcheck/internal/ctxkeys"
	"github.com/fitcheckhq/fitcheck/internal/model"
)

type stylistHandler struct{}

func NewStylistHandler() *stylistHandler {
	return &stylistHandler{}
}

type stylistRequest struct {
	SubjectID string `json:"subject_id"`
	// GarmentIDs optionally narrows the wardrobe; empty means all garments.
	GarmentIDs []string `json:"garment_ids,omitempty"`
}

type stylistResponse struct {
	Recommendations []model.Recommendation `json:"recommendations"`
}

// Recommend returns outfit suggestions for the subject photo.
func (h *stylistHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	sess := ctxkeys.Session(r.Context())
	user := ctxkeys.User(r.Context())

	var req stylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	recs, err := sess.Stylist.Recommend(r.Context(), user, req.SubjectID, req.GarmentIDs)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stylistResponse{Recommendations: recs})
}
