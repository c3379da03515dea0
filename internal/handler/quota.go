package handler

import (
	"net/http"

	"github.com/fitcheckhq/fitcheck/internal/ctxkeys"
)

type quotaHandler struct{}

func NewQuotaHandler() *quotaHandler {
	return &quotaHandler{}
}

type quotaResponse struct {
	Count     int    `json:"count"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Period    string `json:"period"`
}

// Show returns the current generation budget. Reads through to the
// remote counter when the cached period has expired.
func (h *quotaHandler) Show(w http.ResponseWriter, r *http.Request) {
	sess := ctxkeys.Session(r.Context())

	state, err := sess.Quota.Current(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, quotaResponse{
		Count:     state.Count,
		Limit:     state.Limit,
		Remaining: state.Remaining(),
		Period:    state.PeriodKey,
	})
}
