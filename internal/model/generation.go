package model

import "time"

// RequestStatus tracks a generation request through its lifecycle,
// starting at validation on submit. Terminal states are final; a new
// user action creates a new request.
type RequestStatus string

const (
	StatusValidating RequestStatus = "validating"
	StatusAdmitted   RequestStatus = "admitted"
	StatusInFlight   RequestStatus = "in_flight"
	StatusPersisting RequestStatus = "persisting"
	StatusSucceeded  RequestStatus = "succeeded"
	StatusFailed     RequestStatus = "failed"
)

// GenerationRequest is one submission to the generation capability.
type GenerationRequest struct {
	ID          string        `json:"id"`
	SubjectID   string        `json:"subject_id"`
	TargetIDs   []string      `json:"target_ids"`
	Status      RequestStatus `json:"status"`
	SubmittedAt time.Time     `json:"submitted_at"`
}

// GenerationOutcome is the terminal result of a succeeded request.
type GenerationOutcome struct {
	Request *GenerationRequest `json:"request"`
	// ImageDataURI is the generated composite image, always present on
	// success regardless of whether persistence worked.
	ImageDataURI string `json:"image_data_uri"`
	// ResultAsset is the library record the image was saved back into,
	// nil when persistence failed.
	ResultAsset *AssetRecord `json:"result_asset,omitempty"`
	// PersistenceWarning reports a failed save of an otherwise successful
	// generation. Non-fatal: the user already has the image in hand.
	PersistenceWarning string `json:"persistence_warning,omitempty"`
	// QuotaRemaining is the budget left after this generation, -1 when
	// the counter could not be read back.
	QuotaRemaining int `json:"quota_remaining"`
}

// Recommendation is one stylist suggestion.
type Recommendation struct {
	OutfitDescription string  `json:"outfit_description"`
	ConfidenceScore   float64 `json:"confidence_score"`
}
