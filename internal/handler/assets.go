package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/fitcheckhq/fitcheck/internal/ctxkeys"
	"github.com/fitcheckhq/fitcheck/internal/datauri"
	"github.com/fitcheckhq/fitcheck/internal/library"
	"github.com/fitcheckhq/fitcheck/internal/model"
	"github.com/fitcheckhq/fitcheck/internal/validation"
)

// maxUploadMemory bounds the multipart form buffer; larger files spill
// to disk.
const maxUploadMemory = 32 << 20

type assetHandler struct{}

func NewAssetHandler() *assetHandler {
	return &assetHandler{}
}

type assetListResponse struct {
	Category model.Category      `json:"category"`
	Assets   []model.AssetRecord `json:"assets"`
}

// List returns the visible records for a category.
func (h *assetHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := ctxkeys.Session(r.Context())
	category, ok := model.ParseCategory(r.PathValue("category"))
	if !ok {
		respondError(w, r, library.ErrUnknownCategory)
		return
	}

	records, err := sess.Records(category)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, assetListResponse{Category: category, Assets: records})
}

// Reload refetches a category from the remote store and returns the
// fresh listing.
func (h *assetHandler) Reload(w http.ResponseWriter, r *http.Request) {
	sess := ctxkeys.Session(r.Context())
	category, ok := model.ParseCategory(r.PathValue("category"))
	if !ok {
		respondError(w, r, library.ErrUnknownCategory)
		return
	}

	records, err := sess.Load(r.Context(), category)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, assetListResponse{Category: category, Assets: records})
}

type uploadResponse struct {
	Added  []model.AssetRecord `json:"added"`
	Failed []string            `json:"failed,omitempty"`
}

// Upload accepts a multipart batch under the "files" field. Each file
// succeeds or fails on its own; the response reports both sides.
func (h *assetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sess := ctxkeys.Session(r.Context())
	category, ok := model.ParseCategory(r.PathValue("category"))
	if !ok {
		respondError(w, r, library.ErrUnknownCategory)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart form"})
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "no files provided"})
		return
	}

	var uploads []library.Upload
	var rejected []string
	for _, header := range headers {
		if err := validation.ValidateFile(header, validation.ImageConstraints); err != nil {
			rejected = append(rejected, fmt.Sprintf("%s: %v", header.Filename, err))
			continue
		}

		file, err := header.Open()
		if err != nil {
			rejected = append(rejected, fmt.Sprintf("%s: %v", header.Filename, err))
			continue
		}
		data, err := io.ReadAll(file)
		_ = file.Close()
		if err != nil {
			rejected = append(rejected, fmt.Sprintf("%s: %v", header.Filename, err))
			continue
		}

		uploads = append(uploads, library.Upload{
			FileName: header.Filename,
			DataURI:  datauri.Encode(data, http.DetectContentType(data)),
		})
	}

	added, failed := sess.Add(r.Context(), category, uploads)
	for _, err := range failed {
		rejected = append(rejected, err.Error())
	}

	status := http.StatusCreated
	if len(added) == 0 {
		status = http.StatusBadGateway
		if len(uploads) == 0 {
			// Nothing even reached the store.
			status = http.StatusBadRequest
		}
	}
	slog.Info("asset upload batch",
		"category", category,
		"added", len(added),
		"failed", len(rejected),
	)
	respondJSON(w, status, uploadResponse{Added: added, Failed: rejected})
}

// Delete removes one asset. The record stays visible if the remote
// delete fails.
func (h *assetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess := ctxkeys.Session(r.Context())
	category, ok := model.ParseCategory(r.PathValue("category"))
	if !ok {
		respondError(w, r, library.ErrUnknownCategory)
		return
	}

	if err := sess.Remove(r.Context(), category, r.PathValue("id")); err != nil {
		var deleteErr *library.DeleteError
		if errors.As(err, &deleteErr) {
			respondJSON(w, http.StatusBadGateway, errorResponse{Error: deleteErr.Error()})
			return
		}
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
