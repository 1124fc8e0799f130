package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vaultexport/internal/apperr"
	"github.com/starford/vaultexport/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// sourcePath extracts the vault path from the wildcard part of the URL.
// Encoded slashes (notes%2Fhello.md) are accepted.
func sourcePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}
	return filepath.FromSlash(decoded)
}

// ListExports handles GET /api/exports.
//
//	@Summary		List the export manifest
//	@Tags			exports
//	@Produce		json
//	@Param			status	query		string	false	"Filter by outcome"	Enums(exported, skipped, failed)
//	@Success		200		{object}	ExportListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/exports [get]
func (h *Handler) ListExports(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if err := validation.Validate(status, validation.In(
		string(models.StatusExported), string(models.StatusSkipped), string(models.StatusFailed),
	)); err != nil {
		writeError(w, http.StatusBadRequest, "status: "+err.Error())
		return
	}

	items, err := h.svc.ListExports(r.Context(), models.ExportStatus(status))
	if err != nil {
		internalError(w, "list exports failed", err)
		return
	}
	if items == nil {
		items = []models.ExportRecord{}
	}
	writeJSON(w, http.StatusOK, ExportListResponse{Exports: items, Total: len(items)})
}

// GetExport handles GET /api/exports/*.
//
//	@Summary		Get the manifest entry and written output of one note
//	@Tags			exports
//	@Produce		json
//	@Param			path	path		string	true	"Source note path"
//	@Success		200		{object}	ExportDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/exports/{path} [get]
func (h *Handler) GetExport(w http.ResponseWriter, r *http.Request) {
	source := sourcePath(r)
	if source == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	detail, err := h.svc.GetExport(r.Context(), source)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
		} else {
			internalError(w, "get export failed", err, slog.String("path", source))
		}
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Preview handles GET /api/preview/*.
//
//	@Summary		Run the pipeline on one note without writing
//	@Tags			exports
//	@Produce		json
//	@Param			path	path		string	true	"Source note path"
//	@Success		200		{object}	PreviewResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/preview/{path} [get]
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	source := sourcePath(r)
	if source == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	resp, err := h.svc.Preview(r.Context(), source)
	if err != nil {
		var ne *apperr.NoteError
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeError(w, http.StatusNotFound, "not found")
		case errors.As(err, &ne):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			internalError(w, "preview failed", err, slog.String("path", source))
		}
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ExportAll handles POST /api/export.
//
//	@Summary		Export the whole vault
//	@Tags			exports
//	@Produce		json
//	@Success		200	{object}	ReportResponse
//	@Security		BearerAuth
//	@Router			/export [post]
func (h *Handler) ExportAll(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.ExportAll(r.Context())
	if err != nil {
		internalError(w, "export failed", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
