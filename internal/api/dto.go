package api

import "github.com/starford/vaultexport/internal/models"

// ExportListResponse wraps manifest listings.
type ExportListResponse struct {
	Exports []models.ExportRecord `json:"exports" validate:"required"`
	Total   int                   `json:"total" example:"42" validate:"required"`
}

// ExportDetail is a manifest entry with the written output.
type ExportDetail struct {
	models.ExportRecord
	Content string `json:"content,omitempty" example:"---\nauthor: Jane\n---\nBody"`
}

// PreviewResponse is the result of running the pipeline without writing.
type PreviewResponse struct {
	Source      string              `json:"source" example:"notes/hello.md" validate:"required"`
	Destination string              `json:"destination,omitempty" example:"notes/hello.md"`
	Status      models.ExportStatus `json:"status" example:"exported" validate:"required"`
	Content     string              `json:"content,omitempty"`
}

// ReportResponse summarises a full export run.
type ReportResponse struct {
	Exported int      `json:"exported" example:"10"`
	Skipped  int      `json:"skipped" example:"2"`
	Failed   int      `json:"failed" example:"0"`
	Errors   []string `json:"errors"`
}
