package api

import (
	"context"
	"fmt"

	"github.com/starford/vaultexport/internal/exporter"
	"github.com/starford/vaultexport/internal/index"
	"github.com/starford/vaultexport/internal/models"
	"github.com/starford/vaultexport/internal/storage"
)

// Service coordinates the exporter, the manifest and the output directory
// for the API layer.
type Service struct {
	exp *exporter.Exporter
	idx index.NoteIndex
	out storage.Provider
}

// NewService creates a new API service.
func NewService(exp *exporter.Exporter, idx index.NoteIndex, out storage.Provider) *Service {
	return &Service{exp: exp, idx: idx, out: out}
}

// ListExports returns manifest entries, optionally filtered by status.
func (s *Service) ListExports(_ context.Context, status models.ExportStatus) ([]models.ExportRecord, error) {
	return s.idx.ListExports(status)
}

// GetExport returns the manifest entry of source together with the content
// currently written for it.
func (s *Service) GetExport(_ context.Context, source string) (*ExportDetail, error) {
	rec, err := s.idx.GetExport(source)
	if err != nil {
		return nil, err
	}
	detail := &ExportDetail{ExportRecord: *rec}
	if rec.Status == models.StatusExported && rec.Destination != "" {
		data, err := s.out.Read(rec.Destination)
		if err != nil {
			return nil, fmt.Errorf("api: read output: %w", err)
		}
		detail.Content = string(data)
	}
	return detail, nil
}

// Preview runs the pipeline for source without writing.
func (s *Service) Preview(ctx context.Context, source string) (*PreviewResponse, error) {
	o, err := s.exp.Preview(ctx, source)
	if err != nil {
		return nil, err
	}
	return &PreviewResponse{
		Source:      o.Source,
		Destination: o.Destination,
		Status:      o.Status,
		Content:     string(o.Content),
	}, nil
}

// ExportAll runs a full export. Per-note failures are part of the report,
// not an error.
func (s *Service) ExportAll(ctx context.Context) (*ReportResponse, error) {
	report, err := s.exp.ExportAll(ctx)
	if err != nil && report.Failed == 0 {
		return nil, err
	}
	resp := &ReportResponse{
		Exported: report.Exported,
		Skipped:  report.Skipped,
		Failed:   report.Failed,
		Errors:   make([]string, 0, len(report.Errors)),
	}
	for _, e := range report.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	return resp, nil
}
