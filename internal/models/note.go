// Package models defines the domain types shared by the exporter, index and API.
package models

import "time"

// NoteMetadata is a lightweight representation of a vault file returned by
// storage list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExportStatus is the outcome of running one note through the pipeline.
type ExportStatus string

const (
	StatusExported ExportStatus = "exported"
	StatusSkipped  ExportStatus = "skipped"
	StatusFailed   ExportStatus = "failed"
)

// ExportRecord is the manifest entry for one source note.
type ExportRecord struct {
	Source      string       `json:"source"`
	Destination string       `json:"destination,omitempty"`
	Status      ExportStatus `json:"status"`
	Error       string       `json:"error,omitempty"`
	ExportedAt  time.Time    `json:"exported_at"`
}

// Link represents a directed edge between two notes.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"` // "inline" or "embed"
}
