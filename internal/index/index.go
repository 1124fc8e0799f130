package index

import "github.com/starford/vaultexport/internal/models"

// NoteIndex is the subset of index operations the exporter depends on.
// Consumers should depend on this interface rather than the concrete *DB
// type so tests can substitute an in-memory fake.
type NoteIndex interface {
	ResolveName(target string) (string, error)
	Embedders(path string) ([]string, error)
	RecordExport(rec models.ExportRecord) error
	DestinationOwner(dest string) (string, error)
	GetExport(source string) (*models.ExportRecord, error)
	ListExports(status models.ExportStatus) ([]models.ExportRecord, error)
	DeleteExport(source string) error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)
