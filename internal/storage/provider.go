// Package storage defines the file-system abstraction used both to read the
// vault and to write exported notes.
package storage

import "github.com/starford/vaultexport/internal/models"

// Provider is the interface for file operations relative to a root
// directory.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// List returns metadata for every .md file under dir (relative to root).
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path and any parent directories left empty.
	Delete(path string) error
}
