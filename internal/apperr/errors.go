// Package apperr defines the error taxonomy shared by the export pipeline.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrMissingFrontmatterKey   = errors.New("missing required frontmatter key")
	ErrInvalidFrontmatterValue = errors.New("invalid frontmatter value")
	ErrInvalidDestinationRoot  = errors.New("destination is not under the configured root")
	ErrMalformedNoteReference  = errors.New("malformed note reference")
	ErrDestinationCollision    = errors.New("destination already claimed by another note")
)

// NoteError reports a failure that aborts processing of a single note.
// Field names the frontmatter key or context field that was missing or invalid.
type NoteError struct {
	File  string
	Field string
	Err   error
}

func (e *NoteError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.File, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.File, e.Field, e.Err)
}

func (e *NoteError) Unwrap() error { return e.Err }

// Note wraps err as a NoteError for file and field.
func Note(file, field string, err error) error {
	if err == nil {
		return nil
	}
	return &NoteError{File: file, Field: field, Err: err}
}
