package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/vaultexport/internal/apperr"
	"github.com/starford/vaultexport/internal/models"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path      string
	Title     string
	Checksum  string
	Tags      []string
	UpdatedAt time.Time
}

// NoteName returns the lookup key for a vault path or a reference target:
// the lower-cased base name without the .md extension.
func NoteName(p string) string {
	base := filepath.Base(filepath.FromSlash(p))
	return strings.ToLower(strings.TrimSuffix(base, ".md"))
}

// UpsertNote inserts or replaces a note together with its outgoing links and
// embeds. Link targets are stored by note name.
func (db *DB) UpsertNote(n NoteRow, links, embeds []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now().UTC()
	}

	_, err = tx.Exec(`
		INSERT INTO notes (path, name, title, checksum, tags, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name       = excluded.name,
			title      = excluded.title,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			updated_at = excluded.updated_at
	`, n.Path, NoteName(n.Path), n.Title, n.Checksum, string(tagsJSON), n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, n.Path); err != nil {
		return fmt.Errorf("index: clear links: %w", err)
	}
	if len(links)+len(embeds) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target, type) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range links {
			if _, err := stmt.Exec(n.Path, NoteName(target), "inline"); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
		for _, target := range embeds {
			if _, err := stmt.Exec(n.Path, NoteName(target), "embed"); err != nil {
				return fmt.Errorf("index: insert embed: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteNote removes a note and its outgoing links. The export record is
// left for the caller to clean up once the output file is gone.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, path); err != nil {
		return fmt.Errorf("index: delete links: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns path → checksum for every indexed note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// ResolveName maps an embed or link target to a vault path. A bare name
// matches case-insensitively on the file name; a target containing "/" must
// match the tail of the path. The shortest matching path wins.
func (db *DB) ResolveName(target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", fmt.Errorf("index: resolve %q: %w", target, apperr.ErrNotFound)
	}

	var (
		p   string
		err error
	)
	if strings.Contains(target, "/") {
		suffix := strings.ToLower(filepath.FromSlash(strings.TrimSuffix(target, ".md"))) + ".md"
		err = db.conn.QueryRow(`
			SELECT path FROM notes
			WHERE name = ? AND (lower(path) = ? OR lower(path) LIKE ? ESCAPE '\')
			ORDER BY length(path), path LIMIT 1
		`, NoteName(target), suffix, "%"+string(filepath.Separator)+escapeLike(suffix)).Scan(&p)
	} else {
		err = db.conn.QueryRow(`
			SELECT path FROM notes WHERE name = ?
			ORDER BY length(path), path LIMIT 1
		`, NoteName(target)).Scan(&p)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("index: resolve %q: %w", target, apperr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("index: resolve %q: %w", target, err)
	}
	return p, nil
}

// Embedders returns the notes that embed a note with the given path.
func (db *DB) Embedders(path string) ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT DISTINCT source FROM links
		WHERE type = 'embed' AND target = ? AND source <> ?
		ORDER BY source
	`, NoteName(path), path)
	if err != nil {
		return nil, fmt.Errorf("index: embedders: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RecordExport stores the outcome of exporting one source note.
func (db *DB) RecordExport(rec models.ExportRecord) error {
	if rec.ExportedAt.IsZero() {
		rec.ExportedAt = time.Now().UTC()
	}
	_, err := db.conn.Exec(`
		INSERT INTO exports (source, destination, status, error, exported_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET
			destination = excluded.destination,
			status      = excluded.status,
			error       = excluded.error,
			exported_at = excluded.exported_at
	`, rec.Source, rec.Destination, string(rec.Status), rec.Error, rec.ExportedAt)
	if err != nil {
		return fmt.Errorf("index: record export: %w", err)
	}
	return nil
}

// DestinationOwner returns the source currently exported to dest, or ""
// when no exported note owns it.
func (db *DB) DestinationOwner(dest string) (string, error) {
	var src string
	err := db.conn.QueryRow(`
		SELECT source FROM exports WHERE destination = ? AND status = ?
		ORDER BY exported_at LIMIT 1
	`, dest, string(models.StatusExported)).Scan(&src)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: destination owner: %w", err)
	}
	return src, nil
}

// GetExport returns the manifest entry for source.
func (db *DB) GetExport(source string) (*models.ExportRecord, error) {
	row := db.conn.QueryRow(`
		SELECT source, destination, status, error, exported_at
		FROM exports WHERE source = ?
	`, source)
	rec, err := scanExport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: export %q: %w", source, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get export: %w", err)
	}
	return rec, nil
}

// ListExports returns manifest entries ordered by source path. An empty
// status returns every entry.
func (db *DB) ListExports(status models.ExportStatus) ([]models.ExportRecord, error) {
	q := `SELECT source, destination, status, error, exported_at FROM exports`
	var args []any
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY source`

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list exports: %w", err)
	}
	defer rows.Close()

	out := []models.ExportRecord{}
	for rows.Next() {
		rec, err := scanExport(rows)
		if err != nil {
			return nil, fmt.Errorf("index: scan export: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// DeleteExport removes the manifest entry for source.
func (db *DB) DeleteExport(source string) error {
	if _, err := db.conn.Exec(`DELETE FROM exports WHERE source = ?`, source); err != nil {
		return fmt.Errorf("index: delete export: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExport(s scanner) (*models.ExportRecord, error) {
	var (
		rec    models.ExportRecord
		status string
	)
	if err := s.Scan(&rec.Source, &rec.Destination, &status, &rec.Error, &rec.ExportedAt); err != nil {
		return nil, err
	}
	rec.Status = models.ExportStatus(status)
	return &rec, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
