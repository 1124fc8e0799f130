package index

import (
	"log/slog"

	"github.com/starford/vaultexport/internal/checksum"
	"github.com/starford/vaultexport/internal/parser"
	"github.com/starford/vaultexport/internal/storage"
)

// Sync brings the notes table in line with the vault: changed files are
// re-parsed, files that disappeared are dropped. It returns the paths whose
// index entry changed.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) ([]string, error) {
	metas, err := store.List("")
	if err != nil {
		return nil, err
	}

	known, err := db.AllChecksums()
	if err != nil {
		return nil, err
	}

	var changed []string
	onDisk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		onDisk[m.Path] = struct{}{}
		if known[m.Path] == m.Checksum {
			continue
		}
		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		changed = append(changed, m.Path)
	}

	for p := range known {
		if _, ok := onDisk[p]; ok {
			continue
		}
		if err := db.DeleteNote(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		changed = append(changed, p)
	}

	logger.Info("sync: done", slog.Int("notes", len(metas)), slog.Int("changed", len(changed)))
	return changed, nil
}

// indexFile parses data and stores the note with its links and embeds.
func indexFile(db *DB, path string, data []byte) error {
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}
	var embeds []string
	for _, raw := range res.Embeds {
		ref, err := parser.ParseNoteReference(raw)
		if err != nil || ref.Target == "" {
			continue
		}
		embeds = append(embeds, ref.Target)
	}
	return db.UpsertNote(NoteRow{
		Path:     path,
		Title:    res.Title,
		Checksum: checksum.Sum(data),
		Tags:     res.Tags,
	}, res.Links, embeds)
}
