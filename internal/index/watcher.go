package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/vaultexport/internal/storage"
)

// ChangeKind describes what happened to a vault note.
type ChangeKind string

const (
	Created ChangeKind = "created"
	Updated ChangeKind = "updated"
	Deleted ChangeKind = "deleted"
)

// ChangeFunc is called after the index has absorbed a change to path.
type ChangeFunc func(kind ChangeKind, path string)

const reconcileDelay = 200 * time.Millisecond

// Watcher keeps the index in step with the vault while it runs.
type Watcher struct {
	db       *DB
	store    storage.Provider
	root     string
	logger   *slog.Logger
	onChange ChangeFunc
}

// NewWatcher creates a watcher for the vault at root. onChange may be nil.
func NewWatcher(db *DB, store storage.Provider, root string, logger *slog.Logger, onChange ChangeFunc) *Watcher {
	return &Watcher{db: db, store: store, root: root, logger: logger, onChange: onChange}
}

// Watch runs a Watcher until ctx is cancelled.
func Watch(ctx context.Context, db *DB, store storage.Provider, root string, logger *slog.Logger, onChange ChangeFunc) error {
	return NewWatcher(db, store, root, logger, onChange).Run(ctx)
}

// Run watches every directory under the vault root. Directories created
// later are added as they appear. fsnotify reports a rename on the old path
// only, so renames drop the old entry and schedule a short reconcile pass
// that picks up the new name.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addDirs(fw, w.root); err != nil {
		return err
	}
	w.logger.Info("watcher: started", slog.String("root", w.root))

	reconcile := time.NewTimer(reconcileDelay)
	if !reconcile.Stop() {
		<-reconcile.C
	}
	defer reconcile.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher: stopped")
			return nil

		case <-reconcile.C:
			w.reconcile()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.handle(fw, ev) {
				reconcile.Reset(reconcileDelay)
			}

		case werr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", werr.Error()))
		}
	}
}

// handle applies one fsnotify event and reports whether a reconcile pass
// is needed.
func (w *Watcher) handle(fw *fsnotify.Watcher, ev fsnotify.Event) bool {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := addDirs(fw, ev.Name); err != nil {
				w.logger.Warn("watcher: add dir failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
			}
			w.indexDir(ev.Name)
			return false
		}
	}

	if !strings.HasSuffix(ev.Name, ".md") {
		return false
	}
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return false
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		kind := Updated
		if ev.Op&fsnotify.Create != 0 {
			kind = Created
		}
		w.index(rel, kind)
	case ev.Op&fsnotify.Remove != 0:
		w.remove(rel)
	case ev.Op&fsnotify.Rename != 0:
		w.remove(rel)
		return true
	}
	return false
}

func (w *Watcher) index(rel string, kind ChangeKind) {
	data, err := w.store.Read(rel)
	if err != nil {
		w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if err := indexFile(w.db, rel, data); err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", string(kind)))
	w.notify(kind, rel)
}

func (w *Watcher) remove(rel string) {
	if err := w.db.DeleteNote(rel); err != nil {
		w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: deleted", slog.String("path", rel))
	w.notify(Deleted, rel)
}

func (w *Watcher) notify(kind ChangeKind, rel string) {
	if w.onChange != nil {
		w.onChange(kind, rel)
	}
}

// reconcile compares the index against the vault and fixes both sides of
// the difference.
func (w *Watcher) reconcile() {
	known, err := w.db.AllChecksums()
	if err != nil {
		w.logger.Warn("reconcile: checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := w.store.List("")
	if err != nil {
		w.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	onDisk := make(map[string]string, len(metas))
	for _, m := range metas {
		onDisk[m.Path] = m.Checksum
	}
	for p := range known {
		if _, ok := onDisk[p]; !ok {
			w.remove(p)
		}
	}
	for p, cs := range onDisk {
		if known[p] == cs {
			continue
		}
		kind := Updated
		if _, ok := known[p]; !ok {
			kind = Created
		}
		w.index(p, kind)
	}
}

// indexDir indexes the notes already present in a newly created directory.
func (w *Watcher) indexDir(dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(p, ".md") {
			return nil
		}
		if rel, err := filepath.Rel(w.root, p); err == nil {
			w.index(rel, Created)
		}
		return nil
	})
}

func addDirs(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(p)
		}
		return nil
	})
}
