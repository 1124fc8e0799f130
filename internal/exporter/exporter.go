// Package exporter drives an export run: it reads vault notes, resolves
// embeds, runs the postprocessor pipeline and writes the surviving notes to
// the output directory while keeping the export manifest current.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/starford/vaultexport/internal/apperr"
	"github.com/starford/vaultexport/internal/checksum"
	"github.com/starford/vaultexport/internal/frontmatter"
	"github.com/starford/vaultexport/internal/index"
	"github.com/starford/vaultexport/internal/models"
	"github.com/starford/vaultexport/internal/parser"
	"github.com/starford/vaultexport/internal/postprocessor"
	"github.com/starford/vaultexport/internal/storage"
)

// Outcome is the result of running one note through the pipeline.
type Outcome struct {
	Source string
	// Destination is relative to the output root. Empty for skipped notes.
	Destination string
	Status      models.ExportStatus
	Content     []byte
	Err         error
}

func (o *Outcome) fail(err error) *Outcome {
	o.Status = models.StatusFailed
	o.Content = nil
	o.Err = err
	return o
}

// Report summarises an export run.
type Report struct {
	Exported int
	Skipped  int
	Failed   int
	Errors   []error
}

func (r *Report) add(o *Outcome) {
	switch o.Status {
	case models.StatusExported:
		r.Exported++
	case models.StatusSkipped:
		r.Skipped++
	case models.StatusFailed:
		r.Failed++
		r.Errors = append(r.Errors, o.Err)
	}
}

// Err joins the per-note failures, or returns nil when every note succeeded.
func (r Report) Err() error {
	return errors.Join(r.Errors...)
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithNotifier registers n to receive an Event per note outcome.
func WithNotifier(n Notifier) Option {
	return func(e *Exporter) {
		e.notify = n
	}
}

// Exporter runs vault notes through the configured pipelines.
type Exporter struct {
	vault  storage.Provider
	out    storage.Provider
	idx    index.NoteIndex
	cfg    Config
	notes  *postprocessor.Pipeline
	embeds *postprocessor.Pipeline
	logger *slog.Logger
	notify Notifier

	// mu serialises full runs against single-note exports so destination
	// claims are decided against a stable manifest.
	mu sync.Mutex
}

// New creates an Exporter reading from vault and writing to out.
func New(vault, out storage.Provider, idx index.NoteIndex, cfg Config, logger *slog.Logger, opts ...Option) *Exporter {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	notes, embeds := BuildPipelines(cfg, logger)
	e := &Exporter{
		vault:  vault,
		out:    out,
		idx:    idx,
		cfg:    cfg,
		notes:  notes,
		embeds: embeds,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExportAll exports every note in the vault. Notes are processed
// concurrently; destination collisions are then resolved in path order so
// the first note by path keeps a contested destination. Manifest entries for
// notes no longer in the vault are pruned along with their output. The
// returned error joins the per-note failures.
func (e *Exporter) ExportAll(ctx context.Context) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	metas, err := e.vault.List("")
	if err != nil {
		return Report{}, fmt.Errorf("exporter: list vault: %w", err)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Path < metas[j].Path })

	prior, err := e.idx.ListExports("")
	if err != nil {
		return Report{}, fmt.Errorf("exporter: load manifest: %w", err)
	}
	previous := make(map[string]models.ExportRecord, len(prior))
	for _, rec := range prior {
		previous[rec.Source] = rec
	}

	outcomes := make([]*Outcome, len(metas))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, m := range metas {
		g.Go(func() error {
			outcomes[i] = e.render(gctx, m.Path)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	claims := make(map[string]string, len(outcomes))
	for _, o := range outcomes {
		if o.Status != models.StatusExported {
			continue
		}
		if owner, ok := claims[o.Destination]; ok {
			o.fail(collision(o.Source, o.Destination, owner))
			continue
		}
		claims[o.Destination] = o.Source
	}

	g = new(errgroup.Group)
	g.SetLimit(e.cfg.Workers)
	for _, o := range outcomes {
		var before *models.ExportRecord
		if rec, ok := previous[o.Source]; ok {
			before = &rec
		}
		g.Go(func() error {
			e.commit(o, before, claims)
			return nil
		})
	}
	_ = g.Wait()

	inVault := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		inVault[m.Path] = struct{}{}
	}
	for src, rec := range previous {
		if _, ok := inVault[src]; !ok {
			e.forget(rec, claims)
		}
	}

	var report Report
	for _, o := range outcomes {
		report.add(o)
	}
	e.logger.Info("export finished",
		slog.Int("exported", report.Exported),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed))
	return report, report.Err()
}

// ExportNote exports a single note. A destination already owned by another
// note in the manifest is a collision.
func (e *Exporter) ExportNote(ctx context.Context, rel string) (*Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o := e.render(ctx, rel)
	claims := map[string]string{}
	if o.Status == models.StatusExported {
		owner, err := e.idx.DestinationOwner(o.Destination)
		switch {
		case err != nil:
			o.fail(err)
		case owner != "" && owner != rel:
			o.fail(collision(rel, o.Destination, owner))
		default:
			claims[o.Destination] = rel
		}
	}

	before, err := e.idx.GetExport(rel)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return o, err
	}
	e.commit(o, before, claims)
	return o, o.Err
}

// Preview runs the pipeline for one note without writing anything.
func (e *Exporter) Preview(ctx context.Context, rel string) (*Outcome, error) {
	o := e.render(ctx, rel)
	return o, o.Err
}

// RemoveNote deletes the exported output of a note that left the vault and
// drops its manifest entry.
func (e *Exporter) RemoveNote(_ context.Context, rel string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.idx.GetExport(rel)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	e.forget(*rec, nil)
	return nil
}

// HandleChange reacts to a vault change reported by the index watcher. The
// changed note is exported or removed, then every note that embeds it,
// directly or through other embeds, is exported again.
func (e *Exporter) HandleChange(ctx context.Context, kind index.ChangeKind, rel string) {
	if kind == index.Deleted {
		if err := e.RemoveNote(ctx, rel); err != nil {
			e.logger.Warn("remove failed", slog.String("file", rel), slog.String("error", err.Error()))
		}
	} else {
		// Failures are logged and recorded by commit.
		_, _ = e.ExportNote(ctx, rel)
	}

	seen := map[string]struct{}{rel: {}}
	queue := []string{rel}
	for depth := 0; len(queue) > 0 && depth < e.cfg.MaxEmbedDepth; depth++ {
		var next []string
		for _, p := range queue {
			hosts, err := e.idx.Embedders(p)
			if err != nil {
				e.logger.Warn("embedders lookup failed", slog.String("file", p), slog.String("error", err.Error()))
				continue
			}
			for _, h := range hosts {
				if _, ok := seen[h]; ok {
					continue
				}
				seen[h] = struct{}{}
				if ctx.Err() != nil {
					return
				}
				_, _ = e.ExportNote(ctx, h)
				next = append(next, h)
			}
		}
		queue = next
	}
}

// render reads, parses and processes one note. It never writes.
func (e *Exporter) render(ctx context.Context, rel string) *Outcome {
	o := &Outcome{Source: rel}
	if err := ctx.Err(); err != nil {
		return o.fail(err)
	}

	data, err := e.vault.Read(rel)
	if err != nil {
		return o.fail(apperr.Note(rel, "", err))
	}
	res, err := parser.Parse(data)
	if err != nil {
		return o.fail(apperr.Note(rel, "", err))
	}

	pctx := postprocessor.NewContext(rel, filepath.Join(e.out.Root(), rel), res.Frontmatter)
	if e.cfg.FlatHierarchy {
		pctx.Frontmatter.Set(postprocessor.KeyDestination, frontmatter.String(e.out.Root()))
	}

	events := res.Events
	if err := e.expandEmbeds(ctx, events, []string{rel}); err != nil {
		return o.fail(err)
	}

	result, err := e.notes.Run(pctx, events)
	if err != nil {
		return o.fail(err)
	}
	if result == postprocessor.StopAndSkipNote {
		o.Status = models.StatusSkipped
		return o
	}

	dest, err := filepath.Rel(e.out.Root(), pctx.Destination)
	if err != nil || dest == "." || dest == ".." || strings.HasPrefix(dest, ".."+string(filepath.Separator)) {
		return o.fail(apperr.Note(rel, "destination",
			fmt.Errorf("%w: %q is not under %q", apperr.ErrInvalidDestinationRoot, pctx.Destination, e.out.Root())))
	}
	content, err := RenderNote(pctx.Frontmatter, events)
	if err != nil {
		return o.fail(apperr.Note(rel, "", err))
	}

	o.Status = models.StatusExported
	o.Destination = dest
	o.Content = content
	return o
}

// commit writes an exported note, removes output the note no longer
// produces, records the outcome in the manifest and publishes an event.
// claims maps every destination written in this pass to its source.
func (e *Exporter) commit(o *Outcome, before *models.ExportRecord, claims map[string]string) {
	log := e.logger.With(slog.String("file", o.Source))

	if o.Status == models.StatusExported {
		if err := e.write(o.Destination, o.Content); err != nil {
			o.fail(apperr.Note(o.Source, "destination", err))
		}
	}

	rec := models.ExportRecord{Source: o.Source, Status: o.Status}
	switch o.Status {
	case models.StatusExported:
		rec.Destination = o.Destination
	case models.StatusFailed:
		rec.Error = o.Err.Error()
		// The previous output is left in place; keep pointing at it.
		if before != nil {
			rec.Destination = before.Destination
		}
	}

	if before != nil && before.Status == models.StatusExported && before.Destination != "" &&
		before.Destination != rec.Destination && claims[before.Destination] == "" {
		e.removeOutput(before.Destination, log)
	}

	if err := e.idx.RecordExport(rec); err != nil {
		log.Warn("record export failed", slog.String("error", err.Error()))
	}

	switch o.Status {
	case models.StatusExported:
		log.Debug("note exported", slog.String("destination", o.Destination))
		e.publish(Event{Kind: EventExported, Source: o.Source, Destination: o.Destination})
	case models.StatusSkipped:
		log.Info("note skipped", slog.String("reason", "filtered"))
		e.publish(Event{Kind: EventSkipped, Source: o.Source})
	case models.StatusFailed:
		log.Error("note failed", slog.String("error", o.Err.Error()))
		e.publish(Event{Kind: EventFailed, Source: o.Source, Error: o.Err.Error()})
	}
}

// forget removes the output and manifest entry of a source that is gone.
func (e *Exporter) forget(rec models.ExportRecord, claims map[string]string) {
	log := e.logger.With(slog.String("file", rec.Source))
	if rec.Destination != "" && claims[rec.Destination] == "" {
		owner, err := e.idx.DestinationOwner(rec.Destination)
		if err == nil && (owner == "" || owner == rec.Source) {
			e.removeOutput(rec.Destination, log)
		}
	}
	if err := e.idx.DeleteExport(rec.Source); err != nil {
		log.Warn("delete export record failed", slog.String("error", err.Error()))
	}
	log.Info("note removed", slog.String("destination", rec.Destination))
	e.publish(Event{Kind: EventRemoved, Source: rec.Source, Destination: rec.Destination})
}

// write stores content at dest unless the file already holds it.
func (e *Exporter) write(dest string, content []byte) error {
	if existing, err := e.out.Read(dest); err == nil && checksum.Same(existing, content) {
		return nil
	}
	return e.out.Write(dest, content)
}

func (e *Exporter) removeOutput(dest string, log *slog.Logger) {
	if err := e.out.Delete(dest); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		log.Warn("remove output failed", slog.String("destination", dest), slog.String("error", err.Error()))
	}
}

func (e *Exporter) publish(ev Event) {
	if e.notify != nil {
		e.notify(ev)
	}
}

func collision(source, dest, owner string) error {
	return apperr.Note(source, "destination",
		fmt.Errorf("%w: %s is written by %s", apperr.ErrDestinationCollision, dest, owner))
}
