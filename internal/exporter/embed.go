package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/starford/vaultexport/internal/apperr"
	"github.com/starford/vaultexport/internal/frontmatter"
	"github.com/starford/vaultexport/internal/markdown"
	"github.com/starford/vaultexport/internal/parser"
	"github.com/starford/vaultexport/internal/postprocessor"
)

// expandEmbeds replaces ![[...]] references in text events with the events
// of the referenced notes. stack lists the notes being expanded, outermost
// first. References that cannot be expanded stay as text.
func (e *Exporter) expandEmbeds(ctx context.Context, events *markdown.Events, stack []string) error {
	if e.cfg.MaxEmbedDepth <= 0 {
		return nil
	}
	for i := 0; i < events.Len(); {
		ev := events.At(i)
		if ev.Kind != markdown.Text {
			i++
			continue
		}
		matches := parser.FindEmbeds(ev.Text)
		if len(matches) == 0 {
			i++
			continue
		}

		var repl []markdown.Event
		last := 0
		for _, m := range matches {
			if m.Start > last {
				repl = append(repl, markdown.TextEvent(ev.Text[last:m.Start]))
			}
			embedded, err := e.embed(ctx, m.Raw, stack)
			if err != nil {
				return err
			}
			if embedded != nil {
				repl = append(repl, embedded.Slice()...)
			} else {
				repl = append(repl, markdown.TextEvent(ev.Text[m.Start:m.End]))
			}
			last = m.End
		}
		if last < len(ev.Text) {
			repl = append(repl, markdown.TextEvent(ev.Text[last:]))
		}
		events.Splice(i, 1, repl...)
		i += len(repl)
	}
	return nil
}

// embed returns the processed events of the note referenced by raw, or nil
// when the reference is left as written.
func (e *Exporter) embed(ctx context.Context, raw string, stack []string) (*markdown.Events, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	host := stack[len(stack)-1]
	log := e.logger.With(slog.String("file", host), slog.String("embed", raw))

	ref, err := parser.ParseNoteReference(raw)
	if err != nil {
		log.Warn("embed: malformed reference", slog.String("error", err.Error()))
		return nil, nil
	}
	if ref.Target == "" {
		return nil, nil
	}
	if len(stack) > e.cfg.MaxEmbedDepth {
		log.Warn("embed: depth limit reached", slog.Int("max_depth", e.cfg.MaxEmbedDepth))
		return nil, nil
	}

	target, err := e.idx.ResolveName(ref.Target)
	if errors.Is(err, apperr.ErrNotFound) {
		log.Warn("embed: unresolved reference")
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Note(host, "embed", err)
	}
	if slices.Contains(stack, target) {
		log.Warn("embed: cycle", slog.String("target", target))
		return nil, nil
	}

	data, err := e.vault.Read(target)
	if err != nil {
		log.Warn("embed: read failed", slog.String("target", target), slog.String("error", err.Error()))
		return nil, nil
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, apperr.Note(host, "embed", err)
	}
	if err := e.expandEmbeds(ctx, res.Events, append(slices.Clone(stack), target)); err != nil {
		return nil, err
	}

	fm := res.Frontmatter
	fm.Set(postprocessor.KeyEmbedLink, frontmatter.String(raw))
	if _, err := fm.RequireString(postprocessor.KeyID); err != nil {
		fm.Set(postprocessor.KeyID, frontmatter.String(e.linkID(target)))
	}

	ectx := postprocessor.NewContext(target, filepath.Join(e.out.Root(), target), fm)
	result, err := e.embeds.Run(ectx, res.Events)
	if err != nil {
		return nil, fmt.Errorf("embed %q in %s: %w", raw, host, err)
	}
	if result == postprocessor.StopAndSkipNote {
		return nil, nil
	}
	return res.Events, nil
}

// linkID is the link target of an embedded note: its output path without
// the extension, using forward slashes.
func (e *Exporter) linkID(rel string) string {
	if e.cfg.FlatHierarchy {
		rel = postprocessor.FlattenPath(rel)
	}
	return filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
}
