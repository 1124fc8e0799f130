package markdown

import (
	"bytes"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var engine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Footnote,
	),
)

// span is a byte range of the source that becomes a single non-text event.
type span struct {
	start, end int
	kind       Kind
}

// Tokenize parses a markdown body and cuts it into Text runs separated by
// SoftBreak and HardBreak events. Code blocks, code spans and raw HTML become
// Opaque events, so steps that rewrite text never touch them. Positions come
// from the goldmark AST. Concatenating Render output reproduces src, except
// that hard breaks are normalized to the backslash form.
func Tokenize(src []byte) *Events {
	doc := engine.Parser().Parse(text.NewReader(src))

	var spans []span
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if sp, ok := linesSpan(n.Lines()); ok {
				spans = append(spans, sp)
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock:
			lines := n.Lines()
			if n.HasClosure() {
				lines.Append(n.ClosureLine)
			}
			if sp, ok := linesSpan(lines); ok {
				spans = append(spans, sp)
			}
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			if sp, ok := linesSpan(n.Segments); ok {
				spans = append(spans, sp)
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeSpan:
			if sp, ok := childrenSpan(n); ok {
				spans = append(spans, sp)
			}
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if sp, ok := breakSpan(src, n); ok {
				spans = append(spans, sp)
			}
		}
		return ast.WalkContinue, nil
	})

	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	events := &Events{}
	prev := 0
	for _, sp := range spans {
		if sp.start < prev || sp.end > len(src) {
			continue
		}
		if sp.start > prev {
			events.Append(TextEvent(string(src[prev:sp.start])))
		}
		if sp.kind == Opaque {
			events.Append(OpaqueEvent(string(src[sp.start:sp.end])))
		} else {
			events.Append(Event{Kind: sp.kind})
		}
		prev = sp.end
	}
	if prev < len(src) {
		events.Append(TextEvent(string(src[prev:])))
	}
	return events
}

// breakSpan returns the line ending that follows t when goldmark marked it
// as a soft or hard line break. The span covers any trailing spaces or
// backslash and the newline itself.
func breakSpan(src []byte, t *ast.Text) (span, bool) {
	var kind Kind
	switch {
	case t.HardLineBreak():
		kind = HardBreak
	case t.SoftLineBreak():
		kind = SoftBreak
	default:
		return span{}, false
	}
	start := t.Segment.Stop
	if start < 0 || start > len(src) {
		return span{}, false
	}
	nl := bytes.IndexByte(src[start:], '\n')
	if nl < 0 {
		return span{}, false
	}
	return span{start: start, end: start + nl + 1, kind: kind}, true
}

func linesSpan(lines *text.Segments) (span, bool) {
	if lines == nil || lines.Len() == 0 {
		return span{}, false
	}
	first, last := lines.At(0), lines.At(lines.Len()-1)
	if last.Stop <= first.Start {
		return span{}, false
	}
	return span{start: first.Start, end: last.Stop, kind: Opaque}, true
}

func childrenSpan(n ast.Node) (span, bool) {
	start, end := -1, -1
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		t, ok := c.(*ast.Text)
		if !ok {
			continue
		}
		if start < 0 || t.Segment.Start < start {
			start = t.Segment.Start
		}
		if t.Segment.Stop > end {
			end = t.Segment.Stop
		}
	}
	if start < 0 || end <= start {
		return span{}, false
	}
	return span{start: start, end: end, kind: Opaque}, true
}

// Render serializes events back into markdown source.
func Render(events *Events) []byte {
	var b strings.Builder
	for _, ev := range events.items {
		switch ev.Kind {
		case SoftBreak:
			b.WriteString("\n")
		case HardBreak:
			b.WriteString("\\\n")
		default:
			b.WriteString(ev.Text)
		}
	}
	return []byte(b.String())
}
