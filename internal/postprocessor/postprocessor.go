// Package postprocessor implements the per-note mutation stage of an export:
// an ordered list of steps that read and rewrite a note's frontmatter and
// markdown events, and may decide that the note is not exported at all.
//
// Steps communicate through a small set of frontmatter control keys. Each key
// has one producer and one consumer, and the consumer deletes it:
//
//	destination  produced by the exporter when flattening, consumed by FlatHierarchy
//	embed_link   produced by the exporter for embedded notes, consumed by AddEmbedInfo
//	id           produced by the exporter for embedded notes, consumed by AddEmbedInfo
package postprocessor

import (
	"fmt"

	"github.com/starford/vaultexport/internal/frontmatter"
	"github.com/starford/vaultexport/internal/markdown"
)

// Frontmatter keys read or written by the built-in postprocessors.
const (
	KeyAuthor      = "author"
	KeyAliases     = "aliases"
	KeyTags        = "tags"
	KeyEmbedLink   = "embed_link"
	KeyID          = "id"
	KeyDestination = "destination"
)

// Result tells the pipeline what to do after a step.
type Result int

const (
	// Continue hands the note to the next step.
	Continue Result = iota
	// StopAndSkipNote ends the pipeline for this note; it must not be written.
	StopAndSkipNote
)

func (r Result) String() string {
	switch r {
	case Continue:
		return "continue"
	case StopAndSkipNote:
		return "stop_and_skip_note"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Context is the mutable per-note state shared by the steps of one run.
type Context struct {
	Frontmatter *frontmatter.Map
	// Destination is the path the note will be written to. Steps change the
	// output location only by rewriting this field.
	Destination string

	currentFile string
}

// NewContext returns the context for the note read from currentFile.
func NewContext(currentFile, destination string, fm *frontmatter.Map) *Context {
	if fm == nil {
		fm = frontmatter.New()
	}
	return &Context{
		Frontmatter: fm,
		Destination: destination,
		currentFile: currentFile,
	}
}

// CurrentFile returns the source path of the note.
func (c *Context) CurrentFile() string { return c.currentFile }

// Postprocessor is one pipeline step. A non-nil error aborts the note and
// the Result is ignored.
type Postprocessor interface {
	Process(ctx *Context, events *markdown.Events) (Result, error)
}

// Func adapts a plain function to Postprocessor.
type Func func(ctx *Context, events *markdown.Events) (Result, error)

// Process calls f.
func (f Func) Process(ctx *Context, events *markdown.Events) (Result, error) {
	return f(ctx, events)
}

// Pipeline is an ordered, immutable list of steps. It holds no per-note
// state and may be shared by concurrent note runs.
type Pipeline struct {
	steps []Postprocessor
}

// NewPipeline returns a pipeline running steps in order.
func NewPipeline(steps ...Postprocessor) *Pipeline {
	p := &Pipeline{steps: make([]Postprocessor, 0, len(steps))}
	for _, s := range steps {
		if s != nil {
			p.steps = append(p.steps, s)
		}
	}
	return p
}

// Len returns the number of steps.
func (p *Pipeline) Len() int { return len(p.steps) }

// Run feeds one note through the steps. It returns StopAndSkipNote as soon
// as a step does, and the first error wrapped with the note path and the
// step position.
func (p *Pipeline) Run(ctx *Context, events *markdown.Events) (Result, error) {
	for i, step := range p.steps {
		res, err := step.Process(ctx, events)
		if err != nil {
			return Continue, fmt.Errorf("%s: postprocessor %d: %w", ctx.CurrentFile(), i, err)
		}
		if res == StopAndSkipNote {
			return StopAndSkipNote, nil
		}
	}
	return Continue, nil
}
