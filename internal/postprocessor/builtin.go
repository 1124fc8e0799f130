package postprocessor

import (
	"log/slog"

	"github.com/starford/vaultexport/internal/frontmatter"
	"github.com/starford/vaultexport/internal/markdown"
)

// AddAuthor sets the author key to name, replacing any previous value.
func AddAuthor(name string) Postprocessor {
	return Func(func(ctx *Context, _ *markdown.Events) (Result, error) {
		ctx.Frontmatter.Set(KeyAuthor, frontmatter.String(name))
		return Continue, nil
	})
}

// RemoveEmptyAliases drops an aliases key that is not a sequence or is an
// empty one, logging the affected file.
func RemoveEmptyAliases(logger *slog.Logger) Postprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	return Func(func(ctx *Context, _ *markdown.Events) (Result, error) {
		v, ok := ctx.Frontmatter.Get(KeyAliases)
		if !ok {
			return Continue, nil
		}
		if seq, isSeq := v.AsSequence(); isSeq && len(seq) > 0 {
			return Continue, nil
		}
		ctx.Frontmatter.Delete(KeyAliases)
		logger.Info("removed empty aliases", slog.String("file", ctx.CurrentFile()))
		return Continue, nil
	})
}

// SoftbreaksToHardbreaks turns every soft line break into a hard one,
// matching a strict line-break rendering mode.
var SoftbreaksToHardbreaks Postprocessor = Func(softbreaksToHardbreaks)

func softbreaksToHardbreaks(_ *Context, events *markdown.Events) (Result, error) {
	for i := 0; i < events.Len(); i++ {
		if events.At(i).Kind == markdown.SoftBreak {
			events.Set(i, markdown.HardBreakEvent())
		}
	}
	return Continue, nil
}
