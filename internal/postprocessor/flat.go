package postprocessor

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/starford/vaultexport/internal/apperr"
	"github.com/starford/vaultexport/internal/markdown"
)

var flattenReplacer = strings.NewReplacer(string(filepath.Separator), "-", "/", "-", ".", "-")

// FlattenPath collapses a root-relative note path into one file name: every
// separator and every dot before the extension becomes "-". The extension
// is kept, so "a/b.c.md" becomes "a-b-c.md".
func FlattenPath(rel string) string {
	ext := filepath.Ext(rel)
	stem := strings.TrimSuffix(rel, ext)
	return flattenReplacer.Replace(stem) + ext
}

// FlatHierarchy rewrites Context.Destination so every note lands directly
// in the output root under its flattened name. The root is read from the
// destination control key, which is consumed.
var FlatHierarchy Postprocessor = Func(flatHierarchy)

func flatHierarchy(ctx *Context, _ *markdown.Events) (Result, error) {
	file := ctx.CurrentFile()

	root, err := ctx.Frontmatter.RequireString(KeyDestination)
	if err != nil {
		return Continue, apperr.Note(file, KeyDestination, err)
	}

	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(ctx.Destination))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Continue, apperr.Note(file, "destination",
			fmt.Errorf("%w: %q is not under %q", apperr.ErrInvalidDestinationRoot, ctx.Destination, root))
	}

	ctx.Destination = filepath.Join(root, FlattenPath(rel))
	ctx.Frontmatter.Delete(KeyDestination)
	return Continue, nil
}
