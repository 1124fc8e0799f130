package postprocessor

import (
	"github.com/starford/vaultexport/internal/markdown"
)

// TagFilter decides whether a note is exported based on its tags. Its sets
// are fixed at construction, so one filter can serve concurrent note runs.
type TagFilter struct {
	skip map[string]struct{}
	only map[string]struct{}
}

// FilterByTags returns a filter that skips notes carrying any of skip and,
// when only is non-empty, skips notes carrying none of only. Exclusion wins
// over inclusion.
func FilterByTags(skip, only []string) *TagFilter {
	return &TagFilter{skip: toSet(skip), only: toSet(only)}
}

// Process implements Postprocessor.
func (f *TagFilter) Process(ctx *Context, _ *markdown.Events) (Result, error) {
	return f.Decide(ctx.Frontmatter.StringSet(KeyTags)), nil
}

// Decide applies the filter to a note's tag set.
func (f *TagFilter) Decide(tags map[string]struct{}) Result {
	for t := range f.skip {
		if _, ok := tags[t]; ok {
			return StopAndSkipNote
		}
	}
	if len(f.only) == 0 {
		return Continue
	}
	for t := range f.only {
		if _, ok := tags[t]; ok {
			return Continue
		}
	}
	return StopAndSkipNote
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		set[s] = struct{}{}
	}
	return set
}
