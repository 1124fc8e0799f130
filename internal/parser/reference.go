package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/vaultexport/internal/apperr"
)

var embedRe = regexp.MustCompile(`!\[\[(.+?)\]\]`)

// NoteReference is the structured form of a link or embed target such as
// "Note#Section|Label". Target is empty for a reference into the same note.
type NoteReference struct {
	Target  string
	Section string
	Label   string
}

// HasSection reports whether the reference points at a heading.
func (r NoteReference) HasSection() bool { return r.Section != "" }

// HasLabel reports whether the reference overrides its display text.
func (r NoteReference) HasLabel() bool { return r.Label != "" }

// Display returns the text a reader sees for the reference: the label when
// set, otherwise "Target > Section", "Target" or "Section".
func (r NoteReference) Display() string {
	switch {
	case r.Label != "":
		return r.Label
	case r.Target != "" && r.Section != "":
		return r.Target + " > " + r.Section
	case r.Target != "":
		return r.Target
	default:
		return r.Section
	}
}

func (r NoteReference) String() string {
	var b strings.Builder
	b.WriteString(r.Target)
	if r.Section != "" {
		b.WriteString("#")
		b.WriteString(r.Section)
	}
	if r.Label != "" {
		b.WriteString("|")
		b.WriteString(r.Label)
	}
	return b.String()
}

// ParseNoteReference parses "Target#Section|Label". The section and label
// parts are optional; surrounding [[ ]] or ![[ ]] are stripped and a
// table-escaped "\|" is accepted as the label separator.
func ParseNoteReference(raw string) (NoteReference, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "!")
	if strings.HasPrefix(s, "[[") && strings.HasSuffix(s, "]]") {
		s = s[2 : len(s)-2]
	}
	s = strings.ReplaceAll(s, `\|`, "|")

	var ref NoteReference
	rest := s
	if i := strings.Index(rest, "|"); i >= 0 {
		ref.Label = strings.TrimSpace(rest[i+1:])
		if ref.Label == "" {
			return NoteReference{}, malformed(raw, "empty label")
		}
		rest = rest[:i]
	}
	if i := strings.Index(rest, "#"); i >= 0 {
		ref.Section = strings.TrimSpace(rest[i+1:])
		if ref.Section == "" {
			return NoteReference{}, malformed(raw, "empty section")
		}
		rest = rest[:i]
	}
	ref.Target = strings.TrimSpace(rest)

	if ref.Target == "" && ref.Section == "" {
		return NoteReference{}, malformed(raw, "no target or section")
	}
	return ref, nil
}

func malformed(raw, reason string) error {
	return fmt.Errorf("%w: %q: %s", apperr.ErrMalformedNoteReference, raw, reason)
}

// EmbedMatch locates one ![[...]] embed inside a text run.
type EmbedMatch struct {
	Start int
	End   int
	Raw   string
}

// FindEmbeds returns every embed in text, in order. Start and End are byte
// offsets of the full ![[...]] markup; Raw is the reference between the brackets.
func FindEmbeds(text string) []EmbedMatch {
	locs := embedRe.FindAllStringSubmatchIndex(text, -1)
	out := make([]EmbedMatch, 0, len(locs))
	for _, l := range locs {
		out = append(out, EmbedMatch{Start: l[0], End: l[1], Raw: text[l[2]:l[3]]})
	}
	return out
}
