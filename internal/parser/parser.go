// Package parser turns raw note files into frontmatter, a markdown event
// stream, and the wikilinks, embeds and tags they reference.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	adrgfm "github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"

	"github.com/starford/vaultexport/internal/frontmatter"
	"github.com/starford/vaultexport/internal/markdown"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

	yamlFormat = adrgfm.NewFormat("---", "---", yaml.Unmarshal)
)

// Result holds the output of parsing a note file.
type Result struct {
	Frontmatter *frontmatter.Map
	Body        []byte
	Events      *markdown.Events
	Links       []string
	Embeds      []string
	Tags        []string
	Title       string
}

// Parse extracts frontmatter, body events, wikilinks, embeds and tags from
// raw note bytes.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)
	text := string(body)

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Events:      markdown.Tokenize(body),
		Links:       extractLinks(text),
		Embeds:      extractEmbeds(text),
		Tags:        extractTags(text, fm),
		Title:       deriveTitle(fm, text),
	}, nil
}

// splitFrontmatter separates a leading YAML block delimited by --- from the
// body. Missing or invalid frontmatter yields an empty map and the whole
// input as body.
func splitFrontmatter(data []byte) (*frontmatter.Map, []byte) {
	var node yaml.Node
	body, err := adrgfm.Parse(bytes.NewReader(data), &node, yamlFormat)
	if err != nil {
		return frontmatter.New(), data
	}
	fm, err := frontmatter.FromNode(&node)
	if err != nil {
		return frontmatter.New(), data
	}
	if fm.Len() == 0 && len(body) == len(data) {
		return fm, data
	}
	return fm, bytes.TrimLeft(body, "\r\n")
}

// extractLinks returns deduplicated wikilink targets, normalising aliases and
// section anchors away.
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		ref, err := ParseNoteReference(m[1])
		if err != nil || ref.Target == "" {
			continue
		}
		if _, ok := seen[ref.Target]; ok {
			continue
		}
		seen[ref.Target] = struct{}{}
		out = append(out, ref.Target)
	}
	return out
}

// extractEmbeds returns the raw references of every ![[...]] embed in order.
func extractEmbeds(body string) []string {
	var out []string
	for _, m := range FindEmbeds(body) {
		out = append(out, m.Raw)
	}
	return out
}

// extractTags collects tags from the frontmatter "tags" sequence and inline
// #tags in the body.
func extractTags(body string, fm *frontmatter.Map) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if v, ok := fm.Get("tags"); ok {
		if seq, ok := v.AsSequence(); ok {
			for _, item := range seq {
				if s, ok := item.AsString(); ok {
					add(s)
				}
			}
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm *frontmatter.Map, body string) string {
	if v, ok := fm.Get("title"); ok {
		if s, ok := v.AsString(); ok && s != "" {
			return s
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
