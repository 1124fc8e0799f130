package postprocessor

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/goliatone/go-slug"

	"github.com/starford/vaultexport/internal/apperr"
	"github.com/starford/vaultexport/internal/markdown"
	"github.com/starford/vaultexport/internal/parser"
)

const embedOpen = "\n<div class=\"markdown-embed\">\n" +
	"<div class=\"markdown-embed-title\" style=\"display:none;\">%s</div>\n" +
	"<div class=\"markdown-embed-content\">\n\n\n"

const embedClose = "\n</div>\n" +
	"<div class=\"markdown-embed-link\" style=\"display:none;\">\n\n" +
	"<a href=\"%s\" title=\"Open Link\">\n" +
	linkIcon + " \n\n" +
	"  </a></div>\n</div>\n"

const linkIcon = `<svg viewBox="0 0 100 100" class="link" width="20" height="20"><path fill="currentColor" stroke="currentColor" d="M74,8c-4.8,0-9.3,1.9-12.7,5.3l-10,10c-2.9,2.9-4.7,6.6-5.1,10.6C46,34.6,46,35.3,46,36c0,2.7,0.6,5.4,1.8,7.8l3.1-3.1 C50.3,39.2,50,37.6,50,36c0-3.7,1.5-7.3,4.1-9.9l10-10c2.6-2.6,6.2-4.1,9.9-4.1s7.3,1.5,9.9,4.1c2.6,2.6,4.1,6.2,4.1,9.9 s-1.5,7.3-4.1,9.9l-10,10C71.3,48.5,67.7,50,64,50c-1.6,0-3.2-0.3-4.7-0.8l-3.1,3.1c2.4,1.1,5,1.8,7.8,1.8c4.8,0,9.3-1.9,12.7-5.3 l10-10C90.1,35.3,92,30.8,92,26s-1.9-9.3-5.3-12.7C83.3,9.9,78.8,8,74,8L74,8z M62,36c-0.5,0-1,0.2-1.4,0.6l-24,24 c-0.5,0.5-0.7,1.2-0.6,1.9c0.2,0.7,0.7,1.2,1.4,1.4c0.7,0.2,1.4,0,1.9-0.6l24-24c0.6-0.6,0.8-1.5,0.4-2.2C63.5,36.4,62.8,36,62,36 z M36,46c-4.8,0-9.3,1.9-12.7,5.3l-10,10c-3.1,3.1-5,7.2-5.2,11.6c0,0.4,0,0.8,0,1.2c0,4.8,1.9,9.3,5.3,12.7 C16.7,90.1,21.2,92,26,92s9.3-1.9,12.7-5.3l10-10C52.1,73.3,54,68.8,54,64c0-2.7-0.6-5.4-1.8-7.8l-3.1,3.1 c0.5,1.5,0.8,3.1,0.8,4.7c0,3.7-1.5,7.3-4.1,9.9l-10,10C33.3,86.5,29.7,88,26,88s-7.3-1.5-9.9-4.1S12,77.7,12,74 c0-3.7,1.5-7.3,4.1-9.9l10-10c2.6-2.6,6.2-4.1,9.9-4.1c1.6,0,3.2,0.3,4.7,0.8l3.1-3.1C41.4,46.6,38.7,46,36,46L36,46z"></path></svg>`

var (
	anchorRe    = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	nonAlnumRun = regexp.MustCompile(`[^\p{L}\p{N}]+`)
)

// AddEmbedInfo wraps the events of an embedded note in markup carrying its
// title and a link back to the source, so a client renderer can present it
// as a rich embed. It consumes the embed_link and id control keys.
var AddEmbedInfo Postprocessor = Func(addEmbedInfo)

func addEmbedInfo(ctx *Context, events *markdown.Events) (Result, error) {
	file := ctx.CurrentFile()

	raw, err := ctx.Frontmatter.RequireString(KeyEmbedLink)
	if err != nil {
		return Continue, apperr.Note(file, KeyEmbedLink, err)
	}
	id, err := ctx.Frontmatter.RequireString(KeyID)
	if err != nil {
		return Continue, apperr.Note(file, KeyID, err)
	}
	ref, err := parser.ParseNoteReference(raw)
	if err != nil {
		return Continue, apperr.Note(file, KeyEmbedLink, err)
	}

	link := id
	if ref.HasSection() {
		link += "#" + Slugify(ref.Section)
	}
	title := ref.Display()

	events.Prepend(markdown.TextEvent(fmt.Sprintf(embedOpen, html.EscapeString(title))))
	events.Append(markdown.TextEvent(fmt.Sprintf(embedClose, html.EscapeString(link))))

	ctx.Frontmatter.Delete(KeyEmbedLink)
	ctx.Frontmatter.Delete(KeyID)
	return Continue, nil
}

// Slugify turns a heading into the anchor form used by the destination
// renderer: lowercase, with every run of non-alphanumerics collapsed into a
// single hyphen.
func Slugify(s string) string {
	split := strings.Trim(nonAlnumRun.ReplaceAllString(strings.ToLower(s), "-"), "-")
	// The library drops punctuation instead of splitting on it, so word
	// boundaries are marked before it transliterates.
	if out, err := slug.Normalize(split); err == nil && anchorRe.MatchString(out) {
		return out
	}
	return split
}
