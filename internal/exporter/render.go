package exporter

import (
	"bytes"
	"fmt"

	"github.com/starford/vaultexport/internal/frontmatter"
	"github.com/starford/vaultexport/internal/markdown"
)

const fence = "---\n"

// RenderNote serialises a processed note. The frontmatter block is omitted
// when fm is empty.
func RenderNote(fm *frontmatter.Map, events *markdown.Events) ([]byte, error) {
	body := markdown.Render(events)
	if fm.Len() == 0 {
		return body, nil
	}
	head, err := frontmatter.Encode(fm)
	if err != nil {
		return nil, fmt.Errorf("exporter: encode frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(head) + len(body) + 2*len(fence))
	buf.WriteString(fence)
	buf.Write(head)
	buf.WriteString(fence)
	buf.Write(body)
	return buf.Bytes(), nil
}
