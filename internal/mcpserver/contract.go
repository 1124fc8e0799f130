package mcpserver

// FrontmatterContract describes the frontmatter keys the exporter reads or
// rewrites, so LLM consumers can predict what an exported note looks like.
const FrontmatterContract = `# Vault Export Frontmatter Contract

Notes are exported with their YAML frontmatter run through a fixed pipeline.
The keys below have special meaning. Every other key is copied unchanged.

## Keys read from notes

- ` + "`" + `tags` + "`" + ` - YAML sequence of strings. Notes carrying a skip tag are not
  exported. When only-tags are configured, a note must carry at least one of
  them. Skip tags win over only-tags. A missing or non-sequence value counts
  as no tags.
- ` + "`" + `aliases` + "`" + ` - removed when it is not a sequence or is an empty one.
- ` + "`" + `author` + "`" + ` - set to the configured author, replacing any existing value.
- ` + "`" + `id` + "`" + ` - optional string. On an embedded note it is the target of the link
  back to that note. Defaults to the note's path without extension.

## Keys the exporter sets and consumes

These never appear in exported output:

- ` + "`" + `destination` + "`" + ` - output root for flat exports. The note is written directly
  under it using a single-file name built from its vault path.
- ` + "`" + `embed_link` + "`" + ` - the raw ` + "`" + `![[...]]` + "`" + ` reference of an embedded note.
- ` + "`" + `id` + "`" + ` on an embedded note - consumed together with ` + "`" + `embed_link` + "`" + `.

A control key holding the wrong type fails the note with an invalid
frontmatter value error naming the key.

## Embeds

` + "`" + `![[note]]` + "`" + `, ` + "`" + `![[note#Section]]` + "`" + ` and ` + "`" + `![[note|label]]` + "`" + ` are replaced with the body
of the referenced note. With embed info on, the body is wrapped in a
` + "`" + `markdown-embed` + "`" + ` div holding a hidden title (the label, section or note
name) and a hidden link to the note's id, with ` + "`" + `#section-slug` + "`" + ` appended for
section references. References inside code spans, code blocks and raw HTML
are left alone. Unresolved or cyclic embeds stay as written.

## Example

Source ` + "`" + `projects/plan.md` + "`" + `:

` + "```" + `markdown
---
title: Plan
aliases: []
tags: [work]
---
Line one
Line two

![[goals|Our goals]]
` + "```" + `

Exported with author "Jane", hard line breaks and embed info on:

` + "```" + `markdown
---
title: Plan
tags:
    - work
author: Jane
---
Line one\
Line two

<div class="markdown-embed">
<div class="markdown-embed-title" style="display:none;">Our goals</div>
...body of goals.md...
<a href="goals" title="Open Link">...</a>
</div>
` + "```" + `
`
