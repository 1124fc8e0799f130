package postprocessor

import (
	"bytes"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/starford/vaultexport/internal/apperr"
	"github.com/starford/vaultexport/internal/frontmatter"
	"github.com/starford/vaultexport/internal/markdown"
)

func newCtx(fm *frontmatter.Map) *Context {
	return NewContext("vault/note.md", "/out/note.md", fm)
}

func TestAddAuthor_Idempotent(t *testing.T) {
	fm := frontmatter.New()
	fm.Set(KeyAuthor, frontmatter.String("someone else"))
	ctx := newCtx(fm)
	p := AddAuthor("Aadam")

	for i := 0; i < 2; i++ {
		res, err := p.Process(ctx, markdown.NewEvents())
		if err != nil || res != Continue {
			t.Fatalf("run %d: res = %s, err = %v", i, res, err)
		}
	}
	if fm.Len() != 1 {
		t.Fatalf("keys = %v, want only author", fm.Keys())
	}
	if s, _ := fm.RequireString(KeyAuthor); s != "Aadam" {
		t.Errorf("author = %q, want Aadam", s)
	}
}

func TestRemoveEmptyAliases(t *testing.T) {
	tests := []struct {
		name    string
		aliases *frontmatter.Value
		removed bool
	}{
		{name: "absent", aliases: nil, removed: false},
		{name: "empty sequence", aliases: ptr(frontmatter.Sequence()), removed: true},
		{name: "null", aliases: ptr(frontmatter.Null()), removed: true},
		{name: "scalar string", aliases: ptr(frontmatter.String("x")), removed: true},
		{name: "non-empty sequence", aliases: ptr(frontmatter.Strings("a")), removed: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&logs, nil))

			fm := frontmatter.New()
			fm.Set("title", frontmatter.String("T"))
			if tt.aliases != nil {
				fm.Set(KeyAliases, *tt.aliases)
			}
			res, err := RemoveEmptyAliases(logger).Process(newCtx(fm), markdown.NewEvents())
			if err != nil || res != Continue {
				t.Fatalf("res = %s, err = %v", res, err)
			}
			present := fm.Has(KeyAliases)
			if tt.removed && present {
				t.Error("aliases should be removed")
			}
			if !tt.removed && tt.aliases != nil && !present {
				t.Error("aliases should be kept")
			}
			logged := strings.Contains(logs.String(), "vault/note.md")
			if logged != tt.removed {
				t.Errorf("diagnostic logged = %v, want %v (%q)", logged, tt.removed, logs.String())
			}
			if !fm.Has("title") {
				t.Error("unrelated key removed")
			}
		})
	}
}

func ptr(v frontmatter.Value) *frontmatter.Value { return &v }

func TestSoftbreaksToHardbreaks(t *testing.T) {
	events := markdown.NewEvents(
		markdown.TextEvent("a"),
		markdown.SoftBreakEvent(),
		markdown.TextEvent("b"),
		markdown.HardBreakEvent(),
		markdown.OpaqueEvent("<hr>"),
		markdown.SoftBreakEvent(),
		markdown.TextEvent("c"),
	)
	before := events.Slice()
	soft, hard := events.Count(markdown.SoftBreak), events.Count(markdown.HardBreak)

	res, err := SoftbreaksToHardbreaks.Process(newCtx(nil), events)
	if err != nil || res != Continue {
		t.Fatalf("res = %s, err = %v", res, err)
	}
	if events.Len() != len(before) {
		t.Fatalf("len = %d, want %d", events.Len(), len(before))
	}
	if events.Count(markdown.SoftBreak) != 0 {
		t.Error("soft breaks remain")
	}
	if events.Count(markdown.HardBreak) != soft+hard {
		t.Errorf("hard breaks = %d, want %d", events.Count(markdown.HardBreak), soft+hard)
	}
	for i, ev := range before {
		if ev.Kind == markdown.SoftBreak || ev.Kind == markdown.HardBreak {
			continue
		}
		if events.At(i) != ev {
			t.Errorf("event %d changed: %+v -> %+v", i, ev, events.At(i))
		}
	}
}

func TestAddEmbedInfo_Wrapper(t *testing.T) {
	fm := frontmatter.New()
	fm.Set(KeyEmbedLink, frontmatter.String("Note#Section|Label"))
	fm.Set(KeyID, frontmatter.String("generated-id"))
	events := markdown.NewEvents(markdown.TextEvent("body"))

	res, err := AddEmbedInfo.Process(newCtx(fm), events)
	if err != nil || res != Continue {
		t.Fatalf("res = %s, err = %v", res, err)
	}
	if events.Len() != 3 {
		t.Fatalf("len = %d, want 3", events.Len())
	}
	first, last := events.At(0).Text, events.At(2).Text
	if !strings.Contains(first, `<div class="markdown-embed-title" style="display:none;">Label</div>`) {
		t.Errorf("opening wrapper missing title: %q", first)
	}
	if !strings.Contains(first, `<div class="markdown-embed-content">`) {
		t.Errorf("opening wrapper missing content container: %q", first)
	}
	if !strings.Contains(last, `href="generated-id#section"`) {
		t.Errorf("closing wrapper link: %q", last)
	}
	if !strings.Contains(last, `class="link"`) {
		t.Errorf("closing wrapper missing icon: %q", last)
	}
	if events.At(1).Text != "body" {
		t.Errorf("body moved: %+v", events.Slice())
	}
	if fm.Has(KeyEmbedLink) || fm.Has(KeyID) {
		t.Errorf("control keys not consumed: %v", fm.Keys())
	}
}

func TestAddEmbedInfo_TitleWithoutLabel(t *testing.T) {
	tests := []struct {
		ref, title, href string
	}{
		{"Note", ">Note</div>", `href="nid"`},
		{"Note#Getting Started", ">Note &gt; Getting Started</div>", `href="nid#getting-started"`},
		{"Note#v1.2 Notes|A & B", ">A &amp; B</div>", `href="nid#v1-2-notes"`},
	}
	for _, tt := range tests {
		fm := frontmatter.New()
		fm.Set(KeyEmbedLink, frontmatter.String(tt.ref))
		fm.Set(KeyID, frontmatter.String("nid"))
		events := markdown.NewEvents()
		if _, err := AddEmbedInfo.Process(newCtx(fm), events); err != nil {
			t.Fatalf("%q: %v", tt.ref, err)
		}
		if !strings.Contains(events.At(0).Text, tt.title) {
			t.Errorf("%q: title not found in %q", tt.ref, events.At(0).Text)
		}
		if !strings.Contains(events.At(events.Len()-1).Text, tt.href) {
			t.Errorf("%q: link not found in %q", tt.ref, events.At(events.Len()-1).Text)
		}
	}
}

func TestAddEmbedInfo_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*frontmatter.Map)
		want  error
		field string
	}{
		{"missing embed_link", func(m *frontmatter.Map) { m.Set(KeyID, frontmatter.String("x")) }, apperr.ErrMissingFrontmatterKey, KeyEmbedLink},
		{"missing id", func(m *frontmatter.Map) { m.Set(KeyEmbedLink, frontmatter.String("N")) }, apperr.ErrMissingFrontmatterKey, KeyID},
		{"id not string", func(m *frontmatter.Map) {
			m.Set(KeyEmbedLink, frontmatter.String("N"))
			m.Set(KeyID, frontmatter.Int(4))
		}, apperr.ErrInvalidFrontmatterValue, KeyID},
		{"malformed reference", func(m *frontmatter.Map) {
			m.Set(KeyEmbedLink, frontmatter.String("N#"))
			m.Set(KeyID, frontmatter.String("x"))
		}, apperr.ErrMalformedNoteReference, KeyEmbedLink},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm := frontmatter.New()
			tt.setup(fm)
			events := markdown.NewEvents(markdown.TextEvent("x"))
			_, err := AddEmbedInfo.Process(newCtx(fm), events)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var ne *apperr.NoteError
			if !errors.As(err, &ne) || ne.Field != tt.field || ne.File != "vault/note.md" {
				t.Errorf("note error = %+v", ne)
			}
			if events.Len() != 1 {
				t.Error("events mutated on failure")
			}
		})
	}
}

func TestFlatHierarchy(t *testing.T) {
	root := filepath.FromSlash("/out")
	fm := frontmatter.New()
	fm.Set(KeyDestination, frontmatter.String(root))
	fm.Set("title", frontmatter.String("kept"))
	ctx := NewContext("a/b.c.md", filepath.FromSlash("/out/a/b.c.md"), fm)

	res, err := FlatHierarchy.Process(ctx, markdown.NewEvents())
	if err != nil || res != Continue {
		t.Fatalf("res = %s, err = %v", res, err)
	}
	if want := filepath.FromSlash("/out/a-b-c.md"); ctx.Destination != want {
		t.Errorf("destination = %q, want %q", ctx.Destination, want)
	}
	if fm.Has(KeyDestination) {
		t.Error("destination key not consumed")
	}
	if !fm.Has("title") {
		t.Error("unrelated key removed")
	}
}

func TestFlatHierarchy_Errors(t *testing.T) {
	ctx := NewContext("n.md", "/out/n.md", nil)
	if _, err := FlatHierarchy.Process(ctx, markdown.NewEvents()); !errors.Is(err, apperr.ErrMissingFrontmatterKey) {
		t.Errorf("missing root: err = %v", err)
	}

	fm := frontmatter.New()
	fm.Set(KeyDestination, frontmatter.String(filepath.FromSlash("/out")))
	ctx = NewContext("n.md", filepath.FromSlash("/elsewhere/n.md"), fm)
	if _, err := FlatHierarchy.Process(ctx, markdown.NewEvents()); !errors.Is(err, apperr.ErrInvalidDestinationRoot) {
		t.Errorf("outside root: err = %v", err)
	}
	if ctx.Destination != filepath.FromSlash("/elsewhere/n.md") {
		t.Errorf("destination changed on failure: %q", ctx.Destination)
	}
}

func TestFlattenPath(t *testing.T) {
	tests := map[string]string{
		"note.md":             "note.md",
		"a/b.c.md":            "a-b-c.md",
		"daily/2024.01.02.md": "daily-2024-01-02.md",
		"x/y/z":               "x-y-z",
	}
	for in, want := range tests {
		if got := FlattenPath(filepath.FromSlash(in)); got != want {
			t.Errorf("FlattenPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFilterByTags_Matrix(t *testing.T) {
	tagged := map[string]struct{}{"skip": {}, "publish": {}}
	untagged := map[string]struct{}{}

	tests := []struct {
		name       string
		tags       map[string]struct{}
		skip, only []string
		want       Result
	}{
		{"no rules, untagged", untagged, nil, nil, Continue},
		{"no rules, tagged", tagged, nil, nil, Continue},
		{"unmatched exclusion, tagged", tagged, []string{"exclude"}, nil, Continue},
		{"unmatched exclusion, untagged", untagged, []string{"exclude"}, nil, Continue},
		{"matched inclusion", tagged, nil, []string{"publish"}, Continue},
		{"inclusion, untagged", untagged, nil, []string{"include"}, StopAndSkipNote},
		{"unmatched inclusion", tagged, nil, []string{"include"}, StopAndSkipNote},
		{"same tag in both sets", tagged, []string{"skip"}, []string{"skip"}, StopAndSkipNote},
		{"both match, exclusion wins", tagged, []string{"skip"}, []string{"publish"}, StopAndSkipNote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FilterByTags(tt.skip, tt.only).Decide(tt.tags); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFilterByTags_ReadsFrontmatter(t *testing.T) {
	f := FilterByTags(nil, []string{"publish"})

	fm := frontmatter.New()
	fm.Set(KeyTags, frontmatter.Sequence(frontmatter.Int(1), frontmatter.String("publish")))
	if res, _ := f.Process(newCtx(fm), nil); res != Continue {
		t.Errorf("string tag among non-strings: got %s", res)
	}

	fm = frontmatter.New()
	fm.Set(KeyTags, frontmatter.String("publish"))
	if res, _ := f.Process(newCtx(fm), nil); res != StopAndSkipNote {
		t.Errorf("scalar tags are treated as no tags: got %s", res)
	}
}

func TestFilterByTags_ConcurrentUse(t *testing.T) {
	f := FilterByTags([]string{"private"}, []string{"publish"})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fm := frontmatter.New()
			if i%2 == 0 {
				fm.Set(KeyTags, frontmatter.Strings("publish"))
			}
			want := StopAndSkipNote
			if i%2 == 0 {
				want = Continue
			}
			if res, _ := f.Process(newCtx(fm), nil); res != want {
				t.Errorf("note %d: got %s, want %s", i, res, want)
			}
		}(i)
	}
	wg.Wait()
}

func TestPipeline_StopsOnSkip(t *testing.T) {
	var calls []string
	step := func(name string, res Result) Postprocessor {
		return Func(func(*Context, *markdown.Events) (Result, error) {
			calls = append(calls, name)
			return res, nil
		})
	}
	p := NewPipeline(step("a", Continue), step("b", StopAndSkipNote), step("c", Continue))

	res, err := p.Run(newCtx(nil), markdown.NewEvents())
	if err != nil || res != StopAndSkipNote {
		t.Fatalf("res = %s, err = %v", res, err)
	}
	if strings.Join(calls, ",") != "a,b" {
		t.Errorf("calls = %v", calls)
	}
}

func TestPipeline_StopsOnError(t *testing.T) {
	ran := false
	p := NewPipeline(
		FlatHierarchy,
		Func(func(*Context, *markdown.Events) (Result, error) {
			ran = true
			return Continue, nil
		}),
	)
	_, err := p.Run(newCtx(nil), markdown.NewEvents())
	if !errors.Is(err, apperr.ErrMissingFrontmatterKey) {
		t.Fatalf("err = %v", err)
	}
	if !strings.HasPrefix(err.Error(), "vault/note.md: postprocessor 0: ") {
		t.Errorf("err = %q, want note path and step index", err)
	}
	if ran {
		t.Error("step after failure ran")
	}
}

func TestPipeline_FullChain(t *testing.T) {
	fm := frontmatter.New()
	fm.Set(KeyTags, frontmatter.Strings("publish"))
	fm.Set(KeyAliases, frontmatter.Sequence())
	fm.Set(KeyDestination, frontmatter.String(filepath.FromSlash("/out")))
	ctx := NewContext("dir/n.md", filepath.FromSlash("/out/dir/n.md"), fm)
	events := markdown.NewEvents(markdown.TextEvent("a"), markdown.SoftBreakEvent(), markdown.TextEvent("b"))

	p := NewPipeline(
		FilterByTags(nil, []string{"publish"}),
		RemoveEmptyAliases(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
		AddAuthor("me"),
		SoftbreaksToHardbreaks,
		FlatHierarchy,
	)
	if p.Len() != 5 {
		t.Fatalf("len = %d", p.Len())
	}
	res, err := p.Run(ctx, events)
	if err != nil || res != Continue {
		t.Fatalf("res = %s, err = %v", res, err)
	}
	if ctx.Destination != filepath.FromSlash("/out/dir-n.md") {
		t.Errorf("destination = %q", ctx.Destination)
	}
	if got := strings.Join(fm.Keys(), ","); got != "tags,author" {
		t.Errorf("keys = %s", got)
	}
	if string(markdown.Render(events)) != "a\\\nb" {
		t.Errorf("rendered = %q", markdown.Render(events))
	}
}

func TestSlugify(t *testing.T) {
	for in, want := range map[string]string{
		"Section":              "section",
		"Getting Started":      "getting-started",
		"v1.2 Notes":           "v1-2-notes",
		"What's New":           "what-s-new",
		"A/B Testing":          "a-b-testing",
		"Foo.Bar":              "foo-bar",
		"  -- Edge: case --  ": "edge-case",
	} {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
