package markdown

import (
	"strings"
	"testing"
)

func kinds(e *Events) []Kind {
	out := make([]Kind, 0, e.Len())
	for _, ev := range e.Slice() {
		out = append(out, ev.Kind)
	}
	return out
}

func TestTokenize_SoftBreaks(t *testing.T) {
	src := "line one\nline two\n"
	ev := Tokenize([]byte(src))

	want := []Event{TextEvent("line one"), SoftBreakEvent(), TextEvent("line two\n")}
	if ev.Len() != len(want) {
		t.Fatalf("events = %+v, want %+v", ev.Slice(), want)
	}
	for i, w := range want {
		if ev.At(i) != w {
			t.Errorf("event %d = %+v, want %+v", i, ev.At(i), w)
		}
	}
	if got := string(Render(ev)); got != src {
		t.Errorf("Render = %q, want %q", got, src)
	}
}

func TestTokenize_HardBreaks(t *testing.T) {
	for _, src := range []string{"a  \nb", "a\\\nb"} {
		ev := Tokenize([]byte(src))
		if ev.Count(HardBreak) != 1 || ev.Count(SoftBreak) != 0 {
			t.Errorf("%q: kinds = %v", src, kinds(ev))
			continue
		}
		if got := string(Render(ev)); got != "a\\\nb" {
			t.Errorf("%q: Render = %q", src, got)
		}
	}
}

func TestTokenize_CodeBlockHasNoBreaks(t *testing.T) {
	src := "```\nx\ny\n```\n"
	ev := Tokenize([]byte(src))
	if ev.Count(SoftBreak)+ev.Count(HardBreak) != 0 {
		t.Fatalf("kinds = %v, want only text", kinds(ev))
	}
	if got := string(Render(ev)); got != src {
		t.Errorf("Render = %q", got)
	}
}

func TestTokenize_ParagraphsAndHeadings(t *testing.T) {
	src := "# Title\n\nfirst\nsecond\n\n- item\n  more\n"
	ev := Tokenize([]byte(src))
	if ev.Count(SoftBreak) != 2 {
		t.Errorf("soft breaks = %d, want 2 (kinds %v)", ev.Count(SoftBreak), kinds(ev))
	}
	if got := string(Render(ev)); got != src {
		t.Errorf("Render = %q, want %q", got, src)
	}
}

func TestTokenize_Empty(t *testing.T) {
	if ev := Tokenize(nil); ev.Len() != 0 {
		t.Errorf("len = %d, want 0", ev.Len())
	}
}

func TestEvents_Mutations(t *testing.T) {
	ev := NewEvents(TextEvent("b"))
	ev.Prepend(TextEvent("a"))
	ev.Append(TextEvent("c"), OpaqueEvent("<x>"))
	ev.Set(1, TextEvent("B"))
	ev.Splice(2, 1, TextEvent("c1"), TextEvent("c2"))

	want := []string{"a", "B", "c1", "c2", "<x>"}
	if ev.Len() != len(want) {
		t.Fatalf("events = %+v", ev.Slice())
	}
	for i, w := range want {
		if ev.At(i).Text != w {
			t.Errorf("event %d = %q, want %q", i, ev.At(i).Text, w)
		}
	}
	if ev.At(4).Kind != Opaque {
		t.Errorf("kind = %s, want opaque", ev.At(4).Kind)
	}
}

func TestTokenize_CodeAndHTMLAreOpaque(t *testing.T) {
	src := "before ![[A]] `![[B]]`\n\n```\n![[C]]\n```\n\n<div>\n![[D]]\n</div>\n"
	ev := Tokenize([]byte(src))

	var opaque, plain string
	for _, e := range ev.Slice() {
		switch e.Kind {
		case Opaque:
			opaque += e.Text
		case Text:
			plain += e.Text
		}
	}
	for _, s := range []string{"![[B]]", "![[C]]", "![[D]]"} {
		if !strings.Contains(opaque, s) || strings.Contains(plain, s) {
			t.Errorf("%s should be opaque: opaque=%q text=%q", s, opaque, plain)
		}
	}
	if !strings.Contains(plain, "![[A]]") {
		t.Errorf("inline embed should stay text: %q", plain)
	}
	if got := string(Render(ev)); got != src {
		t.Errorf("Render = %q, want %q", got, src)
	}
}
