package index

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/vaultexport/internal/apperr"
	"github.com/starford/vaultexport/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "vaultexport-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"notes", "links", "exports"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestNoteName(t *testing.T) {
	cases := map[string]string{
		"Note.md":               "note",
		"dir/Sub Note.md":       "sub note",
		"Target":                "target",
		filepath.Join("a", "B"): "b",
	}
	for in, want := range cases {
		if got := NoteName(in); got != want {
			t.Errorf("NoteName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	row := NoteRow{Path: "hello.md", Title: "Hello", Checksum: "abc123", Tags: []string{"go"}, UpdatedAt: time.Now()}
	if err := db.UpsertNote(row, []string{"other"}, nil); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}
	cs, err := db.GetChecksum("hello.md")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}

	if err := db.UpsertNote(NoteRow{Path: "hello.md", Checksum: "def"}, nil, nil); err != nil {
		t.Fatalf("UpsertNote (update): %v", err)
	}
	all, err := db.AllChecksums()
	if err != nil {
		t.Fatalf("AllChecksums: %v", err)
	}
	if len(all) != 1 || all["hello.md"] != "def" {
		t.Errorf("AllChecksums = %v", all)
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestResolveName(t *testing.T) {
	db := testDB(t)
	for _, p := range []string{
		filepath.Join("deep", "nested", "Target.md"),
		"Target.md",
		filepath.Join("projects", "Plan.md"),
		filepath.Join("archive", "projects", "Plan.md"),
	} {
		if err := db.UpsertNote(NoteRow{Path: p, Checksum: "x"}, nil, nil); err != nil {
			t.Fatalf("UpsertNote(%s): %v", p, err)
		}
	}

	tests := []struct {
		target string
		want   string
	}{
		{"Target", "Target.md"},
		{"target", "Target.md"},
		{"Target.md", "Target.md"},
		{"nested/Target", filepath.Join("deep", "nested", "Target.md")},
		{"Plan", filepath.Join("projects", "Plan.md")},
		{"archive/projects/Plan", filepath.Join("archive", "projects", "Plan.md")},
	}
	for _, tt := range tests {
		got, err := db.ResolveName(tt.target)
		if err != nil {
			t.Errorf("ResolveName(%q): %v", tt.target, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveName(%q) = %q, want %q", tt.target, got, tt.want)
		}
	}

	for _, missing := range []string{"Nope", "", "other/Target"} {
		if _, err := db.ResolveName(missing); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("ResolveName(%q) error = %v, want ErrNotFound", missing, err)
		}
	}
}

func TestEmbedders(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "a.md", Checksum: "1"}, []string{"Shared"}, []string{"Shared"})
	_ = db.UpsertNote(NoteRow{Path: "b.md", Checksum: "2"}, []string{"Shared"}, nil)
	_ = db.UpsertNote(NoteRow{Path: filepath.Join("x", "c.md"), Checksum: "3"}, nil, []string{"dir/shared"})

	got, err := db.Embedders(filepath.Join("notes", "Shared.md"))
	if err != nil {
		t.Fatalf("Embedders: %v", err)
	}
	if len(got) != 2 || got[0] != "a.md" || got[1] != filepath.Join("x", "c.md") {
		t.Errorf("Embedders = %v", got)
	}

	if err := db.DeleteNote("a.md"); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	got, _ = db.Embedders("Shared.md")
	if len(got) != 1 {
		t.Errorf("after delete Embedders = %v, want 1 entry", got)
	}
}

func TestExportManifest(t *testing.T) {
	db := testDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	recs := []models.ExportRecord{
		{Source: "b.md", Destination: "/out/b.md", Status: models.StatusExported, ExportedAt: now},
		{Source: "a.md", Status: models.StatusSkipped, ExportedAt: now},
		{Source: "c.md", Status: models.StatusFailed, Error: "boom", ExportedAt: now},
	}
	for _, r := range recs {
		if err := db.RecordExport(r); err != nil {
			t.Fatalf("RecordExport: %v", err)
		}
	}

	all, err := db.ListExports("")
	if err != nil {
		t.Fatalf("ListExports: %v", err)
	}
	if len(all) != 3 || all[0].Source != "a.md" || all[2].Source != "c.md" {
		t.Fatalf("ListExports = %+v", all)
	}
	failed, _ := db.ListExports(models.StatusFailed)
	if len(failed) != 1 || failed[0].Error != "boom" {
		t.Errorf("failed = %+v", failed)
	}

	owner, err := db.DestinationOwner("/out/b.md")
	if err != nil || owner != "b.md" {
		t.Errorf("DestinationOwner = %q, %v", owner, err)
	}
	if owner, _ := db.DestinationOwner("/out/none.md"); owner != "" {
		t.Errorf("unowned destination returned %q", owner)
	}

	// A skipped note gives up its destination.
	_ = db.RecordExport(models.ExportRecord{Source: "b.md", Destination: "/out/b.md", Status: models.StatusSkipped})
	if owner, _ := db.DestinationOwner("/out/b.md"); owner != "" {
		t.Errorf("skipped note still owns destination: %q", owner)
	}

	rec, err := db.GetExport("c.md")
	if err != nil {
		t.Fatalf("GetExport: %v", err)
	}
	if rec.Status != models.StatusFailed {
		t.Errorf("status = %q", rec.Status)
	}

	if err := db.DeleteExport("c.md"); err != nil {
		t.Fatalf("DeleteExport: %v", err)
	}
	if _, err := db.GetExport("c.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetExport after delete: %v, want ErrNotFound", err)
	}
}
