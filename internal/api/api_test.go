package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/starford/vaultexport/internal/exporter"
	"github.com/starford/vaultexport/internal/index"
	"github.com/starford/vaultexport/internal/testutil"
)

var testVaultFiles = map[string]string{
	"hello.md":        "---\ntitle: Hello\n---\nWorld\n",
	"notes/secret.md": "---\ntags: [private]\n---\nhidden\n",
}

// testEnv sets up a vault, output directory, index and exporter behind the
// router. An empty token disables auth.
func testEnv(t *testing.T, authToken string) (*exporter.Exporter, http.Handler) {
	t.Helper()

	_, vault := testutil.TestVault(t, testVaultFiles)
	_, out := testutil.TestOutput(t)
	db := testutil.TestDB(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	if _, err := index.Sync(db, vault, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	cfg := exporter.DefaultConfig()
	cfg.Author = "Jane"
	cfg.SkipTags = []string{"private"}
	exp := exporter.New(vault, out, db, cfg, logger)

	svc := NewService(exp, db, out)
	return exp, NewRouter(svc, authToken != "", authToken, nil)
}

func do(t *testing.T, h http.Handler, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestExportAllThenList(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d, body = %s", w.Code, w.Body.String())
	}
	var report ReportResponse
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Exported != 1 || report.Skipped != 1 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}

	w = do(t, router, http.MethodGet, "/exports", nil)
	var list ExportListResponse
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Total != 2 || list.Exports[0].Source != "hello.md" {
		t.Errorf("list = %+v", list)
	}

	w = do(t, router, http.MethodGet, "/exports?status=skipped", nil)
	_ = json.NewDecoder(w.Body).Decode(&list)
	if list.Total != 1 {
		t.Errorf("skipped list = %+v", list)
	}
}

func TestListExports_BadStatus(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/exports?status=bogus", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetExport(t *testing.T) {
	exp, router := testEnv(t, "")
	if _, err := exp.ExportAll(context.Background()); err != nil {
		t.Fatalf("ExportAll: %v", err)
	}

	w := do(t, router, http.MethodGet, "/exports/hello.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var detail ExportDetail
	if err := json.NewDecoder(w.Body).Decode(&detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.Content != "---\ntitle: Hello\nauthor: Jane\n---\nWorld\n" {
		t.Errorf("content = %q", detail.Content)
	}

	// Encoded slash in the path.
	w = do(t, router, http.MethodGet, "/exports/notes%2Fsecret.md", nil)
	if w.Code != http.StatusOK {
		t.Errorf("encoded path status = %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/exports/missing.md", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", w.Code)
	}
}

func TestPreview(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/preview/hello.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp PreviewResponse
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if resp.Status != "exported" || !strings.Contains(resp.Content, "author: Jane") {
		t.Errorf("preview = %+v", resp)
	}

	w = do(t, router, http.MethodGet, "/preview/notes/secret.md", nil)
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if w.Code != http.StatusOK || resp.Status != "skipped" || resp.Content != "" {
		t.Errorf("skipped preview = %d %+v", w.Code, resp)
	}

	w = do(t, router, http.MethodGet, "/preview/nope.md", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing preview status = %d, want 404", w.Code)
	}
}

func TestAuth(t *testing.T) {
	_, router := testEnv(t, "s3cret")

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"no header", nil, http.StatusUnauthorized},
		{"wrong token", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"wrong scheme", map[string]string{"Authorization": "Basic s3cret"}, http.StatusUnauthorized},
		{"valid", map[string]string{"Authorization": "Bearer s3cret"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, router, http.MethodGet, "/exports", tt.header); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestSSEMountedBehindAuth(t *testing.T) {
	_, vault := testutil.TestVault(t, nil)
	_, out := testutil.TestOutput(t)
	db := testutil.TestDB(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	exp := exporter.New(vault, out, db, exporter.DefaultConfig(), logger)

	called := false
	sse := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	router := NewRouter(NewService(exp, db, out), true, "tok", sse)

	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized || called {
		t.Errorf("unauthenticated events: status %d called %v", w.Code, called)
	}
	if w := do(t, router, http.MethodGet, "/events", map[string]string{"Authorization": "Bearer tok"}); w.Code != http.StatusOK || !called {
		t.Errorf("authenticated events: status %d called %v", w.Code, called)
	}
}
