// internal/adapters/output/store_test.go
package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reconx/internal/core/domain"
	"reconx/internal/platform/logx"
	"reconx/internal/testutil"
)

func TestSanitizeTarget(t *testing.T) {
	tests := map[string]string{
		"example.com":     "example_com",
		"sub.example.com": "sub_example_com",
		"192.0.2.10":      "192_0_2_10",
		"2001:db8::1":     "2001_db8__1",
		"my-site.org":     "my-site_org",
		"../etc/passwd":   "___etc_passwd",
	}
	for in, want := range tests {
		testutil.AssertEqual(t, sanitizeTarget(in), want, "sanitize "+in)
	}
}

func TestFileName(t *testing.T) {
	r := sampleReport()
	testutil.AssertEqual(t, FileName(r, "json", time.Time{}), "example_com_20240703_101112.json", "from report time")

	r.CompletedAt = time.Time{}
	fallback := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	testutil.AssertEqual(t, FileName(r, "txt", fallback), "example_com_20250102_030405.txt", "fallback time")
}

func TestReportStore_SaveAndLoad(t *testing.T) {
	store := NewReportStore(filepath.Join(t.TempDir(), "reports"), logx.NewNop())
	original := sampleReport()

	path, err := store.Save(original, FormatJSON)
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	testutil.AssertEqual(t, filepath.Base(path), "example_com_20240703_101112.json", "file name")

	loaded, err := store.Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	testutil.AssertTrue(t, loaded.Equal(original), "loaded report equals saved report")
}

func TestReportStore_SaveAllFormats(t *testing.T) {
	store := NewReportStore(t.TempDir(), logx.NewNop())
	r := sampleReport()

	for _, format := range SupportedFormats() {
		path, err := store.Save(r, format)
		testutil.AssertNoError(t, err, "save "+format)

		data, err := os.ReadFile(path)
		testutil.AssertNoError(t, err, "read "+format)
		testutil.AssertContains(t, string(data), "example.com", "content "+format)
	}

	txt := filepath.Join(store.Dir(), "example_com_20240703_101112.txt")
	data, _ := os.ReadFile(txt)
	testutil.AssertEqual(t, string(data), ToNarrative(r), "text file holds the narrative")

	_, err := store.Save(r, "xml")
	testutil.AssertErrorIs(t, err, domain.ErrUnsupportedFormat, "unsupported format")
}

func TestReportStore_SaveNeverOverwrites(t *testing.T) {
	store := NewReportStore(t.TempDir(), logx.NewNop())
	r := sampleReport()

	first, err := store.Save(r, FormatJSON)
	testutil.AssertNoError(t, err, "first save")
	second, err := store.Save(r, FormatJSON)
	testutil.AssertNoError(t, err, "second save")

	if first == second {
		t.Fatalf("second save reused path %s", first)
	}
	testutil.AssertTrue(t, strings.HasSuffix(second, "_2.json"), "numeric suffix on collision")
}

func TestReportStore_List(t *testing.T) {
	dir := t.TempDir()
	store := NewReportStore(dir, logx.NewNop())

	older, err := store.Save(sampleReport(), FormatJSON)
	testutil.AssertNoError(t, err, "save json")
	newer, err := store.Save(sampleReport(), FormatText)
	testutil.AssertNoError(t, err, "save text")

	past := time.Now().Add(-time.Hour)
	testutil.AssertNoError(t, os.Chtimes(older, past, past), "age first file")

	// Archivos ajenos y subdirectorios se ignoran
	testutil.AssertNoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0o644), "write other file")
	testutil.AssertNoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0o755), "mkdir")

	files, err := store.List()
	testutil.AssertNoError(t, err, "list")
	testutil.AssertEqual(t, len(files), 2, "only report files listed")
	testutil.AssertEqual(t, files[0].Path, newer, "newest first")
	testutil.AssertEqual(t, files[0].Format, FormatText, "format detected")
	testutil.AssertEqual(t, files[1].Path, older, "oldest last")
}

func TestReportStore_ListMissingDir(t *testing.T) {
	store := NewReportStore(filepath.Join(t.TempDir(), "absent"), logx.NewNop())

	files, err := store.List()
	testutil.AssertNoError(t, err, "missing dir is not an error")
	testutil.AssertEqual(t, len(files), 0, "empty list")
}

func TestReportStore_LoadErrors(t *testing.T) {
	dir := t.TempDir()
	store := NewReportStore(dir, logx.NewNop())

	yamlPath, err := store.Save(sampleReport(), FormatYAML)
	testutil.AssertNoError(t, err, "save yaml")
	_, err = store.Load(yamlPath)
	testutil.AssertErrorIs(t, err, domain.ErrUnsupportedFormat, "yaml is export-only")

	bad := filepath.Join(dir, "bad.json")
	testutil.AssertNoError(t, os.WriteFile(bad, []byte(`{"target": ""}`), 0o644), "write bad")
	_, err = store.Load(bad)
	testutil.AssertErrorIs(t, err, domain.ErrMalformedDocument, "malformed document")

	_, err = store.Load(filepath.Join(dir, "absent.json"))
	testutil.AssertError(t, err, "missing file")
}
