package blob

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudnest/cloudnest-client/pkg/models"
)

func writeAsset(t *testing.T, name, content string) models.Asset {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return models.Asset{
		URI:      p,
		Name:     name,
		MimeType: "application/octet-stream",
		Size:     int64(len(content)),
	}
}

func TestHTTPFormUpload(t *testing.T) {
	var gotPath, gotPreset, gotResource, gotFilename string
	var gotBody []byte

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotPreset = r.FormValue("upload_preset")
		gotResource = r.FormValue("resource_type")

		f, fh, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		gotFilename = fh.Filename
		buf := make([]byte, fh.Size)
		f.Read(buf)
		gotBody = buf

		json.NewEncoder(w).Encode(map[string]any{
			"secure_url": "https://blobs/abc123",
			"bytes":      fh.Size,
		})
	}))
	defer ts.Close()

	u := NewHTTPForm(HTTPFormConfig{Endpoint: ts.URL, UploadPreset: "mobile-unsigned"})
	asset := writeAsset(t, "report.pdf", "pdf-bytes")

	var lastPct int
	res, err := u.Upload(context.Background(), asset, func(pct int) { lastPct = pct })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/raw/upload" {
		t.Errorf("path = %q", gotPath)
	}
	if gotPreset != "mobile-unsigned" {
		t.Errorf("upload_preset = %q", gotPreset)
	}
	if gotResource != "raw" {
		t.Errorf("resource_type = %q", gotResource)
	}
	if gotFilename != "report.pdf" {
		t.Errorf("filename = %q", gotFilename)
	}
	if string(gotBody) != "pdf-bytes" {
		t.Errorf("body = %q", gotBody)
	}
	if res.URL != "https://blobs/abc123" {
		t.Errorf("url = %q", res.URL)
	}
	if res.Bytes != int64(len("pdf-bytes")) {
		t.Errorf("bytes = %d", res.Bytes)
	}
	if lastPct != 100 {
		t.Errorf("final progress = %d, want 100", lastPct)
	}
}

func TestHTTPFormUpload_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "preset not allowed", http.StatusBadRequest)
	}))
	defer ts.Close()

	u := NewHTTPForm(HTTPFormConfig{Endpoint: ts.URL, UploadPreset: "bad"})
	asset := writeAsset(t, "a.bin", "x")

	if _, err := u.Upload(context.Background(), asset, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestHTTPFormUpload_MissingFile(t *testing.T) {
	u := NewHTTPForm(HTTPFormConfig{Endpoint: "http://unused", UploadPreset: "p"})
	asset := models.Asset{URI: "/nonexistent/file.bin", Name: "file.bin", Size: 1}

	if _, err := u.Upload(context.Background(), asset, nil); err == nil {
		t.Fatal("expected error for missing local file")
	}
}

func TestProgressReader(t *testing.T) {
	asset := writeAsset(t, "big.bin", "0123456789")
	f, err := os.Open(asset.Path())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var seen []int
	pr := newProgressReader(f, asset.Size, func(pct int) { seen = append(seen, pct) })
	buf := make([]byte, 5)
	pr.Read(buf)
	pr.Read(buf)

	if len(seen) != 2 || seen[0] != 50 || seen[1] != 100 {
		t.Errorf("progress = %v, want [50 100]", seen)
	}
}
