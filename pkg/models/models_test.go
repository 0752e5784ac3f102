package models

import (
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		category   Category
		scanned    bool
		derivative bool
	}{
		{"photo.jpg", CategoryImage, false, false},
		{"photo.JPG", CategoryImage, false, false},
		{"report.pdf", CategoryDocument, true, false},
		{"Report.PDF", CategoryDocument, true, false},
		{"clip.mp4", CategoryVideo, false, false},
		{"song.mp3", CategoryAudio, false, false},
		{"archive.7z", CategoryOther, false, false},
		{"photo_compressed.jpg", CategoryImage, false, true},
		{"scan_compressed.pdf", CategoryDocument, true, true},
		{"noextension", CategoryOther, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := FileEntry{Name: tt.name}
			f.Classify()
			if f.Category != tt.category {
				t.Errorf("Category = %v, want %v", f.Category, tt.category)
			}
			if f.Scanned != tt.scanned {
				t.Errorf("Scanned = %v, want %v", f.Scanned, tt.scanned)
			}
			if f.Derivative != tt.derivative {
				t.Errorf("Derivative = %v, want %v", f.Derivative, tt.derivative)
			}
		})
	}
}

func TestFolderShaped(t *testing.T) {
	folder := FileEntry{ID: "1", Name: "Documents"}
	if !folder.FolderShaped() {
		t.Error("entry without url/size/type should be folder shaped")
	}

	file := FileEntry{ID: "2", Name: "a.txt", URL: "https://blob/a", Type: "text/plain", Size: 3}
	if file.FolderShaped() {
		t.Error("entry with url/size/type should not be folder shaped")
	}

	// Any one populated field is enough to rule out a folder.
	partial := FileEntry{ID: "3", Name: "empty.bin", URL: "https://blob/e"}
	if partial.FolderShaped() {
		t.Error("entry with a url should not be folder shaped")
	}
}

func TestItemAccessors(t *testing.T) {
	f := &FileEntry{ID: "f1", Name: "a.txt"}
	d := &FolderEntry{ID: "d1", Name: "docs", ModifiedAt: time.Now()}

	fi := FileItem(f)
	if fi.Kind != KindFile || fi.ID() != "f1" || fi.Name() != "a.txt" {
		t.Errorf("FileItem accessors wrong: %+v", fi)
	}

	di := FolderItem(d)
	if di.Kind != KindFolder || di.ID() != "d1" || di.Name() != "docs" {
		t.Errorf("FolderItem accessors wrong: %+v", di)
	}
}

func TestAssetPath(t *testing.T) {
	a := Asset{URI: "file:///tmp/pic.jpg"}
	if a.Path() != "/tmp/pic.jpg" {
		t.Errorf("Path() = %q", a.Path())
	}
	b := Asset{URI: "/tmp/pic.jpg"}
	if b.Path() != "/tmp/pic.jpg" {
		t.Errorf("Path() = %q", b.Path())
	}
}
