// Package models contains the data types shared across the client engine.
package models

import (
	"path/filepath"
	"strings"
	"time"
)

// Category is the semantic classification of a file, computed once when a
// listing is ingested.
type Category int

const (
	CategoryOther Category = iota
	CategoryDocument
	CategoryImage
	CategoryVideo
	CategoryAudio
)

// String returns the lowercase category name.
func (c Category) String() string {
	switch c {
	case CategoryDocument:
		return "document"
	case CategoryImage:
		return "image"
	case CategoryVideo:
		return "video"
	case CategoryAudio:
		return "audio"
	default:
		return "other"
	}
}

// FileEntry is a file as registered on the server.
//
// The wire format carries no explicit file/folder discriminant and no
// derivative flag; Classify computes those once at ingestion so nothing
// downstream re-infers them from the raw fields.
type FileEntry struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url,omitempty"`
	Type       string    `json:"type,omitempty"` // MIME type
	Size       int64     `json:"size,omitempty"`
	FolderID   string    `json:"folderId,omitempty"`
	Favourite  bool      `json:"favourite"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`

	// Computed at ingestion, never sent on the wire.
	Category   Category `json:"-"`
	Scanned    bool     `json:"-"` // name ends in .pdf
	Derivative bool     `json:"-"` // produced by the compression pipeline
}

// derivativeMarker is the naming convention the backend uses for files
// produced by the compression pipeline.
const derivativeMarker = "_compressed"

// Ext returns the lowercase extension of the file name, including the dot.
func (f *FileEntry) Ext() string {
	return strings.ToLower(filepath.Ext(f.Name))
}

// Classify populates the computed fields from the wire fields.
func (f *FileEntry) Classify() {
	f.Category = CategoryForExt(f.Ext())
	f.Scanned = strings.EqualFold(filepath.Ext(f.Name), ".pdf")
	f.Derivative = strings.Contains(f.Name, derivativeMarker)
}

// FolderShaped reports whether a raw entry looks like a folder: the backend
// returns folders with no url, no size, and no type, and that absence is the
// only discriminant on the wire.
func (f *FileEntry) FolderShaped() bool {
	return f.URL == "" && f.Size == 0 && f.Type == ""
}

// CategoryForExt maps a lowercase extension to a Category.
func CategoryForExt(ext string) Category {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp":
		return CategoryImage
	case ".pdf", ".doc", ".docx", ".txt":
		return CategoryDocument
	case ".mp4", ".avi", ".mov", ".mkv", ".webm":
		return CategoryVideo
	case ".mp3", ".wav", ".ogg":
		return CategoryAudio
	default:
		return CategoryOther
	}
}

// FolderEntry is a folder as returned by the server. Folders form a tree via
// ParentID; the client only ever holds the current folder's direct children.
type FolderEntry struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ParentID   string    `json:"parentId,omitempty"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// ItemKind discriminates Item.
type ItemKind int

const (
	KindFile ItemKind = iota
	KindFolder
)

// Item is the tagged union produced by the listing cache at ingestion.
// Exactly one of File/Folder is non-nil, matching Kind.
type Item struct {
	Kind   ItemKind
	File   *FileEntry
	Folder *FolderEntry
}

// FileItem wraps a FileEntry.
func FileItem(f *FileEntry) Item { return Item{Kind: KindFile, File: f} }

// FolderItem wraps a FolderEntry.
func FolderItem(f *FolderEntry) Item { return Item{Kind: KindFolder, Folder: f} }

// ID returns the id of the underlying entry.
func (i Item) ID() string {
	if i.Kind == KindFolder {
		return i.Folder.ID
	}
	return i.File.ID
}

// Name returns the name of the underlying entry.
func (i Item) Name() string {
	if i.Kind == KindFolder {
		return i.Folder.Name
	}
	return i.File.Name
}

// Crumb is one breadcrumb segment. The root is not represented as a Crumb;
// an empty path stack means the root folder.
type Crumb struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Asset is a local file picked for upload.
type Asset struct {
	URI      string // local path, optionally file:// prefixed
	MimeType string
	Name     string
	Size     int64
}

// Path returns the local filesystem path of the asset.
func (a Asset) Path() string {
	return strings.TrimPrefix(a.URI, "file://")
}
