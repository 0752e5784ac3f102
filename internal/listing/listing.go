// Package listing holds the in-memory snapshot of the current folder's
// contents and derives every filtered view from it.
package listing

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/cloudnest/cloudnest-client/internal/logging"
	"github.com/cloudnest/cloudnest-client/internal/metrics"
	"github.com/cloudnest/cloudnest-client/pkg/models"
)

// Backend is the slice of the REST client the cache reads from.
type Backend interface {
	ListFiles(ctx context.Context, folderID string) ([]models.FileEntry, error)
	ListFolders(ctx context.Context, parentID string) ([]models.FolderEntry, error)
	Search(ctx context.Context, query string) ([]models.FileEntry, error)
}

// CategoryFilter selects which view of the snapshot to render.
type CategoryFilter string

const (
	FilterAll        CategoryFilter = "all"
	FilterFavourites CategoryFilter = "favourites"
	FilterFolders    CategoryFilter = "folders"
	FilterScanned    CategoryFilter = "scanned"
	FilterCompressed CategoryFilter = "compressed"
)

// SortOrder selects how file views are ordered.
type SortOrder string

const (
	SortByType SortOrder = "type"
	SortByDate SortOrder = "date"
	SortBySize SortOrder = "size"
)

// Cache is the listing snapshot for one folder. Safe for concurrent use.
type Cache struct {
	backend Backend

	mu       sync.RWMutex
	folderID string
	files    []models.FileEntry // regular files, scanned excluded
	scanned  []models.FileEntry // .pdf files
	folders  []models.FolderEntry
}

// New creates an empty cache reading from backend.
func New(backend Backend) *Cache {
	return &Cache{backend: backend}
}

// Refresh replaces the snapshot with the server's view of folderID. The
// file and folder listings are fetched concurrently; a failed fetch
// leaves that side of the snapshot empty rather than stale.
func (c *Cache) Refresh(ctx context.Context, folderID string) error {
	var (
		wg      sync.WaitGroup
		files   []models.FileEntry
		folders []models.FolderEntry
		fileErr error
		dirErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		files, fileErr = c.backend.ListFiles(ctx, folderID)
	}()
	go func() {
		defer wg.Done()
		folders, dirErr = c.backend.ListFolders(ctx, folderID)
	}()
	wg.Wait()

	if fileErr != nil {
		logging.Warn("file listing failed", zap.String("folder_id", folderID), zap.Error(fileErr))
		files = nil
	}
	if dirErr != nil {
		logging.Warn("folder listing failed", zap.String("folder_id", folderID), zap.Error(dirErr))
		folders = nil
	}

	regular, scanned := ingest(files)

	c.mu.Lock()
	c.folderID = folderID
	c.files = regular
	c.scanned = scanned
	c.folders = folders
	c.mu.Unlock()

	ok := fileErr == nil && dirErr == nil
	metrics.RecordListingRefresh(ok)
	if fileErr != nil {
		return fileErr
	}
	return dirErr
}

// ingest classifies raw entries once and partitions them into regular
// and scanned files. Entries that are folder shaped slipped through a
// legacy files endpoint and are dropped.
func ingest(raw []models.FileEntry) (regular, scanned []models.FileEntry) {
	for i := range raw {
		f := raw[i]
		if f.FolderShaped() {
			continue
		}
		f.Classify()
		if f.Scanned {
			scanned = append(scanned, f)
		} else {
			regular = append(regular, f)
		}
	}
	return regular, scanned
}

// FolderID returns the folder the snapshot was taken for.
func (c *Cache) FolderID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.folderID
}

// Folders returns the folder entries of the snapshot.
func (c *Cache) Folders() []models.FolderEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.FolderEntry, len(c.folders))
	copy(out, c.folders)
	return out
}

// Scanned returns the scanned documents of the snapshot.
func (c *Cache) Scanned() []models.FileEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyFiles(c.scanned)
}

// Files returns the regular files of the snapshot.
func (c *Cache) Files() []models.FileEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyFiles(c.files)
}

// View renders the snapshot through a category filter and sort order.
// The folders filter yields folder items only; every other filter
// yields file items.
func (c *Cache) View(filter CategoryFilter, order SortOrder) []models.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if filter == FilterFolders {
		items := make([]models.Item, 0, len(c.folders))
		for i := range c.folders {
			f := c.folders[i]
			items = append(items, models.FolderItem(&f))
		}
		return items
	}

	var files []models.FileEntry
	switch filter {
	case FilterScanned:
		files = copyFiles(c.scanned)
	case FilterFavourites:
		for _, f := range c.files {
			if f.Favourite {
				files = append(files, f)
			}
		}
		for _, f := range c.scanned {
			if f.Favourite {
				files = append(files, f)
			}
		}
	case FilterCompressed:
		// derivatives can live in either partition: a compressed pdf is
		// both scanned and compressed
		for _, f := range c.files {
			if f.Derivative {
				files = append(files, f)
			}
		}
		for _, f := range c.scanned {
			if f.Derivative {
				files = append(files, f)
			}
		}
	default: // FilterAll is the union of both partitions
		files = append(copyFiles(c.files), c.scanned...)
	}

	Sort(files, order)

	items := make([]models.Item, 0, len(files))
	for i := range files {
		f := files[i]
		items = append(items, models.FileItem(&f))
	}
	return items
}

// Sort orders files in place by the given order. Sorts are stable so
// entries the key cannot distinguish keep their server order; missing
// dates and sizes sort as zero. Search results go through the same
// orders as the snapshot views.
func Sort(files []models.FileEntry, order SortOrder) {
	switch order {
	case SortByDate:
		sort.SliceStable(files, func(i, j int) bool {
			return files[i].ModifiedAt.After(files[j].ModifiedAt)
		})
	case SortBySize:
		sort.SliceStable(files, func(i, j int) bool {
			return files[i].Size > files[j].Size
		})
	case SortByType:
		// type means extension, not mime type
		sort.SliceStable(files, func(i, j int) bool {
			ei, ej := files[i].Ext(), files[j].Ext()
			if ei != ej {
				return ei < ej
			}
			return strings.ToLower(files[i].Name) < strings.ToLower(files[j].Name)
		})
	}
}

// Search queries the server directly, bypassing the snapshot. Results
// are classified like a listing but never stored. An empty query clears
// search mode and never reaches the server.
func (c *Cache) Search(ctx context.Context, query string) ([]models.FileEntry, error) {
	if query == "" {
		return nil, nil
	}
	raw, err := c.backend.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]models.FileEntry, 0, len(raw))
	for i := range raw {
		f := raw[i]
		if f.FolderShaped() {
			continue
		}
		f.Classify()
		out = append(out, f)
	}
	return out, nil
}

// PatchFavourite flips the favourite flag of id in the snapshot. It
// reports whether the entry was present.
func (c *Cache) PatchFavourite(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return patch(c.files, id, func(f *models.FileEntry) { f.Favourite = !f.Favourite }) ||
		patch(c.scanned, id, func(f *models.FileEntry) { f.Favourite = !f.Favourite })
}

// PatchName renames id in the snapshot, recomputing the classification
// since the category and scanned flags derive from the name.
func (c *Cache) PatchName(id, name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	apply := func(f *models.FileEntry) {
		f.Name = name
		f.Classify()
	}
	if patch(c.files, id, apply) || patch(c.scanned, id, apply) {
		return true
	}
	for i := range c.folders {
		if c.folders[i].ID == id {
			c.folders[i].Name = name
			return true
		}
	}
	return false
}

func patch(files []models.FileEntry, id string, apply func(*models.FileEntry)) bool {
	for i := range files {
		if files[i].ID == id {
			apply(&files[i])
			return true
		}
	}
	return false
}

func copyFiles(in []models.FileEntry) []models.FileEntry {
	out := make([]models.FileEntry, len(in))
	copy(out, in)
	return out
}
