// Package localcache stores downloaded file content on the device.
//
// The cache is size-bounded: when an insert would exceed the limit, the
// least recently used unpinned entries are evicted first. Writes are atomic
// (temp file then rename) so a crashed download never leaves a half-written
// entry behind.
package localcache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Entry describes one cached file.
type Entry struct {
	FileID     string
	LocalPath  string
	Size       int64
	LastAccess time.Time
	Pinned     bool
}

// Cache manages locally cached file content keyed by file id.
type Cache struct {
	dir     string
	maxSize int64

	mu      sync.RWMutex
	entries map[string]*Entry
	size    int64
}

// New creates a cache rooted at dir, indexing any content already there.
func New(dir string, maxSize int64) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	c := &Cache{
		dir:     dir,
		maxSize: maxSize,
		entries: make(map[string]*Entry),
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan cache dir: %w", err)
	}
	for _, de := range dirEntries {
		if de.IsDir() || strings.HasSuffix(de.Name(), ".tmp") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		c.entries[de.Name()] = &Entry{
			FileID:     de.Name(),
			LocalPath:  filepath.Join(dir, de.Name()),
			Size:       info.Size(),
			LastAccess: info.ModTime(),
		}
		c.size += info.Size()
	}

	return c, nil
}

// Get returns the local path if the file is cached, refreshing its
// last-access time.
func (c *Cache) Get(fileID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[safeKey(fileID)]
	if !ok {
		return "", false
	}
	entry.LastAccess = time.Now()
	return entry.LocalPath, true
}

// Has reports whether fileID is cached without touching last-access.
func (c *Cache) Has(fileID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[safeKey(fileID)]
	return ok
}

// Put stores content for fileID and returns its local path.
func (c *Cache) Put(fileID string, r io.Reader, size int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.maxSize > 0 && c.size+size > c.maxSize {
		if !c.evictOldest() {
			break
		}
	}

	key := safeKey(fileID)
	localPath := filepath.Join(c.dir, key)
	tempPath := localPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	written, err := io.Copy(f, r)
	f.Close()
	if err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("write content: %w", err)
	}

	if err := os.Rename(tempPath, localPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("rename temp file: %w", err)
	}

	if old, ok := c.entries[key]; ok {
		c.size -= old.Size
	}
	c.entries[key] = &Entry{
		FileID:     fileID,
		LocalPath:  localPath,
		Size:       written,
		LastAccess: time.Now(),
	}
	c.size += written

	return localPath, nil
}

// Evict removes a file from the cache. Evicting a pinned file is an error.
func (c *Cache) Evict(fileID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := safeKey(fileID)
	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	if entry.Pinned {
		return fmt.Errorf("cannot evict pinned file: %s", fileID)
	}

	os.Remove(entry.LocalPath)
	c.size -= entry.Size
	delete(c.entries, key)
	return nil
}

// Pin marks a file to never be evicted.
func (c *Cache) Pin(fileID string) error {
	return c.setPinned(fileID, true)
}

// Unpin allows a file to be evicted again.
func (c *Cache) Unpin(fileID string) error {
	return c.setPinned(fileID, false)
}

func (c *Cache) setPinned(fileID string, pinned bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[safeKey(fileID)]
	if !ok {
		return fmt.Errorf("file not cached: %s", fileID)
	}
	entry.Pinned = pinned
	return nil
}

// evictOldest removes the least recently used unpinned entry.
// Must be called with the lock held.
func (c *Cache) evictOldest() bool {
	var oldest *Entry
	var oldestKey string

	for key, entry := range c.entries {
		if entry.Pinned {
			continue
		}
		if oldest == nil || entry.LastAccess.Before(oldest.LastAccess) {
			oldest = entry
			oldestKey = key
		}
	}
	if oldest == nil {
		return false
	}

	os.Remove(oldest.LocalPath)
	c.size -= oldest.Size
	delete(c.entries, oldestKey)
	return true
}

// Stats returns current size, the size limit, and the entry count.
func (c *Cache) Stats() (size, maxSize int64, count int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size, c.maxSize, len(c.entries)
}

// Clear removes all unpinned entries and returns how many were removed.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, entry := range c.entries {
		if entry.Pinned {
			continue
		}
		os.Remove(entry.LocalPath)
		c.size -= entry.Size
		delete(c.entries, key)
		count++
	}
	return count
}

// safeKey flattens a file id into a filename.
func safeKey(fileID string) string {
	return strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(fileID)
}
