// Package nav tracks the current position in the folder tree.
//
// The root folder has the empty id and is never pushed as a breadcrumb;
// the crumb stack holds the path from the first folder below root down to
// the current folder. The current folder id is always the id of the last
// crumb, or "" at root.
package nav

import (
	"sync"

	"go.uber.org/zap"

	"github.com/cloudnest/cloudnest-client/internal/logging"
	"github.com/cloudnest/cloudnest-client/pkg/models"
)

// Navigator holds the breadcrumb stack. Safe for concurrent use.
type Navigator struct {
	mu     sync.Mutex
	crumbs []models.Crumb

	// onChange fires after every successful position change so the owner
	// can refresh the listing for the new folder.
	onChange func(folderID string)
}

// New creates a Navigator positioned at the root. onChange may be nil.
func New(onChange func(folderID string)) *Navigator {
	return &Navigator{onChange: onChange}
}

// CurrentFolderID returns the id of the current folder, "" for root.
func (n *Navigator) CurrentFolderID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.currentLocked()
}

func (n *Navigator) currentLocked() string {
	if len(n.crumbs) == 0 {
		return ""
	}
	return n.crumbs[len(n.crumbs)-1].ID
}

// Path returns a copy of the breadcrumb stack, root first.
func (n *Navigator) Path() []models.Crumb {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.Crumb, len(n.crumbs))
	copy(out, n.crumbs)
	return out
}

// Depth returns the number of crumbs below root.
func (n *Navigator) Depth() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.crumbs)
}

// Open descends into a child folder of the current one.
func (n *Navigator) Open(folder models.FolderEntry) {
	n.mu.Lock()
	n.crumbs = append(n.crumbs, models.Crumb{ID: folder.ID, Name: folder.Name})
	id := n.currentLocked()
	n.mu.Unlock()

	logging.Debug("opened folder", zap.String("folder_id", id), zap.String("name", folder.Name))
	n.changed(id)
}

// GoTo truncates the stack to depth index, so GoTo(0) returns to the
// root and GoTo(Depth()) stays put. Out-of-range indexes are ignored.
func (n *Navigator) GoTo(index int) {
	n.mu.Lock()
	if index < 0 || index > len(n.crumbs) {
		n.mu.Unlock()
		return
	}
	n.crumbs = n.crumbs[:index]
	id := n.currentLocked()
	n.mu.Unlock()

	n.changed(id)
}

// Up moves to the parent folder. At root it is a no-op.
func (n *Navigator) Up() {
	n.mu.Lock()
	if len(n.crumbs) == 0 {
		n.mu.Unlock()
		return
	}
	n.crumbs = n.crumbs[:len(n.crumbs)-1]
	id := n.currentLocked()
	n.mu.Unlock()

	n.changed(id)
}

// Reset returns to the root without firing onChange. Used after login.
func (n *Navigator) Reset() {
	n.mu.Lock()
	n.crumbs = nil
	n.mu.Unlock()
}

func (n *Navigator) changed(folderID string) {
	if n.onChange != nil {
		n.onChange(folderID)
	}
}
