// Package reconcile applies optimistic single-item mutations and squares
// the local snapshot with the server afterwards.
//
// Every mutation follows the same shape: patch the snapshot so the UI
// responds immediately, call the backend, then refresh the listing
// unconditionally. The refresh is what actually reconciles; a failed
// backend call is reported but never rolled back by hand.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cloudnest/cloudnest-client/internal/logging"
	"github.com/cloudnest/cloudnest-client/internal/metrics"
	"github.com/cloudnest/cloudnest-client/internal/notify"
	"github.com/cloudnest/cloudnest-client/pkg/api"
	"github.com/cloudnest/cloudnest-client/pkg/models"
)

// Backend is the slice of the REST client mutations go through.
type Backend interface {
	ToggleFavourite(ctx context.Context, id string) error
	RenameFile(ctx context.Context, id, newName string) error
	RenameFolder(ctx context.Context, id, name string) error
	DeleteFile(ctx context.Context, id string) error
	DeleteFolder(ctx context.Context, id string) error
}

// Patcher applies optimistic edits to the listing snapshot.
type Patcher interface {
	PatchFavourite(id string) bool
	PatchName(id, name string) bool
}

// Refresher reloads the listing for the current folder.
type Refresher interface {
	Refresh(ctx context.Context, folderID string) error
}

// Reconciler runs the patch, call, refresh sequence.
type Reconciler struct {
	backend   Backend
	patcher   Patcher
	refresher Refresher
	sink      notify.Sink
}

// New creates a Reconciler. Sink may be nil.
func New(backend Backend, patcher Patcher, refresher Refresher, sink notify.Sink) *Reconciler {
	return &Reconciler{backend: backend, patcher: patcher, refresher: refresher, sink: sink}
}

// ToggleFavourite flips the favourite flag of a file. The backend call
// failure is surfaced after the refresh restores the server's state.
func (r *Reconciler) ToggleFavourite(ctx context.Context, id, folderID string) error {
	r.patcher.PatchFavourite(id)

	err := r.backend.ToggleFavourite(ctx, id)
	metrics.RecordMutation("favourite", err == nil)
	if err != nil {
		logging.Warn("favourite toggle failed", zap.String("file_id", id), zap.Error(err))
		r.notify(notify.LevelError, "could not update favourite")
	}
	r.refresh(ctx, folderID)
	return err
}

// Rename renames a file or folder depending on the item's kind.
func (r *Reconciler) Rename(ctx context.Context, item models.Item, newName, folderID string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return &api.ValidationError{Field: "name", Reason: "name must not be empty"}
	}

	r.patcher.PatchName(item.ID(), newName)

	var err error
	switch item.Kind {
	case models.KindFolder:
		err = r.backend.RenameFolder(ctx, item.ID(), newName)
	default:
		err = r.backend.RenameFile(ctx, item.ID(), newName)
	}
	metrics.RecordMutation("rename", err == nil)
	if err != nil {
		logging.Warn("rename failed", zap.String("id", item.ID()), zap.String("name", newName), zap.Error(err))
		r.notify(notify.LevelError, fmt.Sprintf("could not rename %s", item.Name()))
	}
	r.refresh(ctx, folderID)
	return err
}

// Delete removes a file or folder. There is no optimistic removal; the
// entry disappears when the refresh lands.
func (r *Reconciler) Delete(ctx context.Context, item models.Item, folderID string) error {
	var err error
	switch item.Kind {
	case models.KindFolder:
		err = r.backend.DeleteFolder(ctx, item.ID())
	default:
		err = r.backend.DeleteFile(ctx, item.ID())
	}
	metrics.RecordMutation("delete", err == nil)
	if err != nil {
		logging.Warn("delete failed", zap.String("id", item.ID()), zap.Error(err))
		r.notify(notify.LevelError, fmt.Sprintf("could not delete %s", item.Name()))
	}
	r.refresh(ctx, folderID)
	return err
}

func (r *Reconciler) refresh(ctx context.Context, folderID string) {
	if r.refresher == nil {
		return
	}
	if err := r.refresher.Refresh(ctx, folderID); err != nil {
		logging.Warn("post-mutation refresh failed", zap.String("folder_id", folderID), zap.Error(err))
	}
}

func (r *Reconciler) notify(level notify.Level, msg string) {
	if r.sink != nil {
		r.sink.Notify(notify.NewEvent(level, msg))
	}
}
