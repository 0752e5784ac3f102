package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudnest/cloudnest-client/internal/notify"
	"github.com/cloudnest/cloudnest-client/pkg/api"
	"github.com/cloudnest/cloudnest-client/pkg/models"
)

type call struct {
	op   string
	id   string
	name string
}

type fakeBackend struct {
	calls []call
	err   error
}

func (b *fakeBackend) record(op, id, name string) error {
	b.calls = append(b.calls, call{op, id, name})
	return b.err
}

func (b *fakeBackend) ToggleFavourite(_ context.Context, id string) error {
	return b.record("favourite", id, "")
}
func (b *fakeBackend) RenameFile(_ context.Context, id, newName string) error {
	return b.record("renameFile", id, newName)
}
func (b *fakeBackend) RenameFolder(_ context.Context, id, name string) error {
	return b.record("renameFolder", id, name)
}
func (b *fakeBackend) DeleteFile(_ context.Context, id string) error {
	return b.record("deleteFile", id, "")
}
func (b *fakeBackend) DeleteFolder(_ context.Context, id string) error {
	return b.record("deleteFolder", id, "")
}

type fakePatcher struct {
	favourites []string
	names      []call
}

func (p *fakePatcher) PatchFavourite(id string) bool {
	p.favourites = append(p.favourites, id)
	return true
}

func (p *fakePatcher) PatchName(id, name string) bool {
	p.names = append(p.names, call{"patch", id, name})
	return true
}

type fakeRefresher struct{ calls []string }

func (r *fakeRefresher) Refresh(_ context.Context, folderID string) error {
	r.calls = append(r.calls, folderID)
	return nil
}

func fileItem(id, name string) models.Item {
	return models.FileItem(&models.FileEntry{ID: id, Name: name})
}

func folderItem(id, name string) models.Item {
	return models.FolderItem(&models.FolderEntry{ID: id, Name: name})
}

func setup() (*fakeBackend, *fakePatcher, *fakeRefresher, *Reconciler) {
	b := &fakeBackend{}
	p := &fakePatcher{}
	ref := &fakeRefresher{}
	return b, p, ref, New(b, p, ref, nil)
}

func TestToggleFavouritePatchesThenCallsThenRefreshes(t *testing.T) {
	b, p, ref, r := setup()

	require.NoError(t, r.ToggleFavourite(context.Background(), "1", "f1"))

	assert.Equal(t, []string{"1"}, p.favourites)
	require.Len(t, b.calls, 1)
	assert.Equal(t, "favourite", b.calls[0].op)
	assert.Equal(t, []string{"f1"}, ref.calls)
}

func TestToggleFavouriteRefreshesEvenOnFailure(t *testing.T) {
	b, p, ref, _ := setup()
	b.err = errors.New("server down")
	sink := notify.NewChannelSink(1)
	r := New(b, p, ref, sink)

	err := r.ToggleFavourite(context.Background(), "1", "f1")
	require.Error(t, err)

	// the refresh still runs so the snapshot snaps back to the server
	assert.Equal(t, []string{"f1"}, ref.calls)
	require.Len(t, sink.C, 1)
	assert.Equal(t, notify.LevelError, (<-sink.C).Level)
}

func TestRenameDispatchesOnItemKind(t *testing.T) {
	b, p, _, r := setup()

	require.NoError(t, r.Rename(context.Background(), fileItem("1", "a.txt"), "b.txt", ""))
	require.NoError(t, r.Rename(context.Background(), folderItem("d1", "Docs"), "Archive", ""))

	require.Len(t, b.calls, 2)
	assert.Equal(t, call{"renameFile", "1", "b.txt"}, b.calls[0])
	assert.Equal(t, call{"renameFolder", "d1", "Archive"}, b.calls[1])
	require.Len(t, p.names, 2)
	assert.Equal(t, "b.txt", p.names[0].name)
}

func TestRenameRejectsEmptyName(t *testing.T) {
	b, p, ref, r := setup()

	err := r.Rename(context.Background(), fileItem("1", "a.txt"), "   ", "f1")
	assert.True(t, api.IsValidation(err))

	// nothing happened: no patch, no call, no refresh
	assert.Empty(t, p.names)
	assert.Empty(t, b.calls)
	assert.Empty(t, ref.calls)
}

func TestDeleteDispatchesOnItemKind(t *testing.T) {
	b, _, ref, r := setup()

	require.NoError(t, r.Delete(context.Background(), fileItem("1", "a.txt"), "f1"))
	require.NoError(t, r.Delete(context.Background(), folderItem("d1", "Docs"), "f1"))

	require.Len(t, b.calls, 2)
	assert.Equal(t, "deleteFile", b.calls[0].op)
	assert.Equal(t, "deleteFolder", b.calls[1].op)
	assert.Equal(t, []string{"f1", "f1"}, ref.calls)
}
