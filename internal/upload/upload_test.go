package upload

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudnest/cloudnest-client/internal/notify"
	"github.com/cloudnest/cloudnest-client/pkg/api"
	"github.com/cloudnest/cloudnest-client/pkg/blob"
	"github.com/cloudnest/cloudnest-client/pkg/models"
)

type fakeUploader struct {
	mu      sync.Mutex
	fail    map[string]error
	uploads []string
	active  int32
	peak    int32
}

func (u *fakeUploader) Upload(_ context.Context, asset models.Asset, progress blob.Progress) (*blob.Result, error) {
	n := atomic.AddInt32(&u.active, 1)
	defer atomic.AddInt32(&u.active, -1)
	for {
		p := atomic.LoadInt32(&u.peak)
		if n <= p || atomic.CompareAndSwapInt32(&u.peak, p, n) {
			break
		}
	}

	u.mu.Lock()
	u.uploads = append(u.uploads, asset.Name)
	err := u.fail[asset.Name]
	u.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if progress != nil {
		progress(50)
		progress(100)
	}
	return &blob.Result{URL: "https://blob/" + asset.Name, Bytes: asset.Size}, nil
}

func (u *fakeUploader) Type() string { return "fake" }
func (u *fakeUploader) Close() error { return nil }

type fakeRegistrar struct {
	mu    sync.Mutex
	fail  map[string]error
	regs  []api.RegisterRequest
	nextN int
}

func (r *fakeRegistrar) RegisterFile(_ context.Context, reg api.RegisterRequest) (models.FileEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail[reg.Name]; err != nil {
		return models.FileEntry{}, err
	}
	r.regs = append(r.regs, reg)
	r.nextN++
	return models.FileEntry{ID: reg.Name, Name: reg.Name, URL: reg.URL, Type: reg.Type, Size: reg.Size}, nil
}

type fakeRefresher struct {
	mu      sync.Mutex
	folders []string
}

func (r *fakeRefresher) Refresh(_ context.Context, folderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.folders = append(r.folders, folderID)
	return nil
}

type failScanner struct{ err error }

func (s failScanner) Scan(context.Context, models.Asset) error { return s.err }

func asset(name string, size int64) models.Asset {
	return models.Asset{URI: "file:///tmp/" + name, Name: name, MimeType: "application/octet-stream", Size: size}
}

func TestUploadBatchRegistersEachBlob(t *testing.T) {
	up := &fakeUploader{}
	reg := &fakeRegistrar{}
	ref := &fakeRefresher{}
	o := New(Config{Uploader: up, Registrar: reg, Refresher: ref, Workers: 2})

	results, err := o.UploadBatch(context.Background(), []models.Asset{
		asset("report.pdf", 100),
		asset("photo.jpg", 200),
	}, "f1", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "report.pdf", results[0].Entry.Name)
	assert.Equal(t, "photo.jpg", results[1].Entry.Name)

	require.Len(t, reg.regs, 2)
	for _, r := range reg.regs {
		assert.Equal(t, "f1", r.FolderID)
		assert.Contains(t, r.URL, "https://blob/")
	}
	assert.Len(t, ref.folders, 2)
}

func TestUploadBatchResultsKeepInputOrder(t *testing.T) {
	up := &fakeUploader{}
	o := New(Config{Uploader: up, Registrar: &fakeRegistrar{}, Workers: 4})

	assets := []models.Asset{asset("a", 1), asset("b", 1), asset("c", 1), asset("d", 1)}
	results, err := o.UploadBatch(context.Background(), assets, "", nil)
	require.NoError(t, err)
	for i, r := range results {
		assert.Equal(t, assets[i].Name, r.Asset.Name)
	}
}

func TestUploadBatchHonorsWorkerLimit(t *testing.T) {
	up := &fakeUploader{}
	o := New(Config{Uploader: up, Registrar: &fakeRegistrar{}, Workers: 2})

	assets := make([]models.Asset, 8)
	for i := range assets {
		assets[i] = asset(string(rune('a'+i)), 1)
	}
	_, err := o.UploadBatch(context.Background(), assets, "", nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, up.peak, int32(2))
}

func TestSingleWorkerProcessesInInputOrder(t *testing.T) {
	up := &fakeUploader{}
	o := New(Config{Uploader: up, Registrar: &fakeRegistrar{}, Workers: 1})

	assets := []models.Asset{asset("first", 1), asset("second", 1), asset("third", 1), asset("fourth", 1)}
	_, err := o.UploadBatch(context.Background(), assets, "", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second", "third", "fourth"}, up.uploads)
	assert.Equal(t, int32(1), up.peak)
}

func TestBlobFailureReportedPerJob(t *testing.T) {
	up := &fakeUploader{fail: map[string]error{"bad": errors.New("store down")}}
	reg := &fakeRegistrar{}
	o := New(Config{Uploader: up, Registrar: reg, Workers: 1})

	results, err := o.UploadBatch(context.Background(), []models.Asset{
		asset("good", 1), asset("bad", 1),
	}, "", nil)

	var pb *api.PartialBatchError
	require.ErrorAs(t, err, &pb)
	assert.Equal(t, 2, pb.Total)
	assert.Equal(t, 1, pb.Failed)

	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.Nil(t, results[1].Entry)
	// the failed job never reached registration
	require.Len(t, reg.regs, 1)
	assert.Equal(t, "good", reg.regs[0].Name)
}

func TestRegisterFailureLeavesBlobOrphaned(t *testing.T) {
	up := &fakeUploader{}
	reg := &fakeRegistrar{fail: map[string]error{"doc": errors.New("register down")}}
	ref := &fakeRefresher{}
	o := New(Config{Uploader: up, Registrar: reg, Refresher: ref, Workers: 1})

	results, err := o.UploadBatch(context.Background(), []models.Asset{asset("doc", 1)}, "", nil)
	require.Error(t, err)
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)

	// the blob was uploaded and stays; no refresh fires for a failed job
	assert.Equal(t, []string{"doc"}, up.uploads)
	assert.Empty(t, ref.folders)
}

func TestScannerBlocksUpload(t *testing.T) {
	up := &fakeUploader{}
	o := New(Config{
		Uploader:  up,
		Registrar: &fakeRegistrar{},
		Scanner:   failScanner{err: &InfectedError{Name: "doc", Description: "Eicar-Test-Signature"}},
		Workers:   1,
	})

	results, err := o.UploadBatch(context.Background(), []models.Asset{asset("doc", 1)}, "", nil)
	require.Error(t, err)
	var inf *InfectedError
	assert.ErrorAs(t, results[0].Err, &inf)
	assert.Empty(t, up.uploads)
}

func TestProgressWalksPhases(t *testing.T) {
	up := &fakeUploader{}
	o := New(Config{Uploader: up, Registrar: &fakeRegistrar{}, Workers: 1})

	var phases []Phase
	_, err := o.UploadBatch(context.Background(), []models.Asset{asset("doc", 10)}, "", func(s Status) {
		phases = append(phases, s.Phase)
	})
	require.NoError(t, err)

	require.NotEmpty(t, phases)
	assert.Equal(t, PhaseBlobUpload, phases[0])
	assert.Equal(t, PhaseDone, phases[len(phases)-1])
	assert.Contains(t, phases, PhaseRegistering)
}

func TestNamelessAssetFailsValidation(t *testing.T) {
	o := New(Config{Uploader: &fakeUploader{}, Registrar: &fakeRegistrar{}, Workers: 1})

	results, err := o.UploadBatch(context.Background(), []models.Asset{{URI: "file:///tmp/x"}}, "", nil)
	require.Error(t, err)
	assert.True(t, api.IsValidation(results[0].Err))
}

func TestBatchEventsReachSink(t *testing.T) {
	sink := notify.NewChannelSink(4)
	o := New(Config{Uploader: &fakeUploader{}, Registrar: &fakeRegistrar{}, Sink: sink, Workers: 1})

	_, err := o.UploadBatch(context.Background(), []models.Asset{asset("doc", 1)}, "", nil)
	require.NoError(t, err)
	require.Len(t, sink.C, 1)
	ev := <-sink.C
	assert.Equal(t, notify.LevelInfo, ev.Level)
	assert.Contains(t, ev.Message, "doc")
}
