// Package upload runs the two-phase upload pipeline: stream the blob to
// the store, then register its URL with the metadata backend.
package upload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cloudnest/cloudnest-client/internal/logging"
	"github.com/cloudnest/cloudnest-client/internal/metrics"
	"github.com/cloudnest/cloudnest-client/internal/notify"
	"github.com/cloudnest/cloudnest-client/pkg/api"
	"github.com/cloudnest/cloudnest-client/pkg/blob"
	"github.com/cloudnest/cloudnest-client/pkg/models"
)

// Phase is the lifecycle stage of one upload job.
type Phase int

const (
	PhasePicking Phase = iota
	PhaseBlobUpload
	PhaseRegistering
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePicking:
		return "picking"
	case PhaseBlobUpload:
		return "blob_upload"
	case PhaseRegistering:
		return "registering"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is a point-in-time snapshot of one job, delivered to the
// progress callback.
type Status struct {
	Asset   models.Asset
	Phase   Phase
	Percent int // blob transfer progress, 0-100
	Err     error
}

// ProgressFunc observes job status changes. Called from worker
// goroutines; implementations must be safe for concurrent use.
type ProgressFunc func(Status)

// Registrar is the slice of the REST client that records uploaded blobs.
type Registrar interface {
	RegisterFile(ctx context.Context, reg api.RegisterRequest) (models.FileEntry, error)
}

// Refresher is invoked after each successful registration so the listing
// shows the new file without waiting for a manual reload.
type Refresher interface {
	Refresh(ctx context.Context, folderID string) error
}

// Scanner checks an asset before it leaves the device. A nil Scanner
// skips scanning.
type Scanner interface {
	Scan(ctx context.Context, asset models.Asset) error
}

// Orchestrator drives upload batches. Safe for concurrent use.
type Orchestrator struct {
	uploader  blob.Uploader
	registrar Registrar
	refresher Refresher
	scanner   Scanner
	sink      notify.Sink
	workers   int
}

// Config wires an Orchestrator.
type Config struct {
	Uploader  blob.Uploader
	Registrar Registrar
	Refresher Refresher
	Scanner   Scanner // optional
	Sink      notify.Sink
	Workers   int // concurrent jobs per batch, min 1
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Orchestrator{
		uploader:  cfg.Uploader,
		registrar: cfg.Registrar,
		refresher: cfg.Refresher,
		scanner:   cfg.Scanner,
		sink:      cfg.Sink,
		workers:   cfg.Workers,
	}
}

// Result is the outcome of one job in a batch, in input order.
type Result struct {
	Asset models.Asset
	Entry *models.FileEntry // set when the job registered
	Err   error
}

// UploadBatch uploads every asset into folderID. Jobs run concurrently
// up to the worker limit; each registered file triggers its own listing
// refresh. Results come back in input order. The returned error is a
// PartialBatchError when some jobs failed, nil when all succeeded.
func (o *Orchestrator) UploadBatch(ctx context.Context, assets []models.Asset, folderID string, progress ProgressFunc) ([]Result, error) {
	if len(assets) == 0 {
		return nil, nil
	}

	results := make([]Result, len(assets))
	sem := make(chan struct{}, o.workers)
	var wg sync.WaitGroup

	// acquire before spawning so dispatch follows input order; with one
	// worker this is strictly sequential processing
	for i := range assets {
		sem <- struct{}{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = o.uploadOne(ctx, assets[i], folderID, progress)
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return results, &api.PartialBatchError{Total: len(assets), Failed: failed}
	}
	return results, nil
}

// uploadOne runs the full pipeline for a single asset. A registration
// failure after a successful blob upload leaves the blob orphaned; the
// store has no delete API for unregistered blobs, so the failure is
// surfaced and the blob forgotten.
func (o *Orchestrator) uploadOne(ctx context.Context, asset models.Asset, folderID string, progress ProgressFunc) Result {
	start := time.Now()
	report := func(s Status) {
		if progress != nil {
			progress(s)
		}
	}
	fail := func(err error) Result {
		report(Status{Asset: asset, Phase: PhaseFailed, Err: err})
		o.notify(notify.LevelError, fmt.Sprintf("upload of %s failed: %v", asset.Name, err))
		metrics.RecordUpload(false, 0, time.Since(start))
		return Result{Asset: asset, Err: err}
	}

	if asset.Name == "" {
		return fail(&api.ValidationError{Field: "name", Reason: "asset has no name"})
	}

	if o.scanner != nil {
		if err := o.scanner.Scan(ctx, asset); err != nil {
			return fail(fmt.Errorf("scan %s: %w", asset.Name, err))
		}
	}

	report(Status{Asset: asset, Phase: PhaseBlobUpload})
	blobRes, err := o.uploader.Upload(ctx, asset, func(pct int) {
		report(Status{Asset: asset, Phase: PhaseBlobUpload, Percent: pct})
	})
	if err != nil {
		return fail(fmt.Errorf("blob upload %s: %w", asset.Name, err))
	}

	report(Status{Asset: asset, Phase: PhaseRegistering, Percent: 100})
	entry, err := o.registrar.RegisterFile(ctx, api.RegisterRequest{
		Name:     asset.Name,
		URL:      blobRes.URL,
		Type:     asset.MimeType,
		Size:     blobRes.Bytes,
		FolderID: folderID,
	})
	if err != nil {
		logging.Warn("registration failed, blob orphaned",
			zap.String("name", asset.Name), zap.String("url", blobRes.URL), zap.Error(err))
		return fail(fmt.Errorf("register %s: %w", asset.Name, err))
	}
	entry.Classify()

	if o.refresher != nil {
		if err := o.refresher.Refresh(ctx, folderID); err != nil {
			logging.Warn("post-upload refresh failed", zap.Error(err))
		}
	}

	report(Status{Asset: asset, Phase: PhaseDone, Percent: 100})
	o.notify(notify.LevelInfo, fmt.Sprintf("uploaded %s", asset.Name))
	metrics.RecordUpload(true, blobRes.Bytes, time.Since(start))
	logging.Info("upload complete",
		zap.String("name", asset.Name),
		zap.String("file_id", entry.ID),
		zap.Int64("bytes", blobRes.Bytes),
		zap.Duration("elapsed", time.Since(start)))
	return Result{Asset: asset, Entry: &entry}
}

func (o *Orchestrator) notify(level notify.Level, msg string) {
	if o.sink != nil {
		o.sink.Notify(notify.NewEvent(level, msg))
	}
}
