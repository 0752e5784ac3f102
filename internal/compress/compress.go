// Package compress drives server-side compression batches: compress each
// selected file, delete the original on success, then refresh the listing
// once for the whole batch.
package compress

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloudnest/cloudnest-client/internal/logging"
	"github.com/cloudnest/cloudnest-client/internal/metrics"
	"github.com/cloudnest/cloudnest-client/internal/notify"
	"github.com/cloudnest/cloudnest-client/pkg/api"
	"github.com/cloudnest/cloudnest-client/pkg/models"
)

// Kind is the compression mode derived from the selection.
type Kind string

const (
	KindImage   Kind = "image"
	KindVideo   Kind = "video"
	KindArchive Kind = "archive"
)

// Quality presets for image compression.
const (
	QualityLow    = 0.3
	QualityMedium = 0.6
	QualityHigh   = 0.9
)

// defaultVideoBitrate is the kbps target sent for video compression.
const defaultVideoBitrate = 1000

// Formats available per kind.
var formats = map[Kind][]string{
	KindImage:   {"jpeg", "png", "webp"},
	KindVideo:   {"mp4", "webm"},
	KindArchive: {"zip", "rar", "7z"},
}

// Settings is a validated compression request for one batch.
type Settings struct {
	Kind    Kind
	Quality float64 // images only
	Bitrate int     // videos only
	Format  string
}

// ImageSettings builds image settings with one of the quality presets.
func ImageSettings(quality float64, format string) (Settings, error) {
	s := Settings{Kind: KindImage, Quality: quality, Format: format}
	return s, s.validate()
}

// VideoSettings builds video settings with the default bitrate.
func VideoSettings(format string) (Settings, error) {
	s := Settings{Kind: KindVideo, Bitrate: defaultVideoBitrate, Format: format}
	return s, s.validate()
}

// ArchiveSettings builds archive settings.
func ArchiveSettings(format string) (Settings, error) {
	s := Settings{Kind: KindArchive, Format: format}
	return s, s.validate()
}

func (s Settings) validate() error {
	ok := false
	for _, f := range formats[s.Kind] {
		if f == s.Format {
			ok = true
			break
		}
	}
	if !ok {
		return &api.ValidationError{Field: "format", Reason: fmt.Sprintf("%q is not a %s format", s.Format, s.Kind)}
	}
	if s.Kind == KindImage && (s.Quality < QualityLow || s.Quality > QualityHigh) {
		return &api.ValidationError{Field: "quality", Reason: "quality outside preset range"}
	}
	return nil
}

// request converts the settings to the wire shape.
func (s Settings) request() api.CompressRequest {
	return api.CompressRequest{
		Type:    string(s.Kind),
		Quality: s.Quality,
		Bitrate: s.Bitrate,
		Format:  s.Format,
	}
}

// DeriveKinds returns the compression kinds offered for a selection.
// A pure image selection offers image and archive, a pure video
// selection offers video and archive, anything mixed or unrecognized
// offers archive only.
func DeriveKinds(files []models.FileEntry) []Kind {
	if len(files) == 0 {
		return nil
	}
	allImages, allVideos := true, true
	for i := range files {
		switch models.CategoryForExt(files[i].Ext()) {
		case models.CategoryImage:
			allVideos = false
		case models.CategoryVideo:
			allImages = false
		default:
			allImages, allVideos = false, false
		}
	}
	switch {
	case allImages:
		return []Kind{KindImage, KindArchive}
	case allVideos:
		return []Kind{KindVideo, KindArchive}
	default:
		return []Kind{KindArchive}
	}
}

// Backend is the slice of the REST client the orchestrator calls.
type Backend interface {
	Compress(ctx context.Context, id string, req api.CompressRequest) error
	DeleteFile(ctx context.Context, id string) error
}

// Refresher reloads the listing after the batch finishes.
type Refresher interface {
	Refresh(ctx context.Context, folderID string) error
}

// Outcome is the result for one input file, in input order.
type Outcome struct {
	File models.FileEntry
	Err  error
}

// Orchestrator runs compression batches. Safe for concurrent use.
type Orchestrator struct {
	backend   Backend
	refresher Refresher
	sink      notify.Sink

	// silentFailure restores the legacy behavior of swallowing a batch
	// where every file failed instead of returning an error.
	silentFailure bool
}

// Config wires an Orchestrator.
type Config struct {
	Backend       Backend
	Refresher     Refresher
	Sink          notify.Sink
	SilentFailure bool
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		backend:       cfg.Backend,
		refresher:     cfg.Refresher,
		sink:          cfg.Sink,
		silentFailure: cfg.SilentFailure,
	}
}

// Run compresses every file in the selection with the same settings.
// Files are processed sequentially; each success deletes the original
// so only the derivative remains. The listing refreshes once at the
// end regardless of outcomes. The returned error is a PartialBatchError
// when any file failed; with SilentFailure set, a batch where every
// file failed returns nil instead.
func (o *Orchestrator) Run(ctx context.Context, files []models.FileEntry, folderID string, settings Settings) ([]Outcome, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if err := settings.validate(); err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, len(files))
	req := settings.request()
	for i := range files {
		outcomes[i] = Outcome{File: files[i], Err: o.compressOne(ctx, files[i], req)}
	}

	if o.refresher != nil {
		if err := o.refresher.Refresh(ctx, folderID); err != nil {
			logging.Warn("post-compress refresh failed", zap.Error(err))
		}
	}

	return outcomes, o.summarize(outcomes)
}

// compressOne compresses a single file and deletes the original. A
// compression failure skips the delete so the original survives.
func (o *Orchestrator) compressOne(ctx context.Context, f models.FileEntry, req api.CompressRequest) error {
	if err := o.backend.Compress(ctx, f.ID, req); err != nil {
		metrics.RecordCompression(false)
		logging.Warn("compression failed", zap.String("file_id", f.ID), zap.String("name", f.Name), zap.Error(err))
		return fmt.Errorf("compress %s: %w", f.Name, err)
	}
	if err := o.backend.DeleteFile(ctx, f.ID); err != nil {
		// the derivative exists; the stale original is left for the user
		metrics.RecordCompression(false)
		logging.Warn("original delete failed", zap.String("file_id", f.ID), zap.Error(err))
		return fmt.Errorf("delete original %s: %w", f.Name, err)
	}
	metrics.RecordCompression(true)
	return nil
}

// summarize folds per-file outcomes into the batch error and one
// aggregate notification: a success message when anything succeeded, an
// error when everything failed. The silent mode emits nothing at all
// for an all-failed batch.
func (o *Orchestrator) summarize(outcomes []Outcome) error {
	failed := 0
	for _, out := range outcomes {
		if out.Err != nil {
			failed++
		}
	}
	total := len(outcomes)

	switch {
	case failed == 0:
		o.notify(notify.LevelInfo, fmt.Sprintf("compressed %d file(s)", total))
		return nil
	case failed < total:
		o.notify(notify.LevelInfo, fmt.Sprintf("compressed %d of %d file(s)", total-failed, total))
		return &api.PartialBatchError{Total: total, Failed: failed}
	case o.silentFailure:
		return nil
	default:
		o.notify(notify.LevelError, fmt.Sprintf("compression failed for all %d file(s)", total))
		return &api.PartialBatchError{Total: total, Failed: failed}
	}
}

func (o *Orchestrator) notify(level notify.Level, msg string) {
	if o.sink != nil {
		o.sink.Notify(notify.NewEvent(level, msg))
	}
}
