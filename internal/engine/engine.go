// Package engine assembles the client: REST client, listing cache,
// navigator, upload and compression orchestrators, reconciler, and the
// local content cache, behind one facade.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cloudnest/cloudnest-client/internal/compress"
	"github.com/cloudnest/cloudnest-client/internal/config"
	"github.com/cloudnest/cloudnest-client/internal/listing"
	"github.com/cloudnest/cloudnest-client/internal/logging"
	"github.com/cloudnest/cloudnest-client/internal/metrics"
	"github.com/cloudnest/cloudnest-client/internal/nav"
	"github.com/cloudnest/cloudnest-client/internal/notify"
	"github.com/cloudnest/cloudnest-client/internal/reconcile"
	"github.com/cloudnest/cloudnest-client/internal/upload"
	"github.com/cloudnest/cloudnest-client/pkg/api"
	"github.com/cloudnest/cloudnest-client/pkg/blob"
	"github.com/cloudnest/cloudnest-client/pkg/localcache"
	"github.com/cloudnest/cloudnest-client/pkg/models"
)

// EngineStats holds engine counters.
type EngineStats struct {
	Refreshes       atomic.Int64
	Uploads         atomic.Int64
	UploadFailures  atomic.Int64
	Compressions    atomic.Int64
	Mutations       atomic.Int64
	Downloads       atomic.Int64
	CacheHits       atomic.Int64
	CacheMisses     atomic.Int64
	BytesDownloaded atomic.Int64
}

// Engine is the top-level client facade.
type Engine struct {
	cfg    config.Config
	client *api.Client

	Nav      *nav.Navigator
	Listing  *listing.Cache
	Uploads  *upload.Orchestrator
	Compress *compress.Orchestrator
	Mutate   *reconcile.Reconciler
	Content  *localcache.Cache

	uploader blob.Uploader
	sink     notify.Sink
	natsSink *notify.NATSSink

	Stats EngineStats
}

// New wires an Engine from configuration. The extra sink, when non-nil,
// receives engine events alongside the log sink.
func New(ctx context.Context, cfg config.Config, extra notify.Sink) (*Engine, error) {
	client := api.New(api.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.RequestTimeout,
	})

	if cfg.OIDCIssuerURL != "" {
		ts, err := api.NewOIDCTokenSource(ctx, api.OIDCConfig{
			IssuerURL:    cfg.OIDCIssuerURL,
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			Scopes:       cfg.OIDCScopes,
		})
		if err != nil {
			return nil, fmt.Errorf("oidc: %w", err)
		}
		client.UseTokenSource(ts)
	}

	sinks := notify.Multi{notify.LogSink{}}
	var natsSink *notify.NATSSink
	if cfg.NATSURL != "" {
		ns, err := notify.NewNATSSink(cfg.NATSURL, "cloudnest.events")
		if err != nil {
			logging.Warn("nats sink unavailable", zap.Error(err))
		} else {
			natsSink = ns
			sinks = append(sinks, ns)
		}
	}
	if extra != nil {
		sinks = append(sinks, extra)
	}

	uploader, err := blob.NewUploader(ctx, blob.FactoryConfig{
		Backend: cfg.BlobBackend,
		HTTPForm: blob.HTTPFormConfig{
			Endpoint:     cfg.BlobEndpoint,
			UploadPreset: cfg.UploadPreset,
		},
		S3: blob.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
		},
		Minio: blob.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("blob backend: %w", err)
	}

	var scanner upload.Scanner
	if cfg.ScanUploads && cfg.ClamAVURL != "" {
		cs, err := upload.NewClamScanner(cfg.ClamAVURL)
		if err != nil {
			return nil, fmt.Errorf("clamav: %w", err)
		}
		scanner = cs
	}

	content, err := localcache.New(cfg.CacheDir, cfg.MaxCacheSize)
	if err != nil {
		return nil, fmt.Errorf("content cache: %w", err)
	}

	e := &Engine{cfg: cfg, client: client, uploader: uploader, sink: sinks, natsSink: natsSink, Content: content}

	e.Listing = listing.New(client)
	e.Nav = nav.New(func(folderID string) {
		if err := e.refresh(context.Background(), folderID); err != nil {
			logging.Warn("refresh on navigation failed", zap.Error(err))
		}
	})
	e.Uploads = upload.New(upload.Config{
		Uploader:  uploader,
		Registrar: client,
		Refresher: refresherFunc(e.refresh),
		Scanner:   scanner,
		Sink:      sinks,
		Workers:   cfg.UploadWorkers,
	})
	e.Compress = compress.New(compress.Config{
		Backend:       client,
		Refresher:     refresherFunc(e.refresh),
		Sink:          sinks,
		SilentFailure: cfg.SilentBatchFailure,
	})
	e.Mutate = reconcile.New(client, e.Listing, refresherFunc(e.refresh), sinks)

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				logging.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	return e, nil
}

// refresherFunc adapts a function to the Refresher interfaces the
// orchestrators declare.
type refresherFunc func(ctx context.Context, folderID string) error

func (f refresherFunc) Refresh(ctx context.Context, folderID string) error {
	return f(ctx, folderID)
}

func (e *Engine) refresh(ctx context.Context, folderID string) error {
	e.Stats.Refreshes.Add(1)
	return e.Listing.Refresh(ctx, folderID)
}

// Client exposes the underlying REST client for auth management.
func (e *Engine) Client() *api.Client { return e.client }

// SetAuthToken installs a bearer token on the REST client.
func (e *Engine) SetAuthToken(token string) { e.client.SetAuthToken(token) }

// Online reports the last observed connectivity state.
func (e *Engine) Online() bool { return e.client.IsOnline() }

// RefreshCurrent reloads the listing for the current folder.
func (e *Engine) RefreshCurrent(ctx context.Context) error {
	return e.refresh(ctx, e.Nav.CurrentFolderID())
}

// Upload runs an upload batch into the current folder.
func (e *Engine) Upload(ctx context.Context, assets []models.Asset, progress upload.ProgressFunc) ([]upload.Result, error) {
	results, err := e.Uploads.UploadBatch(ctx, assets, e.Nav.CurrentFolderID(), progress)
	for _, r := range results {
		if r.Err != nil {
			e.Stats.UploadFailures.Add(1)
		} else {
			e.Stats.Uploads.Add(1)
		}
	}
	return results, err
}

// CompressFiles runs a compression batch in the current folder.
func (e *Engine) CompressFiles(ctx context.Context, files []models.FileEntry, settings compress.Settings) ([]compress.Outcome, error) {
	outcomes, err := e.Compress.Run(ctx, files, e.Nav.CurrentFolderID(), settings)
	e.Stats.Compressions.Add(int64(len(outcomes)))
	return outcomes, err
}

// ToggleFavourite flips a file's favourite flag against the current folder.
func (e *Engine) ToggleFavourite(ctx context.Context, id string) error {
	e.Stats.Mutations.Add(1)
	return e.Mutate.ToggleFavourite(ctx, id, e.Nav.CurrentFolderID())
}

// Rename renames a file or folder in the current folder.
func (e *Engine) Rename(ctx context.Context, item models.Item, newName string) error {
	e.Stats.Mutations.Add(1)
	return e.Mutate.Rename(ctx, item, newName, e.Nav.CurrentFolderID())
}

// Delete removes a file or folder from the current folder.
func (e *Engine) Delete(ctx context.Context, item models.Item) error {
	e.Stats.Mutations.Add(1)
	return e.Mutate.Delete(ctx, item, e.Nav.CurrentFolderID())
}

// CreateFolder creates a folder under the current one and refreshes.
func (e *Engine) CreateFolder(ctx context.Context, name string) (models.FolderEntry, error) {
	folder, err := e.client.CreateFolder(ctx, name, e.Nav.CurrentFolderID())
	if err != nil {
		return models.FolderEntry{}, err
	}
	if err := e.refresh(ctx, e.Nav.CurrentFolderID()); err != nil {
		logging.Warn("refresh after folder create failed", zap.Error(err))
	}
	return folder, nil
}

// Download resolves a file to a local path, serving from the content
// cache when possible and filling it otherwise.
func (e *Engine) Download(ctx context.Context, id string) (string, error) {
	e.Stats.Downloads.Add(1)
	if path, ok := e.Content.Get(id); ok {
		e.Stats.CacheHits.Add(1)
		metrics.RecordCacheHit(true)
		return path, nil
	}
	e.Stats.CacheMisses.Add(1)
	metrics.RecordCacheHit(false)

	body, size, err := e.client.DownloadPublic(ctx, id)
	if err != nil {
		return "", err
	}
	defer body.Close()

	path, err := e.Content.Put(id, body, size)
	if err != nil {
		return "", fmt.Errorf("cache fill: %w", err)
	}
	e.Stats.BytesDownloaded.Add(size)
	return path, nil
}

// Search queries the server through the listing cache.
func (e *Engine) Search(ctx context.Context, query string) ([]models.FileEntry, error) {
	return e.Listing.Search(ctx, query)
}

// Close releases engine resources.
func (e *Engine) Close() error {
	if e.natsSink != nil {
		e.natsSink.Close()
	}
	return e.uploader.Close()
}
