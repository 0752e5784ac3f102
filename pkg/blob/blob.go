// Package blob provides pluggable blob-store upload backends.
//
// The upload orchestrator only sees the Uploader interface; deployments pick
// a backend (raw HTTP form endpoint, S3, MinIO) through the factory.
package blob

import (
	"context"
	"io"
	"os"

	"github.com/cloudnest/cloudnest-client/pkg/models"
)

// Progress receives upload percentage in the range 0-100. Implementations
// must tolerate repeated and out-of-order values.
type Progress func(percent int)

// Result holds the outcome of a blob upload.
type Result struct {
	URL   string // durable, publicly resolvable blob URL
	Bytes int64  // bytes the store accounted for
}

// Uploader streams a local asset to a blob store.
type Uploader interface {
	// Upload streams the asset and reports progress as bytes leave the
	// client. The returned URL is what gets registered with the backend.
	Upload(ctx context.Context, asset models.Asset, progress Progress) (*Result, error)

	// Type returns the backend identifier ("httpform", "s3", "minio").
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}

// openAsset opens the asset's local file.
func openAsset(asset models.Asset) (*os.File, error) {
	return os.Open(asset.Path())
}

// progressReader wraps a reader and reports percent progress against a known
// total size.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	progress Progress
}

func newProgressReader(r io.Reader, total int64, progress Progress) *progressReader {
	return &progressReader{r: r, total: total, progress: progress}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		if p.progress != nil && p.total > 0 {
			pct := int(p.read * 100 / p.total)
			if pct > 100 {
				pct = 100
			}
			p.progress(pct)
		}
	}
	return n, err
}
