package blob

import (
	"context"
	"fmt"
)

// FactoryConfig selects and configures an upload backend.
type FactoryConfig struct {
	Backend  string // "httpform", "s3", "minio"
	HTTPForm HTTPFormConfig
	S3       S3Config
	Minio    MinioConfig
}

// NewUploader creates an Uploader from a backend type string.
func NewUploader(ctx context.Context, cfg FactoryConfig) (Uploader, error) {
	switch cfg.Backend {
	case "httpform", "":
		return NewHTTPForm(cfg.HTTPForm), nil
	case "s3":
		return NewS3(ctx, cfg.S3)
	case "minio":
		return NewMinio(ctx, cfg.Minio)
	default:
		return nil, fmt.Errorf("unknown blob backend: %s", cfg.Backend)
	}
}
