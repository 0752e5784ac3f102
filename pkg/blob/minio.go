package blob

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/cloudnest/cloudnest-client/internal/logging"
	"github.com/cloudnest/cloudnest-client/pkg/models"
)

// MinioConfig holds MinIO connection settings.
type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

// MinioUploader uploads assets to a MinIO deployment.
type MinioUploader struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewMinio creates a MinIO uploader, creating the bucket if needed.
func NewMinio(ctx context.Context, cfg MinioConfig) (*MinioUploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		logging.Info("created blob bucket", zap.String("bucket", cfg.Bucket))
	}

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = scheme + "://" + cfg.Endpoint + "/" + cfg.Bucket
	}

	return &MinioUploader{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Type returns "minio".
func (u *MinioUploader) Type() string { return "minio" }

// Close is a no-op.
func (u *MinioUploader) Close() error { return nil }

// Upload streams the asset into the bucket under a collision-free object name.
func (u *MinioUploader) Upload(ctx context.Context, asset models.Asset, progress Progress) (*Result, error) {
	f, err := openAsset(asset)
	if err != nil {
		return nil, fmt.Errorf("open asset: %w", err)
	}
	defer f.Close()

	objectName := uuid.New().String() + strings.ToLower(path.Ext(asset.Name))
	body := newProgressReader(f, asset.Size, progress)

	info, err := u.client.PutObject(ctx, u.bucket, objectName, body, asset.Size, minio.PutObjectOptions{
		ContentType: asset.MimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}

	logging.Debug("blob uploaded to minio",
		zap.String("object", objectName),
		zap.Int64("size", info.Size))

	if progress != nil {
		progress(100)
	}
	return &Result{URL: u.baseURL + "/" + objectName, Bytes: info.Size}, nil
}
