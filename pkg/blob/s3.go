package blob

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloudnest/cloudnest-client/internal/logging"
	"github.com/cloudnest/cloudnest-client/pkg/models"
)

// S3Config holds S3 connection settings.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	// PublicBaseURL is the prefix under which uploaded objects are
	// publicly reachable; defaults to {Endpoint}/{Bucket}.
	PublicBaseURL string
}

// S3Uploader uploads assets to an S3-compatible store.
type S3Uploader struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewS3 creates an S3 uploader and verifies the bucket exists.
func NewS3(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.Endpoint,
				HostnameImmutable: true,
			}, nil
		},
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithEndpointResolverWithOptions(resolver),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}

	u := &S3Uploader{client: client, bucket: cfg.Bucket, baseURL: strings.TrimSuffix(baseURL, "/")}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		if _, createErr := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(cfg.Bucket)}); createErr != nil {
			return nil, fmt.Errorf("bucket %s does not exist and cannot create: %w", cfg.Bucket, createErr)
		}
		logging.Info("created blob bucket", zap.String("bucket", cfg.Bucket))
	}

	return u, nil
}

// Type returns "s3".
func (u *S3Uploader) Type() string { return "s3" }

// Close is a no-op.
func (u *S3Uploader) Close() error { return nil }

// Upload puts the asset under a collision-free key and returns its public URL.
func (u *S3Uploader) Upload(ctx context.Context, asset models.Asset, progress Progress) (*Result, error) {
	f, err := openAsset(asset)
	if err != nil {
		return nil, fmt.Errorf("open asset: %w", err)
	}
	defer f.Close()

	key := uuid.New().String() + strings.ToLower(path.Ext(asset.Name))
	body := newProgressReader(f, asset.Size, progress)

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(asset.Size),
		ContentType:   aws.String(asset.MimeType),
	})
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}

	logging.Debug("blob uploaded to s3",
		zap.String("key", key),
		zap.Int64("size", asset.Size))

	if progress != nil {
		progress(100)
	}
	return &Result{URL: u.baseURL + "/" + key, Bytes: asset.Size}, nil
}
