package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cloudnest/cloudnest-client/pkg/models"
)

// HTTPFormConfig configures the raw multipart upload endpoint.
type HTTPFormConfig struct {
	Endpoint     string // e.g. https://blobs.example.com
	UploadPreset string
	Timeout      time.Duration
}

// HTTPFormUploader uploads via POST {endpoint}/raw/upload with a multipart
// form carrying file, upload_preset, and resource_type=raw. The response
// body carries secure_url and bytes.
type HTTPFormUploader struct {
	endpoint   string
	preset     string
	httpClient *http.Client
}

// NewHTTPForm creates an HTTPFormUploader.
func NewHTTPForm(cfg HTTPFormConfig) *HTTPFormUploader {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &HTTPFormUploader{
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/"),
		preset:     cfg.UploadPreset,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Type returns "httpform".
func (u *HTTPFormUploader) Type() string { return "httpform" }

// Close is a no-op.
func (u *HTTPFormUploader) Close() error { return nil }

// uploadResponse is the blob store's upload response body.
type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	Bytes     int64  `json:"bytes"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Upload streams the asset through a pipe so the multipart body is never
// buffered in memory.
func (u *HTTPFormUploader) Upload(ctx context.Context, asset models.Asset, progress Progress) (*Result, error) {
	f, err := openAsset(asset)
	if err != nil {
		return nil, fmt.Errorf("open asset: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		var werr error
		defer func() { pw.CloseWithError(werr) }()

		if werr = mw.WriteField("upload_preset", u.preset); werr != nil {
			return
		}
		if werr = mw.WriteField("resource_type", "raw"); werr != nil {
			return
		}
		part, err := mw.CreateFormFile("file", asset.Name)
		if err != nil {
			werr = err
			return
		}
		src := newProgressReader(f, asset.Size, progress)
		if _, werr = io.Copy(part, src); werr != nil {
			return
		}
		werr = mw.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint+"/raw/upload", pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("blob upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("blob store returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var ur uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return nil, fmt.Errorf("parse upload response: %w", err)
	}
	if ur.Error != nil {
		return nil, fmt.Errorf("blob store error: %s", ur.Error.Message)
	}
	if ur.SecureURL == "" {
		return nil, fmt.Errorf("blob store returned no secure_url")
	}

	if progress != nil {
		progress(100)
	}
	return &Result{URL: ur.SecureURL, Bytes: ur.Bytes}, nil
}
