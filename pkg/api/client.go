// Package api provides the typed client for the CloudNest backend REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/cloudnest/cloudnest-client/pkg/models"
	"github.com/cloudnest/cloudnest-client/pkg/retry"
)

// Client is the HTTP client for the backend. All methods take a context and
// are safe for concurrent use. Idempotent reads are retried with backoff;
// mutations are issued exactly once.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig retry.Config

	mu          sync.RWMutex
	online      bool
	authToken   string
	tokenSource oauth2.TokenSource
}

// Config holds client configuration.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	RetryConfig retry.Config
	AuthToken   string
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		retryConfig: cfg.RetryConfig,
		online:      true,
		authToken:   cfg.AuthToken,
	}
}

// SetAuthToken sets the bearer token used for requests.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authToken = token
}

// UseTokenSource makes the client pull bearer tokens from ts (e.g. an OIDC
// client-credentials source) instead of a static token.
func (c *Client) UseTokenSource(ts oauth2.TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokenSource = ts
}

// bearer returns the current token, consulting the token source first.
func (c *Client) bearer() (string, error) {
	c.mu.RLock()
	ts := c.tokenSource
	tok := c.authToken
	c.mu.RUnlock()

	if ts != nil {
		t, err := ts.Token()
		if err != nil {
			return "", fmt.Errorf("token source: %w", err)
		}
		return t.AccessToken, nil
	}
	return tok, nil
}

// IsOnline returns true if the last request reached the server.
func (c *Client) IsOnline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

func (c *Client) setOnline(online bool) {
	c.mu.Lock()
	c.online = online
	c.mu.Unlock()
}

// request describes one backend call for the do helper.
type request struct {
	method     string
	path       string
	query      url.Values
	body       any
	out        any
	authed     bool
	idempotent bool
}

func (c *Client) do(ctx context.Context, r request) error {
	call := func() error { return c.doOnce(ctx, r) }
	if r.idempotent {
		return retry.Do(ctx, c.retryConfig, call)
	}
	return call()
}

func (c *Client) doOnce(ctx context.Context, r request) error {
	reqURL := c.baseURL + r.path
	if len(r.query) > 0 {
		reqURL += "?" + r.query.Encode()
	}

	var bodyReader io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, reqURL, bodyReader)
	if err != nil {
		return err
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.authed {
		token, err := c.bearer()
		if err != nil {
			return err
		}
		if token == "" {
			return ErrNoCredential
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setOnline(false)
		return retry.Transient(&ConnectivityError{Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &ServerError{
			StatusCode: resp.StatusCode,
			Message:    readErrorMessage(resp.Body),
		}
		if resp.StatusCode >= 500 {
			c.setOnline(false)
			return retry.Transient(serr)
		}
		c.setOnline(true)
		return serr
	}

	c.setOnline(true)

	if r.out != nil {
		if err := json.NewDecoder(resp.Body).Decode(r.out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// readErrorMessage extracts the message from a structured error body,
// falling back to the raw body.
func readErrorMessage(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 4096))

	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &e); err == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	return strings.TrimSpace(string(data))
}

// ListFiles lists files under folderID. An empty folderID means the root.
func (c *Client) ListFiles(ctx context.Context, folderID string) ([]models.FileEntry, error) {
	var files []models.FileEntry
	err := c.do(ctx, request{
		method:     http.MethodGet,
		path:       "/files",
		query:      url.Values{"folderId": {folderID}},
		out:        &files,
		authed:     true,
		idempotent: true,
	})
	return files, err
}

// ListFolders lists folders under parentID. An empty parentID means the root.
func (c *Client) ListFolders(ctx context.Context, parentID string) ([]models.FolderEntry, error) {
	var folders []models.FolderEntry
	err := c.do(ctx, request{
		method:     http.MethodGet,
		path:       "/folders",
		query:      url.Values{"parentId": {parentID}},
		out:        &folders,
		authed:     true,
		idempotent: true,
	})
	return folders, err
}

// RegisterRequest is the metadata-registration payload sent after a
// successful blob upload.
type RegisterRequest struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Type     string `json:"type"`
	Size     int64  `json:"size"`
	FolderID string `json:"folderId,omitempty"`
}

// RegisterFile registers blob metadata with the backend.
func (c *Client) RegisterFile(ctx context.Context, reg RegisterRequest) (models.FileEntry, error) {
	if reg.Name == "" {
		return models.FileEntry{}, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if reg.URL == "" {
		return models.FileEntry{}, &ValidationError{Field: "url", Reason: "must not be empty"}
	}

	var file models.FileEntry
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/files/register",
		body:   reg,
		out:    &file,
		authed: true,
	})
	return file, err
}

// CreateFolder creates a folder under parentID.
func (c *Client) CreateFolder(ctx context.Context, name, parentID string) (models.FolderEntry, error) {
	if name == "" {
		return models.FolderEntry{}, &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	var folder models.FolderEntry
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/folders",
		body:   map[string]string{"name": name, "parentId": parentID},
		out:    &folder,
		authed: true,
	})
	return folder, err
}

// RenameFile renames a file.
func (c *Client) RenameFile(ctx context.Context, id, newName string) error {
	if newName == "" {
		return &ValidationError{Field: "newName", Reason: "must not be empty"}
	}
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/files/rename/" + id,
		body:   map[string]string{"newName": newName},
		authed: true,
	})
}

// RenameFolder renames a folder.
func (c *Client) RenameFolder(ctx context.Context, id, name string) error {
	if name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return c.do(ctx, request{
		method: http.MethodPut,
		path:   "/folders/" + id,
		body:   map[string]string{"name": name},
		authed: true,
	})
}

// DeleteFile permanently deletes a file.
func (c *Client) DeleteFile(ctx context.Context, id string) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/files/permanent/" + id,
		authed: true,
	})
}

// DeleteFolder deletes a folder.
func (c *Client) DeleteFolder(ctx context.Context, id string) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/folders/" + id,
		authed: true,
	})
}

// ToggleFavourite toggles a file's favourite flag on the server.
func (c *Client) ToggleFavourite(ctx context.Context, id string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/files/favorite/" + id,
		authed: true,
	})
}

// Search runs a server-executed search over file names.
func (c *Client) Search(ctx context.Context, query string) ([]models.FileEntry, error) {
	var files []models.FileEntry
	err := c.do(ctx, request{
		method:     http.MethodGet,
		path:       "/files/search",
		query:      url.Values{"query": {query}},
		out:        &files,
		authed:     true,
		idempotent: true,
	})
	return files, err
}

// CompressRequest is the per-file compression payload. Quality applies to
// images, Bitrate to videos, Format to all kinds.
type CompressRequest struct {
	Type    string  `json:"type"`
	Quality float64 `json:"quality,omitempty"`
	Bitrate int     `json:"bitrate,omitempty"`
	Format  string  `json:"format"`
}

// Compress asks the backend to produce a compressed derivative of a file.
// The backend creates a new file; it never mutates the original in place.
func (c *Client) Compress(ctx context.Context, id string, req CompressRequest) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/files/" + id + "/compress",
		body:   req,
		authed: true,
	})
}

// PublicDownloadURL resolves the unauthenticated direct download URL for a
// file. This is the only backend call that carries no bearer token.
func (c *Client) PublicDownloadURL(ctx context.Context, id string) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	err := c.do(ctx, request{
		method:     http.MethodGet,
		path:       "/files/" + id + "/public-download",
		out:        &resp,
		idempotent: true,
	})
	return resp.URL, err
}

// DownloadPublic resolves the public download URL for a file and streams its
// content. The caller must close the reader.
func (c *Client) DownloadPublic(ctx context.Context, id string) (io.ReadCloser, int64, error) {
	dlURL, err := c.PublicDownloadURL(ctx, id)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dlURL, nil)
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setOnline(false)
		return nil, 0, &ConnectivityError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, 0, &ServerError{
			StatusCode: resp.StatusCode,
			Message:    readErrorMessage(resp.Body),
		}
	}

	c.setOnline(true)
	return resp.Body, resp.ContentLength, nil
}

// Ping checks whether the backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, request{
		method: http.MethodGet,
		path:   "/health",
	})
}
