package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/cloudnest/cloudnest-client/internal/logging"
)

// TokenFile holds a saved bearer credential.
type TokenFile struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Server    string    `json:"server"`
	Username  string    `json:"username"`
}

// IsExpired returns true if the token has expired (with optional margin).
func (t *TokenFile) IsExpired(margin time.Duration) bool {
	return time.Now().Add(margin).After(t.ExpiresAt)
}

// TokenExpiry reads the exp claim from a bearer token without verifying the
// signature. The client never validates tokens; the server does. Used to
// schedule refreshes when the issuer did not hand us an explicit expiry.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("token has no exp claim")
	}
	return exp.Time, nil
}

// RefreshResponse is the response from POST /auth/refresh.
type RefreshResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RefreshToken exchanges the current bearer token for a fresh one.
func (c *Client) RefreshToken(ctx context.Context) (*RefreshResponse, error) {
	var resp RefreshResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/refresh",
		out:    &resp,
		authed: true,
	})
	if err != nil {
		return nil, err
	}
	c.SetAuthToken(resp.Token)
	return &resp, nil
}

// StartTokenRefreshLoop refreshes the token in the background before it
// expires and persists it back to the token file. Returns when ctx is done.
func (c *Client) StartTokenRefreshLoop(ctx context.Context, tf *TokenFile) {
	go func() {
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !tf.IsExpired(1 * time.Hour) {
					continue
				}
				resp, err := c.RefreshToken(ctx)
				if err != nil {
					logging.Error("token refresh failed", zap.Error(err))
					continue
				}
				tf.Token = resp.Token
				tf.ExpiresAt = resp.ExpiresAt
				if err := SaveToken(tf); err != nil {
					logging.Error("saving refreshed token failed", zap.Error(err))
				} else {
					logging.Info("token refreshed",
						zap.Time("expires_at", tf.ExpiresAt))
				}
			}
		}
	}()
}

// TokenFilePath returns the default location of the saved token.
func TokenFilePath() string {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, _ := os.UserHomeDir()
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "CloudNest", "token.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "cloudnest", "token.json")
}

// SaveToken saves a token file to the default location.
func SaveToken(tf *TokenFile) error {
	path := TokenFilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadToken loads the token file from the default location.
func LoadToken() (*TokenFile, error) {
	data, err := os.ReadFile(TokenFilePath())
	if err != nil {
		return nil, err
	}
	var tf TokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, err
	}
	return &tf, nil
}

// DeleteToken removes the saved token file.
func DeleteToken() error {
	return os.Remove(TokenFilePath())
}
