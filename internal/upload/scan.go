package upload

import (
	"context"
	"fmt"

	clamd "github.com/dutchcoders/go-clamd"

	"github.com/cloudnest/cloudnest-client/pkg/models"
)

// InfectedError is returned when ClamAV flags a file.
type InfectedError struct {
	Name        string
	Description string
}

func (e *InfectedError) Error() string {
	return fmt.Sprintf("%s is infected: %s", e.Name, e.Description)
}

// ClamScanner scans assets against a clamd daemon before upload.
type ClamScanner struct {
	c *clamd.Clamd
}

// NewClamScanner connects to the clamd instance at url (tcp:// or
// unix://) and verifies it responds.
func NewClamScanner(url string) (*ClamScanner, error) {
	c := clamd.NewClamd(url)
	if err := c.Ping(); err != nil {
		return nil, fmt.Errorf("clamd ping: %w", err)
	}
	return &ClamScanner{c: c}, nil
}

// Scan streams the asset file through clamd. Returns an InfectedError
// when a signature matches.
func (s *ClamScanner) Scan(ctx context.Context, asset models.Asset) error {
	f, err := openAssetFile(asset)
	if err != nil {
		return err
	}
	defer f.Close()

	abort := make(chan bool)
	defer close(abort)
	response, err := s.c.ScanStream(f, abort)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}

	for res := range response {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if res.Status == clamd.RES_FOUND {
			return &InfectedError{Name: asset.Name, Description: res.Description}
		}
	}
	return nil
}
