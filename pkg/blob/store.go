// Package blob fetches raw audio bytes given an opaque locator. Locators may
// be plain filesystem paths, file:// URLs, or http(s):// URLs.
package blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	mderrors "github.com/minutedapp/minuted/pkg/errors"
	"github.com/minutedapp/minuted/pkg/logging"
)

// Store fetches raw audio bytes for a locator.
type Store interface {
	// Fetch returns the bytes behind locator. Returns ErrNotFound when the
	// locator resolves to nothing.
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// FetcherConfig holds tunables for the default store.
type FetcherConfig struct {
	// HTTPTimeout bounds a single download request.
	HTTPTimeout time.Duration

	// MaxElapsed bounds the total time spent retrying a download.
	MaxElapsed time.Duration

	// MaxBytes rejects downloads larger than this. Zero means no limit.
	MaxBytes int64
}

// DefaultFetcherConfig returns tunables suitable for meeting recordings.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		HTTPTimeout: 60 * time.Second,
		MaxElapsed:  2 * time.Minute,
		MaxBytes:    512 << 20, // 512MB
	}
}

// Fetcher is the default Store: local paths read directly, remote URLs
// downloaded with exponential-backoff retry on transient failures.
type Fetcher struct {
	client *http.Client
	config FetcherConfig
	logger logging.Logger
}

// NewFetcher creates a Fetcher with the given configuration.
func NewFetcher(cfg FetcherConfig, logger logging.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		config: cfg,
		logger: logger.With(logging.F("component", "blob_fetcher")),
	}
}

// Fetch resolves the locator and returns its bytes.
func (f *Fetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if locator == "" {
		return nil, fmt.Errorf("%w: empty audio locator", mderrors.ErrValidation)
	}

	switch {
	case strings.HasPrefix(locator, "file://"):
		return f.fetchLocal(strings.TrimPrefix(locator, "file://"))
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		return f.fetchRemote(ctx, locator)
	default:
		return f.fetchLocal(locator)
	}
}

func (f *Fetcher) fetchLocal(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("audio file %s: %w", path, mderrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}
	return data, nil
}

// fetchRemote downloads the URL, retrying transient failures with exponential
// backoff. 404 is terminal; other non-2xx responses from the storage service
// are treated as transient.
func (f *Fetcher) fetchRemote(ctx context.Context, url string) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = f.config.MaxElapsed

	var data []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
		}

		resp, err := f.client.Do(req)
		if err != nil {
			f.logger.Warn("Audio download failed, will retry", logging.Err(err), logging.F("url", url))
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(fmt.Errorf("audio at %s: %w", url, mderrors.ErrNotFound))
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			err := fmt.Errorf("download failed with HTTP %d", resp.StatusCode)
			f.logger.Warn("Audio download failed, will retry", logging.Err(err), logging.F("url", url))
			return err
		}

		reader := io.Reader(resp.Body)
		if f.config.MaxBytes > 0 {
			reader = io.LimitReader(resp.Body, f.config.MaxBytes+1)
		}
		data, err = io.ReadAll(reader)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if f.config.MaxBytes > 0 && int64(len(data)) > f.config.MaxBytes {
			return backoff.Permanent(fmt.Errorf("audio at %s exceeds %d byte limit", url, f.config.MaxBytes))
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return data, nil
}
