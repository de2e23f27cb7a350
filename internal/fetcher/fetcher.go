// Package fetcher acquires raw page HTML over plain HTTP or a headless
// browser, optionally paced and cached.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/jonesrussell/north-cloud/product-detector/internal/config"
	"github.com/jonesrussell/north-cloud/product-detector/internal/logger"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	ErrInvalidURL       = errors.New("invalid page URL")
)

// Fetcher returns the HTML of one page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// StatusError is returned for non-2xx responses. It unwraps to
// ErrUnexpectedStatus and is retryable for 5xx and 429.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d from %s", ErrUnexpectedStatus, e.Code, e.URL)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

func (e *StatusError) Retryable() bool {
	return e.Code >= 500 || e.Code == 429
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}

// New builds the fetcher selected by cfg.Mode, paced by
// cfg.RequestsPerSecond. The caller wraps it with NewCached when a Redis
// client is available.
func New(cfg config.FetcherConfig, log logger.Logger) (Fetcher, error) {
	var base Fetcher
	switch cfg.Mode {
	case "", "http":
		base = NewHTTPFetcher(cfg, log)
	case "browser":
		base = NewBrowserFetcher(cfg, log)
	default:
		return nil, fmt.Errorf("unknown fetcher mode %q", cfg.Mode)
	}
	if cfg.RequestsPerSecond > 0 {
		base = NewRateLimited(base, cfg.RequestsPerSecond, 1)
	}
	return base, nil
}

// Close releases resources held by f or anything it wraps.
func Close(f Fetcher) error {
	if c, ok := f.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
