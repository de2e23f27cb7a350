package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/jonesrussell/north-cloud/product-detector/internal/config"
	"github.com/jonesrussell/north-cloud/product-detector/internal/logger"
	"github.com/jonesrussell/north-cloud/product-detector/internal/retry"
)

const (
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 90 * time.Second
)

// HTTPFetcher downloads pages with a plain GET and decodes them to UTF-8.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
	retry     retry.Config
	log       logger.Logger
}

func NewHTTPFetcher(cfg config.FetcherConfig, log logger.Logger) *HTTPFetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = defaultMaxIdleConnsPerHost
	transport.IdleConnTimeout = defaultIdleConnTimeout

	f := &HTTPFetcher{
		client:    &http.Client{Timeout: cfg.Timeout, Transport: transport},
		userAgent: cfg.UserAgent,
		maxBody:   cfg.MaxBodyBytes,
		retry:     retry.DefaultConfig(),
		log:       log,
	}
	if cfg.MaxAttempts > 0 {
		f.retry.MaxAttempts = cfg.MaxAttempts
	}
	f.retry.OnRetry = func(attempt int, delay time.Duration, err error) {
		f.log.Warn("Page fetch failed, retrying",
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Error(err),
		)
	}
	return f
}

// WithRetry replaces the backoff schedule.
func (f *HTTPFetcher) WithRetry(cfg retry.Config) *HTTPFetcher {
	onRetry := f.retry.OnRetry
	f.retry = cfg
	if f.retry.OnRetry == nil {
		f.retry.OnRetry = onRetry
	}
	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := validateURL(pageURL); err != nil {
		return "", err
	}

	var page string
	err := retry.Do(ctx, f.retry, func(ctx context.Context) error {
		var err error
		page, err = f.fetchOnce(ctx, pageURL)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	return page, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return "", err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &StatusError{URL: pageURL, Code: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if f.maxBody > 0 {
		body = io.LimitReader(body, f.maxBody)
	}
	decoded, err := charset.NewReader(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("decode charset: %w", err)
	}
	data, err := io.ReadAll(decoded)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	f.log.Debug("Page fetched",
		logger.String("url", pageURL),
		logger.Int("status", resp.StatusCode),
		logger.Int("bytes", len(data)),
	)
	return string(data), nil
}
