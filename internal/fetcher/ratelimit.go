package fetcher

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedFetcher spaces out requests issued by next.
type RateLimitedFetcher struct {
	next    Fetcher
	limiter *rate.Limiter
}

func NewRateLimited(next Fetcher, rps float64, burst int) *RateLimitedFetcher {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedFetcher{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (f *RateLimitedFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return f.next.Fetch(ctx, pageURL)
}

func (f *RateLimitedFetcher) Close() error { return Close(f.next) }
