package fetcher

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/product-detector/internal/config"
	"github.com/jonesrussell/north-cloud/product-detector/internal/logger"
)

const (
	cacheKeyPrefix         = "product-detector:page:"
	redisConnectionTimeout = 5 * time.Second
)

var ErrEmptyRedisAddress = errors.New("redis address is required")

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyRedisAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisConnectionTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// CachedFetcher stores gzip-compressed page HTML in Redis. Cache failures
// are logged and fall through to next.
type CachedFetcher struct {
	next   Fetcher
	client *redis.Client
	ttl    time.Duration
	log    logger.Logger
}

func NewCached(next Fetcher, client *redis.Client, ttl time.Duration, log logger.Logger) *CachedFetcher {
	return &CachedFetcher{next: next, client: client, ttl: ttl, log: log}
}

// CacheKey is the Redis key holding the page for pageURL.
func CacheKey(pageURL string) string {
	sum := sha256.Sum256([]byte(pageURL))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func (f *CachedFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	key := CacheKey(pageURL)

	data, err := f.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		page, derr := decompress(data)
		if derr == nil {
			f.log.Debug("Page cache hit", logger.String("url", pageURL))
			return page, nil
		}
		f.log.Warn("Discarding corrupt cached page", logger.String("url", pageURL), logger.Error(derr))
	case !errors.Is(err, redis.Nil):
		f.log.Warn("Page cache read failed", logger.String("url", pageURL), logger.Error(err))
	}

	page, err := f.next.Fetch(ctx, pageURL)
	if err != nil {
		return "", err
	}

	packed, err := compress(page)
	if err != nil {
		f.log.Warn("Page cache encode failed", logger.String("url", pageURL), logger.Error(err))
		return page, nil
	}
	if err := f.client.Set(ctx, key, packed, f.ttl).Err(); err != nil {
		f.log.Warn("Page cache write failed", logger.String("url", pageURL), logger.Error(err))
	}
	return page, nil
}

func (f *CachedFetcher) Close() error { return Close(f.next) }

func compress(page string) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := io.WriteString(zw, page); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) (string, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer func() { _ = zr.Close() }()
	out, err := io.ReadAll(zr)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
