package common

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jonesrussell/north-cloud/product-detector/internal/fetcher"
)

// ReadSeeds returns the URLs in r, one per line, skipping blanks and
// lines starting with #.
func ReadSeeds(r io.Reader) ([]string, error) {
	var urls []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read seeds: %w", err)
	}
	return urls, nil
}

// ReadSeedsFile reads ReadSeeds from path.
func ReadSeedsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seeds file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadSeeds(f)
}

// LoadPage returns the HTML behind target: a local file when one exists at
// that path, otherwise the page fetched by f.
func LoadPage(ctx context.Context, f fetcher.Fetcher, target string) (string, error) {
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		data, err := os.ReadFile(target)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", target, err)
		}
		return string(data), nil
	}
	if f == nil {
		return "", fmt.Errorf("%s is not a file and fetching is unavailable", target)
	}
	return f.Fetch(ctx, target)
}
