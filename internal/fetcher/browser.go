package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/jonesrussell/north-cloud/product-detector/internal/config"
	"github.com/jonesrussell/north-cloud/product-detector/internal/logger"
)

// BrowserFetcher renders pages in headless Chrome so that script-built
// listings are present in the returned HTML. It connects lazily to
// cfg.BrowserURL or launches a local browser on first use.
type BrowserFetcher struct {
	controlURL string
	timeout    time.Duration
	settle     time.Duration
	log        logger.Logger

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func NewBrowserFetcher(cfg config.FetcherConfig, log logger.Logger) *BrowserFetcher {
	return &BrowserFetcher{
		controlURL: cfg.BrowserURL,
		timeout:    cfg.Timeout,
		settle:     cfg.SettleDelay,
		log:        log,
	}
}

func (f *BrowserFetcher) connect() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		return f.browser, nil
	}

	controlURL := f.controlURL
	if controlURL == "" {
		l := launcher.New().Headless(true)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		f.launcher = l
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	f.browser = b
	f.log.Info("Browser connected", logger.String("control_url", controlURL))
	return b, nil
}

func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := validateURL(pageURL); err != nil {
		return "", err
	}

	b, err := f.connect()
	if err != nil {
		return "", err
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return "", fmt.Errorf("open tab: %w", err)
	}
	defer func() { _ = page.Close() }()

	p := page.Context(ctx)
	if f.timeout > 0 {
		p = p.Timeout(f.timeout)
	}
	if err := p.Navigate(pageURL); err != nil {
		return "", fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	if err := p.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load %s: %w", pageURL, err)
	}

	if f.settle > 0 {
		timer := time.NewTimer(f.settle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	html, err := p.HTML()
	if err != nil {
		return "", fmt.Errorf("read rendered html %s: %w", pageURL, err)
	}
	return html, nil
}

// Close disconnects the browser and stops a locally launched one.
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	if f.browser != nil {
		err = f.browser.Close()
		f.browser = nil
	}
	if f.launcher != nil {
		f.launcher.Kill()
		f.launcher = nil
	}
	return err
}
