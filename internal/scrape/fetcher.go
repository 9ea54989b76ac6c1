// Package scrape fetches wiki character pages over plain HTTP or through a
// headless browser, with bot-challenge detection and linear-backoff retries.
package scrape

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wiki-scraper/internal/config"
	"github.com/sells-group/wiki-scraper/internal/resilience"
)

// Page is a successfully fetched and parsed character page.
type Page struct {
	Identifier string
	URL        string
	Source     string // "http" or "browser"
	Size       int
	Doc        *goquery.Document
}

// Fetcher retrieves the page for a character identifier, retrying up to
// maxAttempts times. Close releases any session the fetcher owns and is safe
// to call more than once.
type Fetcher interface {
	Fetch(ctx context.Context, identifier string, maxAttempts int) (*Page, error)
	Name() string
	Close() error
}

// Options configures both fetch strategies.
type Options struct {
	BaseURL          string
	UserAgent        string
	Timeout          time.Duration
	BackoffStep      time.Duration
	MinPageBytes     int
	ChallengeMarker  string
	CloudflareBypass bool

	Headless     bool
	WaitSelector string
	WaitTimeout  time.Duration
	RenderPause  time.Duration
	ExecPath     string
}

// OptionsFromConfig maps application config onto fetcher options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:          cfg.Wiki.BaseURL,
		UserAgent:        cfg.Wiki.UserAgent,
		Timeout:          cfg.Scrape.RequestTimeout,
		BackoffStep:      cfg.Scrape.BackoffStep,
		MinPageBytes:     cfg.Scrape.MinPageBytes,
		ChallengeMarker:  cfg.Scrape.ChallengeMarker,
		CloudflareBypass: cfg.Scrape.CloudflareBypass,
		Headless:         cfg.Browser.Headless,
		WaitSelector:     cfg.Browser.WaitSelector,
		WaitTimeout:      cfg.Browser.WaitTimeout,
		RenderPause:      cfg.Browser.RenderPause,
		ExecPath:         cfg.Browser.ExecPath,
	}
}

func (o Options) blockRules() BlockRules {
	return BlockRules{MinBytes: o.MinPageBytes, Marker: o.ChallengeMarker}
}

// New builds the fetcher for the named strategy. The browser and auto
// strategies start a browser session immediately so a missing browser is
// reported before any work begins.
func New(strategy string, opts Options) (Fetcher, error) {
	switch strategy {
	case config.StrategyHTTP:
		return NewHTTPFetcher(opts), nil
	case config.StrategyBrowser:
		browser, err := NewBrowserFetcher(opts)
		if err != nil {
			return nil, err
		}
		return browser, nil
	case config.StrategyAuto:
		browser, err := NewBrowserFetcher(opts)
		if err != nil {
			return nil, err
		}
		return NewChain(NewHTTPFetcher(opts), browser), nil
	default:
		return nil, eris.Errorf("scrape: unknown strategy %q", strategy)
	}
}

// PageURL joins the wiki base URL and a character identifier.
func PageURL(baseURL, identifier string) string {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL + identifier
}

// getFunc performs a single fetch attempt and returns the page HTML.
type getFunc func(ctx context.Context, target string) ([]byte, error)

// fetchWithRetry runs get up to maxAttempts times. The n-th retry waits
// n*step. Every failure is retried; only context cancellation ends early.
func fetchWithRetry(ctx context.Context, source, identifier, target string, maxAttempts int, step time.Duration, get getFunc) (*Page, error) {
	cfg := resilience.FetchRetryConfig(maxAttempts, step)
	cfg.OnRetry = resilience.RetryLogger(source, identifier, cfg.MaxAttempts)

	body, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		return get(ctx, target)
	})
	if err != nil {
		zap.L().Warn("fetch failed",
			zap.String("source", source),
			zap.String("identifier", identifier),
			zap.Int("attempts", cfg.MaxAttempts),
			zap.Error(err),
		)
		return nil, eris.Wrapf(err, "scrape: %s fetch %s", source, identifier)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: parse %s", identifier)
	}

	return &Page{
		Identifier: identifier,
		URL:        target,
		Source:     source,
		Size:       len(body),
		Doc:        doc,
	}, nil
}
