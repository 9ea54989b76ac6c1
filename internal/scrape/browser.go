package scrape

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// hideWebdriver masks the automation flag that challenge scripts check for.
const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

// BrowserFetcher renders pages in a single headless Chrome session that
// lives until Close.
type BrowserFetcher struct {
	opts Options

	allocCancel context.CancelFunc
	tab         context.Context
	tabCancel   context.CancelFunc
	closeOnce   sync.Once
}

// NewBrowserFetcher launches the browser. A missing or broken Chrome install
// is reported here rather than on the first fetch.
func NewBrowserFetcher(opts Options) (*BrowserFetcher, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(opts)...)
	tab, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(zap.S().Debugf))

	// The mask must be registered before navigation to apply to wiki pages;
	// evaluating it once also proves the session is alive.
	if err := chromedp.Run(tab,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriver).Do(ctx)
			return err
		}),
		chromedp.Evaluate(hideWebdriver, nil),
	); err != nil {
		tabCancel()
		allocCancel()
		return nil, eris.Wrap(err, "browser: start session")
	}

	zap.L().Info("browser session started", zap.Bool("headless", opts.Headless))

	return &BrowserFetcher{
		opts:        opts,
		allocCancel: allocCancel,
		tab:         tab,
		tabCancel:   tabCancel,
	}, nil
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	return allocOpts
}

func (b *BrowserFetcher) Name() string { return "browser" }

// Fetch navigates to the character page and returns the rendered HTML.
func (b *BrowserFetcher) Fetch(ctx context.Context, identifier string, maxAttempts int) (*Page, error) {
	target := PageURL(b.opts.BaseURL, identifier)
	return fetchWithRetry(ctx, b.Name(), identifier, target, maxAttempts, b.opts.BackoffStep, b.get)
}

func (b *BrowserFetcher) get(ctx context.Context, target string) ([]byte, error) {
	waitCtx, cancel := context.WithTimeout(b.tab, b.opts.WaitTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(waitCtx,
		chromedp.Navigate(target),
		chromedp.WaitReady(b.opts.WaitSelector, chromedp.ByQuery),
	); err != nil {
		return nil, eris.Wrapf(err, "browser: wait for %s", b.opts.WaitSelector)
	}

	readCtx, readCancel := context.WithCancel(b.tab)
	defer readCancel()
	stopRead := context.AfterFunc(ctx, readCancel)
	defer stopRead()

	var html string
	if err := chromedp.Run(readCtx,
		chromedp.Sleep(b.opts.RenderPause),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return nil, eris.Wrap(err, "browser: read document")
	}

	body := []byte(html)
	if err := checkBlock(nil, body, b.opts.blockRules()); err != nil {
		return nil, err
	}
	return body, nil
}

// Close shuts down the browser. Subsequent calls are no-ops.
func (b *BrowserFetcher) Close() error {
	b.closeOnce.Do(func() {
		b.tabCancel()
		b.allocCancel()
		zap.L().Info("browser session closed")
	})
	return nil
}
