package scrape

import (
	"context"
	"mime"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/wiki-scraper/internal/resilience"
)

// NewClient builds the resty client shared by page fetching and discovery.
func NewClient(userAgent string, timeout time.Duration, cloudflareBypass bool) *resty.Client {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetLogger(zap.S())
	if cloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	client.SetHeaders(map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	})
	return client
}

// HTTPFetcher retrieves pages with a plain HTTP GET.
type HTTPFetcher struct {
	client *resty.Client
	opts   Options
}

// NewHTTPFetcher creates an HTTPFetcher from opts.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	return &HTTPFetcher{
		client: NewClient(opts.UserAgent, opts.Timeout, opts.CloudflareBypass),
		opts:   opts,
	}
}

func (h *HTTPFetcher) Name() string { return "http" }
func (h *HTTPFetcher) Close() error { return nil }

// Fetch GETs the character page, retrying failed attempts.
func (h *HTTPFetcher) Fetch(ctx context.Context, identifier string, maxAttempts int) (*Page, error) {
	target := PageURL(h.opts.BaseURL, identifier)
	return fetchWithRetry(ctx, h.Name(), identifier, target, maxAttempts, h.opts.BackoffStep, h.get)
}

func (h *HTTPFetcher) get(ctx context.Context, target string) ([]byte, error) {
	resp, err := h.client.R().SetContext(ctx).Get(target)
	if err != nil {
		return nil, eris.Wrap(err, "http: fetch")
	}

	body, err := decodeBody(resp.Header().Get("Content-Type"), resp.Body())
	if err != nil {
		return nil, err
	}

	// Challenge pages are often served with 200, so check the body first.
	if err := checkBlock(resp.RawResponse, body, h.opts.blockRules()); err != nil {
		return nil, err
	}
	if err := resilience.CheckStatus(target, resp.StatusCode()); err != nil {
		return nil, eris.Wrap(err, "http: fetch")
	}
	return body, nil
}

// decodeBody converts a non-UTF-8 body to UTF-8 using the charset declared
// in the Content-Type header.
func decodeBody(contentType string, body []byte) ([]byte, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return body, nil
	}
	charset := params["charset"]
	if charset == "" || strings.EqualFold(charset, "utf-8") {
		return body, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "http: unsupported charset %q", charset)
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return nil, eris.Wrapf(err, "http: decode %s", charset)
	}
	return decoded, nil
}
