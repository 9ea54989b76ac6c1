// Package discovery builds the character work list from the wiki's canon
// character index page.
package discovery

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const wikiPrefix = "/wiki/"

// Discoverer fetches and parses the index page.
type Discoverer struct {
	client   *resty.Client
	indexURL string
}

// New creates a Discoverer that reads indexURL with client.
func New(client *resty.Client, indexURL string) *Discoverer {
	return &Discoverer{client: client, indexURL: indexURL}
}

// Discover returns the unique character identifiers listed on the index page
// in page order. Any fault is logged and yields an empty list.
func (d *Discoverer) Discover(ctx context.Context) []string {
	log := zap.L().With(zap.String("url", d.indexURL))
	log.Info("fetching canon character list")

	resp, err := d.client.R().SetContext(ctx).Get(d.indexURL)
	if err != nil {
		log.Error("discovery: fetch index", zap.Error(err))
		return []string{}
	}
	if resp.IsError() {
		log.Error("discovery: fetch index", zap.Int("status", resp.StatusCode()))
		return []string{}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		log.Error("discovery: parse index", zap.Error(err))
		return []string{}
	}

	ids := ParseIndex(doc)
	log.Info("discovered canon characters", zap.Int("count", len(ids)))
	return ids
}

// ParseIndex reads the second cell of every body row of the first sortable
// table in the article content.
func ParseIndex(doc *goquery.Document) []string {
	ids := []string{}

	content := doc.Find("div.mw-parser-output").First()
	if content.Length() == 0 {
		zap.L().Warn("discovery: main content not found")
		return ids
	}
	table := content.Find("table.sortable").First()
	if table.Length() == 0 {
		zap.L().Warn("discovery: character table not found")
		return ids
	}

	seen := make(map[string]struct{})
	table.Find("tr").Slice(1, goquery.ToEnd).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		href, ok := cells.Eq(1).Find("a[href]").First().Attr("href")
		if !ok {
			return
		}
		id, ok := IdentifierFromHref(href)
		if !ok {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	})
	return ids
}

// IdentifierFromHref converts an article link such as "/wiki/Monkey_D._Luffy"
// into its identifier. Links outside the article namespace are rejected.
func IdentifierFromHref(href string) (string, bool) {
	if !strings.HasPrefix(href, wikiPrefix) {
		return "", false
	}
	raw := strings.TrimPrefix(href, wikiPrefix)
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	id, err := url.PathUnescape(raw)
	if err != nil {
		return "", false
	}
	if id == "" || strings.Contains(id, ":") {
		return "", false
	}
	return id, true
}
