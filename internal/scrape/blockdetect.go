package scrape

import (
	"bytes"
	"fmt"
	"net/http"
)

// BlockType describes the kind of block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockChallenge  BlockType = "challenge"
	BlockCloudflare BlockType = "cloudflare"
	BlockStub       BlockType = "stub"
)

// BlockRules are the heuristics for recognising a bot-challenge page.
type BlockRules struct {
	// MinBytes is the smallest body accepted as a real article.
	MinBytes int
	// Marker is a string only the challenge interstitial contains.
	Marker string
}

// BlockError is returned when a response looks like a challenge or stub page.
type BlockError struct {
	Type BlockType
	Size int
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("blocked (%s, %d bytes)", e.Type, e.Size)
}

// DetectBlock checks a page for signs of anti-bot protection. resp may be
// nil when the body did not come from an HTTP response (browser strategy).
func DetectBlock(resp *http.Response, body []byte, rules BlockRules) (bool, BlockType) {
	if rules.Marker != "" && bytes.Contains(body, []byte(rules.Marker)) {
		return true, BlockChallenge
	}

	// Cloudflare: 403/503 with cf-* headers.
	if resp != nil && (resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable) {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("cf-mitigated") != "" || resp.Header.Get("server") == "cloudflare" {
			return true, BlockCloudflare
		}
	}

	if len(body) < rules.MinBytes {
		return true, BlockStub
	}

	return false, BlockNone
}

func checkBlock(resp *http.Response, body []byte, rules BlockRules) error {
	if blocked, bt := DetectBlock(resp, body, rules); blocked {
		return &BlockError{Type: bt, Size: len(body)}
	}
	return nil
}
