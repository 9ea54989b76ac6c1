// Package extract parses the portable infobox of a character page into a
// flat record.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/wiki-scraper/internal/model"
)

// DefaultSections are the infobox sections read when none are configured.
var DefaultSections = []string{"Statistics", "Portrayal"}

var (
	ErrNoPage    = eris.New("extract: no page")
	ErrNoInfobox = eris.New("extract: no infobox")
	ErrNoFields  = eris.New("extract: no fields")
)

// Extractor reads key/value pairs from a fixed set of infobox sections.
type Extractor struct {
	sections map[string]struct{}
}

// New creates an Extractor for the given section titles.
func New(sections []string) *Extractor {
	if len(sections) == 0 {
		sections = DefaultSections
	}
	set := make(map[string]struct{}, len(sections))
	for _, s := range sections {
		set[strings.TrimSpace(s)] = struct{}{}
	}
	return &Extractor{sections: set}
}

// Extract returns the record for one character page. Pages without an
// infobox, or whose target sections yield nothing, are errors.
func (e *Extractor) Extract(doc *goquery.Document, identifier, sourceURL string) (model.CharacterRecord, error) {
	if doc == nil {
		return nil, ErrNoPage
	}

	infobox := doc.Find("aside.portable-infobox").First()
	if infobox.Length() == 0 {
		return nil, ErrNoInfobox
	}

	rec := model.NewCharacterRecord(identifier, sourceURL)

	infobox.Find("h2.pi-header").Each(func(_ int, header *goquery.Selection) {
		if _, ok := e.sections[normalize(header.Text())]; !ok {
			return
		}
		for sib := header.Next(); sib.Length() > 0; sib = sib.Next() {
			if goquery.NodeName(sib) == "h2" && sib.HasClass("pi-header") {
				break
			}
			if goquery.NodeName(sib) != "div" || !sib.HasClass("pi-item") {
				continue
			}
			label := sib.Find("h3.pi-data-label").First()
			value := sib.Find("div.pi-data-value").First()
			if label.Length() == 0 || value.Length() == 0 {
				continue
			}
			key := strings.TrimSpace(strings.ReplaceAll(text(label), ":", ""))
			if key == "" || key == model.FieldSourceName || key == model.FieldSourceURL {
				continue
			}
			rec[key] = text(value)
		}
	})

	if !rec.Valid() {
		return nil, ErrNoFields
	}
	return rec, nil
}

// text returns the selection's text with line breaks treated as spaces and
// runs of whitespace collapsed.
func text(sel *goquery.Selection) string {
	c := sel.Clone()
	c.Find("br").ReplaceWithHtml(" ")
	return normalize(c.Text())
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
