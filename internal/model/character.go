package model

import (
	"bytes"
	"encoding/json"
	"slices"
	"time"
)

// Reserved CharacterRecord keys. Every record carries both.
const (
	FieldSourceName = "source_name"
	FieldSourceURL  = "source_url"
)

// ReasonExtractionFailed is the failure reason recorded for any character
// that could not be fetched or parsed.
const ReasonExtractionFailed = "Extraction failed"

// CharacterRecord is a flat field-name to field-value mapping extracted from a
// character's infobox, plus the two source metadata fields.
type CharacterRecord map[string]string

// NewCharacterRecord seeds a record with its source metadata.
func NewCharacterRecord(name, sourceURL string) CharacterRecord {
	return CharacterRecord{
		FieldSourceName: name,
		FieldSourceURL:  sourceURL,
	}
}

// SourceName returns the identifier the record was scraped for.
func (r CharacterRecord) SourceName() string { return r[FieldSourceName] }

// SourceURL returns the page the record was scraped from.
func (r CharacterRecord) SourceURL() string { return r[FieldSourceURL] }

// FieldCount returns the number of extracted fields, excluding metadata.
func (r CharacterRecord) FieldCount() int {
	n := len(r)
	if _, ok := r[FieldSourceName]; ok {
		n--
	}
	if _, ok := r[FieldSourceURL]; ok {
		n--
	}
	return n
}

// Valid reports whether the record holds at least one field beyond metadata.
func (r CharacterRecord) Valid() bool {
	return r.FieldCount() > 0
}

// MarshalJSON writes source_name and source_url ahead of the extracted
// fields, which follow in key order. HTML characters are left unescaped.
func (r CharacterRecord) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}

	keys := make([]string, 0, len(r))
	for k := range r {
		if k != FieldSourceName && k != FieldSourceURL {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range []string{FieldSourceURL, FieldSourceName} {
		if _, ok := r[k]; ok {
			keys = slices.Insert(keys, 0, k)
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := enc.Encode(k); err != nil {
			return nil, err
		}
		trimNewline(&buf)
		buf.WriteByte(':')
		if err := enc.Encode(r[k]); err != nil {
			return nil, err
		}
		trimNewline(&buf)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// trimNewline drops the newline json.Encoder appends after each value.
func trimNewline(buf *bytes.Buffer) {
	buf.Truncate(buf.Len() - 1)
}

// Batch is one durably persisted chunk of scrape results.
type Batch struct {
	ScrapedAt      time.Time         `json:"scraped_at"`
	BatchNumber    int               `json:"batch_number"`
	CharacterCount int               `json:"character_count"`
	Characters     []CharacterRecord `json:"characters"`
}

// NewBatch builds a batch stamped with the current time.
func NewBatch(number int, characters []CharacterRecord) Batch {
	return Batch{
		ScrapedAt:      time.Now(),
		BatchNumber:    number,
		CharacterCount: len(characters),
		Characters:     characters,
	}
}

// ConsolidatedResult is the concatenation of every batch, in batch order.
type ConsolidatedResult struct {
	ScrapedAt      time.Time         `json:"scraped_at"`
	CharacterCount int               `json:"character_count"`
	Characters     []CharacterRecord `json:"characters"`
}

// FailureEntry records a character that could not be scraped.
type FailureEntry struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}
