// Package export flattens the consolidated character artifact into tabular
// and YAML formats.
package export

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/wiki-scraper/internal/model"
)

// Supported formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatYAML = "yaml"
)

// SheetName is the worksheet name used for XLSX exports.
const SheetName = "Characters"

// Columns returns source_name, source_url, then every other field name
// seen in records, sorted.
func Columns(records []model.CharacterRecord) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		for k := range r {
			if k == model.FieldSourceName || k == model.FieldSourceURL {
				continue
			}
			seen[k] = struct{}{}
		}
	}
	fields := make([]string, 0, len(seen))
	for k := range seen {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return append([]string{model.FieldSourceName, model.FieldSourceURL}, fields...)
}

// Rows returns one row per record in column order. Missing fields are empty.
func Rows(records []model.CharacterRecord, columns []string) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = r[c]
		}
		rows = append(rows, row)
	}
	return rows
}

// Write encodes result to w in the given format.
func Write(w io.Writer, format string, result *model.ConsolidatedResult) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, result.Characters)
	case FormatXLSX:
		return writeXLSX(w, result.Characters)
	case FormatYAML:
		return writeYAML(w, result)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}

// WriteFile writes result to path, creating parent directories.
func WriteFile(path, format string, result *model.ConsolidatedResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: create dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := Write(f, format, result); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}

func writeCSV(w io.Writer, records []model.CharacterRecord) error {
	cols := Columns(records)
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	if err := cw.WriteAll(Rows(records, cols)); err != nil {
		return eris.Wrap(err, "export: write csv rows")
	}
	return nil
}

func writeXLSX(w io.Writer, records []model.CharacterRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	cols := Columns(records)
	addRow(sheet, cols)
	for _, row := range Rows(records, cols) {
		addRow(sheet, row)
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}

type yamlDocument struct {
	ScrapedAt      time.Time               `yaml:"scraped_at"`
	CharacterCount int                     `yaml:"character_count"`
	Characters     []model.CharacterRecord `yaml:"characters"`
}

func writeYAML(w io.Writer, result *model.ConsolidatedResult) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	doc := yamlDocument{
		ScrapedAt:      result.ScrapedAt,
		CharacterCount: result.CharacterCount,
		Characters:     result.Characters,
	}
	if err := enc.Encode(doc); err != nil {
		return eris.Wrap(err, "export: encode yaml")
	}
	return eris.Wrap(enc.Close(), "export: close yaml")
}
