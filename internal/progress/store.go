// Package progress persists scrape results as append-only batch files and
// rebuilds the consolidated and failures artifacts from them.
package progress

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wiki-scraper/internal/config"
	"github.com/sells-group/wiki-scraper/internal/model"
)

var batchNameRe = regexp.MustCompile(`^batch_(\d+)\.json$`)

// BatchFileName returns the file name for a batch number.
func BatchFileName(number int) string {
	return fmt.Sprintf("batch_%04d.json", number)
}

// Store owns the progress directory and the output artifacts.
type Store struct {
	dir          string
	outputFile   string
	failuresFile string
}

// New creates a Store over the configured artifact paths.
func New(paths config.PathsConfig) *Store {
	return &Store{
		dir:          paths.ProgressDir,
		outputFile:   paths.OutputFile,
		failuresFile: paths.FailuresFile,
	}
}

// Dir returns the progress directory.
func (s *Store) Dir() string { return s.dir }

// OutputFile returns the consolidated artifact path.
func (s *Store) OutputFile() string { return s.outputFile }

// FailuresFile returns the failures artifact path.
func (s *Store) FailuresFile() string { return s.failuresFile }

// Init creates the progress directory and the output file's parent.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return eris.Wrapf(err, "progress: create %s", s.dir)
	}
	if dir := filepath.Dir(s.outputFile); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "progress: create %s", dir)
		}
	}
	return nil
}

// recordFile is the subset of batch and consolidated files needed to
// recover identifiers and records.
type recordFile struct {
	Characters []model.CharacterRecord `json:"characters"`
}

// LoadScraped returns the identifiers present in any progress file or in the
// consolidated artifact. Files that cannot be read are skipped and reported
// as warnings.
func (s *Store) LoadScraped() (map[string]struct{}, []error) {
	scraped := make(map[string]struct{})
	var warnings []error

	add := func(path string) {
		var rf recordFile
		if err := readJSON(path, &rf); err != nil {
			zap.L().Warn("progress: skipping unreadable file", zap.String("path", path), zap.Error(err))
			warnings = append(warnings, err)
			return
		}
		for _, c := range rf.Characters {
			if name := c.SourceName(); name != "" {
				scraped[name] = struct{}{}
			}
		}
	}

	files, err := s.jsonFiles()
	if err != nil {
		warnings = append(warnings, err)
	}
	for _, f := range files {
		add(f)
	}
	if exists(s.outputFile) {
		add(s.outputFile)
	}
	return scraped, warnings
}

// jsonFiles lists *.json files in the progress directory in name order. A
// missing directory is empty.
func (s *Store) jsonFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "progress: list %s", s.dir)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(s.dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// batchFile is a batch file path paired with its number.
type batchFile struct {
	number int
	path   string
}

// batchFiles lists the batch files in the progress directory by ascending
// number. Other JSON files in the directory are ignored.
func (s *Store) batchFiles() ([]batchFile, error) {
	files, err := s.jsonFiles()
	if err != nil {
		return nil, err
	}
	var out []batchFile
	for _, f := range files {
		m := batchNameRe.FindStringSubmatch(filepath.Base(f))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, batchFile{number: n, path: f})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].number < out[j].number })
	return out, nil
}

// BatchNumbers returns the numbers of the batch files present, ascending.
func (s *Store) BatchNumbers() ([]int, error) {
	files, err := s.batchFiles()
	if err != nil {
		return nil, err
	}
	nums := make([]int, 0, len(files))
	for _, f := range files {
		nums = append(nums, f.number)
	}
	return nums, nil
}

// NextBatchNumber returns one more than the highest existing batch number,
// or 1 for an empty directory.
func (s *Store) NextBatchNumber() (int, error) {
	nums, err := s.BatchNumbers()
	if err != nil {
		return 0, err
	}
	if len(nums) == 0 {
		return 1, nil
	}
	return nums[len(nums)-1] + 1, nil
}

// SaveBatch persists a batch. Existing batch files are never overwritten.
func (s *Store) SaveBatch(b model.Batch) (string, error) {
	path := filepath.Join(s.dir, BatchFileName(b.BatchNumber))
	if exists(path) {
		return "", eris.Errorf("progress: batch %d already exists", b.BatchNumber)
	}
	if err := writeJSON(path, b); err != nil {
		return "", err
	}
	zap.L().Info("saved batch",
		zap.Int("batch", b.BatchNumber),
		zap.Int("characters", b.CharacterCount),
		zap.String("path", path),
	)
	return path, nil
}

// LoadBatch reads one batch file by number.
func (s *Store) LoadBatch(number int) (*model.Batch, error) {
	var b model.Batch
	if err := readJSON(filepath.Join(s.dir, BatchFileName(number)), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Consolidate rebuilds the consolidated artifact from the batch files in
// batch-number order. Unreadable batches contribute nothing and are logged.
func (s *Store) Consolidate() (*model.ConsolidatedResult, error) {
	files, err := s.batchFiles()
	if err != nil {
		return nil, err
	}

	all := make([]model.CharacterRecord, 0)
	for _, f := range files {
		var rf recordFile
		if err := readJSON(f.path, &rf); err != nil {
			zap.L().Warn("progress: skipping unreadable batch", zap.String("path", f.path), zap.Error(err))
			continue
		}
		all = append(all, rf.Characters...)
	}

	result := &model.ConsolidatedResult{
		ScrapedAt:      time.Now(),
		CharacterCount: len(all),
		Characters:     all,
	}
	if err := writeJSON(s.outputFile, result); err != nil {
		return nil, err
	}

	zap.L().Info("consolidated characters",
		zap.Int("characters", result.CharacterCount),
		zap.Int("files", len(files)),
		zap.String("path", s.outputFile),
	)
	return result, nil
}

// LoadConsolidated reads the consolidated artifact. It returns nil without
// error when none has been written yet.
func (s *Store) LoadConsolidated() (*model.ConsolidatedResult, error) {
	if !exists(s.outputFile) {
		return nil, nil
	}
	var r model.ConsolidatedResult
	if err := readJSON(s.outputFile, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// SaveFailures overwrites the failures artifact.
func (s *Store) SaveFailures(failures []model.FailureEntry) error {
	if err := writeJSON(s.failuresFile, failures); err != nil {
		return err
	}
	zap.L().Info("saved failures", zap.Int("count", len(failures)), zap.String("path", s.failuresFile))
	return nil
}

// LoadFailures reads the failures artifact. A missing artifact is empty.
func (s *Store) LoadFailures() ([]model.FailureEntry, error) {
	if !exists(s.failuresFile) {
		return nil, nil
	}
	var failures []model.FailureEntry
	if err := readJSON(s.failuresFile, &failures); err != nil {
		return nil, err
	}
	return failures, nil
}

// WorkList returns the requested identifiers not yet scraped, in input order.
// Duplicates in the input are kept once.
func WorkList(requested []string, scraped map[string]struct{}) []string {
	out := make([]string, 0, len(requested))
	seen := make(map[string]struct{}, len(requested))
	for _, id := range requested {
		if _, done := scraped[id]; done {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
