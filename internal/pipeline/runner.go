// Package pipeline drives the sequential fetch, extract and checkpoint loop
// over a character work list.
package pipeline

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wiki-scraper/internal/model"
	"github.com/sells-group/wiki-scraper/internal/progress"
	"github.com/sells-group/wiki-scraper/internal/scrape"
	"github.com/sells-group/wiki-scraper/internal/store"
)

// Extractor turns a fetched page into a character record.
type Extractor interface {
	Extract(doc *goquery.Document, identifier, sourceURL string) (model.CharacterRecord, error)
}

// Options are the per-run knobs.
type Options struct {
	Delay       time.Duration
	BatchSize   int
	MaxAttempts int
	Strategy    string
}

// Runner executes one scrape run. A Runner is single use.
type Runner struct {
	fetcher   scrape.Fetcher
	extractor Extractor
	progress  *progress.Store
	store     store.Store
	opts      Options

	sleep func(ctx context.Context, d time.Duration) error
	state model.RunState
}

// New creates a Runner. st may be nil to skip the run ledger. Once Run has
// started, the runner owns fetcher and closes it exactly once.
func New(fetcher scrape.Fetcher, extractor Extractor, ps *progress.Store, st store.Store, opts Options) *Runner {
	return &Runner{
		fetcher:   fetcher,
		extractor: extractor,
		progress:  ps,
		store:     st,
		opts:      opts,
		sleep:     sleepCtx,
		state:     model.RunStateNotStarted,
	}
}

// State returns the runner's lifecycle state.
func (r *Runner) State() model.RunState { return r.state }

// Run scrapes every identifier not already present in the progress store.
// Per-character failures are recorded, never returned. The returned error is
// set for setup faults, cancellation and persistence faults; the result is
// returned alongside it whenever the loop started.
func (r *Runner) Run(ctx context.Context, identifiers []string) (*model.RunResult, error) {
	if r.state != model.RunStateNotStarted {
		return nil, eris.Errorf("pipeline: runner is %s", r.state)
	}
	if r.opts.BatchSize <= 0 {
		return nil, eris.New("pipeline: batch size must be positive")
	}

	r.state = model.RunStateRunning
	defer func() { r.state = model.RunStateFinished }()

	closed := false
	closeFetcher := func() {
		if closed {
			return
		}
		closed = true
		if err := r.fetcher.Close(); err != nil {
			zap.L().Warn("pipeline: close fetcher", zap.String("fetcher", r.fetcher.Name()), zap.Error(err))
		}
	}
	defer closeFetcher()

	start := time.Now()
	log := zap.L().With(zap.String("strategy", r.fetcher.Name()))

	if err := r.progress.Init(); err != nil {
		return nil, err
	}

	scraped, _ := r.progress.LoadScraped()
	work := progress.WorkList(identifiers, scraped)

	result := &model.RunResult{
		Requested:      len(identifiers),
		AlreadyScraped: len(scraped),
	}

	log.Info("pipeline: work list ready",
		zap.Int("total", len(identifiers)),
		zap.Int("already_scraped", len(scraped)),
		zap.Int("to_scrape", len(work)),
	)

	if len(work) == 0 {
		log.Info("pipeline: nothing to scrape, all characters already collected")
		return result, nil
	}

	runID := r.createRun(ctx)

	batchNum, err := r.progress.NextBatchNumber()
	if err != nil {
		r.finishRun(ctx, runID, result, err)
		return result, err
	}

	var (
		batch   []model.CharacterRecord
		loopErr error
	)
	flush := func() error {
		b := model.NewBatch(batchNum, batch)
		if _, err := r.progress.SaveBatch(b); err != nil {
			return err
		}
		result.BatchesWritten = append(result.BatchesWritten, batchNum)
		batchNum++
		batch = nil
		return nil
	}

	for i, id := range work {
		if err := ctx.Err(); err != nil {
			loopErr = err
			break
		}

		elapsed := time.Since(start)
		log.Info("pipeline: scraping character",
			zap.String("character", id),
			zap.Int("index", i+1),
			zap.Int("of", len(work)),
			zap.Duration("elapsed", elapsed.Round(time.Second)),
			zap.Duration("eta", eta(elapsed, i, len(work)).Round(time.Second)),
		)

		result.Attempted++
		rec, err := r.scrapeOne(ctx, id)
		switch {
		case err != nil && ctx.Err() != nil:
			result.Attempted--
			loopErr = ctx.Err()
		case err != nil:
			result.Failed++
			result.Failures = append(result.Failures, model.FailureEntry{Name: id, Reason: model.ReasonExtractionFailed})
			log.Warn("pipeline: character failed", zap.String("character", id), zap.Error(err))
		default:
			result.Succeeded++
			batch = append(batch, rec)
			log.Info("pipeline: character scraped", zap.String("character", id), zap.Int("fields", rec.FieldCount()))
		}
		if loopErr != nil {
			break
		}

		if len(batch) >= r.opts.BatchSize {
			if err := flush(); err != nil {
				loopErr = err
				break
			}
		}

		if i < len(work)-1 {
			if err := r.sleep(ctx, r.opts.Delay); err != nil {
				loopErr = err
				break
			}
		}
	}

	closeFetcher()

	if len(batch) > 0 {
		if err := flush(); err != nil && loopErr == nil {
			loopErr = err
		}
	}

	consolidated, err := r.progress.Consolidate()
	if err != nil {
		log.Error("pipeline: consolidate", zap.Error(err))
		if loopErr == nil {
			loopErr = err
		}
	} else {
		result.Consolidated = consolidated.CharacterCount
	}

	if len(result.Failures) > 0 {
		if err := r.progress.SaveFailures(result.Failures); err != nil {
			log.Error("pipeline: save failures", zap.Error(err))
			if loopErr == nil {
				loopErr = err
			}
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()
	log.Info("pipeline: scraping complete",
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Ints("batches", result.BatchesWritten),
		zap.Duration("duration", time.Since(start).Round(time.Second)),
		zap.Float64("success_rate", result.SuccessRate()*100),
	)

	if loopErr != nil {
		loopErr = eris.Wrap(loopErr, "pipeline: run interrupted")
	}
	r.finishRun(ctx, runID, result, loopErr)
	return result, loopErr
}

func (r *Runner) scrapeOne(ctx context.Context, id string) (model.CharacterRecord, error) {
	page, err := r.fetcher.Fetch(ctx, id, r.opts.MaxAttempts)
	if err != nil {
		return nil, err
	}
	return r.extractor.Extract(page.Doc, id, page.URL)
}

func (r *Runner) createRun(ctx context.Context) string {
	if r.store == nil {
		return ""
	}
	run, err := r.store.CreateRun(ctx, r.opts.Strategy)
	if err != nil {
		zap.L().Warn("pipeline: failed to create run", zap.Error(err))
		return ""
	}
	return run.ID
}

// finishRun records the outcome even when ctx has been cancelled.
func (r *Runner) finishRun(ctx context.Context, runID string, result *model.RunResult, runErr error) {
	if r.store == nil || runID == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)

	status := model.RunStatusComplete
	if runErr != nil {
		status = model.RunStatusFailed
		result.Error = runErr.Error()
	}
	if err := r.store.UpdateRunResult(ctx, runID, result); err != nil {
		zap.L().Warn("pipeline: failed to update run result", zap.String("run_id", runID), zap.Error(err))
	}
	if err := r.store.UpdateRunStatus(ctx, runID, status); err != nil {
		zap.L().Warn("pipeline: failed to update status", zap.String("run_id", runID), zap.Error(err))
	}
}

// eta estimates the remaining time from the average pace so far. done is
// the number of items already processed.
func eta(elapsed time.Duration, done, total int) time.Duration {
	if done == 0 || elapsed <= 0 {
		return 0
	}
	perItem := elapsed / time.Duration(done)
	return perItem * time.Duration(total-done)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
