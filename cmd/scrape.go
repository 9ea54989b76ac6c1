package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/wiki-scraper/internal/extract"
	"github.com/sells-group/wiki-scraper/internal/pipeline"
	"github.com/sells-group/wiki-scraper/internal/progress"
	"github.com/sells-group/wiki-scraper/internal/scrape"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape every character in the identifier list not yet collected",
	Long:  "Fetches each remaining character page, extracts the configured infobox sections, checkpoints successes in numbered batch files and rebuilds the consolidated output. Interrupted runs resume where they stopped.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := applyScrapeFlags(cmd); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		input, _ := cmd.Flags().GetString("input")
		if input == "" {
			input = cfg.Paths.CharacterList
		}
		if _, err := os.Stat(input); err != nil {
			return eris.Wrapf(err, "character list not found at %s, run discover first", input)
		}
		identifiers, err := progress.ReadIdentifiers(input)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		fetcher, err := scrape.New(cfg.Scrape.Strategy, scrape.OptionsFromConfig(cfg))
		if err != nil {
			return eris.Wrap(err, "init fetcher")
		}
		defer fetcher.Close() //nolint:errcheck

		runner := pipeline.New(
			fetcher,
			extract.New(cfg.Wiki.TargetSections),
			initProgress(),
			st,
			pipeline.Options{
				Delay:       cfg.Scrape.Delay,
				BatchSize:   cfg.Scrape.BatchSize,
				MaxAttempts: cfg.Scrape.MaxAttempts,
				Strategy:    cfg.Scrape.Strategy,
			},
		)

		result, err := runner.Run(ctx, identifiers)
		if result != nil {
			zap.L().Info("scrape finished",
				zap.Int("succeeded", result.Succeeded),
				zap.Int("failed", result.Failed),
				zap.Int("consolidated", result.Consolidated),
				zap.Ints("batches", result.BatchesWritten),
			)
		}
		return err
	},
}

// applyScrapeFlags copies explicitly set flags over the loaded config.
func applyScrapeFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("delay") {
		d, err := flags.GetDuration("delay")
		if err != nil {
			return err
		}
		cfg.Scrape.Delay = d
	}
	if flags.Changed("batch-size") {
		n, err := flags.GetInt("batch-size")
		if err != nil {
			return err
		}
		cfg.Scrape.BatchSize = n
	}
	if flags.Changed("max-attempts") {
		n, err := flags.GetInt("max-attempts")
		if err != nil {
			return err
		}
		cfg.Scrape.MaxAttempts = n
	}
	if flags.Changed("strategy") {
		s, err := flags.GetString("strategy")
		if err != nil {
			return err
		}
		cfg.Scrape.Strategy = s
	}
	if flags.Changed("headless") {
		h, err := flags.GetBool("headless")
		if err != nil {
			return err
		}
		cfg.Browser.Headless = h
	}
	return nil
}

func init() {
	scrapeCmd.Flags().Duration("delay", 3*time.Second, "pause between character requests")
	scrapeCmd.Flags().Int("batch-size", 50, "successful records per checkpoint file")
	scrapeCmd.Flags().Int("max-attempts", 3, "fetch attempts per character")
	scrapeCmd.Flags().String("strategy", "http", "fetch strategy (http, browser, auto)")
	scrapeCmd.Flags().Bool("headless", true, "run the browser without a window")
	scrapeCmd.Flags().String("input", "", "identifier list path (default from config)")
	rootCmd.AddCommand(scrapeCmd)
}
