package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/wiki-scraper/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "wiki-scraper",
	Short: "Batch-resumable character infobox scraper",
	Long:  "Discovers character pages on a fandom wiki, extracts selected infobox sections in checkpointed batches, and consolidates them into a single JSON artifact.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		logResolvedConfig(cmd.Name(), cfg)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// logResolvedConfig records the paths and backends this invocation uses.
// The database URL is omitted; it may carry credentials.
func logResolvedConfig(command string, c *config.Config) {
	zap.L().Debug("config resolved",
		zap.String("command", command),
		zap.String("character_list", c.Paths.CharacterList),
		zap.String("output_file", c.Paths.OutputFile),
		zap.String("failures_file", c.Paths.FailuresFile),
		zap.String("progress_dir", c.Paths.ProgressDir),
		zap.String("strategy", c.Scrape.Strategy),
		zap.String("store_driver", c.Store.Driver),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
