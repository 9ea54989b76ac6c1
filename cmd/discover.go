package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/wiki-scraper/internal/discovery"
	"github.com/sells-group/wiki-scraper/internal/progress"
	"github.com/sells-group/wiki-scraper/internal/scrape"
)

var discoverOutput string

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover character identifiers from the canon character index",
	Long:  "Fetches the canon character index page once and writes one character identifier per line. Fetch failures produce an empty list, which never replaces an existing non-empty list.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client := scrape.NewClient(cfg.Wiki.UserAgent, cfg.Scrape.DiscoveryTimeout, cfg.Scrape.CloudflareBypass)
		ids := discovery.New(client, cfg.Wiki.IndexURL).Discover(ctx)

		out := discoverOutput
		if out == "" {
			out = cfg.Paths.CharacterList
		}
		return writeDiscovered(out, ids)
	},
}

// writeDiscovered saves the identifier list. An empty result leaves an
// existing non-empty list in place and reports an error.
func writeDiscovered(out string, ids []string) error {
	if len(ids) == 0 {
		if existing, err := progress.ReadIdentifiers(out); err == nil && len(existing) > 0 {
			zap.L().Warn("discovery found no characters; keeping existing list",
				zap.String("path", out),
				zap.Int("existing", len(existing)),
			)
			return eris.Errorf("discover: no characters found; kept %d existing identifiers in %s", len(existing), out)
		}
	}

	if err := progress.WriteIdentifiers(out, ids); err != nil {
		return err
	}

	zap.L().Info("discovery complete",
		zap.Int("characters", len(ids)),
		zap.String("path", out),
	)
	return nil
}

func init() {
	discoverCmd.Flags().StringVar(&discoverOutput, "output", "", "identifier list path (default from config)")
	rootCmd.AddCommand(discoverCmd)
}
