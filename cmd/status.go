package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/wiki-scraper/internal/progress"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show scrape progress against the identifier list",
	RunE: func(_ *cobra.Command, _ []string) error {
		var requested []string
		if _, err := os.Stat(cfg.Paths.CharacterList); err == nil {
			ids, err := progress.ReadIdentifiers(cfg.Paths.CharacterList)
			if err != nil {
				return err
			}
			requested = ids
		} else {
			fmt.Fprintf(os.Stderr, "No identifier list at %s.\n", cfg.Paths.CharacterList)
		}

		sum, err := initProgress().Summarize(requested)
		if err != nil {
			return err
		}
		formatSummary(os.Stdout, sum)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// formatSummary writes a progress summary to w.
func formatSummary(out io.Writer, s *progress.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Characters listed:\t%d\n", s.Requested)
	_, _ = fmt.Fprintf(w, "Already scraped:\t%d\n", s.Scraped)
	_, _ = fmt.Fprintf(w, "Remaining:\t%d\n", s.Remaining)
	_, _ = fmt.Fprintf(w, "Batch files:\t%d\n", s.BatchFiles)
	_, _ = fmt.Fprintf(w, "Consolidated:\t%d\n", s.Consolidated)
	_, _ = fmt.Fprintf(w, "Failures:\t%d\n", s.Failures)
	if s.Warnings > 0 {
		_, _ = fmt.Fprintf(w, "Unreadable files:\t%d\n", s.Warnings)
	}
	_ = w.Flush()
}
