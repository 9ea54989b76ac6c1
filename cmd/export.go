package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/wiki-scraper/internal/export"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the consolidated output as CSV, XLSX or YAML",
	RunE: func(_ *cobra.Command, _ []string) error {
		res, err := initProgress().LoadConsolidated()
		if err != nil {
			return err
		}
		if res == nil {
			return eris.Errorf("no consolidated output at %s, run scrape or consolidate first", cfg.Paths.OutputFile)
		}

		if exportOutput == "" || exportOutput == "-" {
			return export.Write(os.Stdout, exportFormat, res)
		}
		if err := export.WriteFile(exportOutput, exportFormat, res); err != nil {
			return err
		}
		zap.L().Info("export complete",
			zap.String("format", exportFormat),
			zap.Int("characters", res.CharacterCount),
			zap.String("path", exportOutput),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", export.FormatCSV, "output format (csv, xlsx, yaml)")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "output path (default stdout)")
	rootCmd.AddCommand(exportCmd)
}
