package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Rebuild the consolidated output from batch files",
	RunE: func(_ *cobra.Command, _ []string) error {
		ps := initProgress()
		if err := ps.Init(); err != nil {
			return err
		}
		res, err := ps.Consolidate()
		if err != nil {
			return err
		}
		zap.L().Info("consolidation complete",
			zap.Int("characters", res.CharacterCount),
			zap.String("path", ps.OutputFile()),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(consolidateCmd)
}
