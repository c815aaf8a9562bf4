package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/marketlens/internal/classify"
	"github.com/sells-group/marketlens/internal/fetcher"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <file>",
	Short: "Guess platform, report type and granularity of an export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		guess := classify.DetectFileContext(cmd.Context(), path, fetcher.FileTypeFromName(path))
		return writeJSON(cmd.OutOrStdout(), guess)
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
