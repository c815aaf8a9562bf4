package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <upload-id> [upload-id...]",
	Short: "Normalize uploads into unified metric facts",
	Long:  "Normalizes one or more uploads and rebuilds snapshots. Several ids run concurrently, limited by ingest.concurrency.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		asJSON, _ := cmd.Flags().GetBool("json")

		env, err := initApp(ctx, "ingest")
		if err != nil {
			return err
		}
		defer env.Close()

		out := cmd.OutOrStdout()
		if len(args) == 1 {
			summary, err := env.Ingest.NormalizeUpload(ctx, args[0])
			if summary != nil {
				if asJSON {
					_ = writeJSON(out, summary)
				} else {
					formatSummary(out, summary)
				}
			}
			return err
		}

		res, err := env.Ingest.NormalizeMany(ctx, args)
		if err != nil {
			return eris.Wrap(err, "normalize")
		}
		if asJSON {
			return writeJSON(out, res)
		}
		for i, item := range res.Items {
			if i > 0 {
				_, _ = fmt.Fprintln(out)
			}
			if item.Summary != nil {
				formatSummary(out, item.Summary)
			}
			if item.Error != "" {
				_, _ = fmt.Fprintf(out, "Upload %s failed: %s\n", item.UploadID, item.Error)
			}
		}
		zap.L().Info("normalize complete",
			zap.Int("succeeded", res.Succeeded),
			zap.Int("failed", res.Failed),
		)
		if res.Failed > 0 {
			return eris.Errorf("%d of %d uploads failed", res.Failed, res.Total)
		}
		return nil
	},
}

func init() {
	normalizeCmd.Flags().Bool("json", false, "print results as JSON")
	rootCmd.AddCommand(normalizeCmd)
}
