package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Rebuild executive and channel snapshots",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		ws, _ := cmd.Flags().GetString("workspace")
		rawDate, _ := cmd.Flags().GetString("date")

		var date *time.Time
		if rawDate != "" {
			d, err := parseDay("date", rawDate)
			if err != nil {
				return err
			}
			date = &d
		}

		env, err := initApp(ctx, "ingest")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Ingest.RebuildSnapshots(ctx, ws, date)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt %d executive and %d channel snapshots for %s\n",
			len(res.Executive), len(res.Channel), ws)
		return nil
	},
}

func init() {
	snapshotCmd.Flags().String("workspace", "", "workspace id (required)")
	snapshotCmd.Flags().String("date", "", "rebuild a single day (YYYY-MM-DD)")
	_ = snapshotCmd.MarkFlagRequired("workspace")
	rootCmd.AddCommand(snapshotCmd)
}
