package main

import (
	"time"

	"github.com/spf13/cobra"
)

// periodFlags reads --workspace, --start and --end.
func periodFlags(cmd *cobra.Command) (ws string, start, end time.Time, err error) {
	ws, _ = cmd.Flags().GetString("workspace")
	rawStart, _ := cmd.Flags().GetString("start")
	rawEnd, _ := cmd.Flags().GetString("end")
	if start, err = parseDay("start", rawStart); err != nil {
		return ws, start, end, err
	}
	if end, err = parseDay("end", rawEnd); err != nil {
		return ws, start, end, err
	}
	return ws, start, end, nil
}

func addPeriodFlags(cmd *cobra.Command) {
	cmd.Flags().String("workspace", "", "workspace id (required)")
	cmd.Flags().String("start", "", "period start (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "period end, inclusive (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("workspace")
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Compare a period with the one before it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		ws, start, end, err := periodFlags(cmd)
		if err != nil {
			return err
		}

		env, err := initApp(ctx, "ingest")
		if err != nil {
			return err
		}
		defer env.Close()

		insights, err := env.Insights.Generate(ctx, ws, start, end)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), insights)
	},
}

var narrativeCmd = &cobra.Command{
	Use:   "narrative",
	Short: "Render the Indonesian narrative for a period",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		asJSON, _ := cmd.Flags().GetBool("json")
		ws, start, end, err := periodFlags(cmd)
		if err != nil {
			return err
		}

		env, err := initApp(ctx, "ingest")
		if err != nil {
			return err
		}
		defer env.Close()

		out, err := env.Narrator.Narrate(ctx, ws, start, end)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), out)
		}

		formatNarrative(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	addPeriodFlags(insightsCmd)
	addPeriodFlags(narrativeCmd)
	narrativeCmd.Flags().Bool("json", false, "print the narrative as JSON")
	rootCmd.AddCommand(insightsCmd, narrativeCmd)
}
