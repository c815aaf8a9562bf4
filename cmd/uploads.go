package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var uploadsCmd = &cobra.Command{
	Use:   "uploads",
	Short: "List a workspace's uploads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		ws, _ := cmd.Flags().GetString("workspace")
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		uploads, err := st.ListUploads(ctx, ws, limit)
		if err != nil {
			return eris.Wrap(err, "uploads list")
		}
		if len(uploads) == 0 {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No uploads found.")
			return nil
		}
		formatUploadsList(cmd.OutOrStdout(), uploads)
		return nil
	},
}

func init() {
	uploadsCmd.Flags().String("workspace", "", "workspace id (required)")
	uploadsCmd.Flags().Int("limit", 20, "maximum uploads to list")
	_ = uploadsCmd.MarkFlagRequired("workspace")
	rootCmd.AddCommand(uploadsCmd)
}
