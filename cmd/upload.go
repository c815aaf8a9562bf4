package main

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Store and classify an export file",
	Long:  "Copies the file into the storage directory, classifies it and registers a PENDING upload. With --normalize the upload is normalized right away.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ws, _ := cmd.Flags().GetString("workspace")
		normalize, _ := cmd.Flags().GetBool("normalize")

		env, err := initApp(ctx, "ingest")
		if err != nil {
			return err
		}
		defer env.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[0])
		}
		defer f.Close() //nolint:errcheck

		u, err := env.Ingest.Intake(ctx, ws, filepath.Base(args[0]), f)
		if err != nil {
			return err
		}
		if !normalize {
			return writeJSON(cmd.OutOrStdout(), u)
		}

		summary, err := env.Ingest.NormalizeUpload(ctx, u.ID)
		if summary != nil {
			formatSummary(cmd.OutOrStdout(), summary)
		}
		return err
	},
}

func init() {
	uploadCmd.Flags().String("workspace", "", "workspace id (required)")
	uploadCmd.Flags().Bool("normalize", false, "normalize after upload")
	_ = uploadCmd.MarkFlagRequired("workspace")
	rootCmd.AddCommand(uploadCmd)
}
