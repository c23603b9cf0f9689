// internal/commands/status.go
package commands

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"docquery/internal/status"
)

// statusCmd looks up one file's ingestion state straight from the status
// database, without needing the HTTP server to be running.
var statusCmd = &cobra.Command{
	Use:   "status <file-id>",
	Short: "Show the ingestion status of an uploaded file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		statuses, err := status.Open(currentConfig.Ingest.StatusDBPath)
		if err != nil {
			return err
		}
		defer statuses.Close()

		doc, err := statuses.Get(cmd.Context(), args[0])
		if errors.Is(err, status.ErrNotFound) {
			return fmt.Errorf("no document with file id %q", args[0])
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "File:     %s (%s)\n", doc.Filename, doc.FileID)
		fmt.Fprintf(cmd.OutOrStdout(), "Tenant:   %s\n", doc.Tenant)
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded: %s\n", doc.UploadedAt.Local().Format("2006-01-02 15:04:05"))
		switch doc.State {
		case status.StateComplete:
			color.Green("Status:   %s (%d chunks)", doc.State, doc.ChunkCount)
		case status.StateFailed:
			color.Red("Status:   %s — %s", doc.State, doc.Error)
		default:
			color.Yellow("Status:   %s", doc.State)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
