// internal/commands/ingest.go
package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"docquery/internal/ingest"
)

var ingestUserID string

// ingestCmd ingests a local file synchronously, bypassing the HTTP upload
// path. Useful for seeding an index from the command line.
var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest a local document into a tenant's namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if strings.TrimSpace(ingestUserID) == "" {
			return fmt.Errorf("--user is required")
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !currentConfig.AllowedExtensionSet()[ext] {
			return fmt.Errorf("file extension %q is not supported (allowed: %s)", ext, currentConfig.Ingest.AllowedExtensions)
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() > currentConfig.MaxUploadBytes() {
			return fmt.Errorf("file exceeds the %d MB upload limit", currentConfig.Ingest.MaxUploadMB)
		}

		comps, err := buildComponents(cmd.Context(), currentConfig)
		if err != nil {
			return err
		}
		defer comps.Close()

		fileID := uuid.NewString()
		staged, err := stageLocalFile(currentConfig.Ingest.TempDir, fileID+ext, path)
		if err != nil {
			return err
		}
		if err := comps.statuses.Create(cmd.Context(), fileID, ingestUserID, filepath.Base(path), ext); err != nil {
			os.Remove(staged)
			return err
		}

		job := ingest.Job{
			FileID:   fileID,
			Tenant:   ingestUserID,
			Filename: filepath.Base(path),
			Path:     staged,
		}
		if err := comps.pipeline.Run(cmd.Context(), job); err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}

		doc, err := comps.statuses.Get(cmd.Context(), fileID)
		if err != nil {
			return err
		}
		color.Green("ingested %s: file_id=%s chunks=%d", filepath.Base(path), fileID, doc.ChunkCount)
		return nil
	},
}

// stageLocalFile copies the source into the temp dir so the pipeline's
// cleanup never touches the caller's original file.
func stageLocalFile(tempDir, name, src string) (string, error) {
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", err
	}
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	dst := filepath.Join(tempDir, name)
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return "", err
	}
	return dst, out.Close()
}

func init() {
	ingestCmd.Flags().StringVar(&ingestUserID, "user", "", "tenant id that owns the document")
	rootCmd.AddCommand(ingestCmd)
}
