// internal/commands/serve.go
package commands

import (
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"docquery/internal/logging"
	"docquery/internal/server"
)

// serveCmd runs the HTTP API until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the document ingestion and query HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		comps, err := buildComponents(ctx, currentConfig)
		if err != nil {
			return err
		}
		defer comps.Close()

		allowed := make(map[string]struct{})
		for ext := range currentConfig.AllowedExtensionSet() {
			allowed[ext] = struct{}{}
		}

		srv, err := server.New(server.Config{
			Addr:              currentConfig.ListenAddr(),
			AllowedExtensions: allowed,
			MaxUploadBytes:    currentConfig.MaxUploadBytes(),
			TempDir:           currentConfig.Ingest.TempDir,
		}, comps.pipeline, comps.engine, comps.statuses)
		if err != nil {
			return err
		}

		color.Green("docquery listening on %s (backend: %s)", currentConfig.ListenAddr(), currentConfig.VectorStore.Backend)
		err = srv.ListenAndServe(ctx)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		logging.LogEvent("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
