// internal/commands/chat.go
package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docquery/internal/tui"
)

var (
	chatServerURL string
	chatUserID    string
)

// chatCmd represents the 'chat' command, which starts an interactive query
// session against a running docquery server.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive query session",
	Long:  `The 'chat' command opens a terminal console for querying a tenant's ingested documents through a running docquery server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(chatUserID) == "" {
			return fmt.Errorf("--user is required")
		}
		serverURL := chatServerURL
		if serverURL == "" {
			serverURL = "http://" + currentConfig.ListenAddr()
		}
		return tui.StartChat(serverURL, chatUserID, currentConfig.RequestTimeout())
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatServerURL, "server", "", "base URL of the docquery server (defaults to the configured listen address)")
	chatCmd.Flags().StringVar(&chatUserID, "user", "", "tenant id to query as")
	rootCmd.AddCommand(chatCmd)
}
