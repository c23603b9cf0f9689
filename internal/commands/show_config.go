// internal/commands/show_config.go
package commands

import (
	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"docquery/internal/appconfig"
)

// configCmd displays the effective configuration after file, flag, and
// default merging.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long:  `Show the configuration the service would run with, after the config file, flags, and defaults are merged. API keys are reported as set or missing, never printed.`,
	Run: func(cmd *cobra.Command, args []string) {
		appconfig.ShowConfig(cmd.OutOrStdout(), viper.ConfigFileUsed(), currentConfig)
		if currentConfig != nil && currentConfig.Debug {
			pp.Println(currentConfig)
		}
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
