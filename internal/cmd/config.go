package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/vhub/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect vhub configuration",
	Long: `Inspect the effective vhub configuration.

Settings come from ~/.vhub/config.yaml (or --config), a .env file in the
current directory, and VHUB_* environment variables, e.g. VHUB_API_URL or
VHUB_STORE_BACKEND.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Display the effective configuration",
	RunE:  runConfigView,
}

var configPathCmd = &cobra.Command{
	Use:         "path",
	Short:       "Show the default configuration directory",
	Annotations: map[string]string{skipConfig: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return render(cmd, config.Dir())
	},
}

func init() {
	configCmd.AddCommand(configViewCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigView(cmd *cobra.Command, args []string) error {
	rt, err := runtimeFor(cmd)
	if err != nil {
		return err
	}
	return render(cmd, rt.cfg.Redacted())
}
