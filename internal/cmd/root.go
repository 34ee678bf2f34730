package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/vhub/internal/ux"
)

// Command annotations read by setup.
const (
	// needsSession marks commands that open the credential store and hydrate a session.
	needsSession = "vhub/needs-session"
	// skipConfig marks commands that must work even with a broken configuration.
	skipConfig = "vhub/skip-config"
)

var rootCmd = &cobra.Command{
	Use:   "vhub",
	Short: "Volunteer Hub session client",
	Long: `vhub signs you in to Volunteer Hub and keeps your credentials consistent.

It stores the token and user record issued at login, attaches the token to
every API request, and signs you out automatically when the server rejects it.
Route commands show which screens your current role may open.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return teardown(cmd, nil)
	},
}

// ExecuteContext runs the root command with ctx, which commands pass to every
// network and store call.
func ExecuteContext(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		// PersistentPostRunE is skipped when RunE fails.
		_ = teardown(rootCmd, err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default is $HOME/.vhub/config.yaml)")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "output format (text, json, yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error); overrides log.level")
	rootCmd.PersistentFlags().String("metrics-textfile", "", "write Prometheus metrics to this file after the command")

	_ = rootCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return ux.Formats, cobra.ShellCompDirectiveNoFileComp
	})
}
