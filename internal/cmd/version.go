package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/vhub/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print version information including version number, git commit,
build date, Go version, and platform.`,
	Annotations: map[string]string{skipConfig: "true"},
	RunE:        runVersion,
}

var versionShort bool

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print the version number only")

	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := version.GetInfo()
	if versionShort {
		return render(cmd, info.Short())
	}
	return render(cmd, info)
}
