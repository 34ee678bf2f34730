package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/vhub/internal/ux"
)

// render writes data in the --format the user asked for.
func render(cmd *cobra.Command, data interface{}) error {
	format, _ := cmd.Flags().GetString("format")
	noColor, _ := cmd.Flags().GetBool("no-color")

	formatter, err := ux.NewFormatter(format, &ux.FormatterOptions{
		Writer:  cmd.OutOrStdout(),
		NoColor: noColor,
	})
	if err != nil {
		return ux.EnhanceError(err)
	}
	return formatter.Format(data)
}
