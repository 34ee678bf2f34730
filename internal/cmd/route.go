package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/vhub/internal/guard"
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Inspect screen access rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var routeCheckCmd = &cobra.Command{
	Use:         "check <path>",
	Short:       "Show whether the current session may open a screen",
	Annotations: map[string]string{needsSession: "true"},
	Long: `Resolve a location against the Volunteer Hub route table and apply the
route guard to the stored session.

Examples:
  vhub route check /admin/users
  vhub route check "/opportunities/42?tab=reviews" --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runRouteCheck,
}

var routeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List routes and their access requirements",
	Args:  cobra.NoArgs,
	RunE:  runRouteList,
}

func init() {
	routeCmd.AddCommand(routeCheckCmd, routeListCmd)
	rootCmd.AddCommand(routeCmd)
}

func runRouteCheck(cmd *cobra.Command, args []string) error {
	rt, err := runtimeFor(cmd)
	if err != nil {
		return err
	}

	snap := rt.session.Snapshot()
	res := rt.routes.Follow(rt.location, snap, args[0])
	rt.logger.Debug("route checked",
		"location", args[0], "decision", res.Decision.String(), "now_at", rt.location.Current())

	return render(cmd, routeCheckView{Result: res, Role: snap.Role().String()})
}

func runRouteList(cmd *cobra.Command, args []string) error {
	routes := guard.DefaultRoutes()
	view := routeListView{Routes: make([]routeRow, 0, len(routes))}
	for _, r := range routes {
		view.Routes = append(view.Routes, routeRow{Path: r.Path, Requirement: guard.RequirementOf(r)})
	}
	return render(cmd, view)
}
