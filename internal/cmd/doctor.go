package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/vhub/internal/health"
	"github.com/felixgeelhaar/vhub/internal/ux"
)

var doctorCmd = &cobra.Command{
	Use:         "doctor",
	Short:       "Check the credential store, the API and the session",
	Annotations: map[string]string{needsSession: "true"},
	Long: `Run diagnostics against everything a vhub session depends on.

Checks include:
  - credential store readability and consistency of the stored pair
  - reachability of the Volunteer Hub API (api.url)
  - the hydrated session and, for JWTs, the token's expiry

Exits non-zero when a check is unhealthy.

Examples:
  vhub doctor
  vhub doctor --format json`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().Duration("timeout", 5*time.Second, "timeout for each check")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	rt, err := runtimeFor(cmd)
	if err != nil {
		return err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	manager := health.NewManager().WithTimeout(timeout)
	manager.AddChecker(health.NewStoreChecker(rt.store, rt.cfg.Store.Backend))
	manager.AddChecker(health.NewAPIChecker(rt.cfg.API.URL, nil))
	manager.AddChecker(health.NewSessionChecker(rt.session.Snapshot))

	report := manager.Run(cmd.Context())
	for _, c := range report.Checks {
		rt.logger.Debug("health check", "name", c.Name, "status", c.Status.String(), "latency", c.Latency.String())
	}

	if err := render(cmd, doctorView{*report}); err != nil {
		return err
	}
	if !report.Healthy() {
		return fmt.Errorf("doctor: %s", report.Status)
	}
	return nil
}

type doctorView struct {
	health.Report `yaml:",inline"`
}

func (v doctorView) Text(s *ux.Styles) string {
	var b strings.Builder

	for _, c := range v.Checks {
		var mark string
		switch c.Status {
		case health.StatusHealthy:
			mark = s.Render(ux.SuccessStyle, "ok  ")
		case health.StatusDegraded:
			mark = s.Render(ux.WarningStyle, "warn")
		default:
			mark = s.Render(ux.ErrorStyle, "fail")
		}
		fmt.Fprintf(&b, "%s %s: %s\n", mark, s.Render(ux.LabelStyle, c.Name), c.Message)

		keys := make([]string, 0, len(c.Details))
		for k := range c.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "       %s\n", s.Render(ux.MutedStyle, fmt.Sprintf("%s: %v", k, c.Details[k])))
		}
	}

	fmt.Fprintf(&b, "\n%s %s\n", s.Render(ux.TitleStyle, "Overall:"), v.Status)
	return b.String()
}
