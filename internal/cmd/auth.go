package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/vhub/internal/identity"
	"github.com/felixgeelhaar/vhub/internal/session"
	"github.com/felixgeelhaar/vhub/internal/ux"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Volunteer Hub credentials",
	Long: `Manage the credentials vhub uses for the Volunteer Hub API.

The token and user record issued at login are kept in the configured
credential store (~/.vhub/credentials.json by default).

Examples:
  vhub auth register --email ada@example.org --password s3cret --full-name "Ada Lovelace"
  vhub auth login --email ada@example.org
  vhub auth status --verify
  vhub auth logout`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var authLoginCmd = &cobra.Command{
	Use:         "login",
	Short:       "Login with email and password",
	Annotations: map[string]string{needsSession: "true"},
	Long: `Login to Volunteer Hub. Missing email or password is prompted for when
running in a terminal.

Examples:
  vhub auth login --email ada@example.org --password s3cret`,
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:         "logout",
	Short:       "Logout and remove stored credentials",
	Annotations: map[string]string{needsSession: "true"},
	RunE:        runAuthLogout,
}

var authRegisterCmd = &cobra.Command{
	Use:         "register",
	Short:       "Register a new account",
	Annotations: map[string]string{needsSession: "true"},
	Long: `Register a new Volunteer Hub account. Registration does not log you in;
run 'vhub auth login' afterwards.

Examples:
  vhub auth register --email org@example.org --password s3cret --full-name "Food Bank" --role organization`,
	RunE: runAuthRegister,
}

var authStatusCmd = &cobra.Command{
	Use:         "status",
	Short:       "Show the current session",
	Annotations: map[string]string{needsSession: "true"},
	Long: `Show the stored session. With --verify the token is checked against
the API; a rejected token is cleared and you are logged out.`,
	RunE: runAuthStatus,
}

func init() {
	authLoginCmd.Flags().String("email", "", "email address")
	authLoginCmd.Flags().String("password", "", "password")

	authRegisterCmd.Flags().String("email", "", "email address (required)")
	authRegisterCmd.Flags().String("password", "", "password (required)")
	authRegisterCmd.Flags().String("full-name", "", "full name (required)")
	authRegisterCmd.Flags().String("role", string(identity.RoleVolunteer), "account type (volunteer, organization)")
	_ = authRegisterCmd.MarkFlagRequired("email")
	_ = authRegisterCmd.MarkFlagRequired("password")
	_ = authRegisterCmd.MarkFlagRequired("full-name")

	authStatusCmd.Flags().Bool("verify", false, "check the token against the API")

	authCmd.AddCommand(authLoginCmd, authLogoutCmd, authRegisterCmd, authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	rt, err := runtimeFor(cmd)
	if err != nil {
		return err
	}

	if snap := rt.session.Snapshot(); snap.Authenticated() && isTerminal(os.Stdin) {
		msg := fmt.Sprintf("Already logged in as %s. Replace the current session?", snap.User.Email)
		if !ux.Confirm(msg, false, nil) {
			return render(cmd, "Login cancelled.")
		}
	}

	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")

	if email == "" || password == "" {
		if !isTerminal(os.Stdin) {
			return ux.NewErrorWithSuggestion(fmt.Errorf("--email and --password are required"),
				"Pass both flags when not running in a terminal")
		}
		if err := ux.PromptCredentials(&email, &password, nil); err != nil {
			return fmt.Errorf("login cancelled: %w", err)
		}
	}

	user, err := rt.session.Login(cmd.Context(), strings.TrimSpace(email), password)
	if err != nil {
		return err
	}

	return render(cmd, newStatusView(rt, rt.session.State(), rt.session.Snapshot(), user))
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	rt, err := runtimeFor(cmd)
	if err != nil {
		return err
	}

	wasAuthenticated := rt.session.State() == session.StateAuthenticated
	if err := rt.session.Logout(cmd.Context()); err != nil {
		return err
	}

	if wasAuthenticated {
		return render(cmd, "Logged out.")
	}
	return render(cmd, "Not logged in.")
}

func runAuthRegister(cmd *cobra.Command, args []string) error {
	rt, err := runtimeFor(cmd)
	if err != nil {
		return err
	}

	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	fullName, _ := cmd.Flags().GetString("full-name")
	role, _ := cmd.Flags().GetString("role")

	switch identity.Role(role) {
	case identity.RoleVolunteer, identity.RoleOrganization:
	default:
		return fmt.Errorf("invalid flag --role %q: must be volunteer or organization", role)
	}

	created, err := rt.session.Register(cmd.Context(), map[string]any{
		"email":     strings.TrimSpace(email),
		"password":  password,
		"full_name": fullName,
		"role":      role,
	})
	if err != nil {
		return err
	}

	return render(cmd, registeredView{Created: created})
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	rt, err := runtimeFor(cmd)
	if err != nil {
		return err
	}

	verify, _ := cmd.Flags().GetBool("verify")
	var verifyErr error
	var profile *identity.User
	if verify && rt.session.State() == session.StateAuthenticated {
		profile, verifyErr = rt.client.GetProfile(cmd.Context())
	}

	view := newStatusView(rt, rt.session.State(), rt.session.Snapshot(), profile)
	if verify {
		ok := verifyErr == nil && view.Authenticated
		view.Verified = &ok
	}
	if err := render(cmd, view); err != nil {
		return err
	}
	return verifyErr
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
