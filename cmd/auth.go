package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/insight-dash/internal"
	"github.com/spf13/cobra"
)

const minPasswordLength = 6

var (
	loginEmail    string
	loginPassword string

	profileName  string
	profileEmail string
	profileRole  string

	passwdCurrent string
	passwdNew     string
	passwdConfirm string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Start a session",
	Long: `Start a session. Any non-empty email and password are accepted.

Missing values are prompted for. The session is kept in the local store
(or Redis with --redis) until 'insight-dash logout'.`,
	RunE: withApp(func(cmd *cobra.Command, args []string, app *App) error {
		email, password := loginEmail, loginPassword
		if email == "" || password == "" {
			p := newPrompter(cmd)
			defer p.Close()
			var err error
			if email == "" {
				if email, err = p.Prompt("Email: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = p.PasswordPrompt("Password: "); err != nil {
					return err
				}
			}
		}

		ok, err := app.Store.Login(commandContext(cmd), strings.TrimSpace(email), password)
		if err != nil {
			return err
		}
		if !ok {
			return &internal.ValidationError{Msg: "email and password are required"}
		}
		sess := app.Store.Current()
		app.Printer.Success("Logged in as %s (%s)", sess.Name, sess.Email)
		return nil
	}),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session",
	RunE: withApp(func(cmd *cobra.Command, args []string, app *App) error {
		if err := app.Store.Logout(commandContext(cmd)); err != nil {
			return err
		}
		app.Printer.Success("Logged out")
		return nil
	}),
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	RunE: authenticated(func(cmd *cobra.Command, args []string, app *App) error {
		printProfile(cmd.OutOrStdout(), app.Store.Current())
		return nil
	}),
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or update the profile",
	Long: `Show the profile, or update it with --name, --email and --role.
Fields that are not given keep their current value. Name and email must not be empty.`,
	RunE: authenticated(func(cmd *cobra.Command, args []string, app *App) error {
		sess := app.Store.Current()
		flags := cmd.Flags()
		if !flags.Changed("name") && !flags.Changed("email") && !flags.Changed("role") {
			printProfile(cmd.OutOrStdout(), sess)
			return nil
		}

		name, email, role := sess.Name, sess.Email, sess.Role
		if flags.Changed("name") {
			name = strings.TrimSpace(profileName)
		}
		if flags.Changed("email") {
			email = strings.TrimSpace(profileEmail)
		}
		if flags.Changed("role") {
			role = strings.TrimSpace(profileRole)
		}
		if err := validateProfile(name, email); err != nil {
			return err
		}

		if err := app.Store.UpdateProfile(commandContext(cmd), name, email, role); err != nil {
			return err
		}
		app.Printer.Success("Your profile has been successfully updated.")
		return nil
	}),
}

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the password",
	RunE: authenticated(func(cmd *cobra.Command, args []string, app *App) error {
		current, next, confirm := passwdCurrent, passwdNew, passwdConfirm
		if current == "" || next == "" || confirm == "" {
			p := newPrompter(cmd)
			defer p.Close()
			fields := []struct {
				label string
				value *string
			}{
				{"Current password: ", &current},
				{"New password: ", &next},
				{"Confirm new password: ", &confirm},
			}
			for _, f := range fields {
				if *f.value != "" {
					continue
				}
				v, err := p.PasswordPrompt(f.label)
				if err != nil {
					return err
				}
				*f.value = v
			}
		}

		if err := validatePasswordChange(current, next, confirm); err != nil {
			return err
		}
		ok, err := app.Store.UpdatePassword(commandContext(cmd), current, next)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("current password is incorrect")
		}
		app.Printer.Success("Your password has been successfully updated.")
		return nil
	}),
}

func printProfile(out io.Writer, sess *internal.Session) {
	fmt.Fprintf(out, "Name:  %s\n", sess.Name)
	fmt.Fprintf(out, "Email: %s\n", sess.Email)
	fmt.Fprintf(out, "Role:  %s\n", sess.Role)
}

func validateProfile(name, email string) error {
	if name == "" || email == "" {
		return &internal.ValidationError{Msg: "Name and email are required."}
	}
	return nil
}

func validatePasswordChange(current, next, confirm string) error {
	switch {
	case current == "" || next == "" || confirm == "":
		return &internal.ValidationError{Msg: "All password fields are required."}
	case next != confirm:
		return &internal.ValidationError{Field: "confirm", Msg: "New passwords do not match."}
	case len(next) < minPasswordLength:
		return &internal.ValidationError{Field: "new", Msg: fmt.Sprintf("Password must be at least %d characters long.", minPasswordLength)}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, profileCmd, passwdCmd)

	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Email address")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password (prompted when omitted)")

	profileCmd.Flags().StringVar(&profileName, "name", "", "Display name")
	profileCmd.Flags().StringVar(&profileEmail, "email", "", "Email address")
	profileCmd.Flags().StringVar(&profileRole, "role", "", "Role")

	passwdCmd.Flags().StringVar(&passwdCurrent, "current", "", "Current password")
	passwdCmd.Flags().StringVar(&passwdNew, "new", "", "New password")
	passwdCmd.Flags().StringVar(&passwdConfirm, "confirm", "", "New password again")
}
