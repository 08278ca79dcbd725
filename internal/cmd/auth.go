package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/zfogg/circle/cli/pkg/auth"
	"github.com/zfogg/circle/cli/pkg/output"
	"github.com/zfogg/circle/cli/pkg/service"
)

var loginEmail string

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
	Long:  "Sign in to and out of Circle",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openSession(cmd)
		if err != nil {
			return err
		}

		email := loginEmail
		if email == "" {
			if email, err = prompt.String("Email: "); err != nil {
				return err
			}
		}
		password, err := prompt.Password("Password: ")
		if err != nil {
			return err
		}

		creds, err := a.SignIn(cmd.Context(), email, password)
		if err != nil {
			return err
		}
		output.PrintSuccess("Signed in as %s", creds.Username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget cached data",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openSession(cmd)
		if err != nil {
			return err
		}
		if a.UserID() == "" {
			output.PrintInfo("Not signed in")
			return nil
		}
		if err := a.SignOut(cmd.Context()); err != nil {
			return err
		}
		output.PrintSuccess("Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openSession(cmd)
		if err != nil {
			return err
		}
		creds := a.Credentials()
		if creds == nil {
			return service.NotSignedInError()
		}

		record := map[string]interface{}{
			"user_id":  creds.UserID,
			"username": creds.Username,
			"email":    creds.Email,
			"expires":  creds.ExpiresAt.Local().Format(time.RFC1123),
		}
		if claims, err := auth.ParseClaims(creds.AccessToken); err == nil && claims.Role != "" {
			record["role"] = claims.Role
		}
		return output.PrintRecord("Signed in", record)
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email (prompted when omitted)")

	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(whoamiCmd)
}
