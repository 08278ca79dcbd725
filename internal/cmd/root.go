package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zfogg/circle/cli/pkg/app"
	"github.com/zfogg/circle/cli/pkg/config"
	clierrors "github.com/zfogg/circle/cli/pkg/errors"
	"github.com/zfogg/circle/cli/pkg/logger"
	"github.com/zfogg/circle/cli/pkg/output"
	"github.com/zfogg/circle/cli/pkg/prompter"
	"github.com/zfogg/circle/cli/pkg/service"
)

var (
	verbose    bool
	configPath string
	outputFmt  string

	// session is opened by the first command that needs it
	session *app.App
	prompt  = prompter.Stdio()
)

var rootCmd = &cobra.Command{
	Use:   "circle-cli",
	Short: "Circle CLI - professional network in the terminal",
	Long: `Circle CLI is a command-line client for the Circle professional
network. Read your feed, manage connections, chat and keep your
profile up to date from the terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(configPath); err != nil {
			return fmt.Errorf("initializing config: %w", err)
		}

		logger.Init(verbose)

		if cmd.Flags().Changed("output") {
			if !output.ValidateOutputFormat(outputFmt) {
				return clierrors.ValidationError("output", "must be one of text, json, table")
			}
			config.Set("output.format", outputFmt)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if session != nil {
			session.Close()
		}
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, clierrors.FormatError(err))
		os.Exit(1)
	}
}

// openSession builds the session container on first use
func openSession(cmd *cobra.Command) (*app.App, error) {
	if session != nil {
		return session, nil
	}
	a, err := app.Open(cmd.Context(), app.SettingsFromConfig())
	if err != nil {
		return nil, err
	}
	session = a
	return session, nil
}

// signedIn opens the session and fails early when nobody is signed in
func signedIn(cmd *cobra.Command) (*app.Services, error) {
	a, err := openSession(cmd)
	if err != nil {
		return nil, err
	}
	if a.UserID() == "" {
		return nil, service.NotSignedInError().WithSuggestion("Run 'circle-cli auth login' first")
	}
	return a.Services(), nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ~/.config/circle/cli/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "text", "Output format: text, json, table")

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(versionCmd)
}
