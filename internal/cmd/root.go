package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zfogg/feedsync/pkg/client"
	"github.com/zfogg/feedsync/pkg/config"
	"github.com/zfogg/feedsync/pkg/credentials"
	"github.com/zfogg/feedsync/pkg/errors"
	"github.com/zfogg/feedsync/pkg/logger"
	"github.com/zfogg/feedsync/pkg/output"
)

var (
	verbose    bool
	configPath string
	outputFmt  string
)

var rootCmd = &cobra.Command{
	Use:   "feedsync",
	Short: "feedsync - social feed client",
	Long: `feedsync is a terminal client for the feed server: browse the feed,
like and comment on posts, manage your profile and chat with other users.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(configPath); err != nil {
			return fmt.Errorf("initializing config: %w", err)
		}
		logger.Init(verbose)

		if cmd.Flags().Changed("output") {
			if !output.ValidateOutputFormat(outputFmt) {
				return errors.Validation("output", "must be one of text, json, table")
			}
			config.Set("output.format", outputFmt)
		}

		client.Init()
		creds, err := credentials.Load()
		if err != nil {
			logger.Warn("Failed to load credentials", "error", err)
		}
		if creds.IsValid() {
			client.SetAuthToken(creds.AccessToken)
		}
		client.OnUnauthorized(func() {
			if err := credentials.Delete(); err != nil {
				logger.Error("Failed to delete credentials", "error", err)
			}
			output.PrintWarning("Your session has expired. Run 'feedsync auth login' to sign in again.")
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, errors.FormatError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ~/.config/feedsync/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "text", "Output format: text, json, table")

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(inboxCmd)
	rootCmd.AddCommand(versionCmd)
}
