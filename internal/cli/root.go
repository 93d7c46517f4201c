// Package cli implements the storyctl command line client for the
// StoryForge API.
package cli

import (
	"github.com/spf13/cobra"

	"storyforge/api/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	APIURL  string
	Verbose bool
}

// NewRootCommand creates the root command for storyctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	cfg := config.Load()

	cmd := &cobra.Command{
		Use:   "storyctl",
		Short: "StoryForge command line client",
		Long:  "Manage StoryForge stories from the terminal: sign in, list, save, and export.",
	}

	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", cfg.APIBaseURL, "StoryForge API base URL")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewSaveCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))

	return cmd
}
