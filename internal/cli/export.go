package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export <story-id>",
		Short: "Export a story bible",
		Long: `Download an export of the story in the given format.

Formats: pdf, docx, html, json.

Example:
  storyctl export 4f9d... --format pdf -o dune-scandal.pdf`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return fmt.Errorf("--output is required")
			}
			client, err := newClient(rootOpts)
			if err != nil {
				return err
			}
			data, mimeType, err := client.ExportStory(cmd.Context(), args[0], format)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			if rootOpts.Verbose {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes (%s) to %s\n", len(data), mimeType, output)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "pdf", "export format (pdf|docx|html|json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (required)")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}
