package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"storyforge/api/internal/apiclient"
)

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store API credentials",
		Long: `Sign in to the StoryForge API with email and password.

Tokens are written to the user config directory and refreshed
automatically by the other commands.

Example:
  storyctl login --email mira@example.com`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Email: ")
				reader := bufio.NewReader(cmd.InOrStdin())
				line, err := reader.ReadString('\n')
				if err != nil {
					return err
				}
				email = strings.TrimSpace(line)
			}

			fmt.Fprint(cmd.OutOrStdout(), "Password: ")
			password, err := readPassword()
			fmt.Fprintln(cmd.OutOrStdout())
			if err != nil {
				return err
			}

			client := apiclient.New(apiclient.Options{BaseURL: rootOpts.APIURL, UserAgent: "storyctl"})
			creds, err := client.SignIn(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("sign in: %w", err)
			}

			if err := saveCredentials(storedCredentials{
				APIURL:       rootOpts.APIURL,
				Token:        creds.Token,
				RefreshToken: creds.RefreshToken,
				UserID:       creds.UserID,
				DisplayName:  creds.DisplayName,
				SavedAt:      time.Now(),
			}); err != nil {
				return fmt.Errorf("store credentials: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", creds.DisplayName)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")

	return cmd
}

func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
