package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"storyforge/api/internal/apiclient"
)

// storedCredentials is the on-disk token file written by `storyctl login`.
type storedCredentials struct {
	APIURL       string    `json:"apiUrl"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	UserID       string    `json:"userId"`
	DisplayName  string    `json:"displayName"`
	SavedAt      time.Time `json:"savedAt"`
}

func credentialsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "storyforge", "credentials.json"), nil
}

func saveCredentials(creds storedCredentials) error {
	path, err := credentialsPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	// Tokens only, mode 0600
	return os.WriteFile(path, data, 0o600)
}

func loadCredentials() (storedCredentials, error) {
	path, err := credentialsPath()
	if err != nil {
		return storedCredentials{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return storedCredentials{}, errors.New("not signed in, run `storyctl login` first")
		}
		return storedCredentials{}, err
	}
	var creds storedCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return storedCredentials{}, fmt.Errorf("parse credentials file: %w", err)
	}
	return creds, nil
}

// newClient builds an API client whose token provider transparently
// refreshes an expired access token and persists the rotated pair.
func newClient(opts *RootOptions) (*apiclient.Client, error) {
	creds, err := loadCredentials()
	if err != nil {
		return nil, err
	}
	baseURL := opts.APIURL
	if baseURL == "" {
		baseURL = creds.APIURL
	}

	refresher := apiclient.New(apiclient.Options{BaseURL: baseURL, UserAgent: "storyctl"})
	provider := func(ctx context.Context) (string, error) {
		if creds.Token != "" && time.Since(creds.SavedAt) < 10*time.Minute {
			return creds.Token, nil
		}
		fresh, err := refresher.Refresh(ctx, creds.RefreshToken)
		if err != nil {
			return "", fmt.Errorf("session expired, run `storyctl login` again: %w", err)
		}
		creds.Token = fresh.Token
		creds.RefreshToken = fresh.RefreshToken
		creds.SavedAt = time.Now()
		if err := saveCredentials(creds); err != nil {
			return "", err
		}
		return creds.Token, nil
	}

	return apiclient.New(apiclient.Options{
		BaseURL:       baseURL,
		TokenProvider: provider,
		UserAgent:     "storyctl",
	}), nil
}
