package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/nulzo/model-bridge/internal/cli"
	"github.com/spf13/cobra"
)

// AppVersion is stamped at build time with -ldflags "-X main.AppVersion=...".
var AppVersion = "v0.0.0"

const releasesURL = "https://api.github.com/repos/nulzo/model-bridge/releases/latest"

type GitHubRelease struct {
	TagName string `json:"tag_name"`
}

func newVersionCommand() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version and optionally check for a newer release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Println("model-bridge", AppVersion)
			if !check {
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
			defer cancel()

			latest, newer, err := checkForUpdates(ctx, http.DefaultClient, releasesURL, AppVersion)
			if err != nil {
				return fmt.Errorf("update check: %w", err)
			}
			if newer {
				fmt.Printf("%s You are running an outdated version (%s). The latest version is %s.\n",
					cli.WarningSign(), AppVersion, latest)
				return nil
			}
			fmt.Printf("%s Up to date\n", cli.CheckMark())
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "check GitHub for a newer release")
	return cmd
}

// checkForUpdates fetches the latest release tag and reports whether it is newer than current.
func checkForUpdates(ctx context.Context, client *http.Client, url, current string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return "", false, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var release GitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", false, err
	}

	cur, err := version.NewVersion(current)
	if err != nil {
		return "", false, err
	}
	latest, err := version.NewVersion(release.TagName)
	if err != nil {
		return "", false, err
	}

	return release.TagName, cur.LessThan(latest), nil
}
