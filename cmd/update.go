package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/payequity/internal/updater"
)

// updateCmd checks the configured version feed.
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check whether a newer version is available",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}

		u := updater.New(Version, a.cfg.Update.URL, a.cfg.Update.Timeout, a.log)
		info, err := u.Check(cmd.Context())
		if errors.Is(err, updater.ErrDisabled) {
			fmt.Println("Update check disabled: set update.url in the configuration.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to check for updates: %w", err)
		}

		if !info.Available {
			fmt.Printf("payequity %s is up to date.\n", info.CurrentVersion)
			return nil
		}

		fmt.Printf("A new version is available: %s (current %s)\n", info.LatestVersion, info.CurrentVersion)
		if info.DownloadURL != "" {
			fmt.Printf("Download: %s\n", info.DownloadURL)
		}
		if info.Changelog != "" {
			fmt.Printf("\nChanges:\n%s\n", info.Changelog)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
}
