package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/salespulse/bridge/internal/crm"
	"github.com/salespulse/bridge/internal/updater"
	"github.com/salespulse/bridge/internal/version"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the bridge version and check for updates",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("salespulse %s\n", version.Version)

			cfg, err := loadSettings()
			if err != nil || !cfg.Configured() {
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			res, err := updater.Check(ctx, crm.NewClient(cfg.APIURL(), cfg.Token), version.Version)
			if err != nil {
				return nil
			}
			if res.Available {
				fmt.Printf("Update available: %s", res.LatestVersion)
				if res.DownloadURL != "" {
					fmt.Printf(" (%s)", res.DownloadURL)
				}
				fmt.Println()
			}
			return nil
		},
	}
}
