package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change bridge settings",
	}
	cmd.AddCommand(settingsGetCmd(), settingsSetCmd())
	return cmd
}

func settingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings()
			if err != nil {
				return err
			}

			fmt.Printf("config file:   %s\n", configPath())
			fmt.Printf("base_url:      %s\n", orUnset(cfg.BaseURL))
			fmt.Printf("token:         %s\n", maskToken(cfg.Token))
			fmt.Printf("cdp_url:       %s\n", orUnset(cfg.CDPURL))
			fmt.Printf("browser_path:  %s\n", orUnset(cfg.BrowserPath))
			fmt.Printf("headless:      %v\n", cfg.Headless)
			fmt.Printf("poll_interval: %dms\n", cfg.PollIntervalMS)
			fmt.Printf("status_port:   %d\n", cfg.StatusPort)
			fmt.Printf("data_dir:      %s\n", cfg.DataDir)
			return nil
		},
	}
}

func settingsSetCmd() *cobra.Command {
	var (
		baseURL  string
		token    string
		cdpURL   string
		headless bool
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update settings (token goes to the OS keyring when available)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("base-url") {
				cfg.BaseURL = baseURL
			}
			if cmd.Flags().Changed("token") {
				cfg.Token = token
			}
			if cmd.Flags().Changed("cdp-url") {
				cfg.CDPURL = cdpURL
			}
			if cmd.Flags().Changed("headless") {
				cfg.Headless = headless
			}

			if err := cfg.SaveTo(configPath()); err != nil {
				return err
			}
			fmt.Println("Settings saved.")
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "CRM server root URL")
	cmd.Flags().StringVar(&token, "token", "", "CRM API token")
	cmd.Flags().StringVar(&cdpURL, "cdp-url", "", "DevTools endpoint of a running browser")
	cmd.Flags().BoolVar(&headless, "headless", false, "launch the managed browser headless")
	return cmd
}

func orUnset(v string) string {
	if v == "" {
		return "(unset)"
	}
	return v
}

func maskToken(tok string) string {
	if tok == "" {
		return "(unset)"
	}
	if len(tok) <= 8 {
		return "********"
	}
	return tok[:4] + "..." + tok[len(tok)-4:]
}
