package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/salespulse/bridge/internal/browser"
	"github.com/salespulse/bridge/internal/crm"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the bridge's environment and configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			check := func(name string, ok bool, detail string) {
				mark := "ok"
				if !ok {
					mark = "FAIL"
					failed++
				}
				fmt.Printf("  [%-4s] %-18s %s\n", mark, name, detail)
			}

			fmt.Println("SalesPulse bridge doctor")

			cfg, err := loadSettings()
			if err != nil {
				check("config", false, err.Error())
				return fmt.Errorf("%d check(s) failed", failed)
			}
			check("config", true, configPath())

			if _, statErr := os.Stat(cfg.DataDir); statErr == nil {
				check("data dir", true, cfg.DataDir)
			} else {
				check("data dir", true, cfg.DataDir+" (will be created on first run)")
			}

			if cfg.Configured() {
				check("credentials", true, cfg.BaseURL)
			} else {
				check("credentials", false, "base URL or token missing; run 'salespulse settings set'")
			}

			exe, exeErr := browser.FindExecutable(cfg.BrowserPath)
			if exeErr != nil || exe == nil {
				detail := "no Chromium-based browser found"
				if exeErr != nil {
					detail = exeErr.Error()
				}
				check("browser", false, detail)
			} else {
				check("browser", true, fmt.Sprintf("%s (%s)", exe.Path, exe.Kind))
			}

			if cfg.CDPURL != "" {
				reachable := browser.IsReachable(cfg.CDPURL, 2*time.Second)
				check("cdp endpoint", reachable, cfg.CDPURL)
			} else {
				check("cdp endpoint", true, "(none; bridge launches its own browser)")
			}

			if cfg.Configured() {
				ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
				user, verr := crm.NewClient(cfg.APIURL(), cfg.Token).Verify(ctx)
				cancel()
				if verr != nil {
					check("crm", false, verr.Error())
				} else {
					check("crm", true, "authenticated as "+user.Name)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			fmt.Println("All checks passed.")
			return nil
		},
	}
}
