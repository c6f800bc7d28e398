// Package cli implements the salespulse command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/salespulse/bridge/internal/config"
	"github.com/salespulse/bridge/internal/devlog"
	"github.com/salespulse/bridge/internal/version"
)

var (
	flagConfig string
	flagDebug  bool

	log *slog.Logger
)

// Execute runs the CLI. Exits non-zero on command failure.
func Execute() {
	root := &cobra.Command{
		Use:           "salespulse",
		Short:         "SalesPulse bridge: lead capture for the Freelancer messaging page",
		Long:          "salespulse attaches to a Chromium browser, decorates the Freelancer.com\nmessaging page with CRM lead controls, and syncs captured leads to your\nSalesPulse server.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default "+config.DefaultPath()+")")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "verbose debug logging")

	root.AddCommand(runCmd())
	root.AddCommand(verifyCmd())
	root.AddCommand(settingsCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging() {
	level := slog.LevelInfo
	if flagDebug {
		level = slog.LevelDebug
		devlog.Enable()
	}
	log = slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(log)
}

func configPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	return config.DefaultPath()
}

func loadSettings() (*config.Settings, error) {
	return config.LoadFrom(configPath())
}
