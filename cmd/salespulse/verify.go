package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/salespulse/bridge/internal/crm"
)

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the configured CRM credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings()
			if err != nil {
				return err
			}
			if !cfg.Configured() {
				return fmt.Errorf("no CRM configured; run 'salespulse settings set --base-url ... --token ...' first")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			user, err := crm.NewClient(cfg.APIURL(), cfg.Token).Verify(ctx)
			if err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}

			fmt.Printf("Token OK. Connected as %s", user.Name)
			if user.Email != "" {
				fmt.Printf(" <%s>", user.Email)
			}
			fmt.Println()
			return nil
		},
	}
}
