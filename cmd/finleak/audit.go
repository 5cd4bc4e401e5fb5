package main

import (
	"fmt"

	"github.com/jkessler/finleak/internal/plaid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func auditCmd() *cobra.Command {
	var (
		accessToken string
		startFlag   string
		endFlag     string
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run a leak audit over a linked bank account",
		Long: `Pulls the account's transaction history from Plaid, detects recurring
charges, classifies wasteful ones, and stores the results as an audit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if accessToken == "" {
				accessToken = viper.GetString("plaid.access_token")
			}
			if accessToken == "" {
				return fmt.Errorf("no access token: pass --access-token or set plaid.access_token")
			}

			startDate, err := parseDateFlag(startFlag, 365)
			if err != nil {
				return err
			}
			endDate, err := parseDateFlag(endFlag, 0)
			if err != nil {
				return err
			}

			store, err := openStorage()
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}

			fetcher, err := plaid.NewClient(plaid.Config{
				ClientID:    viper.GetString("plaid.client_id"),
				Secret:      viper.GetString("plaid.secret"),
				Environment: viper.GetString("plaid.environment"),
			})
			if err != nil {
				return fmt.Errorf("failed to create Plaid client: %w", err)
			}

			audit, err := buildEngine(store, fetcher).Run(ctx, accessToken, startDate, endDate)
			if err != nil {
				if audit != nil {
					return fmt.Errorf("audit %s failed: %w", audit.ID, err)
				}
				return err
			}

			fmt.Printf("Audit %s completed\n", audit.ID)
			fmt.Printf("  Transactions: %d\n", audit.TransactionCount)
			fmt.Printf("  Leaks found:  %d\n", audit.LeakCount)
			fmt.Printf("  Monthly waste: $%s\n", audit.TotalMonthlyWaste.StringFixed(2))
			fmt.Printf("  Annual waste:  $%s\n", audit.TotalAnnualWaste.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&accessToken, "access-token", "", "Plaid access token (default: plaid.access_token from config)")
	cmd.Flags().StringVar(&startFlag, "start", "", "start date YYYY-MM-DD (default: 365 days ago)")
	cmd.Flags().StringVar(&endFlag, "end", "", "end date YYYY-MM-DD (default: today)")

	return cmd
}
