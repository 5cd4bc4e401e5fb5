package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jkessler/finleak/internal/ingest"
	"github.com/jkessler/finleak/internal/model"
	"github.com/jkessler/finleak/internal/service"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// fileFetcher serves pre-parsed transactions through the engine's fetcher
// contract, filtering to the requested window.
type fileFetcher struct {
	transactions []model.Transaction
	bar          *progressbar.ProgressBar
}

func (f *fileFetcher) FetchTransactions(_ context.Context, _ string, startDate, endDate time.Time) ([]model.Transaction, error) {
	var inRange []model.Transaction
	for _, txn := range f.transactions {
		if f.bar != nil {
			_ = f.bar.Add(1)
		}
		if txn.Date.Before(startDate) || txn.Date.After(endDate) {
			continue
		}
		inRange = append(inRange, txn)
	}
	if f.bar != nil {
		_ = f.bar.Finish()
		fmt.Println()
	}
	return inRange, nil
}

var _ service.TransactionFetcher = (*fileFetcher)(nil)

func importCmd() *cobra.Command {
	var (
		accountID string
		startFlag string
		endFlag   string
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Run a leak audit over a CSV or OFX/QFX file",
		Long: `Parses a manually exported statement and runs the full audit pipeline
over it, for accounts without a bank-feed connection. The format is picked
from the file extension: .csv, or .ofx/.qfx.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", path, err)
			}
			defer file.Close()

			var transactions []model.Transaction
			switch ext := strings.ToLower(filepath.Ext(path)); ext {
			case ".csv":
				transactions, err = ingest.NewCSVParser().Parse(file, accountID)
			case ".ofx", ".qfx":
				transactions, err = ingest.NewOFXParser().Parse(file)
			default:
				return fmt.Errorf("unsupported file type %q (want .csv, .ofx, or .qfx)", ext)
			}
			if err != nil {
				return err
			}
			if len(transactions) == 0 {
				return fmt.Errorf("no transactions found in %s", path)
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

			fetcher := &fileFetcher{
				transactions: transactions,
				bar: progressbar.NewOptions(len(transactions),
					progressbar.OptionSetDescription("Importing transactions"),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				),
			}

			audit, err := buildEngine(store, fetcher).Run(ctx, "", startDate, endDate)
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

	cmd.Flags().StringVar(&accountID, "account", "manual", "account ID to stamp on imported transactions")
	cmd.Flags().StringVar(&startFlag, "start", "", "start date YYYY-MM-DD (default: 365 days ago)")
	cmd.Flags().StringVar(&endFlag, "end", "", "end date YYYY-MM-DD (default: today)")

	return cmd
}
