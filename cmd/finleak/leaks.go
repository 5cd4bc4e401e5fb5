package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jkessler/finleak/internal/query"
	"github.com/spf13/cobra"
)

func leaksCmd() *cobra.Command {
	var auditID string

	cmd := &cobra.Command{
		Use:   "leaks",
		Short: "Show detected leaks",
		Long: `Without --audit, lists past audits. With --audit, shows the audit's
summary and every leak it found.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := openStorage()
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}

			if auditID == "" {
				audits, err := store.ListAudits(ctx, 20)
				if err != nil {
					return fmt.Errorf("failed to list audits: %w", err)
				}
				if len(audits) == 0 {
					fmt.Println("No audits yet. Run `finleak audit` or `finleak import` first.")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "AUDIT\tSTATUS\tCREATED\tTXNS\tLEAKS\tMONTHLY WASTE")
				for _, audit := range audits {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t$%s\n",
						audit.ID,
						audit.Status,
						audit.CreatedAt.Format(time.DateOnly),
						audit.TransactionCount,
						audit.LeakCount,
						audit.TotalMonthlyWaste.StringFixed(2))
				}
				return w.Flush()
			}

			optimizer := query.NewOptimizer(store, 30*time.Second)

			summary, err := optimizer.Summary(ctx, auditID)
			if err != nil {
				return fmt.Errorf("failed to load audit %s: %w", auditID, err)
			}

			fmt.Printf("Audit %s (%s)\n", summary.AuditID, summary.Status)
			fmt.Printf("  Transactions: %d\n", summary.TransactionCount)
			fmt.Printf("  Leaks: %d", summary.LeakCount)
			if len(summary.ByType) > 0 {
				fmt.Print(" (")
				first := true
				for leakType, count := range summary.ByType {
					if !first {
						fmt.Print(", ")
					}
					fmt.Printf("%s: %d", leakType, count)
					first = false
				}
				fmt.Print(")")
			}
			fmt.Println()
			fmt.Printf("  Monthly waste: $%s\n", summary.TotalMonthlyWaste.StringFixed(2))
			fmt.Printf("  Annual waste:  $%s\n\n", summary.TotalAnnualWaste.StringFixed(2))

			leaks, err := store.GetLeaksByAudit(ctx, auditID)
			if err != nil {
				return fmt.Errorf("failed to load leaks: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MERCHANT\tTYPE\tMONTHLY\tANNUAL\tCONF\tSOURCE\tRECOMMENDATION")
			for _, leak := range leaks {
				fmt.Fprintf(w, "%s\t%s\t$%s\t$%s\t%s\t%s\t%s\n",
					leak.MerchantName,
					leak.Type,
					leak.MonthlyCost.StringFixed(2),
					leak.AnnualCost.StringFixed(2),
					leak.ConfidenceScore.StringFixed(2),
					leak.Source,
					leak.Recommendation)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&auditID, "audit", "", "audit ID to show leaks for")

	return cmd
}
