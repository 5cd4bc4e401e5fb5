// Package report generates the downstream audit report. Generation is
// triggered by the engine after classification completes and is never fatal
// to the pipeline run.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jkessler/finleak/internal/service"
)

// Generator writes one JSON report file per audit into a directory.
type Generator struct {
	storage service.Storage
	dir     string
}

// NewGenerator creates a report generator writing into dir.
func NewGenerator(storage service.Storage, dir string) *Generator {
	return &Generator{storage: storage, dir: dir}
}

// reportLeak is the report wire shape for one leak.
type reportLeak struct {
	Type           string `json:"type"`
	Merchant       string `json:"merchant"`
	MonthlyCost    string `json:"monthlyCost"`
	AnnualCost     string `json:"annualCost"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
	Confidence     string `json:"confidence"`
}

type reportBody struct {
	AuditID          string       `json:"auditId"`
	Status           string       `json:"status"`
	TransactionCount int          `json:"transactionCount"`
	LeakCount        int          `json:"leakCount"`
	MonthlyWaste     string       `json:"monthlyWaste"`
	AnnualWaste      string       `json:"annualWaste"`
	Leaks            []reportLeak `json:"leaks"`
}

// Generate renders the audit's leak report to <dir>/<auditID>.json.
func (g *Generator) Generate(ctx context.Context, auditID string) error {
	audit, err := g.storage.GetAudit(ctx, auditID)
	if err != nil {
		return fmt.Errorf("failed to load audit for report: %w", err)
	}

	leaks, err := g.storage.GetLeaksByAudit(ctx, auditID)
	if err != nil {
		return fmt.Errorf("failed to load leaks for report: %w", err)
	}

	body := reportBody{
		AuditID:          audit.ID,
		Status:           string(audit.Status),
		TransactionCount: audit.TransactionCount,
		LeakCount:        audit.LeakCount,
		MonthlyWaste:     audit.TotalMonthlyWaste.StringFixed(2),
		AnnualWaste:      audit.TotalAnnualWaste.StringFixed(2),
		Leaks:            make([]reportLeak, 0, len(leaks)),
	}
	for _, leak := range leaks {
		body.Leaks = append(body.Leaks, reportLeak{
			Type:           string(leak.Type),
			Merchant:       leak.MerchantName,
			MonthlyCost:    leak.MonthlyCost.StringFixed(2),
			AnnualCost:     leak.AnnualCost.StringFixed(2),
			Description:    leak.Description,
			Recommendation: leak.Recommendation,
			Confidence:     leak.ConfidenceScore.StringFixed(2),
		})
	}

	if err := os.MkdirAll(g.dir, 0750); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	path := filepath.Join(g.dir, audit.ID+".json")
	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	slog.Info("report generated", "audit_id", audit.ID, "path", path)
	return nil
}
