package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jkessler/finleak/internal/breaker"
	"github.com/jkessler/finleak/internal/model"
	"github.com/shopspring/decimal"
)

// LeakClassifier turns detected recurring series into leak records by way of
// the AI completion capability. The AI call is routed through a circuit
// breaker configured for this dependency.
type LeakClassifier struct {
	client  Client
	breaker *breaker.Breaker
	logger  *slog.Logger
}

// NewLeakClassifier creates a classifier around the given client and breaker.
func NewLeakClassifier(client Client, br *breaker.Breaker, logger *slog.Logger) *LeakClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeakClassifier{
		client:  client,
		breaker: br,
		logger:  logger.With("component", "leak_classifier"),
	}
}

// Classify always resolves: on any internal failure (open circuit, transport
// error, unparseable response) it returns an empty slice and logs the cause.
// A failure to classify is an empty-leaks outcome, not a pipeline failure.
func (c *LeakClassifier) Classify(ctx context.Context, series []model.RecurringSeries, auditID string) []model.Leak {
	if len(series) == 0 {
		return nil
	}

	prompt := c.buildPrompt(series)

	var raw string
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		response, completeErr := c.client.Complete(ctx, prompt)
		if completeErr != nil {
			return completeErr
		}
		raw = response
		return nil
	})
	if err != nil {
		c.logger.Warn("AI classification unavailable, resolving to no leaks",
			"audit_id", auditID,
			"series_count", len(series),
			"error", err)
		return nil
	}

	leaks, err := c.parseResponse(raw, auditID)
	if err != nil {
		c.logger.Warn("AI response unparseable, resolving to no leaks",
			"audit_id", auditID,
			"error", err)
		return nil
	}

	c.logger.Info("AI classification complete",
		"audit_id", auditID,
		"series_count", len(series),
		"leak_count", len(leaks))

	return leaks
}

// buildPrompt serializes the series list into the structured audit prompt.
func (c *LeakClassifier) buildPrompt(series []model.RecurringSeries) string {
	var sb strings.Builder
	for i, s := range series {
		fmt.Fprintf(&sb, "%d. merchant=%q frequency=%s averageAmount=%s chargeCount=%d lastCharge=%s\n",
			i+1,
			s.NormalizedMerchant,
			s.Frequency,
			s.AverageAmount.StringFixed(2),
			s.ChargeCount,
			s.LastChargeDate.Format("2006-01-02"))
	}

	return fmt.Sprintf(`You are auditing a customer's recurring charges for financial waste.

Recurring charge series:
%s
For each series, decide whether it is a subscription-like charge. If it is,
assign exactly one leakType from: zombie, duplicate, free_alternative, none.

- zombie: the subscription appears abandoned or unused
- duplicate: it overlaps another service the customer already pays for
- free_alternative: a well-known free alternative exists
- none: the charge is legitimate and should not be reported

Be conservative: only report waste you are reasonably confident about.
OMIT any series classified as none from your answer entirely.

Respond with ONLY a JSON array. Each element must have exactly these fields:
[
  {
    "merchantName": "string",
    "leakType": "zombie|duplicate|free_alternative",
    "monthlyCost": 0.0,
    "annualCost": 0.0,
    "description": "string",
    "recommendation": "string",
    "confidence": 0.0
  }
]`, sb.String())
}

// leakItem is the wire shape expected from the AI response.
type leakItem struct {
	MerchantName   string  `json:"merchantName"`
	LeakType       string  `json:"leakType"`
	Description    string  `json:"description"`
	Recommendation string  `json:"recommendation"`
	MonthlyCost    float64 `json:"monthlyCost"`
	AnnualCost     float64 `json:"annualCost"`
	Confidence     float64 `json:"confidence"`
}

// parseResponse extracts the first JSON array from the raw response text and
// maps each item into a leak. Out-of-range numeric fields are clamped rather
// than rejected, and any item still marked none is dropped.
func (c *LeakClassifier) parseResponse(raw, auditID string) ([]model.Leak, error) {
	arr, err := extractJSONArray(raw)
	if err != nil {
		return nil, err
	}

	var items []leakItem
	if err := json.Unmarshal(arr, &items); err != nil {
		return nil, fmt.Errorf("failed to decode leak array: %w", err)
	}

	leaks := make([]model.Leak, 0, len(items))
	for _, item := range items {
		if item.LeakType == "none" || item.LeakType == "" {
			continue
		}

		leak := model.Leak{
			AuditID:         auditID,
			Type:            model.LeakType(item.LeakType),
			MerchantName:    item.MerchantName,
			MonthlyCost:     decimal.NewFromFloat(item.MonthlyCost),
			AnnualCost:      decimal.NewFromFloat(item.AnnualCost),
			Description:     item.Description,
			Recommendation:  item.Recommendation,
			ConfidenceScore: decimal.NewFromFloat(item.Confidence),
			Source:          model.LeakSourceAI,
			Evidence: map[string]any{
				"source": "ai_classifier",
			},
		}
		leak.Clamp()

		if err := leak.Validate(); err != nil {
			c.logger.Debug("dropping invalid AI leak item",
				"merchant", item.MerchantName,
				"error", err)
			continue
		}

		leaks = append(leaks, leak)
	}

	return leaks, nil
}
