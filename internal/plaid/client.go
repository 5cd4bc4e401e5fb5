// Package plaid provides the bank-data capability over the Plaid API.
package plaid

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jkessler/finleak/internal/common"
	"github.com/jkessler/finleak/internal/model"
	"github.com/jkessler/finleak/internal/service"
	"github.com/plaid/plaid-go/v20/plaid"
	"github.com/shopspring/decimal"
)

// Config holds Plaid API configuration.
type Config struct {
	ClientID    string
	Secret      string
	Environment string // sandbox or production
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("plaid client ID is required")
	}
	if c.Secret == "" {
		return fmt.Errorf("plaid secret is required")
	}
	switch c.Environment {
	case "sandbox", "production":
	default:
		return fmt.Errorf("invalid Plaid environment: must be sandbox or production")
	}
	return nil
}

// Client implements the service.TransactionFetcher interface.
type Client struct {
	client    *plaid.APIClient
	logger    *slog.Logger
	retryOpts common.RetryOptions
}

// NewClient creates a new Plaid client with the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)

	switch cfg.Environment {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	}

	return &Client{
		client: plaid.NewAPIClient(configuration),
		logger: slog.Default().With("component", "plaid"),
		retryOpts: common.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// FetchTransactions fetches all transactions in the date range, paginating
// internally. Plaid failures are mapped to tagged error kinds so the
// pipeline's recovery policy can switch on them.
func (c *Client) FetchTransactions(ctx context.Context, accessToken string, startDate, endDate time.Time) ([]model.Transaction, error) {
	if startDate.After(endDate) {
		return nil, fmt.Errorf("start date must be before end date")
	}

	c.logger.Info("Fetching transactions from Plaid",
		"start_date", startDate.Format("2006-01-02"),
		"end_date", endDate.Format("2006-01-02"))

	var allTransactions []plaid.Transaction
	offset := int32(0)
	const pageSize = int32(500) // Plaid's max page size

	for {
		var page []plaid.Transaction

		retryErr := common.WithRetry(ctx, func() error {
			request := plaid.NewTransactionsGetRequest(
				accessToken,
				startDate.Format("2006-01-02"),
				endDate.Format("2006-01-02"),
			)
			options := plaid.TransactionsGetRequestOptions{
				Count:  plaid.PtrInt32(pageSize),
				Offset: plaid.PtrInt32(offset),
			}
			request.SetOptions(options)

			resp, _, err := c.client.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
			if err != nil {
				return c.mapPlaidError(err)
			}

			page = resp.GetTransactions()

			c.logger.Debug("Fetched transaction batch",
				"count", len(page),
				"offset", offset,
				"total", resp.GetTotalTransactions())

			return nil
		}, c.retryOpts)

		if retryErr != nil {
			return nil, retryErr
		}

		allTransactions = append(allTransactions, page...)

		if len(page) < int(pageSize) {
			break
		}
		offset += pageSize
	}

	c.logger.Info("Fetched all transactions", "count", len(allTransactions))

	transactions := make([]model.Transaction, 0, len(allTransactions))
	for _, pt := range allTransactions {
		transactions = append(transactions, c.mapPlaidTransaction(pt))
	}

	return transactions, nil
}

// mapPlaidError converts a Plaid SDK error into the tagged error taxonomy.
func (c *Client) mapPlaidError(err error) error {
	plaidError := extractPlaidError(err)
	if plaidError == nil {
		return fmt.Errorf("failed to fetch transactions: %w", err)
	}

	switch plaidError.ErrorCode {
	case "RATE_LIMIT_EXCEEDED":
		c.logger.Warn("Plaid rate limit hit, will retry", "error", plaidError.ErrorMessage)
		return &common.RetryableError{
			Err:       common.Tagged(common.KindRateLimited, "plaid", common.ErrRateLimit),
			Retryable: true,
		}
	case "ITEM_LOGIN_REQUIRED", "INVALID_ACCESS_TOKEN":
		return common.Tagged(common.KindAuthExpired, "plaid",
			fmt.Errorf("%w: %s", common.ErrReauthRequired, plaidError.ErrorMessage))
	default:
		return common.Tagged(common.KindUnrecoverable, "plaid",
			fmt.Errorf("plaid API error: %s - %s", plaidError.ErrorCode, plaidError.ErrorMessage))
	}
}

// mapPlaidTransaction converts a Plaid transaction to the internal model.
// Plaid uses positive amounts for debits; the pipeline works with positive
// magnitudes only.
func (c *Client) mapPlaidTransaction(pt plaid.Transaction) model.Transaction {
	date, err := time.Parse("2006-01-02", pt.GetDate())
	if err != nil {
		c.logger.Error("Failed to parse transaction date", "date", pt.GetDate(), "error", err)
		date = time.Now()
	}

	merchantName := pt.GetMerchantName()
	if merchantName == "" {
		merchantName = pt.GetName()
	}
	merchantName = cleanMerchantName(merchantName)

	var categories []string
	if plaidCategories := pt.GetCategory(); len(plaidCategories) > 0 {
		categories = plaidCategories
	}

	txn := model.Transaction{
		Date:         date,
		ID:           pt.GetTransactionId(),
		Name:         pt.GetName(),
		MerchantName: merchantName,
		AccountID:    pt.GetAccountId(),
		Amount:       decimal.NewFromFloat(pt.GetAmount()).Abs(),
		Categories:   categories,
	}
	txn.Hash = txn.GenerateHash()

	return txn
}

// cleanMerchantName standardizes merchant names: strips trailing transaction
// IDs and common corporate suffixes, collapses whitespace.
func cleanMerchantName(name string) string {
	parts := strings.Fields(name)
	if len(parts) > 1 {
		lastPart := parts[len(parts)-1]
		// A long all-digit tail is probably a transaction ID.
		if len(lastPart) > 5 && isAllDigits(lastPart) {
			parts = parts[:len(parts)-1]
		}
	}
	name = strings.Join(parts, " ")

	suffixes := []string{" LLC", " INC", " CORP", " CO", " LTD"}
	changed := true
	for changed {
		changed = false
		upper := strings.ToUpper(name)
		for _, suffix := range suffixes {
			if strings.HasSuffix(upper, suffix) {
				name = name[:len(name)-len(suffix)]
				changed = true
			}
		}
	}

	return strings.TrimSpace(name)
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// extractPlaidError attempts to extract a Plaid error from a generic error.
func extractPlaidError(err error) *plaid.PlaidError {
	plaidErr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return nil
	}
	return &plaidErr
}

// Ensure Client implements TransactionFetcher interface.
var _ service.TransactionFetcher = (*Client)(nil)
