// Package ingest provides manual transaction upload paths used when the
// bank-data dependency is unavailable: CSV files and OFX/QFX statements.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jkessler/finleak/internal/model"
	"github.com/shopspring/decimal"
)

// CSVParser reads transactions from a CSV file with the columns
// date,merchant,amount[,description]. A header row is detected and skipped.
type CSVParser struct{}

// NewCSVParser creates a CSV parser.
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

// Parse reads all transactions from reader. Rows that cannot be parsed are
// skipped with a warning rather than failing the whole upload.
func (p *CSVParser) Parse(reader io.Reader, accountID string) ([]model.Transaction, error) {
	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	var transactions []model.Transaction
	skipped := 0

	for i, record := range records {
		if i == 0 && isHeaderRow(record) {
			continue
		}
		if len(record) < 3 {
			skipped++
			continue
		}

		date, err := parseDate(record[0])
		if err != nil {
			slog.Warn("skipping CSV row with bad date", "row", i+1, "value", record[0])
			skipped++
			continue
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(strings.TrimPrefix(record[2], "$")))
		if err != nil {
			slog.Warn("skipping CSV row with bad amount", "row", i+1, "value", record[2])
			skipped++
			continue
		}

		merchant := strings.TrimSpace(record[1])
		name := merchant
		if len(record) > 3 && strings.TrimSpace(record[3]) != "" {
			name = strings.TrimSpace(record[3])
		}

		txn := model.Transaction{
			ID:           fmt.Sprintf("csv-%s-%d", date.Format("20060102"), i),
			Date:         date,
			Name:         name,
			MerchantName: merchant,
			AccountID:    accountID,
			Amount:       amount.Abs(),
		}
		txn.Hash = txn.GenerateHash()
		transactions = append(transactions, txn)
	}

	slog.Info("Parsed CSV upload",
		"transactions", len(transactions),
		"skipped_rows", skipped)

	return transactions, nil
}

func isHeaderRow(record []string) bool {
	if len(record) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(record[0]))
	return first == "date" || first == "posted" || first == "transaction date"
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	formats := []string{"2006-01-02", "01/02/2006", "1/2/2006"}
	for _, format := range formats {
		if date, err := time.Parse(format, value); err == nil {
			return date, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", value)
}
