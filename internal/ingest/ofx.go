package ingest

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/jkessler/finleak/internal/model"
	"github.com/shopspring/decimal"
)

// OFXParser reads transactions from OFX/QFX bank and credit card statements.
type OFXParser struct{}

// NewOFXParser creates an OFX parser.
func NewOFXParser() *OFXParser {
	return &OFXParser{}
}

// Parse reads all transactions from an OFX/QFX statement.
func (p *OFXParser) Parse(reader io.Reader) ([]model.Transaction, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(strings.TrimLeft(string(content), " \t\r\n")))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var transactions []model.Transaction

	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		accountID := string(stmt.BankAcctFrom.AcctID)
		for _, ofxTx := range stmt.BankTranList.Transactions {
			transactions = append(transactions, p.convert(ofxTx, accountID))
		}
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		accountID := string(stmt.CCAcctFrom.AcctID)
		for _, ofxTx := range stmt.BankTranList.Transactions {
			transactions = append(transactions, p.convert(ofxTx, accountID))
		}
	}

	slog.Info("Parsed OFX statement", "transactions", len(transactions))

	return transactions, nil
}

// convert maps an OFX transaction to the internal model. OFX uses negative
// amounts for debits; the pipeline works with positive magnitudes.
func (p *OFXParser) convert(ofxTx ofxgo.Transaction, accountID string) model.Transaction {
	amountFloat, _ := ofxTx.TrnAmt.Float64()
	amount := decimal.NewFromFloat(amountFloat).Abs()

	merchantName := string(ofxTx.Name)
	if ofxTx.Payee != nil && ofxTx.Payee.Name != "" {
		merchantName = string(ofxTx.Payee.Name)
	}

	txn := model.Transaction{
		ID:           string(ofxTx.FiTID),
		Date:         ofxTx.DtPosted.Time,
		Name:         string(ofxTx.Name),
		MerchantName: strings.TrimSpace(merchantName),
		AccountID:    accountID,
		Amount:       amount,
	}
	txn.Hash = txn.GenerateHash()

	return txn
}
