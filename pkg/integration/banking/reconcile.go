package banking

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fincore/gateway/pkg/connector/core"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/models"
)

// Summary aggregates the transactions of a reconciliation period.
type Summary struct {
	TotalTransactions int             `json:"total_transactions"`
	TotalDebits       decimal.Decimal `json:"total_debits"`
	TotalCredits      decimal.Decimal `json:"total_credits"`
	NetChange         decimal.Decimal `json:"net_change"`
	CurrentBalance    decimal.Decimal `json:"current_balance"`
}

// Summarize totals txns by type. Debits are summed as absolute values so the
// sign convention of the bank does not matter; NetChange is credits minus
// debits.
func Summarize(txns []models.Transaction, balance decimal.Decimal) Summary {
	s := Summary{
		TotalTransactions: len(txns),
		TotalDebits:       decimal.Zero,
		TotalCredits:      decimal.Zero,
		CurrentBalance:    balance,
	}
	for _, t := range txns {
		switch t.Type {
		case models.TransactionDebit:
			s.TotalDebits = s.TotalDebits.Add(t.Amount.Abs())
		case models.TransactionCredit:
			s.TotalCredits = s.TotalCredits.Add(t.Amount)
		}
	}
	s.NetChange = s.TotalCredits.Sub(s.TotalDebits)
	return s
}

// Report is a bank reconciliation report for one account.
type Report struct {
	Status        core.ResultStatus    `json:"status"`
	Message       string               `json:"message,omitempty"`
	AccountNumber string               `json:"account_number"`
	Period        string               `json:"period"`
	Summary       Summary              `json:"summary"`
	Transactions  []models.Transaction `json:"transactions"`
	GeneratedAt   time.Time            `json:"generated_at"`
	Err           error                `json:"-"`
}

// ReconciliationReport pulls the account's transactions for the period and
// its current balance. A failed balance fetch reports a zero balance; a
// failed transaction fetch fails the report.
func (m *Module) ReconciliationReport(ctx context.Context, account string, from, to time.Time) Report {
	period := m.period(from, to)
	report := Report{AccountNumber: account, Period: period.String(), Transactions: []models.Transaction{}}

	txns := m.syncAccountTransactions(ctx, account, period)
	if !txns.OK() {
		err := errors.Wrap(txns.Err, errors.ErrorTypeConnection, "Failed to sync bank transactions for reconciliation")
		report.Status, report.Message, report.Err = core.StatusError, errors.Message(err), err
		return report
	}

	balance := decimal.Zero
	if bal := m.syncBalance(ctx, account); bal.OK() {
		balance = bal.Data[0].CurrentBalance
	} else {
		m.logger.Warn("balance unavailable for reconciliation", zap.String("account", account), zap.String("error", bal.Message))
	}

	report.Status = core.StatusSuccess
	report.Transactions = txns.Data
	report.Summary = Summarize(txns.Data, balance)
	report.GeneratedAt = m.now().UTC()
	return report
}
