// Package banking implements the banking integration module: transaction and
// balance sync across accounts, payment initiation and status checks,
// payment method discovery and reconciliation reports, on top of a single
// banking transport connector.
//
// The module injects the bank's required query parameters, formats payments
// for the configured payment gateway and maps bank-native records into the
// canonical models.Transaction, models.Balance and models.PaymentMethod
// shapes.
package banking

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fincore/gateway/pkg/connector/core"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/integration"
	"github.com/fincore/gateway/pkg/logger"
	"github.com/fincore/gateway/pkg/models"
)

// Data types requested from the connector.
const (
	DataTransactions   = "transactions"
	DataBalance        = "balance"
	DataPayment        = "payment"
	DataPaymentStatus  = "payment_status"
	DataPaymentMethods = "payment_methods"
)

const (
	defaultCurrency   = "CAD"
	defaultSyncWindow = 30 * 24 * time.Hour
	dateLayout        = "2006-01-02"
)

// SupportedOperations lists the module's operations.
var SupportedOperations = []string{
	"sync_transactions",
	"sync_balances",
	"initiate_payment",
	"check_payment_status",
	"reconciliation",
}

// Module is the banking integration module.
type Module struct {
	conn     core.Connector
	bankType string
	gateway  string
	currency string
	name     string
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Module.
type Option func(*Module)

// WithClock overrides the time source used for default date ranges and
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Module) { m.now = now }
}

// New wraps conn. bank_type, payment_gateway and currency are read from the
// connector's configuration.
func New(conn core.Connector, opts ...Option) *Module {
	cfg := integration.ConfigOf(conn)
	m := &Module{
		conn:     conn,
		bankType: strings.ToLower(cfg.String("bank_type", "generic")),
		gateway:  strings.ToLower(cfg.String("payment_gateway", "generic")),
		currency: cfg.String("currency", defaultCurrency),
		now:      time.Now,
	}
	m.name = "BANKING_" + strings.ToUpper(m.bankType)
	m.logger = logger.Get().With(zap.String("module", m.name))
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the module name, e.g. BANKING_RBC.
func (m *Module) Name() string { return m.name }

// BankType returns the configured bank.
func (m *Module) BankType() string { return m.bankType }

// PaymentGateway returns the configured payment gateway.
func (m *Module) PaymentGateway() string { return m.gateway }

// SyncTransactions pulls transactions for each account in turn. Zero dates
// default to the last 30 days.
func (m *Module) SyncTransactions(ctx context.Context, accounts []string, from, to time.Time) *integration.BatchResult[models.Transaction] {
	period := m.period(from, to)
	batch := integration.NewBatch[models.Transaction](m.name, m.now())

	for _, account := range accounts {
		m.logger.Info("syncing transactions", zap.String("account", account), zap.Stringer("period", period))
		res := m.syncAccountTransactions(ctx, account, period)
		res.DateRange = period.String()
		batch.Add(account, res)
	}
	return batch
}

func (m *Module) syncAccountTransactions(ctx context.Context, account string, period models.Period) integration.KeyResult[models.Transaction] {
	filters := m.bankFilters(map[string]any{
		"account_number": account,
		"date_from":      period.From.Format(dateLayout),
		"date_to":        period.To.Format(dateLayout),
	})
	sync := m.conn.SyncData(ctx, DataTransactions, filters)
	if !sync.OK() {
		return integration.Failed[models.Transaction](syncErr(sync, "Unknown error"))
	}

	txns := make([]models.Transaction, 0, len(sync.Data))
	for _, r := range sync.Data {
		txns = append(txns, m.transaction(account, r))
	}
	return integration.Succeeded(txns)
}

// SyncBalances pulls the balance of each account in turn.
func (m *Module) SyncBalances(ctx context.Context, accounts []string) *integration.BatchResult[models.Balance] {
	batch := integration.NewBatch[models.Balance](m.name, m.now())
	for _, account := range accounts {
		m.logger.Info("syncing balance", zap.String("account", account))
		batch.Add(account, m.syncBalance(ctx, account))
	}
	return batch
}

func (m *Module) syncBalance(ctx context.Context, account string) integration.KeyResult[models.Balance] {
	sync := m.conn.SyncData(ctx, DataBalance, m.bankFilters(map[string]any{"account_number": account}))
	if !sync.OK() {
		return integration.Failed[models.Balance](syncErr(sync, "Unknown error"))
	}
	if len(sync.Data) == 0 {
		return integration.Failed[models.Balance](errors.Newf(errors.ErrorTypeTransformation,
			"no balance returned for account %s", account))
	}
	return integration.Succeeded([]models.Balance{m.balance(account, sync.Data[0])})
}

// ModuleStatus describes the module and its connector.
type ModuleStatus struct {
	Module              string      `json:"module"`
	BankType            string      `json:"bank_type"`
	PaymentGateway      string      `json:"payment_gateway"`
	ConnectorStatus     core.Status `json:"connector_status"`
	SupportedOperations []string    `json:"supported_operations"`
	LastSync            *time.Time  `json:"last_sync"`
}

// Status reports the module configuration and connector state without
// touching the network.
func (m *Module) Status() ModuleStatus {
	st := m.conn.Status()
	return ModuleStatus{
		Module:              m.name,
		BankType:            m.bankType,
		PaymentGateway:      m.gateway,
		ConnectorStatus:     st,
		SupportedOperations: append([]string(nil), SupportedOperations...),
		LastSync:            st.LastSync,
	}
}

func (m *Module) period(from, to time.Time) models.Period {
	if to.IsZero() {
		to = m.now()
	}
	if from.IsZero() {
		from = to.Add(-defaultSyncWindow)
	}
	return models.Period{From: from, To: to}
}

// bankFilters merges the bank's required parameters into filters. Bank
// parameters win over caller values with the same key.
func (m *Module) bankFilters(filters map[string]any) map[string]any {
	out := make(map[string]any, len(filters)+3)
	for k, v := range filters {
		out[k] = v
	}
	for k, v := range BankFilters(m.bankType) {
		out[k] = v
	}
	return out
}

// BankFilters returns the query parameters bankType requires. Unknown banks
// need none.
func BankFilters(bankType string) map[string]any {
	switch strings.ToLower(bankType) {
	case "rbc":
		return map[string]any{"institution_id": "003", "format": "json", "include_pending": true}
	case "td":
		return map[string]any{"institution_id": "004", "format": "json", "include_holds": true}
	case "bmo":
		return map[string]any{"institution_id": "001", "format": "json", "include_memo": true}
	case "scotiabank":
		return map[string]any{"institution_id": "002", "format": "json", "include_categories": true}
	}
	return nil
}

// syncErr returns the typed error behind a failed sync, falling back to a
// connection error carrying the result message.
func syncErr(res core.SyncResult, fallback string) error {
	if res.Err != nil {
		return res.Err
	}
	msg := res.Message
	if msg == "" {
		msg = fallback
	}
	return errors.New(errors.ErrorTypeConnection, msg)
}

func resultErr(res core.Result, fallback string) error {
	if res.Err != nil {
		return res.Err
	}
	msg := res.Message
	if msg == "" {
		msg = fallback
	}
	return errors.New(errors.ErrorTypeConnection, msg)
}

func (m *Module) transaction(account string, r models.Record) models.Transaction {
	acct := r.String("account_number", "account")
	if acct == "" {
		acct = account
	}
	return models.Transaction{
		ID:              r.String("transaction_id", "id"),
		AccountNumber:   acct,
		Date:            r.String("transaction_date", "date"),
		PostingDate:     r.String("posting_date"),
		Description:     r.String("description", "memo"),
		Amount:          models.ParseAmount(r.Get("amount")),
		Type:            models.DetermineTransactionType(r),
		Currency:        m.orCurrency(r.String("currency")),
		BalanceAfter:    models.ParseAmount(r.Get("balance_after")),
		ReferenceNumber: r.String("reference_number", "reference"),
		Category:        r.String("category"),
		Source:          m.bankType,
	}
}

func (m *Module) balance(account string, r models.Record) models.Balance {
	acct := r.String("account_number", "account")
	if acct == "" {
		acct = account
	}
	updated := r.String("last_updated")
	if updated == "" {
		updated = m.now().UTC().Format(time.RFC3339)
	}
	return models.Balance{
		AccountNumber:    acct,
		CurrentBalance:   models.ParseAmount(r.Get("current_balance")),
		AvailableBalance: models.ParseAmount(r.Get("available_balance")),
		Currency:         m.orCurrency(r.String("currency")),
		LastUpdated:      updated,
	}
}

func (m *Module) orCurrency(c string) string {
	if c == "" {
		return m.currency
	}
	return c
}
