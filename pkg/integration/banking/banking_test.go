package banking

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/connector/core"
	"github.com/fincore/gateway/pkg/connector/transport"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/models"
	"github.com/fincore/gateway/pkg/oplog"
	"github.com/fincore/gateway/pkg/testutil"
)

var fixedNow = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

func newModule(t *testing.T, cfg config.Values) (*Module, *testutil.FakeConnector) {
	t.Helper()
	testutil.TestLogger(t)
	fake := testutil.NewFakeConnector("banking", cfg)
	return New(fake, WithClock(func() time.Time { return fixedNow })), fake
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNewReadsConnectorConfig(t *testing.T) {
	m, _ := newModule(t, config.Values{"bank_type": "RBC", "payment_gateway": "Interac"})
	assert.Equal(t, "BANKING_RBC", m.Name())
	assert.Equal(t, "rbc", m.BankType())
	assert.Equal(t, "interac", m.PaymentGateway())

	generic, _ := newModule(t, config.Values{})
	assert.Equal(t, "BANKING_GENERIC", generic.Name())
	assert.Equal(t, "generic", generic.PaymentGateway())
}

func TestSyncTransactionsPerAccount(t *testing.T) {
	m, fake := newModule(t, config.Values{"bank_type": "rbc"})
	fake.SyncFunc = func(dataType string, filters map[string]any) core.SyncResult {
		if filters["account_number"] == "99999" {
			return testutil.SyncFailed(errors.ErrorTypeConnection, "account locked")
		}
		return testutil.Synced(models.Record{
			"transaction_id":   "TXN001",
			"account_number":   filters["account_number"],
			"transaction_date": "2024-01-10",
			"description":      "Test Transaction",
			"amount":           "-100.00",
			"currency":         "CAD",
			"balance_after":    "1900.00",
		})
	}

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	batch := m.SyncTransactions(context.Background(), []string{"12345", "99999", "67890"}, from, to)

	assert.Equal(t, "BANKING_RBC", batch.Module)
	require.Len(t, batch.Results, 3)
	assert.Equal(t, 2, batch.TotalSynced)

	ok := batch.Results["12345"]
	require.Equal(t, core.StatusSuccess, ok.Status)
	assert.Equal(t, 1, ok.Count)
	assert.Equal(t, "2024-01-01 to 2024-01-31", ok.DateRange)
	txn := ok.Data[0]
	assert.Equal(t, "TXN001", txn.ID)
	assert.True(t, dec("-100.00").Equal(txn.Amount))
	assert.Equal(t, models.TransactionDebit, txn.Type)
	assert.True(t, dec("1900").Equal(txn.BalanceAfter))
	assert.Equal(t, "rbc", txn.Source)

	failed := batch.Results["99999"]
	assert.Equal(t, core.StatusError, failed.Status)
	assert.Equal(t, "account locked", failed.Message)
	assert.Equal(t, "2024-01-01 to 2024-01-31", failed.DateRange)

	require.Len(t, fake.SyncCalls, 3)
	filters := fake.SyncCalls[0].Filters
	assert.Equal(t, "transactions", fake.SyncCalls[0].DataType)
	assert.Equal(t, "2024-01-01", filters["date_from"])
	assert.Equal(t, "2024-01-31", filters["date_to"])
	assert.Equal(t, "003", filters["institution_id"])
	assert.Equal(t, true, filters["include_pending"])
}

func TestSyncTransactionsDefaultWindow(t *testing.T) {
	m, fake := newModule(t, config.Values{"bank_type": "td"})
	m.SyncTransactions(context.Background(), []string{"1"}, time.Time{}, time.Time{})

	require.Len(t, fake.SyncCalls, 1)
	assert.Equal(t, "2024-01-02", fake.SyncCalls[0].Filters["date_from"])
	assert.Equal(t, "2024-02-01", fake.SyncCalls[0].Filters["date_to"])
	assert.Equal(t, true, fake.SyncCalls[0].Filters["include_holds"])
}

func TestTransactionFieldFallbacks(t *testing.T) {
	m, fake := newModule(t, config.Values{"bank_type": "td", "currency": "USD"})
	fake.OnSync("transactions", testutil.Synced(models.Record{
		"id":     "TD-1",
		"date":   "2024-01-12",
		"memo":   "Equipment rental",
		"amount": 250.0,
		"type":   "DEBIT",
	}))

	batch := m.SyncTransactions(context.Background(), []string{"555"}, time.Time{}, time.Time{})
	txn := batch.Results["555"].Data[0]

	assert.Equal(t, "TD-1", txn.ID)
	assert.Equal(t, "555", txn.AccountNumber)
	assert.Equal(t, "2024-01-12", txn.Date)
	assert.Equal(t, "Equipment rental", txn.Description)
	assert.Equal(t, models.TransactionDebit, txn.Type, "explicit type wins over a positive amount")
	assert.Equal(t, "USD", txn.Currency)
}

func TestSyncBalances(t *testing.T) {
	m, fake := newModule(t, config.Values{"bank_type": "bmo"})
	fake.SyncFunc = func(_ string, filters map[string]any) core.SyncResult {
		if filters["account_number"] == "empty" {
			return testutil.Synced()
		}
		return testutil.Synced(models.Record{
			"current_balance":   "2500.75",
			"available_balance": "$2,400.75",
		})
	}

	batch := m.SyncBalances(context.Background(), []string{"12345", "empty"})

	assert.Equal(t, 1, batch.TotalSynced)
	bal := batch.Results["12345"].Data[0]
	assert.Equal(t, "12345", bal.AccountNumber)
	assert.True(t, dec("2500.75").Equal(bal.CurrentBalance))
	assert.True(t, dec("2400.75").Equal(bal.AvailableBalance))
	assert.Equal(t, "CAD", bal.Currency)
	assert.Equal(t, "2024-02-01T12:00:00Z", bal.LastUpdated)

	empty := batch.Results["empty"]
	assert.Equal(t, core.StatusError, empty.Status)
	assert.True(t, errors.IsType(empty.Err, errors.ErrorTypeTransformation))
	assert.Equal(t, true, fake.SyncCalls[0].Filters["include_memo"])
}

func TestStatus(t *testing.T) {
	m, fake := newModule(t, config.Values{"bank_type": "scotiabank", "payment_gateway": "wire"})

	st := m.Status()
	assert.Equal(t, "BANKING_SCOTIABANK", st.Module)
	assert.Equal(t, "wire", st.PaymentGateway)
	assert.Contains(t, st.SupportedOperations, "initiate_payment")
	assert.Nil(t, st.LastSync)
	assert.Empty(t, fake.SyncCalls, "status never touches the connector's transport")

	m.SyncBalances(context.Background(), []string{"1"})
	assert.NotNil(t, m.Status().LastSync)
}

func TestBankFilters(t *testing.T) {
	tests := []struct {
		bank        string
		institution string
		flag        string
	}{
		{"rbc", "003", "include_pending"},
		{"td", "004", "include_holds"},
		{"bmo", "001", "include_memo"},
		{"scotiabank", "002", "include_categories"},
	}
	for _, tt := range tests {
		t.Run(tt.bank, func(t *testing.T) {
			f := BankFilters(tt.bank)
			assert.Equal(t, tt.institution, f["institution_id"])
			assert.Equal(t, "json", f["format"])
			assert.Equal(t, true, f[tt.flag])
		})
	}
	assert.Empty(t, BankFilters("credit-union"))
}

func TestEndToEndWithSandboxConnector(t *testing.T) {
	testutil.TestLogger(t)
	store := oplog.NewMemoryStore()
	conn := transport.NewBankingConnector("rbc-sandbox", config.Values{
		"bank_type":       "rbc",
		"api_url":         "https://api.rbc.example",
		"api_key":         "k",
		"sandbox":         true,
		"payment_gateway": "interac",
	}, oplog.NewRecorder(store))
	m := New(conn)
	ctx := testutil.TestContext(t)

	report := m.ReconciliationReport(ctx, "1234567", time.Time{}, time.Time{})
	require.Equal(t, core.StatusSuccess, report.Status, report.Message)
	assert.Equal(t, 2, report.Summary.TotalTransactions)
	assert.True(t, dec("1250").Equal(report.Summary.TotalDebits))
	assert.True(t, dec("5000").Equal(report.Summary.TotalCredits))
	assert.True(t, dec("3750").Equal(report.Summary.NetChange))
	assert.True(t, dec("53750").Equal(report.Summary.CurrentBalance))

	pay := m.InitiatePayment(ctx, models.Record{
		"amount":            "500.00",
		"recipient_name":    "Concrete Supplies Inc",
		"recipient_account": "12345678",
		"recipient_email":   "ap@concrete.example",
	})
	require.Equal(t, core.StatusSuccess, pay.Status, pay.Message)
	assert.NotEmpty(t, pay.PaymentID)
	assert.Equal(t, "interac", pay.Method)

	methods := m.SyncPaymentMethods(ctx)
	assert.Equal(t, 3, methods.Count)

	// connect, two syncs for the report, the payment send, the methods sync
	assert.Equal(t, 5, store.Len())
}
