package models

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	existing := decimal.RequireFromString("42.10")

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"currency symbol and separators", "$1,234.56", "1234.56"},
		{"float", 1234.5, "1234.5"},
		{"int", 100, "100"},
		{"negative string", "-100.00", "-100"},
		{"existing decimal", existing, "42.1"},
		{"unparseable", "abc", "0"},
		{"nil", nil, "0"},
		{"unsupported type", []int{1}, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAmount(tt.in)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestParseAmountReturnsDecimalUnchanged(t *testing.T) {
	d := decimal.New(12345, -3)
	assert.Equal(t, d, ParseAmount(d))
}

func TestParseAmountStrict(t *testing.T) {
	_, err := ParseAmountStrict("12,x")
	assert.Error(t, err)

	d, err := ParseAmountStrict(" $ 5,000 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.NewFromInt(5000)))
}

func TestDetermineTransactionType(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want TransactionType
	}{
		{"explicit credit wins over negative amount", Record{"type": "CREDIT", "amount": -10}, TransactionCredit},
		{"explicit debit wins over positive amount", Record{"type": "Debit", "amount": 10}, TransactionDebit},
		{"positive amount", Record{"amount": "100.00"}, TransactionCredit},
		{"negative amount string", Record{"amount": "-100.00"}, TransactionDebit},
		{"zero is debit", Record{"amount": 0}, TransactionDebit},
		{"vendor transaction_type field", Record{"transaction_type": "credit", "amount": -1}, TransactionCredit},
		{"explicit empty type is kept", Record{"type": "", "amount": "100.00"}, TransactionType("")},
		{"null type falls back to sign", Record{"type": nil, "amount": "100.00"}, TransactionCredit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetermineTransactionType(tt.rec))
		})
	}
}

func TestRecordHelpers(t *testing.T) {
	r := Record{"id": nil, "transaction_id": "T1", "flag": "Y", "nested": map[string]any{"a": 1}}
	assert.Equal(t, "T1", r.String("id", "transaction_id"))
	assert.Equal(t, "T1", r.Get("id", "transaction_id"))
	assert.True(t, r.Bool("flag"))
	assert.Equal(t, 1, r.Map("nested")["a"])
	assert.Nil(t, r.Map("flag"))
}

func TestRecordStringKeepsNumericIDs(t *testing.T) {
	var r Record
	require.NoError(t, json.Unmarshal([]byte(`{"RecId": 5637144576, "recipient_account": 12345000, "rate": 0.000015, "neg": -42}`), &r))

	assert.Equal(t, "5637144576", r.String("RecId"))
	assert.Equal(t, "12345000", r.String("recipient_account"))
	assert.Equal(t, "0.000015", r.String("rate"))
	assert.Equal(t, "-42", r.String("neg"))
	assert.Equal(t, "1.5", Record{"f": float32(1.5)}.String("f"))
}

func TestInvoiceRoundTripThroughRecord(t *testing.T) {
	inv := Invoice{ID: "1", Kind: InvoicePayable, PartyID: "V1", PartyName: "Steel Co", InvoiceNumber: "INV-9",
		Amount: decimal.RequireFromString("99.95"), Currency: "CAD", Status: "open"}
	back := InvoiceFromRecord(InvoicePayable, inv.Record())
	assert.Equal(t, inv.PartyID, back.PartyID)
	assert.True(t, inv.Amount.Equal(back.Amount))
	assert.Equal(t, "open", back.Status)
}

func TestMessageRecordOmitsForeignCoordinates(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r := Message{Queue: "payments", RoutingKey: "payments", DeliveryTag: 7, Value: "x", Timestamp: ts}.Record()
	assert.Equal(t, uint64(7), r["delivery_tag"])
	assert.NotContains(t, r, "partition")
	assert.NotContains(t, r, "topic")
}

func TestParseTimeAndPeriod(t *testing.T) {
	ts, ok := ParseTime("2024-03-01")
	require.True(t, ok)
	p := Period{From: ts, To: ts.AddDate(0, 0, 30)}
	assert.Equal(t, "2024-03-01 to 2024-03-31", p.String())

	_, ok = ParseTime("yesterday")
	assert.False(t, ok)
}

func TestPaymentFromRecord(t *testing.T) {
	p, err := PaymentFromRecord(Record{"amount": "$1,500.00", "recipient_name": " Steel Co ", "recipient_account": "12345678"})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1500).Equal(p.Amount))
	assert.Equal(t, "Steel Co", p.RecipientName)

	_, err = PaymentFromRecord(Record{"amount": "ten dollars"})
	assert.Error(t, err)

	p, err = PaymentFromRecord(Record{})
	require.NoError(t, err)
	assert.True(t, p.Amount.IsZero())
}

func TestInvoiceRecordExposesPartyRole(t *testing.T) {
	r := Invoice{Kind: InvoiceReceivable, PartyID: "C1", PartyName: "ABC", Source: "SAP"}.Record()
	assert.Equal(t, "C1", r["customer_id"])
	assert.Equal(t, "SAP", r["erp_source"])
	assert.NotContains(t, r, "vendor_id")
}
