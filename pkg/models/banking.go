package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a bank transaction.
type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// DetermineTransactionType resolves the type of a vendor transaction. An
// explicit "type" (or "transaction_type") field wins and is lowercased, even
// when it is empty; otherwise a positive amount is a credit and anything
// else, zero included, is a debit.
func DetermineTransactionType(r Record) TransactionType {
	for _, key := range []string{"type", "transaction_type"} {
		if v, ok := r[key]; ok && v != nil {
			return TransactionType(strings.ToLower(strings.TrimSpace(r.String(key))))
		}
	}
	if ParseAmount(r.Get("amount")).IsPositive() {
		return TransactionCredit
	}
	return TransactionDebit
}

// Transaction is a canonical bank account movement.
type Transaction struct {
	ID              string          `json:"id"`
	AccountNumber   string          `json:"account_number"`
	Date            string          `json:"transaction_date"`
	PostingDate     string          `json:"posting_date,omitempty"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	Type            TransactionType `json:"transaction_type"`
	Currency        string          `json:"currency"`
	BalanceAfter    decimal.Decimal `json:"balance_after"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	Category        string          `json:"category,omitempty"`
	Source          string          `json:"bank_source"`
}

// Balance is a canonical account balance snapshot.
type Balance struct {
	AccountNumber    string          `json:"account_number"`
	CurrentBalance   decimal.Decimal `json:"current_balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	Currency         string          `json:"currency"`
	LastUpdated      string          `json:"last_updated,omitempty"`
}

// Payment is a canonical outbound payment instruction.
type Payment struct {
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency,omitempty"`
	RecipientName    string          `json:"recipient_name"`
	RecipientAccount string          `json:"recipient_account"`
	RecipientEmail   string          `json:"recipient_email,omitempty"`
	RecipientBank    string          `json:"recipient_bank,omitempty"`
	RecipientRouting string          `json:"recipient_routing,omitempty"`
	SwiftCode        string          `json:"swift_code,omitempty"`
	PurposeCode      string          `json:"purpose_code,omitempty"`
	Reference        string          `json:"reference,omitempty"`
	Message          string          `json:"message,omitempty"`
	SecurityQuestion string          `json:"security_question,omitempty"`
	SecurityAnswer   string          `json:"security_answer,omitempty"`
	TransactionCode  string          `json:"transaction_code,omitempty"`
	Description      string          `json:"description,omitempty"`
}

// PaymentStatus is the canonical state of a previously initiated payment.
type PaymentStatus struct {
	PaymentID     string          `json:"payment_id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	UpdatedAt     string          `json:"updated_at,omitempty"`
}

// PaymentLimits bounds the amounts a payment method accepts.
type PaymentLimits struct {
	Min   decimal.Decimal `json:"min"`
	Max   decimal.Decimal `json:"max"`
	Daily decimal.Decimal `json:"daily"`
}

// PaymentMethod is a canonical payment rail offered by a bank.
type PaymentMethod struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	Enabled        bool            `json:"enabled"`
	Fees           decimal.Decimal `json:"fees"`
	Currency       string          `json:"currency"`
	ProcessingTime string          `json:"processing_time,omitempty"`
	Limits         PaymentLimits   `json:"limits"`
}

// Period is an inclusive date range.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// String renders the period as "YYYY-MM-DD to YYYY-MM-DD".
func (p Period) String() string {
	return p.From.Format("2006-01-02") + " to " + p.To.Format("2006-01-02")
}

// PaymentFromRecord reads a payment instruction from caller input. The amount
// is parsed strictly; an unparseable amount is reported rather than zeroed.
func PaymentFromRecord(r Record) (Payment, error) {
	p := Payment{
		Currency:         r.String("currency"),
		RecipientName:    strings.TrimSpace(r.String("recipient_name")),
		RecipientAccount: strings.TrimSpace(r.String("recipient_account")),
		RecipientEmail:   r.String("recipient_email"),
		RecipientBank:    r.String("recipient_bank"),
		RecipientRouting: r.String("recipient_routing"),
		SwiftCode:        r.String("swift_code"),
		PurposeCode:      r.String("purpose_code"),
		Reference:        r.String("reference"),
		Message:          r.String("message"),
		SecurityQuestion: r.String("security_question"),
		SecurityAnswer:   r.String("security_answer"),
		TransactionCode:  r.String("transaction_code"),
		Description:      r.String("description"),
	}
	if raw := r.Get("amount"); raw != nil {
		amount, err := ParseAmountStrict(raw)
		if err != nil {
			return p, err
		}
		p.Amount = amount
	}
	return p, nil
}
