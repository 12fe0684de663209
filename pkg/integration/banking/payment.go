package banking

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fincore/gateway/pkg/connector/core"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/models"
)

// Payment gateways.
const (
	GatewayInterac = "interac"
	GatewayWire    = "wire"
	GatewayACH     = "ach"
	GatewayGeneric = "generic"
)

const (
	minRecipientAccount   = 5
	defaultACHTransaction = "22"
)

// Validation is the outcome of payment validation.
type Validation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidatePayment checks caller input before anything is sent. Every
// violated rule adds its own message.
func ValidatePayment(input models.Record) (models.Payment, Validation) {
	var problems []string

	p, err := models.PaymentFromRecord(input)
	switch {
	case input.Get("amount") == nil:
		problems = append(problems, "Amount is required")
	case err != nil:
		problems = append(problems, "Invalid amount format")
	case !p.Amount.IsPositive():
		problems = append(problems, "Amount must be greater than zero")
	}

	if p.RecipientName == "" {
		problems = append(problems, "Recipient name is required")
	}
	switch {
	case p.RecipientAccount == "":
		problems = append(problems, "Recipient account is required")
	case utf8.RuneCountInString(p.RecipientAccount) < minRecipientAccount:
		problems = append(problems, "Recipient account must be at least 5 characters")
	}

	if problems == nil {
		problems = []string{}
	}
	return p, Validation{Valid: len(problems) == 0, Errors: problems}
}

// FormatPayment renders p in the field set gateway expects.
func FormatPayment(gateway string, p models.Payment, currency string) models.Record {
	if p.Currency != "" {
		currency = p.Currency
	}
	amount := p.Amount.StringFixed(2)

	switch strings.ToLower(gateway) {
	case GatewayInterac:
		return models.Record{
			"payment_type":      "interac_etransfer",
			"amount":            amount,
			"currency":          currency,
			"recipient_email":   p.RecipientEmail,
			"recipient_name":    p.RecipientName,
			"message":           p.Message,
			"security_question": p.SecurityQuestion,
			"security_answer":   p.SecurityAnswer,
		}
	case GatewayWire:
		return models.Record{
			"payment_type":        "wire_transfer",
			"amount":              amount,
			"currency":            currency,
			"beneficiary_name":    p.RecipientName,
			"beneficiary_account": p.RecipientAccount,
			"beneficiary_bank":    p.RecipientBank,
			"swift_code":          p.SwiftCode,
			"purpose_code":        p.PurposeCode,
			"reference":           p.Reference,
		}
	case GatewayACH:
		code := p.TransactionCode
		if code == "" {
			code = defaultACHTransaction
		}
		return models.Record{
			"payment_type":     "ach_transfer",
			"amount":           amount,
			"currency":         currency,
			"receiver_name":    p.RecipientName,
			"receiver_account": p.RecipientAccount,
			"receiver_routing": p.RecipientRouting,
			"transaction_code": code,
			"description":      p.Description,
		}
	}

	r := models.Record{
		"amount":            p.Amount,
		"currency":          currency,
		"recipient_name":    p.RecipientName,
		"recipient_account": p.RecipientAccount,
	}
	optional := map[string]string{
		"recipient_email":   p.RecipientEmail,
		"recipient_bank":    p.RecipientBank,
		"recipient_routing": p.RecipientRouting,
		"swift_code":        p.SwiftCode,
		"purpose_code":      p.PurposeCode,
		"reference":         p.Reference,
		"message":           p.Message,
		"description":       p.Description,
	}
	for k, v := range optional {
		if v != "" {
			r[k] = v
		}
	}
	return r
}

// PaymentResult is returned by InitiatePayment.
type PaymentResult struct {
	Status        core.ResultStatus `json:"status"`
	Message       string            `json:"message,omitempty"`
	Errors        []string          `json:"errors,omitempty"`
	PaymentID     string            `json:"payment_id,omitempty"`
	TransactionID string            `json:"transaction_id,omitempty"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency,omitempty"`
	Recipient     string            `json:"recipient,omitempty"`
	Method        string            `json:"payment_method"`
	Timestamp     time.Time         `json:"timestamp"`
	Err           error             `json:"-"`
}

// InitiatePayment validates input, formats it for the payment gateway and
// sends it. Invalid input is rejected without contacting the connector.
func (m *Module) InitiatePayment(ctx context.Context, input models.Record) PaymentResult {
	p, v := ValidatePayment(input)
	if !v.Valid {
		err := errors.New(errors.ErrorTypeValidation, "Payment validation failed").WithDetail("errors", v.Errors)
		m.logger.Warn("payment rejected", zap.Strings("errors", v.Errors))
		return PaymentResult{
			Status:    core.StatusError,
			Message:   "Payment validation failed",
			Errors:    v.Errors,
			Method:    m.gateway,
			Timestamp: m.now().UTC(),
			Err:       err,
		}
	}

	m.logger.Info("initiating payment", zap.String("gateway", m.gateway), zap.String("amount", p.Amount.String()))
	res := m.conn.SendData(ctx, FormatPayment(m.gateway, p, m.currency), DataPayment)
	if !res.OK() {
		err := resultErr(res, "Payment failed")
		return PaymentResult{
			Status:    core.StatusError,
			Message:   errors.Message(err),
			Method:    m.gateway,
			Timestamp: m.now().UTC(),
			Err:       err,
		}
	}

	receipt := models.Record(res.Details)
	return PaymentResult{
		Status:        core.StatusSuccess,
		Message:       res.Message,
		PaymentID:     receipt.String("payment_id", "id"),
		TransactionID: receipt.String("transaction_id"),
		Amount:        p.Amount,
		Currency:      m.orCurrency(p.Currency),
		Recipient:     p.RecipientName,
		Method:        m.gateway,
		Timestamp:     m.now().UTC(),
	}
}

// StatusResult is returned by CheckPaymentStatus.
type StatusResult struct {
	Status        core.ResultStatus    `json:"status"`
	Message       string               `json:"message,omitempty"`
	Payment       models.PaymentStatus `json:"payment"`
	CreatedDate   string               `json:"created_date,omitempty"`
	CompletedDate string               `json:"completed_date,omitempty"`
	FailureReason string               `json:"failure_reason,omitempty"`
	Method        string               `json:"payment_method"`
	Err           error                `json:"-"`
}

// CheckPaymentStatus fetches the state of a previously initiated payment.
func (m *Module) CheckPaymentStatus(ctx context.Context, paymentID string) StatusResult {
	out := StatusResult{Payment: models.PaymentStatus{PaymentID: paymentID}, Method: m.gateway}

	sync := m.conn.SyncData(ctx, DataPaymentStatus, m.bankFilters(map[string]any{"payment_id": paymentID}))
	if !sync.OK() {
		err := syncErr(sync, "Failed to check payment status")
		out.Status, out.Message, out.Err = core.StatusError, errors.Message(err), err
		return out
	}
	if len(sync.Data) == 0 {
		err := errors.Newf(errors.ErrorTypeNotFound, "payment %s not found", paymentID)
		out.Status, out.Message, out.Err = core.StatusError, errors.Message(err), err
		return out
	}

	r := sync.Data[0]
	out.Status = core.StatusSuccess
	out.Payment.Status = r.String("status", "payment_status")
	out.Payment.Amount = models.ParseAmount(r.Get("amount"))
	out.Payment.Currency = m.orCurrency(r.String("currency"))
	out.Payment.TransactionID = r.String("transaction_id")
	out.Payment.UpdatedAt = r.String("updated_at", "completed_date", "created_date")
	out.CreatedDate = r.String("created_date")
	out.CompletedDate = r.String("completed_date")
	out.FailureReason = r.String("failure_reason")
	return out
}

// MethodsResult is returned by SyncPaymentMethods.
type MethodsResult struct {
	Status    core.ResultStatus      `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Methods   []models.PaymentMethod `json:"payment_methods"`
	Count     int                    `json:"count"`
	Timestamp time.Time              `json:"timestamp"`
	Err       error                  `json:"-"`
}

// SyncPaymentMethods lists the payment rails the bank offers.
func (m *Module) SyncPaymentMethods(ctx context.Context) MethodsResult {
	sync := m.conn.SyncData(ctx, DataPaymentMethods, map[string]any{})
	if !sync.OK() {
		err := syncErr(sync, "Failed to sync payment methods")
		return MethodsResult{Status: core.StatusError, Message: errors.Message(err), Methods: []models.PaymentMethod{}, Err: err}
	}

	methods := make([]models.PaymentMethod, 0, len(sync.Data))
	for _, r := range sync.Data {
		enabled := true
		if r.Get("enabled") != nil {
			enabled = r.Bool("enabled")
		}
		methods = append(methods, models.PaymentMethod{
			ID:             r.String("id"),
			Name:           r.String("name"),
			Type:           r.String("type"),
			Enabled:        enabled,
			Fees:           models.ParseAmount(r.Get("fees")),
			Currency:       m.orCurrency(r.String("currency")),
			ProcessingTime: r.String("processing_time"),
			Limits: models.PaymentLimits{
				Min:   models.ParseAmount(r.Get("min_amount")),
				Max:   models.ParseAmount(r.Get("max_amount")),
				Daily: models.ParseAmount(r.Get("daily_limit")),
			},
		})
	}
	return MethodsResult{
		Status:    core.StatusSuccess,
		Methods:   methods,
		Count:     len(methods),
		Timestamp: m.now().UTC(),
	}
}
