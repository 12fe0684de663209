package transport

import (
	"strings"

	"github.com/google/uuid"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/models"
)

// Sandbox fixtures. Every call builds fresh records so callers may mutate them.

func crmFixtures(dataType string, _ config.Values) []models.Record {
	switch dataType {
	case "customers":
		return []models.Record{{
			"id":     "CUST001",
			"name":   "ABC Construction Ltd",
			"email":  "contact@abcconstruction.com",
			"phone":  "+1-416-555-0123",
			"status": "active",
		}}
	case "leads":
		return []models.Record{{
			"id":     "LEAD001",
			"name":   "XYZ Development",
			"email":  "info@xyzdev.com",
			"status": "qualified",
		}}
	}
	return nil
}

func pmFixtures(dataType string, _ config.Values) []models.Record {
	switch dataType {
	case "projects":
		return []models.Record{{
			"id":         "PROJ001",
			"name":       "Office Building Construction",
			"status":     "in_progress",
			"start_date": "2024-01-01",
			"end_date":   "2024-12-31",
		}}
	case "tasks":
		return []models.Record{{
			"id":         "TASK001",
			"project_id": "PROJ001",
			"name":       "Foundation Work",
			"status":     "completed",
			"assignee":   "John Doe",
		}}
	}
	return nil
}

// rbcFixtures use the long field names (transaction_id, transaction_date,
// description) and signed string amounts.
func rbcFixtures(dataType string, filters config.Values) []models.Record {
	account := filters.String("account_number", "1234567")
	switch dataType {
	case "transactions":
		return []models.Record{
			{
				"transaction_id":   "TXN001",
				"account_number":   account,
				"transaction_date": "2024-01-10",
				"posting_date":     "2024-01-11",
				"description":      "Supplier payment - Concrete Supplies Inc",
				"amount":           "-1250.00",
				"currency":         "CAD",
				"balance_after":    "48750.00",
				"reference_number": "REF-88213",
				"category":         "supplies",
			},
			{
				"transaction_id":   "TXN002",
				"account_number":   account,
				"transaction_date": "2024-01-15",
				"posting_date":     "2024-01-15",
				"description":      "Client deposit - ABC Construction Ltd",
				"amount":           "5000.00",
				"currency":         "CAD",
				"balance_after":    "53750.00",
				"reference_number": "REF-88240",
				"category":         "revenue",
			},
		}
	case "balance":
		return []models.Record{{
			"account_number":    account,
			"current_balance":   "53750.00",
			"available_balance": "52500.00",
			"currency":          "CAD",
			"last_updated":      "2024-01-31T23:59:59Z",
		}}
	}
	return paymentFixtures(dataType, filters)
}

// tdFixtures use short field names (id, date, memo), numeric amounts and an
// explicit upper-case transaction type.
func tdFixtures(dataType string, filters config.Values) []models.Record {
	account := filters.String("account_number", "7654321")
	switch dataType {
	case "transactions":
		return []models.Record{
			{
				"id":            "TD-5001",
				"account":       account,
				"date":          "2024-01-12",
				"memo":          "Equipment rental",
				"amount":        -890.5,
				"type":          "DEBIT",
				"currency":      "CAD",
				"balance_after": 15230.45,
				"reference":     "TD-REF-1",
			},
			{
				"id":            "TD-5002",
				"account":       account,
				"date":          "2024-01-20",
				"memo":          "Holdback release",
				"amount":        2500,
				"type":          "CREDIT",
				"currency":      "CAD",
				"balance_after": 17730.45,
				"reference":     "TD-REF-2",
			},
		}
	case "balance":
		return []models.Record{{
			"account_number":    account,
			"current_balance":   17730.45,
			"available_balance": 17000,
			"currency":          "CAD",
			"last_updated":      "2024-01-31T23:59:59Z",
		}}
	}
	return paymentFixtures(dataType, filters)
}

func paymentFixtures(dataType string, filters config.Values) []models.Record {
	switch dataType {
	case "payment_status":
		return []models.Record{{
			"payment_id":     filters.String("payment_id", "PAY001"),
			"status":         "completed",
			"amount":         "500.00",
			"currency":       "CAD",
			"transaction_id": "TXN456",
			"created_date":   "2024-01-10T09:00:00Z",
			"completed_date": "2024-01-10T09:05:00Z",
		}}
	case "payment_methods":
		return []models.Record{
			{
				"id":              "interac",
				"name":            "Interac e-Transfer",
				"type":            "email_transfer",
				"enabled":         true,
				"fees":            "1.50",
				"currency":        "CAD",
				"processing_time": "5 minutes",
				"min_amount":      "0.01",
				"max_amount":      "3000.00",
				"daily_limit":     "3000.00",
			},
			{
				"id":              "wire",
				"name":            "Wire Transfer",
				"type":            "wire_transfer",
				"enabled":         true,
				"fees":            "25.00",
				"currency":        "CAD",
				"processing_time": "1 business day",
				"min_amount":      "100.00",
				"max_amount":      "1000000.00",
				"daily_limit":     "5000000.00",
			},
			{
				"id":              "ach",
				"name":            "Direct Deposit (EFT)",
				"type":            "ach_transfer",
				"enabled":         false,
				"fees":            "0.25",
				"currency":        "CAD",
				"processing_time": "2-3 business days",
				"min_amount":      "1.00",
				"max_amount":      "250000.00",
				"daily_limit":     "500000.00",
			},
		}
	}
	return nil
}

// paymentReceipt acknowledges a sandbox send. Payments get bank-assigned ids.
func paymentReceipt(dataType string, payload models.Record) map[string]any {
	if dataType != "payment" {
		return sandboxReceipt(dataType, payload)
	}
	return map[string]any{
		"payment_id":     "PAY-" + shortID(),
		"transaction_id": "TXN-" + shortID(),
		"status":         "pending",
		"payment_type":   payload.String("payment_type"),
	}
}

func sandboxReceipt(string, models.Record) map[string]any {
	return map[string]any{"id": uuid.NewString(), "status": "accepted"}
}

func shortID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

func sapFixtures(dataType string, _ config.Values) []models.Record {
	switch dataType {
	case "AP_INVOICE":
		return []models.Record{
			{
				"BELNR": "5100000123",
				"LIFNR": "V1000",
				"NAME1": "Concrete Supplies Inc",
				"XBLNR": "INV-2024-001",
				"WRBTR": "15000.00",
				"WAERS": "CAD",
				"ZFBDT": "2024-02-15",
				"BUDAT": "2024-01-15",
				"AUGBL": "",
			},
			{
				"BELNR": "5100000124",
				"LIFNR": "V1001",
				"NAME1": "Steel Frame Co",
				"XBLNR": "INV-2024-002",
				"WRBTR": "8200.50",
				"WAERS": "CAD",
				"ZFBDT": "2024-02-20",
				"BUDAT": "2024-01-20",
				"AUGBL": "1500000042",
			},
		}
	case "AR_INVOICE":
		return []models.Record{{
			"BELNR": "9000000456",
			"KUNNR": "C2000",
			"NAME1": "ABC Construction Ltd",
			"XBLNR": "AR-2024-010",
			"WRBTR": "42000.00",
			"WAERS": "CAD",
			"ZFBDT": "2024-03-01",
			"BUDAT": "2024-01-31",
		}}
	}
	return nil
}

func oracleFixtures(dataType string, _ config.Values) []models.Record {
	switch dataType {
	case "ap/invoices":
		return []models.Record{{
			"invoice_id":            300100,
			"vendor_id":             "V-2001",
			"vendor_name":           "Lumber Depot",
			"invoice_num":           "LD-7781",
			"invoice_amount":        3120.75,
			"invoice_currency_code": "CAD",
			"terms_date":            "2024-02-28",
			"invoice_date":          "2024-01-29",
			"payment_status_flag":   "N",
		}}
	case "ar/invoices":
		return []models.Record{{
			"customer_trx_id":       500200,
			"bill_to_customer_id":   "C-3001",
			"customer_name":         "XYZ Development",
			"trx_number":            "AR-5520",
			"amount_due_original":   18500,
			"invoice_currency_code": "CAD",
			"due_date":              "2024-03-15",
			"trx_date":              "2024-02-14",
			"payment_status_flag":   "Y",
		}}
	}
	return nil
}

func dynamicsFixtures(dataType string, _ config.Values) []models.Record {
	switch dataType {
	case "vendorInvoices":
		return []models.Record{{
			"RecId":         "5637144576",
			"VendAccount":   "US-101",
			"VendorName":    "Electrical Contractors Ltd",
			"InvoiceNumber": "EC-2024-33",
			"InvoiceAmount": 12750,
			"CurrencyCode":  "CAD",
			"DueDate":       "2024-02-25",
			"InvoiceDate":   "2024-01-26",
			"InvoiceStatus": "Approved",
		}}
	case "customerInvoices":
		return []models.Record{{
			"RecId":         "5637144999",
			"CustAccount":   "CA-201",
			"CustomerName":  "ABC Construction Ltd",
			"InvoiceNumber": "CI-2024-12",
			"InvoiceAmount": 64000,
			"CurrencyCode":  "CAD",
			"DueDate":       "2024-03-10",
			"InvoiceDate":   "2024-02-09",
			"InvoiceStatus": "Open",
		}}
	}
	return nil
}
