package erp

import (
	"strings"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/models"
)

// Canonical data types.
const (
	AccountsPayable    = "accounts_payable"
	AccountsReceivable = "accounts_receivable"
	GeneralLedger      = "general_ledger"
	CostCenters        = "cost_centers"
	Projects           = "projects"
)

// SupportedDataTypes lists the canonical data types every ERP maps.
var SupportedDataTypes = []string{AccountsPayable, AccountsReceivable, GeneralLedger, CostCenters, Projects}

const defaultCurrency = "CAD"

// invoiceColumns names the vendor columns of one invoice document.
type invoiceColumns struct {
	ID       string
	Party    string
	Name     string
	Number   string
	Amount   string
	Currency string
	Due      string
	Posting  string
	// Status derives the canonical status from the vendor record.
	Status func(models.Record) string
}

// dialect describes how one ERP names things.
type dialect struct {
	key    string
	source string

	endpoints map[string]string
	// fallback maps data types missing from endpoints.
	fallback func(string) string
	filters  func(cfg config.Values) map[string]any

	invoices map[string]invoiceColumns
	// envelope returns the top-level key wrapping outbound invoices.
	envelope func(dataType string) string
	// header adds vendor fields to every outbound invoice.
	header func(cfg config.Values) models.Record
}

var dialects = map[string]*dialect{
	"sap": {
		key:    "sap",
		source: "SAP",
		endpoints: map[string]string{
			AccountsPayable:    "AP_INVOICE",
			AccountsReceivable: "AR_INVOICE",
			GeneralLedger:      "GL_ACCOUNT",
			CostCenters:        "COST_CENTER",
			Projects:           "PROJECT_SYSTEM",
		},
		fallback: strings.ToUpper,
		filters: func(cfg config.Values) map[string]any {
			return map[string]any{"client": cfg.String("sap_client", "100"), "language": "EN"}
		},
		invoices: map[string]invoiceColumns{
			AccountsPayable:    sapColumns("LIFNR"),
			AccountsReceivable: sapColumns("KUNNR"),
		},
		envelope: func(string) string { return "INVOICES" },
		header: func(cfg config.Values) models.Record {
			return models.Record{"BUKRS": cfg.String("sap_company_code", "")}
		},
	},
	"oracle": {
		key:    "oracle",
		source: "Oracle",
		endpoints: map[string]string{
			AccountsPayable:    "ap/invoices",
			AccountsReceivable: "ar/invoices",
			GeneralLedger:      "gl/journals",
			CostCenters:        "gl/costcenters",
			Projects:           "ppm/projects",
		},
		fallback: func(s string) string { return strings.ReplaceAll(s, "_", "/") },
		filters: func(cfg config.Values) map[string]any {
			return map[string]any{
				"ledger_id":     cfg.String("oracle_ledger_id", ""),
				"business_unit": cfg.String("oracle_business_unit", ""),
			}
		},
		invoices: map[string]invoiceColumns{
			AccountsPayable: {
				ID:       "invoice_id",
				Party:    "vendor_id",
				Name:     "vendor_name",
				Number:   "invoice_num",
				Amount:   "invoice_amount",
				Currency: "invoice_currency_code",
				Due:      "terms_date",
				Posting:  "invoice_date",
				Status:   oracleStatus,
			},
			AccountsReceivable: {
				ID:       "customer_trx_id",
				Party:    "bill_to_customer_id",
				Name:     "customer_name",
				Number:   "trx_number",
				Amount:   "amount_due_original",
				Currency: "invoice_currency_code",
				Due:      "due_date",
				Posting:  "trx_date",
				Status:   oracleStatus,
			},
		},
		envelope: func(string) string { return "invoices" },
	},
	"dynamics": {
		key:    "dynamics",
		source: "Dynamics",
		endpoints: map[string]string{
			AccountsPayable:    "vendorInvoices",
			AccountsReceivable: "customerInvoices",
			GeneralLedger:      "generalLedgerEntries",
			CostCenters:        "dimensions",
			Projects:           "projects",
		},
		fallback: func(s string) string { return s },
		filters: func(cfg config.Values) map[string]any {
			return map[string]any{
				"company":    cfg.String("dynamics_company", ""),
				"dataAreaId": cfg.String("dynamics_data_area_id", ""),
			}
		},
		invoices: map[string]invoiceColumns{
			AccountsPayable:    dynamicsColumns("VendAccount", "VendorName"),
			AccountsReceivable: dynamicsColumns("CustAccount", "CustomerName"),
		},
		envelope: func(dataType string) string {
			if dataType == AccountsReceivable {
				return "customerInvoices"
			}
			return "vendorInvoices"
		},
	},
}

// genericDialect passes records through untouched.
var genericDialect = &dialect{
	key:       "generic",
	endpoints: map[string]string{},
	fallback:  func(s string) string { return strings.ReplaceAll(s, "_", "-") },
}

func lookupDialect(erpType string) *dialect {
	if d, ok := dialects[strings.ToLower(erpType)]; ok {
		return d
	}
	return genericDialect
}

func sapColumns(party string) invoiceColumns {
	return invoiceColumns{
		ID:       "BELNR",
		Party:    party,
		Name:     "NAME1",
		Number:   "XBLNR",
		Amount:   "WRBTR",
		Currency: "WAERS",
		Due:      "ZFBDT",
		Posting:  "BUDAT",
		// A clearing document number means the item is settled.
		Status: func(r models.Record) string {
			if r.String("AUGBL") != "" {
				return "paid"
			}
			return "open"
		},
	}
}

func dynamicsColumns(party, name string) invoiceColumns {
	return invoiceColumns{
		ID:       "RecId",
		Party:    party,
		Name:     name,
		Number:   "InvoiceNumber",
		Amount:   "InvoiceAmount",
		Currency: "CurrencyCode",
		Due:      "DueDate",
		Posting:  "InvoiceDate",
		Status:   func(r models.Record) string { return r.String("InvoiceStatus") },
	}
}

func oracleStatus(r models.Record) string {
	if r.String("payment_status_flag") == "Y" {
		return "paid"
	}
	return "open"
}

// Endpoint returns the ERP endpoint for dataType.
func (d *dialect) Endpoint(dataType string) string {
	if ep, ok := d.endpoints[dataType]; ok {
		return ep
	}
	return d.fallback(dataType)
}

func invoiceKind(dataType string) models.InvoiceKind {
	if dataType == AccountsReceivable {
		return models.InvoiceReceivable
	}
	return models.InvoicePayable
}
