package erp

import (
	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/models"
)

// readInvoice maps a vendor record to the canonical invoice.
func (d *dialect) readInvoice(dataType string, cols invoiceColumns, r models.Record) models.Invoice {
	return models.Invoice{
		ID:            r.String(cols.ID),
		Kind:          invoiceKind(dataType),
		PartyID:       r.String(cols.Party),
		PartyName:     r.String(cols.Name),
		InvoiceNumber: r.String(cols.Number),
		Amount:        models.ParseAmount(r.Get(cols.Amount)),
		Currency:      r.String(cols.Currency),
		DueDate:       r.String(cols.Due),
		PostingDate:   r.String(cols.Posting),
		Status:        cols.Status(r),
		Source:        d.source,
	}
}

// Invoices reads vendor records as invoices. Types without a field map are
// read using canonical keys.
func (d *dialect) Invoices(dataType string, records []models.Record) []models.Invoice {
	out := make([]models.Invoice, 0, len(records))
	cols, mapped := d.invoices[dataType]
	for _, r := range records {
		if mapped {
			out = append(out, d.readInvoice(dataType, cols, r))
			continue
		}
		out = append(out, models.InvoiceFromRecord(invoiceKind(dataType), r))
	}
	return out
}

// Read converts vendor records into canonical records. Unmapped pairs are
// returned unchanged.
func (d *dialect) Read(dataType string, records []models.Record) []models.Record {
	cols, mapped := d.invoices[dataType]
	if !mapped {
		return records
	}
	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		out = append(out, d.readInvoice(dataType, cols, r).Record())
	}
	return out
}

// Write wraps canonical records in the vendor envelope. Invoice types are
// renamed to vendor columns; anything else travels under "data" as is.
func (d *dialect) Write(dataType string, records []models.Record, cfg config.Values) models.Record {
	cols, mapped := d.invoices[dataType]
	if !mapped || d.envelope == nil {
		if records == nil {
			records = []models.Record{}
		}
		return models.Record{"data": records}
	}

	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		inv := models.InvoiceFromRecord(invoiceKind(dataType), r)
		currency := inv.Currency
		if currency == "" {
			currency = defaultCurrency
		}

		row := models.Record{}
		if d.header != nil {
			for k, v := range d.header(cfg) {
				row[k] = v
			}
		}
		row[cols.Party] = inv.PartyID
		row[cols.Number] = inv.InvoiceNumber
		row[cols.Amount] = inv.Amount
		row[cols.Currency] = currency
		row[cols.Due] = inv.DueDate
		row[cols.Posting] = inv.PostingDate
		out = append(out, row)
	}
	return models.Record{d.envelope(dataType): out}
}

// Filters merges the vendor's required parameters into filters. Vendor
// values win; blank vendor values are left out.
func (d *dialect) Filters(filters map[string]any, cfg config.Values) map[string]any {
	out := make(map[string]any, len(filters)+2)
	for k, v := range filters {
		out[k] = v
	}
	if d.filters == nil {
		return out
	}
	for k, v := range d.filters(cfg) {
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		out[k] = v
	}
	return out
}
