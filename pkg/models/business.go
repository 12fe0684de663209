package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// InvoiceKind distinguishes payables from receivables.
type InvoiceKind string

const (
	InvoicePayable    InvoiceKind = "payable"
	InvoiceReceivable InvoiceKind = "receivable"
)

// Invoice is a canonical ERP invoice. PartyID/PartyName hold the vendor for
// payables and the customer for receivables.
type Invoice struct {
	ID            string          `json:"id"`
	Kind          InvoiceKind     `json:"kind"`
	PartyID       string          `json:"party_id"`
	PartyName     string          `json:"party_name"`
	InvoiceNumber string          `json:"invoice_number"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	DueDate       string          `json:"due_date,omitempty"`
	PostingDate   string          `json:"posting_date,omitempty"`
	Status        string          `json:"status"`
	Source        string          `json:"erp_source"`
}

// InvoiceFromRecord reads an invoice from a record using canonical keys.
func InvoiceFromRecord(kind InvoiceKind, r Record) Invoice {
	return Invoice{
		ID:            r.String("id"),
		Kind:          kind,
		PartyID:       r.String("party_id", "vendor_id", "customer_id"),
		PartyName:     r.String("party_name", "vendor_name", "customer_name"),
		InvoiceNumber: r.String("invoice_number"),
		Amount:        ParseAmount(r.Get("amount")),
		Currency:      r.String("currency"),
		DueDate:       r.String("due_date"),
		PostingDate:   r.String("posting_date"),
		Status:        r.String("status"),
		Source:        r.String("erp_source"),
	}
}

// Record converts the invoice to a record keyed by canonical names. The party
// is also exposed as vendor_* or customer_* depending on the kind.
func (i Invoice) Record() Record {
	r := Record{
		"id":             i.ID,
		"kind":           string(i.Kind),
		"party_id":       i.PartyID,
		"party_name":     i.PartyName,
		"invoice_number": i.InvoiceNumber,
		"amount":         i.Amount,
		"currency":       i.Currency,
		"due_date":       i.DueDate,
		"posting_date":   i.PostingDate,
		"status":         i.Status,
	}
	switch i.Kind {
	case InvoicePayable:
		r["vendor_id"], r["vendor_name"] = i.PartyID, i.PartyName
	case InvoiceReceivable:
		r["customer_id"], r["customer_name"] = i.PartyID, i.PartyName
	}
	if i.Source != "" {
		r["erp_source"] = i.Source
	}
	return r
}

// Customer is a canonical CRM account.
type Customer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Status string `json:"status,omitempty"`
	Source string `json:"source,omitempty"`
}

// CustomerFromRecord reads a CRM account. Salesforce, Dynamics and HubSpot
// field names are recognised next to the canonical ones.
func CustomerFromRecord(r Record) Customer {
	r = flatten(r)
	return Customer{
		ID:     field(r, "id", "Id", "accountid", "hs_object_id"),
		Name:   field(r, "name", "Name"),
		Email:  field(r, "email", "Email", "emailaddress1", "domain"),
		Phone:  field(r, "phone", "Phone", "telephone1"),
		Status: field(r, "status", "Status", "statecode", "lifecyclestage"),
	}
}

// Lead is a canonical CRM prospect.
type Lead struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Status string `json:"status,omitempty"`
	Source string `json:"source,omitempty"`
}

// LeadFromRecord reads a CRM prospect. A lead without a name falls back to
// its company, then to first and last name.
func LeadFromRecord(r Record) Lead {
	r = flatten(r)
	name := field(r, "name", "Name", "fullname", "Company", "company")
	if name == "" {
		name = strings.TrimSpace(field(r, "FirstName", "firstname") + " " + field(r, "LastName", "lastname"))
	}
	return Lead{
		ID:     field(r, "id", "Id", "leadid", "hs_object_id"),
		Name:   name,
		Email:  field(r, "email", "Email", "emailaddress1"),
		Status: field(r, "status", "Status", "statuscode", "hs_lead_status"),
	}
}

// Project is a canonical project record.
type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Source    string `json:"source,omitempty"`
}

// ProjectFromRecord reads a project from a PM or ERP system. Jira, Asana,
// MS Project and the ERP project ledgers are recognised.
func ProjectFromRecord(r Record) Project {
	r = flatten(r)
	return Project{
		ID:        field(r, "id", "gid", "Id", "key", "ProjectId", "ProjectNumber", "PROJECT_ID"),
		Name:      field(r, "name", "Name", "ProjectName", "PROJECT_NAME", "Description"),
		Status:    field(r, "status", "current_status", "ProjectStatus", "ProjectStatusCode", "STATUS"),
		StartDate: field(r, "start_date", "start_on", "ProjectStartDate", "StartDate", "START_DATE"),
		EndDate:   field(r, "end_date", "due_on", "ProjectFinishDate", "FinishDate", "END_DATE"),
	}
}

// Task is a canonical project task.
type Task struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Status    string `json:"status,omitempty"`
	Assignee  string `json:"assignee,omitempty"`
	Source    string `json:"source,omitempty"`
}

// TaskFromRecord reads a task or issue. Jira keeps its fields in a nested
// "fields" object whose project, status and assignee are objects too.
func TaskFromRecord(r Record) Task {
	flat := flatten(r)
	projectID := flat.String("project_id", "ProjectId")
	if project := flat.Map("project"); project != nil {
		projectID = project.String("id", "gid", "key")
	}
	if projectID == "" {
		if projects, ok := flat["projects"].([]any); ok && len(projects) > 0 {
			if first, ok := AsRecord(projects[0]); ok {
				projectID = first.String("gid", "id")
			}
		}
	}
	status := field(flat, "status", "TaskStatus")
	if done, ok := flat["completed"].(bool); ok && status == "" {
		status = "open"
		if done {
			status = "completed"
		}
	}
	return Task{
		ID:        field(flat, "id", "gid", "Id", "TaskId"),
		ProjectID: projectID,
		Name:      field(flat, "name", "summary", "Name", "TaskName"),
		Status:    status,
		Assignee:  field(flat, "assignee", "AssignedTo", "TaskResourceNames"),
	}
}

// nestedBags are the objects vendors keep record fields in: HubSpot
// "properties" and Jira "fields".
var nestedBags = []string{"properties", "fields"}

// flatten lifts the fields of nested bags to the top level. Top-level keys
// win.
func flatten(r Record) Record {
	out := r.Clone()
	for _, bag := range nestedBags {
		nested := r.Map(bag)
		for k, v := range nested {
			if _, exists := out[k]; !exists {
				out[k] = v
			}
		}
	}
	return out
}

// field returns the first non-empty value among keys. Nested objects such
// as a Jira status or assignee yield their display name.
func field(r Record, keys ...string) string {
	for _, k := range keys {
		if nested := r.Map(k); nested != nil {
			if s := nested.String("name", "displayName"); s != "" {
				return s
			}
			continue
		}
		if s := r.String(k); s != "" {
			return s
		}
	}
	return ""
}
