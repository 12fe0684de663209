// Package transport provides the REST transport connectors for CRM, project
// management, banking and ERP systems.
//
// One Connector implementation serves every domain. A Domain names the
// config field that selects the vendor (crm_type, pm_type, bank_type or
// erp_type) and carries the vendor strategy table; unknown vendor values use
// the domain's generic strategy.
//
// Connectors at this layer return vendor-shaped records. Mapping them into
// canonical models is the job of the integration modules.
//
//	c := transport.NewConnector(transport.CRM, "sales", config.Values{
//	    "crm_type": "salesforce",
//	    "api_url":  "https://example.my.salesforce.com/services/data/v59.0",
//	    "api_key":  os.Getenv("SF_TOKEN"),
//	}, recorder)
//	res := c.SyncData(ctx, "customers", nil)
package transport

import (
	"sort"
	"strings"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/models"
)

// Generic is the fallback vendor key of every domain.
const Generic = "generic"

// FixtureFunc returns sandbox records for a data type.
type FixtureFunc func(dataType string, filters config.Values) []models.Record

// ReceiptFunc returns the sandbox response to a send.
type ReceiptFunc func(dataType string, payload models.Record) map[string]any

// Vendor is the strategy for one remote system.
type Vendor struct {
	Key     string
	Display string
	// Prefix is prepended to every resource path.
	Prefix string
	// HealthPath is probed by TestConnection; empty means the API root.
	HealthPath string
	// Resources maps data types to REST resources. Unmapped types are used
	// as the resource name verbatim.
	Resources map[string]string

	Fixtures FixtureFunc
	Receipt  ReceiptFunc
}

// Resource returns the request path for dataType.
func (v Vendor) Resource(dataType string) string {
	resource := dataType
	if mapped, ok := v.Resources[dataType]; ok {
		resource = mapped
	}
	if v.Prefix == "" {
		return resource
	}
	return strings.TrimRight(v.Prefix, "/") + "/" + strings.TrimLeft(resource, "/")
}

// Domain describes one family of transport connectors.
type Domain struct {
	// Type is the registry type tag.
	Type string
	// TypeField is the config key selecting the vendor.
	TypeField string
	// Label names the domain in messages, e.g. "CRM".
	Label       string
	DefaultName string
	Description string

	vendors map[string]Vendor
}

// Vendor returns the strategy for key, falling back to the generic one.
func (d Domain) Vendor(key string) Vendor {
	if v, ok := d.vendors[strings.ToLower(strings.TrimSpace(key))]; ok {
		return v
	}
	return d.vendors[Generic]
}

// Vendors lists the known vendor keys, sorted.
func (d Domain) Vendors() []string {
	keys := make([]string, 0, len(d.vendors))
	for k := range d.vendors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Required returns the required config fields.
func (d Domain) Required() []string {
	return []string{d.TypeField, "api_url", "api_key"}
}

func newDomain(d Domain, vendors ...Vendor) Domain {
	d.vendors = make(map[string]Vendor, len(vendors))
	for _, v := range vendors {
		d.vendors[v.Key] = v
	}
	return d
}

// CRM covers customer relationship management systems.
var CRM = newDomain(Domain{
	Type:        "crm",
	TypeField:   "crm_type",
	Label:       "CRM",
	DefaultName: "CRMConnector",
	Description: "CRM systems (Salesforce, Dynamics CRM, HubSpot)",
},
	Vendor{
		Key:        "salesforce",
		Display:    "Salesforce",
		HealthPath: "limits",
		Resources:  map[string]string{"customers": "sobjects/Account", "leads": "sobjects/Lead", "contacts": "sobjects/Contact"},
		Fixtures:   crmFixtures,
	},
	Vendor{
		Key:        "dynamics",
		Display:    "Dynamics CRM",
		HealthPath: "WhoAmI",
		Resources:  map[string]string{"customers": "accounts", "leads": "leads", "contacts": "contacts"},
		Fixtures:   crmFixtures,
	},
	Vendor{
		Key:       "hubspot",
		Display:   "HubSpot",
		Prefix:    "crm/v3/objects",
		Resources: map[string]string{"customers": "companies", "leads": "contacts", "contacts": "contacts"},
		Fixtures:  crmFixtures,
	},
	Vendor{Key: Generic, Display: "generic CRM", Fixtures: crmFixtures},
)

// PM covers project management systems.
var PM = newDomain(Domain{
	Type:        "pm",
	TypeField:   "pm_type",
	Label:       "PM",
	DefaultName: "ProjectManagementConnector",
	Description: "Project management systems (Jira, Asana, MS Project)",
},
	Vendor{
		Key:        "jira",
		Display:    "Jira",
		Prefix:     "rest/api/3",
		HealthPath: "rest/api/3/myself",
		Resources:  map[string]string{"projects": "project/search", "tasks": "search"},
		Fixtures:   pmFixtures,
	},
	Vendor{
		Key:        "asana",
		Display:    "Asana",
		HealthPath: "users/me",
		Resources:  map[string]string{"projects": "projects", "tasks": "tasks"},
		Fixtures:   pmFixtures,
	},
	Vendor{
		Key:        "msproject",
		Display:    "MS Project",
		Prefix:     "_api/ProjectServer",
		HealthPath: "_api/ProjectServer",
		Resources:  map[string]string{"projects": "Projects", "tasks": "Tasks"},
		Fixtures:   pmFixtures,
	},
	Vendor{Key: Generic, Display: "generic PM system", Fixtures: pmFixtures},
)

var bankResources = map[string]string{
	"transactions":    "accounts/transactions",
	"balance":         "accounts/balance",
	"payment":         "payments",
	"payment_status":  "payments/status",
	"payment_methods": "payments/methods",
}

// Banking covers bank account and payment APIs.
var Banking = newDomain(Domain{
	Type:        "banking",
	TypeField:   "bank_type",
	Label:       "banking",
	DefaultName: "BankingConnector",
	Description: "Canadian bank APIs (RBC, TD, BMO, Scotiabank)",
},
	Vendor{Key: "rbc", Display: "Royal Bank of Canada", Resources: bankResources, Fixtures: rbcFixtures, Receipt: paymentReceipt},
	Vendor{Key: "td", Display: "TD Bank", Resources: bankResources, Fixtures: tdFixtures, Receipt: paymentReceipt},
	Vendor{Key: "bmo", Display: "Bank of Montreal", Resources: bankResources, Fixtures: rbcFixtures, Receipt: paymentReceipt},
	Vendor{Key: "scotiabank", Display: "Scotiabank", Resources: bankResources, Fixtures: tdFixtures, Receipt: paymentReceipt},
	Vendor{Key: Generic, Display: "generic bank", Resources: bankResources, Fixtures: rbcFixtures, Receipt: paymentReceipt},
)

// ERP covers enterprise resource planning systems. Integration modules pass
// vendor-native endpoint names as data types, so no resource table is needed.
var ERP = newDomain(Domain{
	Type:        "erp",
	TypeField:   "erp_type",
	Label:       "ERP",
	DefaultName: "ERPConnector",
	Description: "ERP systems (SAP, Oracle ERP Cloud, Dynamics 365 Finance)",
},
	Vendor{Key: "sap", Display: "SAP", Prefix: "sap/opu/odata/sap", Fixtures: sapFixtures},
	Vendor{Key: "oracle", Display: "Oracle ERP Cloud", Prefix: "fscmRestApi/resources/latest", Fixtures: oracleFixtures},
	Vendor{Key: "dynamics", Display: "Dynamics 365 Finance", Prefix: "data", Fixtures: dynamicsFixtures},
	Vendor{Key: Generic, Display: "generic ERP"},
)

// Domains lists every transport domain.
func Domains() []Domain {
	return []Domain{CRM, PM, Banking, ERP}
}
