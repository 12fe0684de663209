// Package crm reads customer relationship data through a CRM connector and
// returns it as canonical models.Customer and models.Lead values.
package crm

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/fincore/gateway/pkg/connector/core"
	"github.com/fincore/gateway/pkg/integration"
	"github.com/fincore/gateway/pkg/logger"
	"github.com/fincore/gateway/pkg/models"
)

// Data types requested from the connector.
const (
	DataCustomers = "customers"
	DataLeads     = "leads"
)

// Module is the CRM integration module.
type Module struct {
	conn    core.Connector
	crmType string
	name    string
	logger  *zap.Logger
}

// New wraps conn. The vendor is read from the connector's crm_type.
func New(conn core.Connector) *Module {
	crmType := strings.ToLower(integration.ConfigOf(conn).String("crm_type", "generic"))
	m := &Module{
		conn:    conn,
		crmType: crmType,
		name:    "CRM_" + strings.ToUpper(crmType),
	}
	m.logger = logger.Get().With(zap.String("module", m.name))
	return m
}

// Name returns the module name, e.g. CRM_SALESFORCE.
func (m *Module) Name() string { return m.name }

// Customers pulls accounts. filters may be nil.
func (m *Module) Customers(ctx context.Context, filters map[string]any) integration.KeyResult[models.Customer] {
	m.logger.Info("syncing customers")
	return integration.FromSync(m.conn.SyncData(ctx, DataCustomers, filters), func(r models.Record) models.Customer {
		c := models.CustomerFromRecord(r)
		c.Source = m.crmType
		return c
	})
}

// Leads pulls prospects. filters may be nil.
func (m *Module) Leads(ctx context.Context, filters map[string]any) integration.KeyResult[models.Lead] {
	m.logger.Info("syncing leads")
	return integration.FromSync(m.conn.SyncData(ctx, DataLeads, filters), func(r models.Record) models.Lead {
		l := models.LeadFromRecord(r)
		l.Source = m.crmType
		return l
	})
}
