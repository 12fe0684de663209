// Package erp implements the ERP integration module. It maps canonical
// financial data types (accounts_payable, general_ledger, ...) onto the
// endpoints and field names of SAP, Oracle ERP Cloud and Dynamics 365
// Finance, and falls back to a pass-through dialect for anything else.
package erp

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/connector/core"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/integration"
	"github.com/fincore/gateway/pkg/logger"
	"github.com/fincore/gateway/pkg/models"
)

// Module is the ERP integration module.
type Module struct {
	conn    core.Connector
	cfg     config.Values
	erpType string
	dialect *dialect
	name    string
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Module.
type Option func(*Module)

// WithClock overrides the time source used for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Module) { m.now = now }
}

// New wraps conn. The ERP dialect is chosen from the connector's erp_type.
func New(conn core.Connector, opts ...Option) *Module {
	cfg := integration.ConfigOf(conn)
	erpType := strings.ToLower(cfg.String("erp_type", "generic"))
	m := &Module{
		conn:    conn,
		cfg:     cfg,
		erpType: erpType,
		dialect: lookupDialect(erpType),
		name:    "ERP_" + strings.ToUpper(erpType),
		now:     time.Now,
	}
	m.logger = logger.Get().With(zap.String("module", m.name))
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the module name, e.g. ERP_SAP.
func (m *Module) Name() string { return m.name }

// ERPType returns the configured ERP.
func (m *Module) ERPType() string { return m.erpType }

// Endpoint returns the ERP endpoint a canonical data type maps to.
func (m *Module) Endpoint(dataType string) string { return m.dialect.Endpoint(dataType) }

// SyncFinancialData pulls each data type in turn and converts the records to
// canonical form. filters may be nil.
func (m *Module) SyncFinancialData(ctx context.Context, dataTypes []string, filters map[string]any) *integration.BatchResult[models.Record] {
	batch := integration.NewBatch[models.Record](m.name, m.now())
	for _, dataType := range dataTypes {
		records, res := m.fetch(ctx, dataType, filters)
		if res.OK() {
			res = keyResult(res, m.dialect.Read(dataType, records))
		}
		batch.Add(dataType, res)
	}
	return batch
}

// fetch pulls dataType from its ERP endpoint. The returned KeyResult carries
// the endpoint and, on failure, the error.
func (m *Module) fetch(ctx context.Context, dataType string, filters map[string]any) ([]models.Record, integration.KeyResult[models.Record]) {
	endpoint := m.dialect.Endpoint(dataType)
	m.logger.Info("syncing financial data", zap.String("data_type", dataType), zap.String("endpoint", endpoint))

	sync := m.conn.SyncData(ctx, endpoint, m.dialect.Filters(filters, m.cfg))
	if !sync.OK() {
		err := sync.Err
		if err == nil {
			err = errors.New(errors.ErrorTypeConnection, "Unknown error")
		}
		res := integration.Failed[models.Record](err)
		res.Endpoint = endpoint
		return nil, res
	}
	return sync.Data, integration.KeyResult[models.Record]{Status: core.StatusSuccess, Endpoint: endpoint}
}

func keyResult[T any](meta integration.KeyResult[models.Record], data []T) integration.KeyResult[T] {
	res := integration.Succeeded(data)
	res.Endpoint = meta.Endpoint
	return res
}

// SyncAccountsPayable pulls payables as invoices.
func (m *Module) SyncAccountsPayable(ctx context.Context, filters map[string]any) integration.KeyResult[models.Invoice] {
	return m.syncInvoices(ctx, AccountsPayable, filters)
}

// SyncAccountsReceivable pulls receivables as invoices.
func (m *Module) SyncAccountsReceivable(ctx context.Context, filters map[string]any) integration.KeyResult[models.Invoice] {
	return m.syncInvoices(ctx, AccountsReceivable, filters)
}

func (m *Module) syncInvoices(ctx context.Context, dataType string, filters map[string]any) integration.KeyResult[models.Invoice] {
	records, res := m.fetch(ctx, dataType, filters)
	if !res.OK() {
		return integration.KeyResult[models.Invoice]{Status: res.Status, Message: res.Message, Endpoint: res.Endpoint, Err: res.Err}
	}
	return keyResult(res, m.dialect.Invoices(dataType, records))
}

// SyncGeneralLedger pulls general ledger entries.
func (m *Module) SyncGeneralLedger(ctx context.Context, filters map[string]any) integration.KeyResult[models.Record] {
	return m.syncOne(ctx, GeneralLedger, filters)
}

// SyncCostCenters pulls cost centers.
func (m *Module) SyncCostCenters(ctx context.Context, filters map[string]any) integration.KeyResult[models.Record] {
	return m.syncOne(ctx, CostCenters, filters)
}

// SyncProjects pulls projects from the ERP project ledger.
func (m *Module) SyncProjects(ctx context.Context, filters map[string]any) integration.KeyResult[models.Project] {
	records, res := m.fetch(ctx, Projects, filters)
	if !res.OK() {
		return integration.KeyResult[models.Project]{Status: res.Status, Message: res.Message, Endpoint: res.Endpoint, Err: res.Err}
	}
	projects := make([]models.Project, 0, len(records))
	for _, r := range m.dialect.Read(Projects, records) {
		p := models.ProjectFromRecord(r)
		p.Source = m.dialect.source
		projects = append(projects, p)
	}
	return keyResult(res, projects)
}

func (m *Module) syncOne(ctx context.Context, dataType string, filters map[string]any) integration.KeyResult[models.Record] {
	return m.SyncFinancialData(ctx, []string{dataType}, filters).Results[dataType]
}

// SendResult is returned by SendFinancialData.
type SendResult struct {
	Module      string            `json:"module"`
	DataType    string            `json:"data_type"`
	RecordsSent int               `json:"records_sent"`
	Endpoint    string            `json:"erp_endpoint"`
	Status      core.ResultStatus `json:"status"`
	Message     string            `json:"message"`
	Timestamp   time.Time         `json:"timestamp"`
	Err         error             `json:"-"`
}

// OK reports whether the send succeeded.
func (r SendResult) OK() bool { return r.Status != core.StatusError }

// SendFinancialData converts canonical records into the ERP's format and
// sends them to the data type's endpoint in one request.
func (m *Module) SendFinancialData(ctx context.Context, dataType string, records []models.Record) SendResult {
	endpoint := m.dialect.Endpoint(dataType)
	out := SendResult{
		Module:    m.name,
		DataType:  dataType,
		Endpoint:  endpoint,
		Timestamp: m.now().UTC(),
	}

	m.logger.Info("sending financial data",
		zap.String("data_type", dataType),
		zap.String("endpoint", endpoint),
		zap.Int("records", len(records)))

	res := m.conn.SendData(ctx, m.dialect.Write(dataType, records, m.cfg), endpoint)
	out.Status, out.Message, out.Err = res.Status, res.Message, res.Err
	if res.OK() {
		out.RecordsSent = len(records)
	}
	return out
}

// ModuleStatus describes the module and its connector.
type ModuleStatus struct {
	Module             string      `json:"module"`
	ERPType            string      `json:"erp_type"`
	ConnectorStatus    core.Status `json:"connector_status"`
	SupportedDataTypes []string    `json:"supported_data_types"`
	LastSync           *time.Time  `json:"last_sync"`
}

// Status reports the module configuration and connector state without
// touching the network.
func (m *Module) Status() ModuleStatus {
	st := m.conn.Status()
	return ModuleStatus{
		Module:             m.name,
		ERPType:            m.erpType,
		ConnectorStatus:    st,
		SupportedDataTypes: append([]string(nil), SupportedDataTypes...),
		LastSync:           st.LastSync,
	}
}
