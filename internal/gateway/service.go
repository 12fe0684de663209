// Package gateway is the application service behind the CLI. It resolves
// named connector configurations from storage, builds connectors through
// the registry, wraps them in integration modules when asked, and
// disconnects them when the command finishes. It also manages stored
// configurations and integration jobs.
package gateway

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/connector/core"
	"github.com/fincore/gateway/pkg/connector/registry"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/integration/banking"
	"github.com/fincore/gateway/pkg/integration/crm"
	"github.com/fincore/gateway/pkg/integration/erp"
	"github.com/fincore/gateway/pkg/integration/pm"
	"github.com/fincore/gateway/pkg/logger"
	"github.com/fincore/gateway/pkg/models"
	"github.com/fincore/gateway/pkg/oplog"

	// Register every connector type.
	_ "github.com/fincore/gateway/pkg/connector/custom"
	_ "github.com/fincore/gateway/pkg/connector/messaging"
	_ "github.com/fincore/gateway/pkg/connector/transport"
)

// ConfigSource is where connector configurations live.
type ConfigSource interface {
	Get(ctx context.Context, name string) (*config.ConnectorConfig, error)
	List(ctx context.Context, activeOnly bool) ([]*config.ConnectorConfig, error)
	Upsert(ctx context.Context, cfg *config.ConnectorConfig) (bool, error)
	Update(ctx context.Context, cfg *config.ConnectorConfig) error
	Delete(ctx context.Context, name string) error
}

// Service runs gateway commands.
type Service struct {
	configs  ConfigSource
	jobs     JobSource
	logs     oplog.Store
	recorder *oplog.Recorder
	registry *registry.Registry
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRegistry replaces the global connector registry.
func WithRegistry(r *registry.Registry) Option {
	return func(s *Service) { s.registry = r }
}

// WithJobs enables the job commands.
func WithJobs(jobs JobSource) Option {
	return func(s *Service) { s.jobs = jobs }
}

// WithClock overrides the time source used to stamp job runs.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRecorder replaces the recorder built on the log store.
func WithRecorder(r *oplog.Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// New creates a service over configs and logs.
func New(configs ConfigSource, logs oplog.Store, opts ...Option) *Service {
	s := &Service{
		configs:  configs,
		logs:     logs,
		registry: registry.GetRegistry(),
		logger:   logger.With(zap.String("component", "gateway")),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.recorder == nil {
		s.recorder = oplog.NewRecorder(logs)
	}
	return s
}

// ImportSummary reports what Import changed.
type ImportSummary struct {
	Created []string `json:"created"`
	Updated []string `json:"updated"`
}

// Import loads a YAML connector file and upserts every definition.
func (s *Service) Import(ctx context.Context, path string) (ImportSummary, error) {
	var summary ImportSummary
	cfgs, err := config.LoadConnectors(path)
	if err != nil {
		return summary, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load connector file")
	}
	for i := range cfgs {
		created, err := s.configs.Upsert(ctx, &cfgs[i])
		if err != nil {
			return summary, fmt.Errorf("failed to save connector %s: %w", cfgs[i].Name, err)
		}
		if created {
			summary.Created = append(summary.Created, cfgs[i].Name)
		} else {
			summary.Updated = append(summary.Updated, cfgs[i].Name)
		}
	}
	s.logger.Info("connector definitions imported",
		zap.String("path", path),
		zap.Int("created", len(summary.Created)),
		zap.Int("updated", len(summary.Updated)))
	return summary, nil
}

// Connectors lists stored configurations.
func (s *Service) Connectors(ctx context.Context, activeOnly bool) ([]*config.ConnectorConfig, error) {
	return s.configs.List(ctx, activeOnly)
}

// ConnectorPatch lists the changes UpdateConnector applies. Set keys are
// applied after Unset keys are removed.
type ConnectorPatch struct {
	Active *bool
	Set    map[string]any
	Unset  []string
}

// UpdateConnector applies patch to the stored configuration of name and
// returns the result.
func (s *Service) UpdateConnector(ctx context.Context, name string, patch ConnectorPatch) (*config.ConnectorConfig, error) {
	cfg, err := s.configs.Get(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeNotFound, "unknown connector "+name)
	}
	data := cfg.Data.Clone()
	for _, key := range patch.Unset {
		delete(data, key)
	}
	for key, value := range patch.Set {
		data[key] = value
	}
	cfg.Data = data
	if patch.Active != nil {
		cfg.Active = *patch.Active
	}
	if err := s.configs.Update(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to update connector %s: %w", name, err)
	}
	s.logger.Info("connector updated", zap.String("connector", name), zap.Bool("active", cfg.Active))
	return cfg, nil
}

// DeleteConnector removes the stored configuration of name.
func (s *Service) DeleteConnector(ctx context.Context, name string) error {
	if err := s.configs.Delete(ctx, name); err != nil {
		return errors.Wrap(err, errors.ErrorTypeNotFound, "unknown connector "+name)
	}
	s.logger.Info("connector deleted", zap.String("connector", name))
	return nil
}

// Build resolves name and creates its connector. Inactive configurations are
// refused.
func (s *Service) Build(ctx context.Context, name string) (core.Connector, error) {
	cfg, err := s.configs.Get(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeNotFound, "unknown connector "+name)
	}
	if !cfg.Active {
		return nil, errors.New(errors.ErrorTypeConfig, "connector "+name+" is not active")
	}
	return s.registry.Create(cfg, s.recorder)
}

// Use builds the named connector, passes it to fn and disconnects it
// afterwards, whatever fn returns. A connector fn never connected is left
// alone.
func (s *Service) Use(ctx context.Context, name string, fn func(ctx context.Context, conn core.Connector) error) error {
	conn, err := s.Build(ctx, name)
	if err != nil {
		return err
	}
	defer func() {
		if !conn.Status().Connected {
			return
		}
		if res := conn.Disconnect(context.WithoutCancel(ctx)); !res.OK() {
			s.logger.Warn("disconnect failed", zap.String("connector", name), zap.String("message", res.Message))
		}
	}()
	return fn(ctx, conn)
}

// Status reports the state of a freshly built connector.
func (s *Service) Status(ctx context.Context, name string) (core.Status, error) {
	var st core.Status
	err := s.Use(ctx, name, func(_ context.Context, conn core.Connector) error {
		st = conn.Status()
		return nil
	})
	return st, err
}

// Test runs the connector's connection test.
func (s *Service) Test(ctx context.Context, name string) (core.Result, error) {
	var res core.Result
	err := s.Use(ctx, name, func(ctx context.Context, conn core.Connector) error {
		res = conn.TestConnection(ctx)
		return nil
	})
	return res, err
}

// Sync pulls dataType through the connector.
func (s *Service) Sync(ctx context.Context, name, dataType string, filters map[string]any) (core.SyncResult, error) {
	var res core.SyncResult
	err := s.Use(ctx, name, func(ctx context.Context, conn core.Connector) error {
		res = conn.SyncData(ctx, dataType, filters)
		return nil
	})
	return res, err
}

// Send pushes payload through the connector.
func (s *Service) Send(ctx context.Context, name, dataType string, payload models.Record) (core.Result, error) {
	var res core.Result
	err := s.Use(ctx, name, func(ctx context.Context, conn core.Connector) error {
		res = conn.SendData(ctx, payload, dataType)
		return nil
	})
	return res, err
}

// Logs queries the operation log.
func (s *Service) Logs(ctx context.Context, q oplog.Query) ([]oplog.Entry, error) {
	return s.logs.Query(ctx, q)
}

// withModule runs fn on the named connector after checking its type.
func (s *Service) withModule(ctx context.Context, name, typ string, fn func(ctx context.Context, conn core.Connector) error) error {
	return s.Use(ctx, name, func(ctx context.Context, conn core.Connector) error {
		if conn.Type() != typ {
			return errors.Newf(errors.ErrorTypeValidation, "connector %s is a %s connector, not %s", name, conn.Type(), typ)
		}
		return fn(ctx, conn)
	})
}

// Banking runs fn with a banking module over the named connector.
func (s *Service) Banking(ctx context.Context, name string, fn func(ctx context.Context, m *banking.Module) error) error {
	return s.withModule(ctx, name, "banking", func(ctx context.Context, conn core.Connector) error {
		return fn(ctx, banking.New(conn))
	})
}

// ERP runs fn with an ERP module over the named connector.
func (s *Service) ERP(ctx context.Context, name string, fn func(ctx context.Context, m *erp.Module) error) error {
	return s.withModule(ctx, name, "erp", func(ctx context.Context, conn core.Connector) error {
		return fn(ctx, erp.New(conn))
	})
}

// CRM runs fn with a CRM module over the named connector.
func (s *Service) CRM(ctx context.Context, name string, fn func(ctx context.Context, m *crm.Module) error) error {
	return s.withModule(ctx, name, "crm", func(ctx context.Context, conn core.Connector) error {
		return fn(ctx, crm.New(conn))
	})
}

// PM runs fn with a project management module over the named connector.
func (s *Service) PM(ctx context.Context, name string, fn func(ctx context.Context, m *pm.Module) error) error {
	return s.withModule(ctx, name, "pm", func(ctx context.Context, conn core.Connector) error {
		return fn(ctx, pm.New(conn))
	})
}
