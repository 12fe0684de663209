package transport

import (
	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/connector/core"
	"github.com/fincore/gateway/pkg/connector/registry"
	"github.com/fincore/gateway/pkg/oplog"
)

func init() {
	for _, domain := range Domains() {
		domain := domain
		registry.MustRegister(domain.Type, func(cfg *config.ConnectorConfig, rec *oplog.Recorder) (core.Connector, error) {
			return NewConnector(domain, cfg.Name, cfg.Data, rec), nil
		})
		_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
			Type:           domain.Type,
			Description:    domain.Description,
			Version:        "1.0.0",
			RequiredFields: domain.Required(),
			Vendors:        domain.Vendors(),
			Capabilities:   []string{"connect", "test_connection", "sync_data", "send_data", "sandbox"},
		})
	}
}
