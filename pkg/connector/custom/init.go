package custom

import (
	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/connector/core"
	"github.com/fincore/gateway/pkg/connector/registry"
	"github.com/fincore/gateway/pkg/oplog"
	"github.com/fincore/gateway/pkg/plugin"
	_ "github.com/fincore/gateway/pkg/plugin/restapi"
)

func init() {
	registry.MustRegister("custom", func(cfg *config.ConnectorConfig, rec *oplog.Recorder) (core.Connector, error) {
		return NewConnector(cfg.Name, cfg.Data, rec), nil
	})

	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Type:           "custom",
		Description:    "Plugin-backed connector (compiled-in plugins or sandboxed Go sources)",
		Version:        "1.0.0",
		RequiredFields: []string{"plugin_class"},
		Vendors:        plugin.Builtins(),
		Capabilities:   []string{"connect", "test_connection", "sync_data", "send_data", "custom_methods", "events"},
	})
}
