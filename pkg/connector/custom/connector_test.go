package custom

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/connector/core"
	"github.com/fincore/gateway/pkg/connector/registry"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/models"
	"github.com/fincore/gateway/pkg/oplog"
	"github.com/fincore/gateway/pkg/plugin"
	"github.com/fincore/gateway/pkg/testutil"
)

// healthPlugin answers TestConnection with a configured verdict and counts
// cleanups.
type healthPlugin struct {
	healthy  bool
	cleanups *int
}

func (healthPlugin) Name() string { return "health_check" }

func (p healthPlugin) TestConnection(context.Context) (bool, error) { return p.healthy, nil }

func (p healthPlugin) Cleanup(context.Context) error {
	*p.cleanups++
	return nil
}

func (healthPlugin) SyncData(_ context.Context, dataType string, filters map[string]any) ([]models.Record, error) {
	return []models.Record{{"type": dataType, "filters": len(filters)}}, nil
}

type quietPlugin struct{}

func (quietPlugin) Name() string { return "quiet" }

type failInitPlugin struct{}

func (failInitPlugin) Name() string { return "fail_init" }

func (failInitPlugin) Initialize(context.Context) error {
	return errors.New(errors.ErrorTypeConfig, "bad credentials")
}

var healthCleanups int

func init() {
	plugin.MustRegister("health_check", func(cfg config.Values) (plugin.Plugin, error) {
		return healthPlugin{healthy: cfg.Bool("healthy", true), cleanups: &healthCleanups}, nil
	})
	plugin.MustRegister("quiet", func(config.Values) (plugin.Plugin, error) { return quietPlugin{}, nil })
	plugin.MustRegister("fail_init", func(config.Values) (plugin.Plugin, error) { return failInitPlugin{}, nil })
}

func newConnector(t *testing.T, cfg config.Values) (*Connector, *oplog.MemoryStore) {
	t.Helper()
	testutil.TestLogger(t)
	store := oplog.NewMemoryStore()
	return NewConnector("custom-test", cfg, oplog.NewRecorder(store)), store
}

func healthServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/customers", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"C-1"}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func restConfig(srv *httptest.Server) config.Values {
	return config.Values{
		"plugin_class":  "rest_api",
		"plugin_config": map[string]any{"api_url": srv.URL},
	}
}

func TestRegisteredInRegistry(t *testing.T) {
	assert.Contains(t, registry.Types(), "custom")

	info, err := registry.GetConnectorInfo("custom")
	require.NoError(t, err)
	assert.Equal(t, []string{"plugin_class"}, info.RequiredFields)
	assert.Contains(t, info.Vendors, "rest_api")
}

func TestConnectWithRestPlugin(t *testing.T) {
	c, store := newConnector(t, restConfig(healthServer(t)))
	ctx := testutil.TestContext(t)

	res := c.Connect(ctx)
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, "Custom plugin rest_api loaded successfully", res.Message)
	assert.True(t, c.Status().Connected)

	res = c.TestConnection(ctx)
	assert.True(t, res.OK(), res.Message)
	assert.Equal(t, "Custom plugin connection test completed", res.Message)

	sync := c.SyncData(ctx, "customers", nil)
	require.True(t, sync.OK(), sync.Message)
	assert.Equal(t, "Custom plugin synced data type: customers", sync.Message)
	assert.Equal(t, []models.Record{{"id": "C-1"}}, sync.Data)
	assert.Equal(t, "rest_api", sync.Details["plugin"])

	out := c.ExecuteCustomMethod(ctx, "ping")
	require.True(t, out.OK(), out.Message)
	assert.Equal(t, http.StatusOK, out.Value.(map[string]any)["status_code"])

	assert.Equal(t, 4, store.Len())
}

func TestConnectFailures(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Values
		want string
	}{
		{
			name: "missing class",
			cfg:  config.Values{},
			want: "Required field 'plugin_class' is missing",
		},
		{
			name: "unknown builtin",
			cfg:  config.Values{"plugin_class": "ghost"},
			want: `no builtin plugin named "ghost"`,
		},
		{
			name: "initialize error",
			cfg:  config.Values{"plugin_class": "fail_init"},
			want: "Plugin initialization failed: plugin fail_init initialize failed: bad credentials",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store := newConnector(t, tt.cfg)
			res := c.Connect(context.Background())
			assert.Equal(t, core.StatusError, res.Status)
			assert.Contains(t, res.Message, tt.want)
			assert.False(t, c.Status().Connected)
			assert.Equal(t, 1, store.Len())
		})
	}
}

func TestConnectWarnsWithoutSyncOrSend(t *testing.T) {
	c, store := newConnector(t, config.Values{"plugin_class": "quiet"})
	ctx := context.Background()

	res := c.Connect(ctx)
	assert.Equal(t, core.StatusWarning, res.Status)
	assert.Equal(t, []string{noSyncOrSend}, res.Details["warnings"])
	assert.True(t, c.Status().Connected)
	assert.Equal(t, oplog.StatusWarning, store.Entries()[0].Status)

	res = c.TestConnection(ctx)
	assert.Equal(t, "Custom plugin loaded (no test method available)", res.Message)

	sync := c.SyncData(ctx, "anything", nil)
	assert.Equal(t, core.StatusError, sync.Status)
	assert.Equal(t, "Plugin does not implement sync_data method", sync.Message)

	send := c.SendData(ctx, models.Record{"id": 1}, "anything")
	assert.Equal(t, "Plugin does not implement send_data method", send.Message)
}

func TestConnectionTestReportsPluginVerdict(t *testing.T) {
	c, _ := newConnector(t, config.Values{
		"plugin_class":  "health_check",
		"plugin_config": map[string]any{"healthy": false},
	})

	res := c.TestConnection(context.Background())
	assert.Equal(t, core.StatusError, res.Status)
	assert.True(t, errors.IsType(res.Err, errors.ErrorTypeConnection))
	assert.Equal(t, "Custom plugin connection test completed: plugin reported failure", res.Message)
}

func TestExecuteCustomMethodRejectsUndeclared(t *testing.T) {
	c, store := newConnector(t, config.Values{"plugin_class": "health_check"})

	res := c.ExecuteCustomMethod(context.Background(), "Cleanup")
	assert.Equal(t, core.StatusError, res.Status)
	assert.Equal(t, "Plugin does not implement method: Cleanup", res.Message)
	assert.Nil(t, res.Value)

	entries := store.Entries()
	require.Len(t, entries, 2, "implicit connect plus the method call")
	assert.Equal(t, OpExecuteMethod, entries[1].Operation)
}

func TestPluginInfo(t *testing.T) {
	c, _ := newConnector(t, restConfig(healthServer(t)))

	_, err := c.PluginInfo()
	assert.True(t, errors.IsType(err, errors.ErrorTypePlugin))

	require.True(t, c.Connect(context.Background()).OK())
	info, err := c.PluginInfo()
	require.NoError(t, err)
	assert.Equal(t, "rest_api", info.ClassName)
	assert.Equal(t, plugin.Builtin, info.Origin)
	assert.Equal(t, []string{"ping"}, info.Methods)
	assert.True(t, info.Capabilities.Sync)
	assert.Equal(t, "1.0.0", info.Metadata["version"])
}

func TestDisconnectCleansUpOnce(t *testing.T) {
	healthCleanups = 0
	c, _ := newConnector(t, config.Values{"plugin_class": "health_check"})
	ctx := context.Background()

	require.True(t, c.Connect(ctx).OK())
	assert.True(t, c.Disconnect(ctx).OK())
	assert.Equal(t, "Already disconnected", c.Disconnect(ctx).Message)
	assert.Equal(t, 1, healthCleanups)

	_, err := c.PluginInfo()
	assert.Error(t, err, "the handle is released on disconnect")
}

type invoicePosted struct {
	ID     string
	Amount float64
}

func TestEvents(t *testing.T) {
	c, store := newConnector(t, config.Values{"plugin_class": "health_check"})
	ctx := context.Background()
	posted := NewEvent[invoicePosted]("invoice_posted")

	res := Trigger(ctx, c.Events(), posted, invoicePosted{ID: "INV-1"})
	assert.True(t, errors.IsType(res.Err, errors.ErrorTypeNotFound))
	assert.Equal(t, "No handler registered for event: invoice_posted", res.Message)

	res0 := On(c.Events(), posted, func(_ context.Context, p invoicePosted) (any, error) {
		return p.ID + " ok", nil
	})
	assert.Equal(t, "Registered handler for event: invoice_posted", res0.Message)

	res = Trigger(ctx, c.Events(), posted, invoicePosted{ID: "INV-2", Amount: 10})
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, "Event invoice_posted triggered successfully", res.Message)
	assert.Equal(t, "INV-2 ok", res.Value)

	// Same name, different payload type: a separate event.
	other := NewEvent[string]("invoice_posted")
	res = Trigger(ctx, c.Events(), other, "INV-3")
	assert.True(t, errors.IsType(res.Err, errors.ErrorTypeNotFound))

	nilRes := On[string](c.Events(), other, nil)
	assert.True(t, errors.IsType(nilRes.Err, errors.ErrorTypeValidation))

	failing := NewEvent[int]("retry")
	On(c.Events(), failing, func(context.Context, int) (any, error) {
		return nil, errors.New(errors.ErrorTypeValidation, "attempts exhausted")
	})
	res = Trigger(ctx, c.Events(), failing, 3)
	assert.Equal(t, "attempts exhausted", res.Message)

	assert.Equal(t, 7, store.Len(), "one entry per register and trigger")
	for _, e := range store.Entries() {
		assert.Contains(t, []string{OpRegisterHandler, OpTriggerEvent}, e.Operation)
	}
}
