package restapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/models"
	"github.com/fincore/gateway/pkg/plugin"
	"github.com/fincore/gateway/pkg/testutil"
)

func newServer(t *testing.T, healthy bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/invoices", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "open", r.URL.Query().Get("status"))
			_, _ = w.Write([]byte(`{"data":[{"id":"INV-1"},{"id":"INV-2"}]}`))
		case http.MethodPost:
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "INV-3", body["id"])
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"INV-3","status":"created"}`))
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func initialized(t *testing.T, srv *httptest.Server) *Plugin {
	t.Helper()
	p := New(config.Values{"api_url": srv.URL + "/api", "api_key": "secret"})
	require.NoError(t, p.Initialize(context.Background()))
	t.Cleanup(func() { _ = p.Cleanup(context.Background()) })
	return p
}

func TestRegisteredAsBuiltin(t *testing.T) {
	assert.Contains(t, plugin.Builtins(), Class)

	h, err := plugin.Load(context.Background(), plugin.Descriptor{Path: plugin.Builtin, Class: Class})
	require.NoError(t, err)
	caps := h.Capabilities()
	assert.True(t, caps.Initialize && caps.Cleanup && caps.Test && caps.Sync && caps.Send && caps.Metadata)
	assert.Equal(t, []string{"ping"}, caps.Methods)
}

func TestInitializeRequiresURL(t *testing.T) {
	err := New(config.Values{}).Initialize(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSyncAndSend(t *testing.T) {
	testutil.TestLogger(t)
	p := initialized(t, newServer(t, true))
	ctx := testutil.TestContext(t)

	records, err := p.SyncData(ctx, "invoices", map[string]any{"status": "open"})
	require.NoError(t, err)
	assert.Equal(t, []models.Record{{"id": "INV-1"}, {"id": "INV-2"}}, records)

	ack, err := p.SendData(ctx, models.Record{"id": "INV-3"}, "invoices")
	require.NoError(t, err)
	assert.Equal(t, true, ack["success"])
	assert.Equal(t, map[string]any{"id": "INV-3", "status": "created"}, ack["response"])

	_, err = p.SyncData(ctx, "missing", nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestConnectionTestAndPing(t *testing.T) {
	testutil.TestLogger(t)
	ctx := testutil.TestContext(t)

	ok, err := initialized(t, newServer(t, true)).TestConnection(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	down := initialized(t, newServer(t, false))
	ok, err = down.TestConnection(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	out, err := down.Methods()["ping"](ctx)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, out.(map[string]any)["status_code"])
}

func TestCallsBeforeInitialize(t *testing.T) {
	p := New(config.Values{"api_url": "https://api.example"})

	ok, err := p.TestConnection(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)

	_, err = p.SyncData(context.Background(), "invoices", nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	assert.Equal(t, []string{"api_url", "api_key"}, p.Metadata()["config_fields"])
}
