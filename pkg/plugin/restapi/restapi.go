// Package restapi is the compiled-in rest_api plugin: a minimal custom
// connector backend for JSON APIs that expose GET and POST on
// /<data type> and a /health probe.
package restapi

import (
	"context"
	"net/http"
	"time"

	"github.com/fincore/gateway/pkg/clients"
	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/connector/transport"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/models"
	"github.com/fincore/gateway/pkg/plugin"
)

// Class is the plugin_class selecting this plugin.
const Class = "rest_api"

const version = "1.0.0"

func init() {
	plugin.MustRegister(Class, func(cfg config.Values) (plugin.Plugin, error) {
		return New(cfg), nil
	})
}

// Plugin talks to a JSON API at api_url.
type Plugin struct {
	cfg    config.Values
	client *clients.Client
	now    func() time.Time
}

// New creates the plugin. Nothing is dialled until Initialize.
func New(cfg config.Values) *Plugin {
	return &Plugin{cfg: cfg, now: time.Now}
}

func (p *Plugin) Name() string { return Class }

// Initialize builds the HTTP client; api_key is sent as a bearer token.
func (p *Plugin) Initialize(context.Context) error {
	if p.cfg.IsEmpty("api_url") {
		return errors.New(errors.ErrorTypeConfig, "Required field 'api_url' is missing")
	}
	client, err := clients.NewClient(clients.ConfigFromValues(p.cfg))
	if err != nil {
		return err
	}
	p.client = client
	return nil
}

func (p *Plugin) Cleanup(context.Context) error {
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
	return nil
}

// TestConnection reports whether /health answers 200.
func (p *Plugin) TestConnection(ctx context.Context) (bool, error) {
	if p.client == nil {
		return false, nil
	}
	code, err := p.client.Status(ctx, "health")
	if err != nil {
		return false, err
	}
	return code == http.StatusOK, nil
}

// SyncData GETs /<dataType> with filters as query parameters.
func (p *Plugin) SyncData(ctx context.Context, dataType string, filters map[string]any) ([]models.Record, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	var body any
	if err := p.client.GetJSON(ctx, dataType, transport.QueryFrom(filters), &body); err != nil {
		return nil, err
	}
	return transport.Unwrap(body)
}

// SendData POSTs payload to /<dataType>.
func (p *Plugin) SendData(ctx context.Context, payload models.Record, dataType string) (map[string]any, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	var body any
	if err := p.client.PostJSON(ctx, dataType, payload, &body); err != nil {
		return nil, err
	}
	ack := map[string]any{"success": true}
	if body != nil {
		ack["response"] = body
	}
	return ack, nil
}

func (p *Plugin) Metadata() map[string]any {
	return map[string]any{
		"name":                 Class,
		"version":              version,
		"description":          "Generic JSON API plugin",
		"supported_operations": []string{"sync_data", "send_data", "test_connection", "ping"},
		"config_fields":        []string{"api_url", "api_key"},
	}
}

// Methods declares ping, which reports the /health status code and the
// round trip time.
func (p *Plugin) Methods() map[string]plugin.MethodFunc {
	return map[string]plugin.MethodFunc{
		"ping": func(ctx context.Context, _ ...any) (any, error) {
			if err := p.ready(); err != nil {
				return nil, err
			}
			start := p.now()
			code, err := p.client.Status(ctx, "health")
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"status_code": code,
				"latency_ms":  p.now().Sub(start).Milliseconds(),
			}, nil
		},
	}
}

func (p *Plugin) ready() error {
	if p.client == nil {
		return errors.New(errors.ErrorTypeConnection, "rest_api plugin is not initialized")
	}
	return nil
}
