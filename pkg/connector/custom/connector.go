// Package custom implements the custom connector: a connector whose
// behaviour comes from a plugin resolved at connect time (see package
// plugin), plus a connector-local registry of typed event handlers.
package custom

import (
	"context"

	"go.uber.org/zap"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/connector/base"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/models"
	"github.com/fincore/gateway/pkg/oplog"
	"github.com/fincore/gateway/pkg/plugin"
)

// Operation names beyond the core contract.
const (
	OpExecuteMethod   = "execute_custom_method"
	OpRegisterHandler = "register_handler"
	OpTriggerEvent    = "trigger_event"
)

const noSyncOrSend = "Plugin class should implement at least sync_data or send_data method"

// Connector forwards the connector contract to a loaded plugin.
type Connector struct {
	*base.Connector
	driver *driver
	events *Events
}

// NewConnector creates a custom connector. The plugin is not loaded until
// the first connect.
func NewConnector(name string, cfg config.Values, rec *oplog.Recorder) *Connector {
	d := &driver{desc: plugin.DescriptorFrom(cfg), load: plugin.Load}
	c := &Connector{
		Connector: base.New(base.Options{
			Name:        name,
			DefaultName: "CustomConnector",
			Type:        "custom",
			Display:     "custom plugin",
			Required:    []string{"plugin_class"},
			Config:      cfg,
			Recorder:    rec,
		}, d),
		driver: d,
	}
	d.logger = c.Logger()
	c.events = newEvents(c.Record)
	return c
}

// Events returns the connector's event registry. It lives as long as the
// connector; disconnecting does not clear it.
func (c *Connector) Events() *Events { return c.events }

// ExecuteCustomMethod invokes a method the plugin declared at load time.
func (c *Connector) ExecuteCustomMethod(ctx context.Context, name string, args ...any) Result {
	res := c.Record(ctx, OpExecuteMethod, map[string]any{"method": name, "args": len(args)},
		func(ctx context.Context) (string, map[string]any, error) {
			if err := c.EnsureConnected(ctx); err != nil {
				return "", nil, err
			}
			out, err := c.driver.handle.Call(ctx, name, args...)
			if err != nil {
				return "", nil, err
			}
			return "Custom method " + name + " executed successfully", map[string]any{"result": out}, nil
		})
	return Result{Result: res, Value: res.Details["result"]}
}

// Info describes the loaded plugin.
type Info struct {
	ClassName    string              `json:"class_name"`
	Origin       string              `json:"origin"`
	Capabilities plugin.Capabilities `json:"capabilities"`
	Methods      []string            `json:"methods"`
	Metadata     map[string]any      `json:"metadata,omitempty"`
}

// PluginInfo describes the loaded plugin. It fails when nothing is loaded.
func (c *Connector) PluginInfo() (Info, error) {
	h := c.driver.handle
	if h == nil {
		return Info{}, errors.New(errors.ErrorTypePlugin, "No plugin loaded")
	}
	caps := h.Capabilities()
	info := Info{
		ClassName:    h.Class(),
		Origin:       h.Origin(),
		Capabilities: caps,
		Methods:      caps.Methods,
	}
	if caps.Metadata {
		md, err := h.Metadata()
		if err != nil {
			c.Logger().Warn("plugin metadata unavailable", zap.Error(err))
		}
		info.Metadata = md
	}
	return info, nil
}

type driver struct {
	desc     plugin.Descriptor
	load     func(ctx context.Context, d plugin.Descriptor) (*plugin.Handle, error)
	handle   *plugin.Handle
	warnings []string
	logger   *zap.Logger
}

func (d *driver) Open(ctx context.Context) (string, error) {
	h, err := d.load(ctx, d.desc)
	if err != nil {
		return "", errors.Ensure(err, errors.ErrorTypePlugin, "Failed to load custom plugin")
	}
	if err := h.Initialize(ctx); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypePlugin, "Plugin initialization failed")
	}

	d.handle = h
	d.warnings = nil
	if caps := h.Capabilities(); !caps.Sync && !caps.Send {
		d.logger.Warn(noSyncOrSend, zap.String("plugin_class", h.Class()))
		d.warnings = []string{noSyncOrSend}
	}
	return "Custom plugin " + h.Class() + " loaded successfully", nil
}

func (d *driver) Warnings() []string { return d.warnings }

func (d *driver) Close(ctx context.Context) error {
	if d.handle == nil {
		return nil
	}
	err := d.handle.Cleanup(ctx)
	d.handle = nil
	return err
}

func (d *driver) Probe(ctx context.Context) (string, error) {
	if !d.handle.Capabilities().Test {
		return "Custom plugin loaded (no test method available)", nil
	}
	ok, err := d.handle.Test(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New(errors.ErrorTypeConnection, "Custom plugin connection test completed: plugin reported failure")
	}
	return "Custom plugin connection test completed", nil
}

func (d *driver) Pull(ctx context.Context, dataType string, filters map[string]any) (base.Batch, error) {
	records, err := d.handle.Sync(ctx, dataType, filters)
	if err != nil {
		return base.Batch{}, err
	}
	return base.Batch{
		Records: records,
		Message: "Custom plugin synced data type: " + dataType,
		Details: map[string]any{"plugin": d.handle.Class()},
	}, nil
}

func (d *driver) Push(ctx context.Context, payload models.Record, dataType string) (base.Receipt, error) {
	ack, err := d.handle.Send(ctx, payload, dataType)
	if err != nil {
		return base.Receipt{}, err
	}
	return base.Receipt{Message: "Data sent via custom plugin", Details: ack}, nil
}
