// Package base provides the shared Connector every gateway connector is
// built from. It owns the connection state machine, configuration
// validation, status reporting and operation logging, and delegates protocol
// work to a Driver strategy.
//
// # Usage
//
// Concrete connectors embed *Connector and supply a Driver:
//
//	type KafkaConnector struct {
//	    *base.Connector
//	    driver *kafkaDriver
//	}
//
//	func NewKafkaConnector(cfg config.Values, rec *oplog.Recorder) *KafkaConnector {
//	    d := &kafkaDriver{cfg: cfg}
//	    return &KafkaConnector{
//	        Connector: base.New(base.Options{Type: "kafka", Display: "Kafka cluster", Config: cfg, Recorder: rec}, d),
//	        driver:    d,
//	    }
//	}
//
// # Lifecycle
//
//	disconnected -> connecting -> connected -> disconnected
//
// A failure while connecting returns to disconnected after the driver has
// been asked to release whatever it opened. Sync, send and test connect
// implicitly unless the config sets "auto_connect: false", in which case they
// fail fast with a connection error.
//
// # Operation log
//
// Every public operation writes exactly one operation log entry and never
// returns a Go error; failures are reported through the result's Status,
// Message and Err fields.
package base

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/connector/core"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/logger"
	"github.com/fincore/gateway/pkg/metrics"
	"github.com/fincore/gateway/pkg/models"
	"github.com/fincore/gateway/pkg/oplog"
)

// State is the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Operation names written to the operation log.
const (
	OpConnect        = "connect"
	OpDisconnect     = "disconnect"
	OpTestConnection = "test_connection"
	OpSyncData       = "sync_data"
	OpSendData       = "send_data"
)

// Options configures a Connector.
type Options struct {
	// Name is the connector instance name; defaults to DefaultName.
	Name string
	// DefaultName is used when Name is empty, e.g. "KafkaConnector".
	DefaultName string
	// Type is the registry type tag.
	Type string
	// Display names the remote system in messages, e.g. "Kafka cluster".
	Display string
	// Required lists configuration keys that must be present and non-empty.
	Required []string
	Config   config.Values
	Recorder *oplog.Recorder
	// Now overrides the clock used for last sync timestamps.
	Now func() time.Time
}

// Connector implements core.Connector on top of a Driver.
type Connector struct {
	name        string
	typ         string
	display     string
	required    []string
	cfg         config.Values
	driver      Driver
	recorder    *oplog.Recorder
	logger      *zap.Logger
	now         func() time.Time
	autoConnect bool

	state    State
	lastSync *time.Time
}

// New creates a Connector delegating protocol work to driver.
func New(opts Options, driver Driver) *Connector {
	name := opts.Name
	if name == "" {
		name = opts.DefaultName
	}
	if name == "" {
		name = opts.Type
	}
	rec := opts.Recorder
	if rec == nil {
		rec = oplog.NewRecorder(nil)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Values{}
	}
	display := opts.Display
	if display == "" {
		display = name
	}

	return &Connector{
		name:        name,
		typ:         opts.Type,
		display:     display,
		required:    append([]string(nil), opts.Required...),
		cfg:         cfg,
		driver:      driver,
		recorder:    rec,
		logger:      logger.Get().With(zap.String("connector", name), zap.String("type", opts.Type)),
		now:         now,
		autoConnect: cfg.Bool("auto_connect", true),
		state:       StateDisconnected,
	}
}

// Name returns the connector name
func (c *Connector) Name() string { return c.name }

// Type returns the connector type tag
func (c *Connector) Type() string { return c.typ }

// Config returns the connector configuration
func (c *Connector) Config() config.Values { return c.cfg }

// Logger returns the connector's logger
func (c *Connector) Logger() *zap.Logger { return c.logger }

// Recorder returns the operation log recorder
func (c *Connector) Recorder() *oplog.Recorder { return c.recorder }

// State returns the current connection state
func (c *Connector) State() State { return c.state }

// IsConnected reports whether the connector is connected
func (c *Connector) IsConnected() bool { return c.state == StateConnected }

// RequiredConfigFields implements core.Connector.
func (c *Connector) RequiredConfigFields() []string {
	return append([]string(nil), c.required...)
}

// ValidateConfig implements core.Connector.
func (c *Connector) ValidateConfig() []string {
	return c.cfg.ValidateRequired(c.required)
}

// Status implements core.Connector.
func (c *Connector) Status() core.Status {
	var last *time.Time
	if c.lastSync != nil {
		t := *c.lastSync
		last = &t
	}
	return core.Status{
		Name:        c.name,
		Type:        c.typ,
		Connected:   c.state == StateConnected,
		LastSync:    last,
		ConfigValid: len(c.ValidateConfig()) == 0,
	}
}

// Connect implements core.Connector.
func (c *Connector) Connect(ctx context.Context) core.Result {
	op := c.recorder.Start(ctx, c.name, OpConnect)
	if c.state == StateConnected {
		op.Succeed("Already connected")
		return core.Success("Already connected", nil)
	}

	msg, err := c.open(op.Context())
	if err != nil {
		op.Fail(err, "")
		return core.Failure(err)
	}

	if w, ok := c.driver.(Warner); ok {
		if warnings := w.Warnings(); len(warnings) > 0 {
			details := map[string]any{"warnings": warnings}
			op.Response(details).Warn(msg + " (" + strings.Join(warnings, "; ") + ")")
			return core.Result{Status: core.StatusWarning, Message: msg, Details: details}
		}
	}

	op.Succeed(msg)
	return core.Success(msg, nil)
}

// Disconnect implements core.Connector. Resources are released once; later
// calls report success without touching the driver.
func (c *Connector) Disconnect(ctx context.Context) core.Result {
	op := c.recorder.Start(ctx, c.name, OpDisconnect)
	if c.state != StateConnected {
		op.Succeed("Already disconnected")
		return core.Success("Already disconnected", nil)
	}

	err := guard(func() error { return c.driver.Close(op.Context()) })
	c.state = StateDisconnected
	metrics.ConnectedConnectors.WithLabelValues(c.typ).Dec()

	if err != nil {
		err = errors.Ensure(err, errors.ErrorTypeConnection, "Failed to disconnect from "+c.display)
		op.Fail(err, "")
		return core.Failure(err)
	}

	msg := "Disconnected from " + c.display
	op.Succeed(msg)
	return core.Success(msg, nil)
}

// TestConnection implements core.Connector.
func (c *Connector) TestConnection(ctx context.Context) core.Result {
	op := c.recorder.Start(ctx, c.name, OpTestConnection)
	if err := c.ensureConnected(op.Context()); err != nil {
		op.Fail(err, "")
		return core.Failure(err)
	}

	var msg string
	err := guard(func() error {
		var probeErr error
		msg, probeErr = c.driver.Probe(op.Context())
		return probeErr
	})
	if err != nil {
		err = errors.Ensure(err, errors.ErrorTypeConnection, "Connection test failed")
		op.Fail(err, "")
		return core.Failure(err)
	}

	op.Succeed(msg)
	return core.Success(msg, nil)
}

// SyncData implements core.Connector.
func (c *Connector) SyncData(ctx context.Context, dataType string, filters map[string]any) core.SyncResult {
	op := c.recorder.Start(ctx, c.name, OpSyncData).
		Request(map[string]any{"data_type": dataType, "filters": filters})
	if err := c.ensureConnected(op.Context()); err != nil {
		op.Fail(err, "")
		return core.SyncFailure(err)
	}

	var batch Batch
	err := guard(func() error {
		var pullErr error
		batch, pullErr = c.driver.Pull(op.Context(), dataType, filters)
		return pullErr
	})
	if err != nil {
		err = errors.Ensure(err, errors.ErrorTypeConnection, fmt.Sprintf("Failed to sync %s", dataType))
		op.Fail(err, "")
		return core.SyncFailure(err)
	}

	records := batch.Records
	if records == nil {
		records = []models.Record{}
	}
	now := c.now()
	c.lastSync = &now

	msg := batch.Message
	if msg == "" {
		msg = fmt.Sprintf("Synced %d %s records", len(records), dataType)
	}
	op.Response(map[string]any{"count": len(records)}).Succeed(msg)

	return core.SyncResult{
		Status:  core.StatusSuccess,
		Data:    records,
		Count:   len(records),
		Message: msg,
		Details: batch.Details,
	}
}

// SendData implements core.Connector.
func (c *Connector) SendData(ctx context.Context, payload models.Record, dataType string) core.Result {
	op := c.recorder.Start(ctx, c.name, OpSendData).
		Request(map[string]any{"data_type": dataType, "payload": payload})
	if err := c.ensureConnected(op.Context()); err != nil {
		op.Fail(err, "")
		return core.Failure(err)
	}

	var receipt Receipt
	err := guard(func() error {
		var pushErr error
		receipt, pushErr = c.driver.Push(op.Context(), payload, dataType)
		return pushErr
	})
	if err != nil {
		err = errors.Ensure(err, errors.ErrorTypeConnection, fmt.Sprintf("Failed to send %s", dataType))
		op.Fail(err, "")
		return core.Failure(err)
	}

	msg := receipt.Message
	if msg == "" {
		msg = fmt.Sprintf("Sent %s to %s", dataType, c.display)
	}
	op.Response(receipt.Details).Succeed(msg)
	return core.Success(msg, receipt.Details)
}

// Record writes a single operation log entry on behalf of an embedding
// connector for operations outside the core contract. fn returns the
// success message, details and error.
func (c *Connector) Record(ctx context.Context, operation string, request any, fn func(ctx context.Context) (string, map[string]any, error)) core.Result {
	op := c.recorder.Start(ctx, c.name, operation).Request(request)

	var (
		msg     string
		details map[string]any
	)
	err := guard(func() error {
		var fnErr error
		msg, details, fnErr = fn(op.Context())
		return fnErr
	})
	if err != nil {
		op.Fail(err, "")
		return core.Failure(err)
	}
	op.Response(details).Succeed(msg)
	return core.Success(msg, details)
}

// EnsureConnected connects implicitly when allowed. Embedding connectors use
// it for their own operations.
func (c *Connector) EnsureConnected(ctx context.Context) error {
	return c.ensureConnected(ctx)
}

func (c *Connector) ensureConnected(ctx context.Context) error {
	if c.state == StateConnected {
		return nil
	}
	if !c.autoConnect {
		return errors.New(errors.ErrorTypeConnection, "Connector is not connected")
	}
	res := c.Connect(ctx)
	if !res.OK() {
		return res.Err
	}
	return nil
}

func (c *Connector) open(ctx context.Context) (string, error) {
	if errs := c.ValidateConfig(); len(errs) > 0 {
		return "", errors.New(errors.ErrorTypeConfig, strings.Join(errs, "; ")).WithDetail("errors", errs)
	}

	c.state = StateConnecting
	var msg string
	err := guard(func() error {
		var openErr error
		msg, openErr = c.driver.Open(ctx)
		return openErr
	})
	if err != nil {
		if closeErr := guard(func() error { return c.driver.Close(ctx) }); closeErr != nil {
			c.logger.Warn("cleanup after failed connect", zap.Error(closeErr))
		}
		c.state = StateDisconnected
		return "", errors.Ensure(err, errors.ErrorTypeConnection, "Failed to connect to "+c.display)
	}

	c.state = StateConnected
	metrics.ConnectedConnectors.WithLabelValues(c.typ).Inc()
	if msg == "" {
		msg = "Connected to " + c.display
	}
	return msg, nil
}

// guard runs fn and converts a panic into an internal error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrorTypeInternal, "connector panicked: %v", r)
		}
	}()
	return fn()
}
