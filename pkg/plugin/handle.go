package plugin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/models"
)

// Builtin is the plugin_path selecting the compiled-in registry.
const Builtin = "builtin"

const defaultTimeout = 30 * time.Second

// Descriptor says where a plugin comes from and how to configure it.
type Descriptor struct {
	Path    string
	Class   string
	Config  config.Values
	Timeout time.Duration
}

// DescriptorFrom reads plugin_path, plugin_class, plugin_config and
// plugin_timeout_ms from a connector configuration.
func DescriptorFrom(cfg config.Values) Descriptor {
	pc := cfg.Map("plugin_config")
	if pc == nil {
		pc = config.Values{}
	}
	return Descriptor{
		Path:    cfg.String("plugin_path", Builtin),
		Class:   cfg.String("plugin_class", ""),
		Config:  pc,
		Timeout: cfg.Duration("plugin_timeout_ms", defaultTimeout),
	}
}

// Capabilities lists what a loaded plugin can do.
type Capabilities struct {
	Initialize bool     `json:"initialize"`
	Cleanup    bool     `json:"cleanup"`
	Test       bool     `json:"test_connection"`
	Sync       bool     `json:"sync_data"`
	Send       bool     `json:"send_data"`
	Metadata   bool     `json:"metadata"`
	Methods    []string `json:"methods"`
}

// Handle is a loaded plugin. Every call is bounded by the descriptor's
// timeout, and a panic or error inside the plugin is returned as a plugin
// error for that call only. Calls run one at a time: a call that timed out
// keeps the handle busy until the plugin code actually returns.
type Handle struct {
	class   string
	origin  string
	caps    Capabilities
	timeout time.Duration

	initialize func(ctx context.Context) error
	cleanup    func(ctx context.Context) error
	test       func(ctx context.Context) (bool, error)
	sync       func(ctx context.Context, dataType string, filters map[string]any) ([]models.Record, error)
	send       func(ctx context.Context, payload models.Record, dataType string) (map[string]any, error)
	metadata   func() map[string]any
	methods    map[string]MethodFunc

	// busy holds a token while plugin code is running.
	busy chan struct{}

	cleanupOnce sync.Once
	cleanupErr  error
}

// Load resolves d into a Handle.
func Load(ctx context.Context, d Descriptor) (*Handle, error) {
	if d.Class == "" {
		return nil, errors.New(errors.ErrorTypePlugin, "Plugin path and class are required")
	}
	if d.Timeout <= 0 {
		d.Timeout = defaultTimeout
	}

	switch {
	case d.Path == "" || d.Path == Builtin:
		return loadBuiltin(d)
	case strings.HasSuffix(d.Path, ".go"):
		return loadInterpreted(ctx, d)
	}
	return nil, errors.Newf(errors.ErrorTypePlugin,
		"unsupported plugin_path %q: use %q or a .go source file", d.Path, Builtin)
}

func loadBuiltin(d Descriptor) (*Handle, error) {
	factory, ok := lookup(d.Class)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypePlugin, "no builtin plugin named %q", d.Class).
			WithDetail("available", Builtins())
	}

	var p Plugin
	err := guard(func() error {
		var factoryErr error
		p, factoryErr = factory(d.Config)
		return factoryErr
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypePlugin, "Failed to load custom plugin")
	}
	return fromPlugin(d, p), nil
}

// fromPlugin probes p for its optional interfaces once.
func fromPlugin(d Descriptor, p Plugin) *Handle {
	h := &Handle{class: d.Class, origin: Builtin, timeout: d.Timeout}
	if v, ok := p.(Initializer); ok {
		h.initialize = v.Initialize
	}
	if v, ok := p.(Cleaner); ok {
		h.cleanup = v.Cleanup
	}
	if v, ok := p.(Tester); ok {
		h.test = v.TestConnection
	}
	if v, ok := p.(Syncer); ok {
		h.sync = v.SyncData
	}
	if v, ok := p.(Sender); ok {
		h.send = v.SendData
	}
	if v, ok := p.(MetadataProvider); ok {
		h.metadata = v.Metadata
	}
	if v, ok := p.(MethodProvider); ok {
		h.methods = v.Methods()
	}
	h.finish()
	return h
}

func (h *Handle) finish() {
	h.busy = make(chan struct{}, 1)

	methods := make([]string, 0, len(h.methods))
	for name := range h.methods {
		methods = append(methods, name)
	}
	sort.Strings(methods)

	h.caps = Capabilities{
		Initialize: h.initialize != nil,
		Cleanup:    h.cleanup != nil,
		Test:       h.test != nil,
		Sync:       h.sync != nil,
		Send:       h.send != nil,
		Metadata:   h.metadata != nil,
		Methods:    methods,
	}
}

// Class returns the plugin class name.
func (h *Handle) Class() string { return h.class }

// Origin is "builtin" or the interpreted source path.
func (h *Handle) Origin() string { return h.origin }

// Capabilities returns what the plugin implements.
func (h *Handle) Capabilities() Capabilities {
	c := h.caps
	c.Methods = append([]string{}, h.caps.Methods...)
	return c
}

// HasMethod reports whether name is a declared custom method.
func (h *Handle) HasMethod(name string) bool {
	_, ok := h.methods[name]
	return ok
}

// Initialize runs the plugin's initializer. Plugins without one are ready
// as loaded.
func (h *Handle) Initialize(ctx context.Context) error {
	if h.initialize == nil {
		return nil
	}
	return h.call(ctx, "initialize", func(ctx context.Context) error {
		return h.initialize(ctx)
	})
}

// Cleanup runs the plugin's cleanup at most once.
func (h *Handle) Cleanup(ctx context.Context) error {
	if h.cleanup == nil {
		return nil
	}
	h.cleanupOnce.Do(func() {
		h.cleanupErr = h.call(ctx, "cleanup", func(ctx context.Context) error {
			return h.cleanup(ctx)
		})
	})
	return h.cleanupErr
}

// Test runs the plugin's connection test.
func (h *Handle) Test(ctx context.Context) (bool, error) {
	if h.test == nil {
		return false, unsupported("test_connection")
	}
	var ok bool
	err := h.call(ctx, "test_connection", func(ctx context.Context) error {
		var testErr error
		ok, testErr = h.test(ctx)
		return testErr
	})
	return ok, err
}

// Sync pulls records through the plugin.
func (h *Handle) Sync(ctx context.Context, dataType string, filters map[string]any) ([]models.Record, error) {
	if h.sync == nil {
		return nil, unsupported("sync_data")
	}
	var records []models.Record
	err := h.call(ctx, "sync_data", func(ctx context.Context) error {
		var syncErr error
		records, syncErr = h.sync(ctx, dataType, filters)
		return syncErr
	})
	return records, err
}

// Send pushes payload through the plugin.
func (h *Handle) Send(ctx context.Context, payload models.Record, dataType string) (map[string]any, error) {
	if h.send == nil {
		return nil, unsupported("send_data")
	}
	var ack map[string]any
	err := h.call(ctx, "send_data", func(ctx context.Context) error {
		var sendErr error
		ack, sendErr = h.send(ctx, payload, dataType)
		return sendErr
	})
	return ack, err
}

// Metadata returns the plugin's self description.
func (h *Handle) Metadata() (map[string]any, error) {
	if h.metadata == nil {
		return nil, unsupported("metadata")
	}
	var md map[string]any
	err := guard(func() error {
		md = h.metadata()
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypePlugin, fmt.Sprintf("plugin %s metadata failed", h.class))
	}
	return md, nil
}

// Call invokes a declared custom method. Undeclared names are rejected
// before anything runs.
func (h *Handle) Call(ctx context.Context, name string, args ...any) (any, error) {
	fn, ok := h.methods[name]
	if !ok {
		return nil, errors.New(errors.ErrorTypeUnsupported, "Plugin does not implement method: "+name)
	}
	var out any
	err := h.call(ctx, name, func(ctx context.Context) error {
		var callErr error
		out, callErr = fn(ctx, args...)
		return callErr
	})
	return out, err
}

// call runs fn with the handle's timeout. The wait for a previous call
// counts against the same timeout. fn keeps running in the background after
// a timeout, its result is discarded, and the next call waits for it.
func (h *Handle) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	select {
	case h.busy <- struct{}{}:
	case <-ctx.Done():
		return errors.Newf(errors.ErrorTypeTimeout,
			"plugin %s %s timed out after %s waiting for a previous call to finish", h.class, op, h.timeout)
	}

	done := make(chan error, 1)
	go func() {
		defer func() { <-h.busy }()
		done <- guard(func() error { return fn(ctx) })
	}()

	select {
	case err := <-done:
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypePlugin, fmt.Sprintf("plugin %s %s failed", h.class, op))
		}
		return nil
	case <-ctx.Done():
		return errors.Newf(errors.ErrorTypeTimeout, "plugin %s %s timed out after %s", h.class, op, h.timeout)
	}
}

func unsupported(op string) error {
	return errors.New(errors.ErrorTypeUnsupported, "Plugin does not implement "+op+" method")
}

// guard runs fn and converts a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin panicked: %v", r)
		}
	}()
	return fn()
}
