// Package registry maps connector type tags to factories and keeps a
// descriptive catalog of the available connector types. Connector packages
// register themselves from init functions.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/connector/core"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/logger"
	"github.com/fincore/gateway/pkg/oplog"
)

// Factory creates a connector instance from its configuration.
type Factory func(cfg *config.ConnectorConfig, rec *oplog.Recorder) (core.Connector, error)

// Registry manages connector registration and instantiation
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
	logger    *zap.Logger
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new connector registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger.Get().With(zap.String("component", "connector_registry")),
	}
}

// Register registers a connector factory under a type tag
func (r *Registry) Register(connectorType string, factory Factory) error {
	connectorType = strings.ToLower(strings.TrimSpace(connectorType))
	if connectorType == "" {
		return errors.New(errors.ErrorTypeConfig, "connector type cannot be empty")
	}
	if factory == nil {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("connector %s has a nil factory", connectorType))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[connectorType]; exists {
		return errors.New(errors.ErrorTypeConflict, fmt.Sprintf("connector %s already registered", connectorType))
	}

	r.factories[connectorType] = factory
	r.logger.Debug("connector registered", zap.String("type", connectorType))
	return nil
}

// Create creates a connector instance for cfg
func (r *Registry) Create(cfg *config.ConnectorConfig, rec *oplog.Recorder) (core.Connector, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "connector config is required")
	}
	connectorType := strings.ToLower(cfg.Type)

	r.mu.RLock()
	factory, exists := r.factories[connectorType]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeNotFound, fmt.Sprintf("connector type %s not found", cfg.Type))
	}

	conn, err := factory(cfg, rec)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to create connector %s", cfg.Name))
	}
	return conn, nil
}

// Types returns the registered type tags, sorted
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Has checks if a connector type is registered
func (r *Registry) Has(connectorType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[strings.ToLower(connectorType)]
	return exists
}

// Global registry functions

// Register registers a connector factory in the global registry
func Register(connectorType string, factory Factory) error {
	return globalRegistry.Register(connectorType, factory)
}

// MustRegister is Register for init functions; it panics on conflict.
func MustRegister(connectorType string, factory Factory) {
	if err := Register(connectorType, factory); err != nil {
		panic(err)
	}
}

// Create creates a connector from the global registry
func Create(cfg *config.ConnectorConfig, rec *oplog.Recorder) (core.Connector, error) {
	return globalRegistry.Create(cfg, rec)
}

// Types returns the type tags registered in the global registry
func Types() []string {
	return globalRegistry.Types()
}

// GetRegistry returns the global registry instance.
func GetRegistry() *Registry {
	return globalRegistry
}
