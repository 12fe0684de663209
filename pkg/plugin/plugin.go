// Package plugin loads the extension units behind custom connectors.
//
// A plugin is either compiled in, registered under a class name with
// Register and selected with plugin_path "builtin", or a single Go source
// file interpreted by yaegi in a sandbox that only offers whitelisted
// standard library packages.
//
// Whatever its origin, a loaded plugin is reached through a Handle. The
// Handle's Capabilities are computed once at load time; invoking a
// capability the plugin lacks returns an unsupported error instead of
// failing the load.
package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/models"
)

// APIVersion is the plugin interface version this host speaks.
const APIVersion = 1

// Plugin is the only method every compiled-in plugin must have. The other
// capabilities are the optional interfaces below.
type Plugin interface {
	Name() string
}

// Initializer prepares a plugin before first use.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Cleaner releases what Initialize acquired.
type Cleaner interface {
	Cleanup(ctx context.Context) error
}

// Tester checks that the plugin's backend is reachable.
type Tester interface {
	TestConnection(ctx context.Context) (bool, error)
}

// Syncer pulls records.
type Syncer interface {
	SyncData(ctx context.Context, dataType string, filters map[string]any) ([]models.Record, error)
}

// Sender pushes a payload and returns the backend's acknowledgement.
type Sender interface {
	SendData(ctx context.Context, payload models.Record, dataType string) (map[string]any, error)
}

// MetadataProvider describes the plugin.
type MetadataProvider interface {
	Metadata() map[string]any
}

// MethodFunc is a declared custom method.
type MethodFunc func(ctx context.Context, args ...any) (any, error)

// MethodProvider declares the custom methods callers may invoke by name.
// Nothing outside this map is reachable.
type MethodProvider interface {
	Methods() map[string]MethodFunc
}

// Factory builds a compiled-in plugin from its plugin_config.
type Factory func(cfg config.Values) (Plugin, error)

var (
	mu       sync.RWMutex
	builtins = make(map[string]Factory)
)

// Register makes a compiled-in plugin available under class.
func Register(class string, factory Factory) error {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := builtins[class]; exists {
		return fmt.Errorf("plugin %s already registered", class)
	}
	builtins[class] = factory
	return nil
}

// MustRegister is Register that panics on duplicates. Use from init.
func MustRegister(class string, factory Factory) {
	if err := Register(class, factory); err != nil {
		panic(err)
	}
}

// Builtins lists the registered compiled-in plugin classes.
func Builtins() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(builtins))
	for class := range builtins {
		out = append(out, class)
	}
	sort.Strings(out)
	return out
}

func lookup(class string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := builtins[class]
	return f, ok
}
