package plugin

import (
	"context"
	"go/parser"
	"go/token"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/models"
)

// allowedImports is the standard library surface interpreted plugins may
// use. Filesystem, process, network and unsafe packages are left out.
var allowedImports = map[string]bool{
	"bytes":           true,
	"encoding/base64": true,
	"encoding/json":   true,
	"errors":          true,
	"fmt":             true,
	"math":            true,
	"regexp":          true,
	"sort":            true,
	"strconv":         true,
	"strings":         true,
	"time":            true,
	"unicode":         true,
}

// Interpreted plugins are plain functions in a package named after the
// plugin class:
//
//	package ledger
//
//	func APIVersion() int { return 1 }
//	func Initialize(config map[string]interface{}) error
//	func Cleanup() error
//	func TestConnection() (bool, error)
//	func SyncData(dataType string, filters map[string]interface{}) ([]map[string]interface{}, error)
//	func SendData(payload map[string]interface{}, dataType string) (map[string]interface{}, error)
//	func Metadata() map[string]interface{}
//	func Methods() []string
//
// Only APIVersion is required. Each name returned by Methods must be an
// exported func(args []interface{}) (interface{}, error).
type (
	interpInit     = func(map[string]interface{}) error
	interpCleanup  = func() error
	interpTest     = func() (bool, error)
	interpSync     = func(string, map[string]interface{}) ([]map[string]interface{}, error)
	interpSend     = func(map[string]interface{}, string) (map[string]interface{}, error)
	interpMetadata = func() map[string]interface{}
	interpMethods  = func() []string
	interpMethod   = func([]interface{}) (interface{}, error)
)

func loadInterpreted(_ context.Context, d Descriptor) (*Handle, error) {
	src, err := os.ReadFile(d.Path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypePlugin, "Failed to load custom plugin")
	}

	code, err := checkSource(d.Path, src, d.Class)
	if err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypePlugin, "failed to load interpreter stdlib")
	}
	if _, err := i.Eval(code); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypePlugin, "plugin evaluation failed")
	}

	version, ok := symbol[func() int](i, "APIVersion")
	if !ok {
		return nil, errors.Newf(errors.ErrorTypePlugin, "plugin %s must export func APIVersion() int", d.Class)
	}
	if v := version(); v != APIVersion {
		return nil, errors.Newf(errors.ErrorTypePlugin, "plugin %s speaks API version %d, host speaks %d", d.Class, v, APIVersion).
			WithDetail("plugin_version", v)
	}

	h := &Handle{class: d.Class, origin: d.Path, timeout: d.Timeout}
	if fn, ok := symbol[interpInit](i, "Initialize"); ok {
		cfg := map[string]interface{}(d.Config.Clone())
		h.initialize = func(context.Context) error { return fn(cfg) }
	}
	if fn, ok := symbol[interpCleanup](i, "Cleanup"); ok {
		h.cleanup = func(context.Context) error { return fn() }
	}
	if fn, ok := symbol[interpTest](i, "TestConnection"); ok {
		h.test = func(context.Context) (bool, error) { return fn() }
	}
	if fn, ok := symbol[interpSync](i, "SyncData"); ok {
		h.sync = func(_ context.Context, dataType string, filters map[string]any) ([]models.Record, error) {
			rows, err := fn(dataType, filters)
			if err != nil {
				return nil, err
			}
			out := make([]models.Record, 0, len(rows))
			for _, r := range rows {
				out = append(out, models.Record(r))
			}
			return out, nil
		}
	}
	if fn, ok := symbol[interpSend](i, "SendData"); ok {
		h.send = func(_ context.Context, payload models.Record, dataType string) (map[string]any, error) {
			return fn(map[string]interface{}(payload), dataType)
		}
	}
	if fn, ok := symbol[interpMetadata](i, "Metadata"); ok {
		h.metadata = fn
	}
	if list, ok := symbol[interpMethods](i, "Methods"); ok {
		h.methods = make(map[string]MethodFunc)
		for _, name := range list() {
			fn, ok := symbol[interpMethod](i, name)
			if !ok {
				return nil, errors.Newf(errors.ErrorTypePlugin,
					"plugin %s declares method %q but does not export func %s([]interface{}) (interface{}, error)", d.Class, name, name)
			}
			h.methods[name] = func(_ context.Context, args ...any) (any, error) { return fn(args) }
		}
	}
	h.finish()
	return h, nil
}

// checkSource validates the package clause and imports of a plugin source
// and returns it rewritten as package main for evaluation.
func checkSource(path string, src []byte, class string) (string, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ImportsOnly)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypePlugin, "plugin source does not parse")
	}
	if file.Name.Name != class {
		return "", errors.Newf(errors.ErrorTypePlugin,
			"plugin source declares package %s, expected %s", file.Name.Name, class)
	}

	var forbidden []string
	for _, imp := range file.Imports {
		p, _ := strconv.Unquote(imp.Path.Value)
		if !allowedImports[p] {
			forbidden = append(forbidden, p)
		}
	}
	if len(forbidden) > 0 {
		sort.Strings(forbidden)
		return "", errors.Newf(errors.ErrorTypePlugin, "forbidden imports: %s", strings.Join(forbidden, ", ")).
			WithDetail("forbidden", forbidden)
	}

	start := fset.Position(file.Name.Pos()).Offset
	end := fset.Position(file.Name.End()).Offset
	return string(src[:start]) + "main" + string(src[end:]), nil
}

// symbol looks up main.<name> and asserts its type.
func symbol[T any](i *interp.Interpreter, name string) (T, bool) {
	var zero T
	v, err := i.Eval("main." + name)
	if err != nil || !v.IsValid() {
		return zero, false
	}
	fn, ok := v.Interface().(T)
	return fn, ok
}
