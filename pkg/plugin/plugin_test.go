package plugin

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/models"
)

type syncOnly struct{}

func (syncOnly) Name() string { return "sync_only" }

func (syncOnly) SyncData(_ context.Context, dataType string, _ map[string]any) ([]models.Record, error) {
	return []models.Record{{"type": dataType}}, nil
}

type full struct {
	cfg      config.Values
	release  chan struct{}
	cleanups int
}

func (*full) Name() string { return "full" }

func (*full) Initialize(context.Context) error { return nil }

func (f *full) Cleanup(context.Context) error {
	f.cleanups++
	return nil
}

func (*full) TestConnection(context.Context) (bool, error) { return true, nil }

func (*full) Metadata() map[string]any { return map[string]any{"version": "2.0.0"} }

func (f *full) SyncData(_ context.Context, dataType string, _ map[string]any) ([]models.Record, error) {
	switch dataType {
	case "panic":
		panic("boom")
	case "slow":
		<-f.release
	}
	return []models.Record{{"greeting": f.cfg.String("greeting", "hi")}}, nil
}

func (*full) SendData(_ context.Context, payload models.Record, _ string) (map[string]any, error) {
	if payload == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "empty payload")
	}
	return map[string]any{"accepted": true}, nil
}

func (*full) Methods() map[string]MethodFunc {
	return map[string]MethodFunc{
		"double": func(_ context.Context, args ...any) (any, error) {
			return args[0].(int) * 2, nil
		},
	}
}

var (
	lastFull  *full
	lastGated *gated
)

func init() {
	MustRegister("sync_only", func(config.Values) (Plugin, error) { return syncOnly{}, nil })
	MustRegister("full", func(cfg config.Values) (Plugin, error) {
		lastFull = &full{cfg: cfg, release: make(chan struct{})}
		return lastFull, nil
	})
	MustRegister("gated", func(config.Values) (Plugin, error) {
		lastGated = &gated{release: make(chan struct{})}
		return lastGated, nil
	})
	MustRegister("broken", func(config.Values) (Plugin, error) {
		return nil, errors.New(errors.ErrorTypeConfig, "missing credentials")
	})
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	err := Register("full", func(config.Values) (Plugin, error) { return syncOnly{}, nil })
	assert.Error(t, err)
	assert.Contains(t, Builtins(), "full")
}

func TestDescriptorFrom(t *testing.T) {
	d := DescriptorFrom(config.Values{
		"plugin_class":      "full",
		"plugin_config":     map[string]any{"greeting": "hello"},
		"plugin_timeout_ms": 250,
	})
	assert.Equal(t, Builtin, d.Path)
	assert.Equal(t, "full", d.Class)
	assert.Equal(t, "hello", d.Config.String("greeting", ""))
	assert.Equal(t, 250*time.Millisecond, d.Timeout)

	assert.Equal(t, 30*time.Second, DescriptorFrom(config.Values{}).Timeout)
}

func TestLoadBuiltinCapabilities(t *testing.T) {
	ctx := context.Background()

	h, err := Load(ctx, Descriptor{Path: Builtin, Class: "sync_only"})
	require.NoError(t, err)
	assert.Equal(t, Capabilities{Sync: true, Methods: []string{}}, h.Capabilities())

	_, err = h.Send(ctx, models.Record{}, "x")
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupported))
	assert.Equal(t, "Plugin does not implement send_data method", errors.Message(err))

	_, err = h.Test(ctx)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupported))
	assert.NoError(t, h.Initialize(ctx), "a missing initializer is not an error")

	fh, err := Load(ctx, Descriptor{Class: "full"})
	require.NoError(t, err)
	caps := fh.Capabilities()
	assert.True(t, caps.Initialize && caps.Cleanup && caps.Test && caps.Sync && caps.Send && caps.Metadata)
	assert.Equal(t, []string{"double"}, caps.Methods)
	assert.Equal(t, Builtin, fh.Origin())
}

func TestLoadFailures(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		desc Descriptor
	}{
		{"missing class", Descriptor{Path: Builtin}},
		{"unknown builtin", Descriptor{Path: Builtin, Class: "nope"}},
		{"factory error", Descriptor{Path: Builtin, Class: "broken"}},
		{"unsupported path", Descriptor{Path: "/opt/plugins/ledger.so", Class: "ledger"}},
		{"missing source", Descriptor{Path: filepath.Join(t.TempDir(), "absent.go"), Class: "absent"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(ctx, tt.desc)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypePlugin), err.Error())
		})
	}
}

func TestHandleIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	h, err := Load(ctx, Descriptor{Class: "full", Config: config.Values{"greeting": "bonjour"}, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	p := lastFull
	t.Cleanup(func() { close(p.release) })

	_, err = h.Sync(ctx, "panic", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypePlugin))
	assert.Contains(t, errors.Message(err), "plugin panicked: boom")

	records, err := h.Sync(ctx, "customers", nil)
	require.NoError(t, err, "a panic does not poison later calls")
	assert.Equal(t, "bonjour", records[0]["greeting"])

	_, err = h.Send(ctx, nil, "x")
	assert.True(t, errors.IsType(err, errors.ErrorTypePlugin))
	assert.Equal(t, "plugin full send_data failed: empty payload", errors.Message(err))

	_, err = h.Sync(ctx, "slow", nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
}

// gated counts how many SyncData calls run at once. "wait" blocks until
// release is closed and ignores ctx.
type gated struct {
	release chan struct{}
	active  atomic.Int32
	peak    atomic.Int32
}

func (*gated) Name() string { return "gated" }

func (g *gated) SyncData(_ context.Context, dataType string, _ map[string]any) ([]models.Record, error) {
	n := g.active.Add(1)
	defer g.active.Add(-1)
	for {
		peak := g.peak.Load()
		if n <= peak || g.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if dataType == "wait" {
		<-g.release
	}
	return []models.Record{{"type": dataType}}, nil
}

func TestHandleSerializesCallsAfterTimeout(t *testing.T) {
	ctx := context.Background()
	h, err := Load(ctx, Descriptor{Class: "gated", Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	g := lastGated

	_, err = h.Sync(ctx, "wait", nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))

	_, err = h.Sync(ctx, "wait", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
	assert.Contains(t, errors.Message(err), "waiting for a previous call to finish")
	assert.Equal(t, int32(1), g.peak.Load(), "the timed-out call must not overlap the next one")

	close(g.release)
	require.Eventually(t, func() bool {
		records, err := h.Sync(ctx, "fast", nil)
		return err == nil && len(records) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), g.peak.Load())
}

func TestHandleMethodsAndCleanup(t *testing.T) {
	ctx := context.Background()
	h, err := Load(ctx, Descriptor{Class: "full"})
	require.NoError(t, err)
	p := lastFull

	out, err := h.Call(ctx, "double", 21)
	require.NoError(t, err)
	assert.Equal(t, 42, out)

	_, err = h.Call(ctx, "Cleanup")
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupported))
	assert.Equal(t, "Plugin does not implement method: Cleanup", errors.Message(err))
	assert.False(t, h.HasMethod("Cleanup"))

	md, err := h.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", md["version"])

	require.NoError(t, h.Cleanup(ctx))
	require.NoError(t, h.Cleanup(ctx))
	assert.Equal(t, 1, p.cleanups)
}

const ledgerSource = `package ledger

import (
	"fmt"
	"strings"
)

var prefix string

func APIVersion() int { return 1 }

func Initialize(config map[string]interface{}) error {
	p, _ := config["prefix"].(string)
	prefix = p
	return nil
}

func SyncData(dataType string, filters map[string]interface{}) ([]map[string]interface{}, error) {
	row := map[string]interface{}{"id": prefix + "-1", "type": dataType}
	return []map[string]interface{}{row}, nil
}

func SendData(payload map[string]interface{}, dataType string) (map[string]interface{}, error) {
	return map[string]interface{}{"accepted": len(payload), "type": strings.ToUpper(dataType)}, nil
}

func Methods() []string { return []string{"Echo"} }

func Echo(args []interface{}) (interface{}, error) {
	return fmt.Sprint(args...), nil
}
`

func writeSource(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
	return path
}

func TestLoadInterpreted(t *testing.T) {
	ctx := context.Background()
	path := writeSource(t, "ledger.go", ledgerSource)

	h, err := Load(ctx, Descriptor{Path: path, Class: "ledger", Config: config.Values{"prefix": "GL"}})
	require.NoError(t, err)

	caps := h.Capabilities()
	assert.True(t, caps.Initialize)
	assert.True(t, caps.Sync)
	assert.True(t, caps.Send)
	assert.False(t, caps.Test)
	assert.False(t, caps.Cleanup)
	assert.Equal(t, []string{"Echo"}, caps.Methods)
	assert.Equal(t, path, h.Origin())

	require.NoError(t, h.Initialize(ctx))
	records, err := h.Sync(ctx, "journals", nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "GL-1", records[0]["id"])
	assert.Equal(t, "journals", records[0]["type"])

	ack, err := h.Send(ctx, models.Record{"a": 1}, "entries")
	require.NoError(t, err)
	assert.Equal(t, "ENTRIES", ack["type"])

	out, err := h.Call(ctx, "Echo", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "ab", out)
}

func TestLoadInterpretedRejections(t *testing.T) {
	tests := []struct {
		name  string
		class string
		src   string
		want  string
	}{
		{
			name:  "package mismatch",
			class: "billing",
			src:   "package ledger\n\nfunc APIVersion() int { return 1 }\n",
			want:  "plugin source declares package ledger, expected billing",
		},
		{
			name:  "forbidden import",
			class: "ledger",
			src:   "package ledger\n\nimport (\n\t\"net/http\"\n\t\"os\"\n)\n\nvar _ = http.Get\nvar _ = os.Exit\n\nfunc APIVersion() int { return 1 }\n",
			want:  "forbidden imports: net/http, os",
		},
		{
			name:  "missing version",
			class: "ledger",
			src:   "package ledger\n\nfunc Hello() string { return \"hi\" }\n",
			want:  "plugin ledger must export func APIVersion() int",
		},
		{
			name:  "version mismatch",
			class: "ledger",
			src:   "package ledger\n\nfunc APIVersion() int { return 2 }\n",
			want:  "plugin ledger speaks API version 2, host speaks 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSource(t, tt.class+".go", tt.src)
			_, err := Load(context.Background(), Descriptor{Path: path, Class: tt.class})
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypePlugin))
			assert.Equal(t, tt.want, errors.Message(err))
		})
	}
}
