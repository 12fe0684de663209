package oplog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	gwerrors "github.com/fincore/gateway/pkg/errors"
)

// steppingClock returns the given instants in order, repeating the last one.
func steppingClock(instants ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		t := instants[i]
		if i < len(instants)-1 {
			i++
		}
		return t
	}
}

func TestOperationWritesExactlyOneEntry(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store, WithLogger(zap.NewNop()))

	op := rec.Start(context.Background(), "kafka-main", "sync_data").Request(map[string]any{"topic": "payments"})
	entry := op.Succeed("Consumed 3 messages from topic payments")
	op.Fail(errors.New("late failure"), "")
	op.Warn("ignored")

	require.Equal(t, 1, store.Len())
	got := store.Entries()[0]
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, StatusSuccess, got.Status)
	assert.Equal(t, "kafka-main", got.Connector)
	assert.Equal(t, "sync_data", got.Operation)
	assert.Equal(t, map[string]any{"topic": "payments"}, got.RequestData)
}

func TestFailRecordsErrorMessage(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store, WithLogger(zap.NewNop()))

	err := gwerrors.Wrap(errors.New("dial tcp: refused"), gwerrors.ErrorTypeConnection, "Failed to connect to RabbitMQ")
	e := rec.Start(context.Background(), "rabbit", "connect").Fail(err, "")

	assert.Equal(t, StatusError, e.Status)
	assert.Equal(t, "Failed to connect to RabbitMQ: dial tcp: refused", e.ErrorMessage)
	assert.Equal(t, e.ErrorMessage, e.Details)
}

func TestTimestampsNonDecreasingPerConnector(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	// start, finish pairs; the second finish goes backwards in time
	clock := steppingClock(
		base, base.Add(2*time.Second),
		base, base.Add(time.Second),
	)
	store := NewMemoryStore()
	rec := NewRecorder(store, WithClock(clock), WithLogger(zap.NewNop()))

	first := rec.Start(context.Background(), "erp", "sync_data").Succeed("")
	second := rec.Start(context.Background(), "erp", "sync_data").Succeed("")

	assert.False(t, second.CreatedAt.Before(first.CreatedAt))
	assert.Equal(t, time.Second, second.ExecutionTime)
}

func TestEntriesMirroredToZap(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	rec := NewRecorder(nil, WithLogger(zap.New(core)))

	rec.Start(context.Background(), "custom", "connect").Warn("Plugin implements neither sync_data nor send_data")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
	assert.Equal(t, "custom", logs.All()[0].ContextMap()["connector"])
}

type failingStore struct{ MemoryStore }

func (f *failingStore) Append(context.Context, Entry) error { return errors.New("disk full") }

func TestStoreFailureDoesNotPropagate(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	rec := NewRecorder(&failingStore{}, WithLogger(zap.New(core)))

	e := rec.Start(context.Background(), "bank", "send_data").Succeed("sent")
	assert.Equal(t, StatusSuccess, e.Status)
	assert.Equal(t, 1, logs.FilterMessage("failed to persist operation log entry").Len())
}

func TestMemoryStoreQuery(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for i, s := range []Status{StatusSuccess, StatusError, StatusSuccess, StatusWarning} {
		require.NoError(t, store.Append(ctx, Entry{ID: string(rune('a' + i)), Connector: "c1", Status: s}))
	}
	require.NoError(t, store.Append(ctx, Entry{ID: "z", Connector: "c2", Status: StatusSuccess}))

	all, err := store.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "z", all[0].ID, "newest first")

	succ, err := store.Query(ctx, Query{Connector: "c1", Status: StatusSuccess})
	require.NoError(t, err)
	require.Len(t, succ, 2)
	assert.Equal(t, "c", succ[0].ID)

	limited, err := store.Query(ctx, Query{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
