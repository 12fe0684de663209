package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/oplog"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "gateway.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "whatever")
	assert.ErrorContains(t, err, `unsupported store driver "oracle"`)
}

func TestConfigRepository(t *testing.T) {
	db := openTestDB(t)
	repo := db.Configs()
	ctx := context.Background()
	require.NoError(t, db.Ping())

	kafka := &config.ConnectorConfig{
		Name:   "payments-bus",
		Type:   "kafka",
		Data:   config.Values{"bootstrap_servers": "localhost:9092", "topic": "payments"},
		Active: true,
	}
	bank := &config.ConnectorConfig{
		Name: "rbc",
		Type: "banking",
		Data: config.Values{"bank_name": "rbc", "sandbox": true},
	}

	t.Run("create and get", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, kafka))
		require.NoError(t, repo.Create(ctx, bank))

		got, err := repo.Get(ctx, "payments-bus")
		require.NoError(t, err)
		assert.Equal(t, kafka, got)
	})

	t.Run("duplicate name", func(t *testing.T) {
		err := repo.Create(ctx, &config.ConnectorConfig{Name: "rbc", Type: "erp"})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("invalid type", func(t *testing.T) {
		err := repo.Create(ctx, &config.ConnectorConfig{Name: "x", Type: "ftp"})
		assert.ErrorContains(t, err, "oneof")
	})

	t.Run("list", func(t *testing.T) {
		all, err := repo.List(ctx, false)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "payments-bus", all[0].Name)
		assert.Equal(t, "rbc", all[1].Name)

		active, err := repo.List(ctx, true)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "payments-bus", active[0].Name)
	})

	t.Run("update and upsert", func(t *testing.T) {
		bank.Active = true
		bank.Data["bank_name"] = "td"
		require.NoError(t, repo.Update(ctx, bank))

		got, err := repo.Get(ctx, "rbc")
		require.NoError(t, err)
		assert.True(t, got.Active)
		assert.Equal(t, "td", got.Data.String("bank_name", ""))

		assert.ErrorIs(t, repo.Update(ctx, &config.ConnectorConfig{Name: "ghost", Type: "crm"}), ErrNotFound)

		created, err := repo.Upsert(ctx, &config.ConnectorConfig{Name: "sap", Type: "erp", Data: config.Values{"erp_type": "sap"}})
		require.NoError(t, err)
		assert.True(t, created)
		created, err = repo.Upsert(ctx, &config.ConnectorConfig{Name: "sap", Type: "erp", Active: true})
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "sap"))
		assert.ErrorIs(t, repo.Delete(ctx, "sap"), ErrNotFound)

		_, err := repo.Get(ctx, "sap")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestLogStore(t *testing.T) {
	db := openTestDB(t)
	logs := db.Logs()
	ctx := context.Background()
	base := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

	rec := oplog.NewRecorder(logs, oplog.WithClock(func() time.Time { return base }))
	rec.Start(ctx, "rbc", "connect").Succeed("Connected to RBC API")
	rec.Start(ctx, "rbc", "sync_data").
		Request(map[string]any{"data_type": "transactions"}).
		Fail(errors.New(errors.ErrorTypeConnection, "timeout"), "")
	rec.Start(ctx, "sap", "sync_data").
		Response(map[string]any{"count": 3}).
		Succeed("Synced 3 records")

	n, err := logs.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	t.Run("newest first", func(t *testing.T) {
		entries, err := logs.Query(ctx, oplog.Query{})
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "sap", entries[0].Connector)
		assert.Equal(t, "connect", entries[2].Operation)
		assert.Equal(t, map[string]any{"count": float64(3)}, entries[0].ResponseData)
		assert.True(t, entries[2].CreatedAt.Equal(base))
	})

	t.Run("filters", func(t *testing.T) {
		entries, err := logs.Query(ctx, oplog.Query{Connector: "rbc", Status: oplog.StatusError})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "timeout", entries[0].ErrorMessage)
		assert.Equal(t, map[string]any{"data_type": "transactions"}, entries[0].RequestData)
	})

	t.Run("limit", func(t *testing.T) {
		entries, err := logs.Query(ctx, oplog.Query{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})
}

func TestJobRepository(t *testing.T) {
	db := openTestDB(t)
	jobs := db.Jobs()
	ctx := context.Background()

	nightly := &Job{
		Name:      "nightly-ap",
		Connector: "sap",
		Type:      JobScheduled,
		Schedule:  "0 2 * * *",
		Config:    config.Values{"data_types": []any{"accounts_payable"}},
	}
	require.NoError(t, jobs.Create(ctx, nightly))
	assert.NotEmpty(t, nightly.ID)
	assert.Equal(t, JobActive, nightly.Status)

	adhoc := &Job{Name: "adhoc-send", Connector: "rbc", Type: JobSend, Status: JobPaused}
	require.NoError(t, jobs.Create(ctx, adhoc))

	t.Run("validation", func(t *testing.T) {
		err := jobs.Create(ctx, &Job{Name: "broken", Connector: "sap", Type: JobScheduled})
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

		err = jobs.Create(ctx, &Job{Name: "broken", Connector: "sap", Type: "cron"})
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	})

	t.Run("get and list", func(t *testing.T) {
		got, err := jobs.Get(ctx, nightly.ID)
		require.NoError(t, err)
		assert.Equal(t, "0 2 * * *", got.Schedule)
		assert.Equal(t, []string{"accounts_payable"}, got.Config.Strings("data_types"))
		assert.Nil(t, got.LastRunAt)

		all, err := jobs.List(ctx, "")
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "adhoc-send", all[0].Name)

		paused, err := jobs.List(ctx, JobPaused)
		require.NoError(t, err)
		require.Len(t, paused, 1)
		assert.Equal(t, adhoc.ID, paused[0].ID)

		_, err = jobs.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("record run", func(t *testing.T) {
		ran := time.Date(2024, 2, 1, 2, 0, 0, 0, time.UTC)
		next := ran.Add(24 * time.Hour)
		require.NoError(t, jobs.RecordRun(ctx, nightly.ID, ran, &next))

		got, err := jobs.Get(ctx, nightly.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastRunAt)
		require.NotNil(t, got.NextRunAt)
		assert.True(t, got.LastRunAt.Equal(ran))
		assert.True(t, got.NextRunAt.Equal(next))

		assert.ErrorIs(t, jobs.RecordRun(ctx, "missing", ran, nil), ErrNotFound)
	})

	t.Run("update and delete", func(t *testing.T) {
		adhoc.Status = JobDisabled
		require.NoError(t, jobs.Update(ctx, adhoc))
		got, err := jobs.Get(ctx, adhoc.ID)
		require.NoError(t, err)
		assert.Equal(t, JobDisabled, got.Status)

		require.NoError(t, jobs.Delete(ctx, adhoc.ID))
		assert.ErrorIs(t, jobs.Delete(ctx, adhoc.ID), ErrNotFound)
	})
}
