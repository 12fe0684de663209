package gateway

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/connector/core"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/integration/banking"
	"github.com/fincore/gateway/pkg/integration/crm"
	"github.com/fincore/gateway/pkg/integration/erp"
	"github.com/fincore/gateway/pkg/integration/pm"
	"github.com/fincore/gateway/pkg/models"
	"github.com/fincore/gateway/pkg/oplog"
	"github.com/fincore/gateway/pkg/store"
	"github.com/fincore/gateway/pkg/testutil"
)

const connectorsYAML = `
connectors:
  - name: rbc
    type: banking
    config:
      bank_type: rbc
      api_url: https://api.rbc.example
      api_key: ${GATEWAY_TEST_BANK_KEY}
      sandbox: true
  - name: sap
    type: erp
    config:
      erp_type: sap
      api_url: https://sap.example
      api_key: k
      sandbox: true
  - name: hubspot
    type: crm
    active: false
    config:
      crm_type: hubspot
`

var fixedNow = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *oplog.MemoryStore) {
	t.Helper()
	testutil.TestLogger(t)
	t.Setenv("GATEWAY_TEST_BANK_KEY", "secret")

	db, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "gateway.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logs := oplog.NewMemoryStore()
	svc := New(db.Configs(), logs, WithJobs(db.Jobs()), WithClock(func() time.Time { return fixedNow }))

	path := filepath.Join(t.TempDir(), "connectors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(connectorsYAML), 0o600))
	summary, err := svc.Import(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"rbc", "sap", "hubspot"}, summary.Created)
	return svc, logs
}

func TestImportIsIdempotent(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "again.yaml")
	require.NoError(t, os.WriteFile(path, []byte(connectorsYAML), 0o600))
	summary, err := svc.Import(ctx, path)
	require.NoError(t, err)
	assert.Empty(t, summary.Created)
	assert.Len(t, summary.Updated, 3)

	all, err := svc.Connectors(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "secret", all[1].Data.String("api_key", ""), "env substitution is applied before storing")

	active, err := svc.Connectors(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestImportRejectsBadFile(t *testing.T) {
	svc, _ := newService(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("connectors:\n  - name: x\n    type: ftp\n"), 0o600))

	_, err := svc.Import(context.Background(), path)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestBuildRefusesUnknownAndInactive(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Build(ctx, "ghost")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.Build(ctx, "hubspot")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestConnectorCommandsDisconnect(t *testing.T) {
	svc, logs := newService(t)
	ctx := testutil.TestContext(t)

	st, err := svc.Status(ctx, "rbc")
	require.NoError(t, err)
	assert.Equal(t, "banking", st.Type)
	assert.False(t, st.Connected)
	assert.True(t, st.ConfigValid)
	assert.Zero(t, logs.Len(), "a connector that never connected is not disconnected")

	res, err := svc.Test(ctx, "rbc")
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, res.Status, res.Message)

	sync, err := svc.Sync(ctx, "rbc", "payment_methods", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, sync.Count)

	sent, err := svc.Send(ctx, "rbc", "payment", models.Record{"amount": "10.00"})
	require.NoError(t, err)
	assert.True(t, sent.OK(), sent.Message)

	// each of test/sync/send: connect, op, disconnect
	assert.Equal(t, 9, logs.Len())

	entries, err := svc.Logs(ctx, oplog.Query{Connector: "rbc", Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "disconnect", entries[0].Operation)
}

func TestModules(t *testing.T) {
	svc, _ := newService(t)
	ctx := testutil.TestContext(t)

	err := svc.Banking(ctx, "rbc", func(ctx context.Context, m *banking.Module) error {
		methods := m.SyncPaymentMethods(ctx)
		assert.Equal(t, 3, methods.Count)
		return nil
	})
	require.NoError(t, err)

	err = svc.ERP(ctx, "sap", func(ctx context.Context, m *erp.Module) error {
		ap := m.SyncAccountsPayable(ctx, nil)
		require.True(t, ap.OK(), ap.Message)
		assert.Equal(t, 2, ap.Count)
		return nil
	})
	require.NoError(t, err)

	err = svc.ERP(ctx, "rbc", func(context.Context, *erp.Module) error {
		t.Fatal("module must not be built for a banking connector")
		return nil
	})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestUpdateAndDeleteConnector(t *testing.T) {
	svc, _ := newService(t)
	ctx := testutil.TestContext(t)

	active := true
	cfg, err := svc.UpdateConnector(ctx, "hubspot", ConnectorPatch{
		Active: &active,
		Set:    map[string]any{"api_url": "https://api.hubapi.com", "api_key": "k", "sandbox": true},
	})
	require.NoError(t, err)
	assert.True(t, cfg.Active)
	assert.Equal(t, "hubspot", cfg.Data.String("crm_type", ""))

	err = svc.CRM(ctx, "hubspot", func(ctx context.Context, m *crm.Module) error {
		customers := m.Customers(ctx, nil)
		require.True(t, customers.OK(), customers.Message)
		assert.Equal(t, "CUST001", customers.Data[0].ID)
		assert.Equal(t, "hubspot", customers.Data[0].Source)
		return nil
	})
	require.NoError(t, err)

	cfg, err = svc.UpdateConnector(ctx, "hubspot", ConnectorPatch{Unset: []string{"sandbox"}})
	require.NoError(t, err)
	assert.False(t, cfg.Data.Has("sandbox"))
	stored, err := svc.Connectors(ctx, true)
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	_, err = svc.UpdateConnector(ctx, "ghost", ConnectorPatch{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	require.NoError(t, svc.DeleteConnector(ctx, "hubspot"))
	_, err = svc.Build(ctx, "hubspot")
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = svc.DeleteConnector(ctx, "hubspot")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestPMModuleRequiresPMConnector(t *testing.T) {
	svc, _ := newService(t)
	err := svc.PM(testutil.TestContext(t), "sap", func(context.Context, *pm.Module) error {
		t.Fatal("module must not be built for an erp connector")
		return nil
	})
	assert.ErrorContains(t, err, "connector sap is a erp connector, not pm")
}

func TestJobLifecycle(t *testing.T) {
	svc, logs := newService(t)
	ctx := testutil.TestContext(t)

	err := svc.CreateJob(ctx, &store.Job{Name: "orphan", Connector: "ghost", Type: store.JobSync})
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	job := &store.Job{
		Name:      "nightly methods",
		Connector: "rbc",
		Type:      store.JobSync,
		Config:    config.Values{"data_type": "payment_methods"},
	}
	require.NoError(t, svc.CreateJob(ctx, job))
	require.NotEmpty(t, job.ID)
	assert.Equal(t, store.JobActive, job.Status)

	run, err := svc.RunJob(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, run.OK)
	assert.Equal(t, 3, run.Result.(core.SyncResult).Count)
	assert.Equal(t, 3, logs.Len(), "connect, sync, disconnect")

	got, err := svc.Job(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastRunAt)
	assert.True(t, fixedNow.Equal(*got.LastRunAt))

	paused, err := svc.SetJobStatus(ctx, job.ID, store.JobPaused)
	require.NoError(t, err)
	assert.Equal(t, store.JobPaused, paused.Status)
	_, err = svc.RunJob(ctx, job.ID)
	assert.ErrorContains(t, err, "job nightly methods is paused")

	listed, err := svc.Jobs(ctx, store.JobPaused)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
	listed, err = svc.Jobs(ctx, store.JobActive)
	require.NoError(t, err)
	assert.Empty(t, listed)

	require.NoError(t, svc.DeleteJob(ctx, job.ID))
	_, err = svc.Job(ctx, job.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunSendJob(t *testing.T) {
	svc, _ := newService(t)
	ctx := testutil.TestContext(t)

	job := &store.Job{
		Name:      "push payment",
		Connector: "rbc",
		Type:      store.JobSend,
		Config: config.Values{
			"data_type": "payment",
			"payload":   map[string]any{"amount": "10.00"},
		},
	}
	require.NoError(t, svc.CreateJob(ctx, job))

	run, err := svc.RunJob(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, run.OK)
	assert.Equal(t, core.StatusSuccess, run.Result.(core.Result).Status)
}

func TestJobsWithoutStorage(t *testing.T) {
	testutil.TestLogger(t)
	svc := New(nil, oplog.NewMemoryStore())
	_, err := svc.Jobs(context.Background(), "")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestOpenWithMemoryLogs(t *testing.T) {
	testutil.TestLogger(t)
	settings := &config.Settings{
		Store:    config.StoreSettings{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "g.db")},
		LogStore: config.LogStoreSettings{Kind: "memory"},
	}
	svc, closeFn, err := Open(context.Background(), settings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn(context.Background()) })

	cfgs, err := svc.Connectors(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, cfgs)

	settings.LogStore.Kind = "kafka"
	_, _, err = Open(context.Background(), settings)
	assert.ErrorContains(t, err, `unsupported log store "kafka"`)
}
