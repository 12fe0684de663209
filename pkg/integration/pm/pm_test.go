package pm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/connector/core"
	"github.com/fincore/gateway/pkg/connector/transport"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/models"
	"github.com/fincore/gateway/pkg/oplog"
	"github.com/fincore/gateway/pkg/testutil"
)

func TestJiraProjectsAndIssues(t *testing.T) {
	testutil.TestLogger(t)
	fake := testutil.NewFakeConnector("pm", config.Values{"pm_type": "jira"})
	fake.OnSync(DataProjects, testutil.Synced(models.Record{"id": "10000", "key": "FIN", "name": "Finance"}))
	fake.OnSync(DataTasks, testutil.Synced(
		models.Record{
			"id":  "10042",
			"key": "FIN-42",
			"fields": map[string]any{
				"summary":  "Close January books",
				"status":   map[string]any{"name": "In Progress"},
				"assignee": map[string]any{"displayName": "Grace Hopper"},
				"project":  map[string]any{"id": "10000", "key": "FIN"},
			},
		},
		models.Record{
			"id":     "20001",
			"fields": map[string]any{"summary": "Other", "project": map[string]any{"id": "20000"}},
		},
	))
	m := New(fake)
	assert.Equal(t, "PM_JIRA", m.Name())

	projects := m.Projects(context.Background(), nil)
	require.True(t, projects.OK())
	assert.Equal(t, []models.Project{{ID: "10000", Name: "Finance", Source: "jira"}}, projects.Data)

	tasks := m.Tasks(context.Background(), "10000", map[string]any{"maxResults": 50})
	require.True(t, tasks.OK())
	assert.Equal(t, 1, tasks.Count)
	assert.Equal(t, models.Task{
		ID:        "10042",
		ProjectID: "10000",
		Name:      "Close January books",
		Status:    "In Progress",
		Assignee:  "Grace Hopper",
		Source:    "jira",
	}, tasks.Data[0])
	assert.Equal(t, map[string]any{"maxResults": 50, "project_id": "10000"}, fake.SyncCalls[1].Filters)
}

func TestAsanaTaskCompletion(t *testing.T) {
	testutil.TestLogger(t)
	fake := testutil.NewFakeConnector("pm", config.Values{"pm_type": "asana"})
	fake.OnSync(DataTasks, testutil.Synced(models.Record{
		"gid":       "1201",
		"name":      "Approve vendor invoices",
		"completed": true,
		"projects":  []any{map[string]any{"gid": "9001"}},
	}))

	tasks := New(fake).Tasks(context.Background(), "", nil)
	require.Len(t, tasks.Data, 1)
	assert.Equal(t, "1201", tasks.Data[0].ID)
	assert.Equal(t, "9001", tasks.Data[0].ProjectID)
	assert.Equal(t, "completed", tasks.Data[0].Status)
	assert.Nil(t, fake.SyncCalls[0].Filters)
}

func TestTasksFailure(t *testing.T) {
	testutil.TestLogger(t)
	fake := testutil.NewFakeConnector("pm", nil)
	fake.OnSync(DataTasks, testutil.SyncFailed(errors.ErrorTypeTimeout, "request timed out"))

	res := New(fake).Tasks(context.Background(), "P1", nil)
	assert.Equal(t, core.StatusError, res.Status)
	assert.Equal(t, "request timed out", res.Message)
}

func TestSandboxProjectsAndTasks(t *testing.T) {
	testutil.TestLogger(t)
	conn := transport.NewPMConnector("delivery", config.Values{
		"pm_type": "asana",
		"api_url": "https://app.asana.com/api/1.0",
		"api_key": "k",
		"sandbox": true,
	}, oplog.NewRecorder(oplog.NewMemoryStore()))
	m := New(conn)

	projects := m.Projects(context.Background(), nil)
	require.Len(t, projects.Data, 1)
	assert.Equal(t, models.Project{
		ID:        "PROJ001",
		Name:      "Office Building Construction",
		Status:    "in_progress",
		StartDate: "2024-01-01",
		EndDate:   "2024-12-31",
		Source:    "asana",
	}, projects.Data[0])

	tasks := m.Tasks(context.Background(), "PROJ001", nil)
	require.Len(t, tasks.Data, 1)
	assert.Equal(t, "John Doe", tasks.Data[0].Assignee)
}
