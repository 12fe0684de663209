// Package pm reads projects and tasks through a project management
// connector and returns them as canonical models.Project and models.Task
// values.
package pm

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/fincore/gateway/pkg/connector/core"
	"github.com/fincore/gateway/pkg/integration"
	"github.com/fincore/gateway/pkg/logger"
	"github.com/fincore/gateway/pkg/models"
)

// Data types requested from the connector.
const (
	DataProjects = "projects"
	DataTasks    = "tasks"
)

// Module is the project management integration module.
type Module struct {
	conn   core.Connector
	pmType string
	name   string
	logger *zap.Logger
}

// New wraps conn. The vendor is read from the connector's pm_type.
func New(conn core.Connector) *Module {
	pmType := strings.ToLower(integration.ConfigOf(conn).String("pm_type", "generic"))
	m := &Module{
		conn:   conn,
		pmType: pmType,
		name:   "PM_" + strings.ToUpper(pmType),
	}
	m.logger = logger.Get().With(zap.String("module", m.name))
	return m
}

// Name returns the module name, e.g. PM_JIRA.
func (m *Module) Name() string { return m.name }

// Projects pulls projects. filters may be nil.
func (m *Module) Projects(ctx context.Context, filters map[string]any) integration.KeyResult[models.Project] {
	m.logger.Info("syncing projects")
	return integration.FromSync(m.conn.SyncData(ctx, DataProjects, filters), func(r models.Record) models.Project {
		p := models.ProjectFromRecord(r)
		p.Source = m.pmType
		return p
	})
}

// Tasks pulls tasks. A non-empty projectID is sent as the project_id filter
// and tasks the vendor returns for other projects are dropped.
func (m *Module) Tasks(ctx context.Context, projectID string, filters map[string]any) integration.KeyResult[models.Task] {
	if projectID != "" {
		merged := make(map[string]any, len(filters)+1)
		for k, v := range filters {
			merged[k] = v
		}
		merged["project_id"] = projectID
		filters = merged
	}
	m.logger.Info("syncing tasks", zap.String("project_id", projectID))

	res := integration.FromSync(m.conn.SyncData(ctx, DataTasks, filters), func(r models.Record) models.Task {
		t := models.TaskFromRecord(r)
		t.Source = m.pmType
		return t
	})
	if !res.OK() || projectID == "" {
		return res
	}
	kept := res.Data[:0]
	for _, t := range res.Data {
		if t.ProjectID == "" || t.ProjectID == projectID {
			kept = append(kept, t)
		}
	}
	return integration.Succeeded(kept)
}
