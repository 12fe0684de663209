package store

import (
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/logger"
	"github.com/fincore/gateway/pkg/oplog"
)

// ConnectorConfigModel is the persistence model for config.ConnectorConfig.
type ConnectorConfigModel struct {
	ID         string    `gorm:"type:varchar(36);primaryKey"`
	Name       string    `gorm:"type:varchar(100);not null;uniqueIndex"`
	Type       string    `gorm:"type:varchar(50);not null;index"`
	ConfigJSON string    `gorm:"column:config_data;type:text;not null"`
	IsActive   bool      `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for gorm
func (ConnectorConfigModel) TableName() string {
	return "connector_configs"
}

// ToConfig converts the model to a connector config.
func (m *ConnectorConfigModel) ToConfig() *config.ConnectorConfig {
	return &config.ConnectorConfig{
		Name:   m.Name,
		Type:   m.Type,
		Data:   decodeValues(m.ConfigJSON, "config_data", m.Name),
		Active: m.IsActive,
	}
}

// OperationLogModel is the persistence model for oplog.Entry. Seq preserves
// append order for newest-first queries.
type OperationLogModel struct {
	Seq             uint64    `gorm:"primaryKey;autoIncrement"`
	ID              string    `gorm:"type:varchar(36);not null;uniqueIndex"`
	ConnectorName   string    `gorm:"type:varchar(100);not null;index"`
	Operation       string    `gorm:"type:varchar(100);not null"`
	Status          string    `gorm:"type:varchar(20);not null;index"`
	Details         string    `gorm:"type:text"`
	RequestJSON     string    `gorm:"column:request_data;type:text"`
	ResponseJSON    string    `gorm:"column:response_data;type:text"`
	ErrorMessage    string    `gorm:"type:text"`
	ExecutionTimeMs int64     `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null;index"`
}

// TableName returns the table name for gorm
func (OperationLogModel) TableName() string {
	return "integration_logs"
}

func logModelFrom(e oplog.Entry) OperationLogModel {
	return OperationLogModel{
		ID:              e.ID,
		ConnectorName:   e.Connector,
		Operation:       e.Operation,
		Status:          string(e.Status),
		Details:         e.Details,
		RequestJSON:     encodeAny(e.RequestData),
		ResponseJSON:    encodeAny(e.ResponseData),
		ErrorMessage:    e.ErrorMessage,
		ExecutionTimeMs: e.ExecutionTimeMs(),
		CreatedAt:       e.CreatedAt,
	}
}

// ToEntry converts the model back to an entry. Request and response data
// come back as decoded JSON.
func (m *OperationLogModel) ToEntry() oplog.Entry {
	return oplog.Entry{
		ID:            m.ID,
		Connector:     m.ConnectorName,
		Operation:     m.Operation,
		Status:        oplog.Status(m.Status),
		Details:       m.Details,
		RequestData:   decodeAny(m.RequestJSON),
		ResponseData:  decodeAny(m.ResponseJSON),
		ErrorMessage:  m.ErrorMessage,
		ExecutionTime: time.Duration(m.ExecutionTimeMs) * time.Millisecond,
		CreatedAt:     m.CreatedAt,
	}
}

// JobModel is the persistence model for Job.
type JobModel struct {
	ID            string `gorm:"type:varchar(36);primaryKey"`
	JobName       string `gorm:"type:varchar(200);not null"`
	ConnectorName string `gorm:"type:varchar(100);not null;index"`
	JobType       string `gorm:"type:varchar(50);not null"`
	Schedule      string `gorm:"column:schedule_expression;type:varchar(100)"`
	ConfigJSON    string `gorm:"column:job_config;type:text"`
	Status        string `gorm:"type:varchar(20);not null;index"`
	LastRunAt     *time.Time
	NextRunAt     *time.Time
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for gorm
func (JobModel) TableName() string {
	return "integration_jobs"
}

// ToJob converts the model to a job.
func (m *JobModel) ToJob() *Job {
	return &Job{
		ID:        m.ID,
		Name:      m.JobName,
		Connector: m.ConnectorName,
		Type:      JobType(m.JobType),
		Schedule:  m.Schedule,
		Config:    decodeValues(m.ConfigJSON, "job_config", m.JobName),
		Status:    JobStatus(m.Status),
		LastRunAt: m.LastRunAt,
		NextRunAt: m.NextRunAt,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func encodeAny(v any) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		logger.Get().Warn("failed to encode log payload", zap.Error(err))
		return ""
	}
	return string(data)
}

func decodeAny(raw string) any {
	if raw == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// decodeValues parses a JSON object column. A corrupt column is logged and
// read as empty.
func decodeValues(raw, column, owner string) config.Values {
	v := config.Values{}
	if raw == "" {
		return v
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		logger.Get().Warn("failed to parse JSON column",
			zap.String("column", column),
			zap.String("owner", owner),
			zap.Error(err))
		return config.Values{}
	}
	return v
}

func encodeValues(v config.Values) (string, error) {
	if v == nil {
		v = config.Values{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
