package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/fincore/gateway/pkg/oplog"
)

// LogStore is an oplog.Store on the integration_logs table.
type LogStore struct {
	db *gorm.DB
}

var _ oplog.Store = (*LogStore)(nil)

// NewLogStore creates a LogStore.
func NewLogStore(db *gorm.DB) *LogStore {
	return &LogStore{db: db}
}

// Append implements oplog.Store.
func (s *LogStore) Append(ctx context.Context, e oplog.Entry) error {
	model := logModelFrom(e)
	return s.db.WithContext(ctx).Create(&model).Error
}

// Query implements oplog.Store.
func (s *LogStore) Query(ctx context.Context, q oplog.Query) ([]oplog.Entry, error) {
	query := s.db.WithContext(ctx).Order("seq DESC").Limit(q.EffectiveLimit())
	if q.Connector != "" {
		query = query.Where("connector_name = ?", q.Connector)
	}
	if q.Status != "" {
		query = query.Where("status = ?", string(q.Status))
	}

	var models []OperationLogModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entries := make([]oplog.Entry, len(models))
	for i := range models {
		entries[i] = models[i].ToEntry()
	}
	return entries, nil
}

// Count returns the number of stored entries for connector, or all entries
// when connector is empty.
func (s *LogStore) Count(ctx context.Context, connector string) (int64, error) {
	query := s.db.WithContext(ctx).Model(&OperationLogModel{})
	if connector != "" {
		query = query.Where("connector_name = ?", connector)
	}
	var n int64
	err := query.Count(&n).Error
	return n, err
}
