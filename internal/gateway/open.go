package gateway

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/logger"
	"github.com/fincore/gateway/pkg/oplog"
	"github.com/fincore/gateway/pkg/store"
	"github.com/fincore/gateway/pkg/store/mongostore"
)

// CloseFunc releases everything Open acquired.
type CloseFunc func(context.Context) error

// Open builds a Service from settings: the SQL store always holds connector
// configurations, while the operation log goes to the SQL store, MongoDB or
// memory depending on LogStore.Kind.
func Open(ctx context.Context, s *config.Settings) (*Service, CloseFunc, error) {
	db, err := store.Open(s.Store.Driver, s.Store.DSN)
	if err != nil {
		return nil, nil, err
	}
	closers := []CloseFunc{func(context.Context) error { return db.Close() }}
	closeAll := func(ctx context.Context) error {
		var first error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](ctx); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	var logs oplog.Store
	switch s.LogStore.Kind {
	case "", "sql":
		logs = db.Logs()
	case "memory":
		logs = oplog.NewMemoryStore()
	case "mongo":
		ms, disconnect, err := mongostore.Connect(ctx, s.LogStore.MongoURI, s.LogStore.MongoDatabase, s.LogStore.MongoCollection)
		if err != nil {
			_ = closeAll(ctx)
			return nil, nil, err
		}
		closers = append(closers, disconnect)
		if err := ms.EnsureIndexes(ctx); err != nil {
			logger.Warn("failed to create log indexes", zap.Error(err))
		}
		logs = ms
	default:
		_ = closeAll(ctx)
		return nil, nil, fmt.Errorf("unsupported log store %q", s.LogStore.Kind)
	}

	return New(db.Configs(), logs, WithJobs(db.Jobs())), closeAll, nil
}
