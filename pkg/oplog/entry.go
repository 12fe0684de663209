// Package oplog records every attempted connector and module operation.
//
// The log is append-only: entries are immutable once written and, for any
// one connector, carry non-decreasing timestamps. Persistence is reached
// only through the narrow Store contract so the core never depends on a
// particular database.
package oplog

import (
	"context"
	"time"
)

// Status is the outcome of an operation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusWarning Status = "warning"
)

// Entry is one operation log record.
type Entry struct {
	ID            string        `json:"id"`
	Connector     string        `json:"connector_name"`
	Operation     string        `json:"operation"`
	Status        Status        `json:"status"`
	Details       string        `json:"details,omitempty"`
	RequestData   any           `json:"request_data,omitempty"`
	ResponseData  any           `json:"response_data,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	ExecutionTime time.Duration `json:"-"`
	CreatedAt     time.Time     `json:"created_at"`
}

// ExecutionTimeMs returns the execution time in whole milliseconds.
func (e Entry) ExecutionTimeMs() int64 {
	return e.ExecutionTime.Milliseconds()
}

// Query selects entries. Empty fields match everything.
type Query struct {
	Connector string
	Status    Status
	Limit     int
}

// DefaultQueryLimit applies when Query.Limit is not positive.
const DefaultQueryLimit = 100

// EffectiveLimit returns the limit a store should apply.
func (q Query) EffectiveLimit() int {
	if q.Limit <= 0 {
		return DefaultQueryLimit
	}
	return q.Limit
}

// Store persists entries. Query returns the newest entries first.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Query(ctx context.Context, q Query) ([]Entry, error)
}
