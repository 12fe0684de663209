// Package core defines the capability contract every gateway connector
// implements and the uniform result shapes returned to callers.
package core

import (
	"context"
	"time"

	"github.com/fincore/gateway/pkg/models"
)

// Connector is implemented by every connector, whatever its transport or vendor.
//
// Public operations never return a Go error: failures are converted into a
// result with StatusError, and each call writes exactly one operation log
// entry. A connector is not safe for concurrent use; use one instance per
// worker.
type Connector interface {
	// Name returns the configured connector name
	Name() string
	// Type returns the registry type tag (kafka, banking, custom, ...)
	Type() string

	// Connect opens the transport. It is a no-op when already connected.
	Connect(ctx context.Context) Result
	// Disconnect releases all held resources exactly once. Safe to call repeatedly.
	Disconnect(ctx context.Context) Result
	// TestConnection checks the transport is usable.
	TestConnection(ctx context.Context) Result

	// SyncData pulls records of dataType matching filters.
	SyncData(ctx context.Context, dataType string, filters map[string]any) SyncResult
	// SendData pushes payload as dataType.
	SendData(ctx context.Context, payload models.Record, dataType string) Result

	// ValidateConfig reports one message per missing or empty required field.
	ValidateConfig() []string
	// Status reports the in-memory connector state without touching the network.
	Status() Status
	// RequiredConfigFields lists the configuration keys the connector needs.
	RequiredConfigFields() []string
}

// ResultStatus is the outcome reported to callers.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
	StatusWarning ResultStatus = "warning"
)

// Result is returned by connect, disconnect, test and send operations.
type Result struct {
	Status  ResultStatus   `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	// Err carries the typed failure for Go callers; it is never serialized.
	Err error `json:"-"`
}

// OK reports whether the operation succeeded (warnings included).
func (r Result) OK() bool {
	return r.Status != StatusError
}

// SyncResult is returned by SyncData.
type SyncResult struct {
	Status  ResultStatus    `json:"status"`
	Data    []models.Record `json:"data"`
	Count   int             `json:"count"`
	Message string          `json:"message,omitempty"`
	Details map[string]any  `json:"details,omitempty"`
	Err     error           `json:"-"`
}

// OK reports whether the sync succeeded.
func (r SyncResult) OK() bool {
	return r.Status != StatusError
}

// Status is the connector status snapshot.
type Status struct {
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	Connected   bool       `json:"connected"`
	LastSync    *time.Time `json:"last_sync"`
	ConfigValid bool       `json:"config_valid"`
}
