// Package integration holds the pieces shared by the domain integration
// modules (banking, erp, crm, pm): per-key batch results, typed conversion
// of sync results and access to the wrapped connector's configuration.
//
// A module wraps exactly one connector. Batched operations process their
// keys (accounts, data types) one at a time and collect one KeyResult per
// key, so a failure for one key never hides the outcome of the others.
package integration

import (
	"time"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/connector/core"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/models"
)

// KeyResult is the outcome for one key of a batched operation.
type KeyResult[T any] struct {
	Status    core.ResultStatus `json:"status"`
	Count     int               `json:"count"`
	Data      []T               `json:"data,omitempty"`
	Message   string            `json:"message,omitempty"`
	Endpoint  string            `json:"endpoint,omitempty"`
	DateRange string            `json:"date_range,omitempty"`
	Err       error             `json:"-"`
}

// OK reports whether the key succeeded.
func (r KeyResult[T]) OK() bool {
	return r.Status != core.StatusError
}

// Succeeded builds a success result holding data.
func Succeeded[T any](data []T) KeyResult[T] {
	if data == nil {
		data = []T{}
	}
	return KeyResult[T]{Status: core.StatusSuccess, Count: len(data), Data: data}
}

// Failed builds an error result from err.
func Failed[T any](err error) KeyResult[T] {
	return KeyResult[T]{Status: core.StatusError, Message: errors.Message(err), Err: err}
}

// FromSync converts a connector sync result, mapping every record with conv.
func FromSync[T any](res core.SyncResult, conv func(models.Record) T) KeyResult[T] {
	if !res.OK() {
		err := res.Err
		if err == nil {
			err = errors.New(errors.ErrorTypeConnection, "Unknown error")
		}
		return Failed[T](err)
	}
	out := make([]T, 0, len(res.Data))
	for _, r := range res.Data {
		out = append(out, conv(r))
	}
	return Succeeded(out)
}

// BatchResult collects one KeyResult per key.
type BatchResult[T any] struct {
	Module    string                  `json:"module"`
	Timestamp time.Time               `json:"timestamp"`
	Results   map[string]KeyResult[T] `json:"results"`
	// TotalSynced counts the keys that succeeded.
	TotalSynced int `json:"total_synced"`
}

// NewBatch starts an empty batch for module.
func NewBatch[T any](module string, now time.Time) *BatchResult[T] {
	return &BatchResult[T]{
		Module:    module,
		Timestamp: now.UTC(),
		Results:   make(map[string]KeyResult[T]),
	}
}

// Add records the result for key. Adding the same key twice replaces the
// first result.
func (b *BatchResult[T]) Add(key string, r KeyResult[T]) {
	if prev, ok := b.Results[key]; ok && prev.OK() {
		b.TotalSynced--
	}
	b.Results[key] = r
	if r.OK() {
		b.TotalSynced++
	}
}

// Configurable is implemented by connectors that expose their configuration.
type Configurable interface {
	Config() config.Values
}

// ConfigOf returns the configuration of conn, or an empty map when the
// connector does not expose one.
func ConfigOf(conn core.Connector) config.Values {
	if c, ok := conn.(Configurable); ok && c.Config() != nil {
		return c.Config()
	}
	return config.Values{}
}
