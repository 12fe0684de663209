package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/connector/core"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/models"
)

// SyncCall records one SyncData invocation.
type SyncCall struct {
	DataType string
	Filters  map[string]any
}

// SendCall records one SendData invocation.
type SendCall struct {
	DataType string
	Payload  models.Record
}

// FakeConnector is a scripted core.Connector for integration module tests.
// Results are looked up by data type; unscripted syncs succeed with no
// records and unscripted sends succeed with no details.
type FakeConnector struct {
	NameValue string
	TypeValue string
	Values    config.Values

	// SyncFunc, when set, overrides SyncResults.
	SyncFunc    func(dataType string, filters map[string]any) core.SyncResult
	SyncResults map[string]core.SyncResult
	// SendFunc, when set, overrides SendResults.
	SendFunc    func(dataType string, payload models.Record) core.Result
	SendResults map[string]core.Result

	SyncCalls []SyncCall
	SendCalls []SendCall

	connected bool
	lastSync  *time.Time
}

// NewFakeConnector creates a fake with the given config.
func NewFakeConnector(typ string, cfg config.Values) *FakeConnector {
	return &FakeConnector{
		NameValue:   "fake-" + typ,
		TypeValue:   typ,
		Values:      cfg,
		SyncResults: make(map[string]core.SyncResult),
		SendResults: make(map[string]core.Result),
	}
}

// OnSync scripts the result for dataType.
func (f *FakeConnector) OnSync(dataType string, res core.SyncResult) *FakeConnector {
	f.SyncResults[dataType] = res
	return f
}

// OnSend scripts the result for dataType.
func (f *FakeConnector) OnSend(dataType string, res core.Result) *FakeConnector {
	f.SendResults[dataType] = res
	return f
}

// Synced builds a successful sync result.
func Synced(records ...models.Record) core.SyncResult {
	if records == nil {
		records = []models.Record{}
	}
	return core.SyncResult{
		Status:  core.StatusSuccess,
		Data:    records,
		Count:   len(records),
		Message: fmt.Sprintf("Synced %d records", len(records)),
	}
}

// SyncFailed builds a failed sync result.
func SyncFailed(errType errors.ErrorType, msg string) core.SyncResult {
	return core.SyncFailure(errors.New(errType, msg))
}

// Sent builds a successful send result.
func Sent(details map[string]any) core.Result {
	return core.Success("Data sent successfully", details)
}

// Config returns the connector configuration.
func (f *FakeConnector) Config() config.Values { return f.Values }

func (f *FakeConnector) Name() string { return f.NameValue }
func (f *FakeConnector) Type() string { return f.TypeValue }

func (f *FakeConnector) Connect(context.Context) core.Result {
	f.connected = true
	return core.Success("Connected", nil)
}

func (f *FakeConnector) Disconnect(context.Context) core.Result {
	f.connected = false
	return core.Success("Disconnected", nil)
}

func (f *FakeConnector) TestConnection(context.Context) core.Result {
	return core.Success("Connection test successful", nil)
}

func (f *FakeConnector) SyncData(_ context.Context, dataType string, filters map[string]any) core.SyncResult {
	f.SyncCalls = append(f.SyncCalls, SyncCall{DataType: dataType, Filters: filters})
	f.connected = true

	var res core.SyncResult
	switch {
	case f.SyncFunc != nil:
		res = f.SyncFunc(dataType, filters)
	default:
		var ok bool
		if res, ok = f.SyncResults[dataType]; !ok {
			res = Synced()
		}
	}
	if res.OK() {
		now := time.Now()
		f.lastSync = &now
	}
	return res
}

func (f *FakeConnector) SendData(_ context.Context, payload models.Record, dataType string) core.Result {
	f.SendCalls = append(f.SendCalls, SendCall{DataType: dataType, Payload: payload})
	f.connected = true

	if f.SendFunc != nil {
		return f.SendFunc(dataType, payload)
	}
	if res, ok := f.SendResults[dataType]; ok {
		return res
	}
	return Sent(nil)
}

func (f *FakeConnector) ValidateConfig() []string { return nil }

func (f *FakeConnector) Status() core.Status {
	return core.Status{
		Name:        f.NameValue,
		Type:        f.TypeValue,
		Connected:   f.connected,
		LastSync:    f.lastSync,
		ConfigValid: true,
	}
}

func (f *FakeConnector) RequiredConfigFields() []string { return nil }

var _ core.Connector = (*FakeConnector)(nil)
