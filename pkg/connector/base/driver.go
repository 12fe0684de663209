package base

import (
	"context"

	"github.com/fincore/gateway/pkg/models"
)

// Driver is the protocol strategy a Connector delegates to. Implementations
// hold the transport handles; the Connector owns state, validation and
// operation logging.
//
// Close must tolerate being called after a partially failed Open.
type Driver interface {
	// Open establishes the transport and returns a human-readable message.
	Open(ctx context.Context) (string, error)
	// Close releases every held handle.
	Close(ctx context.Context) error
	// Probe checks a live transport.
	Probe(ctx context.Context) (string, error)
	// Pull fetches records. It must return within a bounded time.
	Pull(ctx context.Context, dataType string, filters map[string]any) (Batch, error)
	// Push sends one payload.
	Push(ctx context.Context, payload models.Record, dataType string) (Receipt, error)
}

// Batch is what a driver returns from Pull.
type Batch struct {
	Records []models.Record
	Message string
	Details map[string]any
}

// Receipt is what a driver returns from Push.
type Receipt struct {
	Message string
	Details map[string]any
}

// Warner is implemented by drivers that can connect with caveats. When it
// reports warnings after a successful Open, the connect is logged as a warning.
type Warner interface {
	Warnings() []string
}
