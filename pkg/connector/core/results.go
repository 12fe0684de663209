package core

import (
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/models"
)

// Success builds a success result.
func Success(message string, details map[string]any) Result {
	return Result{Status: StatusSuccess, Message: message, Details: details}
}

// Failure builds an error result from err.
func Failure(err error) Result {
	return Result{Status: StatusError, Message: errors.Message(err), Err: err}
}

// SyncFailure builds an error sync result from err.
func SyncFailure(err error) SyncResult {
	return SyncResult{Status: StatusError, Data: []models.Record{}, Count: 0, Message: errors.Message(err), Err: err}
}
