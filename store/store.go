// Package store persists the step outputs of plan executions, keyed by
// execution ID. The engine writes every step result as it lands, so an
// execution's chain can be inspected or replayed after the fact.
package store

import (
	"context"

	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/apibridge", "store")

// Record is one step output of an execution.
type Record struct {
	Step  string `json:"step"`
	Value any    `json:"value"`
}

// ResultStore persists execution records in step order.
type ResultStore interface {
	Append(ctx context.Context, executionID string, rec Record) error
	Records(ctx context.Context, executionID string) ([]Record, error)
	Reset(ctx context.Context, executionID string) error
}
