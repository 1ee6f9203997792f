// Package sink forwards merged rows to downstream consumers.
package sink

import (
	"context"

	"github.com/MikeSquared-Agency/timeweave/internal/merge"
)

// Sink delivers the rows of one merge run.
type Sink interface {
	Send(ctx context.Context, runID string, rows []merge.Row) error
	Close() error
}

// Nop drops every row.
type Nop struct{}

func (Nop) Send(context.Context, string, []merge.Row) error { return nil }
func (Nop) Close() error { return nil }
