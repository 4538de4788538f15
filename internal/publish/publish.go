// Package publish hands finished predictions to their consumers.
package publish

import (
	"context"
	"fmt"

	"github.com/cleared-dev/forecast/internal/model"
)

// Sink receives every prediction a run produces.
type Sink interface {
	Publish(ctx context.Context, runID string, p model.Prediction) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, runID string, p model.Prediction) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, runID string, p model.Prediction) error {
	return f(ctx, runID, p)
}

// Multi publishes to each sink in order and stops at the first failure, so
// a later sink never sees a run an earlier one rejected. Put the sink that
// records runs last.
type Multi []Sink

// Publish implements Sink.
func (m Multi) Publish(ctx context.Context, runID string, p model.Prediction) error {
	for i, s := range m {
		if err := s.Publish(ctx, runID, p); err != nil {
			return fmt.Errorf("sink %d: %w", i, err)
		}
	}
	return nil
}
