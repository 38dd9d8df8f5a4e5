// Package usage records prompt request usage to Postgres and event sinks.
package usage

import (
	"context"
	"errors"

	"dev.helix.gateway/internal/models"
)

// Recorder persists or publishes prompt request records.
type Recorder interface {
	Record(ctx context.Context, record *models.PromptRequestRecord) error
	Close() error
}

// NopRecorder discards records.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, *models.PromptRequestRecord) error { return nil }

func (NopRecorder) Close() error { return nil }

// MultiRecorder fans a record out to every sink. All sinks are tried and
// their errors are joined.
type MultiRecorder struct {
	recorders []Recorder
}

// NewMultiRecorder combines recorders, skipping nil entries.
func NewMultiRecorder(recorders ...Recorder) *MultiRecorder {
	m := &MultiRecorder{}
	for _, r := range recorders {
		if r != nil {
			m.recorders = append(m.recorders, r)
		}
	}
	return m
}

// Len returns the number of sinks.
func (m *MultiRecorder) Len() int {
	return len(m.recorders)
}

func (m *MultiRecorder) Record(ctx context.Context, record *models.PromptRequestRecord) error {
	var errs []error
	for _, r := range m.recorders {
		if err := r.Record(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiRecorder) Close() error {
	var errs []error
	for _, r := range m.recorders {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
