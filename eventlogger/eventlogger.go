// Package eventlogger records an audit trail of ledger activity. Events are
// queued on a Worker and written asynchronously to one or more sinks.
package eventlogger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID        uuid.UUID         `json:"id,omitempty"`
	Type      string            `json:"event_type,omitempty"`
	Data      any               `json:"event_data,omitempty"`
	Metadata  map[string]string `json:"event_metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type EventOption func(*Event)

func WithType(eventType string) EventOption {
	return func(e *Event) {
		e.Type = eventType
	}
}

func WithData(data any) EventOption {
	return func(e *Event) {
		e.Data = data
	}
}

func WithMetadata(metadata map[string]string) EventOption {
	return func(e *Event) {
		for k, v := range metadata {
			e.Metadata[k] = v
		}
	}
}

func WithMeta(key, value string) EventOption {
	return func(e *Event) {
		e.Metadata[key] = value
	}
}

func NewEvent(opts ...EventOption) Event {
	e := Event{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		Metadata:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Sink persists or forwards a single event.
type Sink interface {
	Save(ctx context.Context, e Event) error
}

// EventLogger is a Sink that can also be queried.
type EventLogger interface {
	Sink
	GetByType(ctx context.Context, eventType string) ([]Event, error)
}

// MultiSink saves every event to all of its sinks and joins their errors.
type MultiSink []Sink

func (m MultiSink) Save(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Save(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
