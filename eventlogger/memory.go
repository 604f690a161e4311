package eventlogger

import (
	"context"
	"sync"
)

// MemoryLogger keeps events in a slice. It doubles as a synchronous Logger
// so tests can observe what was recorded without running a Worker.
type MemoryLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

func (m *MemoryLogger) Save(ctx context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, e)
	return nil
}

func (m *MemoryLogger) Log(e Event) {
	m.Save(context.Background(), e)
}

func (m *MemoryLogger) GetByType(ctx context.Context, eventType string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := make([]Event, 0)
	for _, e := range m.events {
		if e.Type == eventType {
			events = append(events, e)
		}
	}
	return events, nil
}

func (m *MemoryLogger) All() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := make([]Event, len(m.events))
	copy(events, m.events)
	return events
}

var _ EventLogger = (*MemoryLogger)(nil)
