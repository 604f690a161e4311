package eventlogger

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Logger accepts events without blocking the caller.
type Logger interface {
	Log(event Event)
}

type Worker struct {
	eventCh     chan Event
	sink        Sink
	saveTimeout time.Duration
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewWorker(sink Sink, bufferSize int) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		eventCh:     make(chan Event, bufferSize),
		sink:        sink,
		saveTimeout: 5 * time.Second,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (w *Worker) Start() {
	w.wg.Go(func() {
		for {
			select {
			case <-w.ctx.Done():
				w.drain()
				return
			case event := <-w.eventCh:
				w.save(w.ctx, event)
			}
		}
	})
}

func (w *Worker) drain() {
	slog.Info("draining audit events before shutdown", "remaining_events", len(w.eventCh))
	for {
		select {
		case event := <-w.eventCh:
			w.save(context.Background(), event)
		default:
			return
		}
	}
}

func (w *Worker) save(parent context.Context, event Event) {
	ctx, cancel := context.WithTimeout(parent, w.saveTimeout)
	defer cancel()

	if err := w.sink.Save(ctx, event); err != nil {
		slog.Error("failed to save audit event", "error", err, "event_type", event.Type, "event_id", event.Metadata["event_id"])
	}
}

// Log enqueues an event; when the buffer is full the event is dropped.
func (w *Worker) Log(event Event) {
	select {
	case w.eventCh <- event:
	default:
		slog.Warn("audit channel full, dropping event", "event_type", event.Type)
	}
}

func (w *Worker) Shutdown() {
	w.cancel()
	w.wg.Wait()
}

var (
	_ Logger = (*Worker)(nil)
	_ Logger = (*MemoryLogger)(nil)
)
