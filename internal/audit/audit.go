// Package audit records authentication events without blocking request
// handling. Events are buffered on a channel and drained by a single
// background goroutine into a Sink.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// Event names recorded by the auth service.
const (
	EventLoginSuccess   = "login.success"
	EventLoginFailure   = "login.failure"
	EventRefreshSuccess = "refresh.success"
	EventRefreshReplay  = "refresh.replay"
	EventLogout         = "logout"
)

// Event is a single auth-trail entry.
type Event struct {
	UserID string
	Name   string
	Detail string
	At     time.Time
}

// Sink persists events. The postgres implementation lives in internal/store.
type Sink interface {
	WriteEvent(ctx context.Context, ev Event) error
}

// Recorder queues events for asynchronous persistence. A full buffer drops
// the event rather than stalling the login path.
type Recorder struct {
	sink Sink
	log  *slog.Logger
	ch   chan Event
	done chan struct{}
}

func NewRecorder(sink Sink, log *slog.Logger) *Recorder {
	r := &Recorder{
		sink: sink,
		log:  log,
		ch:   make(chan Event, 256),
		done: make(chan struct{}),
	}
	go r.drain()
	return r
}

// Record enqueues an event. Safe to call on a nil Recorder, which makes the
// trail optional for tests and minimal deployments.
func (r *Recorder) Record(name, userID, detail string) {
	if r == nil {
		return
	}
	ev := Event{UserID: userID, Name: name, Detail: detail, At: time.Now()}
	select {
	case r.ch <- ev:
	default:
		r.log.Warn("audit buffer full, dropping event", "event", name)
	}
}

// Close stops the drain loop after flushing queued events.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	close(r.ch)
	<-r.done
}

func (r *Recorder) drain() {
	defer close(r.done)
	for ev := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.sink.WriteEvent(ctx, ev); err != nil {
			r.log.Error("audit write failed", "event", ev.Name, "error", err)
		}
		cancel()
	}
}
