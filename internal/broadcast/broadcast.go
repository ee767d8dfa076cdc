// Package broadcast delivers job events to subscribers: an in-process
// fan-out for connected clients, a zap mirror for operators, and an optional
// Pub/Sub publisher for downstream consumers.
package broadcast

import (
	"sync"

	"go.uber.org/zap"

	"github.com/xandervandijck/scraper-backend/internal/progress"
)

// Fanout relays events to every subscriber without ever blocking the
// emitter; a subscriber that falls behind loses events.
type Fanout struct {
	mu      sync.Mutex
	nextID  int
	subs    map[int]chan progress.Event
	bufSize int
}

// NewFanout builds a Fanout with the given per-subscriber buffer.
func NewFanout(bufSize int) *Fanout {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Fanout{subs: make(map[int]chan progress.Event), bufSize: bufSize}
}

// Broadcast delivers the event to all subscribers, dropping on full buffers.
func (f *Fanout) Broadcast(evt progress.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribe registers a listener. The returned cancel func must be called to
// release it.
func (f *Fanout) Subscribe() (<-chan progress.Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	ch := make(chan progress.Event, f.bufSize)
	f.subs[id] = ch
	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}
}

// Subscribers reports the current listener count.
func (f *Fanout) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Logger mirrors selected events into a zap logger. Update events are
// skipped; they fire on every mutation and would swamp the log.
type Logger struct {
	logger *zap.Logger
}

// NewLogger builds a Logger broadcaster.
func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger}
}

// Broadcast logs the event.
func (l *Logger) Broadcast(evt progress.Event) {
	switch evt.Type {
	case progress.TypeUpdate:
	case progress.TypeLog:
		switch evt.Level {
		case progress.LevelWarn:
			l.logger.Warn(evt.Message, zap.String("session_id", evt.SessionID))
		case progress.LevelError:
			l.logger.Error(evt.Message, zap.String("session_id", evt.SessionID))
		default:
			l.logger.Debug(evt.Message, zap.String("session_id", evt.SessionID))
		}
	case progress.TypeJobError:
		l.logger.Error("job failed",
			zap.String("session_id", evt.SessionID),
			zap.String("error", evt.Error))
	default:
		l.logger.Debug("job event",
			zap.String("type", string(evt.Type)),
			zap.String("session_id", evt.SessionID))
	}
}

// Multi fans one event out to several broadcasters.
type Multi []progress.Broadcaster

// Broadcast relays to every non-nil member.
func (m Multi) Broadcast(evt progress.Event) {
	for _, b := range m {
		if b != nil {
			b.Broadcast(evt)
		}
	}
}

var (
	_ progress.Broadcaster = (*Fanout)(nil)
	_ progress.Broadcaster = (*Logger)(nil)
	_ progress.Broadcaster = (Multi)(nil)
)
