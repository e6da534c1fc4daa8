package chatsession

import (
	"strings"
	"sync"
	"time"
)

// defaultFinalizeWindow is how long the aggregator waits after the last
// chunk before treating the buffer as a complete message.
const defaultFinalizeWindow = 3 * time.Second

// Aggregator accumulates streamed reply chunks and emits them as one
// message once the stream has gone quiet for a full finalize window. Every
// chunk re-arms the timer, so a steadily streaming reply is never split.
type Aggregator struct {
	window time.Duration
	emit   func(content string)

	mu  sync.Mutex
	buf strings.Builder
	gen uint64
	t   *time.Timer
}

func NewAggregator(window time.Duration, emit func(content string)) *Aggregator {
	if window <= 0 {
		window = defaultFinalizeWindow
	}
	return &Aggregator{window: window, emit: emit}
}

// Append adds a chunk to the pending buffer and restarts the quiet timer.
func (a *Aggregator) Append(chunk string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buf.WriteString(chunk)
	a.rearm()
}

// Pending returns the accumulated text that has not been finalized yet.
func (a *Aggregator) Pending() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.String()
}

// Reset discards any pending buffer without emitting it.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buf.Reset()
	a.gen++
	if a.t != nil {
		a.t.Stop()
		a.t = nil
	}
}

// rearm must be called with the lock held. The generation counter guards
// against a stale timer that fired but had not yet taken the lock when a
// newer chunk arrived.
func (a *Aggregator) rearm() {
	a.gen++
	gen := a.gen
	if a.t != nil {
		a.t.Stop()
	}
	a.t = time.AfterFunc(a.window, func() { a.finalize(gen) })
}

func (a *Aggregator) finalize(gen uint64) {
	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		return
	}
	content := a.buf.String()
	a.buf.Reset()
	a.t = nil
	a.mu.Unlock()

	if strings.TrimSpace(content) == "" {
		return
	}
	a.emit(content)
}
