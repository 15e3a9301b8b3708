package stream

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultListenerBuffer is how many 20ms frames a listener may fall behind
// before frames are dropped for it (~3 seconds).
const DefaultListenerBuffer = 150

// Broadcaster fans out the console's output bus to N listeners.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
	buffer    int

	sent      atomic.Int64
	ended     chan struct{}
	endedOnce sync.Once
}

// Listener receives PCM frames from the broadcaster.
type Listener struct {
	C       chan []int16 // buffered channel of 20ms PCM frames
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
}

// Done is closed once the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} { return l.done }

// Dropped returns how many frames this listener missed for being slow.
func (l *Listener) Dropped() int64 { return l.dropped.Load() }

// NewBroadcaster creates a broadcaster. buffer is the per-listener frame
// backlog; zero or less uses DefaultListenerBuffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultListenerBuffer
	}
	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
		buffer:    buffer,
		ended:     make(chan struct{}),
	}
}

// Subscribe registers a new listener.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		C:    make(chan []int16, b.buffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop. Safe to call twice.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	delete(b.listeners, l)
	b.mu.Unlock()
	l.once.Do(func() { close(l.done) })
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Sent returns how many frames have been fanned out.
func (b *Broadcaster) Sent() int64 { return b.sent.Load() }

// Ended is closed when Run returns. Frames already queued on listeners
// stay readable.
func (b *Broadcaster) Ended() <-chan struct{} { return b.ended }

// Run reads frames from source and fans out to all listeners until the
// source closes or ctx is cancelled. Slow listeners get frames dropped
// rather than blocking the broadcast.
func (b *Broadcaster) Run(ctx context.Context, source <-chan []int16) {
	defer b.endedOnce.Do(func() { close(b.ended) })
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.sent.Add(1)
			b.mu.RLock()
			for l := range b.listeners {
				select {
				case l.C <- frame:
				default:
					l.dropped.Add(1)
				}
			}
			b.mu.RUnlock()
		}
	}
}
