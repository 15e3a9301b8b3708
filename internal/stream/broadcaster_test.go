package stream

import (
	"context"
	"testing"
	"time"
)

// runBroadcast starts b on a fresh source and returns the source plus a
// channel closed when Run returns.
func runBroadcast(ctx context.Context, b *Broadcaster, capacity int) (chan []int16, <-chan struct{}) {
	source := make(chan []int16, capacity)
	stopped := make(chan struct{})
	go func() {
		b.Run(ctx, source)
		close(stopped)
	}()
	return source, stopped
}

func recv(t *testing.T, l *Listener) []int16 {
	t.Helper()
	select {
	case f := <-l.C:
		return f
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for frame")
		return nil
	}
}

func waitClosed(t *testing.T, c <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-c:
	case <-time.After(2 * time.Second):
		t.Fatalf("%s did not happen", what)
	}
}

func TestListenerCountTracksSubscriptions(t *testing.T) {
	b := NewBroadcaster(0)
	ls := []*Listener{b.Subscribe(), b.Subscribe(), b.Subscribe()}
	if n := b.ListenerCount(); n != 3 {
		t.Fatalf("ListenerCount = %d, want 3", n)
	}
	for i, l := range ls {
		b.Unsubscribe(l)
		if n := b.ListenerCount(); n != 2-i {
			t.Errorf("after %d unsubscribes ListenerCount = %d", i+1, n)
		}
		select {
		case <-l.Done():
		default:
			t.Error("Done not closed after unsubscribe")
		}
	}
	b.Unsubscribe(ls[0])
}

func TestEveryListenerGetsEachFrame(t *testing.T) {
	b := NewBroadcaster(0)
	ls := make([]*Listener, 4)
	for i := range ls {
		ls[i] = b.Subscribe()
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source, _ := runBroadcast(ctx, b, 2)

	source <- []int16{7, -7}
	source <- []int16{8, -8}
	for i, l := range ls {
		if f := recv(t, l); f[0] != 7 || f[1] != -7 {
			t.Errorf("listener %d first frame = %v", i, f)
		}
		if f := recv(t, l); f[0] != 8 {
			t.Errorf("listener %d second frame = %v", i, f)
		}
	}
}

func TestSlowListenerDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroadcaster(10)
	slow := b.Subscribe()
	fast := b.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source, stopped := runBroadcast(ctx, b, 0)

	// An unbuffered source means each send waits for Run to take the frame,
	// so the broadcast never stalls on the slow listener.
	for i := range 30 {
		source <- []int16{int16(i)}
		if f := recv(t, fast); f[0] != int16(i) {
			t.Fatalf("fast listener got %v, want %d", f, i)
		}
	}
	source <- []int16{99}
	close(source)
	waitClosed(t, stopped, "stop on source close")
	recv(t, fast)

	if len(slow.C) != 10 {
		t.Errorf("slow listener holds %d frames, want its buffer of 10", len(slow.C))
	}
	if slow.Dropped() != 21 || fast.Dropped() != 0 {
		t.Errorf("dropped slow=%d fast=%d, want 21 and 0", slow.Dropped(), fast.Dropped())
	}
	if b.Sent() != 31 {
		t.Errorf("Sent = %d, want 31", b.Sent())
	}
}

func TestRunEnds(t *testing.T) {
	t.Run("source closed", func(t *testing.T) {
		b := NewBroadcaster(0)
		source, stopped := runBroadcast(context.Background(), b, 1)
		close(source)
		waitClosed(t, stopped, "stop on source close")
		waitClosed(t, b.Ended(), "Ended")
	})
	t.Run("context cancelled", func(t *testing.T) {
		b := NewBroadcaster(0)
		ctx, cancel := context.WithCancel(context.Background())
		_, stopped := runBroadcast(ctx, b, 1)
		cancel()
		waitClosed(t, stopped, "stop on cancel")
		waitClosed(t, b.Ended(), "Ended")
	})
}

func TestQueuedFramesSurviveEnd(t *testing.T) {
	b := NewBroadcaster(0)
	l := b.Subscribe()
	source := make(chan []int16, 3)
	for i := range 3 {
		source <- []int16{int16(i)}
	}
	close(source)
	b.Run(context.Background(), source)

	if len(l.C) != 3 {
		t.Fatalf("listener holds %d frames after end, want 3", len(l.C))
	}
	if f := recv(t, l); f[0] != 0 {
		t.Errorf("first queued frame = %v", f)
	}
}
