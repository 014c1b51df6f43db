package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)
	defer d.Close()

	for i, eventType := range []string{TypeSignup, TypeSignin, TypePasswordChanged} {
		d.Emit(context.Background(), Event{
			Timestamp: time.Unix(int64(1_700_000_000+i), 0),
			EventType: eventType,
			UserID:    "user-1",
			Success:   true,
		})
	}

	for _, want := range []string{TypeSignup, TypeSignin, TypePasswordChanged} {
		select {
		case got := <-sink.Events():
			if got.EventType != want {
				t.Fatalf("expected %s, got %s", want, got.EventType)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("disabled dispatcher must be nil")
	}

	// Nil receiver calls must be safe.
	d.Emit(context.Background(), Event{EventType: TypeSignin})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	blocked := make(chan struct{})
	release := make(chan struct{})
	var blockedOnce sync.Once
	sink := sinkFunc(func(ctx context.Context, event Event) {
		blockedOnce.Do(func() { close(blocked) })
		<-release
	})

	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer d.Close()

	d.Emit(context.Background(), Event{EventType: TypeSignin})
	<-blocked

	// Worker is stuck in the sink; fill the buffer, then overflow it.
	d.Emit(context.Background(), Event{EventType: TypeSignin})
	d.Emit(context.Background(), Event{EventType: TypeSignin})
	d.Emit(context.Background(), Event{EventType: TypeSignin})

	if d.Dropped() == 0 {
		t.Fatal("expected dropped events with a full buffer")
	}
	close(release)
}

func TestDispatcherFlushesOnClose(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: TypeVerify, UserID: "user-1", Success: true})
	}
	d.Close()

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 5 {
		t.Fatalf("expected 5 flushed events, got %d", len(lines))
	}
	var event Event
	if err := json.Unmarshal(lines[0], &event); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if event.EventType != TypeVerify {
		t.Fatalf("unexpected event type %s", event.EventType)
	}
}

type sinkFunc func(ctx context.Context, event Event)

func (f sinkFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }
