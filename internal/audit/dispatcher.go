package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config sizes the dispatch buffer and selects the overflow policy.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher relays events from engine flows to a Sink on its own goroutine,
// so a slow sink never stalls an account operation. A nil *Dispatcher (audit
// disabled) accepts every call as a no-op.
type Dispatcher struct {
	sink    Sink
	events  chan Event
	drop    bool
	quit    chan struct{}
	drained chan struct{}
	dropped atomic.Uint64
	stop    sync.Once
}

// NewDispatcher starts the relay goroutine. Returns nil when auditing is
// disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	size := cfg.BufferSize
	if size < 1 {
		size = 1
	}

	d := &Dispatcher{
		sink:    sink,
		events:  make(chan Event, size),
		drop:    cfg.DropIfFull,
		quit:    make(chan struct{}),
		drained: make(chan struct{}),
	}
	go d.relay()
	return d
}

func (d *Dispatcher) relay() {
	defer close(d.drained)
	for {
		select {
		case event := <-d.events:
			d.sink.Emit(context.Background(), event)
		case <-d.quit:
			// Deliver whatever made it into the buffer before Close.
			for {
				select {
				case event := <-d.events:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Emit hands the event to the relay. With DropIfFull a full buffer counts a
// drop instead of blocking; otherwise Emit waits until the relay takes the
// event, ctx ends, or the dispatcher closes.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	select {
	case <-d.quit:
		return
	default:
	}

	if d.drop {
		select {
		case d.events <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.events <- event:
	case <-ctx.Done():
	case <-d.quit:
	}
}

// Close stops the relay after it has delivered every buffered event. Safe to
// call repeatedly and on a nil receiver.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stop.Do(func() { close(d.quit) })
	<-d.drained
}

// Dropped counts events discarded because the buffer was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
