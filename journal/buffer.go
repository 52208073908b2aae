package journal

import (
	"sync"
	"sync/atomic"
)

// Buffered decouples decision latency from the durable backend: writes
// are queued and drained by a single goroutine. The engine keeps its
// own authoritative state, so a slow or failing backend can delay or
// drop audit persistence but can never change a decision. Dropped
// writes are counted rather than silently lost.
type Buffered struct {
	inner   Journal
	ch      chan record
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

type record struct {
	event *Event
	fill  *FillRecord
}

func NewBuffered(inner Journal, size int) *Buffered {
	if size <= 0 {
		size = 256
	}
	b := &Buffered{
		inner: inner,
		ch:    make(chan record, size),
		done:  make(chan struct{}),
	}
	go b.drain()
	return b
}

func (b *Buffered) drain() {
	defer close(b.done)
	for rec := range b.ch {
		var err error
		if rec.event != nil {
			err = b.inner.RecordEvent(*rec.event)
		} else if rec.fill != nil {
			err = b.inner.RecordFill(*rec.fill)
		}
		if err != nil {
			b.dropped.Add(1)
		}
	}
}

func (b *Buffered) RecordEvent(e Event) error {
	select {
	case b.ch <- record{event: &e}:
	default:
		b.dropped.Add(1)
	}
	return nil
}

func (b *Buffered) RecordFill(f FillRecord) error {
	select {
	case b.ch <- record{fill: &f}:
	default:
		b.dropped.Add(1)
	}
	return nil
}

// Dropped counts records lost to a full queue or backend write errors.
func (b *Buffered) Dropped() uint64 { return b.dropped.Load() }

// Close stops accepting writes, drains the queue, then closes the
// backend.
func (b *Buffered) Close() error {
	b.once.Do(func() { close(b.ch) })
	<-b.done
	return b.inner.Close()
}
