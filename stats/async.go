package stats

import (
	"sync"

	"github.com/bjaus/hoard"
)

// AsyncSink decouples a slow sink from cache operations through a
// bounded buffer drained by a single background goroutine. When the
// buffer is full the oldest pending event is dropped, never the calling
// operation.
type AsyncSink struct {
	next hoard.Sink
	ch   chan hoard.Event
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

// Compile-time interface assertion.
var _ hoard.Sink = (*AsyncSink)(nil)

// Async wraps next with a buffer of the given size.
func Async(next hoard.Sink, size int) *AsyncSink {
	if size <= 0 {
		size = 1024
	}
	s := &AsyncSink{
		next: next,
		ch:   make(chan hoard.Event, size),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

// Record implements hoard.Sink. It never blocks.
func (s *AsyncSink) Record(ev hoard.Event) {
	select {
	case s.ch <- ev:
		return
	default:
	}

	// full: drop the oldest pending event to make room
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- ev:
	default:
	}
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for {
		select {
		case ev := <-s.ch:
			s.next.Record(ev)
		case <-s.quit:
			for {
				select {
				case ev := <-s.ch:
					s.next.Record(ev)
				default:
					return
				}
			}
		}
	}
}

// Close drains pending events and stops the background goroutine.
// Events recorded after Close may be dropped.
func (s *AsyncSink) Close() error {
	s.once.Do(func() {
		close(s.quit)
		<-s.done
	})
	return nil
}
