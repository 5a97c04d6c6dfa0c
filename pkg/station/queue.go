package station

import (
	"sync"
	"time"

	"github.com/mcu-template/taskboot/pkg/netjoin"
)

type queued struct {
	ev    netjoin.Event
	delay time.Duration
	gen   uint64
}

// eventQueue delivers events to the current subscriber in order.
type eventQueue struct {
	mu      sync.Mutex
	out     chan netjoin.Event
	gen     uint64
	pending []queued

	wake  chan struct{}
	resub chan struct{}
	stop  chan struct{}
	done  chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		wake:  make(chan struct{}, 1),
		resub: make(chan struct{}, 1),
	}
}

// subscribe installs a fresh subscriber channel and drops events queued for
// the previous one. The previous channel is abandoned, not closed.
func (q *eventQueue) subscribe() <-chan netjoin.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.out = make(chan netjoin.Event)
	q.gen++
	q.pending = nil

	if q.stop == nil {
		q.stop = make(chan struct{})
		q.done = make(chan struct{})
		go q.run(q.stop, q.done)
	} else {
		signal(q.resub)
	}
	return q.out
}

func (q *eventQueue) subscribed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.out != nil
}

// push queues ev for delivery after delay.
func (q *eventQueue) push(ev netjoin.Event, delay time.Duration) {
	q.mu.Lock()
	q.pending = append(q.pending, queued{ev: ev, delay: delay, gen: q.gen})
	q.mu.Unlock()
	signal(q.wake)
}

// close stops the dispatcher and closes the subscriber channel.
func (q *eventQueue) close() {
	q.mu.Lock()
	stop, done := q.stop, q.done
	q.stop, q.done = nil, nil
	q.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done

	q.mu.Lock()
	if q.out != nil {
		close(q.out)
		q.out = nil
	}
	q.pending = nil
	q.mu.Unlock()
}

func (q *eventQueue) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			select {
			case <-q.wake:
				continue
			case <-stop:
				return
			}
		}
		next := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		if next.delay > 0 {
			timer := time.NewTimer(next.delay)
			select {
			case <-timer.C:
			case <-stop:
				timer.Stop()
				return
			}
		}

		if !q.deliver(next, stop) {
			return
		}
	}
}

// deliver sends an event to the subscriber it was queued for. Events queued
// for an earlier subscription are dropped.
func (q *eventQueue) deliver(item queued, stop <-chan struct{}) bool {
	for {
		q.mu.Lock()
		out, gen := q.out, q.gen
		q.mu.Unlock()

		if gen != item.gen {
			return true
		}

		select {
		case out <- item.ev:
			return true
		case <-q.resub:
		case <-stop:
			return false
		}
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
