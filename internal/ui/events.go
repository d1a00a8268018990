package ui

import (
	"sync"

	"karolbroda.com/lyreplay/internal/player"
)

// eventQueue carries controller events to the update loop in the order they
// were emitted. push never blocks, so the controller can call it from inside
// Update. Back to back state snapshots collapse into the newest one.
type eventQueue struct {
	mu     sync.Mutex
	events []player.EventData
	ready  chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{ready: make(chan struct{}, 1)}
}

func (q *eventQueue) push(e player.EventData) {
	q.mu.Lock()
	n := len(q.events)
	if n > 0 && e.Type == player.EventStateChanged && q.events[n-1].Type == player.EventStateChanged {
		q.events[n-1] = e
	} else {
		q.events = append(q.events, e)
	}
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// next blocks until an event is queued and returns the oldest one.
func (q *eventQueue) next() player.EventData {
	for {
		q.mu.Lock()
		if len(q.events) > 0 {
			e := q.events[0]
			q.events = q.events[1:]
			q.mu.Unlock()
			return e
		}
		q.mu.Unlock()
		<-q.ready
	}
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
