package channels

import (
	"fmt"
	"sync"

	"github.com/hugodutka/radioterm/internal/event"
)

// Queue is an unbounded multi-producer, single-consumer FIFO. Send never
// blocks; Recv blocks until an item is available. Items from one producer
// are delivered in the order it sent them.
type Queue[T any] struct {
	mu    sync.Mutex
	ready *sync.Cond
	items []T
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.ready = sync.NewCond(&q.mu)
	return q
}

// Send appends item to the queue.
func (q *Queue[T]) Send(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.ready.Signal()
}

// Recv removes and returns the oldest item, blocking while the queue is
// empty.
func (q *Queue[T]) Recv() T {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		q.ready.Wait()
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item
}

// TryRecv removes and returns the oldest item without blocking; ok
// reports whether an item was dequeued.
func (q *Queue[T]) TryRecv() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Bundle carries the four process queues. Workers receive it at
// construction, which keeps ownership explicit and lets tests build
// isolated instances.
type Bundle struct {
	// Model delivers events to the model loop.
	Model *Queue[event.Model]
	// Telnet carries byte blobs destined for the current telnet client.
	Telnet *Queue[[]byte]
	// Proxy carries outgoing messages destined for UDP.
	Proxy *Queue[event.ProxyWrite]
	// Log carries lines destined for the log sink.
	Log *Queue[string]
}

// New creates a bundle with four empty queues.
func New() *Bundle {
	return &Bundle{
		Model:  NewQueue[event.Model](),
		Telnet: NewQueue[[]byte](),
		Proxy:  NewQueue[event.ProxyWrite](),
		Log:    NewQueue[string](),
	}
}

// Logf formats a line onto the log queue.
func (b *Bundle) Logf(format string, args ...any) {
	b.Log.Send(fmt.Sprintf(format, args...))
}
