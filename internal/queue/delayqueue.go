// Package queue implements the DelayQueue spec.md §4.1 describes: a bounded
// FIFO of requests plus a time-ordered deferred set whose items graduate
// into the FIFO once their release time passes. Ported from mocy/utils.py's
// DelayQueue (a stdlib Queue plus a PriorityQueue drained by a poller
// thread every 50ms), restructured around a buffered Go channel (the FIFO,
// whose capacity gives the backpressure for free) and a container/heap
// (the release-time heap), the way the teacher's
// internal/frontier/frontier.go pairs a container/list FIFO with a mutex.
package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/cobweb-crawl/cobweb/internal/message"
)

// pollInterval is how often the poller rechecks the heap for items whose
// release time has passed, matching mocy/utils.py's `time.sleep(0.05)`.
const pollInterval = 50 * time.Millisecond

type delayedItem struct {
	release time.Time
	req     *message.Request
}

// delayHeap implements container/heap.Interface ordered by release time.
type delayHeap []*delayedItem

func (h delayHeap) Len() int            { return len(h) }
func (h delayHeap) Less(i, j int) bool  { return h[i].release.Before(h[j].release) }
func (h delayHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *delayHeap) Push(x interface{}) { *h = append(*h, x.(*delayedItem)) }
func (h *delayHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// DelayQueue is a bounded FIFO augmented with a release-time heap. Put
// blocks when the FIFO is full; PutLater never blocks on the FIFO —
// it places the request in the heap for the poller to graduate later.
type DelayQueue struct {
	fifo chan *message.Request

	mu   sync.Mutex
	heap delayHeap

	stop chan struct{}
	once sync.Once
}

// New creates a DelayQueue whose FIFO holds at most capacity items, and
// starts its background poller.
func New(capacity int) *DelayQueue {
	q := &DelayQueue{
		fifo: make(chan *message.Request, capacity),
		stop: make(chan struct{}),
	}
	go q.poll()
	return q
}

// Put enqueues req, blocking if the FIFO is full.
func (q *DelayQueue) Put(req *message.Request) {
	q.fifo <- req
}

// TryPut enqueues req without blocking; returns false if the FIFO is full.
func (q *DelayQueue) TryPut(req *message.Request) bool {
	select {
	case q.fifo <- req:
		return true
	default:
		return false
	}
}

// PutLater places req in the release-time heap, to graduate into the FIFO
// once now+delay has passed. Never blocks on the FIFO.
func (q *DelayQueue) PutLater(req *message.Request, delay time.Duration) {
	q.mu.Lock()
	heap.Push(&q.heap, &delayedItem{release: time.Now().Add(delay), req: req})
	q.mu.Unlock()
}

// Get blocks until a request is available in the FIFO, or ctx is done.
func (q *DelayQueue) Get(ctx context.Context) (*message.Request, bool) {
	select {
	case req := <-q.fifo:
		return req, true
	case <-ctx.Done():
		return nil, false
	}
}

// poll repeatedly checks the heap's earliest release time: if it has
// passed, the item is moved into the FIFO (blocking on backpressure, same
// as mocy's poller); otherwise the poller sleeps pollInterval before
// rechecking.
func (q *DelayQueue) poll() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stop:
			return
		case <-ticker.C:
			q.drainReady()
		}
	}
}

func (q *DelayQueue) drainReady() {
	for {
		q.mu.Lock()
		if len(q.heap) == 0 {
			q.mu.Unlock()
			return
		}
		next := q.heap[0]
		if next.release.After(time.Now()) {
			q.mu.Unlock()
			return
		}
		heap.Pop(&q.heap)
		q.mu.Unlock()

		// May block on FIFO backpressure, same as mocy's `self.put(item[1])`.
		q.fifo <- next.req
	}
}

// Close stops the background poller. The queue is not otherwise closed —
// a Put after Close is a programming error, same as spec.md §4.1's
// "workers are daemonic and terminate with the process"; Close exists so
// the poller goroutine does not outlive its user (Run calls it when the
// crawl returns, and tests call it to tear down).
func (q *DelayQueue) Close() {
	q.once.Do(func() { close(q.stop) })
}
