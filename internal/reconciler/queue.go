package reconciler

import (
	"context"
	"sync"
	"time"
)

// requestKey identifies the resource a request is for.
func requestKey(req ReconcileRequest) string {
	return string(req.Type) + "/" + req.Namespace + "/" + req.Name
}

// workQueue implements ReconcileQueue. A resource is queued at most once and
// is never handed to two workers at the same time: requests arriving while
// it is processed are parked and re-queued by Done.
type workQueue struct {
	mu   sync.Mutex
	cond *sync.Cond

	queue      []ReconcileRequest
	queued     map[string]bool
	processing map[string]bool
	dirty      map[string]ReconcileRequest

	shuttingDown bool
}

// NewQueue creates a new reconciliation queue.
func NewQueue() ReconcileQueue {
	q := &workQueue{
		queued:     make(map[string]bool),
		processing: make(map[string]bool),
		dirty:      make(map[string]ReconcileRequest),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *workQueue) Add(req ReconcileRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shuttingDown {
		return
	}

	key := requestKey(req)
	if q.processing[key] {
		q.dirty[key] = req
		return
	}

	if q.queued[key] {
		for i := range q.queue {
			if requestKey(q.queue[i]) == key {
				q.queue[i] = req
				break
			}
		}
		return
	}

	q.queue = append(q.queue, req)
	q.queued[key] = true
	q.cond.Signal()
}

func (q *workQueue) Get(ctx context.Context) (ReconcileRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.queue) == 0 && !q.shuttingDown {
		if ctx.Err() != nil {
			return ReconcileRequest{}, false
		}

		// Wake the waiter when ctx is cancelled; done releases the helper
		// goroutine after a normal wakeup.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				q.mu.Lock()
				q.cond.Broadcast()
				q.mu.Unlock()
			case <-done:
			}
		}()

		q.cond.Wait()
		close(done)

		if ctx.Err() != nil {
			return ReconcileRequest{}, false
		}
	}

	if len(q.queue) == 0 {
		return ReconcileRequest{}, false
	}

	req := q.queue[0]
	q.queue = q.queue[1:]

	key := requestKey(req)
	delete(q.queued, key)
	q.processing[key] = true

	return req, true
}

func (q *workQueue) Done(req ReconcileRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := requestKey(req)
	delete(q.processing, key)

	if parked, ok := q.dirty[key]; ok {
		delete(q.dirty, key)
		if q.shuttingDown {
			return
		}
		q.queue = append(q.queue, parked)
		q.queued[key] = true
		q.cond.Signal()
	}
}

func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

func (q *workQueue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shuttingDown = true
	q.cond.Broadcast()
}

// delayedQueue adds delayed requeues on top of a ReconcileQueue. Each
// resource has at most one pending timer; a new AddAfter replaces it.
type delayedQueue struct {
	queue ReconcileQueue

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewDelayedQueue creates a queue that supports delayed requeuing.
func NewDelayedQueue() *delayedQueue {
	return &delayedQueue{
		queue:  NewQueue(),
		timers: make(map[string]*time.Timer),
	}
}

func (d *delayedQueue) Add(req ReconcileRequest) {
	d.queue.Add(req)
}

// AddAfter adds req once delay has passed.
func (d *delayedQueue) AddAfter(req ReconcileRequest, delay time.Duration) {
	if delay <= 0 {
		d.Add(req)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	key := requestKey(req)
	if timer, ok := d.timers[key]; ok {
		timer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		current := d.timers[key] == timer
		if current {
			delete(d.timers, key)
		}
		stopped := d.stopped
		d.mu.Unlock()

		if current && !stopped {
			d.queue.Add(req)
		}
	})
	d.timers[key] = timer
}

// Pending returns the number of scheduled requeues.
func (d *delayedQueue) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

func (d *delayedQueue) Get(ctx context.Context) (ReconcileRequest, bool) {
	return d.queue.Get(ctx)
}

func (d *delayedQueue) Done(req ReconcileRequest) {
	d.queue.Done(req)
}

func (d *delayedQueue) Len() int {
	return d.queue.Len()
}

// Shutdown stops the queue and cancels pending timers.
func (d *delayedQueue) Shutdown() {
	d.mu.Lock()
	d.stopped = true
	for _, timer := range d.timers {
		timer.Stop()
	}
	d.timers = make(map[string]*time.Timer)
	d.mu.Unlock()

	d.queue.Shutdown()
}
