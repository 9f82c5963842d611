package queue

import (
	"sync"

	"github.com/clipgram/clipgram/internal/model"
)

// Queue is an unbounded multi-consumer FIFO of download jobs, decoupling chat
// handling from pipeline execution. The order of dequeues is a linearization of
// the enqueue order: no job is duplicated or dropped while the queue is open.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	jobs   []model.Job
	closed bool
}

// New creates an empty open queue.
func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends a job. It never blocks and never fails; jobs enqueued after
// Close are silently dropped, matching the no-durability shutdown policy.
func (q *Queue) Enqueue(job model.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.jobs = append(q.jobs, job)
	q.cond.Signal()
}

// Dequeue removes and returns the oldest job, blocking until one is available.
// It returns ok=false once the queue has been closed.
func (q *Queue) Dequeue() (model.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.jobs) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return model.Job{}, false
	}

	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, true
}

// Len returns the number of pending jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close wakes all blocked consumers and makes further dequeues fail. Pending
// jobs are dropped: queued work does not survive shutdown.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
