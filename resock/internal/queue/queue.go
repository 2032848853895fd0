// Package queue runs tasks one at a time, in submission order, on a
// dedicated goroutine.
package queue

import "sync"

type Error uint8

const (
	ErrQueueIsStopped Error = 1
)

func (e Error) Error() string {
	switch e {
	case ErrQueueIsStopped:
		return "queue is stopped"
	default:
		return "unknown error"
	}
}

// Queue is an unbounded FIFO of tasks. Push never blocks and never drops a
// task while the queue is running.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []func()
	stopped bool
	done    chan struct{}
}

// New creates a queue and starts its worker.
func New() *Queue {
	q := &Queue{done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.stopped {
			q.cond.Wait()
		}
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		task := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()
		task()
	}
}

// Push appends a task. It returns ErrQueueIsStopped after Close.
func (q *Queue) Push(task func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return ErrQueueIsStopped
	}
	q.tasks = append(q.tasks, task)
	q.cond.Signal()
	return nil
}

// Len reports the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close rejects new tasks. Tasks already queued still run, after which the
// worker exits. Close may be called from inside a task.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	q.stopped = true
	q.cond.Signal()
}

// Done is closed once the worker has exited.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}
