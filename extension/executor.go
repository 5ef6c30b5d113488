package extension

import (
	"container/list"
	"context"
	"errors"
	"runtime/debug"
	"sync"

	"github.com/smarthome/extgateway/internal/dcontext"
)

// ErrExecutorClosed is returned when a task is submitted to a closed
// executor.
var ErrExecutorClosed = errors.New("extension: executor closed")

// DefaultWorkers is the number of workers used when none is configured.
const DefaultWorkers = 4

// Task is a unit of work run by an Executor.
type Task func(ctx context.Context)

type queuedTask struct {
	ctx  context.Context
	task Task
}

// Executor runs tasks on a fixed number of workers. Submitted tasks are
// queued without bound and started in submission order. Tasks are never
// canceled; they run to completion even after the submitting request ends.
type Executor struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  *list.List
	closed bool
	wg     sync.WaitGroup
}

// NewExecutor starts an executor with the given number of workers. A
// non-positive count selects DefaultWorkers.
func NewExecutor(workers int) *Executor {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	e := &Executor{
		tasks: list.New(),
	}
	e.cond = sync.NewCond(&e.mu)

	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go e.run()
	}

	return e
}

// Submit queues task. The task receives a context that carries the values
// of ctx but is detached from its cancellation.
func (e *Executor) Submit(ctx context.Context, task Task) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrExecutorClosed
	}

	e.tasks.PushBack(queuedTask{
		ctx:  dcontext.DetachedContext(ctx),
		task: task,
	})
	pendingGauge.Inc(1)
	e.cond.Signal()

	return nil
}

// Pending returns the number of queued tasks that have not started.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.tasks.Len()
}

// Close stops accepting tasks, runs the tasks already queued and waits for
// all workers to finish.
func (e *Executor) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrExecutorClosed
	}
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()

	e.wg.Wait()
	return nil
}

func (e *Executor) run() {
	defer e.wg.Done()

	for {
		qt, ok := e.next()
		if !ok {
			return
		}

		pendingGauge.Dec(1)
		e.execute(qt)
	}
}

// next blocks until a task is available. It returns false once the executor
// is closed and the queue is drained.
func (e *Executor) next() (queuedTask, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for e.tasks.Len() < 1 {
		if e.closed {
			return queuedTask{}, false
		}

		e.cond.Wait()
	}

	front := e.tasks.Front()
	e.tasks.Remove(front)

	return front.Value.(queuedTask), true
}

func (e *Executor) execute(qt queuedTask) {
	defer func() {
		if r := recover(); r != nil {
			dcontext.GetLogger(qt.ctx).Errorf("panic in executor task: %v\n%s", r, debug.Stack())
		}
	}()

	qt.task(qt.ctx)
}
