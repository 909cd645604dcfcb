package hci

import "sync"

// TaskRunner is a single-goroutine serial executor. Every component in the
// stack delivers its callbacks by posting to the TaskRunner the caller
// supplied, and the Transport schedules all channel writes on its own
// dedicated runner, so no callback ever runs from inside a channel read.
type TaskRunner struct {
	mu      sync.Mutex
	tasks   []func()
	wake    chan struct{}
	quit    chan struct{}
	stopped bool

	wg sync.WaitGroup
}

// NewTaskRunner starts the runner goroutine.
func NewTaskRunner() *TaskRunner {
	r := &TaskRunner{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

// Post enqueues f for execution. It never blocks; tasks run strictly in
// the order they were posted. Posting after Stop is a silent no-op.
func (r *TaskRunner) Post(f func()) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.tasks = append(r.tasks, f)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Stop stops accepting work and joins the runner goroutine. Tasks still
// queued at that point are dropped. Safe to call more than once.
func (r *TaskRunner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		r.wg.Wait()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.quit)
	r.wg.Wait()
}

func (r *TaskRunner) loop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.quit:
			return
		case <-r.wake:
		}

		for {
			r.mu.Lock()
			if len(r.tasks) == 0 {
				r.mu.Unlock()
				break
			}
			f := r.tasks[0]
			r.tasks = r.tasks[1:]
			r.mu.Unlock()

			select {
			case <-r.quit:
				return
			default:
			}

			f()
		}
	}
}
