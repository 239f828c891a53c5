// Package worker implements the pipeline's worker pool: a fixed set of
// goroutines pulling tasks from a shared queue, with cooperative pause and
// dynamic auto-scaling.
package worker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// State is a worker's lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateWorking  State = "working"
	StatePaused   State = "paused"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
	StateError    State = "error"
)

// Task is a unit of work submitted to a Pool.
type Task func() error

// Stats is a snapshot of a single worker's counters.
type Stats struct {
	WorkerID        int
	State           State
	TasksCompleted  int64
	TasksFailed     int64
	TotalWorkTime   time.Duration
	AverageTaskTime time.Duration
	LastActivity    time.Time
	Errors          int64
}

// worker is a single goroutine pulling tasks off a shared channel.
type worker struct {
	id           int
	tasks        <-chan Task
	errorHandler func(workerID int, err error)

	stateMu sync.RWMutex
	state   State

	tasksCompleted int64
	tasksFailed    int64
	errorCount     int64
	totalWorkTime  int64 // nanoseconds, atomic

	lastActivityMu sync.RWMutex
	lastActivity   time.Time

	pauseCh chan struct{} // closed while NOT paused; replaced on pause/resume
	pauseMu sync.Mutex

	stop chan struct{}
	done chan struct{}
}

func newWorker(id int, tasks <-chan Task, errorHandler func(int, error)) *worker {
	w := &worker{
		id:           id,
		tasks:        tasks,
		errorHandler: errorHandler,
		state:        StateIdle,
		pauseCh:      make(chan struct{}),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	close(w.pauseCh) // not paused initially
	return w
}

func (w *worker) setState(s State) {
	w.stateMu.Lock()
	w.state = s
	w.stateMu.Unlock()
}

func (w *worker) getState() State {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return w.state
}

func (w *worker) start() {
	go w.loop()
}

func (w *worker) loop() {
	defer close(w.done)
	for {
		w.pauseMu.Lock()
		gate := w.pauseCh
		w.pauseMu.Unlock()

		select {
		case <-w.stop:
			w.setState(StateStopped)
			return
		case <-gate:
		}

		select {
		case <-w.stop:
			w.setState(StateStopped)
			return
		case task, ok := <-w.tasks:
			if !ok {
				w.setState(StateStopped)
				return
			}
			w.runTask(task)
		case <-time.After(100 * time.Millisecond):
			w.setState(StateIdle)
		}
	}
}

func (w *worker) runTask(task Task) {
	w.setState(StateWorking)
	w.lastActivityMu.Lock()
	w.lastActivity = time.Now()
	w.lastActivityMu.Unlock()

	start := time.Now()
	err := task()
	elapsed := time.Since(start)

	if err != nil {
		atomic.AddInt64(&w.tasksFailed, 1)
		atomic.AddInt64(&w.errorCount, 1)
		log.Error().Str("event", "[WORKER_TASK_ERROR]").Int("worker_id", w.id).Err(err).Msg("worker task failed")
		if w.errorHandler != nil {
			w.errorHandler(w.id, err)
		}
		w.setState(StateError)
		time.Sleep(100 * time.Millisecond)
		w.setState(StateIdle)
		return
	}

	atomic.AddInt64(&w.tasksCompleted, 1)
	atomic.AddInt64(&w.totalWorkTime, int64(elapsed))
	w.setState(StateIdle)
}

func (w *worker) pause() {
	w.pauseMu.Lock()
	defer w.pauseMu.Unlock()
	select {
	case <-w.pauseCh:
		// currently open (not paused); install a fresh, unclosed gate to block on
		w.pauseCh = make(chan struct{})
	default:
		// already paused
	}
	w.setState(StatePaused)
}

func (w *worker) resume() {
	w.pauseMu.Lock()
	defer w.pauseMu.Unlock()
	select {
	case <-w.pauseCh:
		// already open
	default:
		close(w.pauseCh)
	}
	if w.getState() == StatePaused {
		w.setState(StateIdle)
	}
}

func (w *worker) requestStop() {
	w.setState(StateStopping)
	close(w.stop)
	w.resume() // unblock if paused so the loop can observe stop
}

func (w *worker) waitStopped(timeout time.Duration) bool {
	select {
	case <-w.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (w *worker) stats() Stats {
	completed := atomic.LoadInt64(&w.tasksCompleted)
	total := time.Duration(atomic.LoadInt64(&w.totalWorkTime))
	var avg time.Duration
	if completed > 0 {
		avg = total / time.Duration(completed)
	}
	w.lastActivityMu.RLock()
	lastActivity := w.lastActivity
	w.lastActivityMu.RUnlock()

	return Stats{
		WorkerID:        w.id,
		State:           w.getState(),
		TasksCompleted:  completed,
		TasksFailed:     atomic.LoadInt64(&w.tasksFailed),
		TotalWorkTime:   total,
		AverageTaskTime: avg,
		LastActivity:    lastActivity,
		Errors:          atomic.LoadInt64(&w.errorCount),
	}
}
