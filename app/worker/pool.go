package worker

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// PoolConfig configures a Pool's sizing and auto-scaling behavior.
type PoolConfig struct {
	Name              string
	MinWorkers        int
	MaxWorkers        int
	InitialWorkers    int
	TaskQueueSize     int
	AutoScaleEnabled  bool
	ScaleUpThreshold  float64 // fraction of task queue capacity
	ScaleDownThreshold float64
	// ScaleCooldown is the minimum time that must elapse between
	// consecutive scale events. Unlike the reference implementation this
	// pool is derived from, scaling decisions are rate-limited: without a
	// cooldown a bursty queue can thrash workers up and down every check.
	ScaleCooldown time.Duration
}

// DefaultPoolConfig returns sane pool defaults.
func DefaultPoolConfig(name string) PoolConfig {
	return PoolConfig{
		Name:               name,
		MinWorkers:         2,
		MaxWorkers:         8,
		InitialWorkers:     4,
		TaskQueueSize:      100,
		AutoScaleEnabled:   true,
		ScaleUpThreshold:   0.8,
		ScaleDownThreshold: 0.2,
		ScaleCooldown:      5 * time.Second,
	}
}

// Pool is a named group of workers pulling from a shared task channel, with
// optional dynamic auto-scaling.
type Pool struct {
	cfg    PoolConfig
	tasks  chan Task
	onError func(poolName string, workerID int, err error)

	mu          sync.Mutex
	workers     []*worker
	nextID      int
	lastScaleAt time.Time
}

// NewPool constructs and starts a Pool with cfg.InitialWorkers workers,
// clamped to [MinWorkers, MaxWorkers].
func NewPool(cfg PoolConfig) *Pool {
	if cfg.MinWorkers <= 0 {
		cfg.MinWorkers = 2
	}
	if cfg.MaxWorkers < cfg.MinWorkers {
		cfg.MaxWorkers = cfg.MinWorkers
	}
	if cfg.TaskQueueSize <= 0 {
		cfg.TaskQueueSize = 100
	}
	n := cfg.InitialWorkers
	if n < cfg.MinWorkers {
		n = cfg.MinWorkers
	}
	if n > cfg.MaxWorkers {
		n = cfg.MaxWorkers
	}

	p := &Pool{
		cfg:   cfg,
		tasks: make(chan Task, cfg.TaskQueueSize),
	}
	for i := 0; i < n; i++ {
		p.addWorkerLocked()
	}
	log.Info().Str("event", "[POOL_CREATED]").Str("pool", cfg.Name).Int("workers", n).Msg("created worker pool")
	return p
}

// OnWorkerError registers a callback invoked whenever a worker's task
// returns an error.
func (p *Pool) OnWorkerError(fn func(poolName string, workerID int, err error)) {
	p.mu.Lock()
	p.onError = fn
	p.mu.Unlock()
}

func (p *Pool) addWorkerLocked() *worker {
	id := p.nextID
	p.nextID++
	w := newWorker(id, p.tasks, func(workerID int, err error) {
		p.mu.Lock()
		cb := p.onError
		p.mu.Unlock()
		if cb != nil {
			cb(p.cfg.Name, workerID, err)
		}
	})
	w.start()
	p.workers = append(p.workers, w)
	return w
}

// Submit enqueues task for execution. It returns false without blocking if
// the task queue is full.
func (p *Pool) Submit(task Task) bool {
	select {
	case p.tasks <- task:
		if p.cfg.AutoScaleEnabled {
			p.checkScaling()
		}
		return true
	default:
		log.Warn().Str("event", "[POOL_QUEUE_FULL]").Str("pool", p.cfg.Name).Msg("task queue full, task rejected")
		return false
	}
}

func (p *Pool) checkScaling() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if !p.lastScaleAt.IsZero() && now.Sub(p.lastScaleAt) < p.cfg.ScaleCooldown {
		return
	}

	queueSize := len(p.tasks)
	queueCap := cap(p.tasks)
	var utilization float64
	if queueCap > 0 {
		utilization = float64(queueSize) / float64(queueCap)
	}
	numWorkers := len(p.workers)

	switch {
	case utilization >= p.cfg.ScaleUpThreshold && numWorkers < p.cfg.MaxWorkers:
		p.scaleUpLocked()
		p.lastScaleAt = now
	case utilization <= p.cfg.ScaleDownThreshold && numWorkers > p.cfg.MinWorkers:
		p.scaleDownLocked()
		p.lastScaleAt = now
	}
}

func (p *Pool) scaleUpLocked() {
	before := len(p.workers)
	p.addWorkerLocked()
	log.Info().Str("event", "[POOL_SCALE_UP]").Str("pool", p.cfg.Name).
		Int("from", before).Int("to", len(p.workers)).Msg("scaled up worker pool")
}

func (p *Pool) scaleDownLocked() {
	if len(p.workers) <= p.cfg.MinWorkers {
		return
	}
	last := p.workers[len(p.workers)-1]
	p.workers = p.workers[:len(p.workers)-1]
	before := len(p.workers) + 1
	go func() {
		last.requestStop()
		last.waitStopped(2 * time.Second)
	}()
	log.Info().Str("event", "[POOL_SCALE_DOWN]").Str("pool", p.cfg.Name).
		Int("from", before).Int("to", len(p.workers)).Msg("scaled down worker pool")
}

// Pause pauses every worker in the pool.
func (p *Pool) Pause() {
	p.mu.Lock()
	workers := append([]*worker{}, p.workers...)
	p.mu.Unlock()
	for _, w := range workers {
		w.pause()
	}
	log.Info().Str("event", "[POOL_PAUSED]").Str("pool", p.cfg.Name).Msg("paused worker pool")
}

// Resume resumes every worker in the pool.
func (p *Pool) Resume() {
	p.mu.Lock()
	workers := append([]*worker{}, p.workers...)
	p.mu.Unlock()
	for _, w := range workers {
		w.resume()
	}
	log.Info().Str("event", "[POOL_RESUMED]").Str("pool", p.cfg.Name).Msg("resumed worker pool")
}

// Stop gracefully stops every worker, waiting up to timeout per worker.
func (p *Pool) Stop(timeout time.Duration) {
	p.mu.Lock()
	workers := append([]*worker{}, p.workers...)
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *worker) {
			defer wg.Done()
			w.requestStop()
			if !w.waitStopped(timeout) {
				log.Warn().Str("event", "[WORKER_STOP_TIMEOUT]").Str("pool", p.cfg.Name).
					Int("worker_id", w.id).Msg("worker did not stop gracefully")
			}
		}(w)
	}
	wg.Wait()
	log.Info().Str("event", "[POOL_STOPPED]").Str("pool", p.cfg.Name).Msg("stopped worker pool")
}

// PoolStats is the aggregate statistics for a Pool.
type PoolStats struct {
	PoolName             string
	NumWorkers           int
	TotalTasksCompleted  int64
	TotalTasksFailed     int64
	TotalErrors          int64
	SuccessRatePercent   float64
	TaskQueueSize        int
	Workers              []Stats
}

// GetStats returns the pool's current aggregate statistics.
func (p *Pool) GetStats() PoolStats {
	p.mu.Lock()
	workers := append([]*worker{}, p.workers...)
	p.mu.Unlock()

	workerStats := make([]Stats, 0, len(workers))
	var completed, failed, errs int64
	for _, w := range workers {
		s := w.stats()
		workerStats = append(workerStats, s)
		completed += s.TasksCompleted
		failed += s.TasksFailed
		errs += s.Errors
	}
	denom := completed + failed
	successRate := 100.0
	if denom > 0 {
		successRate = float64(completed) / float64(denom) * 100
	}

	return PoolStats{
		PoolName:            p.cfg.Name,
		NumWorkers:          len(workers),
		TotalTasksCompleted: completed,
		TotalTasksFailed:    failed,
		TotalErrors:         errs,
		SuccessRatePercent:  successRate,
		TaskQueueSize:       len(p.tasks),
		Workers:             workerStats,
	}
}

func (p *Pool) String() string {
	return fmt.Sprintf("Pool(%s, workers=%d)", p.cfg.Name, len(p.workers))
}
