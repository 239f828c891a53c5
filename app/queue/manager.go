package queue

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// managedQueue is the subset of Queue[T]'s methods that don't depend on the
// element type T, letting Manager track queues of different item types in
// one registry.
type managedQueue interface {
	Name() string
	GetStats() Stats
	IsFull() bool
	Clear()
}

// Manager tracks every named queue in the pipeline and applies global
// backpressure policy across them.
type Manager struct {
	mu                    sync.RWMutex
	queues                map[string]managedQueue
	backpressureEnabled   bool
	backpressureThreshold float64
	backpressureCallbacks []func(queueName string)
}

// NewManager constructs a Manager with backpressure enabled at an 80%
// utilization threshold, matching the original pipeline's defaults.
func NewManager() *Manager {
	return &Manager{
		queues:                make(map[string]managedQueue),
		backpressureEnabled:   true,
		backpressureThreshold: 0.8,
	}
}

// Register adds q to the manager and wires its full/empty callbacks to
// drive backpressure notification.
func Register[T any](m *Manager, q *Queue[T]) *Queue[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.queues[q.Name()]; exists {
		log.Warn().Str("event", "[QUEUE_ALREADY_EXISTS]").Str("queue", q.Name()).Msg("queue already registered")
		return q
	}
	q.OnFull(func(name string, size int) {
		m.onQueueFull(name, size)
	})
	m.queues[q.Name()] = q
	log.Info().Str("event", "[QUEUE_CREATED]").Str("queue", q.Name()).Int("max_size", q.maxSize).
		Str("drop_policy", string(q.dropPolicy)).Msg("created managed queue")
	return q
}

func (m *Manager) onQueueFull(name string, size int) {
	log.Warn().Str("event", "[QUEUE_FULL]").Str("queue", name).Int("size", size).Msg("queue is full")

	m.mu.RLock()
	q, ok := m.queues[name]
	enabled := m.backpressureEnabled
	threshold := m.backpressureThreshold
	m.mu.RUnlock()
	if !ok || !enabled {
		return
	}
	stats := q.GetStats()
	if stats.MaxSize == 0 {
		return
	}
	utilization := float64(size) / float64(stats.MaxSize)
	if utilization >= threshold {
		m.applyBackpressure(name)
	}
}

func (m *Manager) applyBackpressure(queueName string) {
	log.Info().Str("event", "[BACKPRESSURE_APPLIED]").Str("queue", queueName).Msg("applying backpressure")
	m.mu.RLock()
	callbacks := append([]func(string){}, m.backpressureCallbacks...)
	m.mu.RUnlock()
	for _, cb := range callbacks {
		cb(queueName)
	}
}

// RegisterBackpressureCallback registers a callback invoked whenever a
// queue's utilization crosses the backpressure threshold.
func (m *Manager) RegisterBackpressureCallback(fn func(queueName string)) {
	m.mu.Lock()
	m.backpressureCallbacks = append(m.backpressureCallbacks, fn)
	m.mu.Unlock()
}

// AllStats returns a snapshot of every registered queue's statistics.
func (m *Manager) AllStats() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Stats, len(m.queues))
	for name, q := range m.queues {
		out[name] = q.GetStats()
	}
	return out
}

// HealthIssue describes a single queue-level health concern.
type HealthIssue struct {
	Queue string
	Issue string
}

// Health is the manager's aggregate view of queue health.
type Health struct {
	Healthy     bool
	Issues      []HealthIssue
	TotalQueues int
	TotalItems  int
}

// CheckHealth flags queues over 90% utilization or with a >10% drop rate.
func (m *Manager) CheckHealth() Health {
	stats := m.AllStats()
	var issues []HealthIssue
	totalItems := 0
	for name, s := range stats {
		totalItems += s.Size
		if s.UtilizationPercent > 90 {
			issues = append(issues, HealthIssue{Queue: name, Issue: "high utilization"})
		}
		if s.TotalAdded > 0 {
			dropRate := float64(s.TotalDropped) / float64(s.TotalAdded) * 100
			if dropRate > 10 {
				issues = append(issues, HealthIssue{Queue: name, Issue: "high drop rate"})
			}
		}
	}
	return Health{
		Healthy:     len(issues) == 0,
		Issues:      issues,
		TotalQueues: len(stats),
		TotalItems:  totalItems,
	}
}

// ClearAll clears every registered queue.
func (m *Manager) ClearAll() {
	m.mu.RLock()
	queues := make([]managedQueue, 0, len(m.queues))
	for _, q := range m.queues {
		queues = append(queues, q)
	}
	m.mu.RUnlock()
	for _, q := range queues {
		q.Clear()
	}
	log.Info().Str("event", "[ALL_QUEUES_CLEARED]").Msg("cleared all queues")
}
