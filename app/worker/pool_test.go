package worker

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolProcessesSubmittedTasks(t *testing.T) {
	cfg := DefaultPoolConfig("test")
	cfg.InitialWorkers = 2
	cfg.AutoScaleEnabled = false
	p := NewPool(cfg)
	defer p.Stop(time.Second)

	var completed int64
	for i := 0; i < 20; i++ {
		ok := p.Submit(func() error {
			atomic.AddInt64(&completed, 1)
			return nil
		})
		if !ok {
			t.Fatal("expected submit to succeed")
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt64(&completed) < 20 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := atomic.LoadInt64(&completed); got != 20 {
		t.Fatalf("expected 20 tasks completed, got %d", got)
	}
}

func TestPoolPauseResumeStopsProcessing(t *testing.T) {
	cfg := DefaultPoolConfig("pause-test")
	cfg.InitialWorkers = 1
	cfg.AutoScaleEnabled = false
	p := NewPool(cfg)
	defer p.Stop(time.Second)

	p.Pause()

	var ran int32
	p.Submit(func() error {
		atomic.StoreInt32(&ran, 1)
		return nil
	})

	time.Sleep(150 * time.Millisecond)
	if atomic.LoadInt32(&ran) != 0 {
		t.Fatal("expected task not to run while paused")
	}

	p.Resume()
	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&ran) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if atomic.LoadInt32(&ran) == 0 {
		t.Fatal("expected task to run after resume")
	}
}

func TestPoolScaleUpRespectsCooldown(t *testing.T) {
	cfg := DefaultPoolConfig("scale-test")
	cfg.MinWorkers = 1
	cfg.MaxWorkers = 4
	cfg.InitialWorkers = 1
	cfg.TaskQueueSize = 2
	cfg.ScaleUpThreshold = 0.5
	cfg.ScaleCooldown = time.Hour // effectively disables a second scale event
	p := NewPool(cfg)
	defer p.Stop(time.Second)

	block := make(chan struct{})
	p.Submit(func() error { <-block; return nil })
	p.Submit(func() error { <-block; return nil })

	deadline := time.Now().Add(time.Second)
	for p.GetStats().NumWorkers < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	afterFirst := p.GetStats().NumWorkers
	if afterFirst < 2 {
		close(block)
		t.Fatalf("expected pool to scale up at least once, got %d workers", afterFirst)
	}

	p.Submit(func() error { <-block; return nil })
	time.Sleep(100 * time.Millisecond)
	if p.GetStats().NumWorkers != afterFirst {
		close(block)
		t.Fatalf("expected no further scaling during cooldown, went from %d to %d", afterFirst, p.GetStats().NumWorkers)
	}
	close(block)
}

func TestWorkerStateMachine(t *testing.T) {
	tasks := make(chan Task, 1)
	w := newWorker(1, tasks, nil)
	w.start()
	defer w.requestStop()

	if w.getState() != StateIdle {
		t.Fatalf("expected initial state idle, got %s", w.getState())
	}

	done := make(chan struct{})
	tasks <- func() error {
		close(done)
		return nil
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected task to run")
	}
}
