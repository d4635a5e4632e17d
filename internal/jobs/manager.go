package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"file-uploader/internal/logging"
	"file-uploader/internal/metrics"
)

// Result is what a task reports on success.
type Result struct {
	Filename string
	// Degraded marks a job that completed without doing its main work, such
	// as a transcode request for a file with no video stream.
	Degraded bool
}

// Task is the unit of work behind a job. Its context is cancelled only when
// the Manager gives up waiting during shutdown.
type Task func(ctx context.Context) (Result, error)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Workers   int
	QueueSize int
}

type queuedTask struct {
	job  Job
	task Task
}

// Manager runs job tasks on a fixed pool of workers.
type Manager struct {
	store   *Store
	queue   chan queuedTask
	workers int

	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	queued  atomic.Int64
	running atomic.Int64
}

// NewManager creates a Manager that records results in store. Workers are
// not started until Start.
func NewManager(store *Store, cfg ManagerConfig) *Manager {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:   store,
		queue:   make(chan queuedTask, cfg.Workers+cfg.QueueSize),
		workers: cfg.Workers,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutines.
func (m *Manager) Start() {
	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}
	logging.Debug("Job manager started with %d workers (queue capacity %d)", m.workers, cap(m.queue))
}

// Submit registers a job in the transcoding state and queues task for it.
// The returned job is already visible through the Store.
func (m *Manager) Submit(task Task) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		metrics.TranscodeJobsTotal.WithLabelValues("rejected").Inc()
		return Job{}, ErrShuttingDown
	}

	job := m.store.Register()
	select {
	case m.queue <- queuedTask{job: job, task: task}:
		m.queued.Add(1)
		return job, nil
	default:
		m.store.Delete(job.ID)
		metrics.TranscodeJobsTotal.WithLabelValues("rejected").Inc()
		return Job{}, ErrQueueFull
	}
}

// Queued returns the number of submitted tasks not yet picked up.
func (m *Manager) Queued() int {
	return int(m.queued.Load())
}

// Running returns the number of tasks currently executing.
func (m *Manager) Running() int {
	return int(m.running.Load())
}

// Shutdown stops accepting tasks and waits for queued and running ones.
// If ctx ends first, remaining tasks see a cancelled context and the call
// returns ctx.Err(); those jobs are lost.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		logging.Warn("Job manager shutdown timed out with %d running and %d queued jobs", m.Running(), m.Queued())
		return ctx.Err()
	}
}

func (m *Manager) worker(id int) {
	defer m.wg.Done()

	for qt := range m.queue {
		m.queued.Add(-1)
		m.run(id, qt)
	}
}

func (m *Manager) run(worker int, qt queuedTask) {
	m.running.Add(1)
	metrics.TranscodeJobsInFlight.Inc()
	start := time.Now()

	defer func() {
		m.running.Add(-1)
		metrics.TranscodeJobsInFlight.Dec()
		metrics.TranscodeDuration.Observe(time.Since(start).Seconds())
	}()

	logging.Debug("Worker %d picked up job %s", worker, qt.job.ID)

	result, err := m.invoke(qt.task)

	var (
		storeErr error
		label    string
	)
	switch {
	case err != nil:
		label = "error"
		_, storeErr = m.store.Fail(qt.job.ID, err.Error())
		logging.Error("Job %s failed: %v", qt.job.ID, err)
	case result.Degraded:
		label = "not_a_video"
		_, storeErr = m.store.Complete(qt.job.ID, result.Filename)
		logging.Info("Job %s completed without transcoding: %s", qt.job.ID, result.Filename)
	default:
		label = "completed"
		_, storeErr = m.store.Complete(qt.job.ID, result.Filename)
		logging.Info("Job %s completed: %s", qt.job.ID, result.Filename)
	}
	metrics.TranscodeJobsTotal.WithLabelValues(label).Inc()

	if storeErr != nil {
		logging.Warn("Job %s result not stored: %v", qt.job.ID, storeErr)
	}
}

// invoke runs task, turning a panic into an error so a misbehaving task
// never takes the worker or the process down.
func (m *Manager) invoke(task Task) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Job task panicked: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return task(m.ctx)
}
