package jobs

import (
	"time"

	"github.com/google/uuid"

	"file-uploader/internal/expiring"
)

// DefaultTTL is how long a job stays visible after its last update.
const DefaultTTL = time.Hour

// StoreConfig configures a Store.
type StoreConfig struct {
	TTL time.Duration
	// Clock replaces time.Now for expiry and timestamps.
	Clock func() time.Time
	// DisableSweeper turns off the background eviction goroutine; expired
	// jobs are then only dropped on read or by Sweep.
	DisableSweeper bool
}

// Store is a concurrency-safe, self-evicting job registry.
type Store struct {
	jobs *expiring.Map[string, Job]
	now  func() time.Time
}

// NewStore creates a Store. Call Close to stop its sweeper.
func NewStore(cfg StoreConfig) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	opts := []expiring.Option{expiring.WithClock(cfg.Clock)}
	if cfg.DisableSweeper {
		opts = append(opts, expiring.WithoutSweeper())
	}

	return &Store{
		jobs: expiring.New[string, Job](cfg.TTL, opts...),
		now:  cfg.Clock,
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Register creates a job in the transcoding state.
func (s *Store) Register() Job {
	now := s.now()
	job := Job{
		ID:        newID(),
		Status:    StatusTranscoding,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.jobs.Set(job.ID, job)
	return job
}

// Get returns the job with id, or false once it expired or never existed.
func (s *Store) Get(id string) (Job, bool) {
	return s.jobs.Get(id)
}

// Complete marks the job finished with the resulting filename.
func (s *Store) Complete(id, filename string) (Job, error) {
	return s.finish(id, func(j *Job) {
		j.Status = StatusCompleted
		j.Filename = filename
	})
}

// Fail marks the job failed with a human-readable message.
func (s *Store) Fail(id, message string) (Job, error) {
	return s.finish(id, func(j *Job) {
		j.Status = StatusError
		j.ErrorMessage = message
	})
}

func (s *Store) finish(id string, apply func(*Job)) (Job, error) {
	var (
		result Job
		err    error
	)
	found := s.jobs.Update(id, func(j Job) Job {
		if j.Terminal() {
			err = ErrAlreadyTerminal
			result = j
			return j
		}
		apply(&j)
		j.UpdatedAt = s.now()
		result = j
		return j
	})
	if !found {
		return Job{}, ErrNotFound
	}
	return result, err
}

// Delete drops a job, used when a registered job could not be queued.
func (s *Store) Delete(id string) {
	s.jobs.Delete(id)
}

// Len returns the number of stored jobs, including expired ones not yet swept.
func (s *Store) Len() int {
	return s.jobs.Len()
}

// Sweep evicts expired jobs immediately.
func (s *Store) Sweep() int {
	return s.jobs.Sweep()
}

// Close stops the background sweeper.
func (s *Store) Close() {
	s.jobs.Stop()
}
