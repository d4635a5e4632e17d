package jobs

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
	s := NewStore(StoreConfig{TTL: ttl, Clock: clock.Now, DisableSweeper: true})
	t.Cleanup(s.Close)
	return s, clock
}

func TestRegisterStartsTranscoding(t *testing.T) {
	s, clock := newTestStore(t, time.Hour)

	job := s.Register()
	if job.ID == "" {
		t.Fatal("Register() returned an empty ID")
	}
	if job.Status != StatusTranscoding {
		t.Errorf("Status = %q, want transcoding", job.Status)
	}
	if !job.CreatedAt.Equal(clock.Now()) {
		t.Errorf("CreatedAt = %v, want %v", job.CreatedAt, clock.Now())
	}

	got, ok := s.Get(job.ID)
	if !ok || got != job {
		t.Errorf("Get() = (%+v, %v), want (%+v, true)", got, ok, job)
	}

	if other := s.Register(); other.ID == job.ID {
		t.Error("Register() reused an ID")
	}
}

func TestCompleteIsTerminal(t *testing.T) {
	s, clock := newTestStore(t, time.Hour)
	job := s.Register()

	clock.Advance(time.Minute)
	done, err := s.Complete(job.ID, "clip_nice.mp4")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if done.Status != StatusCompleted || done.Filename != "clip_nice.mp4" {
		t.Errorf("Complete() = %+v", done)
	}
	if !done.UpdatedAt.After(done.CreatedAt) {
		t.Error("UpdatedAt not advanced")
	}

	if _, err := s.Fail(job.ID, "late failure"); !errors.Is(err, ErrAlreadyTerminal) {
		t.Errorf("second terminal write error = %v, want ErrAlreadyTerminal", err)
	}

	got, _ := s.Get(job.ID)
	if got.Status != StatusCompleted || got.ErrorMessage != "" {
		t.Errorf("terminal state was overwritten: %+v", got)
	}
}

func TestFail(t *testing.T) {
	s, _ := newTestStore(t, time.Hour)
	job := s.Register()

	failed, err := s.Fail(job.ID, "ffmpeg exited with code 1")
	if err != nil {
		t.Fatalf("Fail() error = %v", err)
	}
	if failed.Status != StatusError || failed.ErrorMessage != "ffmpeg exited with code 1" {
		t.Errorf("Fail() = %+v", failed)
	}
	if failed.Filename != "" {
		t.Errorf("failed job has filename %q", failed.Filename)
	}
}

func TestUnknownJob(t *testing.T) {
	s, _ := newTestStore(t, time.Hour)

	if _, ok := s.Get("nope"); ok {
		t.Error("Get(unknown) reported present")
	}
	if _, err := s.Complete("nope", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Complete(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestJobExpiresAfterTTL(t *testing.T) {
	s, clock := newTestStore(t, time.Hour)
	job := s.Register()

	clock.Advance(30 * time.Minute)
	if _, err := s.Complete(job.ID, "a.mp4"); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	// The terminal write resets the TTL.
	clock.Advance(45 * time.Minute)
	if _, ok := s.Get(job.ID); !ok {
		t.Fatal("job expired before TTL from last write")
	}

	clock.Advance(15 * time.Minute)
	if _, ok := s.Get(job.ID); ok {
		t.Fatal("job still visible after TTL")
	}
}

func TestSweepEvictsUnpolledJobs(t *testing.T) {
	s, clock := newTestStore(t, time.Minute)
	for i := 0; i < 5; i++ {
		s.Register()
	}
	clock.Advance(2 * time.Minute)
	live := s.Register()

	if removed := s.Sweep(); removed != 5 {
		t.Errorf("Sweep() removed %d, want 5", removed)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
	if _, ok := s.Get(live.ID); !ok {
		t.Error("live job evicted")
	}
}

func TestJobJSON(t *testing.T) {
	job := Job{ID: "abc", Status: StatusError, ErrorMessage: "boom"}

	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["status"] != "error" || decoded["errorMessage"] != "boom" {
		t.Errorf("unexpected JSON: %s", data)
	}
	if _, ok := decoded["filename"]; ok {
		t.Errorf("empty filename should be omitted: %s", data)
	}
}
