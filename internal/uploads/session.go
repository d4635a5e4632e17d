package uploads

import (
	"sync"
	"time"

	"file-uploader/internal/expiring"
)

type sessionState int

const (
	stateAssembling sessionState = iota
	stateBusy
	stateTranscoding
)

func (s sessionState) String() string {
	switch s {
	case stateAssembling:
		return "assembling"
	case stateBusy:
		return "busy"
	case stateTranscoding:
		return "transcoding"
	default:
		return "unknown"
	}
}

// session tracks one target path across requests.
type session struct {
	state     sessionState
	bytes     int64
	chunks    int
	mimeType  string
	startedAt time.Time
}

// sessionRegistry hands out exclusive access to target paths.
//
// A path is held while a request works on it and, after a transcode is
// queued, until that job settles. Held paths never expire. Between chunks a
// path is idle; idle entries that see no request for the TTL are dropped
// and the file on disk stays.
type sessionRegistry struct {
	mu   sync.Mutex
	held map[string]session
	idle *expiring.Map[string, session]
	now  func() time.Time
}

func newSessionRegistry(ttl time.Duration, now func() time.Time, opts ...expiring.Option) *sessionRegistry {
	opts = append([]expiring.Option{expiring.WithClock(now)}, opts...)
	return &sessionRegistry{
		held: make(map[string]session),
		idle: expiring.New[string, session](ttl, opts...),
		now:  now,
	}
}

// acquire holds path and returns its current session, creating one if
// needed. A held path yields ErrSessionBusy.
func (r *sessionRegistry) acquire(path string) (session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.held[path]; ok {
		return session{}, ErrSessionBusy
	}
	s, ok := r.idle.Get(path)
	if ok {
		r.idle.Delete(path)
	} else {
		s = session{startedAt: r.now()}
	}
	s.state = stateBusy
	r.held[path] = s
	return s, nil
}

// handOff marks a held path as owned by a background transcode. The job
// must call release when it settles.
func (r *sessionRegistry) handOff(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.held[path]; ok {
		s.state = stateTranscoding
		r.held[path] = s
	}
}

// release lets go of path. Unless finished, s is kept as an idle session
// for the next chunk.
func (r *sessionRegistry) release(path string, s session, finished bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.held, path)
	if finished {
		r.idle.Delete(path)
		return
	}
	s.state = stateAssembling
	r.idle.Set(path, s)
}

// state reports how path is tracked.
func (r *sessionRegistry) state(path string) (sessionState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.held[path]; ok {
		return s.state, true
	}
	if s, ok := r.idle.Get(path); ok {
		return s.state, true
	}
	return 0, false
}

func (r *sessionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.held) + r.idle.Len()
}

func (r *sessionRegistry) stop() {
	r.idle.Stop()
}
