package bot

import (
	"log/slog"
	"sync"
	"time"
)

const cleanupCheckInterval = 1 * time.Minute

// Session is one end user's conversational context. A session is processed
// single-threaded: the transport delivers its messages in order, so only the
// eviction loop ever touches a session concurrently.
type Session struct {
	ID int64

	mu         sync.Mutex
	state      DialogState
	workerCode string // set while authenticated as a worker
	lastActive time.Time
	rate       *rateWindow
}

func (s *Session) State() DialogState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) SetState(state DialogState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// WorkerCode returns the authenticated worker code, if any.
func (s *Session) WorkerCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workerCode
}

func (s *Session) SetWorkerCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workerCode = code
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = now
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActive)
}

// allow runs the sliding-window rate check for this session.
func (s *Session) allow(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate.allow(now)
}

// SessionStore tracks sessions by id. Sessions are created on first contact
// and evicted after an idle timeout so the registry cannot grow without
// bound.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session

	idleTimeout time.Duration
	rateMax     int
	rateWindow  time.Duration
	done        chan struct{}
	closeOnce   sync.Once
}

// NewSessionStore creates a session store and starts its eviction loop.
func NewSessionStore(idleTimeout time.Duration, rateMax int, rateWindow time.Duration) *SessionStore {
	store := &SessionStore{
		sessions:    make(map[int64]*Session),
		idleTimeout: idleTimeout,
		rateMax:     rateMax,
		rateWindow:  rateWindow,
		done:        make(chan struct{}),
	}
	go store.cleanupLoop()
	return store
}

// GetOrCreate returns the session for id, creating it on first contact.
func (st *SessionStore) GetOrCreate(id int64) *Session {
	now := time.Now()

	st.mu.RLock()
	sess, ok := st.sessions[id]
	st.mu.RUnlock()
	if ok {
		sess.touch(now)
		return sess
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if sess, ok = st.sessions[id]; ok {
		sess.touch(now)
		return sess
	}
	sess = &Session{
		ID:         id,
		state:      StateIdle,
		lastActive: now,
		rate:       newRateWindow(st.rateMax, st.rateWindow),
	}
	st.sessions[id] = sess
	return sess
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Close stops the eviction loop.
func (st *SessionStore) Close() {
	st.closeOnce.Do(func() { close(st.done) })
}

func (st *SessionStore) cleanupLoop() {
	ticker := time.NewTicker(cleanupCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-st.done:
			return
		case now := <-ticker.C:
			st.evictIdle(now)
		}
	}
}

func (st *SessionStore) evictIdle(now time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for id, sess := range st.sessions {
		if sess.idleSince(now) > st.idleTimeout {
			delete(st.sessions, id)
			slog.Debug("evicted idle session", "session", id)
		}
	}
}
