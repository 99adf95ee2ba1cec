package auth

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/Cryptoprojectsfun/advisorhub/internal/errors"
	"github.com/Cryptoprojectsfun/advisorhub/internal/models"
)

type SessionState int

const (
	StateLoggedOut SessionState = iota
	StateAuthenticating
	StateLoggedIn
)

func (s SessionState) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateLoggedIn:
		return "logged_in"
	default:
		return "logged_out"
	}
}

// Session is one caller's authentication state. User is a snapshot of
// the actor without its password hash.
type Session struct {
	ID        string
	State     SessionState
	User      models.User
	StartedAt time.Time
	UpdatedAt time.Time

	// relogin marks an attempt running on a session that stays logged in
	// until the attempt completes.
	relogin bool
}

// SessionStore holds the state machine of every session:
// LoggedOut -> Authenticating -> LoggedIn -> LoggedOut. A failed attempt
// goes back to LoggedOut. Sessions never share state.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

type SessionOption func(*SessionStore)

// WithSessionTTL expires sessions that have not logged in or refreshed
// for ttl. Zero keeps sessions until logout.
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(s *SessionStore) { s.ttl = ttl }
}

func NewSessionStore(opts ...SessionOption) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin starts an attempt on the session. A session that is already
// authenticating rejects the second attempt. A logged-in session keeps
// serving its user while the attempt runs.
func (s *SessionStore) Begin(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.live(id, now)
	if ok && (sess.State == StateAuthenticating || sess.relogin) {
		return apperrors.NewAuthInProgressError()
	}
	if ok && sess.State == StateLoggedIn {
		sess.relogin = true
		return nil
	}
	if !ok {
		sess = &Session{ID: id, StartedAt: now}
		s.sessions[id] = sess
	}
	sess.State = StateAuthenticating
	sess.User = models.User{}
	sess.UpdatedAt = now
	return nil
}

// Complete logs the session in as user. A session logged in as someone
// else is refused and left as it was.
func (s *SessionStore) Complete(id string, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.live(id, now)
	if !ok {
		sess = &Session{ID: id, StartedAt: now}
		s.sessions[id] = sess
	}
	if sess.State == StateLoggedIn && sess.User.ID != user.ID {
		sess.relogin = false
		return apperrors.NewSessionInUseError()
	}
	sess.State = StateLoggedIn
	sess.User = user.Public()
	sess.UpdatedAt = now
	sess.relogin = false
	return nil
}

// Fail ends an attempt. An authenticating session returns to LoggedOut;
// a logged-in one stays logged in as before.
func (s *SessionStore) Fail(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	if sess.relogin {
		sess.relogin = false
		return
	}
	delete(s.sessions, id)
}

// End logs the session out. Unknown ids are ignored.
func (s *SessionStore) End(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Touch extends a logged-in session's lifetime.
func (s *SessionStore) Touch(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.live(id, now)
	if !ok || sess.State != StateLoggedIn {
		return false
	}
	sess.UpdatedAt = now
	return true
}

// live returns the session unless it has expired, dropping expired ones.
// Callers hold s.mu.
func (s *SessionStore) live(id string, now time.Time) (*Session, bool) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if s.expired(sess, now) {
		delete(s.sessions, id)
		return nil, false
	}
	return sess, true
}

func (s *SessionStore) expired(sess *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.UpdatedAt) > s.ttl
}

// Cleanup evicts expired sessions every interval until ctx is done.
func (s *SessionStore) Cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep drops every expired session and reports how many it removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *SessionStore) State(id string) SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.live(id, s.now()); ok {
		return sess.State
	}
	return StateLoggedOut
}

// Current returns the actor of a logged-in session.
func (s *SessionStore) Current(id string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.live(id, s.now())
	if !ok || sess.State != StateLoggedIn {
		return models.User{}, false
	}
	return sess.User, true
}

// RefreshUser replaces the snapshot in every session logged in as user.
func (s *SessionStore) RefreshUser(user models.User) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, sess := range s.sessions {
		if sess.State == StateLoggedIn && sess.User.ID == user.ID && !s.expired(sess, now) {
			sess.User = user.Public()
			sess.UpdatedAt = now
			n++
		}
	}
	return n
}

// Active counts logged-in sessions.
func (s *SessionStore) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, sess := range s.sessions {
		if sess.State == StateLoggedIn && !s.expired(sess, now) {
			n++
		}
	}
	return n
}
