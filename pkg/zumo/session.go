package zumo

import "sync"

// State is the login state of a Client.
type State int

const (
	StateLoggedOut State = iota
	StateLoggingIn
	StateLoggedIn
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged-out"
	case StateLoggingIn:
		return "logging-in"
	case StateLoggedIn:
		return "logged-in"
	default:
		return "unknown"
	}
}

// User is an authenticated Mobile Services user.
type User struct {
	UserID string
}

// Session holds the auth token, the user it belongs to, and the browser
// login in-progress flag. Only the login and logout paths of Client write
// it; every request reads the token.
type Session struct {
	mu        sync.RWMutex
	token     string
	user      *User
	loggingIn bool
}

// AuthToken returns the current session token, or "" when logged out.
func (s *Session) AuthToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// CurrentUser returns the authenticated user, or nil when logged out.
func (s *Session) CurrentUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.user
}

// State reports the login state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case s.loggingIn:
		return StateLoggingIn
	case s.token != "":
		return StateLoggedIn
	default:
		return StateLoggedOut
	}
}

// LoginInProgress reports whether a browser login is outstanding.
func (s *Session) LoginInProgress() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loggingIn
}

func (s *Session) set(token string, user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.user = user
}

func (s *Session) clear() {
	s.set("", nil)
}

// beginLogin sets the in-progress flag, failing if it is already set.
// Check and set happen under one lock.
func (s *Session) beginLogin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loggingIn {
		return ErrLoginInProgress
	}

	s.loggingIn = true

	return nil
}

// endLogin resets the in-progress flag and installs the outcome: the new
// token and user on success, an empty session on failure.
func (s *Session) endLogin(token string, user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loggingIn = false
	s.token = token
	s.user = user
}
