package internal

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

const (
	userKey     = "user"
	passwordKey = "userPassword"
)

// SessionStore owns the authenticated user. It is built once at the
// application root and handed to whatever needs it.
//
// Credentials are not verified: any non-empty email/password pair logs in, and
// the password is kept as-is beside the session so UpdatePassword can compare
// against it. This mirrors the dashboard's mock auth and is not a security boundary.
type SessionStore struct {
	kv     KVStore
	prefix string

	mu      sync.RWMutex
	current *Session
}

// NewSessionStore creates a store over kv, scoping keys with prefix
func NewSessionStore(kv KVStore, prefix string) *SessionStore {
	return &SessionStore{kv: kv, prefix: prefix}
}

// OpenSessionStore creates a store and loads any persisted session
func OpenSessionStore(ctx context.Context, kv KVStore, prefix string) (*SessionStore, error) {
	s := NewSessionStore(kv, prefix)
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SessionStore) key(name string) string {
	return s.prefix + name
}

// Load re-reads the persisted session. A missing or unreadable record means
// unauthenticated.
func (s *SessionStore) Load(ctx context.Context) error {
	raw, ok, err := s.kv.Get(ctx, s.key(userKey))
	if err != nil {
		return err
	}

	var sess *Session
	if ok {
		var decoded Session
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			LogWarn("Ignoring unreadable stored session: %v", err)
		} else {
			sess = &decoded
		}
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
	return nil
}

// Current returns a copy of the session, or nil when logged out
func (s *SessionStore) Current() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	c := *s.current
	return &c
}

// IsAuthenticated reports whether a session is present
func (s *SessionStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// Login starts a session when both fields are non-empty
func (s *SessionStore) Login(ctx context.Context, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}

	sess := &Session{
		ID:    "1",
		Email: email,
		Name:  displayName(email),
		Role:  "Administrator",
	}
	// The user record is written last: its presence is what marks a session
	if err := s.kv.Set(ctx, s.key(passwordKey), password); err != nil {
		return false, err
	}
	if err := s.save(ctx, sess); err != nil {
		if derr := s.kv.Delete(ctx, s.key(passwordKey)); derr != nil {
			LogWarn("Failed to remove password after failed login: %v", derr)
		}
		return false, err
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
	LogDebug("Logged in as %s", sess.Email)
	return true, nil
}

// Logout clears the session and the stored password
func (s *SessionStore) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if err := s.kv.Delete(ctx, s.key(userKey)); err != nil {
		return err
	}
	return s.kv.Delete(ctx, s.key(passwordKey))
}

// UpdateProfile replaces name, email and role. No-op when logged out.
func (s *SessionStore) UpdateProfile(ctx context.Context, name, email, role string) error {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()
	if cur == nil {
		return nil
	}

	updated := *cur
	updated.Name = name
	updated.Email = email
	updated.Role = role
	if err := s.save(ctx, &updated); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = &updated
	s.mu.Unlock()
	return nil
}

// UpdatePassword stores newPassword when current matches the stored one.
// It returns false, changing nothing, otherwise.
func (s *SessionStore) UpdatePassword(ctx context.Context, current, newPassword string) (bool, error) {
	stored, ok, err := s.kv.Get(ctx, s.key(passwordKey))
	if err != nil {
		return false, err
	}
	if !ok || stored != current {
		return false, nil
	}
	if err := s.kv.Set(ctx, s.key(passwordKey), newPassword); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SessionStore) save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, s.key(userKey), string(data))
}

// displayName is the local part of an email address
func displayName(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}
