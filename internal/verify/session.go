package verify

import (
	"sync"
	"time"

	"pittbot/internal/invites"
)

// Session is one member's in-flight verification. Candidates holds the
// attributed invites when the snapshot diff was ambiguous; Code is set
// once attribution settles on a single invite.
type Session struct {
	UserID     string
	GuildID    string
	Code       string
	Candidates []invites.Snapshot

	// FirstUse marks that the attributed invite had never been used
	// before this join, meaning the joiner created the invite and is
	// a resident assistant for the community.
	FirstUse bool

	createdAt time.Time
}

// SessionStore tracks in-flight verifications plus admin overrides that
// pin a specific member to a specific invite code ahead of attribution.
// Ambiguous sessions, ones still holding candidates rather than a
// settled code, expire after ambiguityTTL; settled sessions live until
// verification completes or staff resets the member.
type SessionStore struct {
	ambiguityTTL time.Duration

	mu        sync.Mutex
	sessions  map[string]*Session
	overrides map[string]string
}

func NewSessionStore(ambiguityTTL time.Duration) *SessionStore {
	return &SessionStore{
		ambiguityTTL: ambiguityTTL,
		sessions:     make(map[string]*Session),
		overrides:    make(map[string]string),
	}
}

func (s *SessionStore) Put(session *Session) {
	session.createdAt = time.Now()
	s.mu.Lock()
	s.sessions[session.UserID] = session
	s.mu.Unlock()
}

func (s *SessionStore) Get(userID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[userID]
	if !ok {
		return nil, false
	}
	if session.Code == "" && s.ambiguityTTL > 0 && time.Since(session.createdAt) > s.ambiguityTTL {
		delete(s.sessions, userID)
		return nil, false
	}
	return session, true
}

func (s *SessionStore) Delete(userID string) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
}

// SetOverride pins a member to an invite code. The next attribution for
// that member uses the pinned code instead of the snapshot diff.
func (s *SessionStore) SetOverride(userID, code string) {
	s.mu.Lock()
	s.overrides[userID] = code
	s.mu.Unlock()
}

// TakeOverride returns and clears the pinned code for a member.
func (s *SessionStore) TakeOverride(userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.overrides[userID]
	if ok {
		delete(s.overrides, userID)
	}
	return code, ok
}
