package identity

import (
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/pagi-labs/operator-console/internal/platform/logger"
)

const (
	userIDKey    = "pagi.user_id"
	sessionIDKey = "pagi.session_id"

	// UserIDOverrideEnv forces a specific operator id on every startup,
	// replacing whatever the KV store holds.
	UserIDOverrideEnv = "CONSOLE_USER_ID"
)

// Store owns the durable (userID, sessionID) pair. There is exactly one
// active pair at a time; NewSession replacing the session id is the only
// sanctioned way to start a new conversation context.
type Store struct {
	mu  sync.Mutex
	kv  KV
	log *logger.Logger

	userID    string
	sessionID string
}

func NewStore(kv KV, logg *logger.Logger) *Store {
	return &Store{kv: kv, log: logg.With("service", "IdentityStore")}
}

// UserID returns the durable operator id, creating and persisting one on
// first use. The env override wins over any stored value and is re-persisted.
func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if override := strings.TrimSpace(os.Getenv(UserIDOverrideEnv)); override != "" {
		if s.userID != override {
			s.userID = override
			s.persist(userIDKey, override)
		}
		return s.userID
	}
	if s.userID != "" {
		return s.userID
	}
	if v, ok := s.kv.Get(userIDKey); ok && v != "" {
		s.userID = v
		return s.userID
	}
	s.userID = uuid.NewString()
	s.persist(userIDKey, s.userID)
	s.log.Info("Created operator identity", "user_id", s.userID)
	return s.userID
}

// SessionID returns the durable session id, creating one if absent.
func (s *Store) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessionID != "" {
		return s.sessionID
	}
	if v, ok := s.kv.Get(sessionIDKey); ok && v != "" {
		s.sessionID = v
		return s.sessionID
	}
	s.sessionID = uuid.NewString()
	s.persist(sessionIDKey, s.sessionID)
	return s.sessionID
}

// NewSession unconditionally replaces the session id and returns the new one.
func (s *Store) NewSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessionID = uuid.NewString()
	s.persist(sessionIDKey, s.sessionID)
	s.log.Info("Started new session", "session_id", s.sessionID)
	return s.sessionID
}

// SetSession adopts an existing session id (operator switching back to an
// earlier conversation) and persists it as the active one.
func (s *Store) SetSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" || id == s.sessionID {
		return
	}
	s.sessionID = id
	s.persist(sessionIDKey, id)
}

// persist degrades to in-memory identity when the KV store misbehaves.
func (s *Store) persist(key, value string) {
	if err := s.kv.Set(key, value); err != nil {
		s.log.Warn("Identity persist failed; value held in memory only", "key", key, "error", err)
	}
}
