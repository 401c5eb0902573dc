package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AdminSession is one live admin login tracked server-side. Admin tokens
// are only honored while their session remains in the registry, which is
// what makes forced logout take effect before token expiry.
type AdminSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// SessionRegistry tracks revocable admin sessions in memory. All methods
// are safe for concurrent use; a background sweeper evicts sessions idle
// past the configured timeout.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*AdminSession

	timeout       time.Duration
	sweepInterval time.Duration
	logger        *zap.Logger

	now func() time.Time
}

// NewSessionRegistry constructs a registry. Call Start to run the sweeper.
func NewSessionRegistry(timeout, sweepInterval time.Duration, logger *zap.Logger) *SessionRegistry {
	if timeout <= 0 {
		timeout = 4 * time.Hour
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRegistry{
		sessions:      make(map[string]*AdminSession),
		timeout:       timeout,
		sweepInterval: sweepInterval,
		logger:        logger,
		now:           time.Now,
	}
}

// Start runs the idle-session sweeper until the context is cancelled.
func (r *SessionRegistry) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweep()
			}
		}
	}()
}

// Create registers a new session for the given admin and returns it.
func (r *SessionRegistry) Create(userID string) *AdminSession {
	now := r.now().UTC()
	session := &AdminSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		LastSeen:  now,
	}
	r.mu.Lock()
	r.sessions[session.ID] = session
	r.mu.Unlock()
	return session
}

// Validate reports whether the session is still live, belongs to the given
// user, and, if so, refreshes its idle clock. A token presenting another
// user's session id is rejected the same way as a revoked one. An expired
// session is removed on the spot rather than waiting for the sweeper.
func (r *SessionRegistry) Validate(sessionID, userID string) bool {
	now := r.now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	if session.UserID != userID {
		return false
	}
	if now.Sub(session.LastSeen) > r.timeout {
		delete(r.sessions, sessionID)
		return false
	}
	session.LastSeen = now
	return true
}

// Revoke removes a single session. Returns false if it was not present.
func (r *SessionRegistry) Revoke(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return false
	}
	delete(r.sessions, sessionID)
	return true
}

// RevokeUser removes every session belonging to the user and returns how
// many were dropped. This is the forced-logout path.
func (r *SessionRegistry) RevokeUser(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := 0
	for id, session := range r.sessions {
		if session.UserID == userID {
			delete(r.sessions, id)
			dropped++
		}
	}
	return dropped
}

// Active returns a snapshot of live sessions for the admin dashboard.
func (r *SessionRegistry) Active() []AdminSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AdminSession, 0, len(r.sessions))
	for _, session := range r.sessions {
		out = append(out, *session)
	}
	return out
}

func (r *SessionRegistry) sweep() {
	now := r.now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, session := range r.sessions {
		if now.Sub(session.LastSeen) > r.timeout {
			delete(r.sessions, id)
			r.logger.Info("expired idle admin session",
				zap.String("session_id", id),
				zap.String("user_id", session.UserID))
		}
	}
}
