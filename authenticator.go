package account

import (
	"context"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultSessionTTL is used when no session TTL is configured
const DefaultSessionTTL = 14 * 24 * time.Hour

// SessionMeta describes the client opening a session
type SessionMeta struct {
	IP        string
	UserAgent string
}

// SessionAuthenticator logs users in and out of server side sessions
type SessionAuthenticator struct {
	provider   IdentityProvider
	repo       RepositoryManager
	sessionTTL time.Duration
	activity   ActivitySink
	logger     Logger
	now        func() time.Time
}

// NewSessionAuthenticator returns a new SessionAuthenticator
func NewSessionAuthenticator(provider IdentityProvider, repo RepositoryManager, sessionTTL time.Duration) *SessionAuthenticator {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &SessionAuthenticator{
		provider:   provider,
		repo:       repo,
		sessionTTL: sessionTTL,
		activity:   noopActivitySink{},
		logger:     defLogger{},
		now:        time.Now,
	}
}

func (s *SessionAuthenticator) WithLogger(logger Logger) *SessionAuthenticator {
	s.logger = resolveLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *SessionAuthenticator) WithActivitySink(sink ActivitySink) *SessionAuthenticator {
	s.activity = normalizeActivitySink(sink)
	return s
}

// WithClock overrides the clock, used in tests
func (s *SessionAuthenticator) WithClock(now func() time.Time) *SessionAuthenticator {
	if now != nil {
		s.now = now
	}
	return s
}

// SessionTTL returns the lifetime of new sessions
func (s *SessionAuthenticator) SessionTTL() time.Duration {
	return s.sessionTTL
}

// Login verifies credentials and opens a session
func (s *SessionAuthenticator) Login(ctx context.Context, email, password string, meta SessionMeta) (*Session, *User, error) {
	user, err := s.provider.VerifyIdentity(ctx, email, password)
	if err != nil {
		s.logger.Info("login failed", "error", err)
		recordActivity(ctx, s.activity, s.logger, ActivityEvent{
			EventType:  ActivityEventLoginFailure,
			OccurredAt: s.now(),
			Metadata: map[string]any{
				"ip": meta.IP,
			},
		})
		return nil, nil, err
	}

	if err := s.repo.Users().TrackSuccessfulLogin(ctx, user); err != nil {
		s.logger.Error("failed to track successful login", "user_id", user.ID, "error", err)
	}

	session, err := s.repo.Sessions().Create(ctx, &Session{
		UserID:    user.ID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		ExpiresAt: s.now().Add(s.sessionTTL),
	})
	if err != nil {
		return nil, nil, richError(err, "failed to create session")
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType:  ActivityEventLoginSuccess,
		UserID:     user.ID,
		OccurredAt: s.now(),
		Metadata: map[string]any{
			"ip":         meta.IP,
			"session_id": session.ID.String(),
		},
	})

	return session, user, nil
}

// Logout destroys the session. Unknown or empty ids are fine.
func (s *SessionAuthenticator) Logout(ctx context.Context, sessionID string) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil
	}

	if err := s.repo.Sessions().Delete(ctx, id); err != nil {
		return err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType:  ActivityEventLogout,
		OccurredAt: s.now(),
		Metadata: map[string]any{
			"session_id": sessionID,
		},
	})

	return nil
}

// Authenticate resolves a session id into its session and active user
func (s *SessionAuthenticator) Authenticate(ctx context.Context, sessionID string) (*Session, *User, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, nil, ErrUnauthenticated
	}

	session, err := s.repo.Sessions().GetActive(ctx, id, s.now())
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) || goerrors.IsNotFound(err) {
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, richError(err, "failed to retrieve session")
	}

	user, err := s.repo.Users().GetByID(ctx, session.UserID)
	if err != nil {
		if isNotFound(err) {
			if err := s.repo.Sessions().Delete(ctx, id); err != nil {
				s.logger.Warn("failed to drop orphaned session", "session_id", id.String(), "error", err)
			}
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, richError(err, "failed to retrieve session user")
	}

	if !user.IsActive {
		return nil, nil, ErrUnauthenticated
	}

	return session, user, nil
}
