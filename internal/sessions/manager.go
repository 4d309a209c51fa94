package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// tokenByteLength yields 256 bits of entropy per token.
	tokenByteLength = 32
	// tokenIssueAttempts bounds regeneration when a token collides.
	tokenIssueAttempts = 3

	defaultInactivityWindow = 7 * 24 * time.Hour
	defaultPurgeWindow      = 30 * 24 * time.Hour
)

var (
	// ErrNotFound indicates the token matched no session row.
	ErrNotFound = errors.New("sessions: token not found")
	// ErrExpired indicates the session's inactivity window has elapsed.
	// The row is left in place; deletion is the purge sweep's job.
	ErrExpired = errors.New("sessions: session expired")

	errMissingDatabase = errors.New("sessions: database connection required")
	errTokenExhausted  = errors.New("sessions: token generation exhausted retries")
)

// ManagerConfig describes the dependencies and policy knobs of the session manager.
type ManagerConfig struct {
	Database         *gorm.DB
	Clock            func() time.Time
	InactivityWindow time.Duration
	PurgeWindow      time.Duration
	TokenSource      func() (string, error)
	Logger           *zap.Logger
}

// Manager issues, validates, revokes, and sweeps bearer tokens.
type Manager struct {
	db               *gorm.DB
	now              func() time.Time
	inactivityWindow time.Duration
	purgeWindow      time.Duration
	newToken         func() (string, error)
	logger           *zap.Logger
}

// NewManager constructs a Manager with sane policy defaults.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	inactivity := cfg.InactivityWindow
	if inactivity <= 0 {
		inactivity = defaultInactivityWindow
	}
	purge := cfg.PurgeWindow
	if purge <= 0 {
		purge = defaultPurgeWindow
	}
	tokenSource := cfg.TokenSource
	if tokenSource == nil {
		tokenSource = randomToken
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		db:               cfg.Database,
		now:              clock,
		inactivityWindow: inactivity,
		purgeWindow:      purge,
		newToken:         tokenSource,
		logger:           logger,
	}, nil
}

// InactivityWindow returns the configured inactivity expiry window.
func (m *Manager) InactivityWindow() time.Duration {
	return m.inactivityWindow
}

// Issue creates a fresh session for the user and returns its token. A token
// that collides with an existing row is regenerated; logins never invalidate
// the user's other sessions.
func (m *Manager) Issue(ctx context.Context, userID uint) (string, error) {
	for attempt := 0; attempt < tokenIssueAttempts; attempt++ {
		token, err := m.newToken()
		if err != nil {
			return "", err
		}
		issuedAt := m.now().UTC()
		session := Session{
			UserID:     userID,
			Token:      token,
			LastUsedAt: &issuedAt,
		}
		err = m.db.WithContext(ctx).Create(&session).Error
		if err == nil {
			return token, nil
		}
		if !isUniqueViolation(err) {
			return "", err
		}
		m.logger.Warn("session token collision, regenerating", zap.Uint("user_id", userID))
	}
	return "", errTokenExhausted
}

// Validate resolves a token to its session, refreshing last_used_at on
// success. Expired sessions are reported but not deleted.
func (m *Manager) Validate(ctx context.Context, token string) (Session, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Session{}, ErrNotFound
	}

	var session Session
	err := m.db.WithContext(ctx).Where("token = ?", trimmed).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}

	now := m.now().UTC()
	if session.ExpiredAt(now, m.inactivityWindow) {
		return Session{}, ErrExpired
	}

	if err := m.db.WithContext(ctx).
		Model(&Session{}).
		Where("id = ?", session.ID).
		Update("last_used_at", now).Error; err != nil {
		return Session{}, err
	}
	session.LastUsedAt = &now
	return session, nil
}

// Revoke deletes the session holding the token. Revoking an unknown token is
// a no-op.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil
	}
	return m.db.WithContext(ctx).Where("token = ?", trimmed).Delete(&Session{}).Error
}

// PurgeStale bulk-deletes the user's sessions created before the purge
// window. Run opportunistically at login rather than on a schedule.
func (m *Manager) PurgeStale(ctx context.Context, userID uint) (int64, error) {
	cutoff := m.now().UTC().Add(-m.purgeWindow)
	result := m.db.WithContext(ctx).
		Where("user_id = ? AND created_at < ?", userID, cutoff).
		Delete(&Session{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		m.logger.Info("purged stale sessions",
			zap.Uint("user_id", userID),
			zap.Int64("count", result.RowsAffected))
	}
	return result.RowsAffected, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func randomToken() (string, error) {
	buf := make([]byte, tokenByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
