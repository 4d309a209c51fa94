package users

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

const anonymousEmailDomain = "lexicard.local"

var (
	// ErrNotFound indicates no user row matched the lookup.
	ErrNotFound = errors.New("users: not found")
	// ErrNotAnonymous indicates a merge source that is not an anonymous identity.
	ErrNotAnonymous = errors.New("users: can only upgrade anonymous accounts")
	// ErrTargetAnonymous indicates a merge target that is itself anonymous.
	ErrTargetAnonymous = errors.New("users: cannot merge into an anonymous account")
	// ErrConflict indicates a uniqueness violation on email or (provider, uid).
	ErrConflict = errors.New("users: conflicting identity")

	errMissingDatabase = errors.New("users: database connection required")
	errMissingEmail    = errors.New("users: email required")
	errMissingSubject  = errors.New("users: provider subject required")
)

// GoogleIdentity carries the verified claim data needed to resolve a user.
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
}

// ServiceConfig describes the dependencies of the user directory.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service manages identity records and the anonymous account merge.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewService constructs the user directory.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, now: clock, logger: logger}, nil
}

// ByID loads a user by primary key.
func (s *Service) ByID(ctx context.Context, id uint) (User, error) {
	var user User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ResolveGoogle finds the user owning the identity's email, creating a fresh
// record on first sign-in. A create that loses a concurrent race falls back
// to the existing row.
func (s *Service) ResolveGoogle(ctx context.Context, identity GoogleIdentity) (User, error) {
	email := strings.TrimSpace(strings.ToLower(identity.Email))
	if email == "" {
		return User{}, errMissingEmail
	}
	subject := strings.TrimSpace(identity.Subject)
	if subject == "" {
		return User{}, errMissingSubject
	}

	var user User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, err
	}

	name := strings.TrimSpace(identity.Name)
	if name == "" {
		suffix, randErr := randomHex(4)
		if randErr != nil {
			return User{}, randErr
		}
		name = "User" + suffix
	}

	user = User{
		Email:    email,
		Name:     name,
		Provider: ProviderGoogle,
		UID:      subject,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			var existing User
			if lookupErr := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error; lookupErr == nil {
				return existing, nil
			}
			return User{}, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return User{}, err
	}
	return user, nil
}

// CreateAnonymous mints a new anonymous identity with a locally generated uid.
func (s *Service) CreateAnonymous(ctx context.Context) (User, error) {
	emailSuffix, err := randomHex(16)
	if err != nil {
		return User{}, err
	}
	uid, err := randomHex(32)
	if err != nil {
		return User{}, err
	}

	user := User{
		Email:    fmt.Sprintf("anonymous_%s@%s", emailSuffix, anonymousEmailDomain),
		Name:     "Anonymous User",
		Provider: ProviderAnonymous,
		UID:      uid,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return User{}, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return User{}, err
	}
	return user, nil
}

// ResumeAnonymous looks up a previously issued anonymous identity by its uid.
func (s *Service) ResumeAnonymous(ctx context.Context, uid string) (User, error) {
	trimmed := strings.TrimSpace(uid)
	if trimmed == "" {
		return User{}, ErrNotFound
	}
	var user User
	err := s.db.WithContext(ctx).
		Where("provider = ? AND uid = ?", ProviderAnonymous, trimmed).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// MergeAnonymousInto folds the anonymous user's owned resources into the
// target user as a single transaction: decks are reassigned, the anonymous
// sessions are deleted, the target is stamped with the merge lineage, and the
// anonymous row is destroyed. A failure at any step leaves everything as it
// was.
func (s *Service) MergeAnonymousInto(ctx context.Context, target User, anonymous User) (User, error) {
	if !anonymous.Anonymous() {
		return User{}, ErrNotAnonymous
	}
	if target.Anonymous() {
		return User{}, ErrTargetAnonymous
	}

	mergedAt := s.now().UTC()
	mergedFromID := anonymous.ID

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("UPDATE decks SET user_id = ? WHERE user_id = ?", target.ID, anonymous.ID).Error; err != nil {
			return fmt.Errorf("reassign decks: %w", err)
		}
		if err := tx.Exec("DELETE FROM sessions WHERE user_id = ?", anonymous.ID).Error; err != nil {
			return fmt.Errorf("delete anonymous sessions: %w", err)
		}
		updates := map[string]interface{}{
			"merged_from_user_id": mergedFromID,
			"merged_at":           mergedAt,
		}
		if err := tx.Model(&User{}).Where("id = ?", target.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("stamp merge lineage: %w", err)
		}
		if err := tx.Delete(&User{}, anonymous.ID).Error; err != nil {
			return fmt.Errorf("delete anonymous user: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("anonymous merge failed",
			zap.Uint("target_user_id", target.ID),
			zap.Uint("anonymous_user_id", anonymous.ID),
			zap.Error(err))
		return User{}, err
	}

	target.MergedFromUserID = &mergedFromID
	target.MergedAt = &mergedAt

	s.logger.Info("anonymous account merged",
		zap.Uint("target_user_id", target.ID),
		zap.Uint("anonymous_user_id", mergedFromID))
	return target, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func randomHex(byteCount int) (string, error) {
	buf := make([]byte, byteCount)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random identifier: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
