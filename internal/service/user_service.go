package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursebay/coursebay-api/internal/models"
	appErrors "github.com/coursebay/coursebay-api/pkg/errors"
)

type userStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	UpdateRole(ctx context.Context, id string, role models.UserRole, updatedAt time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// ChangeRoleRequest promotes or demotes a user.
type ChangeRoleRequest struct {
	UserID string          `validate:"required,uuid4"`
	Role   models.UserRole `validate:"required"`
}

// UserService holds the admin-side account operations: listing accounts,
// changing roles, and forcing users out of their sessions.
type UserService struct {
	users    userStore
	registry *SessionRegistry
	validate *validator.Validate
	logger   *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(users userStore, registry *SessionRegistry, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, registry: registry, validate: validate, logger: logger}
}

// List returns accounts matching the filter.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, total, nil
}

// Get returns a single account.
func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// ChangeRole updates a user's role. Any live credentials are invalidated so
// the old role cannot keep acting through stale tokens.
func (s *UserService) ChangeRole(ctx context.Context, actorID string, req ChangeRoleRequest) (*models.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid role change")
	}
	if !req.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}

	user, err := s.Get(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if user.Role == req.Role {
		return user, nil
	}

	now := time.Now().UTC()
	if err := s.users.UpdateRole(ctx, user.ID, req.Role, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update role")
	}
	previous := user.Role
	user.Role = req.Role
	user.UpdatedAt = now

	if err := s.users.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after role change", zap.String("user_id", user.ID), zap.Error(err))
	}
	if s.registry != nil {
		s.registry.RevokeUser(user.ID)
	}

	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionRoleChange,
		Resource:   "user",
		ResourceID: &user.ID,
		NewValues:  []byte(fmt.Sprintf(`{"from":%q,"to":%q}`, previous, req.Role)),
	}
	if err := s.users.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write role change audit entry", zap.String("user_id", user.ID), zap.Error(err))
	}
	return user, nil
}

// ForceLogout revokes every credential a user holds: refresh tokens in the
// database and, for admins, their live registry sessions. Admin access
// tokens stop working on the next request.
func (s *UserService) ForceLogout(ctx context.Context, actorID, userID string) (int, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return 0, err
	}

	if err := s.users.RevokeUserRefreshTokens(ctx, userID); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke refresh tokens")
	}
	dropped := 0
	if s.registry != nil {
		dropped = s.registry.RevokeUser(userID)
	}

	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionForceLogout,
		Resource:   "user",
		ResourceID: &userID,
		NewValues:  []byte(fmt.Sprintf(`{"sessions_dropped":%d}`, dropped)),
	}
	if err := s.users.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write force logout audit entry", zap.String("user_id", userID), zap.Error(err))
	}
	return dropped, nil
}
