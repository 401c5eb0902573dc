package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/coursebay/coursebay-api/internal/models"
	"github.com/coursebay/coursebay-api/internal/repository"
	"github.com/coursebay/coursebay-api/pkg/config"
	appErrors "github.com/coursebay/coursebay-api/pkg/errors"
)

const verificationTokenTTL = 24 * time.Hour

// defaultAdminLevel is stamped into admin access tokens until per-admin
// levels are stored on the account.
const defaultAdminLevel = "full"

type authStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	MarkEmailVerified(ctx context.Context, id string, ts time.Time) error
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateVerificationToken(ctx context.Context, token *models.VerificationToken) error
	FindVerificationToken(ctx context.Context, token string) (*models.VerificationToken, error)
	MarkVerificationTokenUsed(ctx context.Context, id string, usedAt time.Time) error
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// AuthService handles signup, credential verification, token issuance and
// revocation. Student and instructor tokens are stateless; admin tokens
// additionally carry a session id that must stay live in the registry.
type AuthService struct {
	users    authStore
	registry *SessionRegistry
	notifier *EmailNotifier
	jwtCfg   config.JWTConfig
	validate *validator.Validate
	logger   *zap.Logger

	now func() time.Time
}

// NewAuthService constructs the service.
func NewAuthService(users authStore, registry *SessionRegistry, notifier *EmailNotifier, jwtCfg config.JWTConfig, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:    users,
		registry: registry,
		notifier: notifier,
		jwtCfg:   jwtCfg,
		validate: validate,
		logger:   logger,
		now:      time.Now,
	}
}

// Signup registers a student account and mails out a verification token.
func (s *AuthService) Signup(ctx context.Context, req models.SignupRequest) (*models.UserInfo, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid signup request")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         models.RoleStudent,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateRow) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	token := &models.VerificationToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     randomToken(),
		ExpiresAt: s.now().UTC().Add(verificationTokenTTL),
		CreatedAt: s.now().UTC(),
	}
	if err := s.users.CreateVerificationToken(ctx, token); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create verification token")
	}
	if s.notifier != nil {
		s.notifier.SendVerification(user.FullName, user.Email, token.Token)
	}

	s.logger.Info("user signed up", zap.String("user_id", user.ID))
	return &models.UserInfo{ID: user.ID, Email: user.Email, FullName: user.FullName, Role: user.Role}, nil
}

// VerifyEmail consumes a verification token and marks the account verified.
func (s *AuthService) VerifyEmail(ctx context.Context, req models.VerifyEmailRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verification request")
	}

	stored, err := s.users.FindVerificationToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "invalid or expired verification token")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load verification token")
	}
	now := s.now().UTC()
	if stored.UsedAt != nil || now.After(stored.ExpiresAt) {
		return appErrors.Clone(appErrors.ErrValidation, "invalid or expired verification token")
	}

	if err := s.users.MarkVerificationTokenUsed(ctx, stored.ID, now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to consume verification token")
	}
	if err := s.users.MarkEmailVerified(ctx, stored.UserID, now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark email verified")
	}
	return nil
}

// Login verifies credentials and issues an access/refresh token pair.
// Admin logins also register a revocable session; its id rides inside the
// access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login request")
	}

	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}
	if !user.EmailVerified {
		return nil, appErrors.Clone(appErrors.ErrEmailNotVerified, "")
	}

	sessionID := ""
	if user.Role == models.RoleAdmin && s.registry != nil {
		sessionID = s.registry.Create(user.ID).ID
	}

	now := s.now().UTC()
	accessToken, expiresIn, err := s.issueAccessToken(user, sessionID, now)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.issueRefreshToken(ctx, user.ID, req.IP, req.UserAgent, now)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}
	s.auditAuth(ctx, user.ID, models.AuditActionLogin, req.IP, req.UserAgent)

	return &models.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
		IssuedAt:     now,
		User:         models.UserInfo{ID: user.ID, Email: user.Email, FullName: user.FullName, Role: user.Role},
	}, nil
}

// Refresh rotates a refresh token and issues a new access token. The old
// refresh token is revoked whether or not rotation succeeds downstream.
func (s *AuthService) Refresh(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh request")
	}

	stored, err := s.users.FindRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid refresh token")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load refresh token")
	}
	now := s.now().UTC()
	if stored.Revoked || now.After(stored.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid refresh token")
	}

	user, err := s.users.FindByID(ctx, stored.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := s.users.RevokeRefreshToken(ctx, stored.ID, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rotate refresh token")
	}

	sessionID := ""
	if user.Role == models.RoleAdmin && s.registry != nil {
		sessionID = s.registry.Create(user.ID).ID
	}
	accessToken, expiresIn, err := s.issueAccessToken(user, sessionID, now)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.issueRefreshToken(ctx, user.ID, req.IP, req.UserAgent, now)
	if err != nil {
		return nil, err
	}

	return &models.RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
		IssuedAt:     now,
	}, nil
}

// Logout revokes the caller's refresh tokens and, for admins, drops the
// registry session so the access token stops working immediately.
func (s *AuthService) Logout(ctx context.Context, userID, sessionID string) error {
	if err := s.users.RevokeUserRefreshTokens(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke refresh tokens")
	}
	if sessionID != "" && s.registry != nil {
		s.registry.Revoke(sessionID)
	}
	s.auditAuth(ctx, userID, models.AuditActionLogout, "", "")
	return nil
}

// ChangePassword verifies the current password, stores the new hash, and
// invalidates every outstanding credential for the account.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid password change request")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)) != nil {
		return appErrors.Clone(appErrors.ErrInvalidCredentials, "current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	now := s.now().UTC()
	if err := s.users.UpdatePassword(ctx, userID, string(hash), now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}
	if err := s.users.RevokeUserRefreshTokens(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after password change", zap.String("user_id", userID), zap.Error(err))
	}
	if s.registry != nil {
		s.registry.RevokeUser(userID)
	}
	s.auditAuth(ctx, userID, models.AuditActionPasswordChange, "", "")
	return nil
}

// ValidateToken parses and verifies an access token's signature and expiry.
// Liveness of admin sessions is the middleware's concern, not this method's.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.jwtCfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}
	if !claims.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}
	return claims, nil
}

func (s *AuthService) issueAccessToken(user *models.User, sessionID string, now time.Time) (string, int64, error) {
	ttl := s.jwtCfg.Expiration
	adminLevel := ""
	if user.Role == models.RoleAdmin {
		ttl = s.jwtCfg.AdminExpiration
		adminLevel = defaultAdminLevel
	}
	claims := models.JWTClaims{
		UserID:     user.ID,
		Role:       user.Role,
		Email:      user.Email,
		SessionID:  sessionID,
		AdminLevel: adminLevel,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.jwtCfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtCfg.Secret))
	if err != nil {
		return "", 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}
	return signed, int64(ttl.Seconds()), nil
}

func (s *AuthService) issueRefreshToken(ctx context.Context, userID, ip, userAgent string, now time.Time) (string, error) {
	token := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     randomToken(),
		ExpiresAt: now.Add(s.jwtCfg.RefreshExpiration),
		CreatedAt: now,
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := s.users.CreateRefreshToken(ctx, token); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}
	return token.Token, nil
}

func (s *AuthService) auditAuth(ctx context.Context, userID, action, ip, userAgent string) {
	entry := &models.AuditLog{
		UserID:    &userID,
		Action:    action,
		Resource:  "auth",
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := s.users.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write auth audit entry", zap.String("user_id", userID), zap.Error(err))
	}
}

func randomToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString() + uuid.NewString()
	}
	return hex.EncodeToString(buf)
}
