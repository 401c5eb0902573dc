package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/coursebay/coursebay-api/internal/models"
	"github.com/coursebay/coursebay-api/internal/repository"
	"github.com/coursebay/coursebay-api/pkg/config"
	appErrors "github.com/coursebay/coursebay-api/pkg/errors"
)

type fakeAuthStore struct {
	users              map[string]*models.User
	refreshTokens      map[string]*models.RefreshToken
	verificationTokens map[string]*models.VerificationToken
	auditEntries       []models.AuditLog
}

func newFakeAuthStore() *fakeAuthStore {
	return &fakeAuthStore{
		users:              map[string]*models.User{},
		refreshTokens:      map[string]*models.RefreshToken{},
		verificationTokens: map[string]*models.VerificationToken{},
	}
}

func (f *fakeAuthStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthStore) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthStore) Create(_ context.Context, user *models.User) error {
	for _, u := range f.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateRow
		}
	}
	user.ID = uuid.NewString()
	f.users[user.ID] = user
	return nil
}

func (f *fakeAuthStore) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	if u, ok := f.users[id]; ok {
		u.LastLogin = &ts
		return nil
	}
	return sql.ErrNoRows
}

func (f *fakeAuthStore) UpdatePassword(_ context.Context, id, passwordHash string, _ time.Time) error {
	if u, ok := f.users[id]; ok {
		u.PasswordHash = passwordHash
		return nil
	}
	return sql.ErrNoRows
}

func (f *fakeAuthStore) MarkEmailVerified(_ context.Context, id string, _ time.Time) error {
	if u, ok := f.users[id]; ok {
		u.EmailVerified = true
		return nil
	}
	return sql.ErrNoRows
}

func (f *fakeAuthStore) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	f.refreshTokens[token.Token] = token
	return nil
}

func (f *fakeAuthStore) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := f.refreshTokens[token]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthStore) RevokeRefreshToken(_ context.Context, id string, revokedAt time.Time) error {
	for _, t := range f.refreshTokens {
		if t.ID == id {
			t.Revoked = true
			t.RevokedAt = &revokedAt
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeAuthStore) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	for _, t := range f.refreshTokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func (f *fakeAuthStore) CreateVerificationToken(_ context.Context, token *models.VerificationToken) error {
	f.verificationTokens[token.Token] = token
	return nil
}

func (f *fakeAuthStore) FindVerificationToken(_ context.Context, token string) (*models.VerificationToken, error) {
	if t, ok := f.verificationTokens[token]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthStore) MarkVerificationTokenUsed(_ context.Context, id string, usedAt time.Time) error {
	for _, t := range f.verificationTokens {
		if t.ID == id {
			t.UsedAt = &usedAt
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeAuthStore) CreateAuditLog(_ context.Context, entry *models.AuditLog) error {
	f.auditEntries = append(f.auditEntries, *entry)
	return nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Expiration:        24 * time.Hour,
		AdminExpiration:   4 * time.Hour,
		RefreshExpiration: 168 * time.Hour,
		Issuer:            "coursebay-test",
	}
}

func newAuthFixture(t *testing.T) (*AuthService, *fakeAuthStore, *SessionRegistry) {
	t.Helper()
	store := newFakeAuthStore()
	registry := NewSessionRegistry(time.Hour, time.Minute, nil)
	svc := NewAuthService(store, registry, nil, testJWTConfig(), nil, nil)
	return svc, store, registry
}

func seedUser(t *testing.T, store *fakeAuthStore, email, password string, role models.UserRole, verified bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		Email:         email,
		PasswordHash:  string(hash),
		FullName:      "Test User",
		Role:          role,
		EmailVerified: verified,
	}
	require.NoError(t, store.Create(context.Background(), user))
	return user
}

func TestSignup(t *testing.T) {
	svc, store, _ := newAuthFixture(t)

	info, err := svc.Signup(context.Background(), models.SignupRequest{
		Email:    "New.Student@Example.com ",
		FullName: "New Student",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)
	assert.Equal(t, "new.student@example.com", info.Email)
	assert.Equal(t, models.RoleStudent, info.Role)
	require.Len(t, store.verificationTokens, 1)

	// The same address again is a conflict.
	_, err = svc.Signup(context.Background(), models.SignupRequest{
		Email:    "new.student@example.com",
		FullName: "New Student",
		Password: "hunter2hunter2",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestVerifyEmail(t *testing.T) {
	svc, store, _ := newAuthFixture(t)

	info, err := svc.Signup(context.Background(), models.SignupRequest{
		Email:    "student@example.com",
		FullName: "Student",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	var token string
	for k := range store.verificationTokens {
		token = k
	}

	require.NoError(t, svc.VerifyEmail(context.Background(), models.VerifyEmailRequest{Token: token}))
	assert.True(t, store.users[info.ID].EmailVerified)

	// Single use only.
	err = svc.VerifyEmail(context.Background(), models.VerifyEmailRequest{Token: token})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestVerifyEmailExpiredToken(t *testing.T) {
	svc, store, _ := newAuthFixture(t)
	_, err := svc.Signup(context.Background(), models.SignupRequest{
		Email:    "student@example.com",
		FullName: "Student",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	var token string
	for k := range store.verificationTokens {
		token = k
	}
	svc.now = func() time.Time { return time.Now().Add(verificationTokenTTL + time.Hour) }

	err = svc.VerifyEmail(context.Background(), models.VerifyEmailRequest{Token: token})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLogin(t *testing.T) {
	svc, store, _ := newAuthFixture(t)
	user := seedUser(t, store, "student@example.com", "hunter2hunter2", models.RoleStudent, true)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "student@example.com",
		Password: "hunter2hunter2",
		IP:       "203.0.113.9",
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, resp.User.ID)
	assert.NotEmpty(t, resp.RefreshToken)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.Empty(t, claims.SessionID)

	require.NotEmpty(t, store.auditEntries)
	assert.Equal(t, models.AuditActionLogin, store.auditEntries[0].Action)
	assert.Equal(t, "203.0.113.9", store.auditEntries[0].IPAddress)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, store, _ := newAuthFixture(t)
	seedUser(t, store, "student@example.com", "hunter2hunter2", models.RoleStudent, true)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "student@example.com",
		Password: "not-the-password",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	// Unknown addresses read the same way.
	_, err = svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever1234",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginUnverifiedEmail(t *testing.T) {
	svc, store, _ := newAuthFixture(t)
	seedUser(t, store, "student@example.com", "hunter2hunter2", models.RoleStudent, false)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "student@example.com",
		Password: "hunter2hunter2",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEmailNotVerified.Code, appErrors.FromError(err).Code)
}

func TestAdminLoginRegistersSession(t *testing.T) {
	svc, store, registry := newAuthFixture(t)
	seedUser(t, store, "admin@example.com", "hunter2hunter2", models.RoleAdmin, true)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	require.NotEmpty(t, claims.SessionID)
	assert.Equal(t, defaultAdminLevel, claims.AdminLevel)
	assert.True(t, registry.Validate(claims.SessionID, claims.UserID))
	assert.False(t, registry.Validate(claims.SessionID, "someone-else"))

	// Admin tokens carry the shorter expiry.
	ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	assert.Equal(t, testJWTConfig().AdminExpiration, ttl)
}

func TestRefreshRotation(t *testing.T) {
	svc, store, _ := newAuthFixture(t)
	seedUser(t, store, "student@example.com", "hunter2hunter2", models.RoleStudent, true)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "student@example.com",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The old token is burned.
	_, err = svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	_, err = svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: refreshed.RefreshToken})
	require.NoError(t, err)
}

func TestRefreshExpiredToken(t *testing.T) {
	svc, store, _ := newAuthFixture(t)
	seedUser(t, store, "student@example.com", "hunter2hunter2", models.RoleStudent, true)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "student@example.com",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(testJWTConfig().RefreshExpiration + time.Hour) }
	_, err = svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestLogoutDropsAdminSession(t *testing.T) {
	svc, store, registry := newAuthFixture(t)
	seedUser(t, store, "admin@example.com", "hunter2hunter2", models.RoleAdmin, true)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)
	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), claims.UserID, claims.SessionID))
	assert.False(t, registry.Validate(claims.SessionID, claims.UserID))
	assert.True(t, store.refreshTokens[resp.RefreshToken].Revoked)
}

func TestChangePassword(t *testing.T) {
	svc, store, registry := newAuthFixture(t)
	user := seedUser(t, store, "admin@example.com", "hunter2hunter2", models.RoleAdmin, true)
	session := registry.Create(user.ID)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	err = svc.ChangePassword(context.Background(), user.ID, models.ChangePasswordRequest{
		OldPassword: "wrong-password",
		NewPassword: "brandnewpass99",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.ChangePassword(context.Background(), user.ID, models.ChangePasswordRequest{
		OldPassword: "hunter2hunter2",
		NewPassword: "brandnewpass99",
	}))

	// Every outstanding credential is dead.
	assert.True(t, store.refreshTokens[login.RefreshToken].Revoked)
	assert.False(t, registry.Validate(session.ID, user.ID))

	_, err = svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "brandnewpass99",
	})
	require.NoError(t, err)
}

func TestValidateTokenRejectsForgery(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)

	// A token signed with a different secret fails verification.
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, models.JWTClaims{
		UserID: "attacker",
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(forged)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenExpired(t *testing.T) {
	svc, store, _ := newAuthFixture(t)
	seedUser(t, store, "student@example.com", "hunter2hunter2", models.RoleStudent, true)

	svc.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "student@example.com",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
