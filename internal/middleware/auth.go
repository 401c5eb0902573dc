package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/coursebay/coursebay-api/internal/models"
	"github.com/coursebay/coursebay-api/internal/service"
	appErrors "github.com/coursebay/coursebay-api/pkg/errors"
	"github.com/coursebay/coursebay-api/pkg/response"
)

// Context keys set by the authentication middleware.
const (
	ContextUserID    = "user_id"
	ContextUserRole  = "user_role"
	ContextUserEmail = "user_email"
	ContextSessionID = "session_id"
)

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// Authenticate verifies the Bearer token and stores the caller's identity
// on the request context. Admin tokens must additionally reference a live
// registry session; a revoked or idle-expired session fails the request
// even while the token's own expiry is still in the future.
func Authenticate(auth tokenValidator, registry *service.SessionRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing bearer token"))
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		if claims.Role == models.RoleAdmin {
			if registry == nil || claims.SessionID == "" || !registry.Validate(claims.SessionID, claims.UserID) {
				response.Error(c, appErrors.Clone(appErrors.ErrSessionInvalid, ""))
				c.Abort()
				return
			}
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUserEmail, claims.Email)
		c.Set(ContextSessionID, claims.SessionID)
		c.Next()
	}
}

// RequireRoles rejects callers whose role is not in the allowed set. Must
// run after Authenticate.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		role, ok := c.Get(ContextUserRole)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing bearer token"))
			c.Abort()
			return
		}
		if _, ok := allowed[role.(models.UserRole)]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "insufficient role"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// Principal builds the service-layer principal from the request context.
func Principal(c *gin.Context) service.Principal {
	p := service.Principal{}
	if v, ok := c.Get(ContextUserID); ok {
		p.UserID = v.(string)
	}
	if v, ok := c.Get(ContextUserRole); ok {
		p.Role = v.(models.UserRole)
	}
	return p
}
