package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/telecare/telemed-api/internal/model"
	"github.com/telecare/telemed-api/internal/service/rbac"
	"github.com/telecare/telemed-api/pkg/auth"
	"github.com/telecare/telemed-api/pkg/errors"
	"github.com/telecare/telemed-api/pkg/httputil"
)

const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

type AuthMiddleware struct {
	jwtService  auth.JWTService
	rbacService *rbac.Service
}

func NewAuthMiddleware(jwtService auth.JWTService, rbacService *rbac.Service) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService:  jwtService,
		rbacService: rbacService,
	}
}

// Authenticate verifies the bearer token and stashes the caller's
// identity and role in the request context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithError(c, errors.Permission("missing authorization header"))
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.RespondWithError(c, errors.Permission("invalid authorization format"))
			c.Abort()
			return
		}

		claims, err := m.jwtService.ValidateToken(parts[1])
		if err != nil {
			httputil.RespondWithError(c, errors.Permission("invalid token"))
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID.String())
		c.Set(ContextRole, string(claims.Role))
		c.Next()
	}
}

// RequirePermission gates a route on the caller role's permission set.
func (m *AuthMiddleware) RequirePermission(permission model.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := CallerRole(c)
		if !m.rbacService.HasPermission(role, permission) {
			httputil.RespondWithError(c, errors.Permission("permission denied"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// CallerRole returns the authenticated role from the context. An
// unauthenticated request yields the empty role, which every
// permission check denies.
func CallerRole(c *gin.Context) model.Role {
	return model.Role(c.GetString(ContextRole))
}

// CallerID returns the authenticated user id, or uuid.Nil.
func CallerID(c *gin.Context) uuid.UUID {
	id, err := uuid.Parse(c.GetString(ContextUserID))
	if err != nil {
		return uuid.Nil
	}
	return id
}
