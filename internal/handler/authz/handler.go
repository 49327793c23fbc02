package authz

import (
	"github.com/gin-gonic/gin"

	"github.com/telecare/telemed-api/internal/middleware"
	"github.com/telecare/telemed-api/internal/service/rbac"
	"github.com/telecare/telemed-api/pkg/httputil"
)

type Handler struct {
	service *rbac.Service
}

func NewHandler(service *rbac.Service) *Handler {
	return &Handler{service: service}
}

// ListPermissions returns the caller role's permission set.
func (h *Handler) ListPermissions(c *gin.Context) {
	role := middleware.CallerRole(c)
	httputil.RespondWithSuccess(c, gin.H{
		"role":        role,
		"permissions": h.service.Permissions(role),
	})
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.GET("/permissions", h.ListPermissions)
	}
}
