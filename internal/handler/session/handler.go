package session

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/telecare/telemed-api/internal/middleware"
	"github.com/telecare/telemed-api/internal/model"
	"github.com/telecare/telemed-api/internal/service/session"
	"github.com/telecare/telemed-api/pkg/errors"
	"github.com/telecare/telemed-api/pkg/httputil"
)

type Handler struct {
	service *session.Service
}

func NewHandler(service *session.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation(err.Error()))
		return
	}

	sess, err := h.service.Create(c.Request.Context(), middleware.CallerRole(c), req.AppointmentID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, sess)
}

func (h *Handler) GetSession(c *gin.Context) {
	sess, err := h.service.FindByRoom(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, sess)
}

func (h *Handler) JoinSession(c *gin.Context) {
	sess, err := h.service.Join(c.Request.Context(), middleware.CallerRole(c), c.Param("roomId"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, sess)
}

func (h *Handler) EndSession(c *gin.Context) {
	sess, err := h.service.End(c.Request.Context(), middleware.CallerRole(c), c.Param("roomId"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, sess)
}

func (h *Handler) ListSessions(c *gin.Context) {
	if id := c.Query("appointment_id"); id != "" {
		appointmentID, err := uuid.Parse(id)
		if err != nil {
			httputil.RespondWithError(c, errors.Validation("invalid appointment ID"))
			return
		}
		sess, err := h.service.FindByAppointment(c.Request.Context(), appointmentID)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		httputil.RespondWithSuccess(c, []interface{}{sess})
		return
	}

	status := model.SessionStatus(c.Query("status"))
	sessions, err := h.service.FindByStatus(c.Request.Context(), status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, sessions)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	sessions := r.Group("/sessions")
	{
		sessions.POST("", h.CreateSession)
		sessions.GET("", h.ListSessions)
		sessions.GET("/:roomId", h.GetSession)
		sessions.POST("/:roomId/join", h.JoinSession)
		sessions.POST("/:roomId/end", h.EndSession)
	}
}
