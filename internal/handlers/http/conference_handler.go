package http

import (
	"errors"
	"net/http"
	"time"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"
	apperrors "huddle/pkg/errors"
	"huddle/pkg/utils"
	"huddle/pkg/validation"

	"github.com/gin-gonic/gin"
)

// ConferenceHandler exposes the persisted conference records over REST.
// Mutations that affect a live room (lock, terminate) are propagated into the
// room service so connected participants learn about them immediately.
type ConferenceHandler struct {
	conferences ports.ConferenceRepository
	rooms       ports.RoomService
}

func NewConferenceHandler(conferences ports.ConferenceRepository, rooms ports.RoomService) *ConferenceHandler {
	return &ConferenceHandler{
		conferences: conferences,
		rooms:       rooms,
	}
}

// SetupRoutes registers the conference routes. Middleware in adminOnly is
// applied to the destructive routes (lock, terminate) on top of whatever the
// group already carries.
func (h *ConferenceHandler) SetupRoutes(api *gin.RouterGroup, adminOnly ...gin.HandlerFunc) {
	api.POST("/conferences", h.CreateConference)
	api.GET("/conferences", h.ListActiveConferences)
	api.GET("/conferences/:id", h.GetConference)

	guarded := api.Group("", adminOnly...)
	guarded.PATCH("/conferences/:id/lock", h.SetLock)
	guarded.DELETE("/conferences/:id", h.TerminateConference)
}

type CreateConferenceRequest struct {
	ID              string `json:"id"`
	Name            string `json:"name" binding:"required,min=1,max=200"`
	MaxParticipants int    `json:"maxParticipants" binding:"min=0,max=1000"`
}

func (h *ConferenceHandler) CreateConference(c *gin.Context) {
	var req CreateConferenceRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	if err := validation.ValidateConferenceName(req.Name); err != nil {
		c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}
	if req.ID == "" {
		req.ID = utils.GenerateConferenceID()
	}
	if err := validation.ValidateRoomID(req.ID); err != nil {
		c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}

	conf := &domain.Conference{
		ID:              domain.RoomID(req.ID),
		Name:            req.Name,
		MaxParticipants: req.MaxParticipants,
		CreatedAt:       time.Now(),
	}

	if err := h.conferences.Create(c.Request.Context(), conf); err != nil {
		if errors.Is(err, domain.ErrConferenceExists) {
			c.Error(apperrors.NewConflictError("conference already exists"))
			return
		}
		c.Error(apperrors.NewInternalError("failed to create conference"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"conference": conf})
}

func (h *ConferenceHandler) GetConference(c *gin.Context) {
	id := domain.RoomID(c.Param("id"))

	conf, err := h.conferences.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrConferenceNotFound) {
			c.Error(apperrors.NewNotFoundError("conference"))
			return
		}
		c.Error(apperrors.NewInternalError("failed to load conference"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"conference": conf})
}

func (h *ConferenceHandler) ListActiveConferences(c *gin.Context) {
	active, err := h.conferences.ListActive(c.Request.Context())
	if err != nil {
		c.Error(apperrors.NewInternalError("failed to list conferences"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"conferences": active})
}

type SetLockRequest struct {
	Locked bool `json:"locked"`
}

func (h *ConferenceHandler) SetLock(c *gin.Context) {
	id := domain.RoomID(c.Param("id"))

	var req SetLockRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	conf, err := h.conferences.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrConferenceNotFound) {
			c.Error(apperrors.NewNotFoundError("conference"))
			return
		}
		c.Error(apperrors.NewInternalError("failed to load conference"))
		return
	}

	conf.Locked = req.Locked
	if err := h.conferences.Update(c.Request.Context(), conf); err != nil {
		c.Error(apperrors.NewInternalError("failed to update conference"))
		return
	}

	// Tell the live room, if one exists.
	h.rooms.SetRoomLock(id, req.Locked)

	c.JSON(http.StatusOK, gin.H{"conference": conf})
}

func (h *ConferenceHandler) TerminateConference(c *gin.Context) {
	id := domain.RoomID(c.Param("id"))

	conf, err := h.conferences.GetByID(c.Request.Context(), id)
	if err != nil && !errors.Is(err, domain.ErrConferenceNotFound) {
		c.Error(apperrors.NewInternalError("failed to load conference"))
		return
	}

	// Drop the live room first so participants get the termination event
	// before the record disappears.
	h.rooms.TerminateRoom(c.Request.Context(), id)

	if conf != nil {
		if err := h.conferences.Delete(c.Request.Context(), id); err != nil && !errors.Is(err, domain.ErrConferenceNotFound) {
			c.Error(apperrors.NewInternalError("failed to delete conference"))
			return
		}
	}

	c.Status(http.StatusNoContent)
}
