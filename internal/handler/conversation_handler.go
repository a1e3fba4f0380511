package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/orghub-api/internal/models"
	"github.com/noah-isme/orghub-api/internal/service"
	appErrors "github.com/noah-isme/orghub-api/pkg/errors"
	"github.com/noah-isme/orghub-api/pkg/response"
)

// ConversationHandler wires HTTP endpoints to the conversation service.
type ConversationHandler struct {
	service *service.ConversationService
	metrics *service.MetricsService
}

// NewConversationHandler creates a new handler.
func NewConversationHandler(svc *service.ConversationService, metrics *service.MetricsService) *ConversationHandler {
	return &ConversationHandler{service: svc, metrics: metrics}
}

// Send godoc
// @Summary Send a message
// @Description Post a message to the named user; the first message starts the thread and needs a subject
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param username path string true "Recipient username"
// @Param payload body models.SendMessageRequest true "Message payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /conversations/{username} [post]
func (h *ConversationHandler) Send(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid message payload"))
		return
	}

	msg, err := h.service.Send(c.Request.Context(), claims.UserID, c.Param("username"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.ObserveMessage()
	}
	response.Created(c, msg)
}

// Thread godoc
// @Summary Read a conversation
// @Description The caller's thread with the named user; marks received messages read
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param username path string true "Other party username"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /conversations/{username} [get]
func (h *ConversationHandler) Thread(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	view, err := h.service.Thread(c.Request.Context(), claims.UserID, c.Param("username"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Inbox godoc
// @Summary Inbox
// @Description The caller's conversations ordered by latest activity, with unread counts
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /inbox [get]
func (h *ConversationHandler) Inbox(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	entries, err := h.service.Inbox(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
