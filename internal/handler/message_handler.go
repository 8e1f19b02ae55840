package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/longvu/wavechat/internal/apperr"
	"github.com/longvu/wavechat/internal/model"
	"github.com/longvu/wavechat/internal/service"
)

// MessageHandler handles message-related HTTP endpoints
type MessageHandler struct {
	messageService *service.MessageService
}

func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// respondError maps service error kinds to HTTP statuses
func respondError(c *gin.Context, err error) {
	switch {
	case apperr.IsNotFound(err):
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: err.Error()})
	case apperr.IsNotAuthorized(err):
		c.JSON(http.StatusForbidden, model.ErrorResponse{Error: err.Error()})
	case apperr.IsValidation(err):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Internal server error"})
	}
}

// SendMessage godoc
// @Summary Send a message
// @Description Send a message into an existing conversation (conversation_id) or to a set of users (user_ids), creating the conversation when none exists for exactly those participants.
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.SendMessageRequest true "Send message request"
// @Success 201 {object} model.Message
// @Failure 400 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /messages [post]
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	msg, err := h.messageService.Send(userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// GetMessages godoc
// @Summary Get messages for a conversation
// @Description Returns one page of the conversation's messages, newest first, each with sender, file and per-recipient read/reaction state.
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param page query int false "Page number (default: 1)"
// @Param limit query int false "Messages per page (default: 20)"
// @Success 200 {object} model.MessagePage
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /conversations/{id}/messages [get]
func (h *MessageHandler) GetMessages(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	var req model.MessageListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	page, err := h.messageService.ListMessages(convID, userID, req.Page, req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// MarkMessageRead godoc
// @Summary Mark a message as read
// @Description Upserts the caller's read state for the message. Idempotent.
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Success 200 {object} model.MessageUserInfo
// @Failure 404 {object} model.ErrorResponse
// @Router /messages/{id}/read [post]
func (h *MessageHandler) MarkMessageRead(c *gin.Context) {
	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid message ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	info, err := h.messageService.MarkRead(messageID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// ReactToMessage godoc
// @Summary React to a message
// @Description Sets the caller's reaction on a message they have read. A new reaction overwrites the previous one.
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Param body body model.ReactToMessageRequest true "Reaction"
// @Success 200 {object} model.MessageUserInfo
// @Failure 404 {object} model.ErrorResponse
// @Router /messages/{id}/react [post]
func (h *MessageHandler) ReactToMessage(c *gin.Context) {
	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid message ID"})
		return
	}

	var req model.ReactToMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	info, err := h.messageService.React(messageID, userID, req.Reaction)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}
