package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	jww "github.com/spf13/jwalterweatherman"

	"chat-hub/internal/models"
	"chat-hub/internal/repositories"
	"chat-hub/internal/ws"
)

// ReactionRouter persists a reaction and fans it out to connected peers.
type ReactionRouter interface {
	RouteReaction(ctx context.Context, userID string, ev models.ReactionEvent) (models.Reaction, error)
}

// MessageHandler serves users, direct history, reactions and read markers.
type MessageHandler struct {
	users     repositories.UserRepository
	messages  repositories.MessageRepository
	reactions repositories.ReactionRepository
	router    ReactionRouter
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(users repositories.UserRepository, messages repositories.MessageRepository, reactions repositories.ReactionRepository, router ReactionRouter) *MessageHandler {
	return &MessageHandler{users: users, messages: messages, reactions: reactions, router: router}
}

// ListUsers handles GET /api/users.
func (h *MessageHandler) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		jww.ERROR.Printf("list users: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch users"})
		return
	}
	if users == nil {
		users = []models.User{}
	}
	c.JSON(http.StatusOK, users)
}

// DirectHistory handles GET /api/messages/:id, where :id is the contact.
func (h *MessageHandler) DirectHistory(c *gin.Context) {
	msgs, err := h.messages.ListDirectMessages(c.Request.Context(), userIDFromContext(c), c.Param("id"))
	if err != nil {
		jww.ERROR.Printf("list direct messages: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

// ListReactions handles GET /api/messages/:id/reactions.
func (h *MessageHandler) ListReactions(c *gin.Context) {
	reactions, err := h.reactions.ListReactions(c.Request.Context(), c.Param("id"))
	if err != nil {
		jww.ERROR.Printf("list reactions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch reactions"})
		return
	}
	if reactions == nil {
		reactions = []models.Reaction{}
	}
	c.JSON(http.StatusOK, reactions)
}

// MarkRead handles PATCH /api/messages/:id/read. Only the receiver of a
// direct message may mark it read.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	ctx := c.Request.Context()
	msg, err := h.messages.GetMessage(ctx, c.Param("id"))
	if err != nil {
		writeLookupError(c, err, "message not found")
		return
	}
	if msg.IsChannel() || msg.ReceiverID == nil || *msg.ReceiverID != userIDFromContext(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the receiver of this message"})
		return
	}
	if err := h.messages.MarkRead(ctx, msg.ID); err != nil {
		writeLookupError(c, err, "message not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// AddReaction handles POST /api/reactions. The conversation is derived from
// the message so the reaction reaches the same peers as a websocket reaction.
func (h *MessageHandler) AddReaction(c *gin.Context) {
	var req struct {
		MessageID string `json:"messageId" binding:"required"`
		Emoji     string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	userID := userIDFromContext(c)
	msg, err := h.messages.GetMessage(c.Request.Context(), req.MessageID)
	if err != nil {
		writeLookupError(c, err, "message not found")
		return
	}

	ev := models.ReactionEvent{MessageID: msg.ID, UserID: userID, SenderID: userID, Emoji: req.Emoji}
	switch {
	case msg.IsChannel():
		ev.ChannelID = *msg.ChannelID
	case msg.SenderID == userID && msg.ReceiverID != nil:
		ev.ReceiverID = *msg.ReceiverID
	default:
		ev.ReceiverID = msg.SenderID
	}

	reaction, err := h.router.RouteReaction(c.Request.Context(), userID, ev)
	if err != nil {
		writeLookupError(c, err, "message not found")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"reaction": reaction})
}

// writeLookupError maps repository and routing sentinels to HTTP statuses.
func writeLookupError(c *gin.Context, err error, notFound string) {
	switch {
	case errors.Is(err, repositories.ErrMessageNotFound),
		errors.Is(err, repositories.ErrChannelNotFound),
		errors.Is(err, repositories.ErrUserNotFound),
		errors.Is(err, repositories.ErrNotificationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
	case errors.Is(err, ws.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this conversation"})
	default:
		jww.ERROR.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
