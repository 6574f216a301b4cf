package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jww "github.com/spf13/jwalterweatherman"

	"chat-hub/internal/models"
	"chat-hub/internal/repositories"
	"chat-hub/internal/telemetry"
)

// ChannelHandler manages channel endpoints.
type ChannelHandler struct {
	channels repositories.ChannelRepository
	messages repositories.MessageRepository
	users    repositories.UserRepository
	audit    *telemetry.AuditEmitter
}

// NewChannelHandler constructs a ChannelHandler.
func NewChannelHandler(channels repositories.ChannelRepository, messages repositories.MessageRepository, users repositories.UserRepository, audit *telemetry.AuditEmitter) *ChannelHandler {
	return &ChannelHandler{channels: channels, messages: messages, users: users, audit: audit}
}

// CreateChannel handles POST /api/channels.
func (h *ChannelHandler) CreateChannel(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required,max=64"`
		Description string `json:"description" binding:"max=256"`
		IsPrivate   bool   `json:"isPrivate"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	channel, err := h.channels.CreateChannel(c.Request.Context(), models.NewChannel{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		CreatorID:   userIDFromContext(c),
		IsPrivate:   req.IsPrivate,
	})
	if err != nil {
		jww.ERROR.Printf("create channel: %v", err)
		emitAudit(c, h.audit, "ERROR", "channel_create", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create channel"})
		return
	}

	emitAudit(c, h.audit, "INFO", "channel_create", "channel created")
	c.JSON(http.StatusCreated, gin.H{"channel": channel})
}

// ListChannels handles GET /api/channels.
func (h *ChannelHandler) ListChannels(c *gin.Context) {
	channels, err := h.channels.ListChannels(c.Request.Context())
	if err != nil {
		jww.ERROR.Printf("list channels: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch channels"})
		return
	}
	if channels == nil {
		channels = []models.Channel{}
	}
	c.JSON(http.StatusOK, channels)
}

// GetChannel handles GET /api/channels/:channelId.
func (h *ChannelHandler) GetChannel(c *gin.Context) {
	ctx := c.Request.Context()
	channelID := c.Param("channelId")

	channel, err := h.channels.GetChannel(ctx, channelID)
	if err != nil {
		writeLookupError(c, err, "channel not found")
		return
	}
	if !h.canRead(c, channel) {
		return
	}

	msgs, err := h.messages.ListChannelMessages(ctx, channelID)
	if err != nil {
		writeLookupError(c, err, "channel not found")
		return
	}
	members, err := h.channels.ListMembers(ctx, channelID)
	if err != nil {
		writeLookupError(c, err, "channel not found")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	if members == nil {
		members = []models.User{}
	}
	c.JSON(http.StatusOK, gin.H{"channel": channel, "messages": msgs, "members": members})
}

// ListMembers handles GET /api/channels/:channelId/members.
func (h *ChannelHandler) ListMembers(c *gin.Context) {
	channel, err := h.channels.GetChannel(c.Request.Context(), c.Param("channelId"))
	if err != nil {
		writeLookupError(c, err, "channel not found")
		return
	}
	if !h.canRead(c, channel) {
		return
	}

	members, err := h.channels.ListMembers(c.Request.Context(), channel.ID)
	if err != nil {
		writeLookupError(c, err, "channel not found")
		return
	}
	if members == nil {
		members = []models.User{}
	}
	c.JSON(http.StatusOK, members)
}

// ListMessages handles GET /api/channels/:channelId/messages.
func (h *ChannelHandler) ListMessages(c *gin.Context) {
	channel, err := h.channels.GetChannel(c.Request.Context(), c.Param("channelId"))
	if err != nil {
		writeLookupError(c, err, "channel not found")
		return
	}
	if !h.canRead(c, channel) {
		return
	}

	msgs, err := h.messages.ListChannelMessages(c.Request.Context(), channel.ID)
	if err != nil {
		writeLookupError(c, err, "channel not found")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

// AddMember handles POST /api/channels/:channelId/members. Anyone may join a
// public channel; adding somebody else, or joining a private channel,
// requires the caller to be a member already.
func (h *ChannelHandler) AddMember(c *gin.Context) {
	var req struct {
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ctx := c.Request.Context()
	channel, err := h.channels.GetChannel(ctx, c.Param("channelId"))
	if err != nil {
		writeLookupError(c, err, "channel not found")
		return
	}

	caller := userIDFromContext(c)
	if req.UserID != caller || channel.IsPrivate {
		if !h.requireMember(c, channel.ID) {
			return
		}
	}
	if _, err := h.users.GetUser(ctx, req.UserID); err != nil {
		writeLookupError(c, err, "user not found")
		return
	}
	if err := h.channels.AddMember(ctx, channel.ID, req.UserID); err != nil {
		writeLookupError(c, err, "channel not found")
		return
	}

	emitAudit(c, h.audit, "INFO", "channel_member_add", "member added")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RemoveMember handles DELETE /api/channels/:channelId/members/:userId. A
// member may leave; removing others is reserved to the channel creator.
func (h *ChannelHandler) RemoveMember(c *gin.Context) {
	ctx := c.Request.Context()
	channel, err := h.channels.GetChannel(ctx, c.Param("channelId"))
	if err != nil {
		writeLookupError(c, err, "channel not found")
		return
	}

	caller := userIDFromContext(c)
	target := c.Param("userId")
	if target != caller && channel.CreatorID != caller {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the channel creator can remove members"})
		return
	}
	if err := h.channels.RemoveMember(ctx, channel.ID, target); err != nil {
		writeLookupError(c, err, "channel not found")
		return
	}

	emitAudit(c, h.audit, "INFO", "channel_member_remove", "member removed")
	c.Status(http.StatusNoContent)
}

// canRead lets anyone read a public channel and only members read a private
// one. It writes the response when access is denied.
func (h *ChannelHandler) canRead(c *gin.Context, channel models.Channel) bool {
	if !channel.IsPrivate {
		return true
	}
	return h.requireMember(c, channel.ID)
}

func (h *ChannelHandler) requireMember(c *gin.Context, channelID string) bool {
	member, err := h.channels.IsMember(c.Request.Context(), channelID, userIDFromContext(c))
	if err != nil {
		jww.ERROR.Printf("check membership: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a channel member"})
		return false
	}
	return true
}
