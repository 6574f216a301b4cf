package handlers

import "github.com/gin-gonic/gin"

// Handlers groups the REST handlers served under /api.
type Handlers struct {
	Auth          *AuthHandler
	Messages      *MessageHandler
	Channels      *ChannelHandler
	Notifications *NotificationHandler
}

// Register mounts the REST surface on router. Everything except register and
// login goes through authMiddleware.
func (h Handlers) Register(router gin.IRouter, authMiddleware gin.HandlerFunc) {
	api := router.Group("/api")

	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)

	protected := api.Group("", authMiddleware)

	protected.GET("/users", h.Messages.ListUsers)
	protected.GET("/messages/:id", h.Messages.DirectHistory)
	protected.GET("/messages/:id/reactions", h.Messages.ListReactions)
	protected.PATCH("/messages/:id/read", h.Messages.MarkRead)
	protected.POST("/reactions", h.Messages.AddReaction)

	protected.POST("/channels", h.Channels.CreateChannel)
	protected.GET("/channels", h.Channels.ListChannels)
	protected.GET("/channels/:channelId", h.Channels.GetChannel)
	protected.GET("/channels/:channelId/members", h.Channels.ListMembers)
	protected.POST("/channels/:channelId/members", h.Channels.AddMember)
	protected.DELETE("/channels/:channelId/members/:userId", h.Channels.RemoveMember)
	protected.GET("/channels/:channelId/messages", h.Channels.ListMessages)

	protected.GET("/notifications", h.Notifications.List)
	protected.PATCH("/notifications/:notificationId", h.Notifications.MarkRead)
}
