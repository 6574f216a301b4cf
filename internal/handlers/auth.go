package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jww "github.com/spf13/jwalterweatherman"

	"chat-hub/internal/auth"
	"chat-hub/internal/middleware"
	"chat-hub/internal/repositories"
	"chat-hub/internal/telemetry"
)

// TokenIssuer creates login tokens.
type TokenIssuer interface {
	CreateToken(userID, username string) (string, error)
}

// AuthHandler serves registration and login.
type AuthHandler struct {
	users  repositories.UserRepository
	tokens TokenIssuer
	audit  *telemetry.AuditEmitter
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(users repositories.UserRepository, tokens TokenIssuer, audit *telemetry.AuditEmitter) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, audit: audit}
}

type credentials struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		jww.ERROR.Printf("hash password: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register user"})
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), strings.TrimSpace(req.Username), hash)
	if err != nil {
		if errors.Is(err, repositories.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			return
		}
		jww.ERROR.Printf("create user: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register user"})
		return
	}

	c.Set(middleware.UserIDKey, user.ID)
	emitAudit(c, h.audit, "INFO", "register", "user registered")
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.users.GetUserByUsername(c.Request.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			emitAudit(c, h.audit, "WARN", "login_failed", "unknown username")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		jww.ERROR.Printf("load user %q: %v", req.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not log in"})
		return
	}

	c.Set(middleware.UserIDKey, user.ID)
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		emitAudit(c, h.audit, "WARN", "login_failed", "wrong password")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.tokens.CreateToken(user.ID, user.Username)
	if err != nil {
		jww.ERROR.Printf("issue token for %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not log in"})
		return
	}

	emitAudit(c, h.audit, "INFO", "login", "user logged in")
	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}
