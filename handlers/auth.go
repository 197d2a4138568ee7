package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/AbiyasX/FirebaseActt/internal/auth"
	"github.com/AbiyasX/FirebaseActt/internal/config"
	"github.com/AbiyasX/FirebaseActt/internal/sessions"
	"github.com/AbiyasX/FirebaseActt/internal/tokens"
	"github.com/AbiyasX/FirebaseActt/internal/users"
	"github.com/AbiyasX/FirebaseActt/pkg/logger"
	"github.com/gin-gonic/gin"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// LoginRequest is the email/password sign-in body.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name"`
	Password string `json:"password" binding:"required"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	cfg         *config.Config
	login       *auth.Login
	accounts    *users.Service
	sessionsSvc *sessions.Service
}

// NewAuthHandler signs in through provider. accounts may be nil, in which
// case registration is not offered.
func NewAuthHandler(cfg *config.Config, provider auth.Provider, accounts *users.Service, s *sessions.Service) *AuthHandler {
	return &AuthHandler{cfg: cfg, login: auth.NewLogin(provider), accounts: accounts, sessionsSvc: s}
}

// Register routes under /auth
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/auth")
	a.POST("/login", h.Login)
	if h.accounts != nil {
		a.POST("/register", h.SignUp)
	}
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", h.Logout)
}

func (h *AuthHandler) accessTTL() time.Duration {
	if h.cfg.JWT.AccessTokenTTL > 0 {
		return h.cfg.JWT.AccessTokenTTL
	}
	return defaultAccessTTL
}

func (h *AuthHandler) refreshTTL() time.Duration {
	if h.cfg.JWT.RefreshTokenTTL > 0 {
		return h.cfg.JWT.RefreshTokenTTL
	}
	return defaultRefreshTTL
}

// Login signs in with email and password. Failures answer 401 with the
// message for the failure class; a concurrent attempt for the same email
// answers 429.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.login.Submit(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInFlight) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error(), "code": auth.Code(err)})
		return
	}
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.Message(err), "code": auth.Code(err)})
		return
	}

	access, err := tokens.GenerateAccessToken(h.cfg, id, h.accessTTL())
	if err != nil {
		logger.Errorf("failed to create access token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	rft, err := h.sessionsSvc.CreateSession(c.Request.Context(), id.ID, id.Email, h.refreshTTL())
	if err != nil {
		logger.Errorf("failed to create session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  access,
		"refresh_token": rft,
		"user":          id,
		"expires_in":    int(h.accessTTL().Seconds()),
	})
}

// SignUp creates a local account.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a, err := h.accounts.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	switch {
	case errors.Is(err, users.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, users.ErrInvalidEmail), errors.Is(err, users.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		logger.Errorf("register %s: %v", req.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": a})
}

// Refresh accepts a refresh token and returns a new access token
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := h.sessionsSvc.ValidateRefresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "validation failed"})
		return
	}
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	access, err := tokens.GenerateAccessToken(h.cfg, auth.NewIdentity(sess.UserID, sess.Email), h.accessTTL())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": access, "expires_in": int(h.accessTTL().Seconds())})
}

// Logout invalidates the refresh token and revokes the bearer access token
// when one is sent. With everywhere set, every session of the account ends.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
		Everywhere   bool   `json:"everywhere"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if header := c.GetHeader("Authorization"); header != "" {
		var at string
		if n, _ := fmt.Sscanf(header, "Bearer %s", &at); n == 1 {
			if exp, err := tokens.ExpiresAt(at); err == nil {
				if err := sessions.RevokeUntil(c.Request.Context(), at, exp); err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to blacklist access token"})
					return
				}
			}
		}
	}

	if req.Everywhere {
		h.logoutEverywhere(c, req.RefreshToken)
		return
	}
	if err := h.sessionsSvc.DeleteRefresh(c.Request.Context(), req.RefreshToken); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AuthHandler) logoutEverywhere(c *gin.Context, refresh string) {
	sess, err := h.sessionsSvc.ValidateRefresh(c.Request.Context(), refresh)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "validation failed"})
		return
	}
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	n, err := h.sessionsSvc.RevokeUser(c.Request.Context(), sess.UserID)
	if errors.Is(err, sessions.ErrRevokeUnsupported) {
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		logger.Errorf("revoke sessions of %s: %v", sess.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove sessions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out", "sessions": n})
}
