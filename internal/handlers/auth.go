package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"imagehub/internal/middleware"
	"imagehub/internal/service"
)

const refreshCookie = "refresh_token"

type authResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	CSRFToken    string       `json:"csrfToken"`
	SessionID    string       `json:"sessionId"`
	DeviceID     string       `json:"deviceId"`
	ExpiresAt    time.Time    `json:"expiresAt"`
	User         userResponse `json:"user"`
}

type loginRequest struct {
	Login      string `json:"login" binding:"required"`
	Password   string `json:"password" binding:"required"`
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
}

// Login accepts a username or an email address in "login".
func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Login:      req.Login,
		Password:   req.Password,
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.GetHeader("User-Agent"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.sendAuthResponse(c, result)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh takes the token from the body or, for browsers, the refresh cookie.
func (h HandlerSet) Refresh(c *gin.Context) {
	var req refreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	if req.RefreshToken == "" {
		req.RefreshToken, _ = c.Cookie(refreshCookie)
	}

	result, err := h.auth.Refresh(c.Request.Context(), service.RefreshInput{
		RefreshToken: req.RefreshToken,
		IPAddress:    c.ClientIP(),
		UserAgent:    c.GetHeader("User-Agent"),
	})
	if err != nil {
		h.clearAuthCookies(c)
		h.respondError(c, err)
		return
	}

	h.sendAuthResponse(c, result)
}

func (h HandlerSet) Logout(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		abortJSON(c, http.StatusUnauthorized, "unauthorized", codeUnauthorized)
		return
	}

	if err := h.auth.Logout(c.Request.Context(), claims.SessionID); err != nil {
		h.respondError(c, err)
		return
	}

	h.clearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

// CSRFToken issues a fresh CSRF token for the current session.
func (h HandlerSet) CSRFToken(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		abortJSON(c, http.StatusUnauthorized, "unauthorized", codeUnauthorized)
		return
	}
	token, err := h.auth.IssueCSRF(c.Request.Context(), claims.SessionID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"csrfToken": token})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

func (h HandlerSet) ChangePassword(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		abortJSON(c, http.StatusUnauthorized, "unauthorized", codeUnauthorized)
		return
	}
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.users.ChangePassword(c.Request.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type sessionResponse struct {
	ID         string    `json:"id"`
	DeviceID   string    `json:"deviceId"`
	DeviceName string    `json:"deviceName"`
	IPAddress  string    `json:"ipAddress"`
	UserAgent  string    `json:"userAgent"`
	LastSeenAt time.Time `json:"lastSeenAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Current    bool      `json:"current"`
}

func (h HandlerSet) ListSessions(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		abortJSON(c, http.StatusUnauthorized, "unauthorized", codeUnauthorized)
		return
	}
	claims, _ := middleware.CurrentClaims(c)

	sessions, err := h.auth.ListSessions(c.Request.Context(), user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, sessionResponse{
			ID:         session.ID,
			DeviceID:   session.DeviceID,
			DeviceName: session.DeviceName,
			IPAddress:  session.IPAddress,
			UserAgent:  session.UserAgent,
			LastSeenAt: session.LastSeenAt,
			ExpiresAt:  session.ExpiresAt,
			Current:    session.ID == claims.SessionID,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": resp,
	})
}

func (h HandlerSet) RevokeSession(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		abortJSON(c, http.StatusUnauthorized, "unauthorized", codeUnauthorized)
		return
	}
	claims, _ := middleware.CurrentClaims(c)

	sessionID := c.Param("id")
	if sessionID == claims.SessionID {
		abortJSON(c, http.StatusBadRequest, "cannot_revoke_current_session", codeValidation)
		return
	}

	if err := h.auth.RevokeSession(c.Request.Context(), user.ID, sessionID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type resetRequest struct {
	Email string `json:"email" binding:"required"`
}

// RequestPasswordReset answers the same way whether or not the address is
// registered.
func (h HandlerSet) RequestPasswordReset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.users.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "if the address is registered, a reset link has been sent"})
}

type resetConfirmRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h HandlerSet) ConfirmPasswordReset(c *gin.Context) {
	var req resetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.users.ConfirmPasswordReset(c.Request.Context(), req.Token, req.Password); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

func (h HandlerSet) sendAuthResponse(c *gin.Context, result service.AuthResult) {
	h.setAuthCookies(c, result)
	c.JSON(http.StatusOK, authResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		CSRFToken:    result.CSRFToken,
		SessionID:    result.SessionID,
		DeviceID:     result.DeviceID,
		ExpiresAt:    result.ExpiresAt,
		User:         newUserResponse(result.User),
	})
}

func (h HandlerSet) setAuthCookies(c *gin.Context, result service.AuthResult) {
	secure := h.cfg != nil && h.cfg.Security.SecureCookies
	accessTTL := 15 * time.Minute
	if h.cfg != nil && h.cfg.Security.JWTAccessTTL > 0 {
		accessTTL = h.cfg.Security.JWTAccessTTL
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessCookie, result.AccessToken, int(accessTTL.Seconds()), "/api", "", secure, true)
	c.SetCookie(refreshCookie, result.RefreshToken, int(h.auth.SessionTTL().Seconds()), "/api/v1/auth", "", secure, true)
}

func (h HandlerSet) clearAuthCookies(c *gin.Context) {
	secure := h.cfg != nil && h.cfg.Security.SecureCookies
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessCookie, "", -1, "/api", "", secure, true)
	c.SetCookie(refreshCookie, "", -1, "/api/v1/auth", "", secure, true)
}
