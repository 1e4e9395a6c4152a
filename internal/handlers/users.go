package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"imagehub/internal/middleware"
	"imagehub/internal/service"
)

func (h HandlerSet) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		abortJSON(c, http.StatusUnauthorized, "unauthorized", codeUnauthorized)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}

type updateMeRequest struct {
	Email    *string `json:"email"`
	Username *string `json:"username"`
}

func (h HandlerSet) UpdateMe(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		abortJSON(c, http.StatusUnauthorized, "unauthorized", codeUnauthorized)
		return
	}
	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	updated, err := h.users.UpdateProfile(c.Request.Context(), user.ID, service.ProfileUpdate{
		Email:    req.Email,
		Username: req.Username,
	})
	if err != nil {
		h.respondUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(updated)})
}

type createUserRequest struct {
	Email               string `json:"email" binding:"required"`
	Username            string `json:"username" binding:"required"`
	Password            string `json:"password" binding:"required"`
	IsAdmin             bool   `json:"isAdmin"`
	ForcePasswordChange bool   `json:"forcePasswordChange"`
}

func (h HandlerSet) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.users.Create(c.Request.Context(), service.CreateUserInput{
		Email:               req.Email,
		Username:            req.Username,
		Password:            req.Password,
		IsAdmin:             req.IsAdmin,
		ForcePasswordChange: req.ForcePasswordChange,
	})
	if err != nil {
		h.respondUserError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": newUserResponse(user)})
}

func (h HandlerSet) ListUsers(c *gin.Context) {
	limit, offset := pagination(c)
	users, err := h.users.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondUserError(c, err)
		return
	}
	items := make([]userResponse, 0, len(users))
	for _, u := range users {
		items = append(items, newUserResponse(u))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type flagRequest struct {
	Value *bool `json:"value" binding:"required"`
}

func (h HandlerSet) SetSuperuser(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.users.SetSuperuser(c.Request.Context(), actor, c.Param("id"), *req.Value)
	if err != nil {
		h.respondUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}

func (h HandlerSet) SetLocked(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.users.SetLocked(c.Request.Context(), actor, c.Param("id"), *req.Value)
	if err != nil {
		h.respondUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}
