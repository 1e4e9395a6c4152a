package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"imagehub/internal/middleware"
	"imagehub/internal/security"
	"imagehub/internal/service"
)

// Error codes returned alongside the message.
const (
	codeInvalidCredentials = "AUTH_001"
	codeForbidden          = "AUTH_003"
	codeUnauthorized       = "AUTH_004"
	codeAccountDisabled    = "AUTH_005"

	codeUserExists   = "USER_001"
	codeUserNotFound = "USER_002"
	codeInvalidUser  = "USER_003"

	codeAuthorExists   = "AUTHOR_001"
	codeAuthorNotFound = "AUTHOR_002"
	codeInvalidAuthor  = "AUTHOR_003"

	codeUploadFailed  = "IMG_001"
	codeInvalidImage  = "IMG_002"
	codeImageNotFound = "IMG_003"

	codeValidation = "GEN_001"
	codeInternal   = "GEN_003"
	codeNotFound   = "GEN_004"
	codeConflict   = "GEN_005"
)

// errorCodes picks the codes for the three entity-specific failures.
type errorCodes struct {
	invalid  string
	notFound string
	conflict string
}

var (
	genericCodes = errorCodes{invalid: codeValidation, notFound: codeNotFound, conflict: codeConflict}
	imageCodes   = errorCodes{invalid: codeInvalidImage, notFound: codeImageNotFound, conflict: codeConflict}
	userCodes    = errorCodes{invalid: codeInvalidUser, notFound: codeUserNotFound, conflict: codeUserExists}
	authorCodes  = errorCodes{invalid: codeInvalidAuthor, notFound: codeAuthorNotFound, conflict: codeAuthorExists}
)

func abortJSON(c *gin.Context, status int, message, code string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}

func badRequest(c *gin.Context, err error) {
	abortJSON(c, http.StatusBadRequest, err.Error(), codeValidation)
}

func (h HandlerSet) respondError(c *gin.Context, err error) {
	h.respond(c, err, genericCodes)
}

func (h HandlerSet) respondImageError(c *gin.Context, err error) {
	h.respond(c, err, imageCodes)
}

func (h HandlerSet) respondUserError(c *gin.Context, err error) {
	h.respond(c, err, userCodes)
}

func (h HandlerSet) respondAuthorError(c *gin.Context, err error) {
	h.respond(c, err, authorCodes)
}

// respond maps a service error to its HTTP status. Unexpected errors are
// logged sanitized and answered with a generic body.
func (h HandlerSet) respond(c *gin.Context, err error, codes errorCodes) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		abortJSON(c, http.StatusBadRequest, verr.Error(), codes.invalid)
	case errors.Is(err, service.ErrNotFound):
		abortJSON(c, http.StatusNotFound, err.Error(), codes.notFound)
	case errors.Is(err, service.ErrConflict):
		abortJSON(c, http.StatusConflict, err.Error(), codes.conflict)
	case errors.Is(err, service.ErrInvalidCredentials):
		abortJSON(c, http.StatusUnauthorized, "invalid credentials", codeInvalidCredentials)
	case errors.Is(err, service.ErrUnauthorized):
		abortJSON(c, http.StatusUnauthorized, "unauthorized", codeUnauthorized)
	case errors.Is(err, service.ErrAccountLocked), errors.Is(err, service.ErrAccountInactive):
		abortJSON(c, http.StatusForbidden, err.Error(), codeAccountDisabled)
	case errors.Is(err, service.ErrForbidden):
		abortJSON(c, http.StatusForbidden, "forbidden", codeForbidden)
	default:
		event := h.log.Error().
			Str("error", security.Sanitize(err.Error())).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("request_id", middleware.RequestIDFrom(c))
		if user, ok := middleware.CurrentUser(c); ok {
			event = event.Str("user_id", user.ID)
		}
		event.Msg("request failed")
		abortJSON(c, http.StatusInternalServerError, "internal_server_error", codeInternal)
	}
}
