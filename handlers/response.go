package handlers

import (
	"errors"
	"net/http"

	"roofcrm-backend/models"
	"roofcrm-backend/service"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func respondInternal(c *gin.Context, logger *zap.Logger, code string, err error) {
	logger.Error("Request failed",
		zap.String("route", c.FullPath()),
		zap.String("code", code),
		zap.Error(err),
	)
	reportError(c, err)
	respondError(c, http.StatusInternalServerError, code, err.Error())
}

// respondServiceError maps service errors to their HTTP status. Anything unrecognised is a 500
// reported with fallbackCode.
func respondServiceError(c *gin.Context, logger *zap.Logger, err error, fallbackCode string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, service.ErrNoFileURL):
		respondError(c, http.StatusNotFound, "NO_FILE_URL", err.Error())
	case errors.Is(err, service.ErrNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		respondError(c, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, service.ErrAlreadyResolved):
		respondError(c, http.StatusBadRequest, "ALREADY_RESOLVED", err.Error())
	case errors.Is(err, service.ErrConflict):
		respondError(c, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error())
	case errors.Is(err, service.ErrDriveDisabled):
		respondError(c, http.StatusBadRequest, "DRIVE_DISABLED", err.Error())
	default:
		respondInternal(c, logger, fallbackCode, err)
	}
}

// reportError sends err to Sentry with the request attached. It is a no-op when Sentry is not initialised.
func reportError(c *gin.Context, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(c.Request)
		scope.SetTag("route", c.FullPath())
		if id, ok := c.Get(requestIDKey); ok {
			scope.SetTag("request_id", id.(string))
		}
		if user := currentUser(c); user != nil {
			scope.SetUser(sentry.User{ID: user.ID.String(), Email: user.Email})
		}
		sentry.CaptureException(err)
	})
}

func parseIDParam(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+label+" ID format")
		return uuid.Nil, false
	}
	return id, true
}

func countFailed(results []models.DispatchResult) int {
	n := 0
	for _, r := range results {
		if !r.Success {
			n++
		}
	}
	return n
}
