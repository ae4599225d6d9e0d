package api

import (
	"errors"
	"net/http"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindValidation, service.KindInsufficientStock,
		service.KindInvalidCredentials, service.KindInvalidRefreshToken:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError is the single place service errors become HTTP responses.
// Internal errors are logged and never shown to the client.
func (h *Handler) respondError(c *gin.Context, err error) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) && svcErr.Kind != service.KindInternal {
		body := gin.H{"error": svcErr.Message}
		if svcErr.ID != "" {
			body["details"] = gin.H{"kind": svcErr.Kind.String(), "id": svcErr.ID}
		}
		if len(svcErr.Fields) > 0 {
			body["fields"] = svcErr.Fields
		}
		c.AbortWithStatusJSON(statusFor(svcErr.Kind), body)
		return
	}

	_ = c.Error(err)
	h.logger.Error("Request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
