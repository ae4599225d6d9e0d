package api

import (
	"strings"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

const actorKey = "actor"

// authMiddleware requires a valid Bearer access token and stores the caller on the context
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			h.respondError(c, service.UnauthorizedError("missing bearer token"))
			return
		}

		actor, err := h.svc.Auth.Authenticate(strings.TrimSpace(token))
		if err != nil {
			h.respondError(c, err)
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// requireAdmin must run after authMiddleware
func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !actorFrom(c).IsAdmin() {
			c.AbortWithStatusJSON(statusFor(service.KindForbidden), gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) service.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(service.Actor); ok {
			return actor
		}
	}
	return service.Actor{}
}
