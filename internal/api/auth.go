package api

import (
	"net/http"

	"storefront/internal/validation"

	"github.com/gin-gonic/gin"
)

func (h *Handler) register(c *gin.Context) {
	var req validation.RegisterRequest
	if !h.bind(c, &req) {
		return
	}

	user, err := h.svc.Auth.Register(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) login(c *gin.Context) {
	var req validation.LoginRequest
	if !h.bind(c, &req) {
		return
	}

	tokens, err := h.svc.Auth.Login(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *Handler) refreshToken(c *gin.Context) {
	var req validation.RefreshTokenRequest
	if !h.bind(c, &req) {
		return
	}

	tokens, err := h.svc.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *Handler) logout(c *gin.Context) {
	var req validation.RefreshTokenRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.svc.Auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
