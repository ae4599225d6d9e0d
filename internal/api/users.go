package api

import (
	"net/http"

	"storefront/internal/validation"

	"github.com/gin-gonic/gin"
)

// me returns the caller's own profile
func (h *Handler) me(c *gin.Context) {
	user, err := h.svc.Users.GetUser(c.Request.Context(), actorFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) createUser(c *gin.Context) {
	var req validation.CreateUserRequest
	if !h.bind(c, &req) {
		return
	}

	user, err := h.svc.Users.CreateUser(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.svc.Users.ListUsers(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) getUser(c *gin.Context) {
	user, err := h.svc.Users.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) updateUser(c *gin.Context) {
	var req validation.UpdateUserRequest
	if !h.bind(c, &req) {
		return
	}

	user, err := h.svc.Users.UpdateUser(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) deleteUser(c *gin.Context) {
	if err := h.svc.Users.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}
