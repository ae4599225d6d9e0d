package api

import (
	"net/http"

	"storefront/internal/validation"

	"github.com/gin-gonic/gin"
)

func (h *Handler) createCart(c *gin.Context) {
	var req validation.CartRequest
	if !h.bind(c, &req) {
		return
	}

	cart, err := h.svc.Carts.CreateCart(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cart)
}

func (h *Handler) listCarts(c *gin.Context) {
	carts, err := h.svc.Carts.ListCarts(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, carts)
}

func (h *Handler) getCart(c *gin.Context) {
	cart, err := h.svc.Carts.GetCart(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// replaceCartItems swaps the whole item list; an empty list empties the cart
func (h *Handler) replaceCartItems(c *gin.Context) {
	var req validation.CartRequest
	if !h.bind(c, &req) {
		return
	}

	cart, err := h.svc.Carts.ReplaceItems(c.Request.Context(), actorFrom(c), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) deleteCart(c *gin.Context) {
	if err := h.svc.Carts.DeleteCart(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart deleted"})
}
