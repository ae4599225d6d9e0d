package api

import (
	"net/http"

	"storefront/internal/validation"

	"github.com/gin-gonic/gin"
)

// Cards and addresses share one shape: owner-scoped CRUD plus a default flag.

func (h *Handler) createCard(c *gin.Context) {
	var req validation.CardRequest
	if !h.bind(c, &req) {
		return
	}

	card, err := h.svc.Cards.CreateCard(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, card)
}

func (h *Handler) listCards(c *gin.Context) {
	cards, err := h.svc.Cards.ListCards(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cards)
}

func (h *Handler) getCard(c *gin.Context) {
	card, err := h.svc.Cards.GetCard(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *Handler) updateCard(c *gin.Context) {
	var req validation.CardRequest
	if !h.bind(c, &req) {
		return
	}

	card, err := h.svc.Cards.UpdateCard(c.Request.Context(), actorFrom(c), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *Handler) setDefaultCard(c *gin.Context) {
	card, err := h.svc.Cards.SetDefaultCard(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *Handler) deleteCard(c *gin.Context) {
	if err := h.svc.Cards.DeleteCard(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Card deleted"})
}

func (h *Handler) createAddress(c *gin.Context) {
	var req validation.AddressRequest
	if !h.bind(c, &req) {
		return
	}

	address, err := h.svc.Addresses.CreateAddress(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, address)
}

func (h *Handler) listAddresses(c *gin.Context) {
	addresses, err := h.svc.Addresses.ListAddresses(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, addresses)
}

func (h *Handler) getAddress(c *gin.Context) {
	address, err := h.svc.Addresses.GetAddress(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, address)
}

func (h *Handler) updateAddress(c *gin.Context) {
	var req validation.AddressRequest
	if !h.bind(c, &req) {
		return
	}

	address, err := h.svc.Addresses.UpdateAddress(c.Request.Context(), actorFrom(c), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, address)
}

func (h *Handler) setDefaultAddress(c *gin.Context) {
	address, err := h.svc.Addresses.SetDefaultAddress(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, address)
}

func (h *Handler) deleteAddress(c *gin.Context) {
	if err := h.svc.Addresses.DeleteAddress(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Address deleted"})
}
