package api

import (
	"net/http"

	"storefront/internal/validation"

	"github.com/gin-gonic/gin"
)

const idempotencyHeader = "Idempotency-Key"

// createOrder handles order creation; a replayed idempotency key answers 200 with the earlier order
func (h *Handler) createOrder(c *gin.Context) {
	var req validation.CreateOrderRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.svc.Orders.CreateOrder(c.Request.Context(), actorFrom(c), &req, c.GetHeader(idempotencyHeader))
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// getOrder handles get order requests
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.svc.Orders.GetOrder(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.svc.Orders.ListOrders(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) updateOrder(c *gin.Context) {
	var req validation.UpdateOrderRequest
	if !h.bind(c, &req) {
		return
	}

	order, err := h.svc.Orders.UpdateOrder(c.Request.Context(), actorFrom(c), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) deleteOrder(c *gin.Context) {
	if err := h.svc.Orders.DeleteOrder(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order deleted"})
}
