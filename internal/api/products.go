package api

import (
	"net/http"

	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/validation"

	"github.com/gin-gonic/gin"
)

type listProductsQuery struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Category string `form:"category"`
}

func (h *Handler) listProducts(c *gin.Context) {
	var q listProductsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.respondError(c, service.ValidationError("invalid query parameters", validation.FieldErrors(err)))
		return
	}

	page, err := h.svc.Products.ListProducts(c.Request.Context(), store.ProductFilter{
		Category: q.Category,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.svc.Products.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) createProduct(c *gin.Context) {
	var req validation.ProductRequest
	if !h.bind(c, &req) {
		return
	}

	product, err := h.svc.Products.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	var req validation.ProductRequest
	if !h.bind(c, &req) {
		return
	}

	product, err := h.svc.Products.UpdateProduct(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.svc.Products.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}
