package api

import (
	"net/http"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type productDetailsRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required,min=1,max=100"`
}

func (h *Handler) listProducts(c *gin.Context) {
	var req service.ProductListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, "API_PRODUCTS_GET", bindError(err))
		return
	}

	page, err := h.catalog.ListProducts(c.Request.Context(), req)
	if err != nil {
		respondError(c, "API_PRODUCTS_GET", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) getProduct(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, "API_PRODUCTS_ID_GET", err)
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, "API_PRODUCTS_ID_GET", err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// productDetails returns the products matching a list of ids; unknown ids
// are skipped.
func (h *Handler) productDetails(c *gin.Context) {
	var req productDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, "API_PRODUCTS_DETAILS_POST", bindError(err))
		return
	}

	products, err := h.catalog.GetProductsByIDs(c.Request.Context(), req.IDs)
	if err != nil {
		respondError(c, "API_PRODUCTS_DETAILS_POST", err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) createProduct(c *gin.Context) {
	p := principal(c)
	if err := service.Authorize(p, service.AdminRole()); err != nil {
		respondError(c, "API_PRODUCTS_POST", err)
		return
	}

	var req service.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, "API_PRODUCTS_POST", bindError(err))
		return
	}

	product, err := h.catalog.CreateProduct(c.Request.Context(), p, &req)
	if err != nil {
		respondError(c, "API_PRODUCTS_POST", err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	p := principal(c)
	if err := service.Authorize(p, service.AdminRole()); err != nil {
		respondError(c, "API_PRODUCTS_ID_PUT", err)
		return
	}

	id, err := pathID(c)
	if err != nil {
		respondError(c, "API_PRODUCTS_ID_PUT", err)
		return
	}

	var patch service.ProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, "API_PRODUCTS_ID_PUT", bindError(err))
		return
	}

	product, err := h.catalog.UpdateProduct(c.Request.Context(), p, id, &patch)
	if err != nil {
		respondError(c, "API_PRODUCTS_ID_PUT", err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, "API_PRODUCTS_ID_DELETE", err)
		return
	}

	if err := h.catalog.DeleteProduct(c.Request.Context(), principal(c), id); err != nil {
		respondError(c, "API_PRODUCTS_ID_DELETE", err)
		return
	}
	c.Status(http.StatusNoContent)
}
