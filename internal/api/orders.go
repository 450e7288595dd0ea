package api

import (
	"net/http"

	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// createOrder handles order creation. A replayed Idempotency-Key returns
// the original order with the same status code.
func (h *Handler) createOrder(c *gin.Context) {
	p := principal(c)
	if err := service.Authorize(p, service.Authenticated()); err != nil {
		respondError(c, "API_ORDERS_POST", err)
		return
	}

	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, "API_ORDERS_POST", bindError(err))
		return
	}
	cart, err := req.Cart()
	if err != nil {
		respondError(c, "API_ORDERS_POST", err)
		return
	}

	order, replayed, err := h.orders.PlaceOrder(c.Request.Context(), p, cart, c.GetHeader("Idempotency-Key"))
	if err != nil {
		respondError(c, "API_ORDERS_POST", err)
		return
	}

	if replayed {
		c.Header("Idempotent-Replayed", "true")
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, "API_ORDERS_GET", err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, "API_ORDERS_ID_GET", err)
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), principal(c), id)
	if err != nil {
		respondError(c, "API_ORDERS_ID_GET", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	p := principal(c)
	if err := service.Authorize(p, service.AdminRole()); err != nil {
		respondError(c, "API_ORDERS_ID_PUT", err)
		return
	}

	id, err := pathID(c)
	if err != nil {
		respondError(c, "API_ORDERS_ID_PUT", err)
		return
	}

	var req service.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, "API_ORDERS_ID_PUT", bindError(err))
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), p, id, models.OrderStatus(req.Status))
	if err != nil {
		respondError(c, "API_ORDERS_ID_PUT", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) listAllOrders(c *gin.Context) {
	orders, err := h.orders.ListAllOrders(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, "API_ADMIN_ORDERS_GET", err)
		return
	}
	c.JSON(http.StatusOK, orders)
}
