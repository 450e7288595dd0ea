package api

import (
	"net/http"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listAddresses(c *gin.Context) {
	addrs, err := h.addresses.List(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, "API_ADDRESSES_GET", err)
		return
	}
	c.JSON(http.StatusOK, addrs)
}

func (h *Handler) createAddress(c *gin.Context) {
	p := principal(c)
	if err := service.Authorize(p, service.Authenticated()); err != nil {
		respondError(c, "API_ADDRESSES_POST", err)
		return
	}

	var req service.CreateAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, "API_ADDRESSES_POST", bindError(err))
		return
	}

	addr, err := h.addresses.Create(c.Request.Context(), p, &req)
	if err != nil {
		respondError(c, "API_ADDRESSES_POST", err)
		return
	}
	c.JSON(http.StatusCreated, addr)
}

func (h *Handler) getAddress(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, "API_ADDRESSES_ID_GET", err)
		return
	}

	addr, err := h.addresses.Get(c.Request.Context(), principal(c), id)
	if err != nil {
		respondError(c, "API_ADDRESSES_ID_GET", err)
		return
	}
	c.JSON(http.StatusOK, addr)
}

func (h *Handler) updateAddress(c *gin.Context) {
	p := principal(c)
	if err := service.Authorize(p, service.Authenticated()); err != nil {
		respondError(c, "API_ADDRESSES_ID_PUT", err)
		return
	}

	id, err := pathID(c)
	if err != nil {
		respondError(c, "API_ADDRESSES_ID_PUT", err)
		return
	}

	var req service.UpdateAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, "API_ADDRESSES_ID_PUT", bindError(err))
		return
	}

	addr, err := h.addresses.Update(c.Request.Context(), p, id, &req)
	if err != nil {
		respondError(c, "API_ADDRESSES_ID_PUT", err)
		return
	}
	c.JSON(http.StatusOK, addr)
}

func (h *Handler) deleteAddress(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, "API_ADDRESSES_ID_DELETE", err)
		return
	}

	if err := h.addresses.Delete(c.Request.Context(), principal(c), id); err != nil {
		respondError(c, "API_ADDRESSES_ID_DELETE", err)
		return
	}
	c.Status(http.StatusNoContent)
}
