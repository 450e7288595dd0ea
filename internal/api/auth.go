package api

import (
	"net/http"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, "API_AUTH_REGISTER", bindError(err))
		return
	}

	user, err := h.auth.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "API_AUTH_REGISTER", err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, "API_AUTH_LOGIN", bindError(err))
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "API_AUTH_LOGIN", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.auth.Me(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, "API_AUTH_ME", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.auth.ListUsers(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, "API_ADMIN_USERS_GET", err)
		return
	}
	c.JSON(http.StatusOK, users)
}
