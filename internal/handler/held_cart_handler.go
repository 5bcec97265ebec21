package handler

import (
	"net/http"

	"retailpos/internal/service"
	"retailpos/pkg/response"

	"github.com/gin-gonic/gin"
)

type HeldCartHandler struct {
	heldCartService service.HeldCartService
	auth            Authorizer
}

func NewHeldCartHandler(heldCartService service.HeldCartService, auth Authorizer) *HeldCartHandler {
	return &HeldCartHandler{heldCartService: heldCartService, auth: auth}
}

func (h *HeldCartHandler) RegisterRoutes(router *gin.RouterGroup) {
	carts := router.Group("/api/held-carts")
	carts.Use(h.auth.RequireRole())
	{
		carts.POST("", h.Hold)
		carts.GET("", h.List)
		carts.GET("/count", h.Count)
		carts.POST("/:id/resume", h.Resume)
		carts.DELETE("/:id", h.Discard)
	}
}

// Hold parks the current cart for the caller
// @Summary      Hold cart
// @Tags         held-carts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.HoldCartRequest  true  "Cart"
// @Success      201      {object}  response.Response{data=model.HeldCart}
// @Failure      400      {object}  response.Response
// @Router       /api/held-carts [post]
func (h *HeldCartHandler) Hold(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req service.HoldCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	cart, err := h.heldCartService.Hold(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, cart))
}

// List returns the caller's visible held carts
// @Summary      List held carts
// @Tags         held-carts
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]model.HeldCart}
// @Router       /api/held-carts [get]
func (h *HeldCartHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	carts, err := h.heldCartService.ListActive(c.Request.Context(), actor.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, carts))
}

// Count returns the badge count of the caller's held carts
// @Summary      Count held carts
// @Tags         held-carts
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/held-carts/count [get]
func (h *HeldCartHandler) Count(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	count, err := h.heldCartService.CountActive(c.Request.Context(), actor.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"count": count}))
}

// Resume hands the held cart back to the terminal and deletes it
// @Summary      Resume held cart
// @Tags         held-carts
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Held cart ID"
// @Success      200  {object}  response.Response{data=object}
// @Failure      404  {object}  response.Response
// @Router       /api/held-carts/{id}/resume [post]
func (h *HeldCartHandler) Resume(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	cart, err := h.heldCartService.Resume(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"cart":     cart.Lines,
		"customer": cart.Customer,
		"notes":    cart.Notes,
	}))
}

// Discard deletes a held cart
// @Summary      Discard held cart
// @Tags         held-carts
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Held cart ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/held-carts/{id} [delete]
func (h *HeldCartHandler) Discard(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.heldCartService.Discard(c.Request.Context(), actor, id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, nil))
}
