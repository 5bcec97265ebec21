package handler

import (
	"net/http"

	"retailpos/internal/service"
	"retailpos/pkg/pagination"
	"retailpos/pkg/response"

	"github.com/gin-gonic/gin"
)

type SaleHandler struct {
	saleService service.SaleService
	auth        Authorizer
}

func NewSaleHandler(saleService service.SaleService, auth Authorizer) *SaleHandler {
	return &SaleHandler{saleService: saleService, auth: auth}
}

func (h *SaleHandler) RegisterRoutes(router *gin.RouterGroup) {
	sales := router.Group("/api/sales")
	sales.Use(h.auth.RequireRole())
	{
		sales.POST("", h.CompleteSale)
		sales.GET("", h.ListSales)
		sales.GET("/:transaction_no", h.GetSale)
	}
	router.POST("/api/held-carts/:id/checkout", h.auth.RequireRole(), h.CompleteHeldSale)
}

// CompleteSale checks out a cart at the caller's branch
// @Summary      Complete sale
// @Description  Decrements stock, records sale movements and persists the sale as one unit
// @Tags         sales
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CompleteSaleRequest  true  "Cart"
// @Success      201      {object}  response.Response{data=model.SaleTransaction}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/sales [post]
func (h *SaleHandler) CompleteSale(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req service.CompleteSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	sale, err := h.saleService.CompleteSale(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, sale))
}

// CompleteHeldSale resumes a held cart straight into checkout
// @Summary      Checkout held cart
// @Description  Resumes the held cart and completes the sale atomically; the cart survives a failed sale
// @Tags         sales
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                           true   "Held cart ID"
// @Param        payload  body      service.CompleteHeldSaleRequest  false  "Payment"
// @Success      201      {object}  response.Response{data=model.SaleTransaction}
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/held-carts/{id}/checkout [post]
func (h *SaleHandler) CompleteHeldSale(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req service.CompleteHeldSaleRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request payload: "+err.Error())
			return
		}
	}

	sale, err := h.saleService.CompleteHeldSale(c.Request.Context(), actor, id, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, sale))
}

// GetSale returns one sale with its items
// @Summary      Get sale
// @Tags         sales
// @Security     BearerAuth
// @Produce      json
// @Param        transaction_no  path      string  true  "Transaction number"
// @Success      200             {object}  response.Response{data=model.SaleTransaction}
// @Failure      404             {object}  response.Response
// @Router       /api/sales/{transaction_no} [get]
func (h *SaleHandler) GetSale(c *gin.Context) {
	sale, err := h.saleService.GetByNo(c.Request.Context(), c.Param("transaction_no"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, sale))
}

// ListSales lists sales newest first
// @Summary      List sales
// @Tags         sales
// @Security     BearerAuth
// @Produce      json
// @Param        branch_id  query     string  false  "Branch filter"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Success      200        {object}  response.Response{data=object}
// @Router       /api/sales [get]
func (h *SaleHandler) ListSales(c *gin.Context) {
	branchID, ok := optionalUUIDQuery(c, "branch_id")
	if !ok {
		return
	}
	filter := ""
	if branchID != nil {
		filter = branchID.String()
	}

	p := pagination.Parse(c)
	sales, total, err := h.saleService.List(c.Request.Context(), filter, p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(sales, total, p)))
}
