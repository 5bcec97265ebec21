package handler

import (
	"net/http"

	"retailpos/internal/service"
	"retailpos/pkg/pagination"
	"retailpos/pkg/response"

	"github.com/gin-gonic/gin"
)

type PurchaseHandler struct {
	purchaseService service.PurchaseService
	auth            Authorizer
}

func NewPurchaseHandler(purchaseService service.PurchaseService, auth Authorizer) *PurchaseHandler {
	return &PurchaseHandler{purchaseService: purchaseService, auth: auth}
}

func (h *PurchaseHandler) RegisterRoutes(router *gin.RouterGroup) {
	invoices := router.Group("/api/purchase-invoices")
	invoices.Use(h.auth.RequireRole(stockManagers...))
	{
		invoices.POST("", h.ReceiveInvoice)
		invoices.GET("", h.ListInvoices)
		invoices.GET("/:invoice_number", h.GetInvoice)
	}
}

// ReceiveInvoice books a supplier invoice into stock
// @Summary      Receive purchase invoice
// @Description  Increments stock, records purchase movements and persists the invoice as one unit
// @Tags         purchases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ReceiveInvoiceRequest  true  "Invoice"
// @Success      201      {object}  response.Response{data=model.PurchaseInvoice}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/purchase-invoices [post]
func (h *PurchaseHandler) ReceiveInvoice(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req service.ReceiveInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	invoice, err := h.purchaseService.ReceiveInvoice(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// GetInvoice returns one purchase invoice with its items
// @Summary      Get purchase invoice
// @Tags         purchases
// @Security     BearerAuth
// @Produce      json
// @Param        invoice_number  path      string  true  "Invoice number"
// @Success      200             {object}  response.Response{data=model.PurchaseInvoice}
// @Failure      404             {object}  response.Response
// @Router       /api/purchase-invoices/{invoice_number} [get]
func (h *PurchaseHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.purchaseService.GetByNumber(c.Request.Context(), c.Param("invoice_number"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// ListInvoices lists purchase invoices newest first
// @Summary      List purchase invoices
// @Tags         purchases
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "draft, completed or cancelled"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=object}
// @Router       /api/purchase-invoices [get]
func (h *PurchaseHandler) ListInvoices(c *gin.Context) {
	p := pagination.Parse(c)
	invoices, total, err := h.purchaseService.List(c.Request.Context(), c.Query("status"), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(invoices, total, p)))
}
