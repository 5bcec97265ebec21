package handler

import (
	"net/http"

	"retailpos/internal/service"
	"retailpos/pkg/pagination"
	"retailpos/pkg/response"

	"github.com/gin-gonic/gin"
)

type InventoryHandler struct {
	ledger service.StockLedger
	auth   Authorizer
}

func NewInventoryHandler(ledger service.StockLedger, auth Authorizer) *InventoryHandler {
	return &InventoryHandler{ledger: ledger, auth: auth}
}

func (h *InventoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	stock := router.Group("/api/stock")
	{
		stock.GET("", h.auth.RequireRole(), h.GetQuantity)
		stock.GET("/low", h.auth.RequireRole(), h.LowStock)
		stock.GET("/levels", h.auth.RequireRole(), h.StockLevels)
		stock.GET("/totals", h.auth.RequireRole(), h.StockTotals)
		stock.GET("/reconcile", h.auth.RequireRole(stockManagers...), h.Reconcile)
		stock.GET("/movements", h.auth.RequireRole(), h.ReferenceMovements)
		stock.POST("/movements", h.auth.RequireRole(stockManagers...), h.RecordMovement)
		stock.POST("/transfers", h.auth.RequireRole(stockManagers...), h.Transfer)
	}
	router.GET("/api/products/:id/movements", h.auth.RequireRole(stockManagers...), h.Movements)
}

// GetQuantity returns the current quantity of one stock row
// @Summary      Get stock quantity
// @Description  Advisory read; sales re-check stock when they commit
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        product_id  query     string  true   "Product ID"
// @Param        branch_id   query     string  false  "Branch ID (default: caller's branch)"
// @Success      200         {object}  response.Response{data=object}
// @Router       /api/stock [get]
func (h *InventoryHandler) GetQuantity(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	productID, ok := optionalUUIDQuery(c, "product_id")
	if !ok {
		return
	}
	if productID == nil {
		badRequest(c, "product_id is required")
		return
	}
	branchID, ok := optionalUUIDQuery(c, "branch_id")
	if !ok {
		return
	}
	if branchID == nil {
		branchID = &actor.BranchID
	}

	qty, err := h.ledger.GetQuantity(c.Request.Context(), *productID, *branchID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"product_id": productID,
		"branch_id":  branchID,
		"quantity":   qty,
	}))
}

// ReferenceMovements lists the movements booked by one document
// @Summary      Movements of a document
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        reference_type  query     string  true  "SALE, PURCHASE_INVOICE, TRANSFER or MANUAL"
// @Param        reference_no    query     string  true  "Document number"
// @Success      200             {object}  response.Response{data=[]model.ProductMovement}
// @Router       /api/stock/movements [get]
func (h *InventoryHandler) ReferenceMovements(c *gin.Context) {
	movements, err := h.ledger.ReferenceMovements(c.Request.Context(), c.Query("reference_type"), c.Query("reference_no"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, movements))
}

// LowStock lists rows at or below their product's minimum
// @Summary      Low stock
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        branch_id  query     string  false  "Branch filter"
// @Success      200        {object}  response.Response{data=[]model.LowStockItem}
// @Router       /api/stock/low [get]
func (h *InventoryHandler) LowStock(c *gin.Context) {
	branchID, ok := optionalUUIDQuery(c, "branch_id")
	if !ok {
		return
	}

	items, err := h.ledger.LowStock(c.Request.Context(), branchID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, items))
}

// StockLevels lists stock rows joined with their product and branch
// @Summary      Stock levels
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        q          query     string  false  "Name or SKU substring, or exact barcode"
// @Param        branch_id  query     string  false  "Branch filter"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Success      200        {object}  response.Response{data=object}
// @Router       /api/stock/levels [get]
func (h *InventoryHandler) StockLevels(c *gin.Context) {
	branchID, ok := optionalUUIDQuery(c, "branch_id")
	if !ok {
		return
	}

	p := pagination.Parse(c)
	items, total, err := h.ledger.StockLevels(c.Request.Context(), c.Query("q"), branchID, p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(items, total, p)))
}

// StockTotals lists each product's quantity summed across branches
// @Summary      Stock totals per product
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        q      query     string  false  "Name or SKU substring, or exact barcode"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /api/stock/totals [get]
func (h *InventoryHandler) StockTotals(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.ledger.StockTotals(c.Request.Context(), c.Query("q"), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(items, total, p)))
}

// Movements returns the movement history of a product, newest first
// @Summary      Product movements
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        id         path      string  true   "Product ID"
// @Param        branch_id  query     string  false  "Branch filter"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Success      200        {object}  response.Response{data=object}
// @Router       /api/products/{id}/movements [get]
func (h *InventoryHandler) Movements(c *gin.Context) {
	productID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	branchID, ok := optionalUUIDQuery(c, "branch_id")
	if !ok {
		return
	}

	p := pagination.Parse(c)
	movements, total, err := h.ledger.Movements(c.Request.Context(), productID, branchID, p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(movements, total, p)))
}

// RecordMovement applies a manual adjustment or return
// @Summary      Record manual movement
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ManualMovementRequest  true  "Movement"
// @Success      201      {object}  response.Response{data=model.ProductMovement}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/stock/movements [post]
func (h *InventoryHandler) RecordMovement(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req service.ManualMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	movement, err := h.ledger.RecordManualMovement(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, movement))
}

// Transfer moves stock between branches
// @Summary      Transfer stock
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.TransferRequest  true  "Transfer"
// @Success      201      {object}  response.Response{data=service.TransferResult}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/stock/transfers [post]
func (h *InventoryHandler) Transfer(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req service.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	result, err := h.ledger.Transfer(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// Reconcile compares a stock row with its movement history
// @Summary      Reconcile stock row
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        product_id  query     string  true  "Product ID"
// @Param        branch_id   query     string  true  "Branch ID"
// @Success      200         {object}  response.Response{data=service.Reconciliation}
// @Router       /api/stock/reconcile [get]
func (h *InventoryHandler) Reconcile(c *gin.Context) {
	productID, ok := optionalUUIDQuery(c, "product_id")
	if !ok {
		return
	}
	branchID, ok := optionalUUIDQuery(c, "branch_id")
	if !ok {
		return
	}
	if productID == nil || branchID == nil {
		badRequest(c, "product_id and branch_id are required")
		return
	}

	rec, err := h.ledger.Reconcile(c.Request.Context(), *productID, *branchID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rec))
}
