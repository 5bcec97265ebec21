package handler

import (
	"net/http"
	"strconv"

	"retailpos/internal/model"
	"retailpos/internal/service"
	"retailpos/pkg/response"

	"github.com/gin-gonic/gin"
)

type CatalogHandler struct {
	catalogService service.CatalogService
	auth           Authorizer
}

func NewCatalogHandler(catalogService service.CatalogService, auth Authorizer) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService, auth: auth}
}

func (h *CatalogHandler) RegisterRoutes(router *gin.RouterGroup) {
	products := router.Group("/api/products")
	{
		products.GET("/search", h.auth.RequireRole(), h.SearchProducts)
		products.GET("/barcode/:code", h.auth.RequireRole(), h.FindByBarcode)
		products.GET("/:id", h.auth.RequireRole(), h.GetProduct)
		products.POST("", h.auth.RequireRole(stockManagers...), h.CreateProduct)
		products.PUT("/:id/thresholds", h.auth.RequireRole(stockManagers...), h.UpdateThresholds)
	}
	router.POST("/api/branches", h.auth.RequireRole(model.RoleAdmin), h.CreateBranch)
}

// SearchProducts finds active products for the POS screen
// @Summary      Search products
// @Description  Case-insensitive substring match on name and SKU, exact match on barcode
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Param        q      query     string  false  "Search text"
// @Param        limit  query     int     false  "Max results (default 10)"
// @Success      200    {object}  response.Response{data=[]model.Product}
// @Router       /api/products/search [get]
func (h *CatalogHandler) SearchProducts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	products, err := h.catalogService.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, products))
}

// FindByBarcode resolves a scanned barcode
// @Summary      Find product by barcode
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Param        code  path      string  true  "Barcode"
// @Success      200   {object}  response.Response{data=model.Product}
// @Failure      404   {object}  response.Response
// @Router       /api/products/barcode/{code} [get]
func (h *CatalogHandler) FindByBarcode(c *gin.Context) {
	product, err := h.catalogService.FindByBarcode(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, product))
}

// GetProduct returns one product with its barcodes
// @Summary      Get product
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Product ID"
// @Success      200  {object}  response.Response{data=model.Product}
// @Failure      404  {object}  response.Response
// @Router       /api/products/{id} [get]
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	product, err := h.catalogService.GetProduct(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, product))
}

// CreateProduct introduces a product to every active branch
// @Summary      Create product
// @Tags         catalog
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateProductRequest  true  "Product"
// @Success      201      {object}  response.Response{data=model.Product}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/products [post]
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	product, err := h.catalogService.CreateProduct(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, product))
}

// UpdateThresholds sets a product's min/max stock
// @Summary      Update stock thresholds
// @Tags         catalog
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                           true  "Product ID"
// @Param        payload  body      service.UpdateThresholdsRequest  true  "Thresholds"
// @Success      200      {object}  response.Response{data=model.Product}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/products/{id}/thresholds [put]
func (h *CatalogHandler) UpdateThresholds(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req service.UpdateThresholdsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	product, err := h.catalogService.UpdateStockThresholds(c.Request.Context(), actor, id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, product))
}

// CreateBranch opens a branch with a zero stock row per active product
// @Summary      Create branch
// @Tags         catalog
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateBranchRequest  true  "Branch"
// @Success      201      {object}  response.Response{data=model.Branch}
// @Failure      400      {object}  response.Response
// @Router       /api/branches [post]
func (h *CatalogHandler) CreateBranch(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req service.CreateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	branch, err := h.catalogService.CreateBranch(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, branch))
}
