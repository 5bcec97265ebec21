package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"retailpos/internal/apperr"
	"retailpos/internal/middleware"
	"retailpos/internal/model"
	"retailpos/internal/service"
	"retailpos/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSaleService struct {
	service.SaleService
	complete     func(actor model.Actor, req service.CompleteSaleRequest) (*model.SaleTransaction, error)
	completeHeld func(actor model.Actor, id uuid.UUID) (*model.SaleTransaction, error)
}

func (f *fakeSaleService) CompleteSale(_ context.Context, actor model.Actor, req service.CompleteSaleRequest) (*model.SaleTransaction, error) {
	return f.complete(actor, req)
}

func (f *fakeSaleService) CompleteHeldSale(_ context.Context, actor model.Actor, id uuid.UUID, _ service.CompleteHeldSaleRequest) (*model.SaleTransaction, error) {
	return f.completeHeld(actor, id)
}

type fakePurchaseService struct {
	service.PurchaseService
	calls int
}

func (f *fakePurchaseService) ReceiveInvoice(_ context.Context, _ model.Actor, _ service.ReceiveInvoiceRequest) (*model.PurchaseInvoice, error) {
	f.calls++
	return &model.PurchaseInvoice{InvoiceNumber: "PI-1"}, nil
}

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func token(t *testing.T, actor model.Actor) string {
	t.Helper()
	tok, err := middleware.NewAuthenticator(testSecret).Issue(actor, time.Hour)
	require.NoError(t, err)
	return tok
}

func newRouter(register func(*gin.RouterGroup)) *gin.Engine {
	r := gin.New()
	register(&r.RouterGroup)
	return r
}

func do(r http.Handler, method, path, bearer string, body interface{}) (*httptest.ResponseRecorder, response.Response) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestCompleteSale_StatusMapping(t *testing.T) {
	cashier := model.Actor{UserID: uuid.New(), BranchID: uuid.New(), Role: model.RoleCashier}
	line := model.CartLine{ProductID: uuid.New(), Quantity: 1}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"completed", nil, http.StatusCreated, ""},
		{"empty cart", apperr.ErrEmptyCart, http.StatusBadRequest, "EMPTY_CART"},
		{"unknown product", apperr.ErrProductNotFound, http.StatusNotFound, "PRODUCT_NOT_FOUND"},
		{"insufficient stock", &apperr.InsufficientStockError{ProductID: line.ProductID, Requested: 1}, http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"storage failure", apperr.Storage("save sale", errors.New("pq: relation missing")), http.StatusInternalServerError, "STORAGE_FAILURE"},
		{"duplicate number", errors.Join(apperr.ErrDuplicateIdentifier, errors.New("UNIQUE constraint failed: sale_transactions.transaction_no")), http.StatusConflict, "DUPLICATE_IDENTIFIER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got model.Actor
			sales := &fakeSaleService{complete: func(actor model.Actor, req service.CompleteSaleRequest) (*model.SaleTransaction, error) {
				got = actor
				if tt.err != nil {
					return nil, tt.err
				}
				return &model.SaleTransaction{TransactionNo: "SALE-1", BranchID: actor.BranchID}, nil
			}}
			r := newRouter(NewSaleHandler(sales, middleware.NewAuthenticator(testSecret)).RegisterRoutes)

			w, resp := do(r, http.MethodPost, "/api/sales", token(t, cashier), service.CompleteSaleRequest{Lines: []model.CartLine{line}})

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, cashier, got)
			assert.NotContains(t, resp.Error, "relation missing")
			assert.NotContains(t, resp.Error, "constraint failed")
		})
	}
}

func TestCompleteSale_RequiresToken(t *testing.T) {
	sales := &fakeSaleService{complete: func(model.Actor, service.CompleteSaleRequest) (*model.SaleTransaction, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}
	r := newRouter(NewSaleHandler(sales, middleware.NewAuthenticator(testSecret)).RegisterRoutes)

	w, _ := do(r, http.MethodPost, "/api/sales", "", service.CompleteSaleRequest{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = do(r, http.MethodPost, "/api/sales", "not-a-token", service.CompleteSaleRequest{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCompleteSale_MalformedBody(t *testing.T) {
	cashier := model.Actor{UserID: uuid.New(), BranchID: uuid.New(), Role: model.RoleCashier}
	r := newRouter(NewSaleHandler(&fakeSaleService{}, middleware.NewAuthenticator(testSecret)).RegisterRoutes)

	req := httptest.NewRequest(http.MethodPost, "/api/sales", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+token(t, cashier))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_INPUT")
}

func TestCompleteHeldSale(t *testing.T) {
	cashier := model.Actor{UserID: uuid.New(), BranchID: uuid.New(), Role: model.RoleCashier}
	held := uuid.New()
	sales := &fakeSaleService{completeHeld: func(actor model.Actor, id uuid.UUID) (*model.SaleTransaction, error) {
		if id != held {
			return nil, apperr.ErrNotFound
		}
		return &model.SaleTransaction{TransactionNo: "SALE-1"}, nil
	}}
	r := newRouter(NewSaleHandler(sales, middleware.NewAuthenticator(testSecret)).RegisterRoutes)
	tok := token(t, cashier)

	w, _ := do(r, http.MethodPost, "/api/held-carts/"+held.String()+"/checkout", tok, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	w, resp := do(r, http.MethodPost, "/api/held-carts/"+uuid.NewString()+"/checkout", tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", resp.Code)

	w, resp = do(r, http.MethodPost, "/api/held-carts/not-a-uuid/checkout", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", resp.Code)
}

func TestReceiveInvoice_RoleGate(t *testing.T) {
	branch := uuid.New()
	purchases := &fakePurchaseService{}
	r := newRouter(NewPurchaseHandler(purchases, middleware.NewAuthenticator(testSecret)).RegisterRoutes)
	body := service.ReceiveInvoiceRequest{SupplierID: uuid.New()}

	cashier := model.Actor{UserID: uuid.New(), BranchID: branch, Role: model.RoleCashier}
	w, _ := do(r, http.MethodPost, "/api/purchase-invoices", token(t, cashier), body)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, purchases.calls)

	keeper := model.Actor{UserID: uuid.New(), BranchID: branch, Role: model.RoleInventoryManager}
	w, _ = do(r, http.MethodPost, "/api/purchase-invoices", token(t, keeper), body)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, purchases.calls)
}
