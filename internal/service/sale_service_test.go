package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"retailpos/internal/apperr"
	"retailpos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteSale_SellsWholeStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "X-1", "5")
	f.setStock(t, p.ID, f.branch.ID, 10)

	sale, err := f.sales.CompleteSale(ctx, f.cashier, CompleteSaleRequest{
		Lines: []model.CartLine{cartLine(p, 10, "5")},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sale.TransactionNo, "SALE"))
	assert.True(t, sale.TotalAmount.Equal(decimal.NewFromInt(50)), "total %s", sale.TotalAmount)
	assert.Equal(t, model.DefaultPaymentMethod, sale.PaymentMethod)
	assert.Equal(t, model.SaleStatusCompleted, sale.Status)
	assert.Equal(t, 0, f.quantity(t, p.ID, f.branch.ID))

	movements, err := f.ledger.ReferenceMovements(ctx, model.RefTypeSale, sale.TransactionNo)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, model.MovementSale, movements[0].MovementType)
	assert.Equal(t, -10, movements[0].Quantity)
	assert.Equal(t, 0, movements[0].QuantityAfter)
	assert.Equal(t, f.cashier.UserID, movements[0].UserID)

	stored, err := f.sales.GetByNo(ctx, sale.TransactionNo)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 10, stored.Items[0].Quantity)
	assert.True(t, stored.TotalAmount.Equal(decimal.NewFromInt(50)))

	assert.EqualValues(t, 1, f.rows(t, &model.AuditLog{}, "action = ?", model.ActionCompleteSale))
	assert.Equal(t, 1, f.notifier.count(EventSaleCompleted))
	assert.Equal(t, 1, f.notifier.count(EventStockUpdated))
	f.assertReconciled(t, p.ID, f.branch.ID)
}

func TestCompleteSale_InsufficientStockLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "X-1", "5")
	f.setStock(t, p.ID, f.branch.ID, 10)

	_, err := f.sales.CompleteSale(ctx, f.cashier, CompleteSaleRequest{
		Lines: []model.CartLine{cartLine(p, 11, "5")},
	})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)

	var stockErr *apperr.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, p.ID, stockErr.ProductID)
	assert.Equal(t, 10, stockErr.Available)
	assert.Equal(t, 11, stockErr.Requested)

	assert.Equal(t, 10, f.quantity(t, p.ID, f.branch.ID))
	assert.Zero(t, f.rows(t, &model.ProductMovement{}, "movement_type = ?", model.MovementSale))
	assert.Zero(t, f.rows(t, &model.SaleTransaction{}, ""))
	assert.Zero(t, f.rows(t, &model.SaleTransactionItem{}, ""))
	assert.Zero(t, f.rows(t, &model.AuditLog{}, "action = ?", model.ActionCompleteSale))
	assert.Zero(t, f.notifier.count(EventSaleCompleted))
}

func TestCompleteSale_FailingLineRollsBackEarlierLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plenty := f.addProduct(t, "A-1", "2")
	scarce := f.addProduct(t, "B-1", "3")
	f.setStock(t, plenty.ID, f.branch.ID, 10)
	f.setStock(t, scarce.ID, f.branch.ID, 1)

	_, err := f.sales.CompleteSale(ctx, f.cashier, CompleteSaleRequest{
		Lines: []model.CartLine{cartLine(plenty, 2, "2"), cartLine(scarce, 5, "3")},
	})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)

	assert.Equal(t, 10, f.quantity(t, plenty.ID, f.branch.ID))
	assert.Equal(t, 1, f.quantity(t, scarce.ID, f.branch.ID))
	assert.Zero(t, f.rows(t, &model.ProductMovement{}, "movement_type = ?", model.MovementSale))
	assert.Zero(t, f.rows(t, &model.SaleTransaction{}, ""))
	f.assertReconciled(t, plenty.ID, f.branch.ID)
	f.assertReconciled(t, scarce.ID, f.branch.ID)
}

func TestCompleteSale_RepeatedProductLinesShareStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "X-1", "1")
	f.setStock(t, p.ID, f.branch.ID, 5)

	_, err := f.sales.CompleteSale(ctx, f.cashier, CompleteSaleRequest{
		Lines: []model.CartLine{cartLine(p, 3, "1"), cartLine(p, 3, "1")},
	})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, 5, f.quantity(t, p.ID, f.branch.ID))

	sale, err := f.sales.CompleteSale(ctx, f.cashier, CompleteSaleRequest{
		Lines: []model.CartLine{cartLine(p, 2, "1"), cartLine(p, 3, "1")},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, f.quantity(t, p.ID, f.branch.ID))
	assert.Len(t, sale.Items, 2)

	movements, err := f.ledger.ReferenceMovements(ctx, model.RefTypeSale, sale.TransactionNo)
	require.NoError(t, err)
	assert.Len(t, movements, 2)
	f.assertReconciled(t, p.ID, f.branch.ID)
}

func TestCompleteSale_RejectsInvalidCarts(t *testing.T) {
	f := newFixture(t)
	p := f.addProduct(t, "X-1", "5")
	f.setStock(t, p.ID, f.branch.ID, 10)

	tests := []struct {
		name    string
		lines   []model.CartLine
		wantErr error
	}{
		{"empty cart", nil, apperr.ErrEmptyCart},
		{"zero quantity", []model.CartLine{cartLine(p, 0, "5")}, apperr.ErrInvalidQuantity},
		{"negative quantity", []model.CartLine{cartLine(p, -2, "5")}, apperr.ErrInvalidQuantity},
		{"negative price", []model.CartLine{cartLine(p, 1, "-5")}, apperr.ErrInvalidInput},
		{"missing product id", []model.CartLine{{Quantity: 1, UnitPrice: decimal.NewFromInt(5)}}, apperr.ErrInvalidInput},
		{"unknown product", []model.CartLine{cartLine(p, 1, "5"), {ProductID: uuid.New(), Quantity: 1, UnitPrice: decimal.NewFromInt(5)}}, apperr.ErrProductNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.sales.CompleteSale(context.Background(), f.cashier, CompleteSaleRequest{Lines: tt.lines})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Equal(t, 10, f.quantity(t, p.ID, f.branch.ID))
	assert.Zero(t, f.rows(t, &model.SaleTransaction{}, ""))
}

func TestCompleteSale_UnknownBranch(t *testing.T) {
	f := newFixture(t)
	p := f.addProduct(t, "X-1", "5")
	f.setStock(t, p.ID, f.branch.ID, 10)

	stranger := f.cashier
	stranger.BranchID = uuid.New()
	_, err := f.sales.CompleteSale(context.Background(), stranger, CompleteSaleRequest{
		Lines: []model.CartLine{cartLine(p, 1, "5")},
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Zero(t, f.rows(t, &model.StockLevel{}, "branch_id = ?", stranger.BranchID))
}

func TestCompleteSale_RetriesTransactionNoCollision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "X-1", "5")
	f.setStock(t, p.ID, f.branch.ID, 10)
	req := CompleteSaleRequest{Lines: []model.CartLine{cartLine(p, 1, "5")}}

	const taken = "SALE20260101AAAAAAAAAA"
	f.sales.newDocNo = fixedDocNos(taken)
	_, err := f.sales.CompleteSale(ctx, f.cashier, req)
	require.NoError(t, err)

	f.sales.newDocNo = fixedDocNos(taken, taken, "SALE20260101BBBBBBBBBB")
	sale, err := f.sales.CompleteSale(ctx, f.cashier, req)
	require.NoError(t, err)
	assert.Equal(t, "SALE20260101BBBBBBBBBB", sale.TransactionNo)
	assert.Equal(t, 8, f.quantity(t, p.ID, f.branch.ID))

	f.sales.newDocNo = fixedDocNos(taken, taken, taken)
	_, err = f.sales.CompleteSale(ctx, f.cashier, req)
	require.ErrorIs(t, err, apperr.ErrDuplicateIdentifier)

	assert.Equal(t, 8, f.quantity(t, p.ID, f.branch.ID))
	assert.EqualValues(t, 2, f.rows(t, &model.ProductMovement{}, "movement_type = ?", model.MovementSale))
	f.assertReconciled(t, p.ID, f.branch.ID)
}

func TestCompleteSale_ConcurrentSalesNeverOversell(t *testing.T) {
	f := newFixture(t)
	p := f.addProduct(t, "X-1", "5")
	f.setStock(t, p.ID, f.branch.ID, 5)

	const terminals = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < terminals; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.sales.CompleteSale(context.Background(), f.cashier, CompleteSaleRequest{
				Lines: []model.CartLine{cartLine(p, 1, "5")},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperr.ErrInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, terminals-5, rejected)
	assert.Equal(t, 0, f.quantity(t, p.ID, f.branch.ID))
	assert.EqualValues(t, 5, f.rows(t, &model.SaleTransaction{}, ""))
	f.assertReconciled(t, p.ID, f.branch.ID)
}

func TestCompleteSale_UntrackedProductSellsPastZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	untracked := false
	wrap, err := f.catalog.CreateProduct(ctx, f.admin, CreateProductRequest{
		SKU: "SVC", Name: "Gift wrap", Price: decimal.NewFromInt(1), TrackInventory: &untracked,
	})
	require.NoError(t, err)
	tracked := f.addProduct(t, "X-1", "5")

	sale, err := f.sales.CompleteSale(ctx, f.cashier, CompleteSaleRequest{
		Lines: []model.CartLine{cartLine(wrap, 2, "1")},
	})
	require.NoError(t, err)
	assert.Equal(t, -2, f.quantity(t, wrap.ID, f.branch.ID))

	movements, err := f.ledger.ReferenceMovements(ctx, model.RefTypeSale, sale.TransactionNo)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, -2, movements[0].QuantityAfter)
	f.assertReconciled(t, wrap.ID, f.branch.ID)

	_, err = f.sales.CompleteSale(ctx, f.cashier, CompleteSaleRequest{
		Lines: []model.CartLine{cartLine(wrap, 1, "1"), cartLine(tracked, 1, "5")},
	})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, -2, f.quantity(t, wrap.ID, f.branch.ID))
}

func TestCompleteSale_LenientSalePolicyAllowsNegative(t *testing.T) {
	f := newFixture(t, model.MovementTransfer)
	p := f.addProduct(t, "X-1", "5")
	f.setStock(t, p.ID, f.branch.ID, 1)

	_, err := f.sales.CompleteSale(context.Background(), f.cashier, CompleteSaleRequest{
		Lines: []model.CartLine{cartLine(p, 3, "5")},
	})
	require.NoError(t, err)
	assert.Equal(t, -2, f.quantity(t, p.ID, f.branch.ID))
	f.assertReconciled(t, p.ID, f.branch.ID)
}

func TestCompleteHeldSale_ConsumesCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "X-1", "4")
	f.setStock(t, p.ID, f.branch.ID, 10)

	cart, err := f.held.Hold(ctx, f.cashier, HoldCartRequest{
		Lines: []model.CartLine{cartLine(p, 3, "4")},
		Notes: "table 4",
	})
	require.NoError(t, err)

	sale, err := f.sales.CompleteHeldSale(ctx, f.cashier, cart.ID, CompleteHeldSaleRequest{PaymentMethod: "card"})
	require.NoError(t, err)
	assert.Equal(t, "card", sale.PaymentMethod)
	assert.Equal(t, "table 4", sale.Notes)
	assert.True(t, sale.TotalAmount.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, 7, f.quantity(t, p.ID, f.branch.ID))

	count, err := f.held.CountActive(ctx, f.cashier.UserID)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = f.sales.CompleteHeldSale(ctx, f.cashier, cart.ID, CompleteHeldSaleRequest{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 7, f.quantity(t, p.ID, f.branch.ID))
}

func TestCompleteHeldSale_FailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "X-1", "4")
	f.setStock(t, p.ID, f.branch.ID, 1)

	cart, err := f.held.Hold(ctx, f.cashier, HoldCartRequest{Lines: []model.CartLine{cartLine(p, 3, "4")}})
	require.NoError(t, err)

	_, err = f.sales.CompleteHeldSale(ctx, f.cashier, cart.ID, CompleteHeldSaleRequest{})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)

	active, err := f.held.ListActive(ctx, f.cashier.UserID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, cart.ID, active[0].ID)
	assert.Zero(t, f.rows(t, &model.AuditLog{}, "action = ?", model.ActionResumeCart))
	assert.Equal(t, 1, f.quantity(t, p.ID, f.branch.ID))
}

func TestSaleList_FiltersByBranch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.addBranch(t, "North")
	p := f.addProduct(t, "X-1", "5")
	f.setStock(t, p.ID, f.branch.ID, 10)
	f.setStock(t, p.ID, other.ID, 10)

	northCashier := f.cashier
	northCashier.BranchID = other.ID
	for _, actor := range []model.Actor{f.cashier, f.cashier, northCashier} {
		_, err := f.sales.CompleteSale(ctx, actor, CompleteSaleRequest{Lines: []model.CartLine{cartLine(p, 1, "5")}})
		require.NoError(t, err)
	}

	sales, total, err := f.sales.List(ctx, f.branch.ID.String(), 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, sales, 2)

	_, total, err = f.sales.List(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	_, err = f.sales.GetByNo(ctx, "SALE-MISSING")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
