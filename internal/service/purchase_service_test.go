package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"retailpos/internal/apperr"
	"retailpos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiveInvoice_AddsStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "Y-1", "5")
	f.setStock(t, p.ID, f.branch.ID, 4)
	supplier := uuid.New()

	invoice, err := f.purchases.ReceiveInvoice(ctx, f.admin, ReceiveInvoiceRequest{
		SupplierID: supplier,
		Lines:      []InvoiceLine{{ProductID: p.ID, Quantity: 20, UnitCost: decimal.NewFromInt(3)}},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(invoice.InvoiceNumber, "PI"))
	assert.Equal(t, model.InvoiceStatusCompleted, invoice.Status)
	assert.Equal(t, f.branch.ID, invoice.BranchID)
	assert.True(t, invoice.TotalAmount.Equal(decimal.NewFromInt(60)), "total %s", invoice.TotalAmount)
	assert.Equal(t, 24, f.quantity(t, p.ID, f.branch.ID))

	movements, err := f.ledger.ReferenceMovements(ctx, model.RefTypePurchaseInvoice, invoice.InvoiceNumber)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, model.MovementPurchase, movements[0].MovementType)
	assert.Equal(t, 20, movements[0].Quantity)
	assert.Equal(t, 24, movements[0].QuantityAfter)

	stored, err := f.purchases.GetByNumber(ctx, invoice.InvoiceNumber)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, supplier, stored.SupplierID)

	assert.EqualValues(t, 1, f.rows(t, &model.AuditLog{}, "action = ?", model.ActionReceiveInvoice))
	assert.Equal(t, 1, f.notifier.count(EventInvoiceReceived))
	f.assertReconciled(t, p.ID, f.branch.ID)
}

func TestReceiveInvoice_RestoresNegativeStock(t *testing.T) {
	f := newFixture(t)
	p := f.addProduct(t, "Y-1", "5")
	f.setStock(t, p.ID, f.branch.ID, -6)

	_, err := f.purchases.ReceiveInvoice(context.Background(), f.admin, ReceiveInvoiceRequest{
		SupplierID: uuid.New(),
		Lines:      []InvoiceLine{{ProductID: p.ID, Quantity: 2, UnitCost: decimal.NewFromInt(1)}},
	})
	require.NoError(t, err)
	assert.Equal(t, -4, f.quantity(t, p.ID, f.branch.ID))
}

func TestReceiveInvoice_ExplicitBranchAndDate(t *testing.T) {
	f := newFixture(t)
	north := f.addBranch(t, "North")
	p := f.addProduct(t, "Y-1", "5")
	date := time.Date(2026, 2, 14, 0, 0, 0, 0, time.FixedZone("ICT", 7*3600))

	invoice, err := f.purchases.ReceiveInvoice(context.Background(), f.admin, ReceiveInvoiceRequest{
		SupplierID:  uuid.New(),
		BranchID:    &north.ID,
		InvoiceDate: &date,
		Lines: []InvoiceLine{
			{ProductID: p.ID, Quantity: 2, UnitCost: decimal.RequireFromString("1.25")},
			{ProductID: p.ID, Quantity: 4, UnitCost: decimal.RequireFromString("1.50")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, north.ID, invoice.BranchID)
	assert.Equal(t, time.UTC, invoice.InvoiceDate.Location())
	assert.True(t, invoice.InvoiceDate.Equal(date))
	assert.True(t, invoice.TotalAmount.Equal(decimal.RequireFromString("8.5")))
	assert.Equal(t, 6, f.quantity(t, p.ID, north.ID))
	assert.Equal(t, 0, f.quantity(t, p.ID, f.branch.ID))
}

func TestReceiveInvoice_Rejects(t *testing.T) {
	f := newFixture(t)
	p := f.addProduct(t, "Y-1", "5")
	supplier := uuid.New()
	line := InvoiceLine{ProductID: p.ID, Quantity: 1, UnitCost: decimal.NewFromInt(1)}

	tests := []struct {
		name    string
		req     ReceiveInvoiceRequest
		wantErr error
	}{
		{"no supplier", ReceiveInvoiceRequest{Lines: []InvoiceLine{line}}, apperr.ErrInvalidInput},
		{"no lines", ReceiveInvoiceRequest{SupplierID: supplier}, apperr.ErrEmptyCart},
		{"zero quantity", ReceiveInvoiceRequest{SupplierID: supplier, Lines: []InvoiceLine{{ProductID: p.ID, UnitCost: decimal.NewFromInt(1)}}}, apperr.ErrInvalidQuantity},
		{"negative cost", ReceiveInvoiceRequest{SupplierID: supplier, Lines: []InvoiceLine{{ProductID: p.ID, Quantity: 1, UnitCost: decimal.NewFromInt(-1)}}}, apperr.ErrInvalidInput},
		{"unknown product", ReceiveInvoiceRequest{SupplierID: supplier, Lines: []InvoiceLine{line, {ProductID: uuid.New(), Quantity: 1}}}, apperr.ErrProductNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.purchases.ReceiveInvoice(context.Background(), f.admin, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Equal(t, 0, f.quantity(t, p.ID, f.branch.ID))
	assert.Zero(t, f.rows(t, &model.PurchaseInvoice{}, ""))
	assert.Zero(t, f.rows(t, &model.ProductMovement{}, ""))
}

func TestReceiveInvoice_RetriesNumberCollision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "Y-1", "5")
	req := ReceiveInvoiceRequest{
		SupplierID: uuid.New(),
		Lines:      []InvoiceLine{{ProductID: p.ID, Quantity: 5, UnitCost: decimal.NewFromInt(1)}},
	}

	const taken = "PI20260101AAAAAAAAAA"
	f.purchases.newDocNo = fixedDocNos(taken, taken, "PI20260101BBBBBBBBBB")
	_, err := f.purchases.ReceiveInvoice(ctx, f.admin, req)
	require.NoError(t, err)
	second, err := f.purchases.ReceiveInvoice(ctx, f.admin, req)
	require.NoError(t, err)
	assert.Equal(t, "PI20260101BBBBBBBBBB", second.InvoiceNumber)
	assert.Equal(t, 10, f.quantity(t, p.ID, f.branch.ID))

	f.purchases.newDocNo = fixedDocNos(taken, taken, taken)
	_, err = f.purchases.ReceiveInvoice(ctx, f.admin, req)
	require.ErrorIs(t, err, apperr.ErrDuplicateIdentifier)
	assert.Equal(t, 10, f.quantity(t, p.ID, f.branch.ID))
	f.assertReconciled(t, p.ID, f.branch.ID)
}

func TestPurchaseList_FiltersByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "Y-1", "5")

	for i := 0; i < 2; i++ {
		_, err := f.purchases.ReceiveInvoice(ctx, f.admin, ReceiveInvoiceRequest{
			SupplierID: uuid.New(),
			Lines:      []InvoiceLine{{ProductID: p.ID, Quantity: 1, UnitCost: decimal.NewFromInt(1)}},
		})
		require.NoError(t, err)
	}

	invoices, total, err := f.purchases.List(ctx, model.InvoiceStatusCompleted, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, invoices, 2)

	_, total, err = f.purchases.List(ctx, model.InvoiceStatusDraft, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = f.purchases.GetByNumber(ctx, "PI-MISSING")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
