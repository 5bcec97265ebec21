package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"retailpos/internal/database"
	"retailpos/internal/model"
	"retailpos/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const heldCartTTL = 7 * 24 * time.Hour

type fixture struct {
	db        *gorm.DB
	ledger    *stockLedger
	sales     *saleService
	purchases *purchaseService
	held      *heldCartService
	catalog   CatalogService
	notifier  *recordingNotifier
	counts    *memoryCountCache
	branch    *model.Branch
	admin     model.Actor
	cashier   model.Actor
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(sqlite.Open(":memory:"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every session must share the single in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// newFixture wires the core against an in-memory database. Without
// strictTypes the production default (sale, transfer) applies.
func newFixture(t *testing.T, strictTypes ...string) *fixture {
	t.Helper()
	return newFixtureOn(t, newTestDB(t), strictTypes...)
}

func newFixtureOn(t *testing.T, db *gorm.DB, strictTypes ...string) *fixture {
	t.Helper()
	if len(strictTypes) == 0 {
		strictTypes = []string{model.MovementSale, model.MovementTransfer}
	}

	log := zap.NewNop()

	productRepo := repository.NewProductRepository(db)
	branchRepo := repository.NewBranchRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)

	f := &fixture{
		db:       db,
		notifier: &recordingNotifier{},
		counts:   newMemoryCountCache(),
	}

	f.ledger = NewStockLedger(
		repository.NewStockRepository(db),
		repository.NewMovementRepository(db),
		productRepo, branchRepo, auditRepo, txManager,
		f.notifier, strictTypes, log,
	).(*stockLedger)
	f.held = NewHeldCartService(
		repository.NewHeldCartRepository(db),
		auditRepo, txManager, f.counts, heldCartTTL, time.Minute, log,
	).(*heldCartService)
	f.counts.now = func() time.Time { return f.held.now() }
	f.sales = NewSaleService(
		repository.NewSaleRepository(db),
		productRepo, branchRepo, auditRepo, txManager,
		f.ledger, f.held, f.notifier, log,
	).(*saleService)
	f.purchases = NewPurchaseService(
		repository.NewPurchaseInvoiceRepository(db),
		productRepo, branchRepo, auditRepo, txManager,
		f.ledger, f.notifier, log,
	).(*purchaseService)
	f.catalog = NewCatalogService(productRepo, branchRepo, auditRepo, txManager, f.ledger, log)

	f.admin = model.Actor{UserID: uuid.New(), Role: model.RoleAdmin}
	f.branch = f.addBranch(t, "Main")
	f.admin.BranchID = f.branch.ID
	f.cashier = model.Actor{UserID: uuid.New(), BranchID: f.branch.ID, Role: model.RoleCashier}
	return f
}

func (f *fixture) addBranch(t *testing.T, name string) *model.Branch {
	t.Helper()
	branch, err := f.catalog.CreateBranch(context.Background(), f.admin, CreateBranchRequest{Name: name})
	require.NoError(t, err)
	return branch
}

func (f *fixture) addProduct(t *testing.T, sku string, price string, barcodes ...string) *model.Product {
	t.Helper()
	product, err := f.catalog.CreateProduct(context.Background(), f.admin, CreateProductRequest{
		SKU:      sku,
		Name:     "Product " + sku,
		Price:    decimal.RequireFromString(price),
		Barcodes: barcodes,
	})
	require.NoError(t, err)
	return product
}

// setStock books an adjustment so the row keeps matching its movement history.
func (f *fixture) setStock(t *testing.T, productID, branchID uuid.UUID, qty int) {
	t.Helper()
	ctx := context.Background()
	current, err := f.ledger.GetQuantity(ctx, productID, branchID)
	require.NoError(t, err)
	if qty == current {
		return
	}
	_, err = f.ledger.Post(ctx, MovementInput{
		ProductID: productID,
		BranchID:  branchID,
		Delta:     qty - current,
		Type:      model.MovementAdjustment,
		UserID:    f.admin.UserID,
		Reason:    "Opening stock",
	})
	require.NoError(t, err)
}

func (f *fixture) quantity(t *testing.T, productID, branchID uuid.UUID) int {
	t.Helper()
	qty, err := f.ledger.GetQuantity(context.Background(), productID, branchID)
	require.NoError(t, err)
	return qty
}

func (f *fixture) rows(t *testing.T, table interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var count int64
	q := f.db.Model(table)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&count).Error)
	return count
}

func (f *fixture) assertReconciled(t *testing.T, productID, branchID uuid.UUID) {
	t.Helper()
	rec, err := f.ledger.Reconcile(context.Background(), productID, branchID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent, "quantity %d, movement sum %d", rec.Quantity, rec.MovementSum)
}

func cartLine(p *model.Product, qty int, price string) model.CartLine {
	return model.CartLine{ProductID: p.ID, Quantity: qty, UnitPrice: decimal.RequireFromString(price)}
}

// fixedDocNos returns the given numbers in order, then falls back to real ones.
func fixedDocNos(numbers ...string) func(string, time.Time) string {
	var mu sync.Mutex
	return func(prefix string, now time.Time) string {
		mu.Lock()
		defer mu.Unlock()
		if len(numbers) == 0 {
			return prefix + uuid.NewString()[:8]
		}
		n := numbers[0]
		numbers = numbers[1:]
		return n
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Publish(event string, _ interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e == event {
			c++
		}
	}
	return c
}

// memoryCountCache expires entries against now, which the fixture ties to
// the held-cart service clock.
type memoryCountCache struct {
	mu       sync.Mutex
	now      func() time.Time
	counts   map[uuid.UUID]cachedCount
	versions map[uuid.UUID]int64
	hits     int
	lastTTL  time.Duration
}

type cachedCount struct {
	count     int64
	expiresAt time.Time
}

func newMemoryCountCache() *memoryCountCache {
	return &memoryCountCache{
		now:      time.Now,
		counts:   make(map[uuid.UUID]cachedCount),
		versions: make(map[uuid.UUID]int64),
	}
}

func (c *memoryCountCache) Get(_ context.Context, userID uuid.UUID) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.counts[userID]
	if !ok || !c.now().Before(entry.expiresAt) {
		return 0, false, nil
	}
	c.hits++
	return entry.count, true, nil
}

func (c *memoryCountCache) Version(_ context.Context, userID uuid.UUID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[userID], nil
}

func (c *memoryCountCache) SetIfVersion(_ context.Context, userID uuid.UUID, version int64, count int64, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[userID] != version {
		return nil
	}
	c.lastTTL = ttl
	c.counts[userID] = cachedCount{count: count, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *memoryCountCache) Invalidate(_ context.Context, userID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[userID]++
	delete(c.counts, userID)
	return nil
}

func (c *memoryCountCache) cached(userID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.counts[userID]
	return ok
}
