package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"bioxpos/internal/domain"
	"bioxpos/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "pos.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedProduct(t *testing.T, s *Store, name string, stock, minStock int) *domain.Product {
	t.Helper()
	p, err := s.CreateProduct(context.Background(), domain.Product{
		Name:         name,
		CurrentStock: stock,
		MinStock:     minStock,
		CreatedBy:    1,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pos.db")

	s, err := New(ctx, path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := s.CreateUser(ctx, domain.User{Username: "admin", PasswordHash: "x", Role: domain.RoleAdmin, Active: true}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopening the same file must not re-run migrations or lose data.
	s2, err := New(ctx, path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()
	user, err := s2.GetUserByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if user.ID != 1 || user.Role != domain.RoleAdmin {
		t.Fatalf("unexpected user after reopen: %+v", user)
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.CreateUser(ctx, domain.User{Username: "cajero1", PasswordHash: "x", Role: domain.RoleCashier, Active: true}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := s.CreateUser(ctx, domain.User{Username: "cajero1", PasswordHash: "y", Role: domain.RoleCashier, Active: true}); !errors.Is(err, store.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestListUsersFiltersByRole(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, u := range []domain.User{
		{Username: "admin", PasswordHash: "x", Role: domain.RoleAdmin, Active: true},
		{Username: "cajero1", PasswordHash: "x", Role: domain.RoleCashier, Active: true},
		{Username: "cajero2", PasswordHash: "x", Role: domain.RoleCashier, Active: true},
	} {
		if _, err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("seed %s: %v", u.Username, err)
		}
	}

	cashiers, err := s.ListUsers(ctx, domain.RoleCashier)
	if err != nil {
		t.Fatalf("list cashiers: %v", err)
	}
	if len(cashiers) != 2 || cashiers[0].Username != "cajero1" || cashiers[1].Username != "cajero2" {
		t.Fatalf("unexpected cashier list: %+v", cashiers)
	}

	all, err := s.ListUsers(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 users, got %d", len(all))
	}
}

func TestCreateSaleDecrementsStockAtomically(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProduct(t, s, "Producto A", 5, 1)

	sale, err := s.CreateSale(ctx, domain.Sale{
		ProductID:     p.ID,
		Quantity:      3,
		SalePrice:     10,
		Subtotal:      25.42,
		Tax:           4.58,
		Total:         30,
		PaymentMethod: domain.PaymentCard,
		CashierID:     2,
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if sale.ProductName != "Producto A" {
		t.Fatalf("expected product name snapshot, got %q", sale.ProductName)
	}

	reloaded, err := s.GetProductByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if reloaded.CurrentStock != 2 {
		t.Fatalf("expected stock 2 after sale, got %d", reloaded.CurrentStock)
	}

	// A second sale bigger than the remaining stock must fail and leave
	// the stock untouched.
	if _, err := s.CreateSale(ctx, domain.Sale{
		ProductID: p.ID, Quantity: 3, Total: 30, PaymentMethod: domain.PaymentCard, CashierID: 2,
	}); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	reloaded, _ = s.GetProductByID(ctx, p.ID)
	if reloaded.CurrentStock != 2 {
		t.Fatalf("failed sale moved stock: %d", reloaded.CurrentStock)
	}

	if _, err := s.CreateSale(ctx, domain.Sale{
		ProductID: 999, Quantity: 1, Total: 10, PaymentMethod: domain.PaymentCard, CashierID: 2,
	}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown product, got %v", err)
	}
}

func TestDeleteSaleRestoresStock(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProduct(t, s, "Producto A", 5, 1)

	sale, err := s.CreateSale(ctx, domain.Sale{
		ProductID: p.ID, Quantity: 4, Total: 40, PaymentMethod: domain.PaymentCash, CashierID: 2,
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	if err := s.DeleteSale(ctx, sale.ID); err != nil {
		t.Fatalf("delete sale: %v", err)
	}
	reloaded, _ := s.GetProductByID(ctx, p.ID)
	if reloaded.CurrentStock != 5 {
		t.Fatalf("expected stock restored to 5, got %d", reloaded.CurrentStock)
	}

	if err := s.DeleteSale(ctx, sale.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := s.GetSaleByID(ctx, sale.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("sale still readable after delete: %v", err)
	}
}

func TestDeleteSaleAfterProductRemoved(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProduct(t, s, "Producto A", 5, 1)

	sale, err := s.CreateSale(ctx, domain.Sale{
		ProductID: p.ID, Quantity: 2, Total: 20, PaymentMethod: domain.PaymentCash, CashierID: 2,
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if err := s.DeleteProduct(ctx, p.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}
	if err := s.DeleteSale(ctx, sale.ID); err != nil {
		t.Fatalf("delete sale without product: %v", err)
	}
}

func TestPurchaseAndReversalFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProduct(t, s, "Producto A", 0, 1)

	purchase, err := s.CreatePurchase(ctx, domain.Purchase{
		ProductID: p.ID, Quantity: 10, PurchasePrice: 4.50, CashierID: 1,
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	if purchase.ProductName != "Producto A" {
		t.Fatalf("expected product name snapshot, got %q", purchase.ProductName)
	}
	reloaded, _ := s.GetProductByID(ctx, p.ID)
	if reloaded.CurrentStock != 10 {
		t.Fatalf("expected stock 10, got %d", reloaded.CurrentStock)
	}

	// Sell 7 of the received units, then reverse the purchase: 3 - 10
	// floors at zero instead of going negative.
	if _, err := s.CreateSale(ctx, domain.Sale{
		ProductID: p.ID, Quantity: 7, Total: 70, PaymentMethod: domain.PaymentCash, CashierID: 2,
	}); err != nil {
		t.Fatalf("sell units: %v", err)
	}
	if err := s.DeletePurchase(ctx, purchase.ID); err != nil {
		t.Fatalf("delete purchase: %v", err)
	}
	reloaded, _ = s.GetProductByID(ctx, p.ID)
	if reloaded.CurrentStock != 0 {
		t.Fatalf("expected stock floored at 0, got %d", reloaded.CurrentStock)
	}
}

func TestSalesInRangeBoundsAndCashierFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProduct(t, s, "Producto A", 100, 1)

	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	for i, cashier := range []int64{2, 2, 3} {
		if _, err := s.CreateSale(ctx, domain.Sale{
			ProductID: p.ID, Quantity: 1, Total: 10, PaymentMethod: domain.PaymentCash,
			CashierID: cashier, CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatalf("seed sale %d: %v", i, err)
		}
	}

	// Bounds are inclusive on both ends.
	sales, err := s.SalesInRange(ctx, base, base.Add(2*time.Hour), 0)
	if err != nil {
		t.Fatalf("query sales: %v", err)
	}
	if len(sales) != 3 {
		t.Fatalf("expected 3 sales, got %d", len(sales))
	}

	sales, err = s.SalesInRange(ctx, base, base.Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("query sales: %v", err)
	}
	if len(sales) != 2 {
		t.Fatalf("expected 2 sales in narrowed range, got %d", len(sales))
	}

	sales, err = s.SalesInRange(ctx, base, base.Add(2*time.Hour), 3)
	if err != nil {
		t.Fatalf("query sales: %v", err)
	}
	if len(sales) != 1 || sales[0].CashierID != 3 {
		t.Fatalf("expected only cashier 3, got %+v", sales)
	}
}

func TestSaleCustomerRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProduct(t, s, "Producto A", 10, 1)

	customer, err := s.CreateCustomer(ctx, domain.Customer{FirstName: "Maria", LastName: "Quispe", DNI: "44556677"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}

	sale, err := s.CreateSale(ctx, domain.Sale{
		ProductID: p.ID, Quantity: 1, Total: 10, PaymentMethod: domain.PaymentWallet,
		CashierID: 2, CustomerID: &customer.ID,
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	reloaded, err := s.GetSaleByID(ctx, sale.ID)
	if err != nil {
		t.Fatalf("reload sale: %v", err)
	}
	if reloaded.CustomerID == nil || *reloaded.CustomerID != customer.ID {
		t.Fatalf("customer id lost on round trip: %+v", reloaded)
	}

	anonymous, err := s.CreateSale(ctx, domain.Sale{
		ProductID: p.ID, Quantity: 1, Total: 10, PaymentMethod: domain.PaymentCash, CashierID: 2,
	})
	if err != nil {
		t.Fatalf("create anonymous sale: %v", err)
	}
	reloaded, _ = s.GetSaleByID(ctx, anonymous.ID)
	if reloaded.CustomerID != nil {
		t.Fatalf("expected nil customer id, got %v", *reloaded.CustomerID)
	}
}

func TestLowStockProducts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedProduct(t, s, "Producto A", 50, 10)
	seedProduct(t, s, "Producto B", 3, 5)
	seedProduct(t, s, "Producto C", 5, 5)

	low, err := s.LowStockProducts(ctx)
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if len(low) != 2 || low[0].Name != "Producto B" || low[1].Name != "Producto C" {
		t.Fatalf("unexpected low stock list: %+v", low)
	}
}

func TestSearchCustomers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, c := range []domain.Customer{
		{FirstName: "Maria", LastName: "Quispe", DNI: "44556677", Phone: "957000111"},
		{FirstName: "Jorge", LastName: "Mamani", Email: "jorge@example.pe"},
	} {
		if _, err := s.CreateCustomer(ctx, c); err != nil {
			t.Fatalf("seed customer: %v", err)
		}
	}

	found, err := s.SearchCustomers(ctx, "4455")
	if err != nil {
		t.Fatalf("search by dni: %v", err)
	}
	if len(found) != 1 || found[0].FirstName != "Maria" {
		t.Fatalf("unexpected dni match: %+v", found)
	}

	found, err = s.SearchCustomers(ctx, "mamani")
	if err != nil {
		t.Fatalf("search by last name: %v", err)
	}
	if len(found) != 1 || found[0].FirstName != "Jorge" {
		t.Fatalf("unexpected name match: %+v", found)
	}

	found, err = s.SearchCustomers(ctx, "")
	if err != nil {
		t.Fatalf("blank search: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected blank search to list all, got %d", len(found))
	}
}

func TestActivityLogsOrderedAndLimited(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := s.CreateActivityLog(ctx, domain.ActivityLog{
			Username:  "admin",
			Action:    "login",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("seed log %d: %v", i, err)
		}
	}

	logs, err := s.ListActivityLogs(ctx, base, base.Add(time.Hour), 3)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected limit 3, got %d", len(logs))
	}
	if !logs[0].CreatedAt.After(logs[1].CreatedAt) {
		t.Fatalf("expected newest first, got %+v", logs)
	}
}

func TestUpdateProductLeavesStockAlone(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProduct(t, s, "Producto A", 50, 10)

	p.Name = "Producto A+"
	p.MinStock = 20
	p.CurrentStock = 9999
	updated, err := s.UpdateProduct(ctx, *p)
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if updated.Name != "Producto A+" || updated.MinStock != 20 {
		t.Fatalf("update lost fields: %+v", updated)
	}
	if updated.CurrentStock != 50 {
		t.Fatalf("update touched stock: %d", updated.CurrentStock)
	}
}
