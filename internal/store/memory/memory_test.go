package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bioxpos/internal/domain"
	"bioxpos/internal/store"
)

func TestNewSeededFixtures(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	admin, err := s.GetUserByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("seeded admin missing: %v", err)
	}
	if admin.Role != domain.RoleAdmin || !admin.Active {
		t.Fatalf("unexpected admin: %+v", admin)
	}

	cashiers, err := s.ListUsers(ctx, domain.RoleCashier)
	if err != nil {
		t.Fatalf("list cashiers: %v", err)
	}
	if len(cashiers) != 2 {
		t.Fatalf("expected 2 seeded cashiers, got %d", len(cashiers))
	}

	products, err := s.ListProducts(ctx)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 seeded products, got %d", len(products))
	}

	low, err := s.LowStockProducts(ctx)
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if len(low) != 1 || low[0].Name != "Producto B" {
		t.Fatalf("expected Producto B below minimum, got %+v", low)
	}
}

func TestIDsAreSequential(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i, name := range []string{"uno", "dos", "tres"} {
		p, err := s.CreateProduct(ctx, domain.Product{Name: name, CurrentStock: 1})
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if p.ID != int64(i+1) {
			t.Fatalf("expected id %d, got %d", i+1, p.ID)
		}
	}
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	ctx := context.Background()
	s := New()
	p, err := s.CreateProduct(ctx, domain.Product{Name: "Producto A", CurrentStock: 10})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	var wg sync.WaitGroup
	committed := make(chan struct{}, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateSale(ctx, domain.Sale{
				ProductID: p.ID, Quantity: 1, Total: 10,
				PaymentMethod: domain.PaymentCash, CashierID: 2,
			})
			if err == nil {
				committed <- struct{}{}
			} else if !errors.Is(err, store.ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	close(committed)

	if got := len(committed); got != 10 {
		t.Fatalf("expected exactly 10 committed sales, got %d", got)
	}
	reloaded, _ := s.GetProductByID(ctx, p.ID)
	if reloaded.CurrentStock != 0 {
		t.Fatalf("expected stock 0, got %d", reloaded.CurrentStock)
	}
}

func TestActivityLogsNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	s := New()

	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		if err := s.CreateActivityLog(ctx, domain.ActivityLog{
			Username:  "admin",
			Action:    "login",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("seed log %d: %v", i, err)
		}
	}

	logs, err := s.ListActivityLogs(ctx, base, base.Add(time.Hour), 2)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
	if !logs[0].CreatedAt.After(logs[1].CreatedAt) {
		t.Fatalf("expected newest first, got %+v", logs)
	}
}

func TestDuplicateUsernameRejected(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.CreateUser(ctx, domain.User{Username: "cajero1", PasswordHash: "x", Role: domain.RoleCashier, Active: true}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := s.CreateUser(ctx, domain.User{Username: "cajero1", PasswordHash: "y", Role: domain.RoleCashier, Active: true}); !errors.Is(err, store.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}
