package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"bioxpos/internal/domain"
	"bioxpos/internal/store"
)

type Store struct {
	mu           sync.RWMutex
	users        map[int64]domain.User
	products     map[int64]domain.Product
	sales        map[int64]domain.Sale
	purchases    map[int64]domain.Purchase
	customers    map[int64]domain.Customer
	activityLogs []domain.ActivityLog

	nextUserID     int64
	nextProductID  int64
	nextSaleID     int64
	nextPurchaseID int64
	nextCustomerID int64
	nextLogID      int64
}

func New() *Store {
	return &Store{
		users:        make(map[int64]domain.User),
		products:     make(map[int64]domain.Product),
		sales:        make(map[int64]domain.Sale),
		purchases:    make(map[int64]domain.Purchase),
		customers:    make(map[int64]domain.Customer),
		activityLogs: make([]domain.ActivityLog, 0, 128),
	}
}

// NewSeeded builds a store preloaded with demo accounts and products for
// dev mode. Credentials come from SEED_ADMIN_PASSWORD and
// SEED_CASHIER_PASSWORD; hardcoded dev defaults are used with a warning
// when unset. A durable deployment sets POS_DB_PATH and never sees these.
func NewSeeded() *Store {
	s := New()

	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cajero123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cajero1", cashierPwd, domain.RoleCashier},
		{"cajero2", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		s.nextUserID++
		s.users[s.nextUserID] = domain.User{
			ID:           s.nextUserID,
			Username:     u.username,
			PasswordHash: string(hash),
			Role:         u.role,
			Active:       true,
			CreatedAt:    now,
		}
	}

	for _, p := range []domain.Product{
		{Name: "Producto A", Description: "Producto de demostracion A", CurrentStock: 50, MinStock: 10},
		{Name: "Producto B", Description: "Producto de demostracion B", CurrentStock: 3, MinStock: 5},
	} {
		s.nextProductID++
		p.ID = s.nextProductID
		p.CreatedBy = 1
		p.CreatedAt = now
		s.products[p.ID] = p
	}

	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) CreateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == user.Username {
			return nil, store.ErrDuplicateKey
		}
	}

	s.nextUserID++
	user.ID = s.nextUserID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.ID] = user

	out := user
	return &out, nil
}

func (s *Store) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := user
	return &out, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Username == username {
			out := user
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context, role string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(s.users))
	for _, user := range s.users {
		if role != "" && user.Role != role {
			continue
		}
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.User) int {
		return int(a.ID - b.ID)
	})
	return users, nil
}

func (s *Store) UpdateUserActive(_ context.Context, id int64, active bool) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	user.Active = active
	s.users[id] = user

	out := user
	return &out, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, user := range s.users {
		if user.Username == username {
			user.PasswordHash = passwordHash
			s.users[id] = user
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextProductID++
	product.ID = s.nextProductID
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	s.products[product.ID] = product

	out := product
	return &out, nil
}

func (s *Store) GetProductByID(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := product
	return &out, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	// Stock moves only through sale/purchase commits.
	product.CurrentStock = existing.CurrentStock
	product.CreatedBy = existing.CreatedBy
	product.CreatedAt = existing.CreatedAt
	s.products[product.ID] = product

	out := product
	return &out, nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) LowStockProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0)
	for _, p := range s.products {
		if p.LowStock() {
			products = append(products, p)
		}
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[sale.ProductID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if sale.Quantity < 1 {
		return nil, store.ErrInvalidArgument
	}
	if product.CurrentStock < sale.Quantity {
		return nil, store.ErrInsufficientStock
	}

	product.CurrentStock -= sale.Quantity
	s.products[product.ID] = product

	s.nextSaleID++
	sale.ID = s.nextSaleID
	sale.ProductName = product.Name
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	s.sales[sale.ID] = sale

	out := sale
	return &out, nil
}

func (s *Store) GetSaleByID(_ context.Context, id int64) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := sale
	return &out, nil
}

// DeleteSale restores the sold quantity to the product before removing the
// sale. A sale whose product was deleted afterwards still deletes; the
// restore is skipped.
func (s *Store) DeleteSale(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[id]
	if !ok {
		return store.ErrNotFound
	}
	if product, ok := s.products[sale.ProductID]; ok {
		product.CurrentStock += sale.Quantity
		s.products[product.ID] = product
	}
	delete(s.sales, id)
	return nil
}

func (s *Store) SalesInRange(_ context.Context, from time.Time, to time.Time, cashierID int64) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0)
	for _, sale := range s.sales {
		if sale.CreatedAt.Before(from) || sale.CreatedAt.After(to) {
			continue
		}
		if cashierID != 0 && sale.CashierID != cashierID {
			continue
		}
		sales = append(sales, sale)
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return sales, nil
}

func (s *Store) CreatePurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[purchase.ProductID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if purchase.Quantity < 1 {
		return nil, store.ErrInvalidArgument
	}

	product.CurrentStock += purchase.Quantity
	s.products[product.ID] = product

	s.nextPurchaseID++
	purchase.ID = s.nextPurchaseID
	purchase.ProductName = product.Name
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}
	s.purchases[purchase.ID] = purchase

	out := purchase
	return &out, nil
}

func (s *Store) GetPurchaseByID(_ context.Context, id int64) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchase, ok := s.purchases[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := purchase
	return &out, nil
}

// DeletePurchase subtracts the purchased quantity from the product, floored
// at zero, before removing the purchase record.
func (s *Store) DeletePurchase(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	purchase, ok := s.purchases[id]
	if !ok {
		return store.ErrNotFound
	}
	if product, ok := s.products[purchase.ProductID]; ok {
		product.CurrentStock -= purchase.Quantity
		if product.CurrentStock < 0 {
			product.CurrentStock = 0
		}
		s.products[product.ID] = product
	}
	delete(s.purchases, id)
	return nil
}

func (s *Store) PurchasesInRange(_ context.Context, from time.Time, to time.Time, cashierID int64) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchases := make([]domain.Purchase, 0)
	for _, purchase := range s.purchases {
		if purchase.CreatedAt.Before(from) || purchase.CreatedAt.After(to) {
			continue
		}
		if cashierID != 0 && purchase.CashierID != cashierID {
			continue
		}
		purchases = append(purchases, purchase)
	}
	slices.SortFunc(purchases, func(a, b domain.Purchase) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return purchases, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCustomerID++
	customer.ID = s.nextCustomerID
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.customers[customer.ID] = customer

	out := customer
	return &out, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := customer
	return &out, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return int(a.ID - b.ID)
	})
	return customers, nil
}

func (s *Store) SearchCustomers(_ context.Context, query string) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query))
	customers := make([]domain.Customer, 0)
	for _, c := range s.customers {
		if needle == "" || customerMatches(c, needle) {
			customers = append(customers, c)
		}
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return int(a.ID - b.ID)
	})
	return customers, nil
}

func customerMatches(c domain.Customer, needle string) bool {
	for _, field := range []string{c.FirstName, c.LastName, c.Email, c.Phone, c.DNI} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.customers[customer.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	customer.CreatedAt = existing.CreatedAt
	s.customers[customer.ID] = customer

	out := customer
	return &out, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) CreateActivityLog(_ context.Context, entry domain.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextLogID++
	entry.ID = s.nextLogID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.activityLogs = append(s.activityLogs, entry)
	return nil
}

func (s *Store) ListActivityLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.ActivityLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.ActivityLog, 0)
	for _, entry := range s.activityLogs {
		if entry.CreatedAt.Before(from) || entry.CreatedAt.After(to) {
			continue
		}
		logs = append(logs, entry)
	}
	slices.SortFunc(logs, func(a, b domain.ActivityLog) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
