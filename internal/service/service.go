package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"bioxpos/internal/auth"
	"bioxpos/internal/cache"
	"bioxpos/internal/domain"
	"bioxpos/internal/receipt"
	"bioxpos/internal/report"
	"bioxpos/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo       store.Repository
	sessions   *auth.Manager
	summaries  cache.SummaryCache
	receipts   *receipt.Generator
	summaryTTL time.Duration
}

func New(repo store.Repository, sessions *auth.Manager, summaries cache.SummaryCache, receipts *receipt.Generator, summaryTTL time.Duration) *Service {
	if sessions == nil {
		sessions = auth.NewManager("", 0, repo)
	}
	if summaries == nil {
		summaries = cache.NoopSummaryCache{}
	}
	if receipts == nil {
		receipts = receipt.NewGenerator(receipt.DefaultCompany())
	}
	if summaryTTL <= 0 {
		summaryTTL = 30 * time.Second
	}

	return &Service{
		repo:       repo,
		sessions:   sessions,
		summaries:  summaries,
		receipts:   receipts,
		summaryTTL: summaryTTL,
	}
}

// Login verifies credentials, records the login in the activity log and
// returns the signed session.
func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (domain.Session, error) {
	session, err := s.sessions.Login(ctx, req)
	if err != nil {
		return domain.Session{}, err
	}

	actorCtx := WithActor(ctx, domain.Actor{UserID: session.UserID, Username: session.Username, Role: session.Role})
	s.logAudit(actorCtx, "login", fmt.Sprintf("username=%s", session.Username))
	return session, nil
}

// Authenticate resolves a session token back to its actor.
func (s *Service) Authenticate(token string) (domain.Actor, error) {
	return s.sessions.ParseToken(token)
}

func (s *Service) requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Actor{}, fmt.Errorf("admin role required")
	}
	return actor, nil
}

func (s *Service) requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, fmt.Errorf("authentication required")
	}
	return actor, nil
}

func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.User, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.User{}, err
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || len(username) < 4 {
		return domain.User{}, fmt.Errorf("username must be at least 4 characters: %w", store.ErrInvalidArgument)
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return domain.User{}, fmt.Errorf("username must not contain spaces: %w", store.ErrInvalidArgument)
	}
	if strings.TrimSpace(req.Password) == "" || len(req.Password) < 6 {
		return domain.User{}, fmt.Errorf("password must be at least 6 characters: %w", store.ErrInvalidArgument)
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = domain.RoleCashier
	}
	if !domain.IsSupportedRole(role) {
		return domain.User{}, fmt.Errorf("unknown role %q: %w", role, store.ErrInvalidArgument)
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.repo.CreateUser(ctx, domain.User{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return domain.User{}, err
	}

	s.logAudit(ctx, "user_create", fmt.Sprintf("username=%s role=%s", created.Username, created.Role))
	return *created, nil
}

func (s *Service) ListCashiers(ctx context.Context) ([]domain.User, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx, domain.RoleCashier)
}

// SetUserActive toggles an account. Accounts are never hard-deleted.
func (s *Service) SetUserActive(ctx context.Context, userID int64, active bool) (domain.User, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.User{}, err
	}

	updated, err := s.repo.UpdateUserActive(ctx, userID, active)
	if err != nil {
		return domain.User{}, err
	}

	s.logAudit(ctx, "user_status", fmt.Sprintf("username=%s active=%t", updated.Username, updated.Active))
	return *updated, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if req.Name == "" {
		return domain.Product{}, fmt.Errorf("product name required: %w", store.ErrInvalidArgument)
	}
	if req.InitialStock < 0 || req.MinStock < 0 {
		return domain.Product{}, fmt.Errorf("stock levels must not be negative: %w", store.ErrInvalidArgument)
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:         req.Name,
		Description:  req.Description,
		CurrentStock: req.InitialStock,
		MinStock:     req.MinStock,
		CreatedBy:    actor.UserID,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", fmt.Sprintf("id=%d name=%s stock=%d", created.ID, created.Name, created.CurrentStock))
	return *created, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (domain.Product, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("product name required: %w", store.ErrInvalidArgument)
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return domain.Product{}, fmt.Errorf("min stock must not be negative: %w", store.ErrInvalidArgument)
		}
		updated.MinStock = *req.MinStock
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", fmt.Sprintf("id=%d name=%s min_stock=%d", saved.ID, saved.Name, saved.MinStock))
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if _, err := s.requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "product_delete", fmt.Sprintf("id=%d", id))
	return nil
}

func (s *Service) LowStockProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.LowStockProducts(ctx)
}

// CommitSale records a sale for the acting cashier. The total is quantity
// times unit price; subtotal and tax are its tax-inclusive decomposition.
// Cash payments must cover the total and get change back; other methods
// carry no received amount.
func (s *Service) CommitSale(ctx context.Context, req domain.SaleRequest) (domain.Sale, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Sale{}, err
	}

	if req.Quantity < 1 {
		return domain.Sale{}, fmt.Errorf("quantity must be positive: %w", store.ErrInvalidArgument)
	}
	if req.SalePrice < 0 {
		return domain.Sale{}, fmt.Errorf("sale price must not be negative: %w", store.ErrInvalidArgument)
	}
	if !domain.IsSupportedPaymentMethod(req.PaymentMethod) {
		return domain.Sale{}, fmt.Errorf("unknown payment method %q: %w", req.PaymentMethod, store.ErrInvalidArgument)
	}
	if req.CustomerID != nil {
		if _, err := s.repo.GetCustomerByID(ctx, *req.CustomerID); err != nil {
			return domain.Sale{}, err
		}
	}

	total := domain.LineTotal(req.SalePrice, req.Quantity)
	subtotal, tax := domain.SplitTax(total)

	sale := domain.Sale{
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		SalePrice:     req.SalePrice,
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         total,
		PaymentMethod: req.PaymentMethod,
		CashierID:     actor.UserID,
		CustomerID:    req.CustomerID,
		CreatedAt:     time.Now().UTC(),
	}

	if req.PaymentMethod == domain.PaymentCash {
		change := domain.CashChange(req.AmountReceived, total)
		if change < 0 {
			return domain.Sale{}, fmt.Errorf("amount received %.2f does not cover total %.2f: %w", req.AmountReceived, total, store.ErrInvalidArgument)
		}
		sale.AmountReceived = domain.Round2(req.AmountReceived)
		sale.Change = change
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "sale_commit", fmt.Sprintf("id=%d product=%d qty=%d total=%.2f method=%s", created.ID, created.ProductID, created.Quantity, created.Total, created.PaymentMethod))
	return *created, nil
}

// CommitPurchase records a stock intake for the acting user.
func (s *Service) CommitPurchase(ctx context.Context, req domain.PurchaseRequest) (domain.Purchase, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Purchase{}, err
	}

	if req.Quantity < 1 {
		return domain.Purchase{}, fmt.Errorf("quantity must be positive: %w", store.ErrInvalidArgument)
	}
	if req.PurchasePrice < 0 {
		return domain.Purchase{}, fmt.Errorf("purchase price must not be negative: %w", store.ErrInvalidArgument)
	}

	created, err := s.repo.CreatePurchase(ctx, domain.Purchase{
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		PurchasePrice: req.PurchasePrice,
		Description:   strings.TrimSpace(req.Description),
		CashierID:     actor.UserID,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return domain.Purchase{}, err
	}

	s.logAudit(ctx, "purchase_commit", fmt.Sprintf("id=%d product=%d qty=%d price=%.2f", created.ID, created.ProductID, created.Quantity, created.PurchasePrice))
	return *created, nil
}

// ReverseSale deletes a sale and puts its quantity back in stock. When the
// product has since been deleted the restore is skipped and the sale still
// goes away.
func (s *Service) ReverseSale(ctx context.Context, saleID int64) error {
	if _, err := s.requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteSale(ctx, saleID); err != nil {
		return err
	}
	s.logAudit(ctx, "sale_reverse", fmt.Sprintf("id=%d", saleID))
	return nil
}

// ReversePurchase deletes a purchase and subtracts its quantity from stock,
// floored at zero.
func (s *Service) ReversePurchase(ctx context.Context, purchaseID int64) error {
	if _, err := s.requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeletePurchase(ctx, purchaseID); err != nil {
		return err
	}
	s.logAudit(ctx, "purchase_reverse", fmt.Sprintf("id=%d", purchaseID))
	return nil
}

func (s *Service) GetSale(ctx context.Context, id int64) (domain.Sale, error) {
	sale, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) GetPurchase(ctx context.Context, id int64) (domain.Purchase, error) {
	purchase, err := s.repo.GetPurchaseByID(ctx, id)
	if err != nil {
		return domain.Purchase{}, err
	}
	return *purchase, nil
}

// SalesInRange returns the sales between from and to inclusive. Admins may
// filter by any cashier (0 means all); cashiers only ever see their own.
func (s *Service) SalesInRange(ctx context.Context, from, to time.Time, cashierID int64) ([]domain.Sale, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleAdmin {
		cashierID = actor.UserID
	}
	return s.repo.SalesInRange(ctx, from, to, cashierID)
}

// PurchasesInRange mirrors SalesInRange for stock intakes.
func (s *Service) PurchasesInRange(ctx context.Context, from, to time.Time, cashierID int64) ([]domain.Purchase, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleAdmin {
		cashierID = actor.UserID
	}
	return s.repo.PurchasesInRange(ctx, from, to, cashierID)
}

// RangeSummary builds the admin report for a window: totals, profit, per-day
// buckets and per-cashier standings.
func (s *Service) RangeSummary(ctx context.Context, from, to time.Time) (report.Summary, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return report.Summary{}, err
	}
	if err := validateRange(from, to); err != nil {
		return report.Summary{}, err
	}
	return s.buildSummary(ctx, from, to)
}

// DashboardSummary is today's report, served from the summary cache when a
// fresh enough copy exists.
func (s *Service) DashboardSummary(ctx context.Context) (report.Summary, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return report.Summary{}, err
	}

	now := time.Now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	to := from.Add(24*time.Hour - time.Nanosecond)
	key := "summary:" + from.Format("2006-01-02")

	if cached, ok, err := s.summaries.Get(ctx, key); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: summary cache read failed key=%s: %v", key, err)
	}

	summary, err := s.buildSummary(ctx, from, to)
	if err != nil {
		return report.Summary{}, err
	}
	if err := s.summaries.Set(ctx, key, &summary, s.summaryTTL); err != nil {
		log.Printf("[service] WARN: summary cache write failed key=%s: %v", key, err)
	}
	return summary, nil
}

func (s *Service) buildSummary(ctx context.Context, from, to time.Time) (report.Summary, error) {
	sales, err := s.repo.SalesInRange(ctx, from, to, 0)
	if err != nil {
		return report.Summary{}, err
	}
	purchases, err := s.repo.PurchasesInRange(ctx, from, to, 0)
	if err != nil {
		return report.Summary{}, err
	}
	cashiers, err := s.repo.ListUsers(ctx, domain.RoleCashier)
	if err != nil {
		return report.Summary{}, err
	}
	return report.Build(from, to, sales, purchases, cashiers), nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	if _, err := s.requireActor(ctx); err != nil {
		return domain.Customer{}, err
	}

	req.FirstName = strings.TrimSpace(req.FirstName)
	if req.FirstName == "" {
		return domain.Customer{}, fmt.Errorf("customer first name required: %w", store.ErrInvalidArgument)
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		FirstName: req.FirstName,
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		DNI:       strings.TrimSpace(req.DNI),
		Notes:     strings.TrimSpace(req.Notes),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_create", fmt.Sprintf("id=%d name=%s", created.ID, created.FullName()))
	return *created, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) SearchCustomers(ctx context.Context, query string) ([]domain.Customer, error) {
	return s.repo.SearchCustomers(ctx, query)
}

func (s *Service) UpdateCustomer(ctx context.Context, id int64, req domain.CustomerUpdateRequest) (domain.Customer, error) {
	if _, err := s.requireActor(ctx); err != nil {
		return domain.Customer{}, err
	}

	existing, err := s.repo.GetCustomerByID(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}

	updated := *existing
	if req.FirstName != nil {
		firstName := strings.TrimSpace(*req.FirstName)
		if firstName == "" {
			return domain.Customer{}, fmt.Errorf("customer first name required: %w", store.ErrInvalidArgument)
		}
		updated.FirstName = firstName
	}
	if req.LastName != nil {
		updated.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Email != nil {
		updated.Email = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.DNI != nil {
		updated.DNI = strings.TrimSpace(*req.DNI)
	}
	if req.Notes != nil {
		updated.Notes = strings.TrimSpace(*req.Notes)
	}

	saved, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_update", fmt.Sprintf("id=%d name=%s", saved.ID, saved.FullName()))
	return *saved, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	if _, err := s.requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "customer_delete", fmt.Sprintf("id=%d", id))
	return nil
}

func (s *Service) ListActivityLogs(ctx context.Context, from, to time.Time, limit int) ([]domain.ActivityLog, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	return s.repo.ListActivityLogs(ctx, from, to, limit)
}

// RenderReceipt produces the ticket PDF for a sale. Missing cashier or
// customer records degrade the ticket, never fail it.
func (s *Service) RenderReceipt(ctx context.Context, saleID int64) ([]byte, string, error) {
	if _, err := s.requireActor(ctx); err != nil {
		return nil, "", err
	}

	sale, err := s.repo.GetSaleByID(ctx, saleID)
	if err != nil {
		return nil, "", err
	}

	cashier, customer := s.receiptParties(ctx, *sale)
	return s.receipts.Render([]domain.Sale{*sale}, cashier, customer)
}

// WriteReceipt renders the ticket and writes it under dir.
func (s *Service) WriteReceipt(ctx context.Context, saleID int64, dir string) (string, error) {
	if _, err := s.requireActor(ctx); err != nil {
		return "", err
	}

	sale, err := s.repo.GetSaleByID(ctx, saleID)
	if err != nil {
		return "", err
	}

	cashier, customer := s.receiptParties(ctx, *sale)
	path, err := s.receipts.WriteFile(dir, []domain.Sale{*sale}, cashier, customer)
	if err != nil {
		return "", err
	}

	s.logAudit(ctx, "receipt_write", fmt.Sprintf("sale=%d file=%s", saleID, path))
	return path, nil
}

func (s *Service) receiptParties(ctx context.Context, sale domain.Sale) (*domain.User, *domain.Customer) {
	cashier, err := s.repo.GetUserByID(ctx, sale.CashierID)
	if err != nil {
		log.Printf("[service] WARN: receipt cashier lookup failed id=%d: %v", sale.CashierID, err)
		cashier = nil
	}
	var customer *domain.Customer
	if sale.CustomerID != nil {
		customer, err = s.repo.GetCustomerByID(ctx, *sale.CustomerID)
		if err != nil {
			log.Printf("[service] WARN: receipt customer lookup failed id=%d: %v", *sale.CustomerID, err)
			customer = nil
		}
	}
	return cashier, customer
}

func validateRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return fmt.Errorf("invalid date range: %w", store.ErrInvalidArgument)
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, action string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateActivityLog(ctx, domain.ActivityLog{
		Username:  actor.Username,
		Action:    action,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write activity log action=%s: %v", action, err)
	}
}
