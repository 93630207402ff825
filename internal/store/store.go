package store

import (
	"context"
	"errors"
	"time"

	"bioxpos/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrStorageFailure    = errors.New("storage failure")
)

// Repository is the persistence contract shared by the in-memory and SQLite
// stores. Ids are assigned by the store, monotonically per collection.
//
// CreateSale and CreatePurchase move stock and record the movement in one
// atomic step; DeleteSale and DeletePurchase reverse that movement before
// removing the record. Partial effects never survive an error.
type Repository interface {
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context, role string) ([]domain.User, error)
	UpdateUserActive(ctx context.Context, id int64, active bool) (*domain.User, error)
	UpdateUserPassword(ctx context.Context, username string, passwordHash string) error

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	LowStockProducts(ctx context.Context) ([]domain.Product, error)

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, id int64) (*domain.Sale, error)
	DeleteSale(ctx context.Context, id int64) error
	SalesInRange(ctx context.Context, from time.Time, to time.Time, cashierID int64) ([]domain.Sale, error)

	CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	GetPurchaseByID(ctx context.Context, id int64) (*domain.Purchase, error)
	DeletePurchase(ctx context.Context, id int64) error
	PurchasesInRange(ctx context.Context, from time.Time, to time.Time, cashierID int64) ([]domain.Purchase, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomerByID(ctx context.Context, id int64) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	SearchCustomers(ctx context.Context, query string) ([]domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error

	CreateActivityLog(ctx context.Context, entry domain.ActivityLog) error
	ListActivityLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.ActivityLog, error)
}
