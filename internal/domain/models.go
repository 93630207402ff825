package domain

import "time"

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

const (
	PaymentCash   = "cash"
	PaymentCard   = "card"
	PaymentWallet = "wallet"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor identifies the authenticated user behind a request context.
type Actor struct {
	UserID   int64
	Username string
	Role     string
}

type Product struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	CurrentStock int       `json:"current_stock"`
	MinStock     int       `json:"min_stock"`
	CreatedBy    int64     `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// LowStock reports whether the product is at or below its alert threshold.
func (p Product) LowStock() bool {
	return p.CurrentStock <= p.MinStock
}

type Purchase struct {
	ID            int64     `json:"id"`
	ProductID     int64     `json:"product_id"`
	ProductName   string    `json:"product_name"`
	Quantity      int       `json:"quantity"`
	PurchasePrice float64   `json:"purchase_price"`
	Description   string    `json:"description,omitempty"`
	CashierID     int64     `json:"cashier_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Cost is the total amount paid for the purchase.
func (p Purchase) Cost() float64 {
	return float64(p.Quantity) * p.PurchasePrice
}

type Sale struct {
	ID             int64     `json:"id"`
	ProductID      int64     `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Quantity       int       `json:"quantity"`
	SalePrice      float64   `json:"sale_price"`
	Subtotal       float64   `json:"subtotal"`
	Tax            float64   `json:"tax"`
	Total          float64   `json:"total"`
	PaymentMethod  string    `json:"payment_method"`
	AmountReceived float64   `json:"amount_received,omitempty"`
	Change         float64   `json:"change,omitempty"`
	CashierID      int64     `json:"cashier_id"`
	CustomerID     *int64    `json:"customer_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type Customer struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	DNI       string    `json:"dni,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FullName joins first and last name for display and receipts.
func (c Customer) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// ActivityLog is an append-only audit entry. Writes are best-effort: a
// failed write never aborts the operation it describes.
type ActivityLog struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type ProductCreateRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	InitialStock int    `json:"initial_stock"`
	MinStock     int    `json:"min_stock"`
}

type ProductUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	MinStock    *int    `json:"min_stock,omitempty"`
}

type SaleRequest struct {
	ProductID      int64   `json:"product_id"`
	Quantity       int     `json:"quantity"`
	SalePrice      float64 `json:"sale_price"`
	PaymentMethod  string  `json:"payment_method"`
	AmountReceived float64 `json:"amount_received"`
	CustomerID     *int64  `json:"customer_id,omitempty"`
}

type PurchaseRequest struct {
	ProductID     int64   `json:"product_id"`
	Quantity      int     `json:"quantity"`
	PurchasePrice float64 `json:"purchase_price"`
	Description   string  `json:"description"`
}

type CustomerCreateRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	DNI       string `json:"dni"`
	Notes     string `json:"notes"`
}

type CustomerUpdateRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	DNI       *string `json:"dni,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Session struct {
	AccessToken string    `json:"access_token"`
	UserID      int64     `json:"user_id"`
	Username    string    `json:"username"`
	Role        string    `json:"role"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func IsSupportedPaymentMethod(method string) bool {
	switch method {
	case PaymentCash, PaymentCard, PaymentWallet:
		return true
	}
	return false
}

func IsSupportedRole(role string) bool {
	return role == RoleAdmin || role == RoleCashier
}
