package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"bioxpos/internal/domain"
	"bioxpos/internal/store"
)

type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database file at path and applies any
// pending schema migrations.
func New(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_loc=UTC", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, storageErr("open", err)
	}

	// SQLite allows a single writer; a second connection would only queue
	// behind the busy timeout.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, storageErr("ping", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrations are applied in order; PRAGMA user_version records how many have
// run. Never reorder or edit an entry, only append.
var migrations = []string{`
	CREATE TABLE users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL,
		active        INTEGER NOT NULL DEFAULT 1,
		created_at    TIMESTAMP NOT NULL
	);

	CREATE TABLE products (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		name          TEXT NOT NULL,
		description   TEXT NOT NULL DEFAULT '',
		current_stock INTEGER NOT NULL DEFAULT 0,
		min_stock     INTEGER NOT NULL DEFAULT 0,
		created_by    INTEGER NOT NULL DEFAULT 0,
		created_at    TIMESTAMP NOT NULL
	);

	CREATE TABLE sales (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id      INTEGER NOT NULL,
		product_name    TEXT NOT NULL,
		quantity        INTEGER NOT NULL,
		sale_price      REAL NOT NULL,
		subtotal        REAL NOT NULL,
		tax             REAL NOT NULL,
		total           REAL NOT NULL,
		payment_method  TEXT NOT NULL,
		amount_received REAL NOT NULL DEFAULT 0,
		change_due      REAL NOT NULL DEFAULT 0,
		cashier_id      INTEGER NOT NULL,
		customer_id     INTEGER,
		created_at      TIMESTAMP NOT NULL
	);
	CREATE INDEX idx_sales_cashier ON sales(cashier_id);
	CREATE INDEX idx_sales_product ON sales(product_id);
	CREATE INDEX idx_sales_created ON sales(created_at);

	CREATE TABLE purchases (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id     INTEGER NOT NULL,
		product_name   TEXT NOT NULL,
		quantity       INTEGER NOT NULL,
		purchase_price REAL NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		cashier_id     INTEGER NOT NULL,
		created_at     TIMESTAMP NOT NULL
	);
	CREATE INDEX idx_purchases_cashier ON purchases(cashier_id);
	CREATE INDEX idx_purchases_product ON purchases(product_id);
	CREATE INDEX idx_purchases_created ON purchases(created_at);

	CREATE TABLE customers (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		first_name TEXT NOT NULL,
		last_name  TEXT NOT NULL DEFAULT '',
		email      TEXT NOT NULL DEFAULT '',
		phone      TEXT NOT NULL DEFAULT '',
		dni        TEXT NOT NULL DEFAULT '',
		notes      TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE activity_logs (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		username   TEXT NOT NULL,
		action     TEXT NOT NULL,
		detail     TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX idx_activity_created ON activity_logs(created_at);
`}

func (s *Store) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return storageErr("read schema version", err)
	}
	for i := version; i < len(migrations); i++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return storageErr("begin migration", err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return storageErr(fmt.Sprintf("apply migration %d", i+1), err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			_ = tx.Rollback()
			return storageErr("bump schema version", err)
		}
		if err := tx.Commit(); err != nil {
			return storageErr("commit migration", err)
		}
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, active, created_at)
		VALUES (?,?,?,?,?)
	`, user.Username, user.PasswordHash, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateKey
		}
		return nil, storageErr("create user", err)
	}
	user.ID, err = res.LastInsertId()
	if err != nil {
		return nil, storageErr("create user", err)
	}
	return &user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.getUser(ctx, `WHERE id = ?`, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getUser(ctx, `WHERE username = ?`, username)
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	var user domain.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, active, created_at
		FROM users `+where,
		arg,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, storageErr("get user", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context, role string) ([]domain.User, error) {
	query := `
		SELECT id, username, password_hash, role, active, created_at
		FROM users
	`
	args := []any{}
	if role != "" {
		query += ` WHERE role = ?`
		args = append(args, role)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list users", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0, 16)
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, storageErr("scan user", err)
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list users", err)
	}
	return users, nil
}

func (s *Store) UpdateUserActive(ctx context.Context, id int64, active bool) (*domain.User, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return nil, storageErr("update user", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetUserByID(ctx, id)
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE username = ?`, passwordHash, username)
	if err != nil {
		return storageErr("update password", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO products (name, description, current_stock, min_stock, created_by, created_at)
		VALUES (?,?,?,?,?,?)
	`, product.Name, product.Description, product.CurrentStock, product.MinStock, product.CreatedBy, product.CreatedAt)
	if err != nil {
		return nil, storageErr("create product", err)
	}
	product.ID, err = res.LastInsertId()
	if err != nil {
		return nil, storageErr("create product", err)
	}
	return &product, nil
}

func (s *Store) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, current_stock, min_stock, created_by, created_at
		FROM products
		WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.CurrentStock, &p.MinStock, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, storageErr("get product", err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.listProducts(ctx, ``)
}

func (s *Store) LowStockProducts(ctx context.Context) ([]domain.Product, error) {
	return s.listProducts(ctx, `WHERE current_stock <= min_stock`)
}

func (s *Store) listProducts(ctx context.Context, where string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, current_stock, min_stock, created_by, created_at
		FROM products `+where+`
		ORDER BY name
	`)
	if err != nil {
		return nil, storageErr("list products", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CurrentStock, &p.MinStock, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, storageErr("scan product", err)
		}
		p.CreatedAt = p.CreatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list products", err)
	}
	return products, nil
}

// UpdateProduct writes name, description and min stock. Stock moves only
// through sale/purchase commits.
func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, description = ?, min_stock = ?
		WHERE id = ?
	`, product.Name, product.Description, product.MinStock, product.ID)
	if err != nil {
		return nil, storageErr("update product", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetProductByID(ctx, product.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete product", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CreateSale decrements the product stock and inserts the sale record in one
// transaction. The stock check happens inside the transaction, so a
// concurrent sale can never drive stock negative.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.Quantity < 1 {
		return nil, store.ErrInvalidArgument
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin sale", err)
	}
	defer func() { _ = tx.Rollback() }()

	var stock int
	var name string
	err = tx.QueryRowContext(ctx, `SELECT current_stock, name FROM products WHERE id = ?`, sale.ProductID).Scan(&stock, &name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, storageErr("lock product", err)
	}
	if stock < sale.Quantity {
		return nil, store.ErrInsufficientStock
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE products SET current_stock = current_stock - ? WHERE id = ?
	`, sale.Quantity, sale.ProductID); err != nil {
		return nil, storageErr("decrement stock", err)
	}

	sale.ProductName = name
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO sales (product_id, product_name, quantity, sale_price, subtotal, tax, total,
			payment_method, amount_received, change_due, cashier_id, customer_id, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, sale.ProductID, sale.ProductName, sale.Quantity, sale.SalePrice, sale.Subtotal, sale.Tax, sale.Total,
		sale.PaymentMethod, sale.AmountReceived, sale.Change, sale.CashierID, nullableID(sale.CustomerID), sale.CreatedAt)
	if err != nil {
		return nil, storageErr("insert sale", err)
	}
	if sale.ID, err = res.LastInsertId(); err != nil {
		return nil, storageErr("insert sale", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit sale", err)
	}
	return &sale, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id int64) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, product_id, product_name, quantity, sale_price, subtotal, tax, total,
			payment_method, amount_received, change_due, cashier_id, customer_id, created_at
		FROM sales
		WHERE id = ?
	`, id)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, storageErr("get sale", err)
	}
	return sale, nil
}

// DeleteSale restores the sold quantity to the product before removing the
// sale. When the product itself has been deleted the restore touches zero
// rows and the delete still proceeds.
func (s *Store) DeleteSale(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin sale delete", err)
	}
	defer func() { _ = tx.Rollback() }()

	var productID int64
	var qty int
	err = tx.QueryRowContext(ctx, `SELECT product_id, quantity FROM sales WHERE id = ?`, id).Scan(&productID, &qty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return storageErr("load sale", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE products SET current_stock = current_stock + ? WHERE id = ?
	`, qty, productID); err != nil {
		return storageErr("restore stock", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sales WHERE id = ?`, id); err != nil {
		return storageErr("delete sale", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit sale delete", err)
	}
	return nil
}

func (s *Store) SalesInRange(ctx context.Context, from time.Time, to time.Time, cashierID int64) ([]domain.Sale, error) {
	query := `
		SELECT id, product_id, product_name, quantity, sale_price, subtotal, tax, total,
			payment_method, amount_received, change_due, cashier_id, customer_id, created_at
		FROM sales
		WHERE created_at >= ? AND created_at <= ?
	`
	args := []any{from.UTC(), to.UTC()}
	if cashierID != 0 {
		query += ` AND cashier_id = ?`
		args = append(args, cashierID)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("query sales", err)
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, storageErr("scan sale", err)
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query sales", err)
	}
	return sales, nil
}

// CreatePurchase increments the product stock and inserts the purchase
// record in one transaction.
func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.Quantity < 1 {
		return nil, store.ErrInvalidArgument
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin purchase", err)
	}
	defer func() { _ = tx.Rollback() }()

	var name string
	err = tx.QueryRowContext(ctx, `SELECT name FROM products WHERE id = ?`, purchase.ProductID).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, storageErr("lock product", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE products SET current_stock = current_stock + ? WHERE id = ?
	`, purchase.Quantity, purchase.ProductID); err != nil {
		return nil, storageErr("increment stock", err)
	}

	purchase.ProductName = name
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO purchases (product_id, product_name, quantity, purchase_price, description, cashier_id, created_at)
		VALUES (?,?,?,?,?,?,?)
	`, purchase.ProductID, purchase.ProductName, purchase.Quantity, purchase.PurchasePrice, purchase.Description, purchase.CashierID, purchase.CreatedAt)
	if err != nil {
		return nil, storageErr("insert purchase", err)
	}
	if purchase.ID, err = res.LastInsertId(); err != nil {
		return nil, storageErr("insert purchase", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit purchase", err)
	}
	return &purchase, nil
}

func (s *Store) GetPurchaseByID(ctx context.Context, id int64) (*domain.Purchase, error) {
	var p domain.Purchase
	err := s.db.QueryRowContext(ctx, `
		SELECT id, product_id, product_name, quantity, purchase_price, description, cashier_id, created_at
		FROM purchases
		WHERE id = ?
	`, id).Scan(&p.ID, &p.ProductID, &p.ProductName, &p.Quantity, &p.PurchasePrice, &p.Description, &p.CashierID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, storageErr("get purchase", err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

// DeletePurchase subtracts the purchased quantity from the product, floored
// at zero, before removing the purchase record.
func (s *Store) DeletePurchase(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin purchase delete", err)
	}
	defer func() { _ = tx.Rollback() }()

	var productID int64
	var qty int
	err = tx.QueryRowContext(ctx, `SELECT product_id, quantity FROM purchases WHERE id = ?`, id).Scan(&productID, &qty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return storageErr("load purchase", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE products SET current_stock = MAX(0, current_stock - ?) WHERE id = ?
	`, qty, productID); err != nil {
		return storageErr("reverse stock", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM purchases WHERE id = ?`, id); err != nil {
		return storageErr("delete purchase", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit purchase delete", err)
	}
	return nil
}

func (s *Store) PurchasesInRange(ctx context.Context, from time.Time, to time.Time, cashierID int64) ([]domain.Purchase, error) {
	query := `
		SELECT id, product_id, product_name, quantity, purchase_price, description, cashier_id, created_at
		FROM purchases
		WHERE created_at >= ? AND created_at <= ?
	`
	args := []any{from.UTC(), to.UTC()}
	if cashierID != 0 {
		query += ` AND cashier_id = ?`
		args = append(args, cashierID)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("query purchases", err)
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, 64)
	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(&p.ID, &p.ProductID, &p.ProductName, &p.Quantity, &p.PurchasePrice, &p.Description, &p.CashierID, &p.CreatedAt); err != nil {
			return nil, storageErr("scan purchase", err)
		}
		p.CreatedAt = p.CreatedAt.UTC()
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query purchases", err)
	}
	return purchases, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (first_name, last_name, email, phone, dni, notes, created_at)
		VALUES (?,?,?,?,?,?,?)
	`, customer.FirstName, customer.LastName, customer.Email, customer.Phone, customer.DNI, customer.Notes, customer.CreatedAt)
	if err != nil {
		return nil, storageErr("create customer", err)
	}
	if customer.ID, err = res.LastInsertId(); err != nil {
		return nil, storageErr("create customer", err)
	}
	return &customer, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id int64) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, phone, dni, notes, created_at
		FROM customers
		WHERE id = ?
	`, id).Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.DNI, &c.Notes, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, storageErr("get customer", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.listCustomers(ctx, ``, nil)
}

func (s *Store) SearchCustomers(ctx context.Context, query string) ([]domain.Customer, error) {
	needle := strings.TrimSpace(query)
	if needle == "" {
		return s.listCustomers(ctx, ``, nil)
	}
	pattern := "%" + needle + "%"
	where := `
		WHERE first_name LIKE ? OR last_name LIKE ? OR email LIKE ? OR phone LIKE ? OR dni LIKE ?
	`
	return s.listCustomers(ctx, where, []any{pattern, pattern, pattern, pattern, pattern})
}

func (s *Store) listCustomers(ctx context.Context, where string, args []any) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, first_name, last_name, email, phone, dni, notes, created_at
		FROM customers `+where+`
		ORDER BY id
	`, args...)
	if err != nil {
		return nil, storageErr("list customers", err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.DNI, &c.Notes, &c.CreatedAt); err != nil {
			return nil, storageErr("scan customer", err)
		}
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list customers", err)
	}
	return customers, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET first_name = ?, last_name = ?, email = ?, phone = ?, dni = ?, notes = ?
		WHERE id = ?
	`, customer.FirstName, customer.LastName, customer.Email, customer.Phone, customer.DNI, customer.Notes, customer.ID)
	if err != nil {
		return nil, storageErr("update customer", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetCustomerByID(ctx, customer.ID)
}

func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete customer", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateActivityLog(ctx context.Context, entry domain.ActivityLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_logs (username, action, detail, created_at)
		VALUES (?,?,?,?)
	`, entry.Username, entry.Action, entry.Detail, entry.CreatedAt)
	if err != nil {
		return storageErr("create activity log", err)
	}
	return nil
}

func (s *Store) ListActivityLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.ActivityLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, action, detail, created_at
		FROM activity_logs
		WHERE created_at >= ? AND created_at <= ?
		ORDER BY created_at DESC
		LIMIT ?
	`, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, storageErr("list activity logs", err)
	}
	defer rows.Close()

	logs := make([]domain.ActivityLog, 0, limit)
	for rows.Next() {
		var entry domain.ActivityLog
		if err := rows.Scan(&entry.ID, &entry.Username, &entry.Action, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, storageErr("scan activity log", err)
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list activity logs", err)
	}
	return logs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (*domain.Sale, error) {
	var sale domain.Sale
	var customerID sql.NullInt64
	err := row.Scan(&sale.ID, &sale.ProductID, &sale.ProductName, &sale.Quantity, &sale.SalePrice,
		&sale.Subtotal, &sale.Tax, &sale.Total, &sale.PaymentMethod, &sale.AmountReceived,
		&sale.Change, &sale.CashierID, &customerID, &sale.CreatedAt)
	if err != nil {
		return nil, err
	}
	if customerID.Valid {
		sale.CustomerID = &customerID.Int64
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	return &sale, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", store.ErrStorageFailure, op, err)
}
