// Command pos boots the store, makes sure an admin account exists and
// prints the current inventory status. The desktop shell links the service
// packages directly; this binary is for provisioning and inspection.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"bioxpos/internal/auth"
	"bioxpos/internal/cache"
	"bioxpos/internal/config"
	"bioxpos/internal/domain"
	"bioxpos/internal/receipt"
	"bioxpos/internal/service"
	"bioxpos/internal/store"
	"bioxpos/internal/store/memory"
	"bioxpos/internal/store/sqlite"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using process environment")
	}
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabasePath != "" {
		db, err := sqlite.New(ctx, cfg.DatabasePath)
		if err != nil {
			log.Fatalf("sqlite unavailable (%v) and POS_DB_PATH is set; refusing to start with in-memory fallback", err)
		}
		repo = db
		closers = append(closers, db.Close)
		log.Printf("repository: sqlite (%s)", cfg.DatabasePath)
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	summaries := cache.SummaryCache(cache.NoopSummaryCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisSummaryCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			summaries = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	receipts := receipt.NewGenerator(receipt.Company{
		Name:              cfg.CompanyName,
		Slogan:            cfg.CompanySlogan,
		LegalName:         cfg.CompanyLegalName,
		TaxID:             cfg.CompanyTaxID,
		Address:           cfg.CompanyAddress,
		Contact:           cfg.CompanyContact,
		Website:           cfg.CompanyWebsite,
		QRContent:         cfg.StoreURL,
		AuthorizationNote: receipt.DefaultCompany().AuthorizationNote,
	})
	sessions := auth.NewManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	svc := service.New(repo, sessions, summaries, receipts, time.Duration(cfg.SummaryTTLSeconds)*time.Second)
	log.Printf("receipts: %s", cfg.ReceiptDir)

	if err := ensureAdmin(ctx, repo); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}
	upgradeLegacyPasswords(ctx, repo)

	printStatus(ctx, svc, repo)

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}
}

// ensureAdmin creates the bootstrap admin account when the store has no
// users at all, so a fresh database is always reachable.
func ensureAdmin(ctx context.Context, repo store.Repository) error {
	users, err := repo.ListUsers(ctx, "")
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}

	password := envOr("BOOTSTRAP_ADMIN_PASSWORD", "admin123")
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	created, err := repo.CreateUser(ctx, domain.User{
		Username:     "admin",
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil && !errors.Is(err, store.ErrDuplicateKey) {
		return err
	}
	if created != nil {
		log.Printf("bootstrap admin created (id=%d); change BOOTSTRAP_ADMIN_PASSWORD before go-live", created.ID)
	}
	return nil
}

// upgradeLegacyPasswords rehashes any credential still stored as plain
// text. Databases imported from the old desktop app carry those.
func upgradeLegacyPasswords(ctx context.Context, repo store.Repository) {
	users, err := repo.ListUsers(ctx, "")
	if err != nil {
		log.Printf("password upgrade: list users failed: %v", err)
		return
	}
	for _, user := range users {
		if auth.IsPasswordHash(user.PasswordHash) {
			continue
		}
		hash, err := auth.HashPassword(user.PasswordHash)
		if err != nil {
			log.Printf("password upgrade: hash failed for %s: %v", user.Username, err)
			continue
		}
		if err := repo.UpdateUserPassword(ctx, user.Username, hash); err != nil {
			log.Printf("password upgrade: store failed for %s: %v", user.Username, err)
			continue
		}
		log.Printf("password upgrade: %s rehashed", user.Username)
	}
}

func printStatus(ctx context.Context, svc *service.Service, repo store.Repository) {
	products, err := repo.ListProducts(ctx)
	if err != nil {
		log.Printf("status: list products failed: %v", err)
		return
	}
	log.Printf("status: %d products", len(products))

	low, err := svc.LowStockProducts(ctx)
	if err != nil {
		log.Printf("status: low stock check failed: %v", err)
		return
	}
	for _, p := range low {
		log.Printf("status: LOW STOCK %s (%d/%d)", p.Name, p.CurrentStock, p.MinStock)
	}
	if len(low) == 0 {
		log.Println("status: no low stock alerts")
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
