package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"bioxpos/internal/domain"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is inactive")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// UserStore is the slice of the repository the manager needs.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateUserPassword(ctx context.Context, username string, passwordHash string) error
}

type Manager struct {
	secret   []byte
	tokenTTL time.Duration
	users    UserStore
}

type posCustomClaims struct {
	jwtlib.RegisteredClaims
	UserID int64  `json:"uid"`
	Role   string `json:"role"`
}

func NewManager(secret string, tokenTTL time.Duration, users UserStore) *Manager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &Manager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		users:    users,
	}
}

// Login verifies the credentials against the user store and returns a signed
// session token. A legacy plain-text password found in the store is upgraded
// to a bcrypt hash in place before verification.
func (a *Manager) Login(ctx context.Context, req domain.LoginRequest) (domain.Session, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || strings.TrimSpace(req.Password) == "" {
		return domain.Session{}, ErrInvalidCredentials
	}

	user, err := a.users.GetUserByUsername(ctx, username)
	if err != nil {
		return domain.Session{}, ErrInvalidCredentials
	}

	stored := user.PasswordHash
	if !IsPasswordHash(stored) {
		hashed, err := HashPassword(stored)
		if err == nil {
			if err := a.users.UpdateUserPassword(ctx, username, hashed); err == nil {
				stored = hashed
			}
		}
	}
	if !verifyPassword(stored, req.Password) {
		return domain.Session{}, ErrInvalidCredentials
	}
	if !user.Active {
		return domain.Session{}, ErrInactiveAccount
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(user, expiresAt)
	if err != nil {
		return domain.Session{}, err
	}

	return domain.Session{
		AccessToken: token,
		UserID:      user.ID,
		Username:    user.Username,
		Role:        user.Role,
		ExpiresAt:   expiresAt,
	}, nil
}

func (a *Manager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &posCustomClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, ErrInvalidToken
	}
	return domain.Actor{UserID: claims.UserID, Username: sub, Role: claims.Role}, nil
}

func (a *Manager) sign(user *domain.User, expiresAt time.Time) (string, error) {
	claims := posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.Username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "bioxpos",
		},
		UserID: user.ID,
		Role:   user.Role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !IsPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func IsPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
