package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bioxpos/internal/domain"
	"bioxpos/internal/store/memory"
)

func newTestManager(t *testing.T) (*Manager, *memory.Store) {
	t.Helper()
	repo := memory.New()

	hash, err := HashPassword("secreto9")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if _, err := repo.CreateUser(context.Background(), domain.User{
		Username:     "cajero1",
		PasswordHash: hash,
		Role:         domain.RoleCashier,
		Active:       true,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	return NewManager("unit-test-secret-0123456789abcdef", time.Minute, repo), repo
}

func TestLoginAndParseToken(t *testing.T) {
	mgr, _ := newTestManager(t)

	session, err := mgr.Login(context.Background(), domain.LoginRequest{
		Username: "cajero1",
		Password: "secreto9",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if session.Role != domain.RoleCashier || session.AccessToken == "" {
		t.Fatalf("unexpected session: %+v", session)
	}

	actor, err := mgr.ParseToken(session.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.Username != "cajero1" || actor.Role != domain.RoleCashier || actor.UserID != session.UserID {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestLoginNormalizesUsername(t *testing.T) {
	mgr, _ := newTestManager(t)

	if _, err := mgr.Login(context.Background(), domain.LoginRequest{
		Username: "  Cajero1  ",
		Password: "secreto9",
	}); err != nil {
		t.Fatalf("login with padded username failed: %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	mgr, _ := newTestManager(t)

	cases := []domain.LoginRequest{
		{Username: "cajero1", Password: "incorrecto"},
		{Username: "desconocido", Password: "secreto9"},
		{Username: "cajero1", Password: ""},
		{Username: "", Password: "secreto9"},
	}
	for _, req := range cases {
		if _, err := mgr.Login(context.Background(), req); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials for %+v, got %v", req, err)
		}
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	mgr, repo := newTestManager(t)

	if _, err := repo.UpdateUserActive(context.Background(), 1, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := mgr.Login(context.Background(), domain.LoginRequest{
		Username: "cajero1",
		Password: "secreto9",
	}); !errors.Is(err, ErrInactiveAccount) {
		t.Fatalf("expected ErrInactiveAccount, got %v", err)
	}
}

func TestLoginUpgradesPlaintextCredential(t *testing.T) {
	mgr, repo := newTestManager(t)

	if _, err := repo.CreateUser(context.Background(), domain.User{
		Username:     "legacy",
		PasswordHash: "texto-plano",
		Role:         domain.RoleAdmin,
		Active:       true,
	}); err != nil {
		t.Fatalf("seed legacy user: %v", err)
	}

	if _, err := mgr.Login(context.Background(), domain.LoginRequest{
		Username: "legacy",
		Password: "texto-plano",
	}); err != nil {
		t.Fatalf("legacy login failed: %v", err)
	}

	stored, err := repo.GetUserByUsername(context.Background(), "legacy")
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if !IsPasswordHash(stored.PasswordHash) {
		t.Fatalf("expected stored credential upgraded, got %q", stored.PasswordHash)
	}

	// Second login verifies against the upgraded hash.
	if _, err := mgr.Login(context.Background(), domain.LoginRequest{
		Username: "legacy",
		Password: "texto-plano",
	}); err != nil {
		t.Fatalf("post-upgrade login failed: %v", err)
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	mgr, _ := newTestManager(t)

	session, err := mgr.Login(context.Background(), domain.LoginRequest{
		Username: "cajero1",
		Password: "secreto9",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	tampered := session.AccessToken[:len(session.AccessToken)-2] + "xx"
	if _, err := mgr.ParseToken(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	other := NewManager("another-secret-another-secret-12", time.Minute, nil)
	if _, err := other.ParseToken(session.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected token signed with other secret to fail, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	repo := memory.New()
	hash, _ := HashPassword("secreto9")
	if _, err := repo.CreateUser(context.Background(), domain.User{
		Username: "cajero1", PasswordHash: hash, Role: domain.RoleCashier, Active: true,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	mgr := &Manager{secret: []byte("unit-test-secret-0123456789abcdef"), tokenTTL: -time.Minute, users: repo}

	user, _ := repo.GetUserByUsername(context.Background(), "cajero1")
	token, err := mgr.sign(user, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := mgr.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token rejection, got %v", err)
	}
}

func TestIsPasswordHash(t *testing.T) {
	hash, err := HashPassword("whatever")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !IsPasswordHash(hash) || !strings.HasPrefix(hash, "$2") {
		t.Fatalf("generated hash not recognized: %q", hash)
	}
	if IsPasswordHash("plaintext") || IsPasswordHash("") {
		t.Fatalf("plaintext recognized as hash")
	}
}
