package auth

import (
	"context"
	"errors"
	"testing"
)

type fakeRepository struct {
	byEmail map[string]Admin
	byID    map[string]Admin
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		byEmail: make(map[string]Admin),
		byID:    make(map[string]Admin),
	}
}

func (f *fakeRepository) CreateAdmin(_ context.Context, params CreateAdminParams) (Admin, error) {
	if _, ok := f.byEmail[params.Email]; ok {
		return Admin{}, ErrDuplicateEmail
	}
	admin := Admin{
		ID:           params.ID,
		Email:        params.Email,
		Name:         params.Name,
		PasswordHash: params.PasswordHash,
	}
	f.byEmail[admin.Email] = admin
	f.byID[admin.ID] = admin
	return admin, nil
}

func (f *fakeRepository) GetAdminByEmail(_ context.Context, email string) (Admin, error) {
	admin, ok := f.byEmail[email]
	if !ok {
		return Admin{}, ErrAdminNotFound
	}
	return admin, nil
}

func (f *fakeRepository) GetAdminByID(_ context.Context, adminID string) (Admin, error) {
	admin, ok := f.byID[adminID]
	if !ok {
		return Admin{}, ErrAdminNotFound
	}
	return admin, nil
}

func TestService_RegisterAndLogin(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	req := RegisterRequest{
		Email:    "staff@example.com",
		Password: "supersafe",
		Name:     "Support Staff",
	}

	ctx := context.Background()
	admin, err := svc.Register(ctx, req)
	if err != nil {
		t.Fatalf("register: unexpected error: %v", err)
	}

	if admin.Email != req.Email {
		t.Fatalf("expected email %q got %q", req.Email, admin.Email)
	}

	resp, err := svc.Login(ctx, LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		t.Fatalf("login: unexpected error: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("login: expected token, got empty string")
	}
	if resp.Admin.ID != admin.ID {
		t.Fatalf("login: expected admin id %q got %q", admin.ID, resp.Admin.ID)
	}

	ident, err := svc.VerifyToken(resp.Token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if ident.ID != admin.ID {
		t.Fatalf("verify token: expected %q got %q", admin.ID, ident.ID)
	}
	if ident.Name != "Support Staff" {
		t.Fatalf("verify token: expected name in claims, got %q", ident.Name)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "staff@example.com",
		Password: "short",
		Name:     "Support Staff",
	})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	if _, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "",
		Password: "strongpassword",
		Name:     "",
	}); err == nil {
		t.Fatal("expected validation error for missing fields")
	}
}

func TestService_DuplicateEmail(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	req := RegisterRequest{
		Email:    "staff@example.com",
		Password: "strongpassword",
		Name:     "Support Staff",
	}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	if _, err := svc.Register(context.Background(), req); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestService_LoginWrongPassword(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	req := RegisterRequest{
		Email:    "staff@example.com",
		Password: "strongpassword",
		Name:     "Support Staff",
	}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if _, err := svc.Login(context.Background(), LoginRequest{Email: req.Email, Password: "wrongpassword"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(context.Background(), LoginRequest{Email: "nobody@example.com", Password: "whatever"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}
