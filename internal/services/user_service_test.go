package services

import (
	"context"
	"errors"
	"testing"

	"finboard/internal/core"
	"finboard/internal/ledger"
	"finboard/internal/ledger/memory"

	"golang.org/x/crypto/bcrypt"
)

func TestSignup(t *testing.T) {
	store := memory.New()
	svc := NewUserService(store)
	svc.cost = bcrypt.MinCost
	ctx := context.Background()

	phone := "+919800000000"
	u, err := svc.Signup(ctx, SignupRequest{FirstName: " Asha ", LastName: "Rao", Email: "asha@example.com", Password: "correct horse", PhoneNumber: &phone})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if u.ID == "" || u.FirstName != "Asha" {
		t.Fatalf("unexpected profile %+v", u)
	}

	hash := store.PasswordHash("asha@example.com")
	if hash == "correct horse" || bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse")) != nil {
		t.Fatalf("password should be stored as a bcrypt hash")
	}

	if _, err := svc.Signup(ctx, SignupRequest{FirstName: "Asha", LastName: "Rao", Email: "ASHA@example.com", Password: "12345678"}); !errors.Is(err, ledger.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSignupRequestValidate(t *testing.T) {
	bad := "0123"
	cases := []struct {
		name string
		req  SignupRequest
		want error
	}{
		{"short name", SignupRequest{FirstName: "A", LastName: "Rao", Email: "a@b.c", Password: "12345678"}, ErrNameLength},
		{"missing name", SignupRequest{FirstName: "", LastName: "Rao", Email: "a@b.c", Password: "12345678"}, core.ErrEmptyName},
		{"email", SignupRequest{FirstName: "Asha", LastName: "Rao", Email: "asha", Password: "12345678"}, core.ErrInvalidEmail},
		{"password", SignupRequest{FirstName: "Asha", LastName: "Rao", Email: "a@b.c", Password: "short"}, ErrWeakPassword},
		{"phone", SignupRequest{FirstName: "Asha", LastName: "Rao", Email: "a@b.c", Password: "12345678", PhoneNumber: &bad}, ErrInvalidPhone},
	}
	for _, tc := range cases {
		if err := tc.req.Validate(); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		if !IsValidation(tc.want) {
			t.Errorf("%s: %v should count as a validation error", tc.name, tc.want)
		}
	}
}
