package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"finboard/internal/core"
	"finboard/internal/ledger"

	"golang.org/x/crypto/bcrypt"
)

const (
	minNameLength     = 2
	maxNameLength     = 50
	minPasswordLength = 8
)

var (
	ErrNameLength   = errors.New("first and last name must be 2 to 50 characters")
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	ErrInvalidPhone = errors.New("invalid phone number")

	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
)

// SignupRequest is the body of POST /signup/.
type SignupRequest struct {
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

func (r SignupRequest) Validate() error {
	p := r.profile()
	if err := p.Validate(); err != nil {
		return err
	}
	for _, n := range []string{p.FirstName, p.LastName} {
		if l := utf8.RuneCountInString(n); l < minNameLength || l > maxNameLength {
			return ErrNameLength
		}
	}
	if len(r.Password) < minPasswordLength {
		return ErrWeakPassword
	}
	if p.PhoneNumber != nil && !phonePattern.MatchString(*p.PhoneNumber) {
		return ErrInvalidPhone
	}
	return nil
}

func (r SignupRequest) profile() core.UserProfile {
	p := core.UserProfile{
		FirstName: strings.TrimSpace(r.FirstName),
		LastName:  strings.TrimSpace(r.LastName),
		Email:     strings.TrimSpace(r.Email),
	}
	if r.PhoneNumber != nil && strings.TrimSpace(*r.PhoneNumber) != "" {
		phone := strings.TrimSpace(*r.PhoneNumber)
		p.PhoneNumber = &phone
	}
	return p
}

type UserService struct {
	store ledger.UserStore
	cost  int
}

func NewUserService(store ledger.UserStore) *UserService {
	return &UserService{store: store, cost: bcrypt.DefaultCost}
}

// Signup registers a user. Only the bcrypt hash of the password is stored.
func (s *UserService) Signup(ctx context.Context, req SignupRequest) (core.UserProfile, error) {
	if err := req.Validate(); err != nil {
		return core.UserProfile{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("hash password: %w", err)
	}
	return s.store.CreateUser(ctx, req.profile(), string(hash))
}
