package auth

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ledgerlane/invoicer/internal/shared"
)

// Repository looks up users by email.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// DemoRepository holds the single demo account configured for the app.
type DemoRepository struct {
	user User
}

// NewDemoRepository hashes the configured password once at startup.
func NewDemoRepository(email, password string) (*DemoRepository, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash demo password: %w", err)
	}
	return &DemoRepository{user: User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Name:         "Demo User",
		PasswordHash: string(hash),
	}}, nil
}

// FindByEmail matches the demo account case-insensitively.
func (r *DemoRepository) FindByEmail(_ context.Context, email string) (*User, error) {
	if strings.ToLower(strings.TrimSpace(email)) != r.user.Email {
		return nil, shared.ErrInvalidCredentials
	}
	user := r.user
	return &user, nil
}

var _ Repository = (*DemoRepository)(nil)
