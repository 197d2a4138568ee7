package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/AbiyasX/FirebaseActt/internal/auth"
	"github.com/AbiyasX/FirebaseActt/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordChars = 6

var (
	ErrInvalidEmail = errors.New("invalid email address")
	ErrWeakPassword = errors.New("password must be at least 6 characters")
)

// Service manages local accounts and signs them in. It implements
// auth.Provider.
type Service struct {
	repo AccountRepository
	cost int
	now  func() time.Time
}

func NewService(r AccountRepository) *Service {
	return &Service{repo: r, cost: bcrypt.DefaultCost, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account. Name defaults to the local part of the email.
func (s *Service) Register(ctx context.Context, email, name, password string) (*models.Account, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordChars {
		return nil, ErrWeakPassword
	}
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if strings.TrimSpace(name) == "" {
		name = auth.UsernameFromEmail(email)
	}
	now := s.now().UTC()
	a := &models.Account{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// SignIn checks the password of the account registered under email.
func (s *Service) SignIn(ctx context.Context, email, password string) (*auth.Identity, error) {
	a, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if a == nil {
		return nil, auth.ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, auth.ErrWrongPassword
		}
		return nil, fmt.Errorf("compare password: %w", err)
	}
	return auth.NewIdentity(a.ID, a.Email), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return s.repo.GetByID(ctx, id)
}
