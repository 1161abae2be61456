package service

import (
	"context"
	"errors"
	"strings"

	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/domain"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type UserStore interface {
	Create(ctx context.Context, u *domain.User) error
	ByEmail(ctx context.Context, email string) (*domain.User, error)
	ByID(ctx context.Context, id string) (*domain.User, error)
}

type AttemptLimiter interface {
	Failures(ctx context.Context, email string) (int, error)
	RecordFailure(ctx context.Context, email string) (int, error)
	Reset(ctx context.Context, email string) error
}

type TokenIssuer interface {
	Issue(userID string) (string, error)
}

type AuthService struct {
	users       UserStore
	limiter     AttemptLimiter
	tokens      TokenIssuer
	maxAttempts int
	logger      *zap.Logger
}

func NewAuthService(users UserStore, limiter AttemptLimiter, tokens TokenIssuer, maxAttempts int, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:       users,
		limiter:     limiter,
		tokens:      tokens,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

func (s *AuthService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.UserProfile, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := s.users.ByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &domain.User{Email: email, Username: req.Username, PasswordHash: string(hash)}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, ErrEmailExists
		}
		s.logger.Error("Failed to create user", zap.Error(err))
		return nil, errors.Join(ErrPersistence, err)
	}

	s.logger.Info("User registered", zap.String("user_id", u.ID))
	profile := u.Profile()
	return &profile, nil
}

// Login returns a signed token. Unknown emails and wrong passwords are
// indistinguishable to the caller and both count toward the lockout.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	failures, err := s.limiter.Failures(ctx, email)
	if err != nil {
		s.logger.Warn("Login limiter unavailable", zap.Error(err))
	} else if failures >= s.maxAttempts {
		return "", ErrTooManyAttempts
	}

	u, err := s.users.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.recordFailure(ctx, email)
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.recordFailure(ctx, email)
		return "", ErrInvalidCredentials
	}

	if err := s.limiter.Reset(ctx, email); err != nil {
		s.logger.Warn("Failed to reset login attempts", zap.Error(err))
	}

	return s.tokens.Issue(u.ID)
}

func (s *AuthService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *AuthService) recordFailure(ctx context.Context, email string) {
	n, err := s.limiter.RecordFailure(ctx, email)
	if err != nil {
		s.logger.Warn("Failed to record login attempt", zap.Error(err))
		return
	}
	if n >= s.maxAttempts {
		s.logger.Warn("Login locked out", zap.String("email", email), zap.Int("failures", n))
	}
}
