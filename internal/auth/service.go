package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const sessionPrefix = "session:"

// UserFinder looks up accounts during login.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (User, error)
}

// Service wraps credential checks and the Redis session store.
type Service struct {
	repo     UserFinder
	sessions *redis.Client
	ttl      time.Duration
}

// NewService constructs a Service.
func NewService(repo UserFinder, sessions *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{repo: repo, sessions: sessions, ttl: ttl}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// CreateSession issues a session token bound to the user.
func (s *Service) CreateSession(ctx context.Context, userID int64) (string, error) {
	token := uuid.NewString()
	err := s.sessions.Set(ctx, sessionPrefix+token, strconv.FormatInt(userID, 10), s.ttl).Err()
	if err != nil {
		return "", err
	}
	return token, nil
}

// ResolveSession returns the user id behind a token, refreshing its TTL.
func (s *Service) ResolveSession(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, ErrNoSession
	}
	raw, err := s.sessions.Get(ctx, sessionPrefix+token).Result()
	if err == redis.Nil {
		return 0, ErrNoSession
	}
	if err != nil {
		return 0, err
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ErrNoSession
	}
	// Sliding expiry: activity keeps the session alive.
	_ = s.sessions.Expire(ctx, sessionPrefix+token, s.ttl).Err()
	return userID, nil
}

// DestroySession removes a token.
func (s *Service) DestroySession(ctx context.Context, token string) error {
	return s.sessions.Del(ctx, sessionPrefix+token).Err()
}

// TTL reports the configured session lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// HashPassword produces a bcrypt hash for seeding and user creation.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}
