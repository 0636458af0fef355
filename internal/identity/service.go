// Package identity is the identity provider: user records, credential
// verification, and the named boolean claims the authorization gate reads.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"pawhaven/api/internal/store"
	"pawhaven/api/internal/util"

	"golang.org/x/crypto/bcrypt"
)

// UserStore defines the storage interface for identities.
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error
	UpdateUserClaims(ctx context.Context, id string, claims map[string]bool) error
}

type Service struct {
	store UserStore
	cache *ClaimsCache
}

// NewService creates an identity provider. cache may be nil, in which case
// every claims read goes to the store.
func NewService(userStore UserStore, cache *ClaimsCache) *Service {
	return &Service{store: userStore, cache: cache}
}

func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (store.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" || displayName == "" {
		return store.User{}, errors.New("email, password, and display name are required")
	}
	if len(password) < 8 {
		return store.User{}, errors.New("password must be at least 8 characters")
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return store.User{}, errors.New("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := store.User{
		ID:           util.NewID("user"),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Claims:       map[string]bool{},
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (store.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return store.User{}, errors.New("invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return store.User{}, errors.New("invalid credentials")
	}
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (store.User, error) {
	return s.store.GetUserByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (store.User, error) {
	return s.store.GetUserByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
}

// SetClaims writes the full claims map through to storage and drops the
// cached copy so the next gated call observes the grant.
func (s *Service) SetClaims(ctx context.Context, id string, claims map[string]bool) error {
	if err := s.store.UpdateUserClaims(ctx, id, claims); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			log.Printf("invalidate claims cache for %s: %v", id, err)
		}
	}
	return nil
}

// ClaimsFor returns the caller's claim flags, serving from the cache when
// it holds a fresh copy. Claims are read on every gated call, which is why
// the cache exists at all.
func (s *Service) ClaimsFor(ctx context.Context, id string) (map[string]bool, error) {
	if s.cache != nil {
		if claims, ok, err := s.cache.Get(ctx, id); err == nil && ok {
			return claims, nil
		} else if err != nil {
			log.Printf("read claims cache for %s: %v", id, err)
		}
	}

	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	claims := user.Claims
	if claims == nil {
		claims = map[string]bool{}
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, id, claims); err != nil {
			log.Printf("write claims cache for %s: %v", id, err)
		}
	}
	return claims, nil
}
