// Package auth verifies bearer tokens against the hosted identity provider.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/baxromumarov/searchhub/internal/apperr"
	"github.com/baxromumarov/searchhub/internal/cache"
	"github.com/baxromumarov/searchhub/internal/observability"
)

const defaultTokenTTL = 5 * time.Minute

type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Role          string `json:"role,omitempty"`
}

type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (User, error)
}

// providerUser is the subset of GET /auth/v1/user we read.
type providerUser struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Role             string     `json:"role"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
	ConfirmedAt      *time.Time `json:"confirmed_at"`
}

type SupabaseVerifier struct {
	http   *resty.Client
	apiKey string
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewSupabaseVerifier(baseURL, anonKey string, c cache.Cache, logger *slog.Logger) *SupabaseVerifier {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetTimeout(10 * time.Second)
	client.SetHeader("accept", "application/json")
	if c == nil {
		c = cache.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SupabaseVerifier{
		http:   client,
		apiKey: anonKey,
		cache:  c,
		ttl:    defaultTokenTTL,
		logger: logger,
	}
}

func (v *SupabaseVerifier) VerifyToken(ctx context.Context, token string) (User, error) {
	if token == "" {
		return User{}, apperr.NoToken("missing bearer token")
	}

	key := cache.TokenKey(token)
	var user User
	if err := v.cache.Get(ctx, key, &user); err == nil {
		return user, nil
	} else if !errors.Is(err, cache.ErrNotFound) {
		v.logger.Warn("token cache get failed", "error", err)
	}

	var payload providerUser
	res, err := v.http.R().
		SetContext(ctx).
		SetHeader("apikey", v.apiKey).
		SetAuthToken(token).
		SetResult(&payload).
		Get("/auth/v1/user")
	if err != nil {
		observability.IncError(observability.ErrorAuth, "auth")
		return User{}, apperr.Unavailable("identity provider is unreachable", err)
	}

	switch status := res.StatusCode(); {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return User{}, apperr.InvalidToken("invalid or expired token", nil)
	case status >= 400:
		observability.IncError(observability.ErrorAuth, "auth")
		return User{}, apperr.Unavailable("identity provider error", errors.New(res.Status()))
	}
	if payload.ID == "" {
		return User{}, apperr.InvalidToken("invalid or expired token", nil)
	}

	user = User{
		ID:            payload.ID,
		Email:         strings.ToLower(payload.Email),
		EmailVerified: payload.EmailConfirmedAt != nil || payload.ConfirmedAt != nil,
		Role:          payload.Role,
	}
	if !user.EmailVerified {
		return User{}, apperr.EmailNotVerified("email address is not verified")
	}

	if err := v.cache.Set(ctx, key, user, v.ttl); err != nil {
		v.logger.Warn("token cache set failed", "error", err)
	}
	return user, nil
}

// Unconfigured rejects every token; it stands in when no identity provider
// URL is set so public routes keep working.
type Unconfigured struct{}

func (Unconfigured) VerifyToken(context.Context, string) (User, error) {
	return User{}, apperr.Unavailable("authentication is not configured", nil)
}
