package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/baxromumarov/searchhub/internal/apperr"
)

type ctxKey struct{}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKey{}).(User)
	return u, ok && u.ID != ""
}

// ErrorWriter renders an authentication failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

type Middleware struct {
	verifier TokenVerifier
	isAdmin  func(email string) bool
	writeErr ErrorWriter
	logger   *slog.Logger
}

func NewMiddleware(verifier TokenVerifier, isAdmin func(email string) bool, writeErr ErrorWriter, logger *slog.Logger) *Middleware {
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{verifier: verifier, isAdmin: isAdmin, writeErr: writeErr, logger: logger}
}

// bearerToken returns the token of an "Authorization: Bearer <token>"
// header.
func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireUser rejects requests without a valid, verified token.
func (m *Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			m.writeErr(w, r, apperr.NoToken("authorization bearer token is required"))
			return
		}
		user, err := m.verifier.VerifyToken(r.Context(), token)
		if err != nil {
			m.writeErr(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// OptionalUser attaches the user when a valid token is present and
// otherwise serves the request anonymously.
func (m *Middleware) OptionalUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		user, err := m.verifier.VerifyToken(r.Context(), token)
		if err != nil {
			m.logger.Debug("ignoring unusable token", "code", string(apperr.As(err).Code))
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireAdmin must run after RequireUser.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			m.writeErr(w, r, apperr.NoToken("authorization bearer token is required"))
			return
		}
		if !m.isAdmin(user.Email) {
			m.writeErr(w, r, apperr.Forbidden("admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
