package auth

import (
	"context"
	"errors"
	"net/http"
)

const (
	AccessCookieName  = "accessToken"
	RefreshCookieName = "refreshToken"
)

type contextKey struct{}

var userContextKey contextKey

// UserFromContext returns the identity attached by the guard, if any.
func UserFromContext(ctx context.Context) (PublicUser, bool) {
	user, ok := ctx.Value(userContextKey).(PublicUser)
	return user, ok
}

// ContextWithUser attaches an authenticated identity to a context the same
// way the guard does.
func ContextWithUser(ctx context.Context, user PublicUser) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// Guard turns the auth cookie pair on an inbound request into an
// authenticated identity. It never attempts a refresh: an expired access
// token hard-fails until the client calls the refresh endpoint.
type Guard struct {
	users  UserStore
	signer *TokenService
}

func NewGuard(users UserStore, signer *TokenService) *Guard {
	return &Guard{users: users, signer: signer}
}

// Authenticate requires both cookies to be present before any cryptographic
// check, verifies the access token, and resolves the subject against the user
// directory. Every failure collapses to ErrUnauthorized.
func (g *Guard) Authenticate(r *http.Request) (PublicUser, error) {
	access, err := r.Cookie(AccessCookieName)
	if err != nil {
		return PublicUser{}, ErrUnauthorized
	}
	if _, err := r.Cookie(RefreshCookieName); err != nil {
		return PublicUser{}, ErrUnauthorized
	}

	userID, err := g.signer.VerifyAccessToken(access.Value)
	if err != nil {
		return PublicUser{}, ErrUnauthorized
	}

	user, err := g.users.FindByID(r.Context(), userID)
	if err != nil {
		// A vanished user is indistinguishable from a bad token to callers.
		if errors.Is(err, ErrRecordNotFound) {
			return PublicUser{}, ErrUnauthorized
		}
		return PublicUser{}, err
	}

	return user.Public(), nil
}

// Middleware adapts the guard for the router, stashing the identity in the
// request context on success.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := g.Authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
	})
}
