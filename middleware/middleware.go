package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	log "github.com/sirupsen/logrus"
	"github.com/tcp_snm/slotpager/internal/flux_errors"
	"github.com/tcp_snm/slotpager/internal/service"
)

const (
	KeyJwtSessionCookieName = "jwt_session"
	bearerPrefix            = "Bearer "
)

// JWTMiddleware rejects requests without a valid token and hands the claims
// and the raw token to the next handler through the request context.
// The token is read from the Authorization header first, then from the
// session cookie.
func JWTMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		claims, err := parseToken(token)
		if errors.Is(err, flux_errors.ErrInvalidRequestCredentials) {
			log.WithField("from", "jwt middleware").Debug(err)
			http.Error(w, "invalid or expired session", http.StatusUnauthorized)
			return
		}
		if err != nil {
			log.WithField("from", "jwt middleware").Error(err)
			http.Error(w, flux_errors.ErrInternal.Error(), http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), service.KeyCtxUserCredClaims, claims)
		ctx = context.WithValue(ctx, service.KeyCtxBearerToken, token)
		next(w, r.WithContext(ctx))
	}
}

func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	}
	cookie, err := r.Cookie(KeyJwtSessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func parseToken(token string) (service.UserCredentialClaims, error) {
	secret := os.Getenv(service.KeyJWTSecret)
	if secret == "" {
		return service.UserCredentialClaims{}, fmt.Errorf("%w, jwt secret is not configured", flux_errors.ErrInternal)
	}

	var claims service.UserCredentialClaims
	parsed, err := jwt.ParseWithClaims(
		token,
		&claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		},
	)
	if err != nil {
		return service.UserCredentialClaims{}, fmt.Errorf("%w, %w", flux_errors.ErrInvalidRequestCredentials, err)
	}
	if !parsed.Valid || claims.UserName == "" {
		return service.UserCredentialClaims{}, fmt.Errorf("%w, token carries no user", flux_errors.ErrInvalidRequestCredentials)
	}
	return claims, nil
}
