package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcp_snm/slotpager/internal/service"
)

const testSecret = "not-so-secret"

func signed(t *testing.T, secret string, claims service.UserCredentialClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func claimsFor(user string, expiresIn time.Duration) service.UserCredentialClaims {
	now := time.Now()
	return service.UserCredentialClaims{
		UserName: user,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}
}

// echoUser responds with the user and token found in the request context.
func echoUser(w http.ResponseWriter, r *http.Request) {
	claims, err := service.GetClaimsFromContext(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("X-Token", service.GetBearerTokenFromContext(r.Context()))
	w.Write([]byte(claims.UserName))
}

func TestJWTMiddleware(t *testing.T) {
	t.Setenv(service.KeyJWTSecret, testSecret)
	handler := JWTMiddleware(echoUser)

	valid := signed(t, testSecret, claimsFor("alice", time.Hour))

	tests := []struct {
		name     string
		prepare  func(r *http.Request)
		status   int
		wantUser string
	}{
		{
			name:   "no token",
			status: http.StatusUnauthorized,
		},
		{
			name:     "bearer header",
			prepare:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+valid) },
			status:   http.StatusOK,
			wantUser: "alice",
		},
		{
			name: "session cookie",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: KeyJwtSessionCookieName, Value: valid})
			},
			status:   http.StatusOK,
			wantUser: "alice",
		},
		{
			name: "expired token",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signed(t, testSecret, claimsFor("alice", -time.Minute)))
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "wrong secret",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signed(t, "other", claimsFor("alice", time.Hour)))
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "token without user",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signed(t, testSecret, claimsFor("", time.Hour)))
			},
			status: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/v1/browse", nil)
			if tt.prepare != nil {
				tt.prepare(r)
			}
			w := httptest.NewRecorder()
			handler(w, r)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.wantUser, w.Body.String())
				assert.Equal(t, valid, w.Header().Get("X-Token"))
			}
		})
	}
}

func TestJWTMiddlewareWithoutSecret(t *testing.T) {
	t.Setenv(service.KeyJWTSecret, "")
	r := httptest.NewRequest(http.MethodGet, "/v1/browse", nil)
	r.Header.Set("Authorization", "Bearer "+signed(t, testSecret, claimsFor("alice", time.Hour)))
	w := httptest.NewRecorder()

	// a missing secret is a server fault, the caller's token may be fine
	JWTMiddleware(echoUser)(w, r)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
