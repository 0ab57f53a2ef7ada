package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"transcript-compare/internal/infra/logging"
)

type AuthManager struct {
	secret []byte
	ttl    time.Duration
}

func NewAuthManager(secret string, ttl time.Duration) *AuthManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthManager{secret: []byte(secret), ttl: ttl}
}

type userClaims struct {
	jwt.RegisteredClaims
}

// Mint issues a token for userID. Exposed for tooling and tests; token
// issuance itself lives outside this service.
func (a *AuthManager) Mint(userID string) (string, error) {
	now := time.Now()
	claims := userClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthManager) parse(tok string) (*userClaims, error) {
	claims := &userClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

type ctxKeyUser struct{}

// Guard rejects requests without a valid bearer token and stores the
// authenticated user id on the context.
func (a *AuthManager) Guard() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hdr := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			claims, err := a.parse(strings.TrimSpace(hdr[7:]))
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyUser{}, claims.Subject)
			ctx = logging.WithUserID(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func userID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUser{}).(string); ok {
		return v
	}
	return ""
}
