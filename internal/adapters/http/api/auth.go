package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/core/services"
)

type Claims struct {
	AccountID int64  `json:"aid"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates HS256 access tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	clock  services.Clock
}

func NewTokenManager(secret string, ttl time.Duration, clock services.Clock) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, clock: clock}, nil
}

func (m *TokenManager) Generate(account *domain.Account) (string, time.Duration, error) {
	now := m.clock.Now()
	claims := &Claims{
		AccountID: account.ID,
		Role:      string(account.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.Name,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, m.ttl, nil
}

func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.clock.Now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

type accountContextKey struct{}

func contextWithAccount(ctx context.Context, account *domain.Account) context.Context {
	return context.WithValue(ctx, accountContextKey{}, account)
}

// AccountFromContext returns the account authenticated by the bearer token.
func AccountFromContext(ctx context.Context) *domain.Account {
	account, _ := ctx.Value(accountContextKey{}).(*domain.Account)
	return account
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeErrorMessage(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := s.tokens.Validate(token)
		if err != nil {
			writeErrorMessage(w, http.StatusUnauthorized, "invalid token")
			return
		}

		account, err := s.accounts.GetByID(r.Context(), claims.AccountID)
		if err != nil {
			writeErrorMessage(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(contextWithAccount(r.Context(), account)))
	})
}
