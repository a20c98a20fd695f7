// Package auth verifies bearer tokens on the chat API. Authentication
// is optional: when CHAT_API_JWT_SECRET is unset every request passes
// through, which keeps local development friction-free.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const UserContextKey contextKey = "user"

// UserContext carries the authenticated caller identity.
type UserContext struct {
	UserID string
	Email  string
}

type apiClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// JWTAuth verifies HMAC-signed tokens issued for the chat API.
type JWTAuth struct {
	secret []byte
}

// NewJWTAuthFromEnv reads CHAT_API_JWT_SECRET. A nil return means
// authentication is disabled.
func NewJWTAuthFromEnv() *JWTAuth {
	secret := os.Getenv("CHAT_API_JWT_SECRET")
	if secret == "" {
		return nil
	}
	return &JWTAuth{secret: []byte(secret)}
}

// VerifyToken parses and validates one token string.
func (a *JWTAuth) VerifyToken(tokenString string) (*UserContext, error) {
	if a == nil {
		return nil, fmt.Errorf("authentication not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &apiClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*apiClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type")
	}

	return &UserContext{UserID: claims.Subject, Email: claims.Email}, nil
}

// Middleware rejects requests without a valid bearer token. A nil
// receiver passes every request through untouched.
func (a *JWTAuth) Middleware(next http.Handler) http.Handler {
	if a == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractBearerToken(r)
		if tokenString == "" {
			http.Error(w, "Missing bearer token", http.StatusUnauthorized)
			return
		}

		user, err := a.VerifyToken(tokenString)
		if err != nil {
			http.Error(w, "Invalid bearer token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext extracts the authenticated user, if any.
func UserFromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(UserContextKey).(*UserContext)
	return user, ok
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
