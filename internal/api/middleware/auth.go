package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKeyOperator struct{}

// AuthConfig configures operator authentication with HS256 bearer tokens.
type AuthConfig struct {
	Secret []byte
	// Role is the value the "role" claim must carry.
	Role string
}

// OperatorClaims are the claims read from an operator token.
type OperatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RequireOperator rejects requests without a valid operator token and stores
// the token subject in the request context.
func RequireOperator(cfg AuthConfig) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				deny(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			var claims OperatorClaims
			_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
				return cfg.Secret, nil
			})
			if err != nil {
				deny(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			if claims.Subject == "" {
				deny(w, http.StatusUnauthorized, "unauthorized", "token has no subject")
				return
			}
			if claims.Role != cfg.Role {
				deny(w, http.StatusForbidden, "forbidden", "operator role required")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyOperator{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OperatorID returns the authenticated operator, or "" outside RequireOperator.
func OperatorID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyOperator{}).(string)
	return id
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// deny writes the error envelope. It mirrors api.WriteError, which this
// package cannot import.
func deny(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": msg},
	})
}
