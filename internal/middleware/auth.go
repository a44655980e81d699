package middleware

import (
	"context"
	"net/http"
	"strings"

	"mt5_bridge/internal/auth"
)

// Auth requires a valid operator JWT. When the service has no secret the
// check is skipped.
func Auth(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authService.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			tokenString := bearerToken(r)
			if tokenString == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := authService.ValidateToken(tokenString)
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), OperatorKey, claims.Operator)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken reads "Authorization: Bearer <token>". Browsers cannot set
// headers on websocket handshakes, so the token query parameter is accepted too.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return ""
		}
		return parts[1]
	}

	return r.URL.Query().Get("token")
}

// GetOperator returns the operator from a validated token.
func GetOperator(ctx context.Context) (string, bool) {
	operator, ok := ctx.Value(OperatorKey).(string)
	return operator, ok
}
