package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/prudhvinik1/robotrelay/internal/services"
)

type contextKey string

const producerKey contextKey = "producer"

// RequireProducer rejects requests without a valid producer bearer token. When token
// signing is disabled every request passes through unauthenticated.
func RequireProducer(tokens *services.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !tokens.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := tokens.VerifyToken(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), producerKey, claims.Producer)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ProducerFromContext returns the authenticated producer name, or "" if none.
func ProducerFromContext(ctx context.Context) string {
	producer, _ := ctx.Value(producerKey).(string)
	return producer
}
