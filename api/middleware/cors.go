package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS applies the configured origin allow-list. The guest cart header is
// exposed so browser clients can persist it.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Guest-Cart", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Guest-Cart", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
