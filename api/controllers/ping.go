package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
)

// Ping answers with the configured liveness message.
func Ping(message string) http.HandlerFunc {
	if message == "" {
		message = "ping"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"message": message})
	}
}
