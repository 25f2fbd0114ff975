package handlers

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// AccessLog writes a Common Log Format line per request to stdout.
func AccessLog(next http.Handler) http.Handler {
	return handlers.LoggingHandler(os.Stdout, next)
}

// NoStore disables caching for every reply.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
