package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS returns middleware built on rs/cors with the given allowed origins.
// An empty origins list allows only same-origin requests (no CORS headers).
func CORS(origins []string, allowCredentials bool) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}
	c := cors.New(opts)
	return c.Handler
}
