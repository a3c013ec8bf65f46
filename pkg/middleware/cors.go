package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists permitted origins. "*" allows any origin and is
	// only honored outside production.
	AllowedOrigins   []string
	AllowCredentials bool
	MaxAge           int
	Environment      string
}

// CORS returns rs/cors middleware configured for the accounts API. A wildcard
// origin is dropped in production, leaving only the explicit origins.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	origins := make([]string, 0, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "*" && cfg.Environment == "production" {
			continue
		}
		origins = append(origins, o)
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 3600
	}

	handler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch,
			http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", correlationHeader},
		ExposedHeaders:   []string{correlationHeader, "Retry-After"},
		MaxAge:           cfg.MaxAge,
		AllowCredentials: cfg.AllowCredentials,
	})

	return handler.Handler
}
