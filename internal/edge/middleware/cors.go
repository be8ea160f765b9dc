package middleware

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/gleicon/edged/internal/config"
)

// CORS wires the delegated cross-origin policy layer from the configured
// origins and methods. Empty lists mean allow-any origin and the usual
// method set.
func CORS(cfg config.CORS) func(http.Handler) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: methods,
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"*"},
	}).Handler
}
