package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
)

// CORS allows the browser upload client on origin to call the API. An
// origin of "*" or "" admits every origin; several origins may be given
// comma-separated.
func CORS(origin string) func(http.Handler) http.Handler {
	origins := []string{"*"}
	if origin = strings.TrimSpace(origin); origin != "" && origin != "*" {
		origins = origins[:0]
		for _, o := range strings.Split(origin, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Requested-With"}),
		handlers.MaxAge(600),
	)
}
