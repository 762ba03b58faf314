package middleware

import (
	"net/http"
	"strings"
)

// DefaultAllowedOrigin is the front-end dev server.
const DefaultAllowedOrigin = "http://localhost:3000"

const allowedMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS, HEAD"

// CORS allows credentialed cross-origin requests from the configured
// origins with any method and header. "*" allows every origin. The origin is
// always echoed since credentials forbid a wildcard.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[strings.TrimRight(origin, "/")] = true
	}
	if len(allowedOrigins) == 0 {
		allowed[DefaultAllowedOrigin] = true
	}
	allowAll := allowed["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()
			h.Add("Vary", "Origin")

			if origin == "" || !(allowAll || allowed[origin]) {
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if !preflight {
				h.Set("Access-Control-Expose-Headers", HeaderRequestID)
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Methods", allowedMethods)
			if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
				h.Set("Access-Control-Allow-Headers", reqHeaders)
			}
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusOK)
		})
	}
}
