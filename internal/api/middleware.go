package api

import (
	"crypto/subtle"
	"net/http"
)

// APIKey wraps next with static API-key authentication.
//
// Behaviour:
//   - If mode != "apikey" or key == "", all requests pass through.
//   - Otherwise the value of header is compared (constant-time) against key;
//     a missing or wrong key yields 401 with a JSON error body.
//
// The /health and /ready probes are mounted outside this middleware by the
// server so orchestrator checks never need credentials.
func APIKey(mode, header, key string, next http.Handler) http.Handler {
	if mode != "apikey" || key == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(header)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			jsonErr(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
