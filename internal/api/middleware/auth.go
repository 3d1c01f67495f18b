package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/newthinker/backgrid/internal/api/response"
	"github.com/newthinker/backgrid/internal/core"
)

// APIKeyHeader carries the client's API key.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth returns middleware that validates the X-API-Key header.
// If apiKey is empty, authentication is disabled. Requests for the exempt
// paths (health probes, metrics scrapes) always pass.
func APIKeyAuth(apiKey string, exempt ...string) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(exempt))
	for _, p := range exempt {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth if no key configured
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			providedKey := r.Header.Get(APIKeyHeader)
			if providedKey == "" {
				response.Error(w, http.StatusUnauthorized,
					core.WrapError(core.ErrUnauthorized, errors.New("missing "+APIKeyHeader+" header")))
				return
			}

			// Constant-time comparison to prevent timing attacks
			if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
				response.Error(w, http.StatusUnauthorized,
					core.WrapError(core.ErrUnauthorized, errors.New("api key does not match")))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
