package httpx

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/deskpilot/deskpilot/pkg/config"
)

// Auth returns a middleware that enforces the configured authentication.
//
//   - /healthz and /readyz are always reachable
//   - mode "none" lets every request through
//   - mode "token" requires Authorization: Bearer <cfg.Auth.Token>
//
// Failures get a 401 with a JSON body.
func Auth(cfg config.ServerConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isHealthEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			switch cfg.Auth.Mode {
			case "", "none":
				next.ServeHTTP(w, r)
			case "token":
				token := extractBearerToken(r)
				if token == "" {
					log.Warn().
						Str("component", "auth").
						Str("path", r.URL.Path).
						Msg("Missing authorization header")
					writeUnauthorized(w, "Missing authorization header")
					return
				}
				if subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Auth.Token)) != 1 {
					log.Warn().
						Str("component", "auth").
						Str("path", r.URL.Path).
						Msg("Invalid token")
					writeUnauthorized(w, "Invalid token")
					return
				}
				next.ServeHTTP(w, r)
			default:
				log.Error().
					Str("component", "auth").
					Str("mode", cfg.Auth.Mode).
					Msg("Unknown auth mode")
				writeUnauthorized(w, "Authentication configuration error")
			}
		})
	}
}

func isHealthEndpoint(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

// extractBearerToken returns the token of an "Authorization: Bearer <token>"
// header, or "".
func extractBearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="deskpilot"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Unauthorized","message":"` + message + `"}`))
}
