package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deskpilot/deskpilot/pkg/config"
)

func tokenConfig() config.ServerConfig {
	return config.ServerConfig{
		Auth: config.AuthConfig{Mode: "token", Token: "ops-token-123"},
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("success"))
	})
}

func doAuth(cfg config.ServerConfig, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	Auth(cfg)(okHandler()).ServeHTTP(w, req)
	return w
}

func TestAuth_TokenMode(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    int
		message string
	}{
		{"valid", "Bearer ops-token-123", http.StatusOK, ""},
		{"lowercase scheme", "bearer ops-token-123", http.StatusOK, ""},
		{"uppercase scheme", "BEARER ops-token-123", http.StatusOK, ""},
		{"padded token", "Bearer  ops-token-123  ", http.StatusOK, ""},
		{"wrong token", "Bearer nope", http.StatusUnauthorized, "Invalid token"},
		{"token prefix", "Bearer ops-token", http.StatusUnauthorized, "Invalid token"},
		{"missing header", "", http.StatusUnauthorized, "Missing authorization header"},
		{"no scheme", "ops-token-123", http.StatusUnauthorized, "Missing authorization header"},
		{"basic auth", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "Missing authorization header"},
		{"scheme only", "Bearer ", http.StatusUnauthorized, "Missing authorization header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doAuth(tokenConfig(), "/api/v1/queues/tickets/stats", tt.header)

			require.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				require.Equal(t, "application/json", w.Header().Get("Content-Type"))
				require.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
				require.Contains(t, w.Body.String(), tt.message)
			} else {
				require.Equal(t, "success", w.Body.String())
			}
		})
	}
}

func TestAuth_ProbesSkipAuth(t *testing.T) {
	for _, path := range []string{"/healthz", "/readyz"} {
		w := doAuth(tokenConfig(), path, "")
		require.Equal(t, http.StatusOK, w.Code, path)
	}

	// The detailed health report is not a probe.
	w := doAuth(tokenConfig(), "/api/v1/health", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_NoneMode(t *testing.T) {
	cfg := config.ServerConfig{Auth: config.AuthConfig{Mode: "none"}}

	w := doAuth(cfg, "/api/v1/events", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_UnknownMode(t *testing.T) {
	cfg := config.ServerConfig{Auth: config.AuthConfig{Mode: "oauth"}}

	w := doAuth(cfg, "/api/v1/queues", "Bearer anything")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "Authentication configuration error")
}

func TestExtractBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer secret-123":    "secret-123",
		"BEARER secret-123":    "secret-123",
		"Bearer  secret-123  ": "secret-123",
		"secret-123":           "",
		"Basic dXNlcjpwYXNz":   "",
		"":                     "",
		"Bearer":               "",
		"Bearer ":              "",
	}

	for header, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		require.Equal(t, want, extractBearerToken(req), "header %q", header)
	}
}

func TestIsHealthEndpoint(t *testing.T) {
	require.True(t, isHealthEndpoint("/healthz"))
	require.True(t, isHealthEndpoint("/readyz"))
	require.False(t, isHealthEndpoint("/api/v1/health"))
	require.False(t, isHealthEndpoint("/healthz/check"))
	require.False(t, isHealthEndpoint("/"))
}
