package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/deskpilot/deskpilot/pkg/config"
)

func TestChain(t *testing.T) {
	cfg := config.ServerConfig{Auth: config.AuthConfig{Mode: "none"}}

	wrapped := Chain(cfg, okHandler())

	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/queues", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "success", w.Body.String())
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
	require.NoError(t, err)
}

func TestChain_RejectedRequestStillGetsID(t *testing.T) {
	wrapped := Chain(tokenConfig(), okHandler())

	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/queues", nil))

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestRequestID(t *testing.T) {
	var seen string
	wrapped := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(RequestIDHeader)
	}))

	t.Run("kept", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, req)

		require.Equal(t, "req-42", seen)
		require.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	})

	t.Run("assigned", func(t *testing.T) {
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		require.NotEmpty(t, seen)
		require.Equal(t, seen, w.Header().Get(RequestIDHeader))
	})
}

func TestLogger_PassesStatusThrough(t *testing.T) {
	for _, code := range []int{http.StatusOK, http.StatusCreated, http.StatusNotFound, http.StatusServiceUnavailable} {
		wrapped := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))

		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		require.Equal(t, code, w.Code)
	}
}

func TestRecovery(t *testing.T) {
	wrapped := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("engine exploded")
	}))

	w := httptest.NewRecorder()
	require.NotPanics(t, func() {
		wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	})

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "Internal Server Error")
}

func TestRecovery_RepanicsAbortHandler(t *testing.T) {
	wrapped := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))
	})
}

func TestCORS(t *testing.T) {
	called := false
	wrapped := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	require.True(t, called)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "GET, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))

	called = false
	w = httptest.NewRecorder()
	wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/test", nil))
	require.False(t, called, "preflight must not reach the handler")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestResponseWriter(t *testing.T) {
	w := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	_, _ = rw.Write([]byte("body"))
	require.Equal(t, http.StatusOK, rw.statusCode)

	rw.WriteHeader(http.StatusAccepted)
	require.Equal(t, http.StatusAccepted, rw.statusCode)

	// httptest.ResponseRecorder cannot be hijacked.
	_, _, err := rw.Hijack()
	require.Error(t, err)

	require.NotPanics(t, rw.Flush)
}
