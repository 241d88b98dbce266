package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mentorlink/apiserver/config"
	"github.com/mentorlink/apiserver/internal/auth"
	"github.com/mentorlink/apiserver/internal/cache"
	"github.com/mentorlink/apiserver/internal/handlers"
	"github.com/mentorlink/apiserver/internal/metrics"
	"github.com/mentorlink/apiserver/internal/mq"
	"github.com/mentorlink/apiserver/internal/services"
	"github.com/mentorlink/apiserver/internal/store/memstore"
)

const testSecret = "server-test-secret-0123456789abcdef"

func newTestRouter(t *testing.T, configure ...func(*Deps)) (*chi.Mux, *metrics.Metrics, *mq.MemoryBackend) {
	t.Helper()

	hasher, err := auth.NewHasher(bcrypt.MinCost, 2)
	require.NoError(t, err)
	cfg := auth.TokenConfig{Secret: testSecret, TTL: time.Hour}
	issuer, err := auth.NewTokenIssuer(cfg)
	require.NoError(t, err)
	verifier, err := auth.NewTokenVerifier(cfg)
	require.NoError(t, err)

	st := memstore.New()
	m := metrics.New()
	backend := mq.NewMemoryBackend()
	accounts := services.NewAccountService(st.Users(), st, hasher, issuer,
		services.WithRecorder(m),
		services.WithEvents(mq.New(backend), "account-events"),
	)

	deps := Deps{
		Accounts: accounts,
		Sessions: auth.NewSessionValidator(verifier, st.Users(), nil),
		Metrics:  m,
		Ready: map[string]handlers.Pinger{
			"postgres": handlers.PingFunc(func(context.Context) error { return nil }),
		},
	}
	for _, fn := range configure {
		fn(&deps)
	}
	return NewRouter(deps), m, backend
}

func TestRouter_HealthAndReady(t *testing.T) {
	router, _, _ := newTestRouter(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRouter_RegisterPublishesAndCounts(t *testing.T) {
	router, _, backend := newTestRouter(t)

	body, err := json.Marshal(map[string]string{
		"firstName": "Ana", "lastName": "Silva", "email": "ana@x.com", "password": "password123",
	})
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))

	pending := backend.Pending("account-events")
	require.Len(t, pending, 1)
	assert.Equal(t, services.EventUserRegistered, pending[0].EventType())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/users", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	raw, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `mentorlink_auth_operations_total{operation="register",outcome="success"} 1`)
	assert.Contains(t, string(raw), `mentorlink_auth_rejections_total{reason="no_token"} 1`)
}

func TestNew_RejectsWeakSecret(t *testing.T) {
	cfg := config.Config{Auth: config.AuthConfig{JWTSecret: "short"}}

	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrWeakSecret)
}

func withLoginLimit(t *testing.T, limit int, trustProxy bool) func(*Deps) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return func(d *Deps) {
		d.Limiter = cache.NewLoginLimiter(client, "test:", limit, time.Minute)
		d.TrustProxyHeaders = trustProxy
	}
}

func login(t *testing.T, router http.Handler, forwardedFor string) int {
	t.Helper()
	body, err := json.Marshal(map[string]string{"email": "ana@x.com", "password": "wrong-password"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("X-Forwarded-For", forwardedFor)
	req.Header.Set("X-Real-IP", forwardedFor)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec.Code
}

func TestRouter_LoginThrottleIgnoresForwardingHeaders(t *testing.T) {
	router, _, _ := newTestRouter(t, withLoginLimit(t, 3, false))

	codes := map[int]int{}
	for i := 0; i < 10; i++ {
		codes[login(t, router, fmt.Sprintf("198.51.100.%d", i+1))]++
	}

	assert.Equal(t, 3, codes[http.StatusUnauthorized])
	assert.Equal(t, 7, codes[http.StatusTooManyRequests])
}

func TestRouter_TrustedProxyHeadersKeyThrottle(t *testing.T) {
	router, _, _ := newTestRouter(t, withLoginLimit(t, 3, true))

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusUnauthorized, login(t, router, "203.0.113.1"))
	}
	assert.Equal(t, http.StatusTooManyRequests, login(t, router, "203.0.113.1"))
	assert.Equal(t, http.StatusUnauthorized, login(t, router, "203.0.113.2"))
}

func TestRouter_ErrorsUseJSONEnvelope(t *testing.T) {
	router, _, _ := newTestRouter(t)
	router.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})

	tests := map[string]struct {
		method string
		path   string
		status int
	}{
		"unknown route": {method: http.MethodGet, path: "/nope", status: http.StatusNotFound},
		"wrong method":  {method: http.MethodDelete, path: "/auth/login", status: http.StatusMethodNotAllowed},
		"panic":         {method: http.MethodGet, path: "/boom", status: http.StatusInternalServerError},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var env handlers.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Message)
			assert.NotContains(t, rec.Body.String(), "kaboom")
		})
	}
}

func TestRouter_HandlerTimeoutBelowWriteTimeout(t *testing.T) {
	assert.Less(t, handlerTimeout, writeTimeout)
}
