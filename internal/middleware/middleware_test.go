package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/charge-slot-reservation/internal/config"
	"github.com/iliyamo/charge-slot-reservation/internal/utils"
)

const secret = "test-secret"

func whoami(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"user": c.Get(CtxUserID), "role": c.Get(CtxRole)})
}

func serve(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func mint(t *testing.T, user, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, user, role, time.Hour)
	require.NoError(t, err)
	return tok.Token
}

func TestJWTAuthAndRole(t *testing.T) {
	e := echo.New()
	g := e.Group("/v1", JWTAuth(secret), RequireRole(utils.RoleOperator))
	g.GET("/ops", whoami)

	rec := serve(e, http.MethodGet, "/v1/ops", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, http.MethodGet, "/v1/ops", "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, http.MethodGet, "/v1/ops", mint(t, "u1", utils.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(e, http.MethodGet, "/v1/ops", mint(t, "op-1", utils.RoleOperator))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":"op-1","role":"OPERATOR"}`, rec.Body.String())
}

func TestLocalRateLimit(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            5 * time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl",
		LocalFallback:  true,
	}
	e := echo.New()
	e.Use(NewTokenBucket(cfg, nil))
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/x", "").Code)
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/x", "").Code)
	rec := serve(e, http.MethodGet, "/x", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimitWithoutRedisOrFallback(t *testing.T) {
	e := echo.New()
	e.Use(NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Hour}, nil))
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/x", "").Code)
	}
}

func TestLocalLimiterForgetsIdleKeys(t *testing.T) {
	l := newLocalLimiter(config.RateLimitConfig{Capacity: 1, RefillTokens: 1, RefillInterval: time.Hour, TTL: time.Minute})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ok, _, _ := l.reserve("a")
	assert.True(t, ok)
	ok, _, retry := l.reserve("a")
	assert.False(t, ok)
	assert.Greater(t, retry, time.Duration(0))

	now = now.Add(2 * time.Minute)
	l.reserve("b")
	l.mu.Lock()
	_, stillThere := l.buckets["a"]
	l.mu.Unlock()
	assert.False(t, stillThere)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/reservations")
	c.Set(CtxUserID, "u-9")

	cfg := config.RateLimitConfig{Prefix: "rl"}
	assert.Equal(t, "rl:ip:10.0.0.1:user:u-9:route:POST /v1/reservations", buildRateKey(cfg, c))
	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:u-9", buildRateKey(cfg, c))
}

func TestCacheKeySeparatesPaths(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "cache"}
	key := func(path string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, path, nil), httptest.NewRecorder())
		c.SetPath("/v1/stations/:id")
		return cacheKeyFrom(cfg, c)
	}
	assert.NotEqual(t, key("/v1/stations/A"), key("/v1/stations/B"))
	assert.Equal(t, key("/v1/stations/A"), key("/v1/stations/A"))
}

func TestCaptureWriterRespectsLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	_, _ = cw.Write([]byte("def"))
	assert.True(t, cw.truncated)
	assert.Equal(t, "abc", cw.buf.String())
	assert.Equal(t, "abcdef", rec.Body.String())
}
