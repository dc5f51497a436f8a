package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking-saga/internal/config"
	"github.com/iliyamo/cinema-booking-saga/internal/utils"
)

const secret = "test-secret"

func protected(e *echo.Echo, roles ...string) {
	e.GET("/me", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"user_id": UserID(c), "role": Role(c)})
	}, JWTAuth(secret), RequireRole(roles...))
}

func do(e *echo.Echo, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	e := echo.New()
	protected(e, "CUSTOMER")
	tok, err := utils.NewAccessToken(secret, "user-42", "CUSTOMER", time.Minute)
	require.NoError(t, err)

	rec := do(e, tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"user-42","role":"CUSTOMER"}`, rec.Body.String())
}

func TestJWTAuthRejects(t *testing.T) {
	e := echo.New()
	protected(e, "CUSTOMER")

	expired, err := utils.NewAccessToken(secret, "u1", "CUSTOMER", -time.Minute)
	require.NoError(t, err)
	foreign, err := utils.NewAccessToken("other-secret", "u1", "CUSTOMER", time.Minute)
	require.NoError(t, err)
	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "CUSTOMER"}).SignedString([]byte(secret))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"missing": "",
		"garbage": "abc.def.ghi",
		"expired": expired.Token,
		"foreign": foreign.Token,
		"no sub":  noSub,
	} {
		rec := do(e, token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
	}
}

func TestJWTAuthNumericSubject(t *testing.T) {
	e := echo.New()
	protected(e, "ADMIN")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": 7, "role": "admin"}).SignedString([]byte(secret))
	require.NoError(t, err)

	rec := do(e, tok)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"7","role":"ADMIN"}`, rec.Body.String())
}

func TestRequireRoleForbids(t *testing.T) {
	e := echo.New()
	protected(e, "ADMIN")
	tok, err := utils.NewAccessToken(secret, "u1", "CUSTOMER", time.Minute)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, do(e, tok.Token).Code)
}

func TestDisabledLimiterAndCachePassThrough(t *testing.T) {
	e := echo.New()
	calls := 0
	e.GET("/stats", func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, "ok")
	}, NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, nil), NewRedisCache(config.CacheConfig{Enabled: true}, nil, 0))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 3, calls)
}

func TestRateKeyStrategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/verify", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/payments/verify")
	c.Set("user_id", "u1")

	assert.Equal(t, "rl:user:u1:route:POST /v1/payments/verify", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user_route"}, c))
	assert.Equal(t, "rl:ip:10.0.0.1", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip"}, c))
}

func TestCacheKeySeparatesUsers(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "cache"}
	key := func(user string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/admin/bookings/stats", nil), httptest.NewRecorder())
		c.SetPath("/v1/admin/bookings/stats")
		c.Set("user_id", user)
		return cacheKeyFrom(cfg, c)
	}
	assert.NotEqual(t, key("a"), key("b"))
	assert.Equal(t, key("a"), key("a"))
	assert.Regexp(t, `^cache:[0-9a-f]{40}$`, key("a"))
}

func TestPayloadCodec(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"total":3}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"total":3}`, string(body))

	_, _, _, ok = decodePayload(bs[:5])
	assert.False(t, ok)
}
