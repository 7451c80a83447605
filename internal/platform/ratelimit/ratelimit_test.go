package ratelimit

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func newServer(mw echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.POST("/send", func(c echo.Context) error { return c.NoContent(http.StatusAccepted) }, mw)
	return e
}

func post(e *echo.Echo, tenant string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/send", nil)
	if tenant != "" {
		req.Header.Set(TenantHeader, tenant)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_LimitsPerTenant(t *testing.T) {
	e := newServer(Middleware(Policy{Name: "messages:email", Window: time.Minute, Limit: 2, Key: KeyTenantOrIP("messages:email")}))

	assert.Equal(t, http.StatusAccepted, post(e, "t1").Code)
	assert.Equal(t, http.StatusAccepted, post(e, "t1").Code)
	rec := post(e, "t1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// another tenant has its own bucket
	assert.Equal(t, http.StatusAccepted, post(e, "t2").Code)
}

func TestMiddleware_LimitFuncOverrides(t *testing.T) {
	e := newServer(Middleware(Policy{
		Name:      "messages:sms",
		Limit:     10,
		LimitFunc: func(echo.Context) int { return 1 },
		Key:       KeyTenantOrIP("messages:sms"),
	}))
	assert.Equal(t, http.StatusAccepted, post(e, "t1").Code)
	assert.Equal(t, http.StatusTooManyRequests, post(e, "t1").Code)
}

type stubStore struct {
	allowed bool
	retry   int
	err     error
	keys    []string
}

func (s *stubStore) Allow(_ echo.Context, key string, _ int, _ time.Duration) (bool, int, error) {
	s.keys = append(s.keys, key)
	return s.allowed, s.retry, s.err
}

func TestMiddlewareWithStore(t *testing.T) {
	blocked := &stubStore{retry: 7}
	rec := post(newServer(MiddlewareWithStore(Policy{Name: "x", Key: KeyTenantOrIP("x")}, blocked)), "t1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "7", rec.Header().Get("Retry-After"))
	assert.Equal(t, []string{"x:ten:t1"}, blocked.keys)

	broken := &stubStore{err: errors.New("redis down")}
	assert.Equal(t, http.StatusAccepted, post(newServer(MiddlewareWithStore(Policy{Name: "x"}, broken)), "").Code)
}

func TestKeyTenantOrIP_FallsBackToIP(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/send", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	c := e.NewContext(req, httptest.NewRecorder())
	assert.Equal(t, "p:ip:10.0.0.9", KeyTenantOrIP("p")(c))
}
