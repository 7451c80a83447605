package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIncDispatchUnit_EmptyLabels(t *testing.T) {
	before := testutil.ToFloat64(dispatchUnitsTotal.WithLabelValues("unknown", "unknown"))
	IncDispatchUnit("", "")
	assert.Equal(t, before+1, testutil.ToFloat64(dispatchUnitsTotal.WithLabelValues("unknown", "unknown")))
}

func TestObserveProbe(t *testing.T) {
	ObserveProbe("redis", false, 0.002)
	assert.Equal(t, 0.0, testutil.ToFloat64(dependencyUp.WithLabelValues("redis")))
	ObserveProbe("redis", true, 0.001)
	assert.Equal(t, 1.0, testutil.ToFloat64(dependencyUp.WithLabelValues("redis")))
}

func TestHTTPMiddleware_UsesRouteTemplate(t *testing.T) {
	e := echo.New()
	e.Use(HTTPMiddleware("/metrics"))
	e.GET("/api/v1/messages/:channel/:id", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/metrics", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/messages/:channel/:id", "204")
	before := testutil.ToFloat64(counter)
	for _, p := range []string{"/api/v1/messages/email/1", "/api/v1/messages/sms/2", "/metrics"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	assert.Equal(t, before+2, testutil.ToFloat64(counter))
	assert.Equal(t, 0.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/metrics", "200")))
}
