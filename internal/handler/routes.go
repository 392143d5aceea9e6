package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"factory-usage-proxy/internal/config"
	"factory-usage-proxy/internal/metrics"
)

// Router dispatches GET requests between the proxy and the static responder.
type Router struct {
	proxy  *ProxyHandler
	static *StaticHandler
}

// NewRouter creates a Router.
func NewRouter(proxy *ProxyHandler, static *StaticHandler) *Router {
	return &Router{proxy: proxy, static: static}
}

// Get sends any path starting with the proxy prefix to the forwarder and
// everything else to the document root.
func (r *Router) Get(c echo.Context) error {
	if strings.HasPrefix(c.Request().URL.Path, config.ProxyPrefix) {
		return r.proxy.Handle(c)
	}
	return r.static.Handle(c)
}

// Head always goes to the static responder, proxy prefix included.
func (r *Router) Head(c echo.Context) error {
	return r.static.Handle(c)
}

// Preflight approves every CORS preflight request. The CORS headers
// themselves come from middleware.CORS.
func Preflight(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// NotImplemented rejects methods with no handler.
func NotImplemented(c echo.Context) error {
	return echo.NewHTTPError(http.StatusNotImplemented,
		fmt.Sprintf("Unsupported method (%s)", c.Request().Method))
}

// RegisterRoutes wires all route handlers onto the Echo instance.
// The metrics parameter may be nil when metrics are disabled.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, router *Router, health *HealthHandler, m *metrics.Metrics) {
	e.GET(config.HealthzPath, health.Healthz)
	e.GET(config.StatusPath, health.Status)

	if cfg.Metrics.Enabled && m != nil {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	// Specific methods registered after Any take precedence on the same path.
	e.Any("/*", NotImplemented)
	e.GET("/*", router.Get)
	e.HEAD("/*", router.Head)
	e.OPTIONS("/*", Preflight)
}
